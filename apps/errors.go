// Package apps holds what the command line and HTTP apps share.
package apps

import "fmt"

// ArgumentError reports an invalid command line argument.
type ArgumentError struct {
	Flag string // empty when not tied to a flag
	msg  string
}

func NewArgumentError(msg string) *ArgumentError {
	return &ArgumentError{msg: msg}
}

func NewFlagError(flag, format string, args ...interface{}) *ArgumentError {
	return &ArgumentError{Flag: flag, msg: fmt.Sprintf(format, args...)}
}

func (err *ArgumentError) Error() string {
	if err.Flag == "" {
		return err.msg
	}
	return "-" + err.Flag + ": " + err.msg
}
