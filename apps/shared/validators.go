// Package shared holds the wiring common to the api and admin apps.
package shared

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/result"
	"github.com/trezcool/alama/core/user"
)

// NewValidator returns a validator with every custom validation & translation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	result.InitValidators(validate, translator)
	return validate, translator
}

// FieldName returns the path of a validation error relative to the validated struct,
// eg: "entries[1].marks".
func FieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 && idx < len(ns)-1 {
		return ns[idx+1:]
	}
	return fe.Field()
}

// FieldErrors returns the {field: message} map of a validation error, or nil.
func FieldErrors(err error, translator ut.Translator) map[string]string {
	switch vErr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		fldErrs := make(map[string]string, len(vErr))
		for _, fe := range vErr {
			fldErrs[FieldName(fe)] = fe.Translate(translator)
		}
		return fldErrs
	case *core.ValidationError:
		if len(vErr.Fields) == 0 {
			return nil
		}
		fldErrs := make(map[string]string, len(vErr.Fields))
		for _, fe := range vErr.Fields {
			fldErrs[fe.Field] = fe.Error
		}
		return fldErrs
	}
	return nil
}
