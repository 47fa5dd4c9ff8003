// Package sqlxrepos implements the domain repositories over PostgreSQL with sqlx.
package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const uniqueViolation = "23505"

// constraintErr maps a unique constraint name to its domain error.
type constraintErr map[string]error

// translate returns the domain error of a unique violation, else err wrapped with msg.
func (ce constraintErr) translate(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		if domErr, ok := ce[pqErr.Constraint]; ok {
			return domErr
		}
	}
	return errors.Wrap(err, msg)
}

// where accumulates AND-ed conditions using "?" bind vars.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return "%" + r.Replace(s) + "%"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// validIDs drops ids that are not UUIDs: they cannot match any row.
func validIDs(ids ...string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	return valid
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
