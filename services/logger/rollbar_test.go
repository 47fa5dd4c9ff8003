package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/user"
)

func newTestLogger(debug bool) (*RollbarLogger, *bytes.Buffer) {
	out := new(bytes.Buffer)
	conf := &core.Config{Env: "TEST", TestMode: true, Debug: debug, AppName: "Alama"}
	return NewRollbarLogger(log.New(out, "", 0), conf), out
}

func TestRollbarLogger_print(t *testing.T) {
	logger, out := newTestLogger(false)
	usr := user.User{ID: "42", Username: "prof", Roles: []string{user.RoleFaculty}}

	logger.Error("submitting results", errors.New("boom"), map[string]interface{}{"course": "CS101"}, usr)

	got := out.String()
	assert.Contains(t, got, "ERROR: submitting results\n")
	assert.Contains(t, got, "boom")
	assert.Contains(t, got, "map[course:CS101]")
	assert.Contains(t, got, "user: prof (42)")
}

func TestRollbarLogger_Debug(t *testing.T) {
	logger, out := newTestLogger(false)
	logger.Debug("hidden")
	assert.Empty(t, out.String())

	logger, out = newTestLogger(true)
	logger.Debug("shown")
	assert.Equal(t, "DEBUG: shown\n", out.String())
}

func TestRollbarLogger_prepare(t *testing.T) {
	logger, _ := newTestLogger(false)
	admin := user.User{ID: "1", Username: "admin", Roles: []string{user.RoleAdmin}}
	other := user.User{ID: "2", Username: "other"}

	args := logger.prepare("msg", []interface{}{admin, other, "extra"})
	assert.Equal(t, []interface{}{"msg", map[string]interface{}{"roles": user.RoleAdmin}, "extra"}, args)
}
