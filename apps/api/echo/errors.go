package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/apps/shared"
	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/course"
	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/result"
	"github.com/trezcool/alama/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// domainErrCodes maps the domain errors reaching the handler to their status code.
var domainErrCodes = map[error]int{
	user.ErrNotFound:         http.StatusNotFound,
	course.ErrNotFound:       http.StatusNotFound,
	result.ErrNotFound:       http.StatusNotFound,
	result.ErrNotStudent:     http.StatusNotFound,
	result.ErrForbidden:      http.StatusForbidden,
	user.ErrInvalidResetLink: http.StatusBadRequest,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		origErr := errors.Cause(err)
		switch vErr := origErr.(type) {
		case *echo.HTTPError:
			if vErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = vErr.Message
				break
			}
			if vErr.Internal != nil {
				if herr, ok := vErr.Internal.(*echo.HTTPError); ok {
					vErr = herr
				}
			}
			code = vErr.Code
			message = vErr.Message
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = shared.FieldErrors(vErr, translator)
		case *core.ValidationError:
			code = http.StatusBadRequest
			if fldErrs := shared.FieldErrors(vErr, translator); fldErrs != nil {
				message = fldErrs
			} else {
				message = vErr.Error()
			}
		case *grade.UnknownGradeError:
			code = http.StatusBadRequest
			message = vErr.Error()
		default:
			if c, ok := domainErrCodes[origErr]; ok {
				code = c
				message = origErr.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Username = claims.Username
				usr.Email = claims.Email
				usr.Roles = claims.Roles
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
