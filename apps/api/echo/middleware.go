package echoapi

import (
	"github.com/labstack/echo/v4"
)

// claimsMiddleware lets the request through if the token claims satisfy allow.
func claimsMiddleware(allow func(ctx echo.Context, claims Claims) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if allow(ctx, claims) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// adminMiddleware requires an admin having any of roles (if given).
func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return claimsMiddleware(func(ctx echo.Context, claims Claims) bool {
		return claims.IsAdmin && contextHasAnyRole(ctx, roles)
	})
}

// staffMiddleware requires an admin or a faculty member.
func staffMiddleware() echo.MiddlewareFunc {
	return claimsMiddleware(func(_ echo.Context, claims Claims) bool {
		return claims.IsAdmin || claims.IsFaculty
	})
}
