package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/attendly/attendly/core/role"
)

// roleMiddleware only lets through members whose role passes allowed.
func roleMiddleware(auth *authenticator, allowed func(role.Role) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			m, err := auth.contextMember(ctx)
			if err != nil {
				return err
			}
			if allowed(m.Role) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func isPlatformOwner(r role.Role) bool {
	return r == role.PlatformOwner
}
