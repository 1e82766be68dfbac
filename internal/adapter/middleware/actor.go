package middleware

import (
	"net/http"
	"strings"

	"peerlend/internal/domain/membership"

	"github.com/labstack/echo/v4"
)

const actorKey = "peerlend.actor"

// ActorMiddleware resolves the authenticated caller from Ax-User-Id and
// Ax-User-Role. Token verification happens upstream at the gateway.
func ActorMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := strings.TrimSpace(c.Request().Header.Get(HeaderUserID))
			if userID == "" {
				return abort(c, http.StatusUnauthorized, "unauthenticated", "missing "+HeaderUserID)
			}
			if !reHex32.MatchString(userID) {
				return abort(c, http.StatusBadRequest, "validation", "invalid "+HeaderUserID)
			}
			role, err := membership.ParseGlobalRole(c.Request().Header.Get(HeaderUserRole))
			if err != nil {
				return abort(c, http.StatusBadRequest, "validation", "invalid "+HeaderUserRole)
			}
			c.Set(actorKey, membership.Actor{ID: userID, Role: role})
			return next(c)
		}
	}
}

// ActorFrom returns the caller resolved by ActorMiddleware.
func ActorFrom(c echo.Context) (membership.Actor, bool) {
	a, ok := c.Get(actorKey).(membership.Actor)
	return a, ok
}

// WithActor stores a on c. Handlers under test use it instead of the middleware.
func WithActor(c echo.Context, a membership.Actor) { c.Set(actorKey, a) }
