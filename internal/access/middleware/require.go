package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/caremesh/sentinel/internal/access/domain"
)

// Authorizer resolves one capability check.
type Authorizer interface {
	Authorize(ctx context.Context, in domain.Input) (domain.Decision, error)
}

// RequireCapability gates a route on the authenticated actor holding the
// capability. Must run after NewJWT.
func RequireCapability(az Authorizer, capability string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			aid, ok := ActorID(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
			}
			role, ok := ActorRole(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
			}
			dec, err := az.Authorize(c.Request().Context(), domain.Input{
				ActorID:    aid,
				Role:       role,
				Capability: capability,
			})
			if err != nil {
				// Unknown capability is a wiring bug, not a deny.
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "capability misconfigured"})
			}
			if !dec.Allowed {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden", "reason": dec.Reason})
			}
			return next(c)
		}
	}
}
