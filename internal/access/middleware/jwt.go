package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/caremesh/sentinel/internal/config"
	dir "github.com/caremesh/sentinel/internal/directory/domain"
)

const (
	ctxActorIDKey   = "auth_actor_id"
	ctxActorRoleKey = "auth_actor_role"
)

// NewJWT returns an Echo middleware that validates service JWTs and stores
// the calling actor's id and role in the context.
func NewJWT(cfg config.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			}
			tokStr := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(tokStr, func(token *jwt.Token) (any, error) {
				return []byte(cfg.JWTSigningKey), nil
			}, jwt.WithLeeway(30*time.Second), jwt.WithIssuedAt(), jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid claims"})
			}
			sub, _ := claims["sub"].(string)
			rol, _ := claims["rol"].(string)
			aid, err := uuid.Parse(sub)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid subject"})
			}
			role, ok := dir.ParseRole(rol)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid role"})
			}

			c.Set(ctxActorIDKey, aid)
			c.Set(ctxActorRoleKey, role)
			return next(c)
		}
	}
}

// ActorID returns the authenticated actor's ID from context.
func ActorID(c echo.Context) (uuid.UUID, bool) {
	v := c.Get(ctxActorIDKey)
	if v == nil {
		return uuid.UUID{}, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// ActorRole returns the authenticated actor's role from context.
func ActorRole(c echo.Context) (dir.Role, bool) {
	v := c.Get(ctxActorRoleKey)
	if v == nil {
		return "", false
	}
	r, ok := v.(dir.Role)
	return r, ok
}
