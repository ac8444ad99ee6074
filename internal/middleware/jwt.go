// Package middleware provides reusable HTTP middleware for the identity
// service: bearer-token authentication, role gating and rate limiting.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehealth-platform/identity-service/internal/model"
	"github.com/ehealth-platform/identity-service/internal/utils"
)

// UserLookup is the account fetch the auth middleware needs to confirm the
// token's subject still exists and may act.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// JWTAuth validates a Bearer access token and loads the account behind it.
// A token that decodes fine but belongs to a deactivated, suspended or
// deleted account is rejected, so revoking an account takes effect within
// one access-token lifetime.  On success the context carries "user_id",
// "role" and the full "user".
func JWTAuth(codec utils.TokenCodec, users UserLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if auth == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization header"})
			}
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization header format"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims, err := codec.Decode(raw, utils.TokenTypeAccess)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			u, err := users.FindByID(ctx, claims.UserID)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load user"})
			}
			if u == nil || !u.IsActive ||
				u.AccountStatus == model.StatusSuspended || u.AccountStatus == model.StatusDeleted {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user not found or inactive"})
			}

			c.Set("user_id", u.ID)
			c.Set("role", string(u.Role))
			c.Set("user", u)
			return next(c)
		}
	}
}
