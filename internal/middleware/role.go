package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehealth-platform/identity-service/internal/model"
)

// RequireRole aborts with 403 unless the authenticated account holds one of
// the given roles.  It assumes JWTAuth already stored the role under "role".
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[string(r)] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get("role").(string)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
