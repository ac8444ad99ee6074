// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/ehealth-platform/identity-service/internal/config"
	"github.com/ehealth-platform/identity-service/internal/handler"
	"github.com/ehealth-platform/identity-service/internal/middleware"
	"github.com/ehealth-platform/identity-service/internal/model"
	"github.com/ehealth-platform/identity-service/internal/utils"
)

// RegisterRoutes registers routes that need no authentication.  Currently it
// exposes only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the /api/auth surface.  The public endpoints sit
// behind the Redis token bucket; logout needs a valid access token so the
// session being ended is provably the caller's.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, codec utils.TokenCodec,
	users middleware.UserLookup, rlCfg config.RateLimitConfig, rdb *redis.Client) {

	g := e.Group("/api/auth")
	g.Use(middleware.NewTokenBucket(rlCfg, rdb))

	g.POST("/register/patient", a.RegisterPatient)
	g.POST("/register/doctor", a.RegisterDoctor)
	g.POST("/register/lab", a.RegisterLab)
	g.POST("/login", a.Login)
	g.POST("/google", a.GoogleAuth)
	g.POST("/refresh", a.Refresh)
	g.GET("/verify-email", a.VerifyEmail)
	g.POST("/resend-verification", a.ResendVerification)

	g.POST("/logout", a.Logout, middleware.JWTAuth(codec, users))
	g.POST("/logout-all", a.LogoutAll, middleware.JWTAuth(codec, users))
}

// RegisterProfile registers the authenticated self-service profile surface.
// Role-specific endpoints are additionally gated to their role so a patient
// token cannot reach the doctor routes.
func RegisterProfile(e *echo.Echo, p *handler.ProfileHandler, codec utils.TokenCodec,
	users middleware.UserLookup) {

	g := e.Group("/api/profile")
	g.Use(middleware.JWTAuth(codec, users))

	g.GET("/me", p.Me)

	g.GET("/patient", p.GetPatientProfile, middleware.RequireRole(model.RolePatient))
	g.PUT("/patient", p.UpdatePatientProfile, middleware.RequireRole(model.RolePatient))

	g.GET("/doctor", p.GetDoctorProfile, middleware.RequireRole(model.RoleDoctor))
	g.PUT("/doctor", p.UpdateDoctorProfile, middleware.RequireRole(model.RoleDoctor))

	g.GET("/lab", p.GetLabProfile, middleware.RequireRole(model.RoleLab))
	g.PUT("/lab", p.UpdateLabProfile, middleware.RequireRole(model.RoleLab))
}

// RegisterAdmin registers the back-office surface for ADMIN and STAFF.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, codec utils.TokenCodec,
	users middleware.UserLookup) {

	g := e.Group("/api/admin")
	g.Use(middleware.JWTAuth(codec, users))
	g.Use(middleware.RequireRole(model.RoleAdmin, model.RoleStaff))

	g.GET("/patients", a.ListPatients)
	g.GET("/doctors", a.ListDoctors)
	g.GET("/labs", a.ListLabs)

	g.PATCH("/patients/:patient_id/status", a.TogglePatientStatus)
	g.PATCH("/doctors/:user_id/status", a.ToggleDoctorStatus)

	g.POST("/doctors/:user_id/verify", a.VerifyDoctor)
	g.POST("/labs/:user_id/verify", a.VerifyLab)

	g.GET("/pending-approvals", a.PendingApprovalsCount)
}
