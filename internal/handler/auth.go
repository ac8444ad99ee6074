package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehealth-platform/identity-service/internal/config"
	"github.com/ehealth-platform/identity-service/internal/repository"
	"github.com/ehealth-platform/identity-service/internal/service"
)

const refreshCookieName = "refresh_token"

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Cfg  config.Config
	Auth *service.AuthService
}

func NewAuthHandler(cfg config.Config, auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Auth: auth}
}

// ----- response envelope -----

func respond(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, echo.Map{
		"success": status < 400,
		"message": message,
		"data":    data,
	})
}

func fail(c echo.Context, status int, message string) error {
	return respond(c, status, message, nil)
}

func failFields(c echo.Context, message string, fields map[string]string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{
		"success": false,
		"message": message,
		"errors":  fields,
	})
}

// ----- refresh cookie -----

// setRefreshCookie writes the refresh token into an HttpOnly cookie scoped to
// the auth routes.  The token never appears in a response body.
func (h *AuthHandler) setRefreshCookie(c echo.Context, token string, expires time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/api/auth",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.Cfg.Env == "prod",
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/api/auth",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cfg.Env == "prod",
		SameSite: http.SameSiteLaxMode,
	})
}

// ----- DTOs -----

type registerPatientReq struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	FullName        string `json:"full_name"`
	Mobile          string `json:"mobile"`
	DateOfBirth     string `json:"date_of_birth"`
	Gender          string `json:"gender"`
	BloodGroup      string `json:"blood_group"`
	Address         string `json:"address"`
	City            string `json:"city"`
	State           string `json:"state"`
	Pincode         string `json:"pincode"`
}

type registerDoctorReq struct {
	Email              string  `json:"email"`
	Password           string  `json:"password"`
	ConfirmPassword    string  `json:"confirm_password"`
	FullName           string  `json:"full_name"`
	PhoneNumber        string  `json:"phone_number"`
	RegistrationNumber string  `json:"registration_number"`
	ExperienceYears    float64 `json:"experience_years"`
	ConsultationFee    float64 `json:"consultation_fee"`
}

type registerLabReq struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	LabName         string `json:"lab_name"`
	LicenseNumber   string `json:"license_number"`
	Address         string `json:"address"`
	City            string `json:"city"`
	State           string `json:"state"`
	Pincode         string `json:"pincode"`
	PhoneNumber     string `json:"phone_number"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleAuthReq struct {
	IDToken string `json:"id_token"`
}

type resendVerificationReq struct {
	Email string `json:"email"`
}

type logoutReq struct {
	RefreshToken string `json:"refresh_token"`
}

// ----- validation -----

func validateCredentials(email, password, confirm string, fields map[string]string) {
	if strings.TrimSpace(email) == "" {
		fields["email"] = "email is required"
	}
	if password == "" {
		fields["password"] = "password is required"
	} else if len(password) < 8 {
		fields["password"] = "password must be at least 8 characters"
	}
	if password != confirm {
		fields["confirm_password"] = "passwords do not match"
	}
}

func requireField(fields map[string]string, key, value string) {
	if strings.TrimSpace(value) == "" {
		fields[key] = key + " is required"
	}
}

// mapRegistrationError translates duplicate-key sentinels into 409s.
func mapRegistrationError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		return fail(c, http.StatusConflict, "An account with this email already exists.")
	case errors.Is(err, repository.ErrMobileExists):
		return fail(c, http.StatusConflict, "An account with this mobile number already exists.")
	case errors.Is(err, repository.ErrPhoneExists):
		return fail(c, http.StatusConflict, "An account with this phone number already exists.")
	case errors.Is(err, repository.ErrRegistrationNumberExists):
		return fail(c, http.StatusConflict, "A doctor with this registration number already exists.")
	case errors.Is(err, repository.ErrLicenseExists):
		return fail(c, http.StatusConflict, "A lab with this license number already exists.")
	}
	return fail(c, http.StatusInternalServerError, "Registration failed. Please try again.")
}

// ----- handlers -----

// RegisterPatient creates a patient account, queues the verification email
// and signs the new patient in.
func (h *AuthHandler) RegisterPatient(c echo.Context) error {
	var req registerPatientReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	fields := map[string]string{}
	validateCredentials(req.Email, req.Password, req.ConfirmPassword, fields)
	requireField(fields, "full_name", req.FullName)
	requireField(fields, "mobile", req.Mobile)
	if len(fields) > 0 {
		return failFields(c, "validation failed", fields)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, p, pair, err := h.Auth.RegisterPatient(ctx, service.RegisterPatientInput{
		Email:       req.Email,
		Password:    req.Password,
		FullName:    req.FullName,
		Mobile:      req.Mobile,
		DateOfBirth: req.DateOfBirth,
		Gender:      req.Gender,
		BloodGroup:  req.BloodGroup,
		Address:     req.Address,
		City:        req.City,
		State:       req.State,
		Pincode:     req.Pincode,
	})
	if err != nil {
		return mapRegistrationError(c, err)
	}

	h.setRefreshCookie(c, pair.RefreshToken, pair.RefreshExpires)
	return respond(c, http.StatusCreated, "Registration successful. Please verify your email.", echo.Map{
		"user":         userPayload(u),
		"profile":      patientPayload(p),
		"access_token": pair.AccessToken,
	})
}

// RegisterDoctor creates a doctor account with a PENDING profile.
func (h *AuthHandler) RegisterDoctor(c echo.Context) error {
	var req registerDoctorReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	fields := map[string]string{}
	validateCredentials(req.Email, req.Password, req.ConfirmPassword, fields)
	requireField(fields, "full_name", req.FullName)
	requireField(fields, "phone_number", req.PhoneNumber)
	requireField(fields, "registration_number", req.RegistrationNumber)
	if len(fields) > 0 {
		return failFields(c, "validation failed", fields)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, d, pair, err := h.Auth.RegisterDoctor(ctx, service.RegisterDoctorInput{
		Email:              req.Email,
		Password:           req.Password,
		FullName:           req.FullName,
		PhoneNumber:        req.PhoneNumber,
		RegistrationNumber: req.RegistrationNumber,
		ExperienceYears:    req.ExperienceYears,
		ConsultationFee:    req.ConsultationFee,
	})
	if err != nil {
		return mapRegistrationError(c, err)
	}

	h.setRefreshCookie(c, pair.RefreshToken, pair.RefreshExpires)
	return respond(c, http.StatusCreated,
		"Registration successful. Your profile is pending verification.", echo.Map{
			"user":         userPayload(u),
			"profile":      doctorPayload(d),
			"access_token": pair.AccessToken,
		})
}

// RegisterLab creates a lab account with a PENDING profile.
func (h *AuthHandler) RegisterLab(c echo.Context) error {
	var req registerLabReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	fields := map[string]string{}
	validateCredentials(req.Email, req.Password, req.ConfirmPassword, fields)
	requireField(fields, "lab_name", req.LabName)
	requireField(fields, "license_number", req.LicenseNumber)
	if len(fields) > 0 {
		return failFields(c, "validation failed", fields)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, l, pair, err := h.Auth.RegisterLab(ctx, service.RegisterLabInput{
		Email:         req.Email,
		Password:      req.Password,
		LabName:       req.LabName,
		LicenseNumber: req.LicenseNumber,
		Address:       req.Address,
		City:          req.City,
		State:         req.State,
		Pincode:       req.Pincode,
		PhoneNumber:   req.PhoneNumber,
	})
	if err != nil {
		return mapRegistrationError(c, err)
	}

	h.setRefreshCookie(c, pair.RefreshToken, pair.RefreshExpires)
	return respond(c, http.StatusCreated,
		"Registration successful. Your profile is pending verification.", echo.Map{
			"user":         userPayload(u),
			"profile":      labPayload(l),
			"access_token": pair.AccessToken,
		})
}

// Login authenticates an email/password pair.  Lockout and account-state
// failures come back as 403 with their specific message; everything else
// credential-shaped is a uniform 401.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "email and password are required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, pair, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		var locked *service.AccountLockedError
		var state *service.AccountStateError
		switch {
		case errors.As(err, &locked):
			return fail(c, http.StatusForbidden, locked.Message())
		case errors.As(err, &state):
			return fail(c, http.StatusForbidden, state.Reason)
		case errors.Is(err, service.ErrInvalidCredentials):
			return fail(c, http.StatusUnauthorized, "Invalid email or password.")
		}
		return fail(c, http.StatusInternalServerError, "Login failed. Please try again.")
	}

	h.setRefreshCookie(c, pair.RefreshToken, pair.RefreshExpires)
	return respond(c, http.StatusOK, "Login successful.", echo.Map{
		"user":         userPayload(u),
		"access_token": pair.AccessToken,
	})
}

// GoogleAuth signs a user in with a Google ID token, creating a patient
// account on first sight of the email.
func (h *AuthHandler) GoogleAuth(c echo.Context) error {
	var req googleAuthReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.IDToken) == "" {
		return fail(c, http.StatusBadRequest, "id_token is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	u, pair, created, err := h.Auth.GoogleAuth(ctx, req.IDToken)
	if err != nil {
		var state *service.AccountStateError
		switch {
		case errors.As(err, &state):
			return fail(c, http.StatusForbidden, state.Reason)
		case errors.Is(err, service.ErrIdentityVerification):
			return fail(c, http.StatusUnauthorized, "Google sign-in failed. Please try again.")
		}
		return fail(c, http.StatusInternalServerError, "Google sign-in failed. Please try again.")
	}

	h.setRefreshCookie(c, pair.RefreshToken, pair.RefreshExpires)
	status := http.StatusOK
	message := "Login successful."
	if created {
		status = http.StatusCreated
		message = "Account created successfully."
	}
	return respond(c, status, message, echo.Map{
		"user":         userPayload(u),
		"access_token": pair.AccessToken,
	})
}

// Refresh rotates the refresh token from the cookie and returns a fresh
// access token.  Any failure clears the cookie so clients fall back to a
// full login instead of retrying a dead token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		return fail(c, http.StatusBadRequest, "refresh token cookie is missing")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	_, pair, err := h.Auth.Refresh(ctx, cookie.Value)
	if err != nil {
		h.clearRefreshCookie(c)
		var state *service.AccountStateError
		if errors.As(err, &state) {
			return fail(c, http.StatusForbidden, state.Reason)
		}
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			return fail(c, http.StatusUnauthorized, "Invalid or expired refresh token.")
		}
		return fail(c, http.StatusInternalServerError, "Token refresh failed. Please try again.")
	}

	h.setRefreshCookie(c, pair.RefreshToken, pair.RefreshExpires)
	return respond(c, http.StatusOK, "Token refreshed.", echo.Map{
		"access_token": pair.AccessToken,
	})
}

// Logout revokes the current refresh token.  Both the cookie token and an
// optional body token are revoked; logout always succeeds.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if cookie, err := c.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
		_ = h.Auth.Logout(ctx, cookie.Value)
	}
	var req logoutReq
	if err := c.Bind(&req); err == nil && req.RefreshToken != "" {
		_ = h.Auth.Logout(ctx, req.RefreshToken)
	}

	h.clearRefreshCookie(c)
	return respond(c, http.StatusOK, "Logged out successfully.", nil)
}

// LogoutAll revokes every active session the authenticated account holds.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	if userID == "" {
		return fail(c, http.StatusUnauthorized, "authentication required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Auth.LogoutAll(ctx, userID); err != nil {
		return fail(c, http.StatusInternalServerError, "Logout failed. Please try again.")
	}
	h.clearRefreshCookie(c)
	return respond(c, http.StatusOK, "Logged out from all sessions.", nil)
}

// VerifyEmail consumes the confirmation token from the query string.  Used
// and expired tokens fail with distinct messages.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	token := strings.TrimSpace(c.QueryParam("token"))
	if token == "" {
		return fail(c, http.StatusBadRequest, "verification token is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Auth.VerifyEmail(ctx, token); err != nil {
		switch {
		case errors.Is(err, service.ErrVerificationNotFound):
			return fail(c, http.StatusBadRequest, "Invalid or already used verification token.")
		case errors.Is(err, service.ErrVerificationExpired):
			return fail(c, http.StatusBadRequest, "Verification link has expired. Please request a new one.")
		}
		return fail(c, http.StatusInternalServerError, "Email verification failed. Please try again.")
	}
	return respond(c, http.StatusOK, "Email verified successfully.", nil)
}

// ResendVerification reissues the confirmation email for an unverified
// account.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req resendVerificationReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Email) == "" {
		return fail(c, http.StatusBadRequest, "email is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Auth.ResendVerification(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			return fail(c, http.StatusNotFound, "No account found with this email.")
		case errors.Is(err, service.ErrEmailAlreadyVerified):
			return fail(c, http.StatusBadRequest, "Email is already verified.")
		}
		return fail(c, http.StatusInternalServerError, "Could not resend verification email.")
	}
	return respond(c, http.StatusOK, "Verification email sent.", nil)
}
