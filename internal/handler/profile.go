package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehealth-platform/identity-service/internal/model"
	"github.com/ehealth-platform/identity-service/internal/repository"
)

// ProfileHandler serves the authenticated user's own profile.
type ProfileHandler struct {
	Users    *repository.UserRepo
	Profiles *repository.ProfileRepo
}

func NewProfileHandler(u *repository.UserRepo, p *repository.ProfileRepo) *ProfileHandler {
	return &ProfileHandler{Users: u, Profiles: p}
}

// ----- payload serializers -----

// userPayload is the account view shared by every role.  The password hash
// and lockout bookkeeping never leave the service.
func userPayload(u *model.User) echo.Map {
	return echo.Map{
		"id":             u.ID,
		"email":          u.Email,
		"role":           u.Role,
		"account_status": u.AccountStatus,
		"is_active":      u.IsActive,
		"email_verified": u.EmailVerified,
		"created_at":     u.CreatedAt,
	}
}

func patientPayload(p *model.Patient) echo.Map {
	return echo.Map{
		"patient_id":    p.PatientID,
		"user_id":       p.UserID,
		"full_name":     p.FullName,
		"mobile":        p.Mobile,
		"date_of_birth": p.DateOfBirth,
		"gender":        p.Gender,
		"blood_group":   p.BloodGroup,
		"address":       p.Address,
		"city":          p.City,
		"state":         p.State,
		"pincode":       p.Pincode,
		"is_active":     p.IsActive,
	}
}

func doctorPayload(d *model.Doctor) echo.Map {
	return echo.Map{
		"user_id":             d.UserID,
		"full_name":           d.FullName,
		"phone_number":        d.PhoneNumber,
		"registration_number": d.RegistrationNumber,
		"experience_years":    d.ExperienceYears,
		"consultation_fee":    d.ConsultationFee,
		"verification_status": d.VerificationStatus,
		"verification_notes":  d.VerificationNotes,
		"verified_at":         d.VerifiedAt,
		"is_active":           d.IsActive,
	}
}

func labPayload(l *model.Lab) echo.Map {
	return echo.Map{
		"user_id":             l.UserID,
		"lab_name":            l.LabName,
		"license_number":      l.LicenseNumber,
		"address":             l.Address,
		"city":                l.City,
		"state":               l.State,
		"pincode":             l.Pincode,
		"phone_number":        l.PhoneNumber,
		"verification_status": l.VerificationStatus,
		"verification_notes":  l.VerificationNotes,
		"verified_at":         l.VerifiedAt,
		"is_active":           l.IsActive,
	}
}

// currentUser pulls the account JWTAuth stored on the context.
func currentUser(c echo.Context) (*model.User, error) {
	u, ok := c.Get("user").(*model.User)
	if !ok || u == nil {
		return nil, errors.New("no authenticated user on context")
	}
	return u, nil
}

// Me returns the account plus the role-specific profile.  The role switch is
// exhaustive: an unknown role is a data bug and fails loudly instead of
// returning a half-empty payload.
func (h *ProfileHandler) Me(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "authentication required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	data := echo.Map{"user": userPayload(u)}
	switch u.Role {
	case model.RolePatient:
		p, err := h.Profiles.FindPatientByUserID(ctx, u.ID)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "failed to load profile")
		}
		if p != nil {
			data["profile"] = patientPayload(p)
		}
	case model.RoleDoctor:
		d, err := h.Profiles.FindDoctorByUserID(ctx, u.ID)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "failed to load profile")
		}
		if d != nil {
			data["profile"] = doctorPayload(d)
		}
	case model.RoleLab:
		l, err := h.Profiles.FindLabByUserID(ctx, u.ID)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "failed to load profile")
		}
		if l != nil {
			data["profile"] = labPayload(l)
		}
	case model.RoleAdmin, model.RoleStaff:
		// Admin and staff accounts have no domain profile.
	default:
		return fail(c, http.StatusInternalServerError, "unknown account role")
	}
	return respond(c, http.StatusOK, "Profile retrieved.", data)
}

// ----- patient profile -----

type updatePatientReq struct {
	FullName    *string `json:"full_name"`
	Mobile      *string `json:"mobile"`
	DateOfBirth *string `json:"date_of_birth"`
	Gender      *string `json:"gender"`
	BloodGroup  *string `json:"blood_group"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	State       *string `json:"state"`
	Pincode     *string `json:"pincode"`
}

func (h *ProfileHandler) GetPatientProfile(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "authentication required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Profiles.FindPatientByUserID(ctx, u.ID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "failed to load profile")
	}
	if p == nil {
		return fail(c, http.StatusNotFound, "Patient profile not found.")
	}
	return respond(c, http.StatusOK, "Profile retrieved.", patientPayload(p))
}

// UpdatePatientProfile applies a partial update.  Absent fields keep their
// stored value; empty strings are deliberate clears.
func (h *ProfileHandler) UpdatePatientProfile(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "authentication required")
	}
	var req updatePatientReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Profiles.FindPatientByUserID(ctx, u.ID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "failed to load profile")
	}
	if p == nil {
		return fail(c, http.StatusNotFound, "Patient profile not found.")
	}

	applyString(&p.FullName, req.FullName)
	applyString(&p.Mobile, req.Mobile)
	applyString(&p.DateOfBirth, req.DateOfBirth)
	applyString(&p.Gender, req.Gender)
	applyString(&p.BloodGroup, req.BloodGroup)
	applyString(&p.Address, req.Address)
	applyString(&p.City, req.City)
	applyString(&p.State, req.State)
	applyString(&p.Pincode, req.Pincode)

	if err := h.Profiles.UpdatePatient(ctx, p); err != nil {
		if errors.Is(err, repository.ErrMobileExists) {
			return fail(c, http.StatusConflict, "An account with this mobile number already exists.")
		}
		return fail(c, http.StatusInternalServerError, "failed to update profile")
	}
	return respond(c, http.StatusOK, "Profile updated.", patientPayload(p))
}

// ----- doctor profile -----

type updateDoctorReq struct {
	FullName        *string  `json:"full_name"`
	PhoneNumber     *string  `json:"phone_number"`
	ExperienceYears *float64 `json:"experience_years"`
	ConsultationFee *float64 `json:"consultation_fee"`
}

func (h *ProfileHandler) GetDoctorProfile(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "authentication required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	d, err := h.Profiles.FindDoctorByUserID(ctx, u.ID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "failed to load profile")
	}
	if d == nil {
		return fail(c, http.StatusNotFound, "Doctor profile not found.")
	}
	return respond(c, http.StatusOK, "Profile retrieved.", doctorPayload(d))
}

// UpdateDoctorProfile updates self-service fields only.  The registration
// number and verification state are admin territory.
func (h *ProfileHandler) UpdateDoctorProfile(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "authentication required")
	}
	var req updateDoctorReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	d, err := h.Profiles.FindDoctorByUserID(ctx, u.ID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "failed to load profile")
	}
	if d == nil {
		return fail(c, http.StatusNotFound, "Doctor profile not found.")
	}

	applyString(&d.FullName, req.FullName)
	applyString(&d.PhoneNumber, req.PhoneNumber)
	if req.ExperienceYears != nil {
		d.ExperienceYears = *req.ExperienceYears
	}
	if req.ConsultationFee != nil {
		d.ConsultationFee = *req.ConsultationFee
	}

	if err := h.Profiles.UpdateDoctor(ctx, d); err != nil {
		if errors.Is(err, repository.ErrPhoneExists) {
			return fail(c, http.StatusConflict, "An account with this phone number already exists.")
		}
		return fail(c, http.StatusInternalServerError, "failed to update profile")
	}
	return respond(c, http.StatusOK, "Profile updated.", doctorPayload(d))
}

// ----- lab profile -----

type updateLabReq struct {
	LabName     *string `json:"lab_name"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	State       *string `json:"state"`
	Pincode     *string `json:"pincode"`
	PhoneNumber *string `json:"phone_number"`
}

func (h *ProfileHandler) GetLabProfile(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "authentication required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	l, err := h.Profiles.FindLabByUserID(ctx, u.ID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "failed to load profile")
	}
	if l == nil {
		return fail(c, http.StatusNotFound, "Lab profile not found.")
	}
	return respond(c, http.StatusOK, "Profile retrieved.", labPayload(l))
}

// UpdateLabProfile updates self-service fields; the license number and
// verification state are admin territory.
func (h *ProfileHandler) UpdateLabProfile(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "authentication required")
	}
	var req updateLabReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	l, err := h.Profiles.FindLabByUserID(ctx, u.ID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "failed to load profile")
	}
	if l == nil {
		return fail(c, http.StatusNotFound, "Lab profile not found.")
	}

	applyString(&l.LabName, req.LabName)
	applyString(&l.Address, req.Address)
	applyString(&l.City, req.City)
	applyString(&l.State, req.State)
	applyString(&l.Pincode, req.Pincode)
	applyString(&l.PhoneNumber, req.PhoneNumber)

	if err := h.Profiles.UpdateLab(ctx, l); err != nil {
		if errors.Is(err, repository.ErrPhoneExists) {
			return fail(c, http.StatusConflict, "An account with this phone number already exists.")
		}
		return fail(c, http.StatusInternalServerError, "failed to update profile")
	}
	return respond(c, http.StatusOK, "Profile updated.", labPayload(l))
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
