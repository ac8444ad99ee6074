package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehealth-platform/identity-service/internal/model"
)

// AdminStore is the back-office slice of the profile repository: listings,
// activation toggles and the verification decision.
type AdminStore interface {
	ListPatients(ctx context.Context) ([]*model.Patient, error)
	ListDoctors(ctx context.Context) ([]*model.Doctor, error)
	ListLabs(ctx context.Context) ([]*model.Lab, error)
	TogglePatientActive(ctx context.Context, patientID int64) (*model.Patient, error)
	ToggleDoctorActive(ctx context.Context, userID string) (*model.Doctor, error)
	SetDoctorVerification(ctx context.Context, userID string, status model.VerificationStatus, notes, verifiedBy string) (*model.Doctor, error)
	SetLabVerification(ctx context.Context, userID string, status model.VerificationStatus, notes, verifiedBy string) (*model.Lab, error)
	CountPendingApprovals(ctx context.Context) (doctors, labs int, err error)
}

// AdminHandler serves the back-office endpoints: listings, activation
// toggles and doctor/lab verification.  Routes are gated to ADMIN and STAFF
// by middleware.
type AdminHandler struct {
	Profiles AdminStore
}

func NewAdminHandler(p AdminStore) *AdminHandler {
	return &AdminHandler{Profiles: p}
}

func (h *AdminHandler) ListPatients(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	patients, err := h.Profiles.ListPatients(ctx)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "failed to list patients")
	}
	out := make([]echo.Map, 0, len(patients))
	for _, p := range patients {
		out = append(out, patientPayload(p))
	}
	return respond(c, http.StatusOK, "Patients retrieved.", echo.Map{"patients": out, "count": len(out)})
}

func (h *AdminHandler) ListDoctors(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	doctors, err := h.Profiles.ListDoctors(ctx)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "failed to list doctors")
	}
	out := make([]echo.Map, 0, len(doctors))
	for _, d := range doctors {
		out = append(out, doctorPayload(d))
	}
	return respond(c, http.StatusOK, "Doctors retrieved.", echo.Map{"doctors": out, "count": len(out)})
}

func (h *AdminHandler) ListLabs(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	labs, err := h.Profiles.ListLabs(ctx)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "failed to list labs")
	}
	out := make([]echo.Map, 0, len(labs))
	for _, l := range labs {
		out = append(out, labPayload(l))
	}
	return respond(c, http.StatusOK, "Labs retrieved.", echo.Map{"labs": out, "count": len(out)})
}

// TogglePatientStatus flips a patient's active flag and mirrors it on the
// owning account.
func (h *AdminHandler) TogglePatientStatus(c echo.Context) error {
	patientID, err := strconv.ParseInt(c.Param("patient_id"), 10, 64)
	if err != nil || patientID <= 0 {
		return fail(c, http.StatusBadRequest, "invalid patient id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Profiles.TogglePatientActive(ctx, patientID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "failed to update patient status")
	}
	if p == nil {
		return fail(c, http.StatusNotFound, "Patient not found.")
	}
	message := "Patient deactivated."
	if p.IsActive {
		message = "Patient activated."
	}
	return respond(c, http.StatusOK, message, patientPayload(p))
}

// ToggleDoctorStatus flips a doctor's active flag and mirrors it on the
// owning account.
func (h *AdminHandler) ToggleDoctorStatus(c echo.Context) error {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		return fail(c, http.StatusBadRequest, "invalid user id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	d, err := h.Profiles.ToggleDoctorActive(ctx, userID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "failed to update doctor status")
	}
	if d == nil {
		return fail(c, http.StatusNotFound, "Doctor not found.")
	}
	message := "Doctor deactivated."
	if d.IsActive {
		message = "Doctor activated."
	}
	return respond(c, http.StatusOK, message, doctorPayload(d))
}

type verifyReq struct {
	Status string `json:"status"` // VERIFIED | REJECTED
	Notes  string `json:"notes"`
}

func parseVerifyReq(c echo.Context) (model.VerificationStatus, string, error) {
	var req verifyReq
	if err := c.Bind(&req); err != nil {
		return "", "", err
	}
	status := model.VerificationStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if status != model.VerificationVerified && status != model.VerificationRejected {
		return "", "", echo.NewHTTPError(http.StatusBadRequest, "status must be VERIFIED or REJECTED")
	}
	return status, req.Notes, nil
}

// VerifyDoctor sets a doctor's verification outcome.  VERIFIED activates the
// profile and the account; REJECTED deactivates both.
func (h *AdminHandler) VerifyDoctor(c echo.Context) error {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		return fail(c, http.StatusBadRequest, "invalid user id")
	}
	status, notes, err := parseVerifyReq(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "status must be VERIFIED or REJECTED")
	}
	adminID, _ := c.Get("user_id").(string)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	d, err := h.Profiles.SetDoctorVerification(ctx, userID, status, notes, adminID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "failed to update verification")
	}
	if d == nil {
		return fail(c, http.StatusNotFound, "Doctor not found.")
	}
	return respond(c, http.StatusOK, "Doctor verification updated.", doctorPayload(d))
}

// VerifyLab mirrors VerifyDoctor for labs.
func (h *AdminHandler) VerifyLab(c echo.Context) error {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		return fail(c, http.StatusBadRequest, "invalid user id")
	}
	status, notes, err := parseVerifyReq(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "status must be VERIFIED or REJECTED")
	}
	adminID, _ := c.Get("user_id").(string)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	l, err := h.Profiles.SetLabVerification(ctx, userID, status, notes, adminID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "failed to update verification")
	}
	if l == nil {
		return fail(c, http.StatusNotFound, "Lab not found.")
	}
	return respond(c, http.StatusOK, "Lab verification updated.", labPayload(l))
}

// PendingApprovalsCount reports how many doctor and lab profiles await
// review.
func (h *AdminHandler) PendingApprovalsCount(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	doctors, labs, err := h.Profiles.CountPendingApprovals(ctx)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "failed to count pending approvals")
	}
	return respond(c, http.StatusOK, "Pending approvals counted.", echo.Map{
		"pending_doctors": doctors,
		"pending_labs":    labs,
		"total":           doctors + labs,
	})
}
