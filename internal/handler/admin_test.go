package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehealth-platform/identity-service/internal/model"
)

// fakeAdminStore applies the same activation coupling the repository's
// transactions do, so handler tests can assert the full decision outcome.
type fakeAdminStore struct {
	doctors  map[string]*model.Doctor
	labs     map[string]*model.Lab
	patients map[int64]*model.Patient
	accounts map[string]bool // user_id -> is_active mirror
}

func newFakeAdminStore() *fakeAdminStore {
	return &fakeAdminStore{
		doctors:  map[string]*model.Doctor{},
		labs:     map[string]*model.Lab{},
		patients: map[int64]*model.Patient{},
		accounts: map[string]bool{},
	}
}

func (f *fakeAdminStore) ListPatients(context.Context) ([]*model.Patient, error) {
	out := make([]*model.Patient, 0, len(f.patients))
	for _, p := range f.patients {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeAdminStore) ListDoctors(context.Context) ([]*model.Doctor, error) {
	out := make([]*model.Doctor, 0, len(f.doctors))
	for _, d := range f.doctors {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeAdminStore) ListLabs(context.Context) ([]*model.Lab, error) {
	out := make([]*model.Lab, 0, len(f.labs))
	for _, l := range f.labs {
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeAdminStore) TogglePatientActive(_ context.Context, patientID int64) (*model.Patient, error) {
	p, ok := f.patients[patientID]
	if !ok {
		return nil, nil
	}
	p.IsActive = !p.IsActive
	f.accounts[p.UserID] = p.IsActive
	return p, nil
}

func (f *fakeAdminStore) ToggleDoctorActive(_ context.Context, userID string) (*model.Doctor, error) {
	d, ok := f.doctors[userID]
	if !ok {
		return nil, nil
	}
	d.IsActive = !d.IsActive
	f.accounts[userID] = d.IsActive
	return d, nil
}

func (f *fakeAdminStore) SetDoctorVerification(_ context.Context, userID string, status model.VerificationStatus, notes, verifiedBy string) (*model.Doctor, error) {
	d, ok := f.doctors[userID]
	if !ok {
		return nil, nil
	}
	now := time.Now().UTC()
	d.VerificationStatus = status
	d.VerificationNotes = notes
	d.VerifiedBy = verifiedBy
	d.VerifiedAt = &now
	d.IsActive = status == model.VerificationVerified
	f.accounts[userID] = d.IsActive
	return d, nil
}

func (f *fakeAdminStore) SetLabVerification(_ context.Context, userID string, status model.VerificationStatus, notes, verifiedBy string) (*model.Lab, error) {
	l, ok := f.labs[userID]
	if !ok {
		return nil, nil
	}
	now := time.Now().UTC()
	l.VerificationStatus = status
	l.VerificationNotes = notes
	l.VerifiedBy = verifiedBy
	l.VerifiedAt = &now
	l.IsActive = status == model.VerificationVerified
	f.accounts[userID] = l.IsActive
	return l, nil
}

func (f *fakeAdminStore) CountPendingApprovals(context.Context) (int, int, error) {
	doctors, labs := 0, 0
	for _, d := range f.doctors {
		if d.VerificationStatus == model.VerificationPending {
			doctors++
		}
	}
	for _, l := range f.labs {
		if l.VerificationStatus == model.VerificationPending {
			labs++
		}
	}
	return doctors, labs, nil
}

func adminRequest(t *testing.T, h echo.HandlerFunc, method, path, body string, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", "admin-1")
	for k, v := range params {
		c.SetParamNames(k)
		c.SetParamValues(v)
	}
	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func pendingDoctor(userID string) *model.Doctor {
	return &model.Doctor{
		UserID:             userID,
		FullName:           "Dr. Example",
		PhoneNumber:        "9000000001",
		RegistrationNumber: "MCI-12345",
		VerificationStatus: model.VerificationPending,
		IsActive:           true,
	}
}

func TestVerifyDoctorVerifiedActivates(t *testing.T) {
	store := newFakeAdminStore()
	store.doctors["doc-1"] = pendingDoctor("doc-1")
	store.accounts["doc-1"] = true
	h := NewAdminHandler(store)

	rec := adminRequest(t, h.VerifyDoctor, http.MethodPost, "/api/admin/doctors/doc-1/verify",
		`{"status":"VERIFIED","notes":"credentials check out"}`,
		map[string]string{"user_id": "doc-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	d := store.doctors["doc-1"]
	if d.VerificationStatus != model.VerificationVerified || !d.IsActive {
		t.Errorf("doctor = status %q active %v, want VERIFIED/active", d.VerificationStatus, d.IsActive)
	}
	if !store.accounts["doc-1"] {
		t.Error("owning account not activated alongside the profile")
	}
	if d.VerifiedBy != "admin-1" || d.VerifiedAt == nil {
		t.Errorf("audit fields = by %q at %v", d.VerifiedBy, d.VerifiedAt)
	}
}

func TestVerifyDoctorRejectedDeactivates(t *testing.T) {
	store := newFakeAdminStore()
	store.doctors["doc-1"] = pendingDoctor("doc-1")
	store.accounts["doc-1"] = true
	h := NewAdminHandler(store)

	rec := adminRequest(t, h.VerifyDoctor, http.MethodPost, "/api/admin/doctors/doc-1/verify",
		`{"status":"REJECTED","notes":"registration mismatch"}`,
		map[string]string{"user_id": "doc-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	d := store.doctors["doc-1"]
	if d.VerificationStatus != model.VerificationRejected || d.IsActive {
		t.Errorf("doctor = status %q active %v, want REJECTED/inactive", d.VerificationStatus, d.IsActive)
	}
	if store.accounts["doc-1"] {
		t.Error("owning account not deactivated alongside the profile")
	}
}

func TestVerifyDoctorRejectsBadStatus(t *testing.T) {
	store := newFakeAdminStore()
	store.doctors["doc-1"] = pendingDoctor("doc-1")
	h := NewAdminHandler(store)

	rec := adminRequest(t, h.VerifyDoctor, http.MethodPost, "/api/admin/doctors/doc-1/verify",
		`{"status":"MAYBE"}`, map[string]string{"user_id": "doc-1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if store.doctors["doc-1"].VerificationStatus != model.VerificationPending {
		t.Error("invalid status must not change the profile")
	}
}

func TestVerifyDoctorUnknown(t *testing.T) {
	h := NewAdminHandler(newFakeAdminStore())
	rec := adminRequest(t, h.VerifyDoctor, http.MethodPost, "/api/admin/doctors/ghost/verify",
		`{"status":"VERIFIED"}`, map[string]string{"user_id": "ghost"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestVerifyLabRejectedDeactivates(t *testing.T) {
	store := newFakeAdminStore()
	store.labs["lab-1"] = &model.Lab{
		UserID:             "lab-1",
		LabName:            "Example Labs",
		VerificationStatus: model.VerificationPending,
		IsActive:           true,
	}
	store.accounts["lab-1"] = true
	h := NewAdminHandler(store)

	rec := adminRequest(t, h.VerifyLab, http.MethodPost, "/api/admin/labs/lab-1/verify",
		`{"status":"REJECTED","notes":"expired license"}`,
		map[string]string{"user_id": "lab-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	l := store.labs["lab-1"]
	if l.VerificationStatus != model.VerificationRejected || l.IsActive || store.accounts["lab-1"] {
		t.Errorf("lab = status %q active %v account %v, want REJECTED/inactive/inactive",
			l.VerificationStatus, l.IsActive, store.accounts["lab-1"])
	}
}

func TestToggleDoctorStatusMirrorsAccount(t *testing.T) {
	store := newFakeAdminStore()
	d := pendingDoctor("doc-1")
	store.doctors["doc-1"] = d
	store.accounts["doc-1"] = true
	h := NewAdminHandler(store)

	rec := adminRequest(t, h.ToggleDoctorStatus, http.MethodPatch, "/api/admin/doctors/doc-1/status",
		"", map[string]string{"user_id": "doc-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if d.IsActive || store.accounts["doc-1"] {
		t.Error("toggle did not deactivate both the profile and the account")
	}

	rec = adminRequest(t, h.ToggleDoctorStatus, http.MethodPatch, "/api/admin/doctors/doc-1/status",
		"", map[string]string{"user_id": "doc-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !d.IsActive || !store.accounts["doc-1"] {
		t.Error("second toggle did not reactivate both rows")
	}
}

func TestTogglePatientStatusMirrorsAccount(t *testing.T) {
	store := newFakeAdminStore()
	store.patients[7] = &model.Patient{PatientID: 7, UserID: "u-9", FullName: "Pat", IsActive: true}
	store.accounts["u-9"] = true
	h := NewAdminHandler(store)

	rec := adminRequest(t, h.TogglePatientStatus, http.MethodPatch, "/api/admin/patients/7/status",
		"", map[string]string{"patient_id": "7"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if store.patients[7].IsActive || store.accounts["u-9"] {
		t.Error("toggle did not deactivate both the profile and the account")
	}
}

func TestTogglePatientStatusBadID(t *testing.T) {
	h := NewAdminHandler(newFakeAdminStore())
	rec := adminRequest(t, h.TogglePatientStatus, http.MethodPatch, "/api/admin/patients/x/status",
		"", map[string]string{"patient_id": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
