package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehealth-platform/identity-service/internal/model"
	"github.com/ehealth-platform/identity-service/internal/utils"
)

type stubUsers struct {
	byID map[string]*model.User
}

func (s *stubUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	return s.byID[id], nil
}

func testCodec() utils.TokenCodec {
	return utils.TokenCodec{
		Secret:     "test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}
}

func activeUser(id string) *model.User {
	return &model.User{
		ID:            id,
		Email:         id + "@example.com",
		Role:          model.RolePatient,
		AccountStatus: model.StatusActive,
		IsActive:      true,
	}
}

// runJWT sends a request through JWTAuth into a terminal handler that records
// what landed on the context.
func runJWT(t *testing.T, codec utils.TokenCodec, users UserLookup, authHeader string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := JWTAuth(codec, users)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec, c
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	codec := testCodec()
	users := &stubUsers{byID: map[string]*model.User{"u-1": activeUser("u-1")}}
	token, _, err := codec.IssueAccess("u-1", "u-1@example.com", "PATIENT")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	rec, c := runJWT(t, codec, users, "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if got, _ := c.Get("user_id").(string); got != "u-1" {
		t.Errorf("context user_id = %q, want u-1", got)
	}
	if got, _ := c.Get("role").(string); got != "PATIENT" {
		t.Errorf("context role = %q, want PATIENT", got)
	}
	if u, _ := c.Get("user").(*model.User); u == nil || u.ID != "u-1" {
		t.Errorf("context user = %+v", c.Get("user"))
	}
}

func TestJWTAuthRejectsMissingHeader(t *testing.T) {
	codec := testCodec()
	users := &stubUsers{byID: map[string]*model.User{}}
	rec, _ := runJWT(t, codec, users, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestJWTAuthRejectsMalformedHeader(t *testing.T) {
	codec := testCodec()
	users := &stubUsers{byID: map[string]*model.User{}}
	rec, _ := runJWT(t, codec, users, "Token abc123")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestJWTAuthRejectsRefreshToken(t *testing.T) {
	codec := testCodec()
	users := &stubUsers{byID: map[string]*model.User{"u-1": activeUser("u-1")}}
	refresh, _, err := codec.IssueRefresh("u-1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	rec, _ := runJWT(t, codec, users, "Bearer "+refresh)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestJWTAuthRejectsDeactivatedUser(t *testing.T) {
	codec := testCodec()
	u := activeUser("u-1")
	u.IsActive = false
	users := &stubUsers{byID: map[string]*model.User{"u-1": u}}
	token, _, err := codec.IssueAccess("u-1", u.Email, string(u.Role))
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	rec, _ := runJWT(t, codec, users, "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestJWTAuthRejectsSuspendedUser(t *testing.T) {
	codec := testCodec()
	u := activeUser("u-1")
	u.AccountStatus = model.StatusSuspended
	users := &stubUsers{byID: map[string]*model.User{"u-1": u}}
	token, _, err := codec.IssueAccess("u-1", u.Email, string(u.Role))
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	rec, _ := runJWT(t, codec, users, "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestJWTAuthRejectsUnknownSubject(t *testing.T) {
	codec := testCodec()
	users := &stubUsers{byID: map[string]*model.User{}}
	token, _, err := codec.IssueAccess("ghost", "ghost@example.com", "PATIENT")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	rec, _ := runJWT(t, codec, users, "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	run := func(role interface{}, allowed ...model.Role) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if role != nil {
			c.Set("role", role)
		}
		h := RequireRole(allowed...)(func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		})
		if err := h(c); err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		return rec.Code
	}

	if code := run("ADMIN", model.RoleAdmin, model.RoleStaff); code != http.StatusOK {
		t.Errorf("admin on admin route: status = %d, want 200", code)
	}
	if code := run("PATIENT", model.RoleAdmin, model.RoleStaff); code != http.StatusForbidden {
		t.Errorf("patient on admin route: status = %d, want 403", code)
	}
	if code := run(nil, model.RoleAdmin); code != http.StatusForbidden {
		t.Errorf("missing role: status = %d, want 403", code)
	}
}
