package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ehealth-platform/identity-service/internal/model"
	"github.com/ehealth-platform/identity-service/internal/queue"
	"github.com/ehealth-platform/identity-service/internal/utils"
)

// ----- in-memory fakes -----

type fakeUsers struct {
	byID map[string]*model.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]*model.User{}}
}

func (f *fakeUsers) add(u *model.User) { f.byID[u.ID] = u }

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	return f.byID[id], nil
}

func (f *fakeUsers) RecordFailedAttempt(_ context.Context, id string, threshold int, lockFor time.Duration) (bool, error) {
	u, ok := f.byID[id]
	if !ok {
		return false, errors.New("no such user")
	}
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= threshold {
		until := time.Now().UTC().Add(lockFor)
		u.LockoutUntil = &until
		return true, nil
	}
	return false, nil
}

func (f *fakeUsers) RecordSuccess(_ context.Context, id string) error {
	u, ok := f.byID[id]
	if !ok {
		return errors.New("no such user")
	}
	u.FailedLoginAttempts = 0
	u.LockoutUntil = nil
	now := time.Now().UTC()
	u.LastLoginAt = &now
	return nil
}

func (f *fakeUsers) SetEmailVerified(_ context.Context, id string) error {
	u, ok := f.byID[id]
	if !ok {
		return errors.New("no such user")
	}
	u.EmailVerified = true
	return nil
}

type tokenRow struct {
	userID    string
	expiresAt time.Time
	revoked   bool
}

type fakeTokens struct {
	rows map[string]*tokenRow
}

func newFakeTokens() *fakeTokens { return &fakeTokens{rows: map[string]*tokenRow{}} }

func (f *fakeTokens) Store(_ context.Context, userID, tokenHash string, expiresAt time.Time) error {
	f.rows[tokenHash] = &tokenRow{userID: userID, expiresAt: expiresAt}
	return nil
}

func (f *fakeTokens) Consume(_ context.Context, tokenHash string) (string, bool, error) {
	row, ok := f.rows[tokenHash]
	if !ok || row.revoked || time.Now().UTC().After(row.expiresAt) {
		return "", false, nil
	}
	row.revoked = true
	return row.userID, true, nil
}

func (f *fakeTokens) Revoke(_ context.Context, tokenHash string) error {
	if row, ok := f.rows[tokenHash]; ok {
		row.revoked = true
	}
	return nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID string) error {
	for _, row := range f.rows {
		if row.userID == userID {
			row.revoked = true
		}
	}
	return nil
}

func (f *fakeTokens) activeCount(userID string) int {
	n := 0
	for _, row := range f.rows {
		if row.userID == userID && !row.revoked {
			n++
		}
	}
	return n
}

type fakeVerifications struct {
	nextID int64
	rows   []*model.EmailVerification
}

func (f *fakeVerifications) Create(_ context.Context, userID, token string, expiresAt time.Time) error {
	f.nextID++
	f.rows = append(f.rows, &model.EmailVerification{
		ID:        f.nextID,
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (f *fakeVerifications) Find(_ context.Context, token string) (*model.EmailVerification, error) {
	for _, v := range f.rows {
		if v.Token == token {
			return v, nil
		}
	}
	return nil, nil
}

func (f *fakeVerifications) MarkUsed(_ context.Context, id int64) error {
	for _, v := range f.rows {
		if v.ID == id {
			v.IsUsed = true
			return nil
		}
	}
	return errors.New("no such verification")
}

func (f *fakeVerifications) DeleteUnusedForUser(_ context.Context, userID string) error {
	kept := f.rows[:0]
	for _, v := range f.rows {
		if v.UserID != userID || v.IsUsed {
			kept = append(kept, v)
		}
	}
	f.rows = kept
	return nil
}

type fakeProfiles struct {
	users    *fakeUsers
	patients map[string]*model.Patient
	doctors  map[string]*model.Doctor
	labs     map[string]*model.Lab
}

func newFakeProfiles(users *fakeUsers) *fakeProfiles {
	return &fakeProfiles{
		users:    users,
		patients: map[string]*model.Patient{},
		doctors:  map[string]*model.Doctor{},
		labs:     map[string]*model.Lab{},
	}
}

func (f *fakeProfiles) CreatePatientAccount(_ context.Context, u *model.User, p *model.Patient) error {
	f.users.add(u)
	p.UserID = u.ID
	p.PatientID = int64(len(f.patients) + 1)
	p.IsActive = true
	f.patients[u.ID] = p
	return nil
}

func (f *fakeProfiles) CreateDoctorAccount(_ context.Context, u *model.User, d *model.Doctor) error {
	f.users.add(u)
	d.UserID = u.ID
	d.VerificationStatus = model.VerificationPending
	d.IsActive = true
	f.doctors[u.ID] = d
	return nil
}

func (f *fakeProfiles) CreateLabAccount(_ context.Context, u *model.User, l *model.Lab) error {
	f.users.add(u)
	l.UserID = u.ID
	l.VerificationStatus = model.VerificationPending
	l.IsActive = true
	f.labs[u.ID] = l
	return nil
}

func (f *fakeProfiles) FindPatientByUserID(_ context.Context, userID string) (*model.Patient, error) {
	return f.patients[userID], nil
}

func (f *fakeProfiles) FindDoctorByUserID(_ context.Context, userID string) (*model.Doctor, error) {
	return f.doctors[userID], nil
}

func (f *fakeProfiles) FindLabByUserID(_ context.Context, userID string) (*model.Lab, error) {
	return f.labs[userID], nil
}

type fakeVerifier struct {
	ident *GoogleIdentity
	err   error
}

func (f *fakeVerifier) Verify(context.Context, string) (*GoogleIdentity, error) {
	return f.ident, f.err
}

type fakeMailer struct {
	sent []queue.VerificationEmailEvent
}

func (f *fakeMailer) SendVerification(_ context.Context, ev queue.VerificationEmailEvent) error {
	f.sent = append(f.sent, ev)
	return nil
}

// ----- harness -----

type authFixture struct {
	svc           *AuthService
	users         *fakeUsers
	tokens        *fakeTokens
	verifications *fakeVerifications
	profiles      *fakeProfiles
	verifier      *fakeVerifier
	mailer        *fakeMailer
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	users := newFakeUsers()
	tokens := newFakeTokens()
	verifications := &fakeVerifications{}
	profiles := newFakeProfiles(users)
	verifier := &fakeVerifier{}
	mailer := &fakeMailer{}

	svc := &AuthService{
		Users:         users,
		Tokens:        tokens,
		Verifications: verifications,
		Profiles:      profiles,
		Codec: utils.TokenCodec{
			Secret:     "test-secret",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 24 * time.Hour,
		},
		Policy:     Policy{LockoutThreshold: 3, LockoutDuration: 30 * time.Minute},
		Verifier:   verifier,
		Mailer:     mailer,
		BcryptCost: 4, // minimum cost keeps the suite fast
	}
	return &authFixture{
		svc:           svc,
		users:         users,
		tokens:        tokens,
		verifications: verifications,
		profiles:      profiles,
		verifier:      verifier,
		mailer:        mailer,
	}
}

func (f *authFixture) addUser(t *testing.T, id, email, password string) *model.User {
	t.Helper()
	hash := ""
	if password != "" {
		h, err := utils.HashPassword(password, 4)
		if err != nil {
			t.Fatalf("hash password: %v", err)
		}
		hash = h
	}
	u := &model.User{
		ID:            id,
		Email:         email,
		PasswordHash:  hash,
		Role:          model.RolePatient,
		AccountStatus: model.StatusActive,
		IsActive:      true,
	}
	f.users.add(u)
	return u
}

// ----- login -----

func TestLoginSuccess(t *testing.T) {
	f := newAuthFixture(t)
	u := f.addUser(t, "u-1", "alice@example.com", "correct horse")
	u.FailedLoginAttempts = 2

	got, pair, err := f.svc.Login(context.Background(), "  Alice@Example.COM ", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != "u-1" {
		t.Errorf("user id = %q, want u-1", got.ID)
	}
	if got.FailedLoginAttempts != 0 {
		t.Error("successful login must reset the attempt counter")
	}
	if got.LastLoginAt == nil {
		t.Error("successful login must stamp last_login_at")
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if f.tokens.activeCount("u-1") != 1 {
		t.Errorf("active refresh tokens = %d, want 1", f.tokens.activeCount("u-1"))
	}

	claims, err := f.svc.Codec.Decode(pair.AccessToken, utils.TokenTypeAccess)
	if err != nil {
		t.Fatalf("decode issued access token: %v", err)
	}
	if claims.UserID != "u-1" || claims.Role != "PATIENT" {
		t.Errorf("access claims = %+v", claims)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	f := newAuthFixture(t)
	_, _, err := f.svc.Login(context.Background(), "nobody@example.com", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginWrongPasswordCountsAndLocks(t *testing.T) {
	f := newAuthFixture(t)
	u := f.addUser(t, "u-1", "alice@example.com", "correct horse")

	for i := 1; i < f.svc.Policy.LockoutThreshold; i++ {
		_, _, err := f.svc.Login(context.Background(), "alice@example.com", "wrong")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: err = %v, want ErrInvalidCredentials", i, err)
		}
	}
	if u.FailedLoginAttempts != f.svc.Policy.LockoutThreshold-1 {
		t.Fatalf("counter = %d, want %d", u.FailedLoginAttempts, f.svc.Policy.LockoutThreshold-1)
	}

	// The attempt that crosses the threshold arms the lock.
	_, _, err := f.svc.Login(context.Background(), "alice@example.com", "wrong")
	var locked *AccountLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("err = %v, want AccountLockedError", err)
	}
	if !locked.JustLocked {
		t.Error("threshold-crossing failure should report JustLocked")
	}
	if u.LockoutUntil == nil {
		t.Fatal("lockout_until not armed")
	}
}

func TestLoginLockedRejectsCorrectPassword(t *testing.T) {
	f := newAuthFixture(t)
	u := f.addUser(t, "u-1", "alice@example.com", "correct horse")
	until := time.Now().UTC().Add(10 * time.Minute)
	u.LockoutUntil = &until
	u.FailedLoginAttempts = 3

	_, _, err := f.svc.Login(context.Background(), "alice@example.com", "correct horse")
	var locked *AccountLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("err = %v, want AccountLockedError", err)
	}
	if locked.JustLocked {
		t.Error("pre-existing lockout must not report JustLocked")
	}
	if u.FailedLoginAttempts != 3 {
		t.Error("locked-out attempt must not touch the counter")
	}
}

func TestLoginRelocksAfterExpiredWindow(t *testing.T) {
	f := newAuthFixture(t)
	u := f.addUser(t, "u-1", "alice@example.com", "correct horse")
	expired := time.Now().UTC().Add(-time.Minute)
	u.LockoutUntil = &expired
	u.FailedLoginAttempts = f.svc.Policy.LockoutThreshold - 1

	// An expired window unlocks the account but keeps the counter, so the
	// very next failure crosses the threshold again.
	_, _, err := f.svc.Login(context.Background(), "alice@example.com", "wrong")
	var locked *AccountLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("err = %v, want AccountLockedError", err)
	}
	if !locked.JustLocked {
		t.Error("re-lock after an expired window should report JustLocked")
	}
	if u.LockoutUntil == nil || !u.LockoutUntil.After(time.Now().UTC()) {
		t.Error("lockout window not re-armed into the future")
	}
}

func TestLoginSuspendedAccount(t *testing.T) {
	f := newAuthFixture(t)
	u := f.addUser(t, "u-1", "alice@example.com", "correct horse")
	u.AccountStatus = model.StatusSuspended

	_, _, err := f.svc.Login(context.Background(), "alice@example.com", "correct horse")
	var state *AccountStateError
	if !errors.As(err, &state) {
		t.Fatalf("err = %v, want AccountStateError", err)
	}
	if state.Reason != "Your account has been suspended. Please contact support." {
		t.Errorf("reason = %q", state.Reason)
	}
}

func TestLoginOAuthOnlyAccountRejectsPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "u-1", "alice@example.com", "")

	_, _, err := f.svc.Login(context.Background(), "alice@example.com", "anything")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

// ----- refresh -----

func TestRefreshRotatesToken(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "u-1", "alice@example.com", "pw-irrelevant")
	_, pair, err := f.svc.Login(context.Background(), "alice@example.com", "pw-irrelevant")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	_, next, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Error("refresh must rotate the token")
	}
	if f.tokens.activeCount("u-1") != 1 {
		t.Errorf("active tokens after rotation = %d, want 1", f.tokens.activeCount("u-1"))
	}

	// The consumed token is dead; presenting it again must fail.
	if _, _, err := f.svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("reuse err = %v, want ErrInvalidRefreshToken", err)
	}

	// The rotated token still works.
	if _, _, err := f.svc.Refresh(context.Background(), next.RefreshToken); err != nil {
		t.Errorf("rotated token rejected: %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "u-1", "alice@example.com", "pw")
	_, pair, err := f.svc.Login(context.Background(), "alice@example.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, _, err := f.svc.Refresh(context.Background(), pair.AccessToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("err = %v, want ErrInvalidRefreshToken", err)
	}
}

func TestRefreshRejectsGarbage(t *testing.T) {
	f := newAuthFixture(t)
	if _, _, err := f.svc.Refresh(context.Background(), "not-a-token"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("err = %v, want ErrInvalidRefreshToken", err)
	}
}

// ----- logout -----

func TestLogoutRevokesAndIsIdempotent(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "u-1", "alice@example.com", "pw")
	_, pair, err := f.svc.Login(context.Background(), "alice@example.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := f.svc.Logout(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if f.tokens.activeCount("u-1") != 0 {
		t.Error("logout did not revoke the refresh token")
	}
	if _, _, err := f.svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("refresh after logout = %v, want ErrInvalidRefreshToken", err)
	}

	// Second logout with the same (now dead) token still succeeds.
	if err := f.svc.Logout(context.Background(), pair.RefreshToken); err != nil {
		t.Errorf("repeated Logout: %v", err)
	}
	if err := f.svc.Logout(context.Background(), ""); err != nil {
		t.Errorf("empty-token Logout: %v", err)
	}
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "u-1", "alice@example.com", "pw")
	for i := 0; i < 3; i++ {
		if _, _, err := f.svc.Login(context.Background(), "alice@example.com", "pw"); err != nil {
			t.Fatalf("Login %d: %v", i, err)
		}
	}
	if f.tokens.activeCount("u-1") != 3 {
		t.Fatalf("active sessions = %d, want 3", f.tokens.activeCount("u-1"))
	}

	if err := f.svc.LogoutAll(context.Background(), "u-1"); err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	if f.tokens.activeCount("u-1") != 0 {
		t.Errorf("active sessions after LogoutAll = %d, want 0", f.tokens.activeCount("u-1"))
	}
}

// ----- registration + email verification -----

func TestRegisterPatientIssuesVerification(t *testing.T) {
	f := newAuthFixture(t)
	u, p, pair, err := f.svc.RegisterPatient(context.Background(), RegisterPatientInput{
		Email:    "New.Patient@Example.com",
		Password: "strong password",
		FullName: "New Patient",
		Mobile:   "9876543210",
	})
	if err != nil {
		t.Fatalf("RegisterPatient: %v", err)
	}
	if u.Email != "new.patient@example.com" {
		t.Errorf("email not normalized: %q", u.Email)
	}
	if u.Role != model.RolePatient || u.EmailVerified {
		t.Errorf("unexpected account state: %+v", u)
	}
	if p.UserID != u.ID {
		t.Error("profile not linked to account")
	}
	if pair.AccessToken == "" {
		t.Error("registration should sign the patient in")
	}

	if len(f.mailer.sent) != 1 {
		t.Fatalf("verification emails sent = %d, want 1", len(f.mailer.sent))
	}
	ev := f.mailer.sent[0]
	if ev.UserID != u.ID || ev.Email != u.Email || ev.Token == "" {
		t.Errorf("bad event: %+v", ev)
	}

	v, err := f.verifications.Find(context.Background(), ev.Token)
	if err != nil || v == nil {
		t.Fatalf("verification row missing: %v", err)
	}
	ttl := time.Until(v.ExpiresAt)
	if ttl < 23*time.Hour || ttl > 25*time.Hour {
		t.Errorf("verification ttl = %v, want ~24h", ttl)
	}

	// Consume the token once.
	if err := f.svc.VerifyEmail(context.Background(), ev.Token); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if !u.EmailVerified {
		t.Error("email not marked verified")
	}
	// A second consume fails as used, not as expired.
	if err := f.svc.VerifyEmail(context.Background(), ev.Token); !errors.Is(err, ErrVerificationNotFound) {
		t.Errorf("second VerifyEmail = %v, want ErrVerificationNotFound", err)
	}
}

func TestVerifyEmailExpiredToken(t *testing.T) {
	f := newAuthFixture(t)
	u := f.addUser(t, "u-1", "alice@example.com", "pw")
	_ = f.verifications.Create(context.Background(), u.ID, "stale-token", time.Now().UTC().Add(-time.Hour))

	if err := f.svc.VerifyEmail(context.Background(), "stale-token"); !errors.Is(err, ErrVerificationExpired) {
		t.Errorf("err = %v, want ErrVerificationExpired", err)
	}
	if u.EmailVerified {
		t.Error("expired token must not verify the email")
	}
}

func TestVerifyEmailUnknownToken(t *testing.T) {
	f := newAuthFixture(t)
	if err := f.svc.VerifyEmail(context.Background(), "no-such-token"); !errors.Is(err, ErrVerificationNotFound) {
		t.Errorf("err = %v, want ErrVerificationNotFound", err)
	}
}

func TestRegisterDoctorStartsPending(t *testing.T) {
	f := newAuthFixture(t)
	u, d, _, err := f.svc.RegisterDoctor(context.Background(), RegisterDoctorInput{
		Email:              "doc@example.com",
		Password:           "strong password",
		FullName:           "Dr. Example",
		PhoneNumber:        "9000000001",
		RegistrationNumber: "MCI-12345",
		ExperienceYears:    8,
		ConsultationFee:    500,
	})
	if err != nil {
		t.Fatalf("RegisterDoctor: %v", err)
	}
	if u.Role != model.RoleDoctor {
		t.Errorf("role = %q, want DOCTOR", u.Role)
	}
	if d.VerificationStatus != model.VerificationPending {
		t.Errorf("verification status = %q, want PENDING", d.VerificationStatus)
	}

	// A pending doctor can still log in.
	if _, _, err := f.svc.Login(context.Background(), "doc@example.com", "strong password"); err != nil {
		t.Errorf("pending doctor login: %v", err)
	}
}

func TestResendVerification(t *testing.T) {
	f := newAuthFixture(t)

	t.Run("unknown email", func(t *testing.T) {
		err := f.svc.ResendVerification(context.Background(), "nobody@example.com")
		if !errors.Is(err, ErrUserNotFound) {
			t.Errorf("err = %v, want ErrUserNotFound", err)
		}
	})

	t.Run("already verified", func(t *testing.T) {
		u := f.addUser(t, "u-1", "done@example.com", "pw")
		u.EmailVerified = true
		err := f.svc.ResendVerification(context.Background(), "done@example.com")
		if !errors.Is(err, ErrEmailAlreadyVerified) {
			t.Errorf("err = %v, want ErrEmailAlreadyVerified", err)
		}
	})

	t.Run("reissues and invalidates old token", func(t *testing.T) {
		u := f.addUser(t, "u-2", "pending@example.com", "pw")
		_ = f.verifications.Create(context.Background(), u.ID, "old-token", time.Now().UTC().Add(time.Hour))

		if err := f.svc.ResendVerification(context.Background(), "pending@example.com"); err != nil {
			t.Fatalf("ResendVerification: %v", err)
		}
		if old, _ := f.verifications.Find(context.Background(), "old-token"); old != nil {
			t.Error("old unused token should be discarded")
		}
		if len(f.mailer.sent) == 0 {
			t.Fatal("no verification email queued")
		}
		last := f.mailer.sent[len(f.mailer.sent)-1]
		if last.UserID != u.ID {
			t.Errorf("event user = %q, want %q", last.UserID, u.ID)
		}
	})
}

// ----- google sign-in -----

func TestGoogleAuthExistingAccount(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "u-1", "alice@example.com", "pw")
	f.verifier.ident = &GoogleIdentity{Subject: "g-123", Email: "alice@example.com", Name: "Alice"}

	u, pair, created, err := f.svc.GoogleAuth(context.Background(), "id-token")
	if err != nil {
		t.Fatalf("GoogleAuth: %v", err)
	}
	if created {
		t.Error("existing email must log in, not create")
	}
	if u.ID != "u-1" || pair.AccessToken == "" {
		t.Errorf("unexpected result: user=%+v", u)
	}
}

func TestGoogleAuthCreatesPatient(t *testing.T) {
	f := newAuthFixture(t)
	f.verifier.ident = &GoogleIdentity{Subject: "g-456", Email: "fresh@example.com", Name: "Fresh User", EmailVerified: true}

	u, _, created, err := f.svc.GoogleAuth(context.Background(), "id-token")
	if err != nil {
		t.Fatalf("GoogleAuth: %v", err)
	}
	if !created {
		t.Fatal("unknown email should create an account")
	}
	if u.Role != model.RolePatient {
		t.Errorf("role = %q, want PATIENT", u.Role)
	}
	if !u.EmailVerified {
		t.Error("google accounts arrive with the email verified")
	}
	if u.PasswordHash != "" {
		t.Error("google accounts must not carry a password credential")
	}
	if u.OAuthProvider != "google" || u.OAuthProviderID != "g-456" {
		t.Errorf("oauth linkage = %q/%q", u.OAuthProvider, u.OAuthProviderID)
	}
	p, _ := f.profiles.FindPatientByUserID(context.Background(), u.ID)
	if p == nil || p.FullName != "Fresh User" {
		t.Errorf("patient profile = %+v", p)
	}

	// Password login against the OAuth-only account fails.
	if _, _, err := f.svc.Login(context.Background(), "fresh@example.com", "guess"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("password login on oauth account = %v, want ErrInvalidCredentials", err)
	}
}

func TestGoogleAuthVerifierFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.verifier.err = errors.New("bad token")

	_, _, _, err := f.svc.GoogleAuth(context.Background(), "id-token")
	if !errors.Is(err, ErrIdentityVerification) {
		t.Errorf("err = %v, want ErrIdentityVerification", err)
	}
}

func TestGoogleAuthSuspendedAccount(t *testing.T) {
	f := newAuthFixture(t)
	u := f.addUser(t, "u-1", "alice@example.com", "pw")
	u.AccountStatus = model.StatusSuspended
	f.verifier.ident = &GoogleIdentity{Subject: "g-123", Email: "alice@example.com"}

	_, _, _, err := f.svc.GoogleAuth(context.Background(), "id-token")
	var state *AccountStateError
	if !errors.As(err, &state) {
		t.Errorf("err = %v, want AccountStateError", err)
	}
}

func TestGoogleAuthLockedAccount(t *testing.T) {
	f := newAuthFixture(t)
	u := f.addUser(t, "u-1", "alice@example.com", "pw")
	until := time.Now().UTC().Add(10 * time.Minute)
	u.LockoutUntil = &until
	u.FailedLoginAttempts = 3
	f.verifier.ident = &GoogleIdentity{Subject: "g-123", Email: "alice@example.com"}

	_, _, _, err := f.svc.GoogleAuth(context.Background(), "id-token")
	var locked *AccountLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("err = %v, want AccountLockedError", err)
	}
	if u.FailedLoginAttempts != 3 {
		t.Error("rejected sign-in must not touch the counter")
	}
}
