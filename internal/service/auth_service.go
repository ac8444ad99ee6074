package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehealth-platform/identity-service/internal/model"
	"github.com/ehealth-platform/identity-service/internal/queue"
	"github.com/ehealth-platform/identity-service/internal/utils"
)

// verificationTTL is how long an email confirmation link stays valid.
const verificationTTL = 24 * time.Hour

// UserDirectory is the account lookup/mutation surface the session manager
// needs.  Absent accounts come back as (nil, nil).
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	RecordFailedAttempt(ctx context.Context, id string, threshold int, lockFor time.Duration) (bool, error)
	RecordSuccess(ctx context.Context, id string) error
	SetEmailVerified(ctx context.Context, id string) error
}

// TokenStore is the durable refresh-token bookkeeping surface.
type TokenStore interface {
	Store(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	Consume(ctx context.Context, tokenHash string) (string, bool, error)
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// VerificationStore holds single-use email confirmation tokens.
type VerificationStore interface {
	Create(ctx context.Context, userID, token string, expiresAt time.Time) error
	Find(ctx context.Context, token string) (*model.EmailVerification, error)
	MarkUsed(ctx context.Context, id int64) error
	DeleteUnusedForUser(ctx context.Context, userID string) error
}

// ProfileStore creates account+profile pairs atomically and serves the
// role-specific profile for login responses.
type ProfileStore interface {
	CreatePatientAccount(ctx context.Context, u *model.User, p *model.Patient) error
	CreateDoctorAccount(ctx context.Context, u *model.User, d *model.Doctor) error
	CreateLabAccount(ctx context.Context, u *model.User, l *model.Lab) error
	FindPatientByUserID(ctx context.Context, userID string) (*model.Patient, error)
	FindDoctorByUserID(ctx context.Context, userID string) (*model.Doctor, error)
	FindLabByUserID(ctx context.Context, userID string) (*model.Lab, error)
}

// IdentityVerifier validates an externally-issued identity assertion.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*GoogleIdentity, error)
}

// VerificationMailer hands a verification email job to the email
// collaborator.
type VerificationMailer interface {
	SendVerification(ctx context.Context, ev queue.VerificationEmailEvent) error
}

// TokenPair is what a successful login, registration or refresh yields.  The
// access token goes in the response body; the refresh token travels only in
// the protected cookie channel.
type TokenPair struct {
	AccessToken    string
	AccessExpires  time.Time
	RefreshToken   string
	RefreshExpires time.Time
}

// AuthService orchestrates the session lifecycle: login, refresh with
// rotation, logout, registration and external-identity sign-in.
type AuthService struct {
	Users         UserDirectory
	Tokens        TokenStore
	Verifications VerificationStore
	Profiles      ProfileStore
	Codec         utils.TokenCodec
	Policy        Policy
	Verifier      IdentityVerifier
	Mailer        VerificationMailer
	BcryptCost    int
}

// issueTokens mints an access+refresh pair and persists the refresh hash.
func (s *AuthService) issueTokens(ctx context.Context, u *model.User) (TokenPair, error) {
	access, accessExp, err := s.Codec.IssueAccess(u.ID, u.Email, string(u.Role))
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.Codec.IssueRefresh(u.ID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.Tokens.Store(ctx, u.ID, utils.HashToken(refresh), refreshExp); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:    access,
		AccessExpires:  accessExp,
		RefreshToken:   refresh,
		RefreshExpires: refreshExp,
	}, nil
}

// Login authenticates an email/password pair.  Order matters: existence is
// hidden behind ErrInvalidCredentials, the lockout gate runs before the
// password is even checked, and only a successful match resets the
// failed-attempt counter.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.Users.FindByEmail(ctx, email)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if u == nil {
		return nil, TokenPair{}, ErrInvalidCredentials
	}

	if ls := s.Policy.CheckLockout(u); ls.Locked {
		return nil, TokenPair{}, &AccountLockedError{Until: ls.RetryAfter}
	}
	if ok, reason := s.Policy.CheckStatus(u); !ok {
		return nil, TokenPair{}, &AccountStateError{Reason: reason}
	}

	if u.PasswordHash == "" || !utils.VerifyPassword(u.PasswordHash, password) {
		lockedNow, ferr := s.Users.RecordFailedAttempt(ctx, u.ID, s.Policy.LockoutThreshold, s.Policy.LockoutDuration)
		if ferr != nil {
			return nil, TokenPair{}, ferr
		}
		if lockedNow {
			return nil, TokenPair{}, &AccountLockedError{
				Until:      time.Now().UTC().Add(s.Policy.LockoutDuration),
				JustLocked: true,
				LockedFor:  s.Policy.LockoutDuration,
			}
		}
		return nil, TokenPair{}, ErrInvalidCredentials
	}

	if err := s.Users.RecordSuccess(ctx, u.ID); err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// Refresh validates and rotates a refresh token.  The store consume is an
// atomic revoke-if-unrevoked: when two requests race on the same token only
// one wins, the other gets ErrInvalidRefreshToken.  A revoked token
// presented again is rejected the same way.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*model.User, TokenPair, error) {
	claims, err := s.Codec.Decode(rawToken, utils.TokenTypeRefresh)
	if err != nil {
		return nil, TokenPair{}, ErrInvalidRefreshToken
	}

	userID, ok, err := s.Tokens.Consume(ctx, utils.HashToken(rawToken))
	if err != nil {
		return nil, TokenPair{}, err
	}
	if !ok || userID != claims.UserID {
		return nil, TokenPair{}, ErrInvalidRefreshToken
	}

	u, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if u == nil {
		return nil, TokenPair{}, ErrInvalidRefreshToken
	}
	if ok, reason := s.Policy.CheckStatus(u); !ok {
		return nil, TokenPair{}, &AccountStateError{Reason: reason}
	}

	pair, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// Logout revokes the presented refresh token if there is one.  Revoke is
// idempotent, so logging out with a stale or unknown token still succeeds
// and leaks nothing about token validity.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	if strings.TrimSpace(rawToken) == "" {
		return nil
	}
	return s.Tokens.Revoke(ctx, utils.HashToken(rawToken))
}

// LogoutAll revokes every active session an account holds.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	return s.Tokens.RevokeAllForUser(ctx, userID)
}

// ----- registration -----

type RegisterPatientInput struct {
	Email       string
	Password    string
	FullName    string
	Mobile      string
	DateOfBirth string
	Gender      string
	BloodGroup  string
	Address     string
	City        string
	State       string
	Pincode     string
}

type RegisterDoctorInput struct {
	Email              string
	Password           string
	FullName           string
	PhoneNumber        string
	RegistrationNumber string
	ExperienceYears    float64
	ConsultationFee    float64
}

type RegisterLabInput struct {
	Email         string
	Password      string
	LabName       string
	LicenseNumber string
	Address       string
	City          string
	State         string
	Pincode       string
	PhoneNumber   string
}

func (s *AuthService) newAccount(email, password string, role model.Role) (*model.User, error) {
	hash := ""
	if password != "" {
		h, err := utils.HashPassword(password, s.BcryptCost)
		if err != nil {
			return nil, err
		}
		hash = h
	}
	return &model.User{
		ID:            uuid.NewString(),
		Email:         strings.ToLower(strings.TrimSpace(email)),
		PasswordHash:  hash,
		Role:          role,
		AccountStatus: model.StatusActive,
		IsActive:      true,
	}, nil
}

// sendVerification issues a 24h single-use token and hands the email job to
// the broker.  Delivery failures are logged, not fatal: the account exists
// either way and the client can ask for a resend.
func (s *AuthService) sendVerification(ctx context.Context, u *model.User) {
	token := uuid.NewString()
	expiresAt := time.Now().UTC().Add(verificationTTL)
	if err := s.Verifications.Create(ctx, u.ID, token, expiresAt); err != nil {
		log.Printf("auth: store verification token failed for %s: %v", u.Email, err)
		return
	}
	ev := queue.VerificationEmailEvent{
		UserID:      u.ID,
		Email:       u.Email,
		Token:       token,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.Mailer.SendVerification(ctx, ev); err != nil {
		log.Printf("auth: publish verification email failed for %s: %v", u.Email, err)
	}
}

// RegisterPatient creates the account and patient profile in one
// transaction, queues the verification email and signs the patient in.
func (s *AuthService) RegisterPatient(ctx context.Context, in RegisterPatientInput) (*model.User, *model.Patient, TokenPair, error) {
	u, err := s.newAccount(in.Email, in.Password, model.RolePatient)
	if err != nil {
		return nil, nil, TokenPair{}, err
	}
	p := &model.Patient{
		FullName:    in.FullName,
		Mobile:      in.Mobile,
		DateOfBirth: in.DateOfBirth,
		Gender:      in.Gender,
		BloodGroup:  in.BloodGroup,
		Address:     in.Address,
		City:        in.City,
		State:       in.State,
		Pincode:     in.Pincode,
	}
	if err := s.Profiles.CreatePatientAccount(ctx, u, p); err != nil {
		return nil, nil, TokenPair{}, err
	}
	s.sendVerification(ctx, u)
	pair, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, nil, TokenPair{}, err
	}
	return u, p, pair, nil
}

// RegisterDoctor creates the account and a PENDING doctor profile.  The
// account can log in while pending; serving capability is gated at the
// profile layer until an admin verifies.
func (s *AuthService) RegisterDoctor(ctx context.Context, in RegisterDoctorInput) (*model.User, *model.Doctor, TokenPair, error) {
	u, err := s.newAccount(in.Email, in.Password, model.RoleDoctor)
	if err != nil {
		return nil, nil, TokenPair{}, err
	}
	d := &model.Doctor{
		FullName:           in.FullName,
		PhoneNumber:        in.PhoneNumber,
		RegistrationNumber: in.RegistrationNumber,
		ExperienceYears:    in.ExperienceYears,
		ConsultationFee:    in.ConsultationFee,
	}
	if err := s.Profiles.CreateDoctorAccount(ctx, u, d); err != nil {
		return nil, nil, TokenPair{}, err
	}
	s.sendVerification(ctx, u)
	pair, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, nil, TokenPair{}, err
	}
	return u, d, pair, nil
}

// RegisterLab mirrors RegisterDoctor for labs.
func (s *AuthService) RegisterLab(ctx context.Context, in RegisterLabInput) (*model.User, *model.Lab, TokenPair, error) {
	u, err := s.newAccount(in.Email, in.Password, model.RoleLab)
	if err != nil {
		return nil, nil, TokenPair{}, err
	}
	l := &model.Lab{
		LabName:       in.LabName,
		LicenseNumber: in.LicenseNumber,
		Address:       in.Address,
		City:          in.City,
		State:         in.State,
		Pincode:       in.Pincode,
		PhoneNumber:   in.PhoneNumber,
	}
	if err := s.Profiles.CreateLabAccount(ctx, u, l); err != nil {
		return nil, nil, TokenPair{}, err
	}
	s.sendVerification(ctx, u)
	pair, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, nil, TokenPair{}, err
	}
	return u, l, pair, nil
}

// GoogleAuth signs a user in with a Google-issued ID token.  An email match
// always wins over creating a new identity; unknown emails become PATIENT
// accounts with the email pre-verified and no password credential.
func (s *AuthService) GoogleAuth(ctx context.Context, idToken string) (*model.User, TokenPair, bool, error) {
	ident, err := s.Verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, TokenPair{}, false, fmt.Errorf("%w: %v", ErrIdentityVerification, err)
	}

	u, err := s.Users.FindByEmail(ctx, ident.Email)
	if err != nil {
		return nil, TokenPair{}, false, err
	}
	if u != nil {
		// A locked account stays locked regardless of how the caller
		// authenticates; external sign-in must not bypass the window.
		if ls := s.Policy.CheckLockout(u); ls.Locked {
			return nil, TokenPair{}, false, &AccountLockedError{Until: ls.RetryAfter}
		}
		if ok, reason := s.Policy.CheckStatus(u); !ok {
			return nil, TokenPair{}, false, &AccountStateError{Reason: reason}
		}
		if err := s.Users.RecordSuccess(ctx, u.ID); err != nil {
			return nil, TokenPair{}, false, err
		}
		pair, err := s.issueTokens(ctx, u)
		if err != nil {
			return nil, TokenPair{}, false, err
		}
		return u, pair, false, nil
	}

	u, err = s.newAccount(ident.Email, "", model.RolePatient)
	if err != nil {
		return nil, TokenPair{}, false, err
	}
	u.EmailVerified = true
	u.OAuthProvider = "google"
	u.OAuthProviderID = ident.Subject
	p := &model.Patient{FullName: ident.Name}
	if p.FullName == "" {
		p.FullName = ident.Email
	}
	if err := s.Profiles.CreatePatientAccount(ctx, u, p); err != nil {
		return nil, TokenPair{}, false, err
	}
	pair, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, false, err
	}
	return u, pair, true, nil
}

// ----- email verification -----

// VerifyEmail consumes a confirmation token.  "Already used" and "expired"
// fail distinctly; a used token never reports expired even when it is both.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	v, err := s.Verifications.Find(ctx, token)
	if err != nil {
		return err
	}
	if v == nil || v.IsUsed {
		return ErrVerificationNotFound
	}
	if time.Now().UTC().After(v.ExpiresAt) {
		return ErrVerificationExpired
	}
	if err := s.Users.SetEmailVerified(ctx, v.UserID); err != nil {
		return err
	}
	return s.Verifications.MarkUsed(ctx, v.ID)
}

// ResendVerification discards pending tokens and issues a fresh one.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	u, err := s.Users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrUserNotFound
	}
	if u.EmailVerified {
		return ErrEmailAlreadyVerified
	}
	if err := s.Verifications.DeleteUnusedForUser(ctx, u.ID); err != nil {
		return err
	}
	token := uuid.NewString()
	expiresAt := time.Now().UTC().Add(verificationTTL)
	if err := s.Verifications.Create(ctx, u.ID, token, expiresAt); err != nil {
		return err
	}
	return s.Mailer.SendVerification(ctx, queue.VerificationEmailEvent{
		UserID:      u.ID,
		Email:       u.Email,
		Token:       token,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	})
}
