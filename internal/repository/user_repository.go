package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/ehealth-platform/identity-service/internal/model"
)

// UserRepo is the user directory: lookups plus the few account-security
// mutation points (failed-attempt counter, lockout, verification flags).
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `user_id, email, password_hash, role, account_status, is_active,
	email_verified, oauth_provider, oauth_provider_id, failed_login_attempts,
	lockout_until, last_login_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u             model.User
		passwordHash  sql.NullString
		oauthProvider sql.NullString
		oauthID       sql.NullString
		lockoutUntil  sql.NullTime
		lastLoginAt   sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &passwordHash, &u.Role, &u.AccountStatus,
		&u.IsActive, &u.EmailVerified, &oauthProvider, &oauthID,
		&u.FailedLoginAttempts, &lockoutUntil, &lastLoginAt,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = passwordHash.String
	u.OAuthProvider = oauthProvider.String
	u.OAuthProviderID = oauthID.String
	if lockoutUntil.Valid {
		t := lockoutUntil.Time
		u.LockoutUntil = &t
	}
	if lastLoginAt.Valid {
		t := lastLoginAt.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

// FindByEmail fetches a user by normalized email.  Absence is an ordinary
// branch: (nil, nil), never an error.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// FindByID fetches a user by id; (nil, nil) when absent.
func (r *UserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE user_id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// RecordFailedAttempt bumps the failed-login counter and arms the lockout
// window when the counter reaches the threshold, all in a single UPDATE so
// concurrent failures cannot lose increments.  The counter is deliberately
// NOT reset when the lock arms; only RecordSuccess clears it, so a failure
// right after the window expires re-locks immediately.
func (r *UserRepo) RecordFailedAttempt(ctx context.Context, id string, threshold int, lockFor time.Duration) (bool, error) {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users
		    SET lockout_until = IF(failed_login_attempts + 1 >= ?,
		                           DATE_ADD(UTC_TIMESTAMP(), INTERVAL ? SECOND),
		                           lockout_until),
		        failed_login_attempts = failed_login_attempts + 1
		  WHERE user_id = ?`,
		threshold, int(lockFor.Seconds()), id)
	if err != nil {
		return false, err
	}
	var attempts int
	if err := r.DB.QueryRowContext(ctx,
		"SELECT failed_login_attempts FROM users WHERE user_id=?", id).Scan(&attempts); err != nil {
		return false, err
	}
	return attempts >= threshold, nil
}

// RecordSuccess is the only path that clears the failed-attempt counter.
func (r *UserRepo) RecordSuccess(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users
		    SET failed_login_attempts = 0,
		        lockout_until = NULL,
		        last_login_at = UTC_TIMESTAMP()
		  WHERE user_id = ?`, id)
	return err
}

// SetEmailVerified marks the account's email as confirmed.
func (r *UserRepo) SetEmailVerified(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email_verified=1 WHERE user_id=?", id)
	return err
}

// insertUser writes a new account row inside the caller's transaction.
// Nullable columns are stored as NULL rather than empty strings.
func insertUser(ctx context.Context, tx *sql.Tx, u *model.User) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO users (user_id, email, password_hash, role, account_status,
		                    is_active, email_verified, oauth_provider, oauth_provider_id)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		u.ID, u.Email, nullable(u.PasswordHash), u.Role, u.AccountStatus,
		u.IsActive, u.EmailVerified, nullable(u.OAuthProvider), nullable(u.OAuthProviderID))
	return mapDuplicate(err)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
