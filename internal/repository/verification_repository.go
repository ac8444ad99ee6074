package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ehealth-platform/identity-service/internal/model"
)

// VerificationRepo stores single-use email confirmation tokens.
type VerificationRepo struct{ DB *sql.DB }

func NewVerificationRepo(db *sql.DB) *VerificationRepo { return &VerificationRepo{DB: db} }

// Create inserts a fresh unused token row.
func (r *VerificationRepo) Create(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO email_verification_table (user_id, token, expires_at, is_used) VALUES (?,?,?,0)",
		userID, token, expiresAt)
	return err
}

// Find fetches a verification record by token string, used or not; the
// caller distinguishes "used" from "expired".  (nil, nil) when absent.
func (r *VerificationRepo) Find(ctx context.Context, token string) (*model.EmailVerification, error) {
	var v model.EmailVerification
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, token, expires_at, is_used, created_at FROM email_verification_table WHERE token=? LIMIT 1",
		token).Scan(&v.ID, &v.UserID, &v.Token, &v.ExpiresAt, &v.IsUsed, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// MarkUsed permanently consumes a token.
func (r *VerificationRepo) MarkUsed(ctx context.Context, id int64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE email_verification_table SET is_used=1 WHERE id=?", id)
	return err
}

// DeleteUnusedForUser discards pending tokens before a resend so only the
// newest link works.
func (r *VerificationRepo) DeleteUnusedForUser(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM email_verification_table WHERE user_id=? AND is_used=0", userID)
	return err
}
