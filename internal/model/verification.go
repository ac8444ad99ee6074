package model

import "time"

// EmailVerification mirrors the 'email_verification_table'.  Tokens are
// single-use: once IsUsed flips true it stays true, and a second presentation
// fails as "already used" rather than "expired".
type EmailVerification struct {
	ID        int64
	UserID    string
	Token     string
	ExpiresAt time.Time
	IsUsed    bool
	CreatedAt time.Time
}
