// Package queue defines message payloads exchanged over the message broker.
package queue

// VerificationQueue is the durable queue carrying verification email jobs.
const VerificationQueue = "user.verification"

// VerificationEmailEvent is published when a registration or a resend needs
// a verification email delivered.  It carries enough for the consumer to
// render and send the mail without querying the primary database.
type VerificationEmailEvent struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Token       string `json:"token"`
	ExpiresAt   string `json:"expires_at"`
	RequestedAt string `json:"requested_at"`
}
