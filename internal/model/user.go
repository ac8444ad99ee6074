package model

import "time"

// Role identifies which kind of actor an account belongs to.  Roles are
// fixed at registration and are never self-service mutable.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleStaff   Role = "STAFF"
	RoleDoctor  Role = "DOCTOR"
	RolePatient Role = "PATIENT"
	RoleLab     Role = "LAB"
)

// AccountStatus is the administrative state of an account.  DELETED is a
// status, never a row removal.
type AccountStatus string

const (
	StatusActive    AccountStatus = "ACTIVE"
	StatusInactive  AccountStatus = "INACTIVE"
	StatusSuspended AccountStatus = "SUSPENDED"
	StatusDeleted   AccountStatus = "DELETED"
)

// User mirrors the 'users' table.  PasswordHash is empty for OAuth-only
// accounts.  LockoutUntil and LastLoginAt are NULL until first set.
type User struct {
	ID                  string
	Email               string
	PasswordHash        string
	Role                Role
	AccountStatus       AccountStatus
	IsActive            bool
	EmailVerified       bool
	OAuthProvider       string
	OAuthProviderID     string
	FailedLoginAttempts int
	LockoutUntil        *time.Time
	LastLoginAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
