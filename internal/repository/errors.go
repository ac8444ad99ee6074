package repository

import (
	"errors"
	"strings"
)

// Uniqueness violations surfaced per-field so handlers can answer 409 with
// the offending field named.
var (
	ErrEmailExists              = errors.New("email already exists")
	ErrMobileExists             = errors.New("mobile number already exists")
	ErrPhoneExists              = errors.New("phone number already exists")
	ErrRegistrationNumberExists = errors.New("registration number already exists")
	ErrLicenseExists            = errors.New("license number already exists")
	ErrDuplicate                = errors.New("duplicate entry")
)

// mapDuplicate translates a MySQL 1062 duplicate-key error into the matching
// per-field sentinel by inspecting the violated index name.  Non-duplicate
// errors pass through unchanged.
func mapDuplicate(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "1062") {
		return err
	}
	switch {
	case strings.Contains(msg, "email"):
		return ErrEmailExists
	case strings.Contains(msg, "mobile"):
		return ErrMobileExists
	case strings.Contains(msg, "registration"):
		return ErrRegistrationNumberExists
	case strings.Contains(msg, "license"):
		return ErrLicenseExists
	case strings.Contains(msg, "phone"):
		return ErrPhoneExists
	default:
		return ErrDuplicate
	}
}
