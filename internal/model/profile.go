package model

import "time"

// VerificationStatus gates whether a doctor or lab may serve.  It is a
// profile-level state, distinct from the account-level active/suspended flags.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationRejected VerificationStatus = "REJECTED"
)

// Patient mirrors the 'patients' table.
type Patient struct {
	PatientID   int64
	UserID      string
	FullName    string
	Mobile      string
	DateOfBirth string
	Gender      string
	BloodGroup  string
	Address     string
	City        string
	State       string
	Pincode     string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Doctor mirrors the 'doctors' table.  Doctors are keyed by their owning
// account id and start life PENDING until an admin verifies them.
type Doctor struct {
	UserID             string
	FullName           string
	PhoneNumber        string
	RegistrationNumber string
	ExperienceYears    float64
	ConsultationFee    float64
	VerificationStatus VerificationStatus
	VerificationNotes  string
	VerifiedBy         string
	VerifiedAt         *time.Time
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Lab mirrors the 'labs' table.
type Lab struct {
	UserID             string
	LabName            string
	LicenseNumber      string
	Address            string
	City               string
	State              string
	Pincode            string
	PhoneNumber        string
	VerificationStatus VerificationStatus
	VerificationNotes  string
	VerifiedBy         string
	VerifiedAt         *time.Time
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
