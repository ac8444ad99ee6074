package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ehealth-platform/identity-service/internal/model"
)

// ProfileRepo is the profile store: patient/doctor/lab rows plus the
// registration transactions that create an account and its profile as one
// atomic unit.  An account is never left without its role profile.
type ProfileRepo struct{ DB *sql.DB }

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{DB: db} }

// ----- registration transactions -----

// CreatePatientAccount inserts the user and patient rows in one transaction;
// a failing profile insert rolls the account back too.
func (r *ProfileRepo) CreatePatientAccount(ctx context.Context, u *model.User, p *model.Patient) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertUser(ctx, tx, u); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO patients (user_id, full_name, mobile, date_of_birth, gender,
		                       blood_group, address, city, state, pincode, is_active)
		 VALUES (?,?,?,?,?,?,?,?,?,?,1)`,
		u.ID, p.FullName, nullable(p.Mobile), nullable(p.DateOfBirth), nullable(p.Gender),
		nullable(p.BloodGroup), nullable(p.Address), nullable(p.City), nullable(p.State),
		nullable(p.Pincode))
	if err != nil {
		return mapDuplicate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.PatientID = id
	p.UserID = u.ID
	p.IsActive = true
	return tx.Commit()
}

// CreateDoctorAccount inserts the user and doctor rows atomically.  Doctors
// start PENDING; the account itself stays active so the doctor can log in
// while awaiting verification.
func (r *ProfileRepo) CreateDoctorAccount(ctx context.Context, u *model.User, d *model.Doctor) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertUser(ctx, tx, u); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO doctors (user_id, full_name, phone_number, registration_number,
		                      experience_years, consultation_fee, verification_status, is_active)
		 VALUES (?,?,?,?,?,?,?,1)`,
		u.ID, d.FullName, d.PhoneNumber, d.RegistrationNumber,
		d.ExperienceYears, d.ConsultationFee, model.VerificationPending)
	if err != nil {
		return mapDuplicate(err)
	}
	d.UserID = u.ID
	d.VerificationStatus = model.VerificationPending
	d.IsActive = true
	return tx.Commit()
}

// CreateLabAccount inserts the user and lab rows atomically.
func (r *ProfileRepo) CreateLabAccount(ctx context.Context, u *model.User, l *model.Lab) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertUser(ctx, tx, u); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO labs (user_id, lab_name, license_number, address, city, state,
		                   pincode, phone_number, verification_status, is_active)
		 VALUES (?,?,?,?,?,?,?,?,?,1)`,
		u.ID, l.LabName, nullable(l.LicenseNumber), l.Address, l.City, l.State,
		l.Pincode, nullable(l.PhoneNumber), model.VerificationPending)
	if err != nil {
		return mapDuplicate(err)
	}
	l.UserID = u.ID
	l.VerificationStatus = model.VerificationPending
	l.IsActive = true
	return tx.Commit()
}

// ----- lookups -----

const patientColumns = `patient_id, user_id, full_name, mobile, date_of_birth, gender,
	blood_group, address, city, state, pincode, is_active, created_at, updated_at`

func scanPatient(row rowScanner) (*model.Patient, error) {
	var p model.Patient
	var mobile, dob, gender, blood, address, city, state, pin sql.NullString
	err := row.Scan(&p.PatientID, &p.UserID, &p.FullName, &mobile, &dob, &gender,
		&blood, &address, &city, &state, &pin, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Mobile, p.DateOfBirth, p.Gender, p.BloodGroup = mobile.String, dob.String, gender.String, blood.String
	p.Address, p.City, p.State, p.Pincode = address.String, city.String, state.String, pin.String
	return &p, nil
}

const doctorColumns = `user_id, full_name, phone_number, registration_number,
	experience_years, consultation_fee, verification_status, verification_notes,
	verified_by, verified_at, is_active, created_at, updated_at`

func scanDoctor(row rowScanner) (*model.Doctor, error) {
	var (
		d          model.Doctor
		fee        sql.NullFloat64
		notes      sql.NullString
		verifiedBy sql.NullString
		verifiedAt sql.NullTime
	)
	err := row.Scan(&d.UserID, &d.FullName, &d.PhoneNumber, &d.RegistrationNumber,
		&d.ExperienceYears, &fee, &d.VerificationStatus, &notes,
		&verifiedBy, &verifiedAt, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.ConsultationFee = fee.Float64
	d.VerificationNotes = notes.String
	d.VerifiedBy = verifiedBy.String
	if verifiedAt.Valid {
		t := verifiedAt.Time
		d.VerifiedAt = &t
	}
	return &d, nil
}

const labColumns = `user_id, lab_name, license_number, address, city, state, pincode,
	phone_number, verification_status, verification_notes, verified_by, verified_at,
	is_active, created_at, updated_at`

func scanLab(row rowScanner) (*model.Lab, error) {
	var (
		l          model.Lab
		license    sql.NullString
		phone      sql.NullString
		notes      sql.NullString
		verifiedBy sql.NullString
		verifiedAt sql.NullTime
	)
	err := row.Scan(&l.UserID, &l.LabName, &license, &l.Address, &l.City, &l.State,
		&l.Pincode, &phone, &l.VerificationStatus, &notes, &verifiedBy, &verifiedAt,
		&l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.LicenseNumber = license.String
	l.PhoneNumber = phone.String
	l.VerificationNotes = notes.String
	l.VerifiedBy = verifiedBy.String
	if verifiedAt.Valid {
		t := verifiedAt.Time
		l.VerifiedAt = &t
	}
	return &l, nil
}

func (r *ProfileRepo) FindPatientByUserID(ctx context.Context, userID string) (*model.Patient, error) {
	p, err := scanPatient(r.DB.QueryRowContext(ctx,
		"SELECT "+patientColumns+" FROM patients WHERE user_id=? LIMIT 1", userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *ProfileRepo) FindPatientByID(ctx context.Context, patientID int64) (*model.Patient, error) {
	p, err := scanPatient(r.DB.QueryRowContext(ctx,
		"SELECT "+patientColumns+" FROM patients WHERE patient_id=? LIMIT 1", patientID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *ProfileRepo) FindDoctorByUserID(ctx context.Context, userID string) (*model.Doctor, error) {
	d, err := scanDoctor(r.DB.QueryRowContext(ctx,
		"SELECT "+doctorColumns+" FROM doctors WHERE user_id=? LIMIT 1", userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

func (r *ProfileRepo) FindLabByUserID(ctx context.Context, userID string) (*model.Lab, error) {
	l, err := scanLab(r.DB.QueryRowContext(ctx,
		"SELECT "+labColumns+" FROM labs WHERE user_id=? LIMIT 1", userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

// ----- profile updates (thin glue over the stored rows) -----

func (r *ProfileRepo) UpdatePatient(ctx context.Context, p *model.Patient) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE patients SET full_name=?, mobile=?, date_of_birth=?, gender=?, blood_group=?,
		        address=?, city=?, state=?, pincode=?
		  WHERE patient_id=?`,
		p.FullName, nullable(p.Mobile), nullable(p.DateOfBirth), nullable(p.Gender),
		nullable(p.BloodGroup), nullable(p.Address), nullable(p.City), nullable(p.State),
		nullable(p.Pincode), p.PatientID)
	return mapDuplicate(err)
}

func (r *ProfileRepo) UpdateDoctor(ctx context.Context, d *model.Doctor) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE doctors SET full_name=?, phone_number=?, experience_years=?, consultation_fee=?
		  WHERE user_id=?`,
		d.FullName, d.PhoneNumber, d.ExperienceYears, d.ConsultationFee, d.UserID)
	return mapDuplicate(err)
}

func (r *ProfileRepo) UpdateLab(ctx context.Context, l *model.Lab) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE labs SET lab_name=?, address=?, city=?, state=?, pincode=?, phone_number=?
		  WHERE user_id=?`,
		l.LabName, l.Address, l.City, l.State, l.Pincode, nullable(l.PhoneNumber), l.UserID)
	return mapDuplicate(err)
}

// ----- admin lists -----

func (r *ProfileRepo) ListPatients(ctx context.Context) ([]*model.Patient, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+patientColumns+" FROM patients ORDER BY patient_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProfileRepo) ListDoctors(ctx context.Context) ([]*model.Doctor, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+doctorColumns+" FROM doctors ORDER BY full_name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *ProfileRepo) ListLabs(ctx context.Context) ([]*model.Lab, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+labColumns+" FROM labs ORDER BY lab_name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Lab
	for rows.Next() {
		l, err := scanLab(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ----- admin actions -----

// TogglePatientActive flips the patient's active flag and keeps the owning
// account's is_active in sync, inside one transaction with a row lock so
// concurrent toggles cannot cross.
func (r *ProfileRepo) TogglePatientActive(ctx context.Context, patientID int64) (*model.Patient, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	p, err := scanPatient(tx.QueryRowContext(ctx,
		"SELECT "+patientColumns+" FROM patients WHERE patient_id=? FOR UPDATE", patientID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.IsActive = !p.IsActive
	if _, err := tx.ExecContext(ctx,
		"UPDATE patients SET is_active=? WHERE patient_id=?", p.IsActive, patientID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE users SET is_active=? WHERE user_id=?", p.IsActive, p.UserID); err != nil {
		return nil, err
	}
	return p, tx.Commit()
}

// ToggleDoctorActive mirrors TogglePatientActive for doctors.
func (r *ProfileRepo) ToggleDoctorActive(ctx context.Context, userID string) (*model.Doctor, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	d, err := scanDoctor(tx.QueryRowContext(ctx,
		"SELECT "+doctorColumns+" FROM doctors WHERE user_id=? FOR UPDATE", userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.IsActive = !d.IsActive
	if _, err := tx.ExecContext(ctx,
		"UPDATE doctors SET is_active=? WHERE user_id=?", d.IsActive, userID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE users SET is_active=? WHERE user_id=?", d.IsActive, userID); err != nil {
		return nil, err
	}
	return d, tx.Commit()
}

// SetDoctorVerification records an admin decision.  VERIFIED activates both
// the profile and the account; REJECTED deactivates both.  The audit fields
// (verified_by, verified_at, notes) are stamped either way.
func (r *ProfileRepo) SetDoctorVerification(ctx context.Context, userID string, status model.VerificationStatus, notes, verifiedBy string) (*model.Doctor, error) {
	active := status == model.VerificationVerified

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE doctors SET verification_status=?, verification_notes=?, verified_by=?,
		        verified_at=UTC_TIMESTAMP(), is_active=?
		  WHERE user_id=?`,
		status, notes, verifiedBy, active, userID)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, nil
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE users SET is_active=? WHERE user_id=?", active, userID); err != nil {
		return nil, err
	}
	d, err := scanDoctor(tx.QueryRowContext(ctx,
		"SELECT "+doctorColumns+" FROM doctors WHERE user_id=?", userID))
	if err != nil {
		return nil, err
	}
	return d, tx.Commit()
}

// SetLabVerification mirrors SetDoctorVerification for labs.
func (r *ProfileRepo) SetLabVerification(ctx context.Context, userID string, status model.VerificationStatus, notes, verifiedBy string) (*model.Lab, error) {
	active := status == model.VerificationVerified

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE labs SET verification_status=?, verification_notes=?, verified_by=?,
		        verified_at=UTC_TIMESTAMP(), is_active=?
		  WHERE user_id=?`,
		status, notes, verifiedBy, active, userID)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, nil
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE users SET is_active=? WHERE user_id=?", active, userID); err != nil {
		return nil, err
	}
	l, err := scanLab(tx.QueryRowContext(ctx,
		"SELECT "+labColumns+" FROM labs WHERE user_id=?", userID))
	if err != nil {
		return nil, err
	}
	return l, tx.Commit()
}

// CountPendingApprovals reports how many doctors and labs await verification.
func (r *ProfileRepo) CountPendingApprovals(ctx context.Context) (doctors, labs int, err error) {
	if err = r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM doctors WHERE verification_status=?",
		model.VerificationPending).Scan(&doctors); err != nil {
		return 0, 0, err
	}
	if err = r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM labs WHERE verification_status=?",
		model.VerificationPending).Scan(&labs); err != nil {
		return 0, 0, err
	}
	return doctors, labs, nil
}
