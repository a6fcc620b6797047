package store

import (
	"context"

	"oncotrack-api/internal/model"
)

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, first_name, last_name, role, date_of_birth, address)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.DateOfBirth, u.Address,
	)
	return wrap(err)
}

// CreateDoctorAccount inserts the user and its doctor record in one tx;
// registration is all-or-nothing.
func (s *Store) CreateDoctorAccount(ctx context.Context, u *model.User, d *model.Doctor) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, first_name, last_name, role, date_of_birth, address)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.DateOfBirth, u.Address,
	)
	if err != nil {
		return wrap(err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO doctors (id, user_id, specialization, license_number, years_of_experience)
		 VALUES ($1,$2,$3,$4,$5)`,
		d.ID, d.UserID, d.Specialization, d.LicenseNumber, d.YearsOfExperience,
	)
	if err != nil {
		return wrap(err)
	}

	return tx.Commit(ctx)
}

// CreatePatientAccount is the patient-side twin of CreateDoctorAccount.
func (s *Store) CreatePatientAccount(ctx context.Context, u *model.User, p *model.Patient) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, first_name, last_name, role, date_of_birth, address)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.DateOfBirth, u.Address,
	)
	if err != nil {
		return wrap(err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO patients (id, user_id, cancer_type, stage, diagnosis_date)
		 VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.UserID, p.CancerType, p.Stage, p.DiagnosisDate,
	)
	if err != nil {
		return wrap(err)
	}

	return tx.Commit(ctx)
}

const userCols = `id, email, password_hash, first_name, last_name, role, date_of_birth, address, created_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Role, &u.DateOfBirth, &u.Address, &u.CreatedAt)
	if err != nil {
		return nil, wrap(err)
	}
	return u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE email = $1`, email))
}

func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1`, id))
}
