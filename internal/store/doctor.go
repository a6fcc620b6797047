package store

import (
	"context"

	"oncotrack-api/internal/model"
)

const doctorCols = `id, user_id, specialization, license_number, years_of_experience`

func scanDoctor(row interface{ Scan(dest ...any) error }) (*model.Doctor, error) {
	d := &model.Doctor{}
	err := row.Scan(&d.ID, &d.UserID, &d.Specialization, &d.LicenseNumber, &d.YearsOfExperience)
	if err != nil {
		return nil, wrap(err)
	}
	return d, nil
}

func (s *Store) DoctorByID(ctx context.Context, id string) (*model.Doctor, error) {
	return scanDoctor(s.pool.QueryRow(ctx,
		`SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
}

func (s *Store) DoctorByUserID(ctx context.Context, userID string) (*model.Doctor, error) {
	return scanDoctor(s.pool.QueryRow(ctx,
		`SELECT `+doctorCols+` FROM doctors WHERE user_id = $1`, userID))
}
