package store

import (
	"context"
	"time"

	"oncotrack-api/internal/model"
)

const medCols = `id, patient_id, name, dosage, frequency, start_date, end_date,
	side_effects, prescribed_by, is_active`

func scanMedication(row interface{ Scan(dest ...any) error }) (*model.Medication, error) {
	m := &model.Medication{}
	err := row.Scan(&m.ID, &m.PatientID, &m.Name, &m.Dosage, &m.Frequency, &m.StartDate,
		&m.EndDate, &m.SideEffects, &m.PrescribedBy, &m.IsActive)
	if err != nil {
		return nil, wrap(err)
	}
	return m, nil
}

func (s *Store) CreateMedication(ctx context.Context, m *model.Medication) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO medications (id, patient_id, name, dosage, frequency, start_date, end_date, side_effects, prescribed_by, is_active)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		m.ID, m.PatientID, m.Name, m.Dosage, m.Frequency, m.StartDate, m.EndDate,
		m.SideEffects, m.PrescribedBy, m.IsActive,
	)
	return wrap(err)
}

func (s *Store) MedicationByID(ctx context.Context, id string) (*model.Medication, error) {
	return scanMedication(s.pool.QueryRow(ctx,
		`SELECT `+medCols+` FROM medications WHERE id = $1`, id))
}

func (s *Store) UpdateMedication(ctx context.Context, m *model.Medication) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE medications
		 SET name=$2, dosage=$3, frequency=$4, start_date=$5, end_date=$6, side_effects=$7, is_active=$8
		 WHERE id=$1`,
		m.ID, m.Name, m.Dosage, m.Frequency, m.StartDate, m.EndDate, m.SideEffects, m.IsActive,
	)
	if err != nil {
		return wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateMedication clears the active flag and closes the course at
// the given time.
func (s *Store) DeactivateMedication(ctx context.Context, id string, endedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE medications SET is_active=false, end_date=$2 WHERE id=$1`,
		id, endedAt,
	)
	if err != nil {
		return wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MedicationsByPatient lists the full medication history, most recently
// started first.
func (s *Store) MedicationsByPatient(ctx context.Context, patientID string) ([]model.Medication, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+medCols+` FROM medications
		 WHERE patient_id = $1
		 ORDER BY start_date DESC, id`, patientID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Medication
	for rows.Next() {
		var m model.Medication
		if err := rows.Scan(&m.ID, &m.PatientID, &m.Name, &m.Dosage, &m.Frequency, &m.StartDate,
			&m.EndDate, &m.SideEffects, &m.PrescribedBy, &m.IsActive); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
