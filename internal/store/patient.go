package store

import (
	"context"

	"oncotrack-api/internal/model"
)

const patientCols = `p.id, p.user_id, p.cancer_type, p.stage, p.diagnosis_date, p.assigned_doctor_id`

func scanPatient(row interface{ Scan(dest ...any) error }) (*model.Patient, error) {
	p := &model.Patient{}
	err := row.Scan(&p.ID, &p.UserID, &p.CancerType, &p.Stage, &p.DiagnosisDate, &p.AssignedDoctorID)
	if err != nil {
		return nil, wrap(err)
	}
	return p, nil
}

func (s *Store) PatientByID(ctx context.Context, id string) (*model.Patient, error) {
	return scanPatient(s.pool.QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients p WHERE p.id = $1`, id))
}

func (s *Store) PatientByUserID(ctx context.Context, userID string) (*model.Patient, error) {
	return scanPatient(s.pool.QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients p WHERE p.user_id = $1`, userID))
}

func (s *Store) listPatientsWithUser(ctx context.Context, where string, args ...any) ([]model.PatientWithUser, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+patientCols+`, u.first_name, u.last_name
		 FROM patients p JOIN users u ON u.id = p.user_id
		 `+where+`
		 ORDER BY u.last_name, u.first_name, p.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PatientWithUser
	for rows.Next() {
		var p model.PatientWithUser
		if err := rows.Scan(&p.ID, &p.UserID, &p.CancerType, &p.Stage, &p.DiagnosisDate,
			&p.AssignedDoctorID, &p.FirstName, &p.LastName); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) PatientsByDoctor(ctx context.Context, doctorID string) ([]model.PatientWithUser, error) {
	return s.listPatientsWithUser(ctx, `WHERE p.assigned_doctor_id = $1`, doctorID)
}

func (s *Store) UnassignedPatients(ctx context.Context) ([]model.PatientWithUser, error) {
	return s.listPatientsWithUser(ctx, `WHERE p.assigned_doctor_id IS NULL`)
}

// AssignDoctor claims an unassigned patient. The WHERE guard keeps two
// doctors from claiming the same patient concurrently.
func (s *Store) AssignDoctor(ctx context.Context, patientID, doctorID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE patients SET assigned_doctor_id = $2
		 WHERE id = $1 AND assigned_doctor_id IS NULL`,
		patientID, doctorID,
	)
	if err != nil {
		return wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}
	return nil
}
