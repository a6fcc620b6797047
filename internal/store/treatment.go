package store

import (
	"context"

	"oncotrack-api/internal/model"
)

func (s *Store) CreateTreatmentUpdate(ctx context.Context, u *model.TreatmentUpdate) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO treatment_updates (id, patient_id, update_type, description, notes, update_date, created_by)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.PatientID, u.UpdateType, u.Description, u.Notes, u.UpdateDate, u.CreatedBy,
	)
	return wrap(err)
}

// TreatmentUpdatesByPatient returns the full history, newest first.
// Ties on update_date break on id so pagination and dashboards stay
// stable across reads.
func (s *Store) TreatmentUpdatesByPatient(ctx context.Context, patientID string) ([]model.TreatmentUpdate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, patient_id, update_type, description, notes, update_date, created_by
		 FROM treatment_updates
		 WHERE patient_id = $1
		 ORDER BY update_date DESC, id`, patientID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TreatmentUpdate
	for rows.Next() {
		var u model.TreatmentUpdate
		if err := rows.Scan(&u.ID, &u.PatientID, &u.UpdateType, &u.Description,
			&u.Notes, &u.UpdateDate, &u.CreatedBy); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
