package store

import (
	"context"
	"time"

	"oncotrack-api/internal/model"
)

const apptCols = `id, patient_id, doctor_id, appointment_date, appointment_type,
	notes, status, doctor_name, created_at, updated_at`

func scanAppointment(row interface{ Scan(dest ...any) error }) (*model.Appointment, error) {
	a := &model.Appointment{}
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.AppointmentDate, &a.AppointmentType,
		&a.Notes, &a.Status, &a.DoctorName, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, wrap(err)
	}
	return a, nil
}

// CreateAppointment inserts the appointment. The partial unique index on
// (doctor_id, appointment_date) over Pending/Approved rows is the
// serialization point for concurrent bookings: a race that passes the
// application-level check surfaces here as ErrDuplicate.
func (s *Store) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO appointments (id, patient_id, doctor_id, appointment_date, appointment_type, notes, status, doctor_name)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.PatientID, a.DoctorID, a.AppointmentDate, a.AppointmentType, a.Notes, a.Status, a.DoctorName,
	)
	return wrap(err)
}

// SlotTaken reports whether a Pending or Approved appointment already
// occupies the exact (doctorID, at) slot.
func (s *Store) SlotTaken(ctx context.Context, doctorID string, at time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
			  AND appointment_date = $2
			  AND status IN ('Pending','Approved'))`,
		doctorID, at,
	).Scan(&exists)
	return exists, err
}

func (s *Store) AppointmentByID(ctx context.Context, id string) (*model.Appointment, error) {
	return scanAppointment(s.pool.QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

// UpdateAppointment overwrites all mutable fields, status included.
func (s *Store) UpdateAppointment(ctx context.Context, a *model.Appointment) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE appointments
		 SET appointment_date=$2, appointment_type=$3, notes=$4, status=$5, updated_at=NOW()
		 WHERE id=$1`,
		a.ID, a.AppointmentDate, a.AppointmentType, a.Notes, a.Status,
	)
	if err != nil {
		return wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateAppointmentStatus(ctx context.Context, id string, status model.AppointmentStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE appointments SET status=$2, updated_at=NOW() WHERE id=$1`,
		id, status,
	)
	if err != nil {
		return wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) listAppointments(ctx context.Context, where string, args ...any) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apptCols+` FROM appointments
		 `+where+`
		 ORDER BY appointment_date, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		var a model.Appointment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.AppointmentDate, &a.AppointmentType,
			&a.Notes, &a.Status, &a.DoctorName, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) AppointmentsByPatient(ctx context.Context, patientID string) ([]model.Appointment, error) {
	return s.listAppointments(ctx, `WHERE patient_id = $1`, patientID)
}

func (s *Store) AppointmentsByDoctor(ctx context.Context, doctorID string, status model.AppointmentStatus) ([]model.Appointment, error) {
	if status == "" {
		return s.listAppointments(ctx, `WHERE doctor_id = $1`, doctorID)
	}
	return s.listAppointments(ctx, `WHERE doctor_id = $1 AND status = $2`, doctorID, status)
}

// OccupiedSlots returns the Pending/Approved appointment times for a
// doctor in [from, to).
func (s *Store) OccupiedSlots(ctx context.Context, doctorID string, from, to time.Time) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT appointment_date FROM appointments
		 WHERE doctor_id = $1
		   AND appointment_date >= $2 AND appointment_date < $3
		   AND status IN ('Pending','Approved')
		 ORDER BY appointment_date`, doctorID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountAppointments counts a doctor's appointments in the given status,
// optionally restricted to [from, to). Zero times skip the range filter.
func (s *Store) CountAppointments(ctx context.Context, doctorID string, status model.AppointmentStatus, from, to time.Time) (int, error) {
	q := `SELECT COUNT(*) FROM appointments WHERE doctor_id = $1 AND status = $2`
	args := []any{doctorID, status}
	if !from.IsZero() {
		q += ` AND appointment_date >= $3 AND appointment_date < $4`
		args = append(args, from, to)
	}
	var n int
	err := s.pool.QueryRow(ctx, q, args...).Scan(&n)
	return n, err
}
