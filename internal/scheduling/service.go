// Package scheduling owns the appointment state machine: who may book
// which slot, and which status transitions a caller can drive.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"oncotrack-api/internal/model"
	"oncotrack-api/internal/policy"
	"oncotrack-api/internal/store"
)

var (
	ErrNotAssigned         = errors.New("doctor is not assigned to this patient")
	ErrPastDateTime        = errors.New("appointment time must be in the future")
	ErrOutOfWindow         = errors.New("appointment time is outside the bookable window")
	ErrSlotConflict        = errors.New("time slot is already taken")
	ErrInvalidTransition   = errors.New("appointment is not in a state that allows this transition")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrValidation          = errors.New("invalid appointment fields")
)

type UserStore interface {
	UserByID(ctx context.Context, id string) (*model.User, error)
}

type DoctorStore interface {
	DoctorByID(ctx context.Context, id string) (*model.Doctor, error)
	DoctorByUserID(ctx context.Context, userID string) (*model.Doctor, error)
}

type PatientStore interface {
	PatientByID(ctx context.Context, id string) (*model.Patient, error)
	PatientByUserID(ctx context.Context, userID string) (*model.Patient, error)
}

type AppointmentStore interface {
	CreateAppointment(ctx context.Context, a *model.Appointment) error
	AppointmentByID(ctx context.Context, id string) (*model.Appointment, error)
	SlotTaken(ctx context.Context, doctorID string, at time.Time) (bool, error)
	UpdateAppointment(ctx context.Context, a *model.Appointment) error
	UpdateAppointmentStatus(ctx context.Context, id string, status model.AppointmentStatus) error
	AppointmentsByPatient(ctx context.Context, patientID string) ([]model.Appointment, error)
	AppointmentsByDoctor(ctx context.Context, doctorID string, status model.AppointmentStatus) ([]model.Appointment, error)
	OccupiedSlots(ctx context.Context, doctorID string, from, to time.Time) ([]time.Time, error)
}

type Service struct {
	users    UserStore
	doctors  DoctorStore
	patients PatientStore
	appts    AppointmentStore
	log      zerolog.Logger

	// bookable window, hour-of-day [start, end)
	windowStart int
	windowEnd   int

	now func() time.Time
}

func New(users UserStore, doctors DoctorStore, patients PatientStore, appts AppointmentStore,
	windowStart, windowEnd int, log zerolog.Logger) *Service {
	return &Service{
		users:       users,
		doctors:     doctors,
		patients:    patients,
		appts:       appts,
		log:         log,
		windowStart: windowStart,
		windowEnd:   windowEnd,
		now:         time.Now,
	}
}

// Request books a patient-initiated appointment. The caller must be the
// patient, the doctor must be their assigned doctor, the time must be in
// the future, inside the bookable window, and the slot must be free.
// The result is always Pending: the doctor reviews it.
func (s *Service) Request(ctx context.Context, pr policy.Principal, patientID, doctorID string,
	at time.Time, apptType, notes string) (*model.Appointment, error) {

	if pr.Role != model.RolePatient {
		return nil, policy.ErrForbidden
	}
	pat, err := s.patients.PatientByID(ctx, patientID)
	if err != nil {
		return nil, notFound(err, ErrPatientNotFound)
	}
	if d := policy.AccessPatient(pr, nil, pat); !d.Allowed {
		return nil, d.Err()
	}
	if !pat.Assigned(doctorID) {
		return nil, ErrNotAssigned
	}
	if apptType == "" {
		return nil, fmt.Errorf("%w: appointment type required", ErrValidation)
	}
	if !at.After(s.now()) {
		return nil, ErrPastDateTime
	}
	if at.Hour() < s.windowStart || at.Hour() >= s.windowEnd {
		return nil, ErrOutOfWindow
	}

	taken, err := s.appts.SlotTaken(ctx, doctorID, at)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlotConflict
	}

	doc, err := s.doctors.DoctorByID(ctx, doctorID)
	if err != nil {
		return nil, notFound(err, ErrDoctorNotFound)
	}
	docUser, err := s.users.UserByID(ctx, doc.UserID)
	if err != nil {
		return nil, err
	}

	a := &model.Appointment{
		ID:              uuid.New().String(),
		PatientID:       pat.ID,
		DoctorID:        doctorID,
		AppointmentDate: at,
		AppointmentType: apptType,
		Notes:           notes,
		Status:          model.StatusPending,
		DoctorName:      docUser.DisplayName(),
	}
	if err := s.appts.CreateAppointment(ctx, a); err != nil {
		// the slot index caught a concurrent booking
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrSlotConflict
		}
		return nil, err
	}

	s.log.Info().Str("appointment_id", a.ID).Str("doctor_id", doctorID).
		Time("at", at).Msg("appointment requested")
	return a, nil
}

// Create books a doctor-initiated appointment for one of the doctor's
// own patients. No future-time or window restriction applies, and the
// appointment is Approved immediately.
func (s *Service) Create(ctx context.Context, pr policy.Principal, patientID, doctorID string,
	at time.Time, apptType, notes string) (*model.Appointment, error) {

	if pr.Role != model.RoleDoctor {
		return nil, policy.ErrForbidden
	}
	doc, err := s.doctors.DoctorByID(ctx, doctorID)
	if err != nil {
		return nil, notFound(err, ErrDoctorNotFound)
	}
	if doc.UserID != pr.UserID {
		return nil, policy.ErrForbidden
	}
	pat, err := s.patients.PatientByID(ctx, patientID)
	if err != nil {
		return nil, notFound(err, ErrPatientNotFound)
	}
	if d := policy.AccessPatient(pr, doc, pat); !d.Allowed {
		return nil, d.Err()
	}
	if apptType == "" {
		return nil, fmt.Errorf("%w: appointment type required", ErrValidation)
	}
	if at.IsZero() {
		return nil, fmt.Errorf("%w: appointment time required", ErrValidation)
	}

	docUser, err := s.users.UserByID(ctx, doc.UserID)
	if err != nil {
		return nil, err
	}

	a := &model.Appointment{
		ID:              uuid.New().String(),
		PatientID:       pat.ID,
		DoctorID:        doc.ID,
		AppointmentDate: at,
		AppointmentType: apptType,
		Notes:           notes,
		Status:          model.StatusApproved,
		DoctorName:      docUser.DisplayName(),
	}
	if err := s.appts.CreateAppointment(ctx, a); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrSlotConflict
		}
		return nil, err
	}

	s.log.Info().Str("appointment_id", a.ID).Str("patient_id", pat.ID).
		Time("at", at).Msg("appointment created by doctor")
	return a, nil
}

// Approve moves a Pending appointment to Approved.
func (s *Service) Approve(ctx context.Context, pr policy.Principal, appointmentID string) error {
	return s.resolve(ctx, pr, appointmentID, model.StatusApproved)
}

// Reject moves a Pending appointment to Rejected, freeing the slot.
func (s *Service) Reject(ctx context.Context, pr policy.Principal, appointmentID string) error {
	return s.resolve(ctx, pr, appointmentID, model.StatusRejected)
}

func (s *Service) resolve(ctx context.Context, pr policy.Principal, appointmentID string,
	to model.AppointmentStatus) error {

	a, err := s.ownedByDoctor(ctx, pr, appointmentID)
	if err != nil {
		return err
	}
	if a.Status != model.StatusPending {
		return ErrInvalidTransition
	}
	if err := s.appts.UpdateAppointmentStatus(ctx, a.ID, to); err != nil {
		return err
	}
	s.log.Info().Str("appointment_id", a.ID).Str("status", string(to)).Msg("request resolved")
	return nil
}

// Cancel sets Cancelled unconditionally; any state may be cancelled by
// the owning doctor.
func (s *Service) Cancel(ctx context.Context, pr policy.Principal, appointmentID string) error {
	a, err := s.ownedByDoctor(ctx, pr, appointmentID)
	if err != nil {
		return err
	}
	if err := s.appts.UpdateAppointmentStatus(ctx, a.ID, model.StatusCancelled); err != nil {
		return err
	}
	s.log.Info().Str("appointment_id", a.ID).Msg("appointment cancelled")
	return nil
}

// Edit overwrites date, type, notes and status directly. This is the
// doctor override: no transition guard, only enum membership is checked.
func (s *Service) Edit(ctx context.Context, pr policy.Principal, appointmentID string,
	at time.Time, apptType, notes string, status model.AppointmentStatus) (*model.Appointment, error) {

	a, err := s.ownedByDoctor(ctx, pr, appointmentID)
	if err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	if apptType == "" {
		return nil, fmt.Errorf("%w: appointment type required", ErrValidation)
	}
	if at.IsZero() {
		return nil, fmt.Errorf("%w: appointment time required", ErrValidation)
	}

	a.AppointmentDate = at
	a.AppointmentType = apptType
	a.Notes = notes
	a.Status = status
	if err := s.appts.UpdateAppointment(ctx, a); err != nil {
		// moving into an occupied slot trips the slot index
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrSlotConflict
		}
		return nil, err
	}
	s.log.Info().Str("appointment_id", a.ID).Str("status", string(status)).Msg("appointment edited")
	return a, nil
}

// AvailableSlots lists the free half-hour slot starts for a doctor on
// the day containing `day`, inside the bookable window. Slots occupied
// by a Pending or Approved appointment are excluded.
func (s *Service) AvailableSlots(ctx context.Context, doctorID string, day time.Time) ([]time.Time, error) {
	if _, err := s.doctors.DoctorByID(ctx, doctorID); err != nil {
		return nil, notFound(err, ErrDoctorNotFound)
	}

	y, m, d := day.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	occupied, err := s.appts.OccupiedSlots(ctx, doctorID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	// key on the instant, not the time.Time value: the db returns
	// timestamps in a different location
	taken := make(map[int64]bool, len(occupied))
	for _, t := range occupied {
		taken[t.Unix()] = true
	}

	var slots []time.Time
	for hour := s.windowStart; hour < s.windowEnd; hour++ {
		for _, minute := range []int{0, 30} {
			slot := time.Date(y, m, d, hour, minute, 0, 0, day.Location())
			if !taken[slot.Unix()] {
				slots = append(slots, slot)
			}
		}
	}
	return slots, nil
}

// ForPatient lists a patient's appointments, date ascending. Doctors see
// them only for assigned patients.
func (s *Service) ForPatient(ctx context.Context, pr policy.Principal, patientID string) ([]model.Appointment, error) {
	pat, err := s.patients.PatientByID(ctx, patientID)
	if err != nil {
		return nil, notFound(err, ErrPatientNotFound)
	}
	var doc *model.Doctor
	if pr.Role == model.RoleDoctor {
		doc, _ = s.doctors.DoctorByUserID(ctx, pr.UserID)
	}
	if d := policy.AccessPatient(pr, doc, pat); !d.Allowed {
		return nil, d.Err()
	}
	return s.appts.AppointmentsByPatient(ctx, pat.ID)
}

// PendingForDoctor lists the caller's open appointment requests.
func (s *Service) PendingForDoctor(ctx context.Context, pr policy.Principal) ([]model.Appointment, error) {
	return s.forDoctor(ctx, pr, model.StatusPending)
}

// ApprovedForDoctor lists the caller's confirmed schedule.
func (s *Service) ApprovedForDoctor(ctx context.Context, pr policy.Principal) ([]model.Appointment, error) {
	return s.forDoctor(ctx, pr, model.StatusApproved)
}

func (s *Service) forDoctor(ctx context.Context, pr policy.Principal, status model.AppointmentStatus) ([]model.Appointment, error) {
	if pr.Role != model.RoleDoctor {
		return nil, policy.ErrForbidden
	}
	doc, err := s.doctors.DoctorByUserID(ctx, pr.UserID)
	if err != nil {
		return nil, notFound(err, ErrDoctorNotFound)
	}
	return s.appts.AppointmentsByDoctor(ctx, doc.ID, status)
}

// ownedByDoctor loads an appointment and verifies the caller is the
// doctor it was booked against.
func (s *Service) ownedByDoctor(ctx context.Context, pr policy.Principal, appointmentID string) (*model.Appointment, error) {
	a, err := s.appts.AppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, notFound(err, ErrAppointmentNotFound)
	}
	if pr.Role != model.RoleDoctor {
		return nil, policy.ErrForbidden
	}
	doc, err := s.doctors.DoctorByUserID(ctx, pr.UserID)
	if err != nil {
		return nil, policy.ErrForbidden
	}
	if d := policy.AccessAppointment(pr, doc, nil, a); !d.Allowed {
		return nil, d.Err()
	}
	return a, nil
}

func notFound(err, sentinel error) error {
	if errors.Is(err, store.ErrNotFound) {
		return sentinel
	}
	return err
}
