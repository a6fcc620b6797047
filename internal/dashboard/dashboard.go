// Package dashboard builds the read-side summary views. It never
// mutates anything, and given identical records it always produces
// identical ordering: ties on dates break on record ID.
package dashboard

import (
	"context"
	"errors"
	"sort"
	"time"

	"oncotrack-api/internal/model"
	"oncotrack-api/internal/policy"
	"oncotrack-api/internal/store"
)

const recentLimit = 5

var ErrProfileNotFound = errors.New("no profile for this account")

type UserStore interface {
	UserByID(ctx context.Context, id string) (*model.User, error)
}

type DoctorStore interface {
	DoctorByID(ctx context.Context, id string) (*model.Doctor, error)
	DoctorByUserID(ctx context.Context, userID string) (*model.Doctor, error)
}

type PatientStore interface {
	PatientByUserID(ctx context.Context, userID string) (*model.Patient, error)
	PatientsByDoctor(ctx context.Context, doctorID string) ([]model.PatientWithUser, error)
}

type AppointmentStore interface {
	AppointmentsByPatient(ctx context.Context, patientID string) ([]model.Appointment, error)
	CountAppointments(ctx context.Context, doctorID string, status model.AppointmentStatus, from, to time.Time) (int, error)
}

type TreatmentStore interface {
	TreatmentUpdatesByPatient(ctx context.Context, patientID string) ([]model.TreatmentUpdate, error)
}

type MedicationStore interface {
	MedicationsByPatient(ctx context.Context, patientID string) ([]model.Medication, error)
}

type DoctorDashboard struct {
	DoctorName        string                  `json:"doctorName"`
	Specialization    string                  `json:"specialization"`
	Patients          []model.PatientWithUser `json:"patients"`
	TotalPatients     int                     `json:"totalPatients"`
	AppointmentsToday int                     `json:"appointmentsToday"`
	PendingRequests   int                     `json:"pendingRequests"`
}

type PatientDashboard struct {
	PatientName          string                  `json:"patientName"`
	CancerType           string                  `json:"cancerType"`
	Stage                string                  `json:"stage"`
	DiagnosisDate        time.Time               `json:"diagnosisDate"`
	DoctorName           string                  `json:"doctorName"`
	RecentUpdates        []model.TreatmentUpdate `json:"recentUpdates"`
	ActiveMedications    []model.Medication      `json:"activeMedications"`
	UpcomingAppointments []model.Appointment     `json:"upcomingAppointments"`
}

type Service struct {
	users    UserStore
	doctors  DoctorStore
	patients PatientStore
	appts    AppointmentStore
	updates  TreatmentStore
	meds     MedicationStore

	now func() time.Time
}

func New(users UserStore, doctors DoctorStore, patients PatientStore,
	appts AppointmentStore, updates TreatmentStore, meds MedicationStore) *Service {
	return &Service{
		users:    users,
		doctors:  doctors,
		patients: patients,
		appts:    appts,
		updates:  updates,
		meds:     meds,
		now:      time.Now,
	}
}

// Doctor assembles the doctor's home view: patient roster plus today's
// approved count and the open request count, all scoped to the caller.
func (s *Service) Doctor(ctx context.Context, pr policy.Principal) (*DoctorDashboard, error) {
	if pr.Role != model.RoleDoctor {
		return nil, policy.ErrForbidden
	}
	doc, err := s.doctors.DoctorByUserID(ctx, pr.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	user, err := s.users.UserByID(ctx, pr.UserID)
	if err != nil {
		return nil, err
	}
	patients, err := s.patients.PatientsByDoctor(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := s.appts.CountAppointments(ctx, doc.ID, model.StatusApproved, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	pending, err := s.appts.CountAppointments(ctx, doc.ID, model.StatusPending, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}

	return &DoctorDashboard{
		DoctorName:        user.DisplayName(),
		Specialization:    doc.Specialization,
		Patients:          patients,
		TotalPatients:     len(patients),
		AppointmentsToday: today,
		PendingRequests:   pending,
	}, nil
}

// Patient assembles the patient's home view.
func (s *Service) Patient(ctx context.Context, pr policy.Principal) (*PatientDashboard, error) {
	if pr.Role != model.RolePatient {
		return nil, policy.ErrForbidden
	}
	pat, err := s.patients.PatientByUserID(ctx, pr.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	user, err := s.users.UserByID(ctx, pr.UserID)
	if err != nil {
		return nil, err
	}

	doctorName := "Not Assigned"
	if pat.AssignedDoctorID != nil {
		// read the live record: the dashboard shows the doctor's current
		// name, unlike the per-appointment snapshot
		if du, err := s.doctorUser(ctx, pat); err == nil {
			doctorName = du.DisplayName()
		}
	}

	updates, err := s.updates.TreatmentUpdatesByPatient(ctx, pat.ID)
	if err != nil {
		return nil, err
	}
	meds, err := s.meds.MedicationsByPatient(ctx, pat.ID)
	if err != nil {
		return nil, err
	}
	appts, err := s.appts.AppointmentsByPatient(ctx, pat.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	return &PatientDashboard{
		PatientName:          user.FirstName + " " + user.LastName,
		CancerType:           pat.CancerType,
		Stage:                pat.Stage,
		DiagnosisDate:        pat.DiagnosisDate,
		DoctorName:           doctorName,
		RecentUpdates:        RecentUpdates(updates, recentLimit),
		ActiveMedications:    ActiveMedications(meds, now),
		UpcomingAppointments: UpcomingAppointments(appts, now, recentLimit),
	}, nil
}

func (s *Service) doctorUser(ctx context.Context, pat *model.Patient) (*model.User, error) {
	doc, err := s.doctors.DoctorByID(ctx, *pat.AssignedDoctorID)
	if err != nil {
		return nil, err
	}
	return s.users.UserByID(ctx, doc.UserID)
}

// RecentUpdates returns the n most recent updates, newest first, ID
// ascending within equal dates.
func RecentUpdates(updates []model.TreatmentUpdate, n int) []model.TreatmentUpdate {
	out := make([]model.TreatmentUpdate, len(updates))
	copy(out, updates)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdateDate.Equal(out[j].UpdateDate) {
			return out[i].UpdateDate.After(out[j].UpdateDate)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// ActiveMedications filters to medications active at `now`, preserving
// the incoming order.
func ActiveMedications(meds []model.Medication, now time.Time) []model.Medication {
	var out []model.Medication
	for _, m := range meds {
		if m.ActiveAt(now) {
			out = append(out, m)
		}
	}
	return out
}

// UpcomingAppointments returns the n soonest Approved appointments at or
// after `now`, soonest first, ID ascending within equal times.
func UpcomingAppointments(appts []model.Appointment, now time.Time, n int) []model.Appointment {
	var out []model.Appointment
	for _, a := range appts {
		if a.Status == model.StatusApproved && !a.AppointmentDate.Before(now) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].AppointmentDate.Equal(out[j].AppointmentDate) {
			return out[i].AppointmentDate.Before(out[j].AppointmentDate)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
