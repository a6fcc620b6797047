package model

import "time"

// Role is the closed set of account types. Stored as text but never
// compared as free-form strings outside this package.
type Role string

const (
	RoleDoctor  Role = "Doctor"
	RolePatient Role = "Patient"
	RoleAdmin   Role = "Admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleDoctor, RolePatient, RoleAdmin:
		return true
	}
	return false
}

// AppointmentStatus is the canonical appointment state set.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "Pending"
	StatusApproved  AppointmentStatus = "Approved"
	StatusRejected  AppointmentStatus = "Rejected"
	StatusCompleted AppointmentStatus = "Completed"
	StatusCancelled AppointmentStatus = "Cancelled"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Blocking reports whether an appointment in this status occupies its
// time slot. Rejected and Cancelled appointments free the slot.
func (s AppointmentStatus) Blocking() bool {
	return s == StatusPending || s == StatusApproved
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Role         Role      `json:"role"`
	DateOfBirth  time.Time `json:"dateOfBirth"`
	Address      string    `json:"address,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DisplayName is the form patient-facing views use for a user's name.
func (u *User) DisplayName() string {
	if u.Role == RoleDoctor {
		return "Dr. " + u.FirstName + " " + u.LastName
	}
	return u.FirstName + " " + u.LastName
}

type Doctor struct {
	ID                string `json:"id"`
	UserID            string `json:"userId"`
	Specialization    string `json:"specialization"`
	LicenseNumber     string `json:"licenseNumber"`
	YearsOfExperience int    `json:"yearsOfExperience"`
}

type Patient struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	CancerType       string    `json:"cancerType"`
	Stage            string    `json:"stage"`
	DiagnosisDate    time.Time `json:"diagnosisDate"`
	AssignedDoctorID *string   `json:"assignedDoctorId"` // nil = unassigned
}

// Assigned reports whether the patient is assigned to the given doctor.
func (p *Patient) Assigned(doctorID string) bool {
	return p.AssignedDoctorID != nil && *p.AssignedDoctorID == doctorID
}

// PatientWithUser pairs a patient row with the display fields of its user.
type PatientWithUser struct {
	Patient
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// TreatmentUpdate is append-only: never mutated after creation.
type TreatmentUpdate struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patientId"`
	UpdateType  string    `json:"updateType"`
	Description string    `json:"description"`
	Notes       string    `json:"notes,omitempty"`
	UpdateDate  time.Time `json:"updateDate"`
	CreatedBy   string    `json:"createdBy"` // "Dr. First Last" snapshot at creation
}

type Medication struct {
	ID           string     `json:"id"`
	PatientID    string     `json:"patientId"`
	Name         string     `json:"name"`
	Dosage       string     `json:"dosage"`
	Frequency    string     `json:"frequency"`
	StartDate    time.Time  `json:"startDate"`
	EndDate      *time.Time `json:"endDate"` // nil = ongoing
	SideEffects  string     `json:"sideEffects,omitempty"`
	PrescribedBy string     `json:"prescribedBy"` // snapshot at creation
	IsActive     bool       `json:"isActive"`
}

// ActiveAt recomputes the IsActive invariant: a medication with an end
// date in the past is never active. Explicit deactivation can clear the
// flag earlier regardless of EndDate.
func (m *Medication) ActiveAt(now time.Time) bool {
	if m.EndDate != nil && !m.EndDate.After(now) {
		return false
	}
	return m.IsActive
}

type Appointment struct {
	ID              string            `json:"id"`
	PatientID       string            `json:"patientId"`
	DoctorID        string            `json:"doctorId"`
	AppointmentDate time.Time         `json:"appointmentDate"`
	AppointmentType string            `json:"appointmentType"`
	Notes           string            `json:"notes,omitempty"`
	Status          AppointmentStatus `json:"status"`
	DoctorName      string            `json:"doctorName"` // display snapshot taken at creation, kept stable afterwards
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}
