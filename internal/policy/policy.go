// Package policy decides, for an authenticated principal and a target
// record, whether access is permitted. It returns decisions; the HTTP
// boundary chooses how to render a denial.
package policy

import (
	"errors"

	"oncotrack-api/internal/model"
)

var ErrForbidden = errors.New("forbidden")

// Principal is the authenticated caller. It is passed explicitly into
// every core operation; nothing reads an ambient session.
type Principal struct {
	UserID string
	Role   model.Role
}

type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// Err converts a decision into the sentinel the service layer returns.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return ErrForbidden
}

// AccessPatient decides whether the principal may read or write the
// patient record and everything it owns (treatment updates, medications,
// appointments). doc is the principal's doctor record when Role is
// Doctor, nil otherwise.
func AccessPatient(pr Principal, doc *model.Doctor, pat *model.Patient) Decision {
	switch pr.Role {
	case model.RoleAdmin:
		return allow()
	case model.RolePatient:
		if pat.UserID == pr.UserID {
			return allow()
		}
		return deny("patients may only access their own record")
	case model.RoleDoctor:
		if doc == nil {
			return deny("no doctor record for principal")
		}
		if pat.Assigned(doc.ID) {
			return allow()
		}
		return deny("patient is not assigned to this doctor")
	}
	return deny("unknown role")
}

// ClaimPatient decides whether the doctor may assign an unassigned
// patient to themselves.
func ClaimPatient(pr Principal, doc *model.Doctor, pat *model.Patient) Decision {
	if pr.Role != model.RoleDoctor || doc == nil {
		return deny("only doctors may claim patients")
	}
	if pat.AssignedDoctorID != nil {
		return deny("patient already has an assigned doctor")
	}
	return allow()
}

// AccessAppointment decides whether the principal may act on an
// appointment. Doctors own appointments booked against them; patients
// own appointments on their own record.
func AccessAppointment(pr Principal, doc *model.Doctor, pat *model.Patient, appt *model.Appointment) Decision {
	switch pr.Role {
	case model.RoleAdmin:
		return allow()
	case model.RoleDoctor:
		if doc != nil && appt.DoctorID == doc.ID {
			return allow()
		}
		return deny("appointment belongs to another doctor")
	case model.RolePatient:
		if pat != nil && appt.PatientID == pat.ID {
			return allow()
		}
		return deny("appointment belongs to another patient")
	}
	return deny("unknown role")
}
