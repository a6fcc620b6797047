package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"oncotrack-api/internal/model"
)

type appointmentRequest struct {
	PatientID       string `json:"patientId"`
	DoctorID        string `json:"doctorId"`
	AppointmentDate string `json:"appointmentDate"` // RFC3339
	AppointmentType string `json:"appointmentType"`
	Notes           string `json:"notes"`
	Status          string `json:"status"`
}

func (r *appointmentRequest) parseDate() (time.Time, error) {
	return time.Parse(time.RFC3339, r.AppointmentDate)
}

// RequestAppointment books a patient-initiated request against the
// patient's assigned doctor. The patientId may be omitted, in which
// case the caller's own patient record is used.
func (h *Handler) RequestAppointment(c echo.Context) error {
	var req appointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	at, err := req.parseDate()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "appointmentDate must be RFC3339")
	}

	pr := principal(c)
	ctx := c.Request().Context()
	if req.PatientID == "" {
		pat, err := h.store.PatientByUserID(ctx, pr.UserID)
		if err != nil {
			return h.httpError(err)
		}
		req.PatientID = pat.ID
	}

	a, err := h.sched.Request(ctx, pr, req.PatientID, req.DoctorID, at, req.AppointmentType, req.Notes)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

// CreateAppointment is the doctor-side booking: immediately Approved,
// for one of the caller's own patients.
func (h *Handler) CreateAppointment(c echo.Context) error {
	var req appointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	at, err := req.parseDate()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "appointmentDate must be RFC3339")
	}

	pr := principal(c)
	ctx := c.Request().Context()
	doc, err := h.store.DoctorByUserID(ctx, pr.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}

	a, err := h.sched.Create(ctx, pr, req.PatientID, doc.ID, at, req.AppointmentType, req.Notes)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

// MyAppointments lists the caller's appointments: a patient sees their
// own, a doctor sees everything booked against them.
func (h *Handler) MyAppointments(c echo.Context) error {
	pr := principal(c)
	ctx := c.Request().Context()

	switch pr.Role {
	case model.RolePatient:
		pat, err := h.store.PatientByUserID(ctx, pr.UserID)
		if err != nil {
			return h.httpError(err)
		}
		appts, err := h.sched.ForPatient(ctx, pr, pat.ID)
		if err != nil {
			return h.httpError(err)
		}
		return c.JSON(http.StatusOK, appts)
	case model.RoleDoctor:
		doc, err := h.store.DoctorByUserID(ctx, pr.UserID)
		if err != nil {
			return h.httpError(err)
		}
		appts, err := h.store.AppointmentsByDoctor(ctx, doc.ID, "")
		if err != nil {
			return h.httpError(err)
		}
		return c.JSON(http.StatusOK, appts)
	}
	return echo.NewHTTPError(http.StatusForbidden, "forbidden")
}

// AppointmentRequests lists the caller's pending requests.
func (h *Handler) AppointmentRequests(c echo.Context) error {
	appts, err := h.sched.PendingForDoctor(c.Request().Context(), principal(c))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, appts)
}

// DoctorSchedule lists the caller's approved appointments.
func (h *Handler) DoctorSchedule(c echo.Context) error {
	appts, err := h.sched.ApprovedForDoctor(c.Request().Context(), principal(c))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, appts)
}

func (h *Handler) ApproveAppointment(c echo.Context) error {
	if err := h.sched.Approve(c.Request().Context(), principal(c), c.Param("id")); err != nil {
		return h.httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RejectAppointment(c echo.Context) error {
	if err := h.sched.Reject(c.Request().Context(), principal(c), c.Param("id")); err != nil {
		return h.httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	if err := h.sched.Cancel(c.Request().Context(), principal(c), c.Param("id")); err != nil {
		return h.httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// EditAppointment is the doctor override: date, type, notes and status
// are replaced wholesale.
func (h *Handler) EditAppointment(c echo.Context) error {
	var req appointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	at, err := req.parseDate()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "appointmentDate must be RFC3339")
	}

	a, err := h.sched.Edit(c.Request().Context(), principal(c), c.Param("id"),
		at, req.AppointmentType, req.Notes, model.AppointmentStatus(req.Status))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

// AvailableSlots lists the free half-hour slots for a doctor on the
// given day (?date=YYYY-MM-DD, default today).
func (h *Handler) AvailableSlots(c echo.Context) error {
	day := time.Now()
	if q := c.QueryParam("date"); q != "" {
		var err error
		day, err = time.Parse("2006-01-02", q)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
		}
	}

	slots, err := h.sched.AvailableSlots(c.Request().Context(), c.Param("id"), day)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"slots": slots})
}
