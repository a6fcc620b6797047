package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"oncotrack-api/internal/dashboard"
	"oncotrack-api/internal/middleware"
	"oncotrack-api/internal/model"
	"oncotrack-api/internal/policy"
	"oncotrack-api/internal/scheduling"
	"oncotrack-api/internal/store"
)

type Handler struct {
	store  *store.Store
	sched  *scheduling.Service
	dash   *dashboard.Service
	secret string
	log    zerolog.Logger
}

func New(st *store.Store, sched *scheduling.Service, dash *dashboard.Service,
	secret string, log zerolog.Logger) *Handler {
	return &Handler{store: st, sched: sched, dash: dash, secret: secret, log: log}
}

// RegisterRoutes wires the portal surface. Credential endpoints are
// rate limited; everything under /api requires a valid token.
func (h *Handler) RegisterRoutes(e *echo.Echo, rl *middleware.RateLimiter) {
	authGroup := e.Group("/auth")
	authGroup.POST("/register", h.Register, middleware.RateLimit(rl))
	authGroup.POST("/login", h.Login, middleware.RateLimit(rl))
	authGroup.POST("/refresh", h.Refresh)

	api := e.Group("/api", middleware.Auth(h.secret))
	api.POST("/logout", h.Logout)
	api.GET("/dashboard", h.Dashboard)

	api.POST("/appointments/request", h.RequestAppointment)
	api.POST("/appointments", h.CreateAppointment)
	api.GET("/appointments", h.MyAppointments)
	api.GET("/appointments/requests", h.AppointmentRequests)
	api.GET("/appointments/schedule", h.DoctorSchedule)
	api.POST("/appointments/:id/approve", h.ApproveAppointment)
	api.POST("/appointments/:id/reject", h.RejectAppointment)
	api.POST("/appointments/:id/cancel", h.CancelAppointment)
	api.PUT("/appointments/:id", h.EditAppointment)
	api.GET("/doctors/:id/slots", h.AvailableSlots)

	api.GET("/patients", h.PatientList)
	api.GET("/patients/unassigned", h.UnassignedPatients)
	api.POST("/patients/:id/claim", h.ClaimPatient)
	api.GET("/patients/:id", h.PatientDetails)
	api.POST("/patients/:id/treatment-updates", h.AddTreatmentUpdate)
	api.GET("/patients/:id/treatment-updates", h.TreatmentHistory)
	api.POST("/patients/:id/medications", h.AddMedication)
	api.GET("/patients/:id/medications", h.Medications)
	api.PUT("/medications/:id", h.UpdateMedication)
	api.POST("/medications/:id/deactivate", h.DeactivateMedication)
}

func principal(c echo.Context) policy.Principal {
	pr, _ := middleware.PrincipalFrom(c)
	return pr
}

// httpError maps core sentinels onto status codes. Storage errors never
// leak detail to the caller.
func (h *Handler) httpError(err error) error {
	switch {
	case errors.Is(err, scheduling.ErrValidation),
		errors.Is(err, scheduling.ErrPastDateTime),
		errors.Is(err, scheduling.ErrOutOfWindow):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, scheduling.ErrNotAssigned),
		errors.Is(err, scheduling.ErrSlotConflict),
		errors.Is(err, scheduling.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrDuplicate):
		return echo.NewHTTPError(http.StatusConflict, "conflict")
	case errors.Is(err, policy.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	case errors.Is(err, scheduling.ErrPatientNotFound),
		errors.Is(err, scheduling.ErrDoctorNotFound),
		errors.Is(err, scheduling.ErrAppointmentNotFound),
		errors.Is(err, dashboard.ErrProfileNotFound),
		errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	default:
		h.log.Error().Err(err).Msg("internal error")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// authorizePatient loads the target patient and verifies the caller may
// touch it (and everything it owns).
func (h *Handler) authorizePatient(c echo.Context, patientID string) (*model.Patient, *model.Doctor, error) {
	pr := principal(c)
	pat, err := h.store.PatientByID(c.Request().Context(), patientID)
	if err != nil {
		return nil, nil, h.httpError(err)
	}
	var doc *model.Doctor
	if pr.Role == model.RoleDoctor {
		doc, err = h.store.DoctorByUserID(c.Request().Context(), pr.UserID)
		if err != nil {
			return nil, nil, echo.NewHTTPError(http.StatusForbidden, "forbidden")
		}
	}
	if d := policy.AccessPatient(pr, doc, pat); !d.Allowed {
		return nil, nil, echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}
	return pat, doc, nil
}
