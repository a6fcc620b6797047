package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"oncotrack-api/internal/model"
	"oncotrack-api/internal/policy"
)

// PatientList returns the caller's roster: a doctor's assigned
// patients.
func (h *Handler) PatientList(c echo.Context) error {
	pr := principal(c)
	if pr.Role != model.RoleDoctor {
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}
	ctx := c.Request().Context()
	doc, err := h.store.DoctorByUserID(ctx, pr.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}
	patients, err := h.store.PatientsByDoctor(ctx, doc.ID)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, patients)
}

// UnassignedPatients lists patients with no assigned doctor, for the
// claim flow.
func (h *Handler) UnassignedPatients(c echo.Context) error {
	pr := principal(c)
	if pr.Role != model.RoleDoctor {
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}
	patients, err := h.store.UnassignedPatients(c.Request().Context())
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, patients)
}

// ClaimPatient assigns an unassigned patient to the calling doctor.
// Losing a concurrent claim race surfaces as a conflict, same as a
// patient who was claimed moments earlier.
func (h *Handler) ClaimPatient(c echo.Context) error {
	pr := principal(c)
	ctx := c.Request().Context()

	var doc *model.Doctor
	if pr.Role == model.RoleDoctor {
		var err error
		doc, err = h.store.DoctorByUserID(ctx, pr.UserID)
		if err != nil {
			return echo.NewHTTPError(http.StatusForbidden, "forbidden")
		}
	}
	pat, err := h.store.PatientByID(ctx, c.Param("id"))
	if err != nil {
		return h.httpError(err)
	}
	if d := policy.ClaimPatient(pr, doc, pat); !d.Allowed {
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}

	if err := h.store.AssignDoctor(ctx, pat.ID, doc.ID); err != nil {
		return h.httpError(err)
	}
	h.log.Info().Str("patient_id", pat.ID).Str("doctor_id", doc.ID).Msg("patient claimed")
	return c.NoContent(http.StatusNoContent)
}

// PatientDetails returns a patient's full chart: the record itself plus
// treatment history, medications and appointments.
func (h *Handler) PatientDetails(c echo.Context) error {
	pat, _, err := h.authorizePatient(c, c.Param("id"))
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	user, err := h.store.UserByID(ctx, pat.UserID)
	if err != nil {
		return h.httpError(err)
	}
	updates, err := h.store.TreatmentUpdatesByPatient(ctx, pat.ID)
	if err != nil {
		return h.httpError(err)
	}
	meds, err := h.store.MedicationsByPatient(ctx, pat.ID)
	if err != nil {
		return h.httpError(err)
	}
	appts, err := h.store.AppointmentsByPatient(ctx, pat.ID)
	if err != nil {
		return h.httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"patient":          pat,
		"firstName":        user.FirstName,
		"lastName":         user.LastName,
		"treatmentUpdates": updates,
		"medications":      meds,
		"appointments":     appts,
	})
}

type treatmentUpdateRequest struct {
	UpdateType  string `json:"updateType"`
	Description string `json:"description"`
	Notes       string `json:"notes"`
}

// AddTreatmentUpdate appends to a patient's treatment history. The
// author name is snapshotted at creation and never rewritten.
func (h *Handler) AddTreatmentUpdate(c echo.Context) error {
	pr := principal(c)
	if pr.Role != model.RoleDoctor {
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}
	pat, _, err := h.authorizePatient(c, c.Param("id"))
	if err != nil {
		return err
	}

	var req treatmentUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	if req.UpdateType == "" || req.Description == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "updateType and description required")
	}

	ctx := c.Request().Context()
	author, err := h.store.UserByID(ctx, pr.UserID)
	if err != nil {
		return h.httpError(err)
	}

	u := &model.TreatmentUpdate{
		ID:          uuid.New().String(),
		PatientID:   pat.ID,
		UpdateType:  req.UpdateType,
		Description: req.Description,
		Notes:       req.Notes,
		UpdateDate:  time.Now(),
		CreatedBy:   author.DisplayName(),
	}
	if err := h.store.CreateTreatmentUpdate(ctx, u); err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, u)
}

// TreatmentHistory lists a patient's updates, newest first.
func (h *Handler) TreatmentHistory(c echo.Context) error {
	pat, _, err := h.authorizePatient(c, c.Param("id"))
	if err != nil {
		return err
	}
	updates, err := h.store.TreatmentUpdatesByPatient(c.Request().Context(), pat.ID)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, updates)
}

type medicationRequest struct {
	Name        string `json:"name"`
	Dosage      string `json:"dosage"`
	Frequency   string `json:"frequency"`
	StartDate   string `json:"startDate"` // 2006-01-02
	EndDate     string `json:"endDate"`   // optional
	SideEffects string `json:"sideEffects"`
}

func (r *medicationRequest) parseDates() (time.Time, *time.Time, error) {
	start, err := time.Parse("2006-01-02", r.StartDate)
	if err != nil {
		return time.Time{}, nil, err
	}
	if r.EndDate == "" {
		return start, nil, nil
	}
	end, err := time.Parse("2006-01-02", r.EndDate)
	if err != nil {
		return time.Time{}, nil, err
	}
	return start, &end, nil
}

// AddMedication prescribes for a patient. PrescribedBy is a snapshot of
// the prescribing doctor's display name.
func (h *Handler) AddMedication(c echo.Context) error {
	pr := principal(c)
	if pr.Role != model.RoleDoctor {
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}
	pat, _, err := h.authorizePatient(c, c.Param("id"))
	if err != nil {
		return err
	}

	var req medicationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	if req.Name == "" || req.Dosage == "" || req.Frequency == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name, dosage and frequency required")
	}
	start, end, err := req.parseDates()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "dates must be YYYY-MM-DD")
	}

	ctx := c.Request().Context()
	author, err := h.store.UserByID(ctx, pr.UserID)
	if err != nil {
		return h.httpError(err)
	}

	m := &model.Medication{
		ID:           uuid.New().String(),
		PatientID:    pat.ID,
		Name:         req.Name,
		Dosage:       req.Dosage,
		Frequency:    req.Frequency,
		StartDate:    start,
		EndDate:      end,
		SideEffects:  req.SideEffects,
		PrescribedBy: author.DisplayName(),
		IsActive:     end == nil || end.After(time.Now()),
	}
	if err := h.store.CreateMedication(ctx, m); err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

// Medications lists a patient's medication history.
func (h *Handler) Medications(c echo.Context) error {
	pat, _, err := h.authorizePatient(c, c.Param("id"))
	if err != nil {
		return err
	}
	meds, err := h.store.MedicationsByPatient(c.Request().Context(), pat.ID)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, meds)
}

// UpdateMedication rewrites a prescription. IsActive is recomputed from
// the new end date rather than trusted from the request.
func (h *Handler) UpdateMedication(c echo.Context) error {
	m, err := h.authorizeMedication(c)
	if err != nil {
		return err
	}

	var req medicationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	if req.Name == "" || req.Dosage == "" || req.Frequency == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name, dosage and frequency required")
	}
	start, end, err := req.parseDates()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "dates must be YYYY-MM-DD")
	}

	m.Name = req.Name
	m.Dosage = req.Dosage
	m.Frequency = req.Frequency
	m.StartDate = start
	m.EndDate = end
	m.SideEffects = req.SideEffects
	m.IsActive = end == nil || end.After(time.Now())

	if err := h.store.UpdateMedication(c.Request().Context(), m); err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, m)
}

// DeactivateMedication ends a course now.
func (h *Handler) DeactivateMedication(c echo.Context) error {
	m, err := h.authorizeMedication(c)
	if err != nil {
		return err
	}
	if err := h.store.DeactivateMedication(c.Request().Context(), m.ID, time.Now()); err != nil {
		return h.httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// authorizeMedication loads a medication and verifies the caller is a
// doctor with access to the owning patient.
func (h *Handler) authorizeMedication(c echo.Context) (*model.Medication, error) {
	pr := principal(c)
	if pr.Role != model.RoleDoctor {
		return nil, echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}
	m, err := h.store.MedicationByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, h.httpError(err)
	}
	if _, _, err := h.authorizePatient(c, m.PatientID); err != nil {
		return nil, err
	}
	return m, nil
}
