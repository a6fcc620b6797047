package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"oncotrack-api/internal/model"
)

// Dashboard returns the role-appropriate home view.
func (h *Handler) Dashboard(c echo.Context) error {
	pr := principal(c)
	ctx := c.Request().Context()

	switch pr.Role {
	case model.RoleDoctor:
		view, err := h.dash.Doctor(ctx, pr)
		if err != nil {
			return h.httpError(err)
		}
		return c.JSON(http.StatusOK, view)
	case model.RolePatient:
		view, err := h.dash.Patient(ctx, pr)
		if err != nil {
			return h.httpError(err)
		}
		return c.JSON(http.StatusOK, view)
	}
	return echo.NewHTTPError(http.StatusForbidden, "forbidden")
}
