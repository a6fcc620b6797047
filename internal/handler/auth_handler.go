package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"oncotrack-api/internal/auth"
	"oncotrack-api/internal/model"
)

const refreshTTL = 7 * 24 * time.Hour

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Role        string `json:"role"`
	DateOfBirth string `json:"dateOfBirth"` // 2006-01-02
	Address     string `json:"address"`

	// patient profile
	CancerType    string `json:"cancerType"`
	Stage         string `json:"stage"`
	DiagnosisDate string `json:"diagnosisDate"`

	// doctor profile
	Specialization    string `json:"specialization"`
	LicenseNumber     string `json:"licenseNumber"`
	YearsOfExperience int    `json:"yearsOfExperience"`
}

func (h *Handler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	if req.Email == "" || req.Password == "" || req.FirstName == "" || req.LastName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "all fields required")
	}
	if len(req.Password) < 8 {
		return echo.NewHTTPError(http.StatusBadRequest, "password too short")
	}
	role := model.Role(req.Role)
	if role != model.RoleDoctor && role != model.RolePatient {
		return echo.NewHTTPError(http.StatusBadRequest, "role must be Doctor or Patient")
	}

	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "dateOfBirth must be YYYY-MM-DD")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	u := &model.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
		DateOfBirth:  dob,
		Address:      req.Address,
	}

	ctx := c.Request().Context()
	switch role {
	case model.RoleDoctor:
		d := &model.Doctor{
			ID:                uuid.New().String(),
			UserID:            u.ID,
			Specialization:    req.Specialization,
			LicenseNumber:     req.LicenseNumber,
			YearsOfExperience: req.YearsOfExperience,
		}
		err = h.store.CreateDoctorAccount(ctx, u, d)
	case model.RolePatient:
		diagnosed := time.Now()
		if req.DiagnosisDate != "" {
			diagnosed, err = time.Parse("2006-01-02", req.DiagnosisDate)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "diagnosisDate must be YYYY-MM-DD")
			}
		}
		p := &model.Patient{
			ID:            uuid.New().String(),
			UserID:        u.ID,
			CancerType:    req.CancerType,
			Stage:         req.Stage,
			DiagnosisDate: diagnosed,
		}
		err = h.store.CreatePatientAccount(ctx, u, p)
	}
	if err != nil {
		// unique violation = dup email, but don't reveal that
		return echo.NewHTTPError(http.StatusConflict, "registration failed")
	}

	return h.issueSession(c, u, http.StatusCreated)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password required")
	}

	u, err := h.store.UserByEmail(c.Request().Context(), req.Email)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	return h.issueSession(c, u, http.StatusOK)
}

// issueSession mints the access token and rotating refresh cookie, and
// returns the identity the client dispatches on.
func (h *Handler) issueSession(c echo.Context, u *model.User, code int) error {
	tok, err := auth.MakeToken(u.ID, u.Role, h.secret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	rawRefresh, tokenHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if _, err := h.store.SaveRefreshToken(c.Request().Context(), u.ID, tokenHash, time.Now().Add(refreshTTL)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	setSessionCookies(c, tok, rawRefresh)
	return c.JSON(code, map[string]any{
		"userId": u.ID,
		"name":   u.FirstName + " " + u.LastName,
		"role":   u.Role,
		"token":  tok,
	})
}

func (h *Handler) Refresh(c echo.Context) error {
	ck, err := c.Cookie("refresh_token")
	if err != nil || ck.Value == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "no refresh token")
	}

	ctx := c.Request().Context()
	rt, err := h.store.RefreshTokenByHash(ctx, auth.HashRefreshToken(ck.Value))
	if err != nil || !rt.Usable(time.Now()) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}

	u, err := h.store.UserByID(ctx, rt.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}

	rawNew, newHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if _, err := h.store.RotateRefreshToken(ctx, rt.ID, u.ID, newHash, time.Now().Add(refreshTTL)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	tok, err := auth.MakeToken(u.ID, u.Role, h.secret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	setSessionCookies(c, tok, rawNew)
	return c.JSON(http.StatusOK, map[string]any{"token": tok})
}

func (h *Handler) Logout(c echo.Context) error {
	pr := principal(c)
	if err := h.store.RevokeRefreshTokens(c.Request().Context(), pr.UserID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	clearSessionCookies(c)
	return c.NoContent(http.StatusNoContent)
}

func setSessionCookies(c echo.Context, access, refresh string) {
	c.SetCookie(&http.Cookie{Name: "access_token", Value: access, HttpOnly: true, Path: "/"})
	c.SetCookie(&http.Cookie{Name: "refresh_token", Value: refresh, HttpOnly: true, Path: "/auth/"})
}

func clearSessionCookies(c echo.Context) {
	c.SetCookie(&http.Cookie{Name: "access_token", Value: "", MaxAge: -1, HttpOnly: true, Path: "/"})
	c.SetCookie(&http.Cookie{Name: "refresh_token", Value: "", MaxAge: -1, HttpOnly: true, Path: "/auth/"})
}
