package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"oncotrack-api/internal/auth"
	"oncotrack-api/internal/policy"
)

const principalKey = "principal"

// Auth verifies the access token and stores the Principal on the echo
// context. The token comes from Authorization: Bearer <jwt> or, for
// browser clients, the access_token cookie.
func Auth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := ""
			if h := c.Request().Header.Get("Authorization"); h != "" {
				raw = strings.TrimPrefix(h, "Bearer ")
			}
			if raw == "" {
				if ck, err := c.Cookie("access_token"); err == nil {
					raw = ck.Value
				}
			}
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "no token")
			}

			claims, err := auth.ParseToken(raw, secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "bad token")
			}

			c.Set(principalKey, policy.Principal{UserID: claims.UserID, Role: claims.Role})
			return next(c)
		}
	}
}

// PrincipalFrom returns the authenticated principal, or false when the
// request never passed Auth.
func PrincipalFrom(c echo.Context) (policy.Principal, bool) {
	pr, ok := c.Get(principalKey).(policy.Principal)
	return pr, ok
}
