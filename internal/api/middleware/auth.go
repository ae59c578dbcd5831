// Package middleware provides HTTP middleware for the mailcore API.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"github.com/welldanyogia/webrana-mailcore/internal/logger"
)

// publicPrefixes are served without credentials
var publicPrefixes = []string{"/health", "/ready", "/metrics"}

func isPublic(path string) bool {
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// APIKeyAuth validates the bearer API key from the Authorization header.
// Browsers cannot set headers on websocket handshakes, so the token query
// parameter is accepted instead. An empty apiKey disables the check.
// Failures are written to audit.
func APIKeyAuth(apiKey string, audit *logger.AuditLogger) echo.MiddlewareFunc {
	if audit == nil {
		audit = logger.NewAuditLogger(nil)
	}
	if apiKey == "" {
		audit.Logger().Warn("API_KEY not set - API is UNSECURED")
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Path()
			if apiKey == "" || isPublic(path) {
				return next(c)
			}

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				authHeader = c.QueryParam("token")
			}
			if authHeader == "" {
				audit.AuthFailure(c.RealIP(), path, "missing authorization header")
				return echo.NewHTTPError(http.StatusUnauthorized, map[string]string{
					"error": "missing authorization header",
					"code":  apperrors.CodeUnauthorized,
				})
			}

			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

			// Constant-time comparison
			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				audit.AuthFailure(c.RealIP(), path, "invalid API key")
				return echo.NewHTTPError(http.StatusUnauthorized, map[string]string{
					"error": "invalid API key",
					"code":  apperrors.CodeUnauthorized,
				})
			}

			return next(c)
		}
	}
}
