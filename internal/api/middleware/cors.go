package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// DefaultOrigin is allowed when no origins are configured
const DefaultOrigin = "http://localhost:3000"

// SecureCORS returns CORS middleware for the configured origins.
// The wildcard origin is dropped in production.
func SecureCORS(origins []string, production bool) echo.MiddlewareFunc {
	allowed := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "" || (production && o == "*") {
			continue
		}
		allowed = append(allowed, o)
	}
	if len(allowed) == 0 {
		allowed = []string{DefaultOrigin}
	}

	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowed,
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.PATCH, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization,
			HeaderTenantID, HeaderUserID,
		},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
