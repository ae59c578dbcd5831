package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func preflight(mw echo.MiddlewareFunc, origin string) *httptest.ResponseRecorder {
	e := echo.New()
	e.Use(mw)
	e.GET("/test", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodOptions, "/test", nil)
	req.Header.Set(echo.HeaderOrigin, origin)
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSecureCORS_AllowsConfiguredOrigins(t *testing.T) {
	mw := SecureCORS([]string{"http://app.example.com", "http://admin.example.com"}, false)

	rec := preflight(mw, "http://app.example.com")
	assert.Equal(t, "http://app.example.com", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowHeaders), HeaderTenantID)

	rec = preflight(mw, "http://evil.example.com")
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestSecureCORS_DefaultOrigin(t *testing.T) {
	rec := preflight(SecureCORS(nil, false), DefaultOrigin)
	assert.Equal(t, DefaultOrigin, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestSecureCORS_ProductionDropsWildcard(t *testing.T) {
	rec := preflight(SecureCORS([]string{"*"}, true), "http://evil.example.com")
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))

	rec = preflight(SecureCORS([]string{"*"}, true), DefaultOrigin)
	assert.Equal(t, DefaultOrigin, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}
