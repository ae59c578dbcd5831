package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
)

// Scope headers set by the authenticating gateway
const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderUserID   = "X-User-ID"
)

const scopeKey = "mailcore.scope"

// Scope resolves the tenant user of the request from the scope headers.
// Websocket handshakes cannot set headers, so the tenant_id and user_id
// query parameters are accepted as a fallback.
func Scope() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			tenant := firstNonEmpty(req.Header.Get(HeaderTenantID), c.QueryParam("tenant_id"))
			user := firstNonEmpty(req.Header.Get(HeaderUserID), c.QueryParam("user_id"))

			tenantID, err := strconv.ParseUint(tenant, 10, 64)
			if err != nil || tenantID == 0 || user == "" {
				return echo.NewHTTPError(http.StatusBadRequest, map[string]string{
					"error": HeaderTenantID + " and " + HeaderUserID + " are required",
					"code":  apperrors.CodeInvalidInput,
				})
			}

			c.Set(scopeKey, models.Scope{TenantID: uint(tenantID), UserID: user})
			return next(c)
		}
	}
}

// ScopeFrom returns the scope resolved by Scope; the zero scope when absent
func ScopeFrom(c echo.Context) models.Scope {
	scope, _ := c.Get(scopeKey).(models.Scope)
	return scope
}

// WithScope stores scope on the context; used by handler tests
func WithScope(c echo.Context, scope models.Scope) {
	c.Set(scopeKey, scope)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
