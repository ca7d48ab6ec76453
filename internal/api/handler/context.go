package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ctxClaims extracts the auth claims injected by the Auth middleware and
// performs a fast-fail check before any service call:
//   - role must be non-empty (presence proves the middleware ran).
//   - tenant_id must be non-empty; every service call is tenant-scoped and
//     a token without one is structurally valid but operationally unusable.
func ctxClaims(c echo.Context) (role, tenantID string, err error) {
	role, _ = c.Get("role").(string)
	if role == "" {
		return "", "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}

	tenantID, _ = c.Get("tenant_id").(string)
	if tenantID == "" {
		return "", "", echo.NewHTTPError(http.StatusUnauthorized, "token missing tenant identity")
	}

	return role, tenantID, nil
}
