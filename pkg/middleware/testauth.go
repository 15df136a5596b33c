// Package middleware provides the echo middleware of the service.
package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vukmarkovic/Europace-sub000/pkg/context"
)

// TestAuth takes tenant and user ids from the X-Tenant-ID and X-User-ID headers.
//
// WARNING: Only use this when AUTH_ENABLED=false. Do not enable in production.
func TestAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			if tenantID := c.Request().Header.Get(HeaderTenantID); tenantID != "" {
				ctx = context.SetTenantID(ctx, tenantID)
			}
			if userID := c.Request().Header.Get(HeaderUserID); userID != "" {
				ctx = context.SetUserID(ctx, userID)
			}

			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// RequireTenant rejects requests no authentication middleware assigned a tenant to.
func RequireTenant() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if context.GetTenantID(c.Request().Context()) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "tenant is required")
			}
			return next(c)
		}
	}
}
