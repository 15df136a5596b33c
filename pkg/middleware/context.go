package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	appctx "github.com/vukmarkovic/Europace-sub000/pkg/context"
)

const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderUserID   = "X-User-ID"
	// HeaderPortal carries the Bitrix24 portal domain of the caller. Requests
	// opened from an app frame send it as the DOMAIN query parameter instead.
	HeaderPortal = "X-Bitrix-Domain"
	portalQuery  = "DOMAIN"
)

// Context seeds the request context with the request id, the matched route
// template and the calling portal.
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}

			ctx := appctx.SetRoute(appctx.SetRequestID(req.Context(), requestID), route)
			if portal := firstNonEmpty(req.Header.Get(HeaderPortal), c.QueryParam(portalQuery)); portal != "" {
				ctx = appctx.SetPortal(ctx, portal)
			}

			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
