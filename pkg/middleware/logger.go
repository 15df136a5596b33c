package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/vukmarkovic/Europace-sub000/pkg/context"
	"github.com/vukmarkovic/Europace-sub000/pkg/metrics"
)

// Logger logs every API request once it has been answered and records its duration.
// Health checks are only measured.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			elapsed := time.Since(start)

			req, res := c.Request(), c.Response()
			metrics.HTTPRequestDuration.
				WithLabelValues(req.Method, c.Path(), strconv.Itoa(res.Status)).
				Observe(elapsed.Seconds())
			if strings.HasPrefix(c.Path(), "/health") {
				return nil
			}

			ctx := req.Context()
			entry := logger.WithContext(ctx).WithFields(map[string]any{
				"request_id":    context.GetRequestID(ctx),
				"tenant_id":     context.GetTenantID(ctx),
				"portal":        context.GetPortal(ctx),
				"method":        req.Method,
				"route":         c.Path(),
				"uri":           req.RequestURI,
				"status":        res.Status,
				"remote_ip":     c.RealIP(),
				"response_time": elapsed,
				"response_size": res.Size,
			})
			switch {
			case res.Status >= http.StatusInternalServerError:
				entry.Error("Request failed")
			case res.Status >= http.StatusBadRequest:
				entry.Warn("Request rejected")
			default:
				entry.Info("Request")
			}
			return nil
		}
	}
}
