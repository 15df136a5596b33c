package middleware

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/vukmarkovic/Europace-sub000/pkg/context"
	matchErrors "github.com/vukmarkovic/Europace-sub000/pkg/errors"
	"github.com/vukmarkovic/Europace-sub000/pkg/tracing"
)

type ErrorResponse struct {
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	TraceID   string         `json:"trace_id"`
	Meta      map[string]any `json:"meta"`
}

// Error renders handler errors as ErrorResponse. Matching errors keep their code in
// the meta so callers can tell configuration problems from CRM failures.
func Error(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		ctx := c.Request().Context()
		code, message, meta := resolve(err)

		entry := logger.WithContext(ctx).WithError(err).WithField("status", code)
		if code >= http.StatusInternalServerError {
			entry.Error("api is returning an error")
		} else {
			entry.Warn("api is rejecting a request")
		}

		if c.Response().Committed {
			return
		}
		_ = c.JSON(code, ErrorResponse{
			Message:   message,
			RequestID: context.GetRequestID(ctx),
			TraceID:   tracing.GetTraceID(ctx),
			Meta:      meta,
		})
	}
}

func resolve(err error) (int, string, map[string]any) {
	var me *matchErrors.MatchingError
	if errors.As(err, &me) {
		err = me.ToHTTPError()
	}

	var he *echo.HTTPError
	switch {
	case httperror.IsHTTPError(err):
		httpErr := httperror.ToHTTPError(err)
		meta := httpErr.Meta
		if meta == nil {
			meta = map[string]any{}
		}
		return httperror.GetStatusCode(err), httpErr.Error(), meta
	case errors.As(err, &he):
		message := http.StatusText(he.Code)
		if msg, ok := he.Message.(string); ok {
			message = msg
		}
		return he.Code, message, map[string]any{}
	default:
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), map[string]any{}
	}
}
