package middleware

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"
)

// Container makes the dependency container registered under id the active one for the request.
func Container(id string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, err := ectoinject.SetActiveContainer(c.Request().Context(), id)
			if err != nil {
				return httperror.NewHTTPError(http.StatusInternalServerError, "dependency container unavailable")
			}
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
