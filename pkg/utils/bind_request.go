package utils

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
)

var binder = &echo.DefaultBinder{}

// BindRequest binds path params, query params and the body into T, in that order,
// then validates it. Query params are bound for every method, not only GET.
func BindRequest[T any](c echo.Context) (T, error) {
	var v T

	for _, bind := range []func(echo.Context, any) error{
		binder.BindPathParams,
		binder.BindQueryParams,
		binder.BindBody,
	} {
		if err := bind(c, &v); err != nil {
			return v, httperror.WrapError(http.StatusBadRequest, err)
		}
	}

	if _, err := Validate(v); err != nil {
		return v, httperror.WrapError(http.StatusBadRequest, err)
	}
	return v, nil
}
