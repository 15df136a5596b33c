package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordRequest struct {
	Entity string `param:"entity" validate:"required,uppercase"`
	ID     int64  `param:"id" validate:"gt=0"`
	Linked bool   `query:"linked"`
}

func TestValidate(t *testing.T) {
	_, err := Validate(recordRequest{Entity: "LOAN", ID: 1})
	require.NoError(t, err)

	_, err = Validate(recordRequest{Entity: "loan"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'entity' failed rule 'uppercase', got 'loan'")
	assert.Contains(t, err.Error(), "field 'id' failed rule 'gt' (0)")
}

func TestBindRequest(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/records/LOAN/42?linked=true", strings.NewReader(""))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("entity", "id")
	c.SetParamValues("LOAN", "42")

	v, err := BindRequest[recordRequest](c)
	require.NoError(t, err)
	assert.Equal(t, recordRequest{Entity: "LOAN", ID: 42, Linked: true}, v)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/records/LOAN/0", nil), httptest.NewRecorder())
	c.SetParamNames("entity", "id")
	c.SetParamValues("LOAN", "0")

	_, err = BindRequest[recordRequest](c)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

type listRequest struct {
	Entity string `param:"entity" validate:"required"`
	Linked bool   `query:"linked"`
	Start  int    `json:"start" validate:"gte=0"`
}

func TestBindRequest_QueryOnPost(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/records/LOAN/list?linked=true", strings.NewReader(`{"start": 50}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("entity")
	c.SetParamValues("LOAN")

	v, err := BindRequest[listRequest](c)
	require.NoError(t, err)
	assert.Equal(t, listRequest{Entity: "LOAN", Linked: true, Start: 50}, v)
}
