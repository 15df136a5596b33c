package cases

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vukmarkovic/Europace-sub000/config"
	"github.com/vukmarkovic/Europace-sub000/pkg/di"
	"github.com/vukmarkovic/Europace-sub000/pkg/middleware"
)

type fakeCases struct {
	partner  string
	caseID   string
	editorID string
	err      error
}

func (f *fakeCases) GetCase(_ context.Context, partnerID, caseID string) (map[string]any, error) {
	f.partner, f.caseID = partnerID, caseID
	return map[string]any{"vorgangsnummer": caseID}, f.err
}

func (f *fakeCases) ReassignEditor(_ context.Context, partnerID, caseID, editorID string) error {
	f.partner, f.caseID, f.editorID = partnerID, caseID, editorID
	return f.err
}

func serve(t *testing.T, cases *fakeCases, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	id := t.Name() + "-" + uuid.NewString()
	container, err := di.NewContainer(id, logger)
	require.NoError(t, err)
	require.NoError(t, di.Provide[Cases](container, cases))
	require.NoError(t, di.Provide(container, &config.Config{EuropaceDefaultPartner: "ABC12"}))

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context(), middleware.Container(id), middleware.TestAuth())
	Register(e.Group("/api/v1/cases"))

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(middleware.HeaderTenantID, "tenant-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGet(t *testing.T) {
	t.Run("DefaultPartner", func(t *testing.T) {
		cases := &fakeCases{}
		rec := serve(t, cases, http.MethodGet, "/api/v1/cases/AB1234", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"vorgangsnummer": "AB1234"}`, rec.Body.String())
		assert.Equal(t, "ABC12", cases.partner)
	})

	t.Run("PartnerFromQuery", func(t *testing.T) {
		cases := &fakeCases{}
		rec := serve(t, cases, http.MethodGet, "/api/v1/cases/AB1234?partner_id=XY999", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "XY999", cases.partner)
	})

	t.Run("UpstreamError", func(t *testing.T) {
		rec := serve(t, &fakeCases{err: errors.New("boom")}, http.MethodGet, "/api/v1/cases/AB1234", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestReassignEditor(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		cases := &fakeCases{}
		rec := serve(t, cases, http.MethodPut, "/api/v1/cases/AB1234/editor", `{"editor_id": "QW777"}`)

		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "AB1234", cases.caseID)
		assert.Equal(t, "QW777", cases.editorID)
		assert.Equal(t, "ABC12", cases.partner)
	})

	t.Run("MissingEditor", func(t *testing.T) {
		cases := &fakeCases{}
		rec := serve(t, cases, http.MethodPut, "/api/v1/cases/AB1234/editor", `{}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, cases.caseID)
	})
}
