package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "github.com/vukmarkovic/Europace-sub000/pkg/context"
	matchErrors "github.com/vukmarkovic/Europace-sub000/pkg/errors"
)

func newEcho() *echo.Echo {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	e := echo.New()
	e.HTTPErrorHandler = Error(logger)
	e.Use(Context(), TestAuth())
	return e
}

func TestContextAndTestAuth(t *testing.T) {
	e := newEcho()
	var seen context.Context
	e.GET("/ping", func(c echo.Context) error {
		seen = c.Request().Context()
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderTenantID, "tenant-1")
	req.Header.Set(HeaderUserID, "user-1")
	req.Header.Set(HeaderPortal, "portal.bitrix24.de")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "tenant-1", appctx.GetTenantID(seen))
	assert.Equal(t, "user-1", appctx.GetUserID(seen))
	assert.Equal(t, "portal.bitrix24.de", appctx.GetPortal(seen))
	assert.Equal(t, "/ping", appctx.GetRoute(seen))
	assert.NotEmpty(t, appctx.GetRequestID(seen))
	assert.Equal(t, appctx.GetRequestID(seen), rec.Header().Get(echo.HeaderXRequestID))
}

func TestContext_RouteTemplateAndPortalQuery(t *testing.T) {
	e := newEcho()
	var seen context.Context
	e.GET("/records/:entity/:id", func(c echo.Context) error {
		seen = c.Request().Context()
		return c.NoContent(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records/CUSTOMER/5?DOMAIN=acme.bitrix24.de", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "/records/:entity/:id", appctx.GetRoute(seen))
	assert.Equal(t, "acme.bitrix24.de", appctx.GetPortal(seen))
}

func TestRequireTenant(t *testing.T) {
	e := newEcho()
	e.GET("/fields", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RequireTenant())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fields", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/fields", nil)
	req.Header.Set(HeaderTenantID, "tenant-1")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestError_RendersMatchingErrors(t *testing.T) {
	e := newEcho()
	e.GET("/missing", func(c echo.Context) error {
		return matchErrors.NewConfigurationError(matchErrors.CodeMissingBaseMatch, "no base match").WithEntity("LOAN")
	})
	e.GET("/http", func(c echo.Context) error {
		return httperror.NewHTTPError(http.StatusConflict, "fields are being saved")
	})
	e.GET("/plain", func(c echo.Context) error {
		return errors.New("boom")
	})

	tests := []struct {
		path    string
		code    int
		message string
	}{
		{"/missing", http.StatusBadRequest, ""},
		{"/http", http.StatusConflict, ""},
		{"/plain", http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.code, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.message != "" {
				assert.Equal(t, tt.message, body.Message)
			}
			assert.NotEmpty(t, body.RequestID)
		})
	}
}

type rejectingVerifier struct{}

func (rejectingVerifier) Verify(context.Context, string) (*oidc.IDToken, error) {
	return nil, errors.New("expired")
}

func TestAuthentication_Rejects(t *testing.T) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	e := echo.New()
	e.GET("/fields", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, Authentication(logger, rejectingVerifier{}))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fields", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/fields", nil)
	req.Header.Set("Authorization", "Bearer abc")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserClaims_Tenant(t *testing.T) {
	claims := UserClaims{TenantID: "tenant-1"}
	claims.RealmAccess.Roles = []string{"role-tenant"}
	assert.Equal(t, "tenant-1", claims.Tenant())

	claims.TenantID = ""
	assert.Equal(t, "role-tenant", claims.Tenant())

	assert.Empty(t, UserClaims{}.Tenant())
}

func TestContainer_UnknownID(t *testing.T) {
	e := newEcho()
	e.GET("/ping", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, Container("no-such-container"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
