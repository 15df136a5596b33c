// Package tenant installs a CRM portal.
package tenant

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/vukmarkovic/Europace-sub000/pkg/context"
	"github.com/vukmarkovic/Europace-sub000/pkg/database"
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
	"github.com/vukmarkovic/Europace-sub000/pkg/tracing"
	"github.com/vukmarkovic/Europace-sub000/pkg/utils"
)

type Auths interface {
	Upsert(ctx context.Context, auth models.Auth) error
}

type Initializer interface {
	InitializeTenant(ctx context.Context, tenant string) error
}

var now = time.Now

// Register registers tenant routes
func Register(g *echo.Group) {
	g.POST("/install", Install)
}

// InstallRequest carries the OAuth grant of the portal installing the application.
type InstallRequest struct {
	Domain       string `json:"domain" validate:"required,hostname"`
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
	ExpiresIn    int    `json:"expires_in" validate:"gte=0"`
	Timezone     string `json:"timezone"`
}

type InstallResponse struct {
	TenantID string `json:"tenant_id"`
	Domain   string `json:"domain"`
}

// Install handles POST /tenants/install. Repeated installs refresh the credentials and
// keep the existing matches. The credentials and the seeded field catalog commit together.
func Install(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "TenantHandler.Install")
	defer span.End()

	req, err := utils.BindRequest[InstallRequest](c)
	if err != nil {
		return err
	}
	tenant := appctx.GetTenantID(ctx)

	ctx, auths, err := ectoinject.GetContext[Auths](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get auth repository")
	}
	ctx, store, err := ectoinject.GetContext[Initializer](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get field store")
	}
	ctx, db, err := ectoinject.GetContext[database.DB](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get database")
	}

	expiresIn := time.Duration(req.ExpiresIn) * time.Second
	if expiresIn == 0 {
		expiresIn = time.Hour
	}

	ctx, tx, err := db.GetTx(ctx, nil)
	if err != nil {
		return tracing.RecordError(span, err)
	}
	defer tx.Rollback(ctx)

	if err := auths.Upsert(ctx, models.Auth{
		ID:           tenant,
		Domain:       req.Domain,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		ExpiresAt:    now().Add(expiresIn),
		Timezone:     req.Timezone,
	}); err != nil {
		return tracing.RecordError(span, err)
	}
	if err := store.InitializeTenant(ctx, tenant); err != nil {
		return tracing.RecordError(span, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return tracing.RecordError(span, err)
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithField("domain", req.Domain).Info("Tenant installed")
	}
	return c.JSON(http.StatusOK, InstallResponse{TenantID: tenant, Domain: req.Domain})
}
