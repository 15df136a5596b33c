// Package signin opens a CRM record in Europace.
package signin

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/vukmarkovic/Europace-sub000/config"
	appctx "github.com/vukmarkovic/Europace-sub000/pkg/context"
	"github.com/vukmarkovic/Europace-sub000/pkg/kafka"
	"github.com/vukmarkovic/Europace-sub000/pkg/tracing"
	"github.com/vukmarkovic/Europace-sub000/pkg/utils"
)

// Syncer pushes a record to Europace and writes the case number back.
type Syncer interface {
	Process(ctx context.Context, task *kafka.SyncTask) *kafka.SyncResult
}

type Links interface {
	SignInURL(ctx context.Context, partnerID, caseID string) (string, error)
}

// Register registers the sign-in routes
func Register(g *echo.Group) {
	g.POST("/:entity/:id", SignIn)
}

type Request struct {
	Entity    string `param:"entity" validate:"required"`
	ID        int64  `param:"id" validate:"gt=0"`
	CaseID    string `json:"case_id"`
	PartnerID string `json:"partner_id"`
}

type Response struct {
	URL    string `json:"url"`
	CaseID string `json:"case_id"`
	Status string `json:"status"`
}

// SignIn handles POST /signin/:entity/:id. The record is synced first so the case
// opened in Europace carries the current CRM data.
func SignIn(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SignInHandler.SignIn")
	defer span.End()

	req, err := utils.BindRequest[Request](c)
	if err != nil {
		return err
	}

	ctx, syncer, err := ectoinject.GetContext[Syncer](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get syncer")
	}
	ctx, links, err := ectoinject.GetContext[Links](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get europace links")
	}
	ctx, cfg, err := ectoinject.GetContext[*config.Config](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get config")
	}

	partnerID := req.PartnerID
	if partnerID == "" {
		partnerID = cfg.EuropaceDefaultPartner
	}

	result := syncer.Process(ctx, &kafka.SyncTask{
		TenantID:  appctx.GetTenantID(ctx),
		Entity:    req.Entity,
		RecordID:  req.ID,
		CaseID:    req.CaseID,
		PartnerID: partnerID,
		TraceID:   tracing.GetTraceID(ctx),
	})
	if result.Status == kafka.StatusFailed {
		return httperror.NewHTTPError(http.StatusBadGateway, result.Message).
			AddMetaValue("code", result.Code)
	}

	url, err := links.SignInURL(ctx, partnerID, result.CaseID)
	if err != nil {
		return tracing.RecordError(span, err)
	}
	return c.JSON(http.StatusOK, Response{URL: url, CaseID: result.CaseID, Status: result.Status})
}
