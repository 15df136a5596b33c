// Package cases exposes Europace cases that were created from CRM records.
package cases

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/vukmarkovic/Europace-sub000/config"
	"github.com/vukmarkovic/Europace-sub000/pkg/tracing"
	"github.com/vukmarkovic/Europace-sub000/pkg/utils"
)

type Cases interface {
	GetCase(ctx context.Context, partnerID, caseID string) (map[string]any, error)
	ReassignEditor(ctx context.Context, partnerID, caseID, editorID string) error
}

// Register registers the case routes
func Register(g *echo.Group) {
	g.GET("/:caseId", Get)
	g.PUT("/:caseId/editor", ReassignEditor)
}

type GetRequest struct {
	CaseID    string `param:"caseId" validate:"required"`
	PartnerID string `query:"partner_id"`
}

// Get handles GET /cases/:caseId
func Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "CasesHandler.Get")
	defer span.End()

	req, err := utils.BindRequest[GetRequest](c)
	if err != nil {
		return err
	}

	ctx, cases, partnerID, err := resolve(ctx, req.PartnerID)
	if err != nil {
		return err
	}

	found, err := cases.GetCase(ctx, partnerID, req.CaseID)
	if err != nil {
		return tracing.RecordError(span, err)
	}
	return c.JSON(http.StatusOK, found)
}

type ReassignRequest struct {
	CaseID    string `param:"caseId" validate:"required"`
	PartnerID string `json:"partner_id"`
	EditorID  string `json:"editor_id" validate:"required"`
}

// ReassignEditor handles PUT /cases/:caseId/editor. The case moves to another
// Europace partner, usually when the responsible CRM user changes.
func ReassignEditor(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "CasesHandler.ReassignEditor")
	defer span.End()

	req, err := utils.BindRequest[ReassignRequest](c)
	if err != nil {
		return err
	}

	ctx, cases, partnerID, err := resolve(ctx, req.PartnerID)
	if err != nil {
		return err
	}

	if err := cases.ReassignEditor(ctx, partnerID, req.CaseID, req.EditorID); err != nil {
		return tracing.RecordError(span, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// resolve returns the case client and the partner the request acts for.
func resolve(ctx context.Context, partnerID string) (context.Context, Cases, string, error) {
	ctx, cases, err := ectoinject.GetContext[Cases](ctx)
	if err != nil {
		return ctx, nil, "", httperror.NewHTTPError(http.StatusInternalServerError, "failed to get case client")
	}
	if partnerID != "" {
		return ctx, cases, partnerID, nil
	}
	ctx, cfg, err := ectoinject.GetContext[*config.Config](ctx)
	if err != nil {
		return ctx, nil, "", httperror.NewHTTPError(http.StatusInternalServerError, "failed to get config")
	}
	return ctx, cases, cfg.EuropaceDefaultPartner, nil
}
