// Package records reads and writes CRM records in Europace shape.
package records

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	appctx "github.com/vukmarkovic/Europace-sub000/pkg/context"
	"github.com/vukmarkovic/Europace-sub000/pkg/crm"
	"github.com/vukmarkovic/Europace-sub000/pkg/matching"
	"github.com/vukmarkovic/Europace-sub000/pkg/tracing"
	"github.com/vukmarkovic/Europace-sub000/pkg/utils"
)

type Matcher interface {
	PrepareData(ctx context.Context, tenant, entity string, filter crm.Filter, unmatched matching.UnmatchedFields) (*matching.Record, error)
	PrepareList(ctx context.Context, tenant, entity string, filter crm.Filter, unmatched matching.UnmatchedFields) ([]*matching.Record, error)
	PrepareListWithLinkedData(ctx context.Context, tenant, entity string, filter crm.Filter, unmatched matching.UnmatchedFields) ([]*matching.Record, error)
	SaveData(ctx context.Context, tenant string, req matching.SaveRequest, opts matching.SaveOptions) (*matching.SaveResult, error)
	Transform(ctx context.Context, tenant, entity string, crmRecord map[string]any, unmatched matching.UnmatchedFields) (*matching.Record, error)
	MatchData(ctx context.Context, tenant, entity string, record map[string]any) (map[string]any, error)
}

// Register registers the record routes
func Register(g *echo.Group) {
	g.POST("", Save)
	g.GET("/:entity/:id", Get)
	g.POST("/:entity/list", List)
	g.POST("/:entity/transform", Transform)
	g.POST("/:entity/match", Match)
}

type GetRequest struct {
	Entity string `param:"entity" validate:"required"`
	ID     int64  `param:"id" validate:"gt=0"`
}

type ListRequest struct {
	Entity    string                   `param:"entity" validate:"required"`
	Filter    crm.Filter               `json:"filter"`
	Unmatched matching.UnmatchedFields `json:"unmatched"`
}

type SaveRequest struct {
	Data    matching.SaveRequest `json:"data" validate:"required"`
	Options matching.SaveOptions `json:"options"`
}

type TransformRequest struct {
	Entity    string                   `param:"entity" validate:"required"`
	Record    map[string]any           `json:"record" validate:"required"`
	Unmatched matching.UnmatchedFields `json:"unmatched"`
}

// Get handles GET /records/:entity/:id
func Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "RecordsHandler.Get")
	defer span.End()

	req, err := utils.BindRequest[GetRequest](c)
	if err != nil {
		return err
	}

	ctx, matcher, err := ectoinject.GetContext[Matcher](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get matcher")
	}

	record, err := matcher.PrepareData(ctx, appctx.GetTenantID(ctx), req.Entity, crm.Filter{ID: req.ID}, nil)
	if err != nil {
		return tracing.RecordError(span, err)
	}
	return c.JSON(http.StatusOK, record)
}

// List handles POST /records/:entity/list. ?linked=true reads the linked records of every row.
func List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "RecordsHandler.List")
	defer span.End()

	req, err := utils.BindRequest[ListRequest](c)
	if err != nil {
		return err
	}

	ctx, matcher, err := ectoinject.GetContext[Matcher](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get matcher")
	}

	linked := false
	if raw := c.QueryParam("linked"); raw != "" {
		if linked, err = strconv.ParseBool(raw); err != nil {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid linked flag %q", raw)
		}
	}

	list := matcher.PrepareList
	if linked {
		list = matcher.PrepareListWithLinkedData
	}
	records, err := list(ctx, appctx.GetTenantID(ctx), req.Entity, req.Filter, req.Unmatched)
	if err != nil {
		return tracing.RecordError(span, err)
	}
	if records == nil {
		records = []*matching.Record{}
	}
	return c.JSON(http.StatusOK, records)
}

// Save handles POST /records
func Save(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "RecordsHandler.Save")
	defer span.End()

	req, err := utils.BindRequest[SaveRequest](c)
	if err != nil {
		return err
	}

	ctx, matcher, err := ectoinject.GetContext[Matcher](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get matcher")
	}

	result, err := matcher.SaveData(ctx, appctx.GetTenantID(ctx), req.Data, req.Options)
	if err != nil {
		return tracing.RecordError(span, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Transform handles POST /records/:entity/transform
func Transform(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "RecordsHandler.Transform")
	defer span.End()

	req, err := utils.BindRequest[TransformRequest](c)
	if err != nil {
		return err
	}

	ctx, matcher, err := ectoinject.GetContext[Matcher](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get matcher")
	}

	record, err := matcher.Transform(ctx, appctx.GetTenantID(ctx), req.Entity, req.Record, req.Unmatched)
	if err != nil {
		return tracing.RecordError(span, err)
	}
	return c.JSON(http.StatusOK, record)
}

// Match handles POST /records/:entity/match
func Match(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "RecordsHandler.Match")
	defer span.End()

	req, err := utils.BindRequest[TransformRequest](c)
	if err != nil {
		return err
	}

	ctx, matcher, err := ectoinject.GetContext[Matcher](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get matcher")
	}

	out, err := matcher.MatchData(ctx, appctx.GetTenantID(ctx), req.Entity, req.Record)
	if err != nil {
		return tracing.RecordError(span, err)
	}
	return c.JSON(http.StatusOK, out)
}
