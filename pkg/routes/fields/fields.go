// Package fields serves the match configuration of a tenant.
package fields

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/vukmarkovic/Europace-sub000/pkg/context"
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
	"github.com/vukmarkovic/Europace-sub000/pkg/redis"
	"github.com/vukmarkovic/Europace-sub000/pkg/tracing"
	"github.com/vukmarkovic/Europace-sub000/pkg/utils"
)

const (
	lockTTL  = 30 * time.Second
	lockWait = 5 * time.Second
)

type Store interface {
	Catalog(ctx context.Context, entity string) ([]models.Field, error)
	GetFields(ctx context.Context, tenant, entity string) ([]models.FieldView, error)
	LoadFields(ctx context.Context, tenant, entity string) ([]models.FieldView, error)
	SaveFields(ctx context.Context, tenant, entity string, requests []models.MatchRequest) error
}

type ParentChecker interface {
	CheckParent(ctx context.Context, tenant string, parent, child models.FieldView) (bool, error)
}

type Locker interface {
	WithLock(ctx context.Context, key string, ttl, wait time.Duration, fn func(ctx context.Context) error) error
}

// Register registers the field routes
func Register(g *echo.Group) {
	g.GET("/:entity", Get)
	g.GET("/:entity/catalog", Catalog)
	g.PUT("/:entity", Save)
	g.POST("/:entity/check-parent", CheckParent)
}

type EntityRequest struct {
	Entity string `param:"entity" validate:"required"`
}

type SaveRequest struct {
	Entity string                `param:"entity" validate:"required"`
	Fields []models.MatchRequest `json:"fields" validate:"dive"`
}

type CheckParentRequest struct {
	Entity       string `param:"entity" validate:"required"`
	ParentEntity string `json:"parent_entity" validate:"required"`
	// ParentCode and ChildCode default to the base fields of their groups.
	ParentCode string `json:"parent_code"`
	ChildCode  string `json:"child_code"`
}

type CheckParentResponse struct {
	Linked bool `json:"linked"`
}

// Get handles GET /fields/:entity
func Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "FieldsHandler.Get")
	defer span.End()

	req, err := utils.BindRequest[EntityRequest](c)
	if err != nil {
		return err
	}

	ctx, store, err := ectoinject.GetContext[Store](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get field store")
	}

	views, err := store.GetFields(ctx, appctx.GetTenantID(ctx), req.Entity)
	if err != nil {
		return tracing.RecordError(span, err)
	}
	return c.JSON(http.StatusOK, views)
}

// Catalog handles GET /fields/:entity/catalog
func Catalog(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "FieldsHandler.Catalog")
	defer span.End()

	req, err := utils.BindRequest[EntityRequest](c)
	if err != nil {
		return err
	}

	ctx, store, err := ectoinject.GetContext[Store](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get field store")
	}

	fields, err := store.Catalog(ctx, req.Entity)
	if err != nil {
		return tracing.RecordError(span, err)
	}
	return c.JSON(http.StatusOK, fields)
}

// Save handles PUT /fields/:entity. Saves of one tenant are serialized by a redis lock.
func Save(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "FieldsHandler.Save")
	defer span.End()

	req, err := utils.BindRequest[SaveRequest](c)
	if err != nil {
		return err
	}
	tenant := appctx.GetTenantID(ctx)

	ctx, store, err := ectoinject.GetContext[Store](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get field store")
	}
	ctx, locker, err := ectoinject.GetContext[Locker](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get locker")
	}

	err = locker.WithLock(ctx, "fields:"+tenant, lockTTL, lockWait, func(ctx context.Context) error {
		return store.SaveFields(ctx, tenant, req.Entity, req.Fields)
	})
	if errors.Is(err, redis.ErrLockNotAcquired) {
		return httperror.NewHTTPError(http.StatusConflict, "fields of this tenant are being saved, retry later")
	}
	if err != nil {
		return tracing.RecordError(span, err)
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{
			"entity": req.Entity,
			"fields": len(req.Fields),
		}).Info("Saved field matches")
	}

	views, err := store.GetFields(ctx, tenant, req.Entity)
	if err != nil {
		return tracing.RecordError(span, err)
	}
	return c.JSON(http.StatusOK, views)
}

// CheckParent handles POST /fields/:entity/check-parent
func CheckParent(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "FieldsHandler.CheckParent")
	defer span.End()

	req, err := utils.BindRequest[CheckParentRequest](c)
	if err != nil {
		return err
	}
	tenant := appctx.GetTenantID(ctx)

	ctx, store, err := ectoinject.GetContext[Store](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get field store")
	}
	ctx, checker, err := ectoinject.GetContext[ParentChecker](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get parent checker")
	}

	parent, err := find(ctx, store, tenant, req.ParentEntity, req.ParentCode)
	if err != nil {
		return tracing.RecordError(span, err)
	}
	child, err := find(ctx, store, tenant, req.Entity, req.ChildCode)
	if err != nil {
		return tracing.RecordError(span, err)
	}

	linked, err := checker.CheckParent(ctx, tenant, parent, child)
	if err != nil {
		return tracing.RecordError(span, err)
	}
	return c.JSON(http.StatusOK, CheckParentResponse{Linked: linked})
}

func find(ctx context.Context, store Store, tenant, entity, code string) (models.FieldView, error) {
	views, err := store.LoadFields(ctx, tenant, entity)
	if err != nil {
		return models.FieldView{}, err
	}
	for _, v := range views {
		if (code == "" && v.Base) || (code != "" && v.Code == code) {
			return v, nil
		}
	}
	return models.FieldView{}, httperror.NewHTTPErrorf(http.StatusNotFound, "field %s of %s not found", code, entity)
}
