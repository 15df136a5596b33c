// Package matchstore manages the per-tenant matches between catalog fields and CRM fields.
package matchstore

import (
	"context"
	"database/sql"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/vukmarkovic/Europace-sub000/pkg/crm"
	"github.com/vukmarkovic/Europace-sub000/pkg/database"
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
	"github.com/vukmarkovic/Europace-sub000/pkg/tracing"
)

const (
	addressCode        = "ADDRESS"
	primaryAddressCode = "ADDRESS_1"
)

type FieldRepository interface {
	ListByEntity(ctx context.Context, entity string) ([]models.Field, error)
	ListBase(ctx context.Context) ([]models.Field, error)
}

type MatchRepository interface {
	ListFieldViews(ctx context.Context, authID, entity string) ([]models.FieldView, error)
	CountByAuth(ctx context.Context, authID string) (int, error)
	Insert(ctx context.Context, matches []models.Match) error
	UpdateChildID(ctx context.Context, authID string, fieldID int64, childID string) error
	ReplaceNonBase(ctx context.Context, authID, entity string, matches []models.Match) error
}

type DefaultMatchingRepository interface {
	List(ctx context.Context) ([]models.DefaultMatching, error)
}

// Transactor opens a transaction the repositories join through ctx.
type Transactor interface {
	GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error)
}

type Service struct {
	db       Transactor
	fields   FieldRepository
	matches  MatchRepository
	defaults DefaultMatchingRepository
	logger   ectologger.Logger
}

func NewService(db Transactor, fields FieldRepository, matches MatchRepository, defaults DefaultMatchingRepository, logger ectologger.Logger) *Service {
	return &Service{
		db:       db,
		fields:   fields,
		matches:  matches,
		defaults: defaults,
		logger:   logger,
	}
}

// LoadFields returns the stored field views as the matching engine consumes them.
func (s *Service) LoadFields(ctx context.Context, tenant, entity string) ([]models.FieldView, error) {
	return s.matches.ListFieldViews(ctx, tenant, entity)
}

// Catalog lists the Europace fields of entity regardless of tenant matches.
func (s *Service) Catalog(ctx context.Context, entity string) ([]models.Field, error) {
	fields, err := s.fields.ListByEntity(ctx, entity)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "entity %s has no fields", entity)
	}
	return fields, nil
}

// GetFields returns the field views of entity shaped for the configuration UI:
// address matches show their owner tag and the primary address line as ADDRESS.
func (s *Service) GetFields(ctx context.Context, tenant, entity string) ([]models.FieldView, error) {
	ctx, span := tracing.StartSpan(ctx, "matchstore.GetFields")
	defer span.End()

	views, err := s.matches.ListFieldViews(ctx, tenant, entity)
	if err != nil {
		return nil, err
	}

	for i, view := range views {
		if view.Match == nil || !crm.IsAddress(view.Match.Entity) {
			continue
		}
		m := *view.Match
		m.Entity = strings.TrimSuffix(m.Entity, crm.AddressSuffix)
		if m.Code == primaryAddressCode {
			m.Code = addressCode
		}
		views[i].Match = &m
		views[i].Address = true
	}
	return views, nil
}

// SaveFields replaces the tenant's matches of entity with requests. The base match
// only takes a new child id. Requests without a target entity unmatch their field.
func (s *Service) SaveFields(ctx context.Context, tenant, entity string, requests []models.MatchRequest) error {
	ctx, span := tracing.StartSpan(ctx, "matchstore.SaveFields")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"auth_id": tenant,
		"entity":  entity,
	})

	views, err := s.matches.ListFieldViews(ctx, tenant, entity)
	if err != nil {
		return err
	}
	if len(views) == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "entity %s has no fields", entity)
	}

	byField := make(map[int64]models.MatchRequest, len(requests))
	for _, req := range requests {
		byField[req.FieldID] = req
	}

	var (
		base    *models.FieldView
		childID string
	)
	matches := []models.Match{}
	for i, view := range views {
		req, ok := byField[view.ID]
		if !ok {
			continue
		}
		delete(byField, view.ID)

		if view.Base {
			base, childID = &views[i], req.ChildID
			continue
		}
		if req.Entity == "" {
			continue
		}
		if req.Entity == crm.EntitySmartProcess && req.Code == "" {
			continue
		}
		matches = append(matches, toMatch(tenant, req))
	}
	if len(byField) > 0 {
		log.WithField("unknown", len(byField)).Warn("Ignoring match requests for fields outside the entity")
	}

	ctx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	if base != nil && base.Matched() && childID != base.Match.ChildID {
		if err := s.matches.UpdateChildID(ctx, tenant, base.ID, childID); err != nil {
			return err
		}
	}

	if err := s.matches.ReplaceNonBase(ctx, tenant, entity, matches); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit matches")
	}

	log.WithField("matches", len(matches)).Info("Saved matches")
	return nil
}

// InitializeTenant ensures every base field has a match and, on first install only,
// copies the default matchings to the tenant. Running it again changes nothing.
func (s *Service) InitializeTenant(ctx context.Context, tenant string) error {
	ctx, span := tracing.StartSpan(ctx, "matchstore.InitializeTenant")
	defer span.End()

	if tenant == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "tenant is required")
	}

	ctx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	count, err := s.matches.CountByAuth(ctx, tenant)
	if err != nil {
		return err
	}

	bases, err := s.fields.ListBase(ctx)
	if err != nil {
		return err
	}

	matches := ectolinq.Map(bases, func(f models.Field) models.Match {
		return models.Match{
			FieldID: f.ID,
			AuthID:  tenant,
			Entity:  f.DefaultString(),
		}
	})

	copied := 0
	if count == 0 {
		defaults, err := s.defaults.List(ctx)
		if err != nil {
			return err
		}
		matches = append(matches, ectolinq.Map(defaults, func(d models.DefaultMatching) models.Match {
			return d.ToMatch(tenant)
		})...)
		copied = len(defaults)
	}

	if err := s.matches.Insert(ctx, matches); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit tenant")
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"auth_id":           tenant,
		"first_install":     count == 0,
		"default_matchings": copied,
	}).Info("Tenant initialized")
	return nil
}

func toMatch(tenant string, req models.MatchRequest) models.Match {
	m := models.Match{
		FieldID:          req.FieldID,
		AuthID:           tenant,
		Entity:           req.Entity,
		Code:             req.Code,
		ChildType:        req.ChildType,
		ChildID:          req.ChildID,
		ChildCode:        req.ChildCode,
		ValueType:        req.ValueType,
		DefaultValue:     req.DefaultValue,
		DefaultView:      req.DefaultView,
		PhoneCodes:       req.PhoneCodes,
		DefaultPhoneCode: req.DefaultPhoneCode,
	}
	if req.Address {
		if !crm.IsAddress(m.Entity) {
			m.Entity = crm.AddressOf(m.Entity)
		}
		if m.Code == addressCode {
			m.Code = primaryAddressCode
		}
	}
	return m
}
