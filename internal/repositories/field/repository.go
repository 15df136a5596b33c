package field

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/vukmarkovic/Europace-sub000/pkg/database"
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
	"github.com/vukmarkovic/Europace-sub000/pkg/tracing"
)

const fieldsTable = "fields"

var columns = []string{"id", "entity", "code", "property_path", "type", "base", "default_value", "multiple", "link_type", "hint", "sort"}

type Row struct {
	ID           int64               `db:"id"`
	Entity       string              `db:"entity"`
	Code         string              `db:"code"`
	PropertyPath string              `db:"property_path"`
	Type         string              `db:"type"`
	Base         bool                `db:"base"`
	DefaultValue database.JSONB[any] `db:"default_value"`
	Multiple     bool                `db:"multiple"`
	LinkType     string              `db:"link_type"`
	Hint         string              `db:"hint"`
	Sort         int                 `db:"sort"`
}

func (r Row) ToModel() models.Field {
	return models.Field{
		ID:           r.ID,
		Entity:       r.Entity,
		Code:         r.Code,
		PropertyPath: r.PropertyPath,
		Type:         r.Type,
		Base:         r.Base,
		Default:      r.DefaultValue.Data,
		Multiple:     r.Multiple,
		LinkType:     r.LinkType,
		Hint:         r.Hint,
		Sort:         r.Sort,
	}
}

// Repository persists the field catalog.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// ListByEntity returns the catalog of one entity group, base first then by sort.
func (r *Repository) ListByEntity(ctx context.Context, entity string) ([]models.Field, error) {
	ctx, span := tracing.StartSpan(ctx, "field.Repository.ListByEntity")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...).
		From(fieldsTable).
		Where(sb.Equal("entity", entity)).
		OrderBy("base DESC", "sort ASC", "id ASC")

	query, args := sb.Build()
	var rows []Row
	if err := r.db.Conn(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("entity", entity).Error("Failed to list fields")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list fields")
	}

	fields := make([]models.Field, 0, len(rows))
	for _, row := range rows {
		fields = append(fields, row.ToModel())
	}
	return fields, nil
}

// ListBase returns the base field of every entity group.
func (r *Repository) ListBase(ctx context.Context) ([]models.Field, error) {
	ctx, span := tracing.StartSpan(ctx, "field.Repository.ListBase")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...).
		From(fieldsTable).
		Where(sb.Equal("base", true)).
		OrderBy("entity ASC")

	query, args := sb.Build()
	var rows []Row
	if err := r.db.Conn(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list base fields")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list base fields")
	}

	fields := make([]models.Field, 0, len(rows))
	for _, row := range rows {
		fields = append(fields, row.ToModel())
	}
	return fields, nil
}

// UpsertFields writes catalog entries keyed by id.
func (r *Repository) UpsertFields(ctx context.Context, fields []models.Field) error {
	ctx, span := tracing.StartSpan(ctx, "field.Repository.UpsertFields")
	defer span.End()

	if len(fields) == 0 {
		return nil
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(fieldsTable).Cols(append(columns, "created_at", "updated_at")...)
	for _, f := range fields {
		ib.Values(f.ID, f.Entity, f.Code, f.PropertyPath, f.Type, f.Base, database.JSONB[any]{Data: f.Default},
			f.Multiple, f.LinkType, f.Hint, f.Sort, sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()"))
	}
	database.OnConflictUpdate(ib, []string{"id"}, append(columns[1:], "updated_at")...)

	query, args := ib.Build()
	if _, err := r.db.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("count", len(fields)).Error("Failed to upsert fields")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert fields")
	}

	r.logger.WithContext(ctx).Debugf("Upserted %d %s", len(fields), fieldsTable)
	return nil
}
