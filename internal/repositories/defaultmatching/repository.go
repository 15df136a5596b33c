package defaultmatching

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/vukmarkovic/Europace-sub000/pkg/database"
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
	"github.com/vukmarkovic/Europace-sub000/pkg/tracing"
)

const table = "default_matchings"

var columns = []string{
	"field_id", "entity", "code", "child_type", "child_id", "child_code",
	"value_type", "default_value", "default_view", "phone_codes", "default_phone_code",
}

type Row struct {
	ID               int64          `db:"id"`
	FieldID          int64          `db:"field_id"`
	FieldEntity      string         `db:"field_entity"`
	FieldCode        string         `db:"field_code"`
	Entity           string         `db:"entity"`
	Code             string         `db:"code"`
	ChildType        string         `db:"child_type"`
	ChildID          string         `db:"child_id"`
	ChildCode        string         `db:"child_code"`
	ValueType        string         `db:"value_type"`
	DefaultValue     string         `db:"default_value"`
	DefaultView      string         `db:"default_view"`
	PhoneCodes       pq.StringArray `db:"phone_codes"`
	DefaultPhoneCode string         `db:"default_phone_code"`
}

func (r Row) ToModel() models.DefaultMatching {
	return models.DefaultMatching{
		ID:               r.ID,
		FieldID:          r.FieldID,
		FieldEntity:      r.FieldEntity,
		FieldCode:        r.FieldCode,
		Entity:           r.Entity,
		Code:             r.Code,
		ChildType:        r.ChildType,
		ChildID:          r.ChildID,
		ChildCode:        r.ChildCode,
		ValueType:        r.ValueType,
		DefaultValue:     r.DefaultValue,
		DefaultView:      r.DefaultView,
		PhoneCodes:       []string(r.PhoneCodes),
		DefaultPhoneCode: r.DefaultPhoneCode,
	}
}

// Repository persists the tenant independent match templates.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// List returns every template with the entity and code of the field it targets.
func (r *Repository) List(ctx context.Context) ([]models.DefaultMatching, error) {
	ctx, span := tracing.StartSpan(ctx, "defaultmatching.Repository.List")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(
		"d.id", "d.field_id", sb.As("f.entity", "field_entity"), sb.As("f.code", "field_code"),
		"d.entity", "d.code", "d.child_type", "d.child_id", "d.child_code", "d.value_type",
		"d.default_value", "d.default_view", "d.phone_codes", "d.default_phone_code",
	)
	sb.From(sb.As(table, "d"))
	sb.Join(sb.As("fields", "f"), "f.id = d.field_id")
	sb.OrderBy("d.field_id ASC", "d.id ASC")

	query, args := sb.Build()
	var rows []Row
	if err := r.db.Conn(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list default matchings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list default matchings")
	}

	matchings := make([]models.DefaultMatching, 0, len(rows))
	for _, row := range rows {
		matchings = append(matchings, row.ToModel())
	}
	return matchings, nil
}

// ReplaceDefaultMatchings swaps the whole template set in one transaction.
func (r *Repository) ReplaceDefaultMatchings(ctx context.Context, matchings []models.DefaultMatching) error {
	ctx, span := tracing.StartSpan(ctx, "defaultmatching.Repository.ReplaceDefaultMatchings")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	query, args := database.NewDeleteBuilder().DeleteFrom(table).Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to clear default matchings")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to clear default matchings")
	}

	if len(matchings) > 0 {
		ib := database.NewInsertBuilder()
		ib.InsertInto(table).Cols(append(columns, "created_at")...)
		for _, d := range matchings {
			codes := d.PhoneCodes
			if codes == nil {
				codes = []string{}
			}
			ib.Values(d.FieldID, d.Entity, d.Code, d.ChildType, d.ChildID, d.ChildCode, d.ValueType,
				d.DefaultValue, d.DefaultView, pq.StringArray(codes), d.DefaultPhoneCode, sqlbuilder.Raw("NOW()"))
		}

		query, args = ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("count", len(matchings)).Error("Failed to insert default matchings")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert default matchings")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit")
	}
	return nil
}
