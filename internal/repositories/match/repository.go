package match

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/vukmarkovic/Europace-sub000/pkg/database"
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
	"github.com/vukmarkovic/Europace-sub000/pkg/tracing"
)

const (
	matchesTable = "matches"
	fieldsTable  = "fields"
)

var insertColumns = []string{
	"field_id", "auth_id", "entity", "code", "child_type", "child_id", "child_code",
	"value_type", "default_value", "default_view", "phone_codes", "default_phone_code",
	"created_at", "updated_at",
}

// viewRow is a catalog field left-joined with the tenant's match.
type viewRow struct {
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

	MatchID          sql.NullInt64  `db:"match_id"`
	AuthID           sql.NullString `db:"match_auth_id"`
	MatchEntity      sql.NullString `db:"match_entity"`
	MatchCode        sql.NullString `db:"match_code"`
	ChildType        sql.NullString `db:"match_child_type"`
	ChildID          sql.NullString `db:"match_child_id"`
	ChildCode        sql.NullString `db:"match_child_code"`
	ValueType        sql.NullString `db:"match_value_type"`
	MatchDefault     sql.NullString `db:"match_default_value"`
	DefaultView      sql.NullString `db:"match_default_view"`
	PhoneCodes       pq.StringArray `db:"match_phone_codes"`
	DefaultPhoneCode sql.NullString `db:"match_default_phone_code"`
}

func (r viewRow) toModel() models.FieldView {
	view := models.FieldView{Field: models.Field{
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
	}}
	if !r.MatchID.Valid {
		return view
	}
	view.Match = &models.Match{
		ID:               r.MatchID.Int64,
		FieldID:          r.ID,
		AuthID:           r.AuthID.String,
		Entity:           r.MatchEntity.String,
		Code:             r.MatchCode.String,
		ChildType:        r.ChildType.String,
		ChildID:          r.ChildID.String,
		ChildCode:        r.ChildCode.String,
		ValueType:        r.ValueType.String,
		DefaultValue:     r.MatchDefault.String,
		DefaultView:      r.DefaultView.String,
		PhoneCodes:       []string(r.PhoneCodes),
		DefaultPhoneCode: r.DefaultPhoneCode.String,
	}
	return view
}

// Repository persists tenant matches.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// ListFieldViews loads the catalog of entity joined with the tenant's matches,
// base first then by sort.
func (r *Repository) ListFieldViews(ctx context.Context, authID, entity string) ([]models.FieldView, error) {
	ctx, span := tracing.StartSpan(ctx, "match.Repository.ListFieldViews")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(
		"f.id", "f.entity", "f.code", "f.property_path", "f.type", "f.base", "f.default_value",
		"f.multiple", "f.link_type", "f.hint", "f.sort",
		sb.As("m.id", "match_id"),
		sb.As("m.auth_id", "match_auth_id"),
		sb.As("m.entity", "match_entity"),
		sb.As("m.code", "match_code"),
		sb.As("m.child_type", "match_child_type"),
		sb.As("m.child_id", "match_child_id"),
		sb.As("m.child_code", "match_child_code"),
		sb.As("m.value_type", "match_value_type"),
		sb.As("m.default_value", "match_default_value"),
		sb.As("m.default_view", "match_default_view"),
		sb.As("m.phone_codes", "match_phone_codes"),
		sb.As("m.default_phone_code", "match_default_phone_code"),
	)
	sb.From(sb.As(fieldsTable, "f"))
	sb.JoinWithOption(sqlbuilder.LeftJoin, sb.As(matchesTable, "m"), "m.field_id = f.id", sb.Equal("m.auth_id", authID))
	sb.Where(sb.Equal("f.entity", entity))
	sb.OrderBy("f.base DESC", "f.sort ASC", "f.id ASC")

	query, args := sb.Build()
	var rows []viewRow
	if err := r.db.Conn(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"auth_id": authID,
			"entity":  entity,
		}).Error("Failed to list field views")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list fields")
	}

	views := make([]models.FieldView, 0, len(rows))
	for _, row := range rows {
		views = append(views, row.toModel())
	}
	return views, nil
}

// CountByAuth counts every match of a tenant.
func (r *Repository) CountByAuth(ctx context.Context, authID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "match.Repository.CountByAuth")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("COUNT(*)").From(matchesTable).Where(sb.Equal("auth_id", authID))

	query, args := sb.Build()
	var count int
	if err := r.db.Conn(ctx).GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("auth_id", authID).Error("Failed to count matches")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count matches")
	}
	return count, nil
}

// Insert adds matches. A match for a (field, tenant) pair that already exists is kept as is.
func (r *Repository) Insert(ctx context.Context, matches []models.Match) error {
	ctx, span := tracing.StartSpan(ctx, "match.Repository.Insert")
	defer span.End()

	if len(matches) == 0 {
		return nil
	}

	ib := insertBuilder(matches)
	ib.SQL("ON CONFLICT (field_id, auth_id) DO NOTHING")

	query, args := ib.Build()
	if _, err := r.db.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("count", len(matches)).Error("Failed to insert matches")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert matches")
	}
	return nil
}

// UpdateChildID changes the sub-type selector of one match.
func (r *Repository) UpdateChildID(ctx context.Context, authID string, fieldID int64, childID string) error {
	ctx, span := tracing.StartSpan(ctx, "match.Repository.UpdateChildID")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(matchesTable).
		Set(ub.Assign("child_id", childID), "updated_at = NOW()").
		Where(ub.Equal("auth_id", authID), ub.Equal("field_id", fieldID))

	query, args := ub.Build()
	res, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("field_id", fieldID).Error("Failed to update match child id")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update match")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "match for field %d does not exist", fieldID)
	}
	return nil
}

// ReplaceNonBase swaps every non-base match of an entity group for matches in one
// transaction. It joins a transaction already open on ctx.
func (r *Repository) ReplaceNonBase(ctx context.Context, authID, entity string, matches []models.Match) error {
	ctx, span := tracing.StartSpan(ctx, "match.Repository.ReplaceNonBase")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"auth_id": authID,
		"entity":  entity,
	})

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	fields := database.NewSelectBuilder()
	fields.Select("id").From(fieldsTable).Where(fields.Equal("entity", entity), "NOT base")

	del := database.NewDeleteBuilder()
	del.DeleteFrom(matchesTable).Where(del.Equal("auth_id", authID), del.In("field_id", fields))

	query, args := del.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to delete matches")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete matches")
	}

	if len(matches) > 0 {
		query, args = insertBuilder(matches).Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			log.WithError(err).Error("Failed to insert matches")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert matches")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.WithError(err).Error("Failed to commit matches")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit")
	}

	log.Debugf("Replaced non-base %s with %d rows", matchesTable, len(matches))
	return nil
}

func insertBuilder(matches []models.Match) *sqlbuilder.InsertBuilder {
	ib := database.NewInsertBuilder()
	ib.InsertInto(matchesTable).Cols(insertColumns...)
	for _, m := range matches {
		codes := m.PhoneCodes
		if codes == nil {
			codes = []string{}
		}
		ib.Values(m.FieldID, m.AuthID, m.Entity, m.Code, m.ChildType, m.ChildID, m.ChildCode,
			m.ValueType, m.DefaultValue, m.DefaultView, pq.StringArray(codes), m.DefaultPhoneCode,
			sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()"))
	}
	return ib
}
