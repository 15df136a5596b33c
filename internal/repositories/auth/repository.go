package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/vukmarkovic/Europace-sub000/pkg/database"
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
	"github.com/vukmarkovic/Europace-sub000/pkg/tracing"
)

const authsTable = "auths"

type Row struct {
	ID           string         `db:"id"`
	Domain       string         `db:"domain"`
	AccessToken  string         `db:"access_token"`
	RefreshToken string         `db:"refresh_token"`
	ExpiresAt    time.Time      `db:"expires_at"`
	Timezone     sql.NullString `db:"timezone"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

var authStruct = database.NewStruct(new(Row))

func FromAuth(a models.Auth) *Row {
	return &Row{
		ID:           a.ID,
		Domain:       a.Domain,
		AccessToken:  a.AccessToken,
		RefreshToken: a.RefreshToken,
		ExpiresAt:    a.ExpiresAt,
		Timezone:     sql.NullString{String: a.Timezone, Valid: a.Timezone != ""},
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func (r Row) ToModel() models.Auth {
	return models.Auth{
		ID:           r.ID,
		Domain:       r.Domain,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt,
		Timezone:     r.Timezone.String,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// Repository persists CRM portal installations and their OAuth tokens.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

func (r *Repository) Get(ctx context.Context, id string) (models.Auth, error) {
	ctx, span := tracing.StartSpan(ctx, "auth.Repository.Get")
	defer span.End()

	sb := authStruct.SelectFrom(authsTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var row Row
	if err := r.db.Conn(ctx).GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Auth{}, httperror.NewHTTPErrorf(http.StatusNotFound, "tenant %s is not installed", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithField("auth_id", id).Error("Failed to get auth")
		return models.Auth{}, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get auth")
	}
	return row.ToModel(), nil
}

// Upsert stores an installation, replacing tokens of a portal installed before.
func (r *Repository) Upsert(ctx context.Context, auth models.Auth) error {
	ctx, span := tracing.StartSpan(ctx, "auth.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()
	auth.CreatedAt = now
	auth.UpdatedAt = now

	ib := authStruct.InsertInto(authsTable, FromAuth(auth))
	database.OnConflictUpdate(ib, []string{"id"}, "domain", "access_token", "refresh_token", "expires_at", "timezone", "updated_at")

	query, args := ib.Build()
	if _, err := r.db.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"auth_id": auth.ID,
			"domain":  auth.Domain,
		}).Error("Failed to upsert auth")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save auth")
	}
	return nil
}

// UpdateTokens stores a refreshed token pair.
func (r *Repository) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "auth.Repository.UpdateTokens")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(authsTable).
		Set(
			ub.Assign("access_token", accessToken),
			ub.Assign("refresh_token", refreshToken),
			ub.Assign("expires_at", expiresAt),
			ub.Assign("updated_at", time.Now().UTC()),
		).
		Where(ub.Equal("id", id))

	query, args := ub.Build()
	res, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("auth_id", id).Error("Failed to update tokens")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update tokens")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "tenant %s is not installed", id)
	}
	return nil
}
