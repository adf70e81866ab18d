// Package profilestore provides read-only queries over the relational
// profile store owned by the profile service.
package profilestore

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/Ramsey-B/bloom/pkg/database"
	"github.com/Ramsey-B/bloom/pkg/matching"
	"github.com/Ramsey-B/bloom/pkg/models"
	"github.com/Ramsey-B/bloom/pkg/tracing"
)

// Repository handles database operations against the profiles and matches
// tables.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// New creates a new profile store repository
func New(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

type profileRow struct {
	ID        string                                  `db:"id"`
	Data      database.JSONB[models.RawProfileRecord] `db:"data"`
	UpdatedAt time.Time                               `db:"updated_at"`
}

func (row profileRow) record() models.RawProfileRecord {
	rec := row.Data.GetValue()
	if rec == nil {
		rec = models.RawProfileRecord{}
	}
	if _, ok := rec["id"]; !ok {
		rec["id"] = row.ID
	}
	return rec
}

// GetProfileByID retrieves a single profile payload. Returns (nil, nil) when
// no profile with the given id exists.
func (r *Repository) GetProfileByID(ctx context.Context, id string) (models.RawProfileRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "profilestore.Repository.GetProfileByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "data", "updated_at")
	sb.From("profiles")
	sb.Where(
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var row profileRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get profile")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get profile")
	}

	return row.record(), nil
}

// GetProfilesByIDs retrieves full payloads for a batch of ids. Missing ids
// are simply absent from the result.
func (r *Repository) GetProfilesByIDs(ctx context.Context, ids []string) ([]models.RawProfileRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "profilestore.Repository.GetProfilesByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "data", "updated_at")
	sb.From("profiles")
	sb.Where(
		sb.In("id", sqlbuilder.Flatten(ids)...),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var rows []profileRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id_count": len(ids),
		}).Error("Failed to get profiles by ids")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get profiles")
	}

	records := make([]models.RawProfileRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}

	return records, nil
}

// QueryProfiles scans for candidate profiles matching the structural filters.
// Soft filters such as interests and score thresholds are applied downstream
// by the scorer; only what the indexed columns can answer is pushed here.
func (r *Repository) QueryProfiles(ctx context.Context, q matching.CandidateQuery) ([]models.RawProfileRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "profilestore.Repository.QueryProfiles")
	defer span.End()

	if q.Limit < 1 || q.Limit > 1000 {
		q.Limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "data", "updated_at")
	sb.From("profiles")

	where := []string{
		sb.IsNull("deleted_at"),
	}
	if q.ExcludeID != "" {
		where = append(where, sb.NotEqual("id", q.ExcludeID))
	}
	if len(q.ExcludeIDs) > 0 {
		where = append(where, sb.NotIn("id", sqlbuilder.Flatten(q.ExcludeIDs)...))
	}
	if q.AgeRange != nil {
		where = append(where, sb.Between("age", q.AgeRange.Min, q.AgeRange.Max))
	}
	if len(q.Genders) > 0 {
		where = append(where, sb.In("gender", sqlbuilder.Flatten(q.Genders)...))
	}
	if q.VerifiedOnly {
		where = append(where, sb.Equal("photo_verified", true))
	}
	if q.HasPhotos {
		where = append(where, sb.Equal("has_photos", true))
	}
	if len(q.Interests) > 0 {
		// interests live in the jsonb payload; overlap via the ?| operator
		where = append(where, "data->'interests' ?| "+sb.Var(pq.Array(q.Interests)))
	}
	sb.Where(where...)
	sb.OrderBy("updated_at DESC", "id ASC")
	sb.Limit(q.Limit)
	if q.Offset > 0 {
		sb.Offset(q.Offset)
	}

	query, args := sb.Build()
	var rows []profileRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to query candidate profiles")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to query profiles")
	}

	records := make([]models.RawProfileRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}

	return records, nil
}

// MatchedUserIDs returns the ids the user already holds a confirmed match
// with, in either direction.
func (r *Repository) MatchedUserIDs(ctx context.Context, userID string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "profilestore.Repository.MatchedUserIDs")
	defer span.End()

	query := `
		SELECT CASE WHEN user_a = $1 THEN user_b ELSE user_a END AS matched_id
		FROM matches
		WHERE (user_a = $1 OR user_b = $1)
		AND deleted_at IS NULL
	`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, userID); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"user_id": userID,
		}).Error("Failed to get matched user ids")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get matched user ids")
	}

	return ids, nil
}
