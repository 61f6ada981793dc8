package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Schema creates the tables Postgres needs. OpenPostgres runs it on connect.
const Schema = `
CREATE TABLE IF NOT EXISTS targets (
	id            BIGSERIAL PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	category      TEXT NOT NULL DEFAULT 'unknown',
	description   TEXT NOT NULL DEFAULT '',
	notes         TEXT NOT NULL DEFAULT '',
	last_searched TIMESTAMPTZ,
	search_count  INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS search_history (
	id                 BIGSERIAL PRIMARY KEY,
	run_id             UUID NOT NULL,
	target_id          BIGINT NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
	search_query       TEXT NOT NULL,
	search_type        TEXT NOT NULL,
	platforms_searched INTEGER NOT NULL DEFAULT 0,
	results_found      INTEGER NOT NULL DEFAULT 0,
	filters_applied    JSONB,
	results_summary    JSONB,
	duration_seconds   DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS target_profiles (
	id               BIGSERIAL PRIMARY KEY,
	target_id        BIGINT NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
	username         TEXT NOT NULL,
	platform         TEXT NOT NULL,
	profile_url      TEXT NOT NULL DEFAULT '',
	confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	raw_data         JSONB,
	metadata         JSONB,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (target_id, username, platform)
);`

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Postgres is a Store backed by PostgreSQL through lib/pq.
type Postgres struct {
	db *sql.DB
}

var _ Store = (*Postgres)(nil)

// NewPostgres wraps an open database handle. The caller is responsible for the schema.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// OpenPostgres connects to dsn and creates any missing tables.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // already returning the ping error
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close() //nolint:errcheck // already returning the schema error
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Update runs fn in a read-write transaction.
func (p *Postgres) Update(ctx context.Context, fn func(Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&pgTx{tx: tx}); err != nil {
		_ = tx.Rollback() //nolint:errcheck // the callback error is what matters
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// View runs fn in a read-only transaction.
func (p *Postgres) View(ctx context.Context, fn func(Tx) error) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // read-only, nothing to undo
	return fn(&pgTx{tx: tx})
}

// Close closes the database handle.
func (p *Postgres) Close() error {
	return p.db.Close()
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) TargetByName(ctx context.Context, name string) (*Target, error) {
	query, args, err := psql.
		Select("id", "name", "category", "description", "notes", "last_searched", "search_count", "created_at", "updated_at").
		From("targets").
		Where(sq.Eq{"name": name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var tg Target
	var last sql.NullTime
	err = t.tx.QueryRowContext(ctx, query, args...).Scan(
		&tg.ID, &tg.Name, &tg.Category, &tg.Description, &tg.Notes, &last, &tg.SearchCount, &tg.CreatedAt, &tg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select target: %w", err)
	}
	tg.LastSearched = last.Time
	return &tg, nil
}

func (t *pgTx) CreateTarget(ctx context.Context, tg *Target) error {
	query, args, err := psql.
		Insert("targets").
		Columns("name", "category", "description", "notes", "last_searched", "search_count").
		Values(tg.Name, tg.Category, tg.Description, tg.Notes, nullTime(tg.LastSearched), tg.SearchCount).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if err := t.tx.QueryRowContext(ctx, query, args...).Scan(&tg.ID, &tg.CreatedAt, &tg.UpdatedAt); err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateTarget(ctx context.Context, tg *Target) error {
	query, args, err := psql.
		Update("targets").
		SetMap(map[string]any{
			"name":          tg.Name,
			"category":      tg.Category,
			"description":   tg.Description,
			"notes":         tg.Notes,
			"last_searched": nullTime(tg.LastSearched),
			"search_count":  tg.SearchCount,
			"updated_at":    sq.Expr("NOW()"),
		}).
		Where(sq.Eq{"id": tg.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	err = t.tx.QueryRowContext(ctx, query, args...).Scan(&tg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update target: %w", err)
	}
	return nil
}

func (t *pgTx) AddSearch(ctx context.Context, h *SearchHistory) error {
	if h.RunID == "" {
		h.RunID = uuid.NewString()
	}
	filters, err := jsonColumn(h.FiltersApplied)
	if err != nil {
		return err
	}
	summary, err := jsonColumn(h.ResultsSummary)
	if err != nil {
		return err
	}

	query, args, err := psql.
		Insert("search_history").
		Columns("run_id", "target_id", "search_query", "search_type", "platforms_searched",
			"results_found", "filters_applied", "results_summary", "duration_seconds").
		Values(h.RunID, h.TargetID, h.Query, h.SearchType, h.PlatformsSearched,
			h.ResultsFound, filters, summary, h.DurationSeconds).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if err := t.tx.QueryRowContext(ctx, query, args...).Scan(&h.ID, &h.CreatedAt); err != nil {
		return fmt.Errorf("insert search: %w", err)
	}
	return nil
}

func (t *pgTx) Searches(ctx context.Context, targetID int64) ([]SearchHistory, error) {
	query, args, err := psql.
		Select("id", "run_id", "target_id", "search_query", "search_type", "platforms_searched",
			"results_found", "filters_applied", "results_summary", "duration_seconds", "created_at").
		From("search_history").
		Where(sq.Eq{"target_id": targetID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query searches: %w", err)
	}
	defer rows.Close() //nolint:errcheck // rows.Err is checked below

	var out []SearchHistory
	for rows.Next() {
		var h SearchHistory
		var filters, summary []byte
		if err := rows.Scan(&h.ID, &h.RunID, &h.TargetID, &h.Query, &h.SearchType, &h.PlatformsSearched,
			&h.ResultsFound, &filters, &summary, &h.DurationSeconds, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan search: %w", err)
		}
		if h.FiltersApplied, err = decodeJSON(filters); err != nil {
			return nil, err
		}
		if h.ResultsSummary, err = decodeJSON(summary); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (t *pgTx) HasProfile(ctx context.Context, targetID int64, username, platform string) (bool, error) {
	query, args, err := psql.
		Select("1").
		From("target_profiles").
		Where(sq.Eq{"target_id": targetID, "username": username, "platform": platform}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}
	var one int
	err = t.tx.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select profile: %w", err)
	}
	return true, nil
}

// AddProfile inserts p. A row that already exists for the same target, username,
// and platform is left as is.
func (t *pgTx) AddProfile(ctx context.Context, p *TargetProfile) error {
	raw, err := jsonColumn(p.RawData)
	if err != nil {
		return err
	}
	meta, err := jsonColumn(p.Metadata)
	if err != nil {
		return err
	}

	query, args, err := psql.
		Insert("target_profiles").
		Columns("target_id", "username", "platform", "profile_url", "confidence_score", "raw_data", "metadata").
		Values(p.TargetID, p.Username, p.Platform, p.ProfileURL, p.ConfidenceScore, raw, meta).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	err = t.tx.QueryRowContext(ctx, query, args...).Scan(&p.ID, &p.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (t *pgTx) Profiles(ctx context.Context, targetID int64) ([]TargetProfile, error) {
	query, args, err := psql.
		Select("id", "target_id", "username", "platform", "profile_url", "confidence_score", "raw_data", "metadata", "created_at").
		From("target_profiles").
		Where(sq.Eq{"target_id": targetID}).
		OrderBy("platform", "username").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close() //nolint:errcheck // rows.Err is checked below

	var out []TargetProfile
	for rows.Next() {
		var p TargetProfile
		var raw, meta []byte
		if err := rows.Scan(&p.ID, &p.TargetID, &p.Username, &p.Platform, &p.ProfileURL,
			&p.ConfidenceScore, &raw, &meta, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		if p.RawData, err = decodeJSON(raw); err != nil {
			return nil, err
		}
		if p.Metadata, err = decodeJSON(meta); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// jsonColumn encodes m for a JSONB column. A nil map is stored as NULL.
func jsonColumn(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return string(b), nil
}

func decodeJSON(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil //nolint:nilnil // NULL column
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode json column: %w", err)
	}
	return m, nil
}
