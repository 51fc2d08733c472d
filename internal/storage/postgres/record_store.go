// Package postgres upserts harvested sermon records into Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/sermon-harvester/internal/id/uuid"
	"github.com/JakeFAU/sermon-harvester/internal/sermon"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ErrMissingPage is returned for records that have no natural key.
var ErrMissingPage = errors.New("record has no page url")

// Config controls the Postgres connection pool used for sermon rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type txBeginner interface {
	Begin(context.Context) (pgx.Tx, error)
	Ping(context.Context) error
	Close()
}

// RecordStore writes sermon rows into Postgres keyed by a UUID derived from
// the page URL.
type RecordStore struct {
	pool  txBeginner
	table string
}

// NewRecordStore creates a Postgres-backed RecordStore using the provided config.
func NewRecordStore(ctx context.Context, cfg Config) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewRecordStoreWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(pool txBeginner, table string) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "sermons"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RecordStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks that the database is reachable.
func (s *RecordStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// UpsertRecords writes every record in one transaction. Existing rows with
// the same page are overwritten with the latest harvest.
func (s *RecordStore) UpsertRecords(ctx context.Context, runID string, records []sermon.Record) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("record store is not configured")
	}
	if len(records) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id, run_id, title, teacher, text, topics, sermon_date,
	source, page, audio, files, name, extra
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)
ON CONFLICT (id) DO UPDATE SET
	run_id = EXCLUDED.run_id,
	title = EXCLUDED.title,
	teacher = EXCLUDED.teacher,
	text = EXCLUDED.text,
	topics = EXCLUDED.topics,
	sermon_date = EXCLUDED.sermon_date,
	source = EXCLUDED.source,
	audio = EXCLUDED.audio,
	files = EXCLUDED.files,
	name = EXCLUDED.name,
	extra = EXCLUDED.extra`, s.table)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	var total int64
	for _, rec := range records {
		if rec.Page == "" {
			_ = tx.Rollback(ctx)
			return 0, fmt.Errorf("upsert %q: %w", rec.Title, ErrMissingPage)
		}
		var date any
		if !rec.Date.IsZero() {
			date = rec.Date
		}
		tag, err := tx.Exec(ctx, query,
			uuid.RecordID(rec.Page), runID, rec.Title, rec.Teacher, rec.Text, rec.Topics, date,
			rec.Source, rec.Page, rec.Audio, rec.Files, rec.Name, rec.Extra,
		)
		if err != nil {
			_ = tx.Rollback(ctx)
			return 0, fmt.Errorf("upsert %s: %w", rec.Page, err)
		}
		total += tag.RowsAffected()
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return total, nil
}
