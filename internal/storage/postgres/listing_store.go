// Package postgres mirrors persisted listings into a Postgres table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/jobwatch/internal/listing"
)

const defaultTable = "listings"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ListingStoreConfig controls the Postgres connection pool used for listing rows.
type ListingStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// ListingStore inserts listings keyed by link. Re-inserting a known link is a no-op.
type ListingStore struct {
	pool  pool
	table string
}

// NewListingStore connects to Postgres using the provided config.
func NewListingStore(ctx context.Context, cfg ListingStoreConfig) (*ListingStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
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
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ListingStore{pool: p, table: table}, nil
}

// NewListingStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewListingStoreWithPool(p pool, table string) (*ListingStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &ListingStore{pool: p, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *ListingStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the listing table if it does not exist.
func (s *ListingStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	link        TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	category    TEXT NOT NULL,
	location    TEXT NOT NULL,
	run_id      TEXT NOT NULL,
	first_seen  TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// SaveListings inserts listings in one transaction, tagging each with runID.
// It returns the number of rows actually inserted.
func (s *ListingStore) SaveListings(ctx context.Context, runID string, listings []listing.Listing) (int, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("listing store is not configured")
	}
	if len(listings) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(`
INSERT INTO %s (link, title, category, location, run_id)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (link) DO NOTHING`, s.table)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	var inserted int64
	for _, l := range listings {
		tag, err := tx.Exec(ctx, query, l.Link.String(), l.Title.String(), l.Category.String(), l.Location.String(), runID)
		if err != nil {
			return 0, errors.Join(fmt.Errorf("insert listing %q: %w", l.Key(), err), rollback(ctx, tx))
		}
		inserted += tag.RowsAffected()
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit listings: %w", err)
	}
	return int(inserted), nil
}

func rollback(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
