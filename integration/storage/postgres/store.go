package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/cadence/core/signal"
)

var (
	// ErrEmptyConnectionURL is returned when no connection string is configured.
	ErrEmptyConnectionURL = errors.New("empty postgres connection URL")

	// ErrHealthcheckFailed wraps ping failures.
	ErrHealthcheckFailed = errors.New("postgres healthcheck failed")
)

// DefaultTable is the signal table name when none is configured.
const DefaultTable = "cadence_signals"

// Config holds Postgres signal store settings.
type Config struct {
	ConnectionURL string `env:"DATABASE_URL,required"`
	Table         string `env:"SIGNAL_TABLE" envDefault:"cadence_signals"`
}

var _ signal.SignalStore = (*Store)(nil)

// Store is a Postgres-backed signal.SignalStore. Each signal is one row
// with its JSON encoding; a bigserial position column preserves save order
// for GetUnacked.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTable overrides the default table name.
func WithTable(table string) StoreOption {
	return func(s *Store) {
		if table != "" {
			s.table = table
		}
	}
}

// New creates a signal store on top of an existing connection pool.
// Call Migrate once to create the table.
func New(pool *pgxpool.Pool, opts ...StoreOption) *Store {
	s := &Store{
		pool:  pool,
		table: DefaultTable,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// NewFromConfig connects a pool from configuration, verifies it with a
// ping, and runs the table migration.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ConnectionURL == "" {
		return nil, ErrEmptyConnectionURL
	}

	pool, err := pgxpool.New(ctx, cfg.ConnectionURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s := New(pool, WithTable(cfg.Table))
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Migrate creates the signal table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				position   BIGSERIAL PRIMARY KEY,
				id         TEXT NOT NULL UNIQUE,
				data       JSONB NOT NULL,
				acked      BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, s.table),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_unacked_idx ON %s (position) WHERE NOT acked`,
			s.table, s.table),
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate signal table: %w", err)
		}
	}
	return nil
}

// Save records the signal as unacked. Re-saving an existing ID overwrites
// the record without disturbing its position.
func (s *Store) Save(ctx context.Context, sig signal.Signal) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("failed to encode signal %s: %w", sig.ID, err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, data) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data
	`, s.table)

	if _, err := s.pool.Exec(ctx, query, sig.ID, data); err != nil {
		return fmt.Errorf("failed to save signal %s: %w", sig.ID, err)
	}
	return nil
}

// MarkAcked flags the signal as delivered. Rows are kept for audit; the
// partial index keeps GetUnacked cheap regardless.
func (s *Store) MarkAcked(ctx context.Context, id string) error {
	query := fmt.Sprintf(`UPDATE %s SET acked = TRUE WHERE id = $1`, s.table)

	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to ack signal %s: %w", id, err)
	}
	return nil
}

// GetUnacked returns all unacked signals in save order.
func (s *Store) GetUnacked(ctx context.Context) ([]signal.Signal, error) {
	query := fmt.Sprintf(`SELECT data FROM %s WHERE NOT acked ORDER BY position`, s.table)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list unacked signals: %w", err)
	}
	defer rows.Close()

	var out []signal.Signal
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan signal row: %w", err)
		}
		var sig signal.Signal
		if err := json.Unmarshal(data, &sig); err != nil {
			return nil, fmt.Errorf("failed to decode signal: %w", err)
		}
		out = append(out, sig)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate signal rows: %w", err)
	}
	return out, nil
}

// Healthcheck validates Postgres connectivity.
func (s *Store) Healthcheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return errors.Join(ErrHealthcheckFailed, err)
	}
	return nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
