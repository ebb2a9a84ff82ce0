package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/snappy"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists records in PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPGStore connects, verifies the connection and creates the schema.
func NewPGStore(ctx context.Context, databaseURL string) (*PGStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	s := &PGStore{pool: pool, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

func (s *PGStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS scenarios (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		fingerprint TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		payload BYTEA NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scenarios_kind ON scenarios(kind);
	CREATE INDEX IF NOT EXISTS idx_scenarios_created_at ON scenarios(created_at DESC);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PGStore) Put(ctx context.Context, rec *Record) error {
	if err := prepare(rec, s.now()); err != nil {
		return err
	}

	query := `
		INSERT INTO scenarios (id, kind, name, fingerprint, created_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET kind = EXCLUDED.kind, name = EXCLUDED.name, fingerprint = EXCLUDED.fingerprint,
		    created_at = EXCLUDED.created_at, payload = EXCLUDED.payload
	`
	_, err := s.pool.Exec(ctx, query,
		rec.ID,
		string(rec.Kind),
		rec.Name,
		rec.Fingerprint,
		rec.CreatedAt,
		snappy.Encode(nil, rec.Payload),
	)
	if err != nil {
		return fmt.Errorf("failed to store scenario: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id string) (*Record, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query := `
		SELECT id, kind, name, fingerprint, created_at, payload
		FROM scenarios
		WHERE id = $1
	`

	rec := &Record{}
	var kind string
	var compressed []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&kind,
		&rec.Name,
		&rec.Fingerprint,
		&rec.CreatedAt,
		&compressed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scenario: %w", err)
	}

	rec.Kind = Kind(kind)
	rec.CreatedAt = rec.CreatedAt.UTC()
	if rec.Payload, err = snappy.Decode(nil, compressed); err != nil {
		return nil, fmt.Errorf("failed to decompress scenario %s: %w", id, err)
	}
	return rec, nil
}

func (s *PGStore) List(ctx context.Context, kind Kind) ([]Record, error) {
	query := `
		SELECT id, kind, name, fingerprint, created_at
		FROM scenarios
		WHERE $1 = '' OR kind = $1
		ORDER BY created_at DESC, id
	`
	rows, err := s.pool.Query(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var k string
		if err := rows.Scan(&rec.ID, &k, &rec.Name, &rec.Fingerprint, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		rec.Kind = Kind(k)
		rec.CreatedAt = rec.CreatedAt.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	return out, nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	result, err := s.pool.Exec(ctx, `DELETE FROM scenarios WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scenario: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks database connectivity.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}
