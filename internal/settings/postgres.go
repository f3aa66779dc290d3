package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS setting_overrides (
	scope      TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	value      TEXT        NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (scope, key)
)`

// PostgresStore persists overrides in the platform datastore. The primary
// key on (scope, key) carries the at-most-one-row invariant; the upsert in
// Set makes each key's read-then-write atomic (last writer wins).
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("settings: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("settings: ensure schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, scope, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM setting_overrides WHERE scope = $1 AND key = $2`,
		scope, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("settings: get %s/%s: %w", scope, key, err)
	}
	return value, true, nil
}

func (s *PostgresStore) All(ctx context.Context, scope string) (map[string]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, value FROM setting_overrides WHERE scope = $1`,
		scope,
	)
	if err != nil {
		return nil, fmt.Errorf("settings: list %s: %w", scope, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("settings: scan: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("settings: list %s: %w", scope, err)
	}
	return out, nil
}

func (s *PostgresStore) Set(ctx context.Context, scope, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO setting_overrides (scope, key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (scope, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		scope, key, value,
	)
	if err != nil {
		return fmt.Errorf("settings: set %s/%s: %w", scope, key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, scope, key string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM setting_overrides WHERE scope = $1 AND key = $2`,
		scope, key,
	)
	if err != nil {
		return fmt.Errorf("settings: delete %s/%s: %w", scope, key, err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
