package storage

import (
	"context"
	"fmt"
)

// Schema statements are idempotent so migrate can run at every deploy.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
        subscriber_id BIGINT PRIMARY KEY,
        username      TEXT,
        created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
        is_active     BOOLEAN NOT NULL DEFAULT TRUE
    );`,

	`CREATE TABLE IF NOT EXISTS watchlist (
        id            BIGSERIAL PRIMARY KEY,
        subscriber_id BIGINT NOT NULL,
        keyword       TEXT NOT NULL,
        created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
        is_active     BOOLEAN NOT NULL DEFAULT TRUE
    );`,

	`CREATE UNIQUE INDEX IF NOT EXISTS watchlist_active_keyword
        ON watchlist (subscriber_id, lower(keyword))
        WHERE is_active;`,

	`CREATE TABLE IF NOT EXISTS notification_states (
        subscriber_id  BIGINT NOT NULL,
        product_key    TEXT NOT NULL,
        product_name   TEXT NOT NULL,
        total_quantity INTEGER NOT NULL,
        lowest_price   NUMERIC(12,2) NOT NULL,
        stores         TEXT[] NOT NULL DEFAULT '{}',
        notified_at    TIMESTAMPTZ NOT NULL,
        version        BIGINT NOT NULL,
        PRIMARY KEY (subscriber_id, product_key)
    );`,

	`CREATE TABLE IF NOT EXISTS notifications (
        id            BIGSERIAL PRIMARY KEY,
        subscriber_id BIGINT NOT NULL,
        keyword       TEXT NOT NULL,
        product_key   TEXT NOT NULL,
        product_name  TEXT NOT NULL,
        kind          TEXT NOT NULL,
        detail        TEXT NOT NULL DEFAULT '',
        delivered     BOOLEAN NOT NULL DEFAULT TRUE,
        created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
    );`,

	`CREATE TABLE IF NOT EXISTS product_snapshots (
        id             BIGSERIAL PRIMARY KEY,
        product_key    TEXT NOT NULL,
        product_name   TEXT NOT NULL,
        total_quantity INTEGER NOT NULL,
        lowest_price   NUMERIC(12,2) NOT NULL,
        store_count    INTEGER NOT NULL,
        fetched_at     TIMESTAMPTZ NOT NULL
    );`,

	`CREATE INDEX IF NOT EXISTS product_snapshots_key_ts
        ON product_snapshots (product_key, fetched_at);`,
}

// Migrate applies the embedded schema.
func (s *Store) Migrate(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
