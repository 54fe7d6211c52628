package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS event_records (
	id           BIGSERIAL PRIMARY KEY,
	category     TEXT NOT NULL,
	detail_url   TEXT NOT NULL UNIQUE,
	fields       JSONB NOT NULL,
	embedding    REAL[],
	harvested_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS event_records_category_idx ON event_records (category);

CREATE TABLE IF NOT EXISTS failed_urls (
	id                     BIGSERIAL PRIMARY KEY,
	category               TEXT NOT NULL,
	url                    TEXT NOT NULL UNIQUE,
	failure_reason         TEXT NOT NULL,
	error_type             TEXT NOT NULL,
	last_attempt_timestamp TIMESTAMPTZ NOT NULL,
	retry_count            INT NOT NULL DEFAULT 1,
	next_retry_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS failed_urls_next_retry_idx ON failed_urls (category, next_retry_at);
`

// Migrate creates the tables used by the repositories in this package.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate postgres schema: %w", err)
	}
	return nil
}
