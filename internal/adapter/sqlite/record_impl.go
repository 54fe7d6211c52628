// Package sqlite stores harvested datasets in a single-file database for local runs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/user/event-harvest/internal/entity"
	"github.com/user/event-harvest/internal/repository"
)

// SQLite has no JSON or array column types; fields and embedding are JSON text and
// harvested_at is RFC3339Nano text.
const schema = `
CREATE TABLE IF NOT EXISTS event_records (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	category     TEXT NOT NULL,
	detail_url   TEXT NOT NULL UNIQUE,
	fields       TEXT NOT NULL,
	embedding    TEXT,
	harvested_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS event_records_category_idx ON event_records (category);
`

type RecordRepoImpl struct {
	db *sql.DB
}

// NewRecordRepo opens dsn and ensures the schema exists.
func NewRecordRepo(ctx context.Context, dsn string) (*RecordRepoImpl, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One writer avoids SQLITE_BUSY; it also keeps ":memory:" on a single database.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return &RecordRepoImpl{db: db}, nil
}

func (r *RecordRepoImpl) Close() error { return r.db.Close() }

// Ping verifies the database file is still reachable.
func (r *RecordRepoImpl) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *RecordRepoImpl) SaveDataset(ctx context.Context, ds *entity.Dataset) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO event_records (category, detail_url, fields, embedding, harvested_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (detail_url) DO UPDATE SET
			category = excluded.category,
			fields = excluded.fields,
			embedding = excluded.embedding,
			harvested_at = excluded.harvested_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, row := range ds.Rows {
		fields, err := json.Marshal(row.Fields)
		if err != nil {
			return fmt.Errorf("encode fields of %s: %w", row.DetailURL, err)
		}
		var embedding sql.NullString
		if row.Embedding != nil {
			b, err := json.Marshal(row.Embedding)
			if err != nil {
				return fmt.Errorf("encode embedding of %s: %w", row.DetailURL, err)
			}
			embedding = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, ds.Category, string(row.DetailURL), string(fields), embedding, now); err != nil {
			return fmt.Errorf("upsert %s: %w", row.DetailURL, err)
		}
	}
	return tx.Commit()
}

func (r *RecordRepoImpl) FindByURL(ctx context.Context, url string) (*entity.Record, error) {
	var (
		fields    string
		embedding sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT fields, embedding FROM event_records WHERE detail_url = ?`, url,
	).Scan(&fields, &embedding)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec := entity.NewRecord(entity.DetailURL(url))
	if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
		return nil, fmt.Errorf("decode fields of %s: %w", url, err)
	}
	if embedding.Valid {
		if err := json.Unmarshal([]byte(embedding.String), &rec.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding of %s: %w", url, err)
		}
	}
	return rec, nil
}

// CountByCategory returns how many rows are stored for a category.
func (r *RecordRepoImpl) CountByCategory(ctx context.Context, category string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM event_records WHERE category = ?`, category).Scan(&n)
	return n, err
}
