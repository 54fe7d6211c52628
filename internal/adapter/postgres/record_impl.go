package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/event-harvest/internal/entity"
	"github.com/user/event-harvest/internal/repository"
)

// RecordRepoImpl stores dataset rows in the event_records table.
type RecordRepoImpl struct {
	db *pgxpool.Pool
}

func NewRecordRepo(db *pgxpool.Pool) *RecordRepoImpl {
	return &RecordRepoImpl{db: db}
}

const upsertRecord = `
	INSERT INTO event_records (category, detail_url, fields, embedding, harvested_at)
	VALUES ($1, $2, $3, $4, NOW())
	ON CONFLICT (detail_url) DO UPDATE SET
		category = EXCLUDED.category,
		fields = EXCLUDED.fields,
		embedding = EXCLUDED.embedding,
		harvested_at = EXCLUDED.harvested_at;
`

// SaveDataset upserts every row in one transaction.
func (r *RecordRepoImpl) SaveDataset(ctx context.Context, ds *entity.Dataset) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, row := range ds.Rows {
		batch.Queue(upsertRecord, ds.Category, string(row.DetailURL), row.Fields, row.Embedding)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert %d rows of %s: %w", len(ds.Rows), ds.Category, err)
	}
	return tx.Commit(ctx)
}

func (r *RecordRepoImpl) FindByURL(ctx context.Context, url string) (*entity.Record, error) {
	query := `
		SELECT detail_url, fields, embedding
		FROM event_records
		WHERE detail_url = $1;
	`
	var (
		detailURL string
		rec       = &entity.Record{}
	)
	err := r.db.QueryRow(ctx, query, url).Scan(&detailURL, &rec.Fields, &rec.Embedding)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.DetailURL = entity.DetailURL(detailURL)
	return rec, nil
}
