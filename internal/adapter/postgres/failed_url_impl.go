package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/event-harvest/internal/entity"
)

// FailedURLRepoImpl provides a concrete implementation for the FailedURLRepository interface using PostgreSQL.
type FailedURLRepoImpl struct {
	db *pgxpool.Pool
}

// NewFailedURLRepo creates a new instance of FailedURLRepoImpl.
func NewFailedURLRepo(db *pgxpool.Pool) *FailedURLRepoImpl {
	return &FailedURLRepoImpl{db: db}
}

// SaveOrUpdate creates or updates a record for a failed URL.
// On conflict the retry count grows and the wait before the next retry doubles from
// the caller's first delay, capped at one day.
func (r *FailedURLRepoImpl) SaveOrUpdate(ctx context.Context, failedURL *entity.FailedURL) error {
	query := `
		INSERT INTO failed_urls (category, url, failure_reason, error_type, last_attempt_timestamp, retry_count, next_retry_at)
		VALUES ($1, $2, $3, $4, $5, 1, $6)
		ON CONFLICT (url) DO UPDATE SET
			category = EXCLUDED.category,
			failure_reason = EXCLUDED.failure_reason,
			error_type = EXCLUDED.error_type,
			last_attempt_timestamp = EXCLUDED.last_attempt_timestamp,
			retry_count = failed_urls.retry_count + 1,
			next_retry_at = EXCLUDED.last_attempt_timestamp + LEAST(
				(EXCLUDED.next_retry_at - EXCLUDED.last_attempt_timestamp) * power(2, failed_urls.retry_count),
				INTERVAL '1 day'
			);
	`
	_, err := r.db.Exec(ctx, query,
		failedURL.Category,
		failedURL.URL,
		failedURL.FailureReason,
		failedURL.ErrorType,
		failedURL.LastAttemptTimestamp,
		failedURL.NextRetryAt,
	)
	return err
}

// FindRetryable retrieves a batch of URLs of one category that are due for a retry.
func (r *FailedURLRepoImpl) FindRetryable(ctx context.Context, category string, limit int) ([]*entity.FailedURL, error) {
	query := `
		SELECT id, category, url, failure_reason, error_type, last_attempt_timestamp, retry_count, next_retry_at
		FROM failed_urls
		WHERE category = $1 AND next_retry_at <= NOW()
		ORDER BY next_retry_at ASC
		LIMIT $2;
	`
	rows, err := r.db.Query(ctx, query, category, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failedURLs []*entity.FailedURL
	for rows.Next() {
		var fu entity.FailedURL
		if err := rows.Scan(
			&fu.ID,
			&fu.Category,
			&fu.URL,
			&fu.FailureReason,
			&fu.ErrorType,
			&fu.LastAttemptTimestamp,
			&fu.RetryCount,
			&fu.NextRetryAt,
		); err != nil {
			return nil, err
		}
		failedURLs = append(failedURLs, &fu)
	}

	return failedURLs, rows.Err()
}

// Delete removes a failed URL record, typically after a successful harvest.
func (r *FailedURLRepoImpl) Delete(ctx context.Context, url string) error {
	query := `DELETE FROM failed_urls WHERE url = $1;`
	_, err := r.db.Exec(ctx, query, url)
	return err
}
