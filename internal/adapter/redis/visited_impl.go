package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/event-harvest/pkg/utils"
)

const visitedURLPrefix = "harvest:visited:"

// VisitedRepoImpl remembers harvested detail URLs with SETEX keys.
type VisitedRepoImpl struct {
	client redis.Cmdable
}

// NewVisitedRepo creates a new instance of VisitedRepoImpl.
func NewVisitedRepo(client redis.Cmdable) *VisitedRepoImpl {
	return &VisitedRepoImpl{client: client}
}

// key hashes the URL so long query strings stay out of the keyspace.
func (r *VisitedRepoImpl) key(url string) string {
	return fmt.Sprintf("%s%s", visitedURLPrefix, utils.HashURL(url))
}

func (r *VisitedRepoImpl) MarkVisited(ctx context.Context, url string, expiry time.Duration) error {
	return r.client.SetEx(ctx, r.key(url), "1", expiry).Err()
}

func (r *VisitedRepoImpl) IsVisited(ctx context.Context, url string) (bool, error) {
	val, err := r.client.Exists(ctx, r.key(url)).Result()
	if err != nil {
		return false, err
	}
	return val == 1, nil
}

// RemoveVisited forgets a URL, used for forced harvests.
func (r *VisitedRepoImpl) RemoveVisited(ctx context.Context, url string) error {
	return r.client.Del(ctx, r.key(url)).Err()
}
