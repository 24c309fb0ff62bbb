package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taxentia/taxentia-api/internal/core/domain"
)

const quotaTTL = 48 * time.Hour

// QuotaStore tracks per-user daily query counts in Redis.
// Key format: quota:<user_id>:<yyyy-mm-dd> (UTC day)
type QuotaStore struct {
	client *redis.Client
}

// NewQuotaStore creates a QuotaStore wrapping the given Redis client.
func NewQuotaStore(client *redis.Client) *QuotaStore {
	return &QuotaStore{client: client}
}

// Consume records one query for the user and returns domain.ErrQuotaExceeded
// once the daily allowance is spent. A limit of zero or less means unlimited;
// usage is still counted so it stays visible.
func (q *QuotaStore) Consume(ctx context.Context, userID string, limit int) error {
	key := q.key(userID, time.Now().UTC())

	count, err := q.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("quota incr: %w", err)
	}
	if count == 1 {
		// The calendar day in the key bounds the window; the TTL is cleanup.
		if err := q.client.Expire(ctx, key, quotaTTL).Err(); err != nil {
			return fmt.Errorf("quota expire: %w", err)
		}
	}
	if limit > 0 && count > int64(limit) {
		return domain.ErrQuotaExceeded
	}
	return nil
}

// Used returns the number of queries the user has consumed today.
func (q *QuotaStore) Used(ctx context.Context, userID string) (int, error) {
	val, err := q.client.Get(ctx, q.key(userID, time.Now().UTC())).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("quota read: %w", err)
	}
	return val, nil
}

func (q *QuotaStore) key(userID string, day time.Time) string {
	return fmt.Sprintf("quota:%s:%s", userID, day.Format("2006-01-02"))
}
