package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue keeps digests in a Redis list: LPUSH to enqueue, BRPOP to consume.
type RedisQueue struct {
	rdb  redis.UniversalClient
	key  string
	wait time.Duration
}

func NewRedisQueue(rdb redis.UniversalClient, key string) *RedisQueue {
	return &RedisQueue{rdb: rdb, key: key, wait: time.Second}
}

func (q *RedisQueue) Enqueue(ctx context.Context, d Digest) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode digest: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue digest: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (Digest, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Digest{}, err
		}
		res, err := q.rdb.BRPop(ctx, q.wait, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Digest{}, ctx.Err()
			}
			return Digest{}, fmt.Errorf("dequeue digest: %w", err)
		}
		// res is [key, value].
		var d Digest
		if err := json.Unmarshal([]byte(res[1]), &d); err != nil {
			return Digest{}, fmt.Errorf("decode digest: %w", err)
		}
		return d, nil
	}
}

// Len reports the list length.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}
