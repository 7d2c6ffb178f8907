package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gruz-board/internal/domain"
)

// RedisWriteQueue реализует очередь отложенной записи на Redis lists.
// Запасной вариант для окружений без брокера.
type RedisWriteQueue struct {
	client *redis.Client
	key    string
}

// NewRedisWriteQueue создаёт очередь по указанному ключу.
func NewRedisWriteQueue(client *redis.Client, key string) *RedisWriteQueue {
	return &RedisWriteQueue{client: client, key: key}
}

// Enqueue публикует задачу в очередь.
func (q *RedisWriteQueue) Enqueue(ctx context.Context, job domain.WriteJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Pop блокирующе читает задачу из очереди.
func (q *RedisWriteQueue) Pop(ctx context.Context) (domain.WriteJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.WriteJob{}, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.WriteJob{}, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.WriteJob{}, err
		}
		if len(res) != 2 {
			return domain.WriteJob{}, errors.New("redis queue: unexpected response")
		}
		var job domain.WriteJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return domain.WriteJob{}, fmt.Errorf("decode job: %w", err)
		}
		return job, nil
	}
}
