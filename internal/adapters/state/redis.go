// Package state хранит долговременное состояние аккаунтов в Redis:
// флаг пройденного гейта подписки и список недавних просмотров.
package state

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gruz-board/internal/infra/metrics"
)

// Redis адаптер аккаунтного состояния.
type Redis struct {
	client *redis.Client
}

// NewRedis создаёт адаптер.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func gateKey(userID string) string   { return "board:gate:" + userID }
func recentKey(userID string) string { return "board:recent:" + userID }

// IsUnlocked проверяет, пройден ли гейт подписки.
func (r *Redis) IsUnlocked(ctx context.Context, userID string) (bool, error) {
	start := time.Now()
	res, err := r.client.Exists(ctx, gateKey(userID)).Result()
	metrics.ObserveNetworkRequest("redis", "gate_get", "state", start, err)
	if err != nil {
		return false, fmt.Errorf("read gate flag: %w", err)
	}
	return res > 0, nil
}

// SetUnlocked помечает гейт пройденным. Флаг бессрочный.
func (r *Redis) SetUnlocked(ctx context.Context, userID string) error {
	start := time.Now()
	err := r.client.Set(ctx, gateKey(userID), "1", 0).Err()
	metrics.ObserveNetworkRequest("redis", "gate_set", "state", start, err)
	if err != nil {
		return fmt.Errorf("write gate flag: %w", err)
	}
	return nil
}

// PushViewed ставит просмотр в голову списка, убирая дубль и обрезая
// хвост до max.
func (r *Redis) PushViewed(ctx context.Context, userID, listingID string, max int) error {
	key := recentKey(userID)
	start := time.Now()
	pipe := r.client.TxPipeline()
	pipe.LRem(ctx, key, 0, listingID)
	pipe.LPush(ctx, key, listingID)
	pipe.LTrim(ctx, key, 0, int64(max)-1)
	_, err := pipe.Exec(ctx)
	metrics.ObserveNetworkRequest("redis", "recent_push", "state", start, err)
	if err != nil {
		return fmt.Errorf("push viewed: %w", err)
	}
	return nil
}

// RecentViewed отдаёт идентификаторы недавних просмотров, новые первыми.
func (r *Redis) RecentViewed(ctx context.Context, userID string, max int) ([]string, error) {
	start := time.Now()
	ids, err := r.client.LRange(ctx, recentKey(userID), 0, int64(max)-1).Result()
	metrics.ObserveNetworkRequest("redis", "recent_range", "state", start, err)
	if err != nil {
		return nil, fmt.Errorf("read viewed: %w", err)
	}
	return ids, nil
}
