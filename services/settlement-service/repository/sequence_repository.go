package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SequenceGenerator hands out globally unique submission numbers per product code.
type SequenceGenerator interface {
	Next(ctx context.Context, code string) (string, error)
}

const sequenceKeyTTL = 48 * time.Hour

// RedisSequenceGenerator numbers submissions as {code}{yyyymmdd}{counter}, with
// one INCR counter per code and day.
type RedisSequenceGenerator struct {
	client *redis.Client
	now    func() time.Time
	logger *zap.Logger
}

func NewRedisSequenceGenerator(client *redis.Client, logger *zap.Logger) *RedisSequenceGenerator {
	return &RedisSequenceGenerator{client: client, now: time.Now, logger: logger}
}

// WithClock replaces the clock used to pick the day bucket.
func (g *RedisSequenceGenerator) WithClock(now func() time.Time) *RedisSequenceGenerator {
	g.now = now
	return g
}

func sequenceKey(code, day string) string {
	return fmt.Sprintf("settlement:seq:%s:%s", code, day)
}

func (g *RedisSequenceGenerator) Next(ctx context.Context, code string) (string, error) {
	day := g.now().UTC().Format("20060102")
	key := sequenceKey(code, day)

	n, err := g.client.Incr(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("next sequence for %s: %w", code, err)
	}
	if n == 1 {
		// Counter is still correct without a TTL; the key just lingers.
		if err := g.client.Expire(ctx, key, sequenceKeyTTL).Err(); err != nil {
			g.logger.Debug("Failed to set sequence key expiry", zap.String("key", key), zap.Error(err))
		}
	}
	return fmt.Sprintf("%s%s%06d", code, day, n), nil
}
