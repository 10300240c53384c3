package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLeaseHeld is returned when another run already holds the account lease.
var ErrLeaseHeld = errors.New("account lease held by another run")

// Lease is a held per-account lock.
type Lease interface {
	Release(ctx context.Context) error
}

// AccountLocker serialises bulk runs per account.
type AccountLocker interface {
	Acquire(ctx context.Context, accountID string, ttl time.Duration) (Lease, error)
}

// releaseScript deletes the lease only if it still carries our token, so an
// expired lease re-acquired by another run is left alone.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

type RedisAccountLocker struct {
	client   *redis.Client
	newToken func() string
}

func NewRedisAccountLocker(client *redis.Client) *RedisAccountLocker {
	return &RedisAccountLocker{client: client, newToken: uuid.NewString}
}

func leaseKey(accountID string) string {
	return "settlement:lease:account:" + accountID
}

func (l *RedisAccountLocker) Acquire(ctx context.Context, accountID string, ttl time.Duration) (Lease, error) {
	token := l.newToken()
	key := leaseKey(accountID)

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease for %s: %w", accountID, err)
	}
	if !ok {
		return nil, ErrLeaseHeld
	}
	return &redisLease{client: l.client, key: key, token: token}, nil
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLease) Release(ctx context.Context) error {
	n, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	if n == 0 {
		return fmt.Errorf("lease %s expired before release", l.key)
	}
	return nil
}
