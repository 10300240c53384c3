package repository

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*RedisAccountLocker, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	locker := NewRedisAccountLocker(client)
	locker.newToken = func() string { return "token-1" }
	return locker, mock
}

func TestLease_AcquireAndRelease(t *testing.T) {
	locker, mock := newTestLocker(t)
	key := "settlement:lease:account:acct-1"

	mock.ExpectSetNX(key, "token-1", 2*time.Minute).SetVal(true)
	mock.ExpectEval(releaseScript, []string{key}, "token-1").SetVal(int64(1))

	lease, err := locker.Acquire(context.Background(), "acct-1", 2*time.Minute)
	require.NoError(t, err)
	assert.NoError(t, lease.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLease_HeldByAnotherRun(t *testing.T) {
	locker, mock := newTestLocker(t)

	mock.ExpectSetNX("settlement:lease:account:acct-1", "token-1", time.Minute).SetVal(false)

	lease, err := locker.Acquire(context.Background(), "acct-1", time.Minute)
	assert.ErrorIs(t, err, ErrLeaseHeld)
	assert.Nil(t, lease)
}

func TestLease_ReleaseAfterExpiry(t *testing.T) {
	locker, mock := newTestLocker(t)
	key := "settlement:lease:account:acct-2"

	mock.ExpectSetNX(key, "token-1", time.Minute).SetVal(true)
	mock.ExpectEval(releaseScript, []string{key}, "token-1").SetVal(int64(0))

	lease, err := locker.Acquire(context.Background(), "acct-2", time.Minute)
	require.NoError(t, err)
	assert.Error(t, lease.Release(context.Background()))
}
