package distlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisLock_ExclusiveUntilReleased(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()
	a := NewRedisLock(client, "quality-snapshot", time.Minute)
	b := NewRedisLock(client, "quality-snapshot", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("crmq:lock:quality-snapshot"))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// b cannot release a's lock.
	require.NoError(t, b.Release(ctx))
	assert.True(t, mr.Exists(a.Key()))

	require.NoError(t, a.Release(ctx))
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_ExpiresAndExtend(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()
	a := NewRedisLock(client, "job", 10*time.Second)
	b := NewRedisLock(client, "job", 10*time.Second)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	extended, err := a.Extend(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, extended)
	assert.Equal(t, time.Minute, mr.TTL(a.Key()))

	mr.FastForward(2 * time.Minute)
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	extended, err = a.Extend(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, extended)
}

func TestRun(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()

	calls := 0
	err := Run(ctx, NewRedisLock(client, "run", time.Minute), func(context.Context) error {
		calls++
		// While fn runs the lock is held.
		ok, err := NewRedisLock(client, "run", time.Minute).Acquire(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// Released afterwards.
	holder := NewRedisLock(client, "run", time.Minute)
	ok, err := holder.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	err = Run(ctx, NewRedisLock(client, "run", time.Minute), func(context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.Equal(t, 1, calls)
}

func TestRun_PropagatesJobError(t *testing.T) {
	_, client := setupRedis(t)
	boom := errors.New("boom")
	err := Run(context.Background(), NewRedisLock(client, "x", time.Minute), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestPGAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewPGAdvisoryLock(db, "quality-snapshot")
	assert.Equal(t, l.LockID(), NewPGAdvisoryLock(db, "quality-snapshot").LockID())
	assert.NotEqual(t, l.LockID(), NewPGAdvisoryLock(db, "other").LockID())

	mock.ExpectQuery("SELECT pg_try_advisory_lock").WithArgs(l.LockID()).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec("SELECT pg_advisory_unlock").WithArgs(l.LockID()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Release(context.Background()))
	// Second release is a no-op.
	require.NoError(t, l.Release(context.Background()))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLock_NotAcquired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewPGAdvisoryLock(db, "quality-snapshot")
	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	err = Run(context.Background(), l, func(context.Context) error {
		t.Fatal("job must not run")
		return nil
	})
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewLock_PicksBackend(t *testing.T) {
	_, client := setupRedis(t)
	_, isRedis := NewLock(client, nil, "k", time.Second).(*RedisLock)
	assert.True(t, isRedis)
	_, isPG := NewLock(nil, nil, "k", time.Second).(*PGAdvisoryLock)
	assert.True(t, isPG)
}
