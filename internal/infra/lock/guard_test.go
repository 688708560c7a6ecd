package lock

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental_expiry_monitor/internal/domain/run"
)

func TestLocalGuardRefusesOverlap(t *testing.T) {
	g := NewLocalGuard()
	ctx := context.Background()

	release, err := g.Acquire(ctx)
	require.NoError(t, err)

	_, err = g.Acquire(ctx)
	assert.ErrorIs(t, err, run.ErrRunInProgress)

	release()
	release() // second release is a no-op

	again, err := g.Acquire(ctx)
	require.NoError(t, err)
	again()
}

func TestLocalGuardHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocalGuard().Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type stubLocker struct {
	err   error
	calls int
}

func (s *stubLocker) Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error) {
	s.calls++
	return nil, s.err
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestRedisGuardHeldElsewhere(t *testing.T) {
	local := NewLocalGuard()
	g := NewRedisGuard(local, &stubLocker{err: redislock.ErrNotObtained}, time.Minute, quietLogger())

	_, err := g.Acquire(context.Background())
	assert.ErrorIs(t, err, run.ErrRunInProgress)

	// The local guard must have been released again.
	release, err := local.Acquire(context.Background())
	require.NoError(t, err)
	release()
}

func TestRedisGuardFallsBackToLocalWhenRedisIsDown(t *testing.T) {
	local := NewLocalGuard()
	locker := &stubLocker{err: errors.New("dial tcp: connection refused")}
	g := NewRedisGuard(local, locker, time.Minute, quietLogger())

	release, err := g.Acquire(context.Background())
	require.NoError(t, err)

	_, err = g.Acquire(context.Background())
	assert.ErrorIs(t, err, run.ErrRunInProgress)
	assert.Equal(t, 1, locker.calls)

	release()
}
