package lock

import (
	"context"
	"sync"

	"rental_expiry_monitor/internal/domain/run"
)

// LocalGuard serialises passes inside one process. The cron trigger and the HTTP trigger share it.
type LocalGuard struct {
	mu sync.Mutex
}

func NewLocalGuard() *LocalGuard {
	return &LocalGuard{}
}

// Acquire never waits: a pass that finds the guard held is refused.
func (g *LocalGuard) Acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !g.mu.TryLock() {
		return nil, run.ErrRunInProgress
	}
	var once sync.Once
	return func() { once.Do(g.mu.Unlock) }, nil
}
