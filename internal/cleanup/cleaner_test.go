package cleanup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingSweeper struct {
	calls   atomic.Int32
	idleFor atomic.Int64
	err     error
}

func (s *countingSweeper) AbandonStale(ctx context.Context, idleFor time.Duration) (int, error) {
	s.calls.Add(1)
	s.idleFor.Store(int64(idleFor))
	return 1, s.err
}

func TestCleanerRunsImmediatelyAndOnTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := &countingSweeper{}
	NewCleaner(sweeper, 20*time.Millisecond, time.Hour).Start(ctx)

	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(time.Hour), sweeper.idleFor.Load())
}

func TestCleanerDefaults(t *testing.T) {
	c := NewCleaner(&countingSweeper{err: errors.New("db down")}, 0, 0)
	assert.Equal(t, 5*time.Minute, c.interval)
	assert.Equal(t, 2*time.Hour, c.abandonAfter)

	// errors are logged, not fatal
	c.cleanup(context.Background())
}
