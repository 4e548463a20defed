package executor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/algoroom/algoroom/internal/platform/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errBoom = errors.New("boom")

// gauge tracks the number of concurrent callers and the high-water mark.
type gauge struct {
	mu      sync.Mutex
	current int
	peak    int
}

func (g *gauge) enter() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.current++
	if g.current > g.peak {
		g.peak = g.current
	}
}

func (g *gauge) exit() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.current--
}

func (g *gauge) highWater() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.peak
}

func TestRunCapsConcurrencyPerClass(t *testing.T) {
	t.Parallel()

	e := executor.New(executor.Limits{Platform: 2, Database: 10, General: 8, External: 3}, zap.NewNop())

	var (
		g  gauge
		wg sync.WaitGroup
	)

	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_ = e.Run(t.Context(), executor.ClassPlatform, func(context.Context) error {
				g.enter()
				defer g.exit()
				time.Sleep(20 * time.Millisecond)
				return nil
			})
		}()
	}

	wg.Wait()

	assert.LessOrEqual(t, g.highWater(), 2)
}

func TestRunClassesAreIndependent(t *testing.T) {
	t.Parallel()

	e := executor.New(executor.Limits{Platform: 1, Database: 1, General: 1, External: 1}, zap.NewNop())

	// Saturate the platform class, then verify another class still runs.
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = e.Run(context.Background(), executor.ClassPlatform, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	defer close(release)

	done := make(chan struct{})

	go func() {
		_ = e.Run(context.Background(), executor.ClassDatabase, func(context.Context) error {
			close(done)
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("database class blocked by saturated platform class")
	}
}

func TestRunCancelledContext(t *testing.T) {
	t.Parallel()

	e := executor.New(executor.DefaultLimits(), zap.NewNop())

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := e.Run(ctx, executor.ClassPlatform, func(context.Context) error {
		t.Fatal("operation must not run after cancellation")
		return nil
	})
	require.Error(t, err)
}

func TestRunRecordsStats(t *testing.T) {
	t.Parallel()

	e := executor.New(executor.DefaultLimits(), zap.NewNop())
	ctx := t.Context()

	require.NoError(t, e.Run(ctx, executor.ClassGeneral, func(context.Context) error { return nil }))
	require.Error(t, e.Run(ctx, executor.ClassGeneral, func(context.Context) error { return errBoom }))

	stats := e.Stats()
	assert.Equal(t, uint64(2), stats.Total)
	assert.Equal(t, uint64(1), stats.Successful)
	assert.Equal(t, uint64(1), stats.Failed)

	e.ResetStats()
	assert.Equal(t, uint64(0), e.Stats().Total)
}

func TestUpdateLimits(t *testing.T) {
	t.Parallel()

	e := executor.New(executor.Limits{Platform: 1, Database: 1, General: 1, External: 1}, zap.NewNop())

	e.UpdateLimits(executor.Limits{Platform: 3, Database: 1, General: 1, External: 1})
	assert.Equal(t, int64(3), e.Limits().Platform)

	var (
		g  gauge
		wg sync.WaitGroup
	)

	for i := 0; i < 6; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_ = e.Run(t.Context(), executor.ClassPlatform, func(context.Context) error {
				g.enter()
				defer g.exit()
				time.Sleep(20 * time.Millisecond)
				return nil
			})
		}()
	}

	wg.Wait()

	assert.LessOrEqual(t, g.highWater(), 3)
}
