package ratelimit_test

import (
	"testing"
	"time"

	"github.com/algoroom/algoroom/internal/ratelimit"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTest(t *testing.T) (*ratelimit.Limiter, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	logger := zap.NewNop()
	limiter := ratelimit.New(client, logger)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return limiter, mr, cleanup
}

func TestCheckAllowsUnderLimit(t *testing.T) {
	t.Parallel()

	limiter, _, cleanup := setupTest(t)
	defer cleanup()

	ctx := t.Context()

	for i := 0; i < 3; i++ {
		result := limiter.Check(ctx, "refresh:1.2.3.4", 3, time.Minute)
		assert.True(t, result.Allowed, "request %d should be allowed", i)
		assert.Equal(t, 2-i, result.Remaining)
	}
}

func TestCheckDeniesOverLimit(t *testing.T) {
	t.Parallel()

	limiter, _, cleanup := setupTest(t)
	defer cleanup()

	ctx := t.Context()

	for i := 0; i < 2; i++ {
		limiter.Check(ctx, "refresh:1.2.3.4", 2, time.Minute)
	}

	result := limiter.Check(ctx, "refresh:1.2.3.4", 2, time.Minute)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.False(t, result.Reset.IsZero())
}

func TestCheckKeysAreIndependent(t *testing.T) {
	t.Parallel()

	limiter, _, cleanup := setupTest(t)
	defer cleanup()

	ctx := t.Context()

	for i := 0; i < 2; i++ {
		limiter.Check(ctx, "refresh:1.2.3.4", 2, time.Minute)
	}

	result := limiter.Check(ctx, "refresh:5.6.7.8", 2, time.Minute)
	assert.True(t, result.Allowed)
}

func TestCheckWindowResets(t *testing.T) {
	t.Parallel()

	limiter, mr, cleanup := setupTest(t)
	defer cleanup()

	ctx := t.Context()

	for i := 0; i < 2; i++ {
		limiter.Check(ctx, "refresh:1.2.3.4", 2, time.Minute)
	}

	denied := limiter.Check(ctx, "refresh:1.2.3.4", 2, time.Minute)
	require.False(t, denied.Allowed)

	mr.FastForward(time.Minute + time.Second)

	result := limiter.Check(ctx, "refresh:1.2.3.4", 2, time.Minute)
	assert.True(t, result.Allowed)
}

func TestCheckFailsOpenOnStoreOutage(t *testing.T) {
	t.Parallel()

	limiter, mr, cleanup := setupTest(t)
	defer cleanup()

	mr.Close()

	result := limiter.Check(t.Context(), "refresh:1.2.3.4", 1, time.Minute)
	assert.True(t, result.Allowed)
}

func TestCheckNilClientAlwaysAllows(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.New(nil, zap.NewNop())

	for i := 0; i < 10; i++ {
		result := limiter.Check(t.Context(), "refresh:1.2.3.4", 1, time.Minute)
		assert.True(t, result.Allowed)
	}
}
