package cache_test

import (
	"testing"
	"time"

	"github.com/algoroom/algoroom/internal/database/types"
	"github.com/algoroom/algoroom/internal/database/types/enum"
	"github.com/algoroom/algoroom/internal/platform/cache"
	"github.com/algoroom/algoroom/internal/setup/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTest(t *testing.T) (*cache.Cache, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	statsCache := cache.New(client, config.Default(), zap.NewNop())

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return statsCache, mr, cleanup
}

func leetCodeStats() types.PlatformStats {
	return types.PlatformStats{
		TotalSolved:  120,
		EasySolved:   60,
		MediumSolved: 45,
		HardSolved:   15,
		Ranking:      54321,
	}
}

func TestSetGetRoundtrip(t *testing.T) {
	t.Parallel()

	statsCache, _, cleanup := setupTest(t)
	defer cleanup()

	ctx := t.Context()
	stats := leetCodeStats()

	require.True(t, statsCache.Set(ctx, "user-1", enum.PlatformLeetCode, stats, 0))

	entry := statsCache.Get(ctx, "user-1", enum.PlatformLeetCode)
	require.NotNil(t, entry)
	assert.Equal(t, stats, entry.Stats)
	assert.WithinDuration(t, time.Now(), entry.CachedAt, time.Minute)
}

func TestGetMissReturnsNil(t *testing.T) {
	t.Parallel()

	statsCache, _, cleanup := setupTest(t)
	defer cleanup()

	assert.Nil(t, statsCache.Get(t.Context(), "nobody", enum.PlatformLeetCode))
}

func TestEntriesArePlatformScoped(t *testing.T) {
	t.Parallel()

	statsCache, _, cleanup := setupTest(t)
	defer cleanup()

	ctx := t.Context()

	require.True(t, statsCache.Set(ctx, "user-1", enum.PlatformLeetCode, leetCodeStats(), 0))

	assert.Nil(t, statsCache.Get(ctx, "user-1", enum.PlatformGitHub))
	assert.NotNil(t, statsCache.Get(ctx, "user-1", enum.PlatformLeetCode))
}

func TestEntryExpires(t *testing.T) {
	t.Parallel()

	statsCache, mr, cleanup := setupTest(t)
	defer cleanup()

	ctx := t.Context()

	require.True(t, statsCache.Set(ctx, "user-1", enum.PlatformLeetCode, leetCodeStats(), 30*time.Second))

	mr.FastForward(time.Minute)

	assert.Nil(t, statsCache.Get(ctx, "user-1", enum.PlatformLeetCode))
}

func TestGetBulkSplitsHitsAndMisses(t *testing.T) {
	t.Parallel()

	statsCache, _, cleanup := setupTest(t)
	defer cleanup()

	ctx := t.Context()

	require.True(t, statsCache.Set(ctx, "user-1", enum.PlatformLeetCode, leetCodeStats(), 0))
	require.True(t, statsCache.Set(ctx, "user-3", enum.PlatformLeetCode, leetCodeStats(), 0))

	entries := statsCache.GetBulk(ctx, []string{"user-1", "user-2", "user-3"}, enum.PlatformLeetCode)

	assert.Len(t, entries, 2)
	assert.Contains(t, entries, "user-1")
	assert.NotContains(t, entries, "user-2")
	assert.Contains(t, entries, "user-3")
}

func TestSetBulkStoresEveryEntry(t *testing.T) {
	t.Parallel()

	statsCache, _, cleanup := setupTest(t)
	defer cleanup()

	ctx := t.Context()
	stats := map[string]types.PlatformStats{
		"user-1": leetCodeStats(),
		"user-2": {TotalSolved: 5},
	}

	require.True(t, statsCache.SetBulk(ctx, stats, enum.PlatformLeetCode, 0))

	for userID := range stats {
		entry := statsCache.Get(ctx, userID, enum.PlatformLeetCode)
		require.NotNil(t, entry, "entry for %s", userID)
		assert.Equal(t, stats[userID], entry.Stats)
	}
}

func TestInvalidateSinglePlatform(t *testing.T) {
	t.Parallel()

	statsCache, _, cleanup := setupTest(t)
	defer cleanup()

	ctx := t.Context()

	require.True(t, statsCache.Set(ctx, "user-1", enum.PlatformLeetCode, leetCodeStats(), 0))
	require.True(t, statsCache.Set(ctx, "user-1", enum.PlatformGitHub, types.PlatformStats{PublicRepos: 3}, 0))

	assert.True(t, statsCache.Invalidate(ctx, "user-1", enum.PlatformLeetCode))

	assert.Nil(t, statsCache.Get(ctx, "user-1", enum.PlatformLeetCode))
	assert.NotNil(t, statsCache.Get(ctx, "user-1", enum.PlatformGitHub))
}

func TestInvalidateAllPlatforms(t *testing.T) {
	t.Parallel()

	statsCache, _, cleanup := setupTest(t)
	defer cleanup()

	ctx := t.Context()

	for _, platform := range enum.PlatformValues() {
		require.True(t, statsCache.Set(ctx, "user-1", platform, types.PlatformStats{TotalSolved: 1}, 0))
	}

	assert.True(t, statsCache.Invalidate(ctx, "user-1"))

	for _, platform := range enum.PlatformValues() {
		assert.Nil(t, statsCache.Get(ctx, "user-1", platform))
	}
}

func TestDisabledCacheIsSafe(t *testing.T) {
	t.Parallel()

	statsCache := cache.New(nil, config.Default(), zap.NewNop())
	ctx := t.Context()

	assert.False(t, statsCache.Enabled())
	assert.False(t, statsCache.Set(ctx, "user-1", enum.PlatformLeetCode, leetCodeStats(), 0))
	assert.Nil(t, statsCache.Get(ctx, "user-1", enum.PlatformLeetCode))
	assert.Empty(t, statsCache.GetBulk(ctx, []string{"user-1"}, enum.PlatformLeetCode))
	assert.False(t, statsCache.Invalidate(ctx, "user-1"))
}

func TestUnavailableStoreDegrades(t *testing.T) {
	t.Parallel()

	statsCache, mr, cleanup := setupTest(t)
	defer cleanup()

	mr.Close()

	ctx := t.Context()

	assert.Nil(t, statsCache.Get(ctx, "user-1", enum.PlatformLeetCode))
	assert.False(t, statsCache.Set(ctx, "user-1", enum.PlatformLeetCode, leetCodeStats(), 0))
}
