package updater_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/algoroom/algoroom/internal/database/types"
	"github.com/algoroom/algoroom/internal/database/types/enum"
	"github.com/algoroom/algoroom/internal/platform/cache"
	"github.com/algoroom/algoroom/internal/platform/client"
	"github.com/algoroom/algoroom/internal/platform/updater"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClient struct {
	mu         sync.Mutex
	stats      *types.PlatformStats
	err        error
	fetchCalls int
}

func (f *fakeClient) Platform() enum.Platform { return enum.PlatformLeetCode }

func (f *fakeClient) FetchStats(_ context.Context, _ string) (*types.PlatformStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetchCalls++
	if f.err != nil {
		return nil, f.err
	}

	stats := *f.stats

	return &stats, nil
}

func (f *fakeClient) CheckExists(ctx context.Context, username string) (bool, error) {
	_, err := f.FetchStats(ctx, username)
	if client.IsUsernameNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.fetchCalls
}

type fakeStore struct {
	mu            sync.Mutex
	saved         map[string]types.PlatformStats
	validity      map[string]bool
	saveCalls     int
	touchCalls    int
	validityCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		saved:    make(map[string]types.PlatformStats),
		validity: make(map[string]bool),
	}
}

func (f *fakeStore) SavePlatformStats(
	_ context.Context, userID string, _ enum.Platform, stats types.PlatformStats, _ time.Time,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.saveCalls++
	f.saved[userID] = stats

	return nil
}

func (f *fakeStore) TouchRefreshAttempt(_ context.Context, _ string, _ enum.Platform, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.touchCalls++

	return nil
}

func (f *fakeStore) SetUsernameValidity(
	_ context.Context, userID string, _ enum.Platform, valid bool, _ time.Time,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.validityCalls++
	f.validity[userID] = valid

	return nil
}

type fakeCache struct {
	mu       sync.Mutex
	entries  map[string]*cache.Entry
	getCalls int
	setCalls int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*cache.Entry)}
}

func (f *fakeCache) Get(_ context.Context, userID string, _ enum.Platform) *cache.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.getCalls++

	return f.entries[userID]
}

func (f *fakeCache) Set(
	_ context.Context, userID string, _ enum.Platform, stats types.PlatformStats, _ time.Duration,
) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.setCalls++
	f.entries[userID] = &cache.Entry{Stats: stats, CachedAt: time.Now()}

	return true
}

func testUser(username string) *types.User {
	return &types.User{
		ID:       "user-1",
		LeetCode: types.PlatformIdentity{Username: username, IsValid: true},
	}
}

func newUpdater(c *fakeClient, fc *fakeCache, fs *fakeStore) *updater.Updater {
	return updater.New(enum.PlatformLeetCode, c, fc, fs, time.Hour, zap.NewNop())
}

func TestUpdateFetchesAndPersists(t *testing.T) {
	t.Parallel()

	apiClient := &fakeClient{stats: &types.PlatformStats{TotalSolved: 42}}
	statsCache := newFakeCache()
	store := newFakeStore()
	u := newUpdater(apiClient, statsCache, store)

	user := testUser("alice")
	outcome := u.Update(t.Context(), user, updater.Options{})

	assert.Equal(t, updater.CodeUpdated, outcome.Code)
	assert.False(t, outcome.FromCache)
	require.NotNil(t, outcome.Stats)
	assert.Equal(t, 42, outcome.Stats.TotalSolved)

	// Identity mutated in place, store written, cache populated.
	assert.Equal(t, 42, user.LeetCode.Stats.TotalSolved)
	assert.NotNil(t, user.LeetCode.LastUpdated)
	assert.True(t, user.LeetCode.IsValid)
	assert.Equal(t, 1, store.saveCalls)
	assert.Equal(t, 1, statsCache.setCalls)
}

func TestUpdateNoUsername(t *testing.T) {
	t.Parallel()

	apiClient := &fakeClient{stats: &types.PlatformStats{}}
	u := newUpdater(apiClient, newFakeCache(), newFakeStore())

	outcome := u.Update(t.Context(), testUser(""), updater.Options{})

	assert.Equal(t, updater.CodeNoUsername, outcome.Code)
	assert.Zero(t, apiClient.calls())
}

func TestUpdateFreshStatsSkipFetch(t *testing.T) {
	t.Parallel()

	apiClient := &fakeClient{stats: &types.PlatformStats{TotalSolved: 42}}
	store := newFakeStore()
	u := newUpdater(apiClient, newFakeCache(), store)

	recent := time.Now().Add(-time.Minute)
	user := testUser("alice")
	user.LeetCode.LastUpdated = &recent
	user.LeetCode.Stats = types.PlatformStats{TotalSolved: 40}

	outcome := u.Update(t.Context(), user, updater.Options{})

	assert.Equal(t, updater.CodeFresh, outcome.Code)
	require.NotNil(t, outcome.Stats)
	assert.Equal(t, 40, outcome.Stats.TotalSolved)
	assert.Zero(t, apiClient.calls())
	assert.Zero(t, store.saveCalls)
}

func TestUpdateForceBypassesFreshness(t *testing.T) {
	t.Parallel()

	apiClient := &fakeClient{stats: &types.PlatformStats{TotalSolved: 42}}
	u := newUpdater(apiClient, newFakeCache(), newFakeStore())

	recent := time.Now().Add(-time.Minute)
	user := testUser("alice")
	user.LeetCode.LastUpdated = &recent

	outcome := u.Update(t.Context(), user, updater.Options{Force: true})

	assert.Equal(t, updater.CodeUpdated, outcome.Code)
	assert.Equal(t, 1, apiClient.calls())
}

func TestUpdateCacheHitWritesThrough(t *testing.T) {
	t.Parallel()

	apiClient := &fakeClient{stats: &types.PlatformStats{TotalSolved: 99}}
	statsCache := newFakeCache()
	store := newFakeStore()
	u := newUpdater(apiClient, statsCache, store)

	cachedAt := time.Now().Add(-10 * time.Minute)
	statsCache.entries["user-1"] = &cache.Entry{
		Stats:    types.PlatformStats{TotalSolved: 77},
		CachedAt: cachedAt,
	}

	user := testUser("alice")
	outcome := u.Update(t.Context(), user, updater.Options{})

	assert.Equal(t, updater.CodeUpdated, outcome.Code)
	assert.True(t, outcome.FromCache)
	assert.Equal(t, 77, outcome.Stats.TotalSolved)

	// The snapshot's own age becomes the displayed freshness.
	require.NotNil(t, user.LeetCode.LastUpdated)
	assert.WithinDuration(t, cachedAt, *user.LeetCode.LastUpdated, time.Second)

	assert.Zero(t, apiClient.calls())
	assert.Equal(t, 1, store.saveCalls)
}

func TestUpdateSkipCacheFetchesFresh(t *testing.T) {
	t.Parallel()

	apiClient := &fakeClient{stats: &types.PlatformStats{TotalSolved: 99}}
	statsCache := newFakeCache()
	u := newUpdater(apiClient, statsCache, newFakeStore())

	statsCache.entries["user-1"] = &cache.Entry{
		Stats:    types.PlatformStats{TotalSolved: 77},
		CachedAt: time.Now(),
	}

	outcome := u.Update(t.Context(), testUser("alice"), updater.Options{SkipCache: true})

	assert.Equal(t, updater.CodeUpdated, outcome.Code)
	assert.False(t, outcome.FromCache)
	assert.Equal(t, 99, outcome.Stats.TotalSolved)
	assert.Equal(t, 1, apiClient.calls())
}

func TestUpdateUsernameNotFoundInvalidates(t *testing.T) {
	t.Parallel()

	apiClient := &fakeClient{err: &client.Error{
		Platform: enum.PlatformLeetCode,
		Kind:     client.KindUsernameNotFound,
		Message:  "ghost",
	}}
	store := newFakeStore()
	u := newUpdater(apiClient, newFakeCache(), store)

	user := testUser("ghost")
	outcome := u.Update(t.Context(), user, updater.Options{})

	assert.Equal(t, updater.CodeUsernameNotFound, outcome.Code)
	assert.Error(t, outcome.Err)
	assert.False(t, user.LeetCode.IsValid)
	assert.NotNil(t, user.LeetCode.LastValidationCheck)
	assert.Equal(t, 1, store.validityCalls)
	assert.False(t, store.validity["user-1"])
}

func TestUpdateTransientFailureKeepsValidity(t *testing.T) {
	t.Parallel()

	apiClient := &fakeClient{err: &client.Error{
		Platform:   enum.PlatformLeetCode,
		Kind:       client.KindTransient,
		StatusCode: 503,
	}}
	store := newFakeStore()
	u := newUpdater(apiClient, newFakeCache(), store)

	user := testUser("alice")
	outcome := u.Update(t.Context(), user, updater.Options{})

	assert.Equal(t, updater.CodeAPIError, outcome.Code)
	assert.True(t, user.LeetCode.IsValid)
	assert.Nil(t, user.LeetCode.LastUpdated)
	assert.Zero(t, store.validityCalls)
	assert.Zero(t, store.saveCalls)
}

func TestUpdateRateLimitedKeepsValidity(t *testing.T) {
	t.Parallel()

	apiClient := &fakeClient{err: &client.Error{
		Platform:   enum.PlatformLeetCode,
		Kind:       client.KindRateLimited,
		StatusCode: 429,
	}}
	store := newFakeStore()
	u := newUpdater(apiClient, newFakeCache(), store)

	user := testUser("alice")
	outcome := u.Update(t.Context(), user, updater.Options{})

	assert.Equal(t, updater.CodeRateLimited, outcome.Code)
	assert.True(t, user.LeetCode.IsValid)
	assert.Zero(t, store.validityCalls)
}

func TestUpdateInvalidUsernameShortCircuits(t *testing.T) {
	t.Parallel()

	apiClient := &fakeClient{stats: &types.PlatformStats{TotalSolved: 1}}
	u := newUpdater(apiClient, newFakeCache(), newFakeStore())

	checked := time.Now().Add(-time.Hour)
	user := testUser("ghost")
	user.LeetCode.IsValid = false
	user.LeetCode.LastValidationCheck = &checked

	outcome := u.Update(t.Context(), user, updater.Options{})

	assert.Equal(t, updater.CodeInvalidUsername, outcome.Code)
	assert.Zero(t, apiClient.calls(), "invalid identity must not trigger an external call")
}

func TestUpdateInvalidUsernameRecheckedAfterWindow(t *testing.T) {
	t.Parallel()

	apiClient := &fakeClient{stats: &types.PlatformStats{TotalSolved: 1}}
	u := newUpdater(apiClient, newFakeCache(), newFakeStore())

	checked := time.Now().Add(-updater.InvalidRecheckWindow - time.Hour)
	user := testUser("revived")
	user.LeetCode.IsValid = false
	user.LeetCode.LastValidationCheck = &checked

	outcome := u.Update(t.Context(), user, updater.Options{})

	assert.Equal(t, updater.CodeUpdated, outcome.Code)
	assert.Equal(t, 1, apiClient.calls())
	assert.True(t, user.LeetCode.IsValid)
}

func TestUpdateForceBypassesInvalidShortCircuit(t *testing.T) {
	t.Parallel()

	apiClient := &fakeClient{stats: &types.PlatformStats{TotalSolved: 1}}
	u := newUpdater(apiClient, newFakeCache(), newFakeStore())

	checked := time.Now()
	user := testUser("revived")
	user.LeetCode.IsValid = false
	user.LeetCode.LastValidationCheck = &checked

	outcome := u.Update(t.Context(), user, updater.Options{Force: true})

	assert.Equal(t, updater.CodeUpdated, outcome.Code)
	assert.Equal(t, 1, apiClient.calls())
}

func TestUpdateIsIdempotentWithinFreshness(t *testing.T) {
	t.Parallel()

	apiClient := &fakeClient{stats: &types.PlatformStats{TotalSolved: 42}}
	u := newUpdater(apiClient, newFakeCache(), newFakeStore())

	user := testUser("alice")

	first := u.Update(t.Context(), user, updater.Options{})
	require.Equal(t, updater.CodeUpdated, first.Code)

	second := u.Update(t.Context(), user, updater.Options{})
	assert.Equal(t, updater.CodeFresh, second.Code)
	assert.Equal(t, 1, apiClient.calls())
}
