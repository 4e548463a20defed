package validator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/algoroom/algoroom/internal/database/types"
	"github.com/algoroom/algoroom/internal/database/types/enum"
	"github.com/algoroom/algoroom/internal/platform/client"
	"github.com/algoroom/algoroom/internal/platform/executor"
	"github.com/algoroom/algoroom/internal/setup/config"
	"github.com/algoroom/algoroom/internal/worker/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	mu       sync.Mutex
	due      []*types.User
	validity map[string]bool
	touched  map[string]int
}

func newFakeStore(due ...*types.User) *fakeStore {
	return &fakeStore{
		due:      due,
		validity: make(map[string]bool),
		touched:  make(map[string]int),
	}
}

func (f *fakeStore) IdentitiesDueValidation(
	_ context.Context, _ enum.Platform, _ time.Time, _ int,
) ([]*types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.due, nil
}

func (f *fakeStore) SetUsernameValidity(
	_ context.Context, userID string, _ enum.Platform, valid bool, _ time.Time,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.validity[userID] = valid

	return nil
}

func (f *fakeStore) TouchValidationCheck(
	_ context.Context, userID string, _ enum.Platform, _ time.Time,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.touched[userID]++

	return nil
}

type fakeClient struct {
	exists map[string]bool
	errs   map[string]error
}

func (f *fakeClient) Platform() enum.Platform { return enum.PlatformLeetCode }

func (f *fakeClient) FetchStats(context.Context, string) (*types.PlatformStats, error) {
	return &types.PlatformStats{}, nil
}

func (f *fakeClient) CheckExists(_ context.Context, username string) (bool, error) {
	if err, ok := f.errs[username]; ok {
		return false, err
	}

	return f.exists[username], nil
}

func newWorker(store *fakeStore, apiClient *fakeClient) *validator.Worker {
	logger := zap.NewNop()
	exec := executor.New(executor.DefaultLimits(), logger)
	clients := map[enum.Platform]client.Client{enum.PlatformLeetCode: apiClient}

	return validator.New(store, clients, exec, config.Validator{IntervalHours: 24, RecheckDays: 7}, logger)
}

func dueUser(id, username string) *types.User {
	return &types.User{
		ID:       id,
		LeetCode: types.PlatformIdentity{Username: username, IsValid: true},
	}
}

func TestRunOnceMarksDeadUsernames(t *testing.T) {
	t.Parallel()

	store := newFakeStore(dueUser("u1", "alice"), dueUser("u2", "ghost"))
	apiClient := &fakeClient{exists: map[string]bool{"alice": true, "ghost": false}}

	w := newWorker(store, apiClient)
	w.RunOnce(t.Context())

	store.mu.Lock()
	defer store.mu.Unlock()

	valid, ok := store.validity["u1"]
	require.True(t, ok)
	assert.True(t, valid)

	valid, ok = store.validity["u2"]
	require.True(t, ok)
	assert.False(t, valid)
}

func TestRunOnceTransientFailureKeepsValidity(t *testing.T) {
	t.Parallel()

	store := newFakeStore(dueUser("u1", "alice"))
	apiClient := &fakeClient{errs: map[string]error{"alice": errors.New("timeout")}}

	w := newWorker(store, apiClient)
	w.RunOnce(t.Context())

	store.mu.Lock()
	defer store.mu.Unlock()

	_, wrote := store.validity["u1"]
	assert.False(t, wrote, "transient failure must not change validity")
	assert.Equal(t, 1, store.touched["u1"])
}

func TestRunOnceEmptyBacklog(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	apiClient := &fakeClient{exists: map[string]bool{}}

	w := newWorker(store, apiClient)
	w.RunOnce(t.Context())

	store.mu.Lock()
	defer store.mu.Unlock()

	assert.Empty(t, store.validity)
	assert.Empty(t, store.touched)
}

func TestStartStopsOnCancel(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	apiClient := &fakeClient{exists: map[string]bool{}}

	w := newWorker(store, apiClient)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})

	go func() {
		w.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}
