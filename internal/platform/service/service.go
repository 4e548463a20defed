package service

import (
	"context"
	"fmt"
	"time"

	"github.com/algoroom/algoroom/internal/database"
	"github.com/algoroom/algoroom/internal/database/types"
	"github.com/algoroom/algoroom/internal/database/types/enum"
	"github.com/algoroom/algoroom/internal/platform/cache"
	"github.com/algoroom/algoroom/internal/platform/executor"
	"github.com/algoroom/algoroom/internal/platform/updater"
	"github.com/algoroom/algoroom/internal/setup/config"
	"github.com/algoroom/algoroom/pkg/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BulkOptions tunes a bulk refresh call.
type BulkOptions struct {
	// Force bypasses freshness checks and the cache for every user.
	Force bool
	// SkipCache forces fresh external fetches without bypassing freshness.
	SkipCache bool
	// Progress receives an event after every dispatched item resolves.
	// The sender blocks, so the subscriber must drain until the call
	// returns. Nil disables progress reporting.
	Progress chan<- executor.Progress
}

// BulkItem is one user's outcome inside a bulk refresh, at the same index as
// the user held in the input slice.
type BulkItem struct {
	UserID    string       `json:"userId"`
	Code      updater.Code `json:"code"`
	FromCache bool         `json:"fromCache"`
	Error     string       `json:"error,omitempty"`
}

// BulkResult aggregates one bulk refresh run.
type BulkResult struct {
	ReportID       string            `json:"reportId"`
	Platform       enum.Platform     `json:"platform"`
	Items          []BulkItem        `json:"items"`
	Summary        types.BulkSummary `json:"summary"`
	ProcessingTime time.Duration     `json:"processingTime"`
}

// PlatformOutcome pairs a platform with its refresh outcome for
// multi-platform single-user calls.
type PlatformOutcome struct {
	Platform enum.Platform
	Outcome  *updater.Outcome
}

// UserRefreshResult aggregates a single user's refresh across platforms.
type UserRefreshResult struct {
	UserID   string
	Results  []PlatformOutcome
	Warnings []string
}

// Stats is the service-wide observability snapshot.
type Stats struct {
	Service      Snapshot       `json:"service"`
	Executor     executor.Stats `json:"executor"`
	CacheEnabled bool           `json:"cacheEnabled"`
}

// Service coordinates platform refreshes: it resolves users, consults the
// cache in bulk, dispatches misses through the bounded executor and persists
// room-level refresh status.
type Service struct {
	db        database.Client
	cache     *cache.Cache
	exec      *executor.Executor
	updaters  map[enum.Platform]*updater.Updater
	collector *Collector
	bulk      config.Bulk
	logger    *zap.Logger
}

// New creates a platform service around the given dependencies. The collector
// is owned by this instance; callers needing aggregate numbers read them
// through Stats.
func New(
	db database.Client, statsCache *cache.Cache, exec *executor.Executor,
	updaters map[enum.Platform]*updater.Updater, collector *Collector,
	bulk config.Bulk, logger *zap.Logger,
) *Service {
	if collector == nil {
		collector = NewCollector()
	}

	return &Service{
		db:        db,
		cache:     statsCache,
		exec:      exec,
		updaters:  updaters,
		collector: collector,
		bulk:      bulk,
		logger:    logger.Named("platform_service"),
	}
}

// Updater returns the configured updater for a platform, or nil when the
// platform is not wired.
func (s *Service) Updater(platform enum.Platform) *updater.Updater {
	return s.updaters[platform]
}

// RefreshUser refreshes one user on every requested platform sequentially.
// An empty platform list means every platform the user has a username for.
// Per-platform failures become warnings rather than failing the whole call.
func (s *Service) RefreshUser(
	ctx context.Context, userID string, platforms []enum.Platform, opts updater.Options,
) (*UserRefreshResult, error) {
	user, err := s.db.Users().GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(platforms) == 0 {
		for _, platform := range enum.PlatformValues() {
			if user.Identity(platform).HasUsername() {
				platforms = append(platforms, platform)
			}
		}
	}

	result := &UserRefreshResult{UserID: userID}
	start := time.Now()

	for _, platform := range platforms {
		up := s.updaters[platform]
		if up == nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: platform not configured", platform))

			continue
		}

		var outcome *updater.Outcome

		runErr := s.exec.Run(ctx, executor.ClassPlatform, func(ctx context.Context) error {
			outcome = up.Update(ctx, user, opts)
			if outcome.Code.Failure() {
				return outcome.Err
			}

			return nil
		})
		if outcome == nil {
			// Semaphore acquisition failed, usually a cancelled context.
			return nil, fmt.Errorf("failed to refresh %s stats: %w", platform, runErr)
		}

		result.Results = append(result.Results, PlatformOutcome{Platform: platform, Outcome: outcome})

		switch {
		case outcome.FromCache:
			s.collector.RecordCacheHit()
		case outcome.Code == updater.CodeUpdated:
			s.collector.RecordCacheMiss()
		}

		if outcome.Code.Failure() {
			s.collector.RecordError()
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: %s", platform, outcome.Err))
		}
	}

	s.collector.RecordOperation(time.Since(start))

	return result, nil
}

// RefreshUsers refreshes many users on one platform. Items preserve input
// order and the summary always satisfies successful+failed+skipped == total.
func (s *Service) RefreshUsers(
	ctx context.Context, users []*types.User, platform enum.Platform, opts BulkOptions,
) (*BulkResult, error) {
	up := s.updaters[platform]
	if up == nil {
		return nil, fmt.Errorf("%w: %s", enum.ErrUnsupportedPlatform, platform)
	}

	start := time.Now()
	result := &BulkResult{
		ReportID: uuid.New().String(),
		Platform: platform,
		Items:    make([]BulkItem, len(users)),
		Summary:  types.BulkSummary{Total: len(users)},
	}

	// Users without a username are settled up front so neither the cache
	// nor the executor sees them.
	pending := make([]int, 0, len(users))

	for i, user := range users {
		result.Items[i].UserID = user.ID

		if !user.Identity(platform).HasUsername() {
			result.Items[i].Code = updater.CodeNoUsername
			result.Summary.Skipped++

			continue
		}

		pending = append(pending, i)
	}

	// One cache round trip covers every pending user; hits are applied
	// directly and only the misses reach the executor.
	if !opts.Force && !opts.SkipCache && s.cache.Enabled() && len(pending) > 0 {
		pending = s.applyCacheHits(ctx, up, users, pending, result)
	}

	if len(pending) > 0 {
		s.dispatch(ctx, up, users, pending, opts, result)
	}

	result.Summary.Processed = result.Summary.Successful + result.Summary.Failed
	result.ProcessingTime = time.Since(start)
	s.collector.RecordOperation(result.ProcessingTime)

	s.logger.Info("Bulk refresh finished",
		zap.String("reportID", result.ReportID),
		zap.String("platform", platform.String()),
		zap.Int("total", result.Summary.Total),
		zap.Int("successful", result.Summary.Successful),
		zap.Int("failed", result.Summary.Failed),
		zap.Int("skipped", result.Summary.Skipped),
		zap.Int("fromCache", result.Summary.FromCache),
		zap.Duration("elapsed", result.ProcessingTime))

	return result, nil
}

// applyCacheHits resolves pending users against the cache in one round trip,
// settles the hits and returns the indices still needing an external fetch.
func (s *Service) applyCacheHits(
	ctx context.Context, up *updater.Updater, users []*types.User,
	pending []int, result *BulkResult,
) []int {
	ids := make([]string, len(pending))
	for i, idx := range pending {
		ids[i] = users[idx].ID
	}

	entries := s.cache.GetBulk(ctx, ids, up.Platform())
	misses := pending[:0]

	for _, idx := range pending {
		entry := entries[users[idx].ID]
		if entry == nil {
			s.collector.RecordCacheMiss()
			misses = append(misses, idx)

			continue
		}

		outcome := up.ApplyCached(ctx, users[idx], entry)
		result.Items[idx].Code = outcome.Code
		result.Items[idx].FromCache = true
		result.Summary.Successful++
		result.Summary.FromCache++
		s.collector.RecordCacheHit()
	}

	return misses
}

// dispatch runs the remaining users through the bounded executor and merges
// the outcomes back at their original indices.
func (s *Service) dispatch(
	ctx context.Context, up *updater.Updater, users []*types.User,
	pending []int, opts BulkOptions, result *BulkResult,
) {
	items := make([]*types.User, len(pending))
	for i, idx := range pending {
		items[i] = users[idx]
	}

	batch := executor.ExecutePlatformOperations(ctx, s.exec, items,
		func(ctx context.Context, user *types.User) (*updater.Outcome, error) {
			outcome := up.Update(ctx, user, updater.Options{
				Force: opts.Force,
				// The bulk lookup already established these users as
				// misses; a second per-user read would be wasted.
				SkipCache: true,
			})

			if outcome.Code.Failure() {
				if outcome.Code.Retryable() {
					return outcome, outcome.Err
				}

				return outcome, utils.Permanent(outcome.Err)
			}

			return outcome, nil
		},
		executor.Options{
			MaxRetries: uint64(s.bulk.MaxRetries),
			RetryDelay: time.Duration(s.bulk.RetryDelay) * time.Millisecond,
			BatchSize:  s.bulk.BatchSize,
			BatchDelay: time.Duration(s.bulk.BatchDelay) * time.Millisecond,
			Progress:   opts.Progress,
		})

	for i, item := range batch.Results {
		idx := pending[i]
		outcome := item.Value

		if outcome == nil {
			// The retry wrapper returned no outcome, which only happens
			// when the context died before the operation ran.
			itemErr := item.Err
			if itemErr == nil {
				itemErr = context.Canceled
			}

			result.Items[idx].Code = updater.CodeAPIError
			result.Items[idx].Error = itemErr.Error()
			result.Summary.Failed++
			s.collector.RecordError()

			continue
		}

		result.Items[idx].Code = outcome.Code
		result.Items[idx].FromCache = outcome.FromCache

		switch {
		case outcome.Code.Failure():
			if outcome.Err != nil {
				result.Items[idx].Error = outcome.Err.Error()
			}

			result.Summary.Failed++
			s.collector.RecordError()
		default:
			result.Summary.Successful++
		}
	}
}

// RefreshRoom refreshes every member of a room on one platform and persists
// the room's per-platform refresh status around the run.
func (s *Service) RefreshRoom(
	ctx context.Context, roomID string, platform enum.Platform, opts BulkOptions,
) (*BulkResult, error) {
	memberIDs, err := s.db.Rooms().MemberIDs(ctx, roomID)
	if err != nil {
		return nil, err
	}

	s.setRoomStatus(ctx, roomID, platform, &types.RoomPlatformStats{
		UpdateStatus: types.RoomUpdateStatusUpdating,
		LastUpdated:  time.Now(),
	})

	userMap, err := s.db.Users().GetUsersByIDs(ctx, memberIDs)
	if err != nil {
		s.setRoomStatus(ctx, roomID, platform, &types.RoomPlatformStats{
			UpdateStatus: types.RoomUpdateStatusFailed,
			LastUpdated:  time.Now(),
		})

		return nil, err
	}

	// Members whose user record is gone point at a stale member list; they
	// count as failures but must not block the rest of the room.
	users := make([]*types.User, 0, len(memberIDs))
	missing := make([]string, 0)

	for _, id := range memberIDs {
		if user := userMap[id]; user != nil {
			users = append(users, user)
		} else {
			missing = append(missing, id)
		}
	}

	result, err := s.RefreshUsers(ctx, users, platform, opts)
	if err != nil {
		s.setRoomStatus(ctx, roomID, platform, &types.RoomPlatformStats{
			UpdateStatus: types.RoomUpdateStatusFailed,
			LastUpdated:  time.Now(),
		})

		return nil, err
	}

	for _, id := range missing {
		result.Items = append(result.Items, BulkItem{
			UserID: id,
			Code:   updater.CodeAPIError,
			Error:  types.ErrUserNotFound.Error(),
		})
		result.Summary.Total++
		result.Summary.Processed++
		result.Summary.Failed++
	}

	s.setRoomStatus(ctx, roomID, platform, &types.RoomPlatformStats{
		UpdateStatus: types.RoomUpdateStatusComplete,
		LastUpdated:  time.Now(),
		LastResults:  result.Summary,
	})

	return result, nil
}

func (s *Service) setRoomStatus(
	ctx context.Context, roomID string, platform enum.Platform, snapshot *types.RoomPlatformStats,
) {
	if err := s.db.Rooms().SetPlatformStats(ctx, roomID, platform, snapshot); err != nil {
		s.logger.Warn("Failed to persist room refresh status",
			zap.String("roomID", roomID),
			zap.String("platform", platform.String()),
			zap.Error(err))
	}
}

// InvalidateCache drops a user's cached snapshots. An empty platform list
// drops every platform's entry.
func (s *Service) InvalidateCache(ctx context.Context, userID string, platforms ...enum.Platform) bool {
	return s.cache.Invalidate(ctx, userID, platforms...)
}

// Stats returns the aggregate service counters.
func (s *Service) Stats() Stats {
	return Stats{
		Service:      s.collector.Snapshot(),
		Executor:     s.exec.Stats(),
		CacheEnabled: s.cache.Enabled(),
	}
}

// ResetStats clears both the service collector and the executor counters.
func (s *Service) ResetStats() {
	s.collector.Reset()
	s.exec.ResetStats()
}
