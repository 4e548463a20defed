package updater

import (
	"context"
	"time"

	"github.com/algoroom/algoroom/internal/database/types"
	"github.com/algoroom/algoroom/internal/database/types/enum"
	"github.com/algoroom/algoroom/internal/platform/cache"
	"github.com/algoroom/algoroom/internal/platform/client"
	"go.uber.org/zap"
)

// InvalidRecheckWindow is how long a confirmed-invalid username suppresses
// external calls before a non-forced update may probe it again.
const InvalidRecheckWindow = 24 * time.Hour

// Code is the outcome of an update attempt.
type Code int

const (
	// CodeUpdated means fresh stats were fetched and persisted.
	CodeUpdated Code = iota
	// CodeFresh means stored stats were within the freshness window; no call was made.
	CodeFresh
	// CodeNoUsername means no identity is configured; reported as a skip, not an error.
	CodeNoUsername
	// CodeInvalidUsername means the identity is known invalid and was checked recently.
	CodeInvalidUsername
	// CodeUsernameNotFound means the platform just confirmed the identity does not exist.
	CodeUsernameNotFound
	// CodeRateLimited means the platform rejected the fetch for quota reasons.
	CodeRateLimited
	// CodeAPIError covers transient fetch or persistence failures.
	CodeAPIError
)

// String returns the wire name of the outcome code.
func (c Code) String() string {
	switch c {
	case CodeUpdated:
		return "UPDATED"
	case CodeFresh:
		return "FRESH"
	case CodeNoUsername:
		return "NO_USERNAME"
	case CodeInvalidUsername:
		return "INVALID_USERNAME"
	case CodeUsernameNotFound:
		return "USERNAME_NOT_FOUND"
	case CodeRateLimited:
		return "RATE_LIMIT"
	default:
		return "API_ERROR"
	}
}

// MarshalText encodes the code as its wire name.
func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Skip reports whether the outcome counts as a skip rather than a failure.
func (c Code) Skip() bool {
	return c == CodeNoUsername
}

// Failure reports whether the outcome counts as a per-item failure.
func (c Code) Failure() bool {
	switch c {
	case CodeInvalidUsername, CodeUsernameNotFound, CodeRateLimited, CodeAPIError:
		return true
	default:
		return false
	}
}

// Retryable reports whether another immediate attempt could succeed. Only
// transient API errors qualify; dead usernames and quota rejections do not.
func (c Code) Retryable() bool {
	return c == CodeAPIError
}

// UserStore is the slice of the persistent store the updater mutates. Updates
// are field-scoped to one platform's columns.
type UserStore interface {
	SavePlatformStats(
		ctx context.Context, userID string, platform enum.Platform,
		stats types.PlatformStats, updatedAt time.Time,
	) error
	TouchRefreshAttempt(ctx context.Context, userID string, platform enum.Platform, attemptedAt time.Time) error
	SetUsernameValidity(
		ctx context.Context, userID string, platform enum.Platform, valid bool, checkedAt time.Time,
	) error
}

// StatsCache is the slice of the platform cache the updater touches.
type StatsCache interface {
	Get(ctx context.Context, userID string, platform enum.Platform) *cache.Entry
	Set(
		ctx context.Context, userID string, platform enum.Platform,
		stats types.PlatformStats, ttl time.Duration,
	) bool
}

// Options tunes a single update call.
type Options struct {
	// Force bypasses the validity short-circuit, the staleness check and the cache.
	Force bool
	// SkipCache forces a fresh external fetch without bypassing staleness.
	SkipCache bool
}

// Outcome describes one update attempt. Err carries the classified platform
// error for failure codes; the updater itself never fails a call for an
// individual user, since most callers are bulk operations that must continue
// past individual failures.
type Outcome struct {
	Code      Code
	Stats     *types.PlatformStats
	FromCache bool
	Err       error
}

// Updater orchestrates a single platform's refresh state machine:
// precondition check, validity short-circuit, staleness check, fetch,
// normalize, persist, cache write-through.
type Updater struct {
	platform  enum.Platform
	client    client.Client
	cache     StatsCache
	store     UserStore
	freshness time.Duration
	logger    *zap.Logger
}

// New creates an updater for one platform.
func New(
	platform enum.Platform, apiClient client.Client, statsCache StatsCache,
	store UserStore, freshness time.Duration, logger *zap.Logger,
) *Updater {
	if freshness <= 0 {
		freshness = time.Hour
	}

	return &Updater{
		platform:  platform,
		client:    apiClient,
		cache:     statsCache,
		store:     store,
		freshness: freshness,
		logger:    logger.Named("updater_" + platform.String()),
	}
}

// Platform returns the platform this updater refreshes.
func (u *Updater) Platform() enum.Platform {
	return u.platform
}

// Update runs the refresh state machine for one user, mutating the user's
// identity in place on success.
func (u *Updater) Update(ctx context.Context, user *types.User, opts Options) *Outcome {
	identity := user.Identity(u.platform)
	if !identity.HasUsername() {
		return &Outcome{Code: CodeNoUsername}
	}

	now := time.Now()

	// A username the platform already confirmed dead gets no external call
	// until the recheck window elapses; the validator job keeps this accurate.
	if !opts.Force && !identity.IsValid &&
		identity.LastValidationCheck != nil &&
		now.Sub(*identity.LastValidationCheck) < InvalidRecheckWindow {
		return &Outcome{
			Code: CodeInvalidUsername,
			Err:  &client.Error{Platform: u.platform, Kind: client.KindUsernameNotFound, Message: identity.Username},
		}
	}

	if !opts.Force && identity.LastUpdated != nil && now.Sub(*identity.LastUpdated) < u.freshness {
		stats := identity.Stats
		return &Outcome{Code: CodeFresh, Stats: &stats}
	}

	if !opts.Force && !opts.SkipCache && u.cache != nil {
		if entry := u.cache.Get(ctx, user.ID, u.platform); entry != nil {
			return u.applyCached(ctx, user, identity, entry)
		}
	}

	if err := u.store.TouchRefreshAttempt(ctx, user.ID, u.platform, now); err != nil {
		u.logger.Warn("Failed to stamp refresh attempt", zap.String("userID", user.ID), zap.Error(err))
	}

	stats, err := u.client.FetchStats(ctx, identity.Username)
	if err != nil {
		return u.classifyFetchFailure(ctx, user, identity, err, now)
	}

	if err := u.store.SavePlatformStats(ctx, user.ID, u.platform, *stats, now); err != nil {
		u.logger.Error("Failed to persist platform stats",
			zap.String("userID", user.ID),
			zap.Error(err))

		return &Outcome{Code: CodeAPIError, Err: err}
	}

	identity.Stats = *stats
	identity.LastUpdated = &now
	identity.LastRefreshAttempt = &now
	identity.IsValid = true

	if u.cache != nil {
		u.cache.Set(ctx, user.ID, u.platform, *stats, 0)
	}

	u.logger.Debug("Updated platform stats",
		zap.String("userID", user.ID),
		zap.String("username", identity.Username))

	return &Outcome{Code: CodeUpdated, Stats: stats}
}

// ApplyCached applies a cache entry resolved out of band, e.g. by a bulk
// pipeline that fetched many users' snapshots in one cache round trip.
func (u *Updater) ApplyCached(ctx context.Context, user *types.User, entry *cache.Entry) *Outcome {
	return u.applyCached(ctx, user, user.Identity(u.platform), entry)
}

// applyCached writes a cached snapshot through to the persistent store so the
// displayed last_updated timestamp reflects the snapshot's age.
func (u *Updater) applyCached(
	ctx context.Context, user *types.User, identity *types.PlatformIdentity, entry *cache.Entry,
) *Outcome {
	if err := u.store.SavePlatformStats(ctx, user.ID, u.platform, entry.Stats, entry.CachedAt); err != nil {
		u.logger.Warn("Failed to write cached stats through to store",
			zap.String("userID", user.ID),
			zap.Error(err))
	}

	cachedAt := entry.CachedAt
	identity.Stats = entry.Stats
	identity.LastUpdated = &cachedAt
	identity.IsValid = true

	stats := entry.Stats

	return &Outcome{Code: CodeUpdated, Stats: &stats, FromCache: true}
}

// classifyFetchFailure maps a fetch error to an outcome. Only a confirmed
// unknown username mutates the identity; transient failures leave isValid and
// lastUpdated untouched so the next attempt retries fully.
func (u *Updater) classifyFetchFailure(
	ctx context.Context, user *types.User, identity *types.PlatformIdentity, err error, now time.Time,
) *Outcome {
	switch client.KindOf(err) {
	case client.KindUsernameNotFound:
		if storeErr := u.store.SetUsernameValidity(ctx, user.ID, u.platform, false, now); storeErr != nil {
			u.logger.Error("Failed to mark username invalid",
				zap.String("userID", user.ID),
				zap.Error(storeErr))
		}

		identity.IsValid = false
		identity.LastValidationCheck = &now

		u.logger.Info("Platform confirmed username does not exist",
			zap.String("userID", user.ID),
			zap.String("username", identity.Username))

		return &Outcome{Code: CodeUsernameNotFound, Err: err}

	case client.KindRateLimited:
		return &Outcome{Code: CodeRateLimited, Err: err}

	default:
		u.logger.Warn("Platform fetch failed",
			zap.String("userID", user.ID),
			zap.String("username", identity.Username),
			zap.Error(err))

		return &Outcome{Code: CodeAPIError, Err: err}
	}
}
