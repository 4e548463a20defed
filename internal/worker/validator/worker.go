package validator

import (
	"context"
	"time"

	"github.com/algoroom/algoroom/internal/database/types"
	"github.com/algoroom/algoroom/internal/database/types/enum"
	"github.com/algoroom/algoroom/internal/platform/client"
	"github.com/algoroom/algoroom/internal/platform/executor"
	"github.com/algoroom/algoroom/internal/setup/config"
	"go.uber.org/zap"
)

// BatchLimit caps how many identities one sweep pulls per platform, keeping a
// single cycle bounded no matter how far behind validation has fallen.
const BatchLimit = 200

// IdentityStore is the slice of the persistent store the validator touches.
type IdentityStore interface {
	IdentitiesDueValidation(
		ctx context.Context, platform enum.Platform, cutoff time.Time, limit int,
	) ([]*types.User, error)
	SetUsernameValidity(
		ctx context.Context, userID string, platform enum.Platform, valid bool, checkedAt time.Time,
	) error
	TouchValidationCheck(ctx context.Context, userID string, platform enum.Platform, checkedAt time.Time) error
}

// Worker periodically revalidates stored usernames against their platforms.
// Identities deleted or renamed upstream get flagged so refresh calls stop
// burning external requests on them.
type Worker struct {
	store    IdentityStore
	clients  map[enum.Platform]client.Client
	exec     *executor.Executor
	interval time.Duration
	recheck  time.Duration
	logger   *zap.Logger
}

// New creates a username validator worker.
func New(
	store IdentityStore, clients map[enum.Platform]client.Client,
	exec *executor.Executor, cfg config.Validator, logger *zap.Logger,
) *Worker {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	recheck := time.Duration(cfg.RecheckDays) * 24 * time.Hour
	if recheck <= 0 {
		recheck = 7 * 24 * time.Hour
	}

	return &Worker{
		store:    store,
		clients:  clients,
		exec:     exec,
		interval: interval,
		recheck:  recheck,
		logger:   logger.Named("validator"),
	}
}

// Start runs validation sweeps until the context is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Username validator started",
		zap.Duration("interval", w.interval),
		zap.Duration("recheck", w.recheck))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Username validator stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single validation sweep across all platforms.
func (w *Worker) RunOnce(ctx context.Context) {
	cutoff := time.Now().Add(-w.recheck)

	for platform, platformClient := range w.clients {
		if ctx.Err() != nil {
			return
		}

		w.sweepPlatform(ctx, platform, platformClient, cutoff)
	}
}

// sweepPlatform validates one platform's due identities. Existence checks run
// under the external class cap so sweeps cannot crowd out user-facing
// refresh traffic.
func (w *Worker) sweepPlatform(
	ctx context.Context, platform enum.Platform, platformClient client.Client, cutoff time.Time,
) {
	users, err := w.store.IdentitiesDueValidation(ctx, platform, cutoff, BatchLimit)
	if err != nil {
		w.logger.Error("Failed to list identities due validation",
			zap.String("platform", platform.String()),
			zap.Error(err))

		return
	}

	if len(users) == 0 {
		return
	}

	var checked, invalidated int

	for _, user := range users {
		if ctx.Err() != nil {
			return
		}

		if w.validateIdentity(ctx, platform, platformClient, user) {
			invalidated++
		}

		checked++
	}

	w.logger.Info("Validation sweep finished",
		zap.String("platform", platform.String()),
		zap.Int("checked", checked),
		zap.Int("invalidated", invalidated))
}

// validateIdentity checks one username and reports whether it was marked
// invalid. A transient check failure only stamps the check time; validity is
// flipped solely on a confirmed answer from the platform.
func (w *Worker) validateIdentity(
	ctx context.Context, platform enum.Platform, platformClient client.Client, user *types.User,
) bool {
	identity := user.Identity(platform)
	now := time.Now()

	var exists bool

	err := w.exec.Run(ctx, executor.ClassExternal, func(ctx context.Context) error {
		var checkErr error
		exists, checkErr = platformClient.CheckExists(ctx, identity.Username)

		return checkErr
	})
	if err != nil {
		w.logger.Debug("Existence check failed, keeping validity",
			zap.String("userID", user.ID),
			zap.String("platform", platform.String()),
			zap.String("username", identity.Username),
			zap.Error(err))

		if touchErr := w.store.TouchValidationCheck(ctx, user.ID, platform, now); touchErr != nil {
			w.logger.Error("Failed to stamp validation check",
				zap.String("userID", user.ID),
				zap.Error(touchErr))
		}

		return false
	}

	if storeErr := w.store.SetUsernameValidity(ctx, user.ID, platform, exists, now); storeErr != nil {
		w.logger.Error("Failed to store username validity",
			zap.String("userID", user.ID),
			zap.Error(storeErr))

		return false
	}

	if !exists {
		w.logger.Info("Username no longer exists on platform",
			zap.String("userID", user.ID),
			zap.String("platform", platform.String()),
			zap.String("username", identity.Username))

		return true
	}

	return false
}
