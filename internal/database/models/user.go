package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/algoroom/algoroom/internal/database/dbretry"
	"github.com/algoroom/algoroom/internal/database/types"
	"github.com/algoroom/algoroom/internal/database/types/enum"
	"github.com/bytedance/sonic"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// UserModel handles database operations for user records. All platform
// mutations are field-scoped to the touched platform's columns so concurrent
// updates to different platforms of the same user never clobber each other.
type UserModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewUser creates a UserModel.
func NewUser(db *bun.DB, logger *zap.Logger) *UserModel {
	return &UserModel{
		db:     db,
		logger: logger.Named("db_user"),
	}
}

// column builds a platform-prefixed column identifier.
func column(platform enum.Platform, field string) bun.Ident {
	return bun.Ident(platform.String() + "_" + field)
}

// GetUserByID retrieves a user by ID.
func (r *UserModel) GetUserByID(ctx context.Context, userID string) (*types.User, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.User, error) {
		user := new(types.User)

		err := r.db.NewSelect().
			Model(user).
			Where("id = ?", userID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrUserNotFound
			}
			return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
		}

		return user, nil
	})
}

// GetUsersByIDs retrieves users by IDs, keyed by ID. Unknown IDs are simply
// absent from the result.
func (r *UserModel) GetUsersByIDs(ctx context.Context, userIDs []string) (map[string]*types.User, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (map[string]*types.User, error) {
		var users []*types.User

		err := r.db.NewSelect().
			Model(&users).
			Where("id IN (?)", bun.In(userIDs)).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get users: %w", err)
		}

		result := make(map[string]*types.User, len(users))
		for _, user := range users {
			result[user.ID] = user
		}

		return result, nil
	})
}

// SavePlatformStats persists a fresh statistics snapshot for one platform,
// stamping last_updated and restoring validity.
func (r *UserModel) SavePlatformStats(
	ctx context.Context, userID string, platform enum.Platform, stats types.PlatformStats, updatedAt time.Time,
) error {
	data, err := sonic.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal platform stats: %w", err)
	}

	_, err = dbretry.Operation(ctx, func(ctx context.Context) (struct{}, error) {
		_, err := r.db.NewUpdate().
			Model((*types.User)(nil)).
			Set("? = ?::jsonb", column(platform, "stats"), string(data)).
			Set("? = ?", column(platform, "last_updated"), updatedAt).
			Set("? = ?", column(platform, "last_refresh_attempt"), updatedAt).
			Set("? = TRUE", column(platform, "is_valid")).
			Where("id = ?", userID).
			Exec(ctx)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to save %s stats for user %s: %w", platform, userID, err)
		}

		return struct{}{}, nil
	})

	return err
}

// TouchRefreshAttempt stamps last_refresh_attempt without touching the stats.
func (r *UserModel) TouchRefreshAttempt(
	ctx context.Context, userID string, platform enum.Platform, attemptedAt time.Time,
) error {
	_, err := dbretry.Operation(ctx, func(ctx context.Context) (struct{}, error) {
		_, err := r.db.NewUpdate().
			Model((*types.User)(nil)).
			Set("? = ?", column(platform, "last_refresh_attempt"), attemptedAt).
			Where("id = ?", userID).
			Exec(ctx)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to touch refresh attempt: %w", err)
		}

		return struct{}{}, nil
	})

	return err
}

// SetUsernameValidity records the outcome of a confirmed existence check.
func (r *UserModel) SetUsernameValidity(
	ctx context.Context, userID string, platform enum.Platform, valid bool, checkedAt time.Time,
) error {
	_, err := dbretry.Operation(ctx, func(ctx context.Context) (struct{}, error) {
		_, err := r.db.NewUpdate().
			Model((*types.User)(nil)).
			Set("? = ?", column(platform, "is_valid"), valid).
			Set("? = ?", column(platform, "last_validation_check"), checkedAt).
			Where("id = ?", userID).
			Exec(ctx)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to set username validity: %w", err)
		}

		return struct{}{}, nil
	})

	return err
}

// TouchValidationCheck stamps last_validation_check without changing validity.
// Used when an existence check fails transiently: a flaky API must never
// invalidate an identity.
func (r *UserModel) TouchValidationCheck(
	ctx context.Context, userID string, platform enum.Platform, checkedAt time.Time,
) error {
	_, err := dbretry.Operation(ctx, func(ctx context.Context) (struct{}, error) {
		_, err := r.db.NewUpdate().
			Model((*types.User)(nil)).
			Set("? = ?", column(platform, "last_validation_check"), checkedAt).
			Where("id = ?", userID).
			Exec(ctx)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to touch validation check: %w", err)
		}

		return struct{}{}, nil
	})

	return err
}

// IdentitiesDueValidation returns users whose identity on the platform has a
// username configured and a validation check absent or older than the cutoff.
func (r *UserModel) IdentitiesDueValidation(
	ctx context.Context, platform enum.Platform, cutoff time.Time, limit int,
) ([]*types.User, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.User, error) {
		var users []*types.User

		err := r.db.NewSelect().
			Model(&users).
			Where("? <> ''", column(platform, "username")).
			Where("? IS NULL OR ? < ?",
				column(platform, "last_validation_check"),
				column(platform, "last_validation_check"),
				cutoff).
			Order("id").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list identities due validation: %w", err)
		}

		return users, nil
	})
}
