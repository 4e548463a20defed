package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/algoroom/algoroom/internal/database/dbretry"
	"github.com/algoroom/algoroom/internal/database/types"
	"github.com/algoroom/algoroom/internal/database/types/enum"
	"github.com/bytedance/sonic"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// RoomModel handles database operations for room records.
type RoomModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewRoom creates a RoomModel.
func NewRoom(db *bun.DB, logger *zap.Logger) *RoomModel {
	return &RoomModel{
		db:     db,
		logger: logger.Named("db_room"),
	}
}

// GetRoomByID retrieves a room by ID.
func (r *RoomModel) GetRoomByID(ctx context.Context, roomID string) (*types.Room, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Room, error) {
		room := new(types.Room)

		err := r.db.NewSelect().
			Model(room).
			Where("id = ?", roomID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrRoomNotFound
			}
			return nil, fmt.Errorf("failed to get room %s: %w", roomID, err)
		}

		return room, nil
	})
}

// MemberIDs returns the room's member user IDs.
func (r *RoomModel) MemberIDs(ctx context.Context, roomID string) ([]string, error) {
	room, err := r.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	return room.MemberIDs, nil
}

// SetPlatformStats writes the per-platform refresh status blob on a room.
// The update targets only the platform's key inside the jsonb column, so
// concurrent refreshes of different platforms never clobber each other.
func (r *RoomModel) SetPlatformStats(
	ctx context.Context, roomID string, platform enum.Platform, snapshot *types.RoomPlatformStats,
) error {
	data, err := sonic.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal room platform stats: %w", err)
	}

	_, err = dbretry.Operation(ctx, func(ctx context.Context) (struct{}, error) {
		_, err := r.db.NewUpdate().
			Model((*types.Room)(nil)).
			Set("platform_stats = jsonb_set(COALESCE(platform_stats, '{}'::jsonb), ?, ?::jsonb)",
				fmt.Sprintf("{%s}", platform),
				string(data)).
			Where("id = ?", roomID).
			Exec(ctx)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to set room platform stats: %w", err)
		}

		return struct{}{}, nil
	})

	return err
}
