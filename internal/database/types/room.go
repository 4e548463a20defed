package types

import (
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// ErrRoomNotFound is returned when a room record does not exist.
var ErrRoomNotFound = errors.New("room not found")

// Room update statuses stored in the platform stats snapshot.
const (
	RoomUpdateStatusUpdating = "updating"
	RoomUpdateStatusComplete = "complete"
	RoomUpdateStatusFailed   = "failed"
)

// BulkSummary is the persisted tail of a bulk refresh, shown by the UI layer
// as "last refreshed" information.
type BulkSummary struct {
	Total      int `json:"total"`
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
	FromCache  int `json:"fromCache"`
}

// RoomPlatformStats is the per-platform refresh status blob on a room.
type RoomPlatformStats struct {
	UpdateStatus string      `json:"updateStatus"`
	LastUpdated  time.Time   `json:"lastUpdated"`
	LastResults  BulkSummary `json:"lastResults"`
}

// Room groups users for leaderboard comparison. Only the member list and the
// refresh status snapshot are of interest to the sync core; the rest of the
// room document belongs to other subsystems.
type Room struct {
	bun.BaseModel `bun:"table:rooms"`

	ID            string                        `bun:"id,pk"                      json:"id"`
	Name          string                        `bun:"name"                       json:"name"`
	MemberIDs     []string                      `bun:"member_ids,array"           json:"memberIds"`
	PlatformStats map[string]*RoomPlatformStats `bun:"platform_stats,type:jsonb"  json:"platformStats"`
}
