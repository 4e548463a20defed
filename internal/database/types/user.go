package types

import (
	"errors"
	"time"

	"github.com/algoroom/algoroom/internal/database/types/enum"
	"github.com/uptrace/bun"
)

// ErrUserNotFound is returned when a user record does not exist.
var ErrUserNotFound = errors.New("user not found")

// PlatformStats is the normalized statistics snapshot for one platform.
// Only the fields relevant to the platform are populated; the rest stay zero.
type PlatformStats struct {
	// LeetCode fields.
	TotalSolved  int `json:"totalSolved,omitempty"`
	EasySolved   int `json:"easySolved,omitempty"`
	MediumSolved int `json:"mediumSolved,omitempty"`
	HardSolved   int `json:"hardSolved,omitempty"`
	Ranking      int `json:"ranking,omitempty"`

	// GitHub fields.
	PublicRepos int `json:"publicRepos,omitempty"`
	Followers   int `json:"followers,omitempty"`
	Following   int `json:"following,omitempty"`

	// Codeforces fields.
	Rating    int    `json:"rating,omitempty"`
	MaxRating int    `json:"maxRating,omitempty"`
	Rank      string `json:"rank,omitempty"`
}

// PlatformIdentity maps a local user to a username on one platform, plus
// validity and freshness metadata. Mutated only by the stats updater and the
// username validator job.
type PlatformIdentity struct {
	Username            string        `bun:"username"                       json:"username"`
	IsValid             bool          `bun:"is_valid"                       json:"isValid"`
	LastValidationCheck *time.Time    `bun:"last_validation_check"          json:"lastValidationCheck,omitempty"`
	LastUpdated         *time.Time    `bun:"last_updated"                   json:"lastUpdated,omitempty"`
	LastRefreshAttempt  *time.Time    `bun:"last_refresh_attempt"           json:"lastRefreshAttempt,omitempty"`
	Stats               PlatformStats `bun:"stats,type:jsonb"               json:"stats"`
}

// HasUsername reports whether an identity is configured for the platform.
func (i *PlatformIdentity) HasUsername() bool {
	return i != nil && i.Username != ""
}

// User is a tracked account with up to one identity per platform.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID          string    `bun:"id,pk"           json:"id"`
	DisplayName string    `bun:"display_name"    json:"displayName"`
	CreatedAt   time.Time `bun:"created_at"      json:"createdAt"`

	LeetCode   PlatformIdentity `bun:"embed:leetcode_"   json:"leetcode"`
	GitHub     PlatformIdentity `bun:"embed:github_"     json:"github"`
	Codeforces PlatformIdentity `bun:"embed:codeforces_" json:"codeforces"`
}

// Identity returns the identity for the given platform.
func (u *User) Identity(platform enum.Platform) *PlatformIdentity {
	switch platform {
	case enum.PlatformLeetCode:
		return &u.LeetCode
	case enum.PlatformGitHub:
		return &u.GitHub
	case enum.PlatformCodeforces:
		return &u.Codeforces
	default:
		return nil
	}
}
