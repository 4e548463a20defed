package types

import (
	"time"

	"github.com/algoroom/algoroom/internal/platform/service"
)

// PlatformIdentity is the REST view of one platform link on a user.
type PlatformIdentity struct {
	Username    string     `json:"username"`
	IsValid     bool       `json:"isValid"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
	Stats       any        `json:"stats,omitempty"`
}

// GetUserResponse is returned by the user lookup endpoint.
type GetUserResponse struct {
	ID        string                      `json:"id"`
	Platforms map[string]PlatformIdentity `json:"platforms"`
}

// RefreshUserResponse is returned by single-user refresh endpoints.
type RefreshUserResponse struct {
	UserID   string            `json:"userId"`
	Results  []PlatformOutcome `json:"results"`
	Warnings []string          `json:"warnings,omitempty"`
}

// PlatformOutcome is one platform's refresh outcome.
type PlatformOutcome struct {
	Platform  string `json:"platform"`
	Code      string `json:"code"`
	FromCache bool   `json:"fromCache"`
	Error     string `json:"error,omitempty"`
}

// RefreshRoomResponse is returned by the room bulk refresh endpoint.
type RefreshRoomResponse struct {
	ReportID         string             `json:"reportId"`
	Platform         string             `json:"platform"`
	Items            []service.BulkItem `json:"items"`
	Summary          BulkSummary        `json:"summary"`
	ProcessingTimeMS int64              `json:"processingTimeMs"`
}

// BulkSummary mirrors the persisted bulk refresh tail.
type BulkSummary struct {
	Total      int `json:"total"`
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
	FromCache  int `json:"fromCache"`
}

// InvalidateCacheResponse is returned by the cache invalidation endpoint.
type InvalidateCacheResponse struct {
	UserID      string `json:"userId"`
	Invalidated bool   `json:"invalidated"`
}

// StatsResponse is returned by the service stats endpoint.
type StatsResponse struct {
	Stats service.Stats `json:"stats"`
}
