package handler

import (
	"errors"
	"net/http"

	"github.com/algoroom/algoroom/internal/database/types"
	"github.com/algoroom/algoroom/internal/database/types/enum"
	"github.com/algoroom/algoroom/internal/platform/service"
	"github.com/algoroom/algoroom/internal/platform/updater"
	restTypes "github.com/algoroom/algoroom/internal/rest/types"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// PlatformHandler handles platform refresh REST endpoints.
type PlatformHandler struct {
	service *service.Service
	logger  *zap.Logger
}

// NewPlatformHandler creates a new platform handler.
func NewPlatformHandler(service *service.Service, logger *zap.Logger) *PlatformHandler {
	return &PlatformHandler{
		service: service,
		logger:  logger,
	}
}

// RefreshUser refreshes every linked platform for one user.
func (h *PlatformHandler) RefreshUser(w http.ResponseWriter, req bunrouter.Request) error {
	return h.refreshUser(w, req, nil)
}

// RefreshUserPlatform refreshes a single platform for one user.
func (h *PlatformHandler) RefreshUserPlatform(w http.ResponseWriter, req bunrouter.Request) error {
	platform, err := enum.PlatformString(req.Param("platform"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	return h.refreshUser(w, req, []enum.Platform{platform})
}

func (h *PlatformHandler) refreshUser(
	w http.ResponseWriter, req bunrouter.Request, platforms []enum.Platform,
) error {
	opts := updater.Options{
		Force:     req.URL.Query().Get("force") == "true",
		SkipCache: req.URL.Query().Get("skipCache") == "true",
	}

	result, err := h.service.RefreshUser(req.Context(), req.Param("id"), platforms, opts)
	if err != nil {
		if errors.Is(err, types.ErrUserNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return nil
		}

		h.logger.Error("Failed to refresh user", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}

	response := restTypes.RefreshUserResponse{
		UserID:   result.UserID,
		Warnings: result.Warnings,
	}

	for _, outcome := range result.Results {
		entry := restTypes.PlatformOutcome{
			Platform:  outcome.Platform.String(),
			Code:      outcome.Outcome.Code.String(),
			FromCache: outcome.Outcome.FromCache,
		}
		if outcome.Outcome.Err != nil {
			entry.Error = outcome.Outcome.Err.Error()
		}

		response.Results = append(response.Results, entry)
	}

	return bunrouter.JSON(w, response)
}

// RefreshRoom bulk refreshes one platform for every member of a room.
func (h *PlatformHandler) RefreshRoom(w http.ResponseWriter, req bunrouter.Request) error {
	platform, err := enum.PlatformString(req.Param("platform"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	opts := service.BulkOptions{
		Force:     req.URL.Query().Get("force") == "true",
		SkipCache: req.URL.Query().Get("skipCache") == "true",
	}

	result, err := h.service.RefreshRoom(req.Context(), req.Param("id"), platform, opts)
	if err != nil {
		if errors.Is(err, types.ErrRoomNotFound) {
			http.Error(w, "Room not found", http.StatusNotFound)
			return nil
		}

		h.logger.Error("Failed to refresh room",
			zap.String("roomID", req.Param("id")),
			zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}

	return bunrouter.JSON(w, restTypes.RefreshRoomResponse{
		ReportID: result.ReportID,
		Platform: result.Platform.String(),
		Items:    result.Items,
		Summary: restTypes.BulkSummary{
			Total:      result.Summary.Total,
			Processed:  result.Summary.Processed,
			Successful: result.Summary.Successful,
			Failed:     result.Summary.Failed,
			Skipped:    result.Summary.Skipped,
			FromCache:  result.Summary.FromCache,
		},
		ProcessingTimeMS: result.ProcessingTime.Milliseconds(),
	})
}

// InvalidateCache drops a user's cached platform snapshots. The optional
// platform query parameter narrows the drop to one platform.
func (h *PlatformHandler) InvalidateCache(w http.ResponseWriter, req bunrouter.Request) error {
	var platforms []enum.Platform

	if name := req.URL.Query().Get("platform"); name != "" {
		platform, err := enum.PlatformString(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return nil
		}

		platforms = append(platforms, platform)
	}

	userID := req.Param("id")
	invalidated := h.service.InvalidateCache(req.Context(), userID, platforms...)

	return bunrouter.JSON(w, restTypes.InvalidateCacheResponse{
		UserID:      userID,
		Invalidated: invalidated,
	})
}

// GetStats returns aggregate service counters.
func (h *PlatformHandler) GetStats(w http.ResponseWriter, req bunrouter.Request) error {
	return bunrouter.JSON(w, restTypes.StatsResponse{Stats: h.service.Stats()})
}
