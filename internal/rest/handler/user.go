package handler

import (
	"errors"
	"net/http"

	"github.com/algoroom/algoroom/internal/database"
	"github.com/algoroom/algoroom/internal/database/types"
	"github.com/algoroom/algoroom/internal/database/types/enum"
	restTypes "github.com/algoroom/algoroom/internal/rest/types"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// UserHandler handles user-related REST endpoints.
type UserHandler struct {
	db     database.Client
	logger *zap.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(db database.Client, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		db:     db,
		logger: logger,
	}
}

// GetUser returns a user's platform identities and their mirrored stats.
func (h *UserHandler) GetUser(w http.ResponseWriter, req bunrouter.Request) error {
	user, err := h.db.Users().GetUserByID(req.Context(), req.Param("id"))
	if err != nil {
		if errors.Is(err, types.ErrUserNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return nil
		}

		h.logger.Error("Failed to get user", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}

	response := restTypes.GetUserResponse{
		ID:        user.ID,
		Platforms: make(map[string]restTypes.PlatformIdentity),
	}

	for _, platform := range enum.PlatformValues() {
		identity := user.Identity(platform)
		if !identity.HasUsername() {
			continue
		}

		response.Platforms[platform.String()] = restTypes.PlatformIdentity{
			Username:    identity.Username,
			IsValid:     identity.IsValid,
			LastUpdated: identity.LastUpdated,
			Stats:       identity.Stats,
		}
	}

	return bunrouter.JSON(w, response)
}
