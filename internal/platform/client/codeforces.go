package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/algoroom/algoroom/internal/database/types"
	"github.com/algoroom/algoroom/internal/database/types/enum"
	"github.com/algoroom/algoroom/internal/setup/config"
	"github.com/bytedance/sonic"
	axclient "github.com/jaxron/axonet/pkg/client"
	"go.uber.org/zap"
)

// Codeforces fetches contest ratings through the public REST API.
type Codeforces struct {
	base
}

// NewCodeforces creates a Codeforces client.
func NewCodeforces(httpClient *axclient.Client, cfg config.Platform, logger *zap.Logger) *Codeforces {
	return &Codeforces{
		base: newBase(httpClient, cfg, enum.PlatformCodeforces, logger),
	}
}

type codeforcesResponse struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
	Result  []struct {
		Handle    string `json:"handle"`
		Rating    int    `json:"rating"`
		MaxRating int    `json:"maxRating"`
		Rank      string `json:"rank"`
	} `json:"result"`
}

// FetchStats retrieves the current and peak contest rating for the handle.
func (c *Codeforces) FetchStats(ctx context.Context, username string) (*types.PlatformStats, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.http.NewRequest().
		Method(http.MethodGet).
		URL(c.baseURL+"/api/user.info").
		Query("handles", username).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("codeforces request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("codeforces response read failed: %w", err)
	}

	// Codeforces answers 400 with a FAILED envelope for unknown handles, so
	// the body must be inspected before the status code.
	var result codeforcesResponse
	if err := sonic.Unmarshal(body, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, c.classifyStatus(resp.StatusCode, "user.info rejected")
		}

		return nil, newError(c.platform, KindInvalidResponse, resp.StatusCode, err.Error())
	}

	if result.Status != "OK" {
		if strings.Contains(result.Comment, "not found") {
			return nil, newError(c.platform, KindUsernameNotFound, resp.StatusCode, username)
		}

		return nil, c.classifyStatus(resp.StatusCode, result.Comment)
	}

	if len(result.Result) == 0 {
		return nil, newError(c.platform, KindInvalidResponse, resp.StatusCode, "empty result set")
	}

	info := result.Result[0]
	stats := &types.PlatformStats{
		Rating:    info.Rating,
		MaxRating: info.MaxRating,
		Rank:      info.Rank,
	}

	c.logger.Debug("Fetched Codeforces stats",
		zap.String("handle", username),
		zap.Int("rating", stats.Rating))

	return stats, nil
}

// CheckExists probes the handle through user.info. Unrated accounts still
// resolve, so a FAILED envelope is the only non-existence signal.
func (c *Codeforces) CheckExists(ctx context.Context, username string) (bool, error) {
	_, err := c.FetchStats(ctx, username)
	if IsUsernameNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}
