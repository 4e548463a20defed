package client

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/algoroom/algoroom/internal/database/types"
	"github.com/algoroom/algoroom/internal/database/types/enum"
	"github.com/algoroom/algoroom/internal/setup/config"
	"github.com/bytedance/sonic"
	axclient "github.com/jaxron/axonet/pkg/client"
	"go.uber.org/zap"
)

// GitHub fetches account statistics through the public REST API.
type GitHub struct {
	base
}

// NewGitHub creates a GitHub client.
func NewGitHub(httpClient *axclient.Client, cfg config.Platform, logger *zap.Logger) *GitHub {
	return &GitHub{
		base: newBase(httpClient, cfg, enum.PlatformGitHub, logger),
	}
}

type gitHubUser struct {
	Login       string `json:"login"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
}

// FetchStats retrieves repository and follower counts for the username.
func (c *GitHub) FetchStats(ctx context.Context, username string) (*types.PlatformStats, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.http.NewRequest().
		Method(http.MethodGet).
		URL(c.baseURL + "/users/" + username).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// GitHub reports exhausted quota as 403 with an x-ratelimit-remaining
		// of zero, not only as 429.
		if resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-Ratelimit-Remaining") == "0" {
			return nil, newError(c.platform, KindRateLimited, resp.StatusCode, "api quota exhausted")
		}

		return nil, c.classifyStatus(resp.StatusCode, "user lookup rejected")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("github response read failed: %w", err)
	}

	var result gitHubUser
	if err := sonic.Unmarshal(body, &result); err != nil {
		return nil, newError(c.platform, KindInvalidResponse, resp.StatusCode, err.Error())
	}

	stats := &types.PlatformStats{
		PublicRepos: result.PublicRepos,
		Followers:   result.Followers,
		Following:   result.Following,
	}

	c.logger.Debug("Fetched GitHub stats",
		zap.String("username", username),
		zap.Int("publicRepos", stats.PublicRepos))

	return stats, nil
}

// CheckExists probes the username with a HEAD request, avoiding the response
// body entirely.
func (c *GitHub) CheckExists(ctx context.Context, username string) (bool, error) {
	if err := c.wait(ctx); err != nil {
		return false, err
	}

	resp, err := c.http.NewRequest().
		Method(http.MethodHead).
		URL(c.baseURL + "/users/" + username).
		Do(ctx)
	if err != nil {
		return false, fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, c.classifyStatus(resp.StatusCode, "existence probe rejected")
	}
}
