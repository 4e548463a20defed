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

// profileQuery fetches the public profile and accepted-submission counts for
// one username in a single round trip.
const profileQuery = `
query userPublicProfile($username: String!) {
  matchedUser(username: $username) {
    username
    profile { ranking }
    submitStatsGlobal {
      acSubmissionNum { difficulty count }
    }
  }
}`

// LeetCode fetches solve counts through the public GraphQL endpoint.
type LeetCode struct {
	base
}

// NewLeetCode creates a LeetCode client.
func NewLeetCode(httpClient *axclient.Client, cfg config.Platform, logger *zap.Logger) *LeetCode {
	return &LeetCode{
		base: newBase(httpClient, cfg, enum.PlatformLeetCode, logger),
	}
}

type leetCodeRequest struct {
	Query     string            `json:"query"`
	Variables map[string]string `json:"variables"`
}

type leetCodeResponse struct {
	Data struct {
		MatchedUser *struct {
			Username string `json:"username"`
			Profile  struct {
				Ranking int `json:"ranking"`
			} `json:"profile"`
			SubmitStatsGlobal struct {
				ACSubmissionNum []struct {
					Difficulty string `json:"difficulty"`
					Count      int    `json:"count"`
				} `json:"acSubmissionNum"`
			} `json:"submitStatsGlobal"`
		} `json:"matchedUser"`
	} `json:"data"`
}

// FetchStats retrieves solve counts and ranking for the username.
func (c *LeetCode) FetchStats(ctx context.Context, username string) (*types.PlatformStats, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.http.NewRequest().
		Method(http.MethodPost).
		URL(c.baseURL+"/graphql").
		MarshalBody(leetCodeRequest{
			Query:     profileQuery,
			Variables: map[string]string{"username": username},
		}).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("leetcode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.classifyStatus(resp.StatusCode, "graphql request rejected")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("leetcode response read failed: %w", err)
	}

	var result leetCodeResponse
	if err := sonic.Unmarshal(body, &result); err != nil {
		return nil, newError(c.platform, KindInvalidResponse, resp.StatusCode, err.Error())
	}

	// A null matchedUser is how the GraphQL API reports an unknown username.
	if result.Data.MatchedUser == nil {
		return nil, newError(c.platform, KindUsernameNotFound, resp.StatusCode, username)
	}

	stats := &types.PlatformStats{
		Ranking: result.Data.MatchedUser.Profile.Ranking,
	}

	for _, entry := range result.Data.MatchedUser.SubmitStatsGlobal.ACSubmissionNum {
		switch entry.Difficulty {
		case "All":
			stats.TotalSolved = entry.Count
		case "Easy":
			stats.EasySolved = entry.Count
		case "Medium":
			stats.MediumSolved = entry.Count
		case "Hard":
			stats.HardSolved = entry.Count
		}
	}

	c.logger.Debug("Fetched LeetCode stats",
		zap.String("username", username),
		zap.Int("totalSolved", stats.TotalSolved))

	return stats, nil
}

// CheckExists probes the username through the same GraphQL query. LeetCode has
// no cheaper public endpoint; the response is small either way.
func (c *LeetCode) CheckExists(ctx context.Context, username string) (bool, error) {
	_, err := c.FetchStats(ctx, username)
	if IsUsernameNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}
