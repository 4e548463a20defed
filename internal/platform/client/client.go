package client

import (
	"context"

	"github.com/algoroom/algoroom/internal/database/types"
	"github.com/algoroom/algoroom/internal/database/types/enum"
	"github.com/algoroom/algoroom/internal/setup/config"
	axclient "github.com/jaxron/axonet/pkg/client"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client fetches a user's normalized statistics from one platform.
//
// FetchStats raises an *Error with KindUsernameNotFound when the platform
// confirms the identity does not exist, and KindTransient (or a raw transport
// error) for network, timeout and 5xx conditions. The distinction is
// load-bearing: callers only invalidate identities on confirmed non-existence.
type Client interface {
	// Platform returns the platform this client talks to.
	Platform() enum.Platform
	// FetchStats retrieves the user's full statistics snapshot.
	FetchStats(ctx context.Context, username string) (*types.PlatformStats, error)
	// CheckExists is a lightweight existence probe used by the username
	// validator, cheaper than a full stats fetch where the API allows it.
	CheckExists(ctx context.Context, username string) (bool, error)
}

// base carries the pieces every platform client shares: the middleware-wrapped
// HTTP client and a local politeness pacer in front of the external API. The
// pacer bounds this process's own request rate; it is independent of the
// inbound Redis rate limiter.
type base struct {
	http     *axclient.Client
	pacer    *rate.Limiter
	baseURL  string
	platform enum.Platform
	logger   *zap.Logger
}

func newBase(
	httpClient *axclient.Client, cfg config.Platform, platform enum.Platform, logger *zap.Logger,
) base {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	return base{
		http:     httpClient,
		pacer:    rate.NewLimiter(rate.Limit(rps), 1),
		baseURL:  cfg.BaseURL,
		platform: platform,
		logger:   logger.Named(platform.String()),
	}
}

// Platform returns the platform this client talks to.
func (b *base) Platform() enum.Platform {
	return b.platform
}

// wait blocks until the local pacer grants a slot or the context is cancelled.
func (b *base) wait(ctx context.Context) error {
	return b.pacer.Wait(ctx)
}

// classifyStatus maps a non-2xx HTTP status to a platform error.
func (b *base) classifyStatus(statusCode int, message string) *Error {
	switch {
	case statusCode == 404:
		return newError(b.platform, KindUsernameNotFound, statusCode, message)
	case statusCode == 429:
		return newError(b.platform, KindRateLimited, statusCode, message)
	default:
		return newError(b.platform, KindTransient, statusCode, message)
	}
}

// New constructs the client for the given platform.
func New(
	platform enum.Platform, httpClient *axclient.Client, cfg config.Platform, logger *zap.Logger,
) Client {
	switch platform {
	case enum.PlatformLeetCode:
		return NewLeetCode(httpClient, cfg, logger)
	case enum.PlatformGitHub:
		return NewGitHub(httpClient, cfg, logger)
	case enum.PlatformCodeforces:
		return NewCodeforces(httpClient, cfg, logger)
	default:
		return nil
	}
}
