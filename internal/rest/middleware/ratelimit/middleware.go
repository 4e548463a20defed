package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/algoroom/algoroom/internal/ratelimit"
	"github.com/algoroom/algoroom/internal/rest/middleware/clientip"
	"github.com/algoroom/algoroom/internal/setup/config"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

const (
	errRateLimit  = "rate limit exceeded"
	headerRetryAt = "Retry-After"
)

// Middleware enforces per-client rate limits backed by the shared Redis
// counter store, so limits hold across every process serving the API.
type Middleware struct {
	limiter *ratelimit.Limiter
	config  *config.Config
	logger  *zap.Logger
}

// New creates a new rate limiting middleware.
func New(limiter *ratelimit.Limiter, config *config.Config, logger *zap.Logger) *Middleware {
	return &Middleware{
		limiter: limiter,
		config:  config,
		logger:  logger,
	}
}

// ForClass returns a bunrouter middleware enforcing the named endpoint
// class's limit, keyed per client IP.
func (m *Middleware) ForClass(class string) bunrouter.MiddlewareFunc {
	limit := m.config.RateLimitFor(class)

	return func(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
		return func(w http.ResponseWriter, req bunrouter.Request) error {
			key := fmt.Sprintf("%s:%s", class, clientip.FromContext(req.Context()))
			window := time.Duration(limit.Window) * time.Second

			result := m.limiter.Check(req.Context(), key, limit.Limit, window)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

			if !result.Allowed {
				retryAfter := time.Until(result.Reset).Round(time.Second)
				if retryAfter > 0 {
					w.Header().Set(headerRetryAt, fmt.Sprintf("%.0f", retryAfter.Seconds()))
				}

				m.logger.Debug("Rate limit exceeded",
					zap.String("class", class),
					zap.String("key", key))

				http.Error(w, errRateLimit, http.StatusTooManyRequests)

				return nil
			}

			return next(w, req)
		}
	}
}
