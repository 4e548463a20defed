package client

import (
	"time"

	"github.com/algoroom/algoroom/internal/redis"
	"github.com/algoroom/algoroom/internal/setup/config"
	"github.com/algoroom/algoroom/internal/setup/logger"
	"github.com/bytedance/sonic"
	"github.com/jaxron/axonet/middleware/circuitbreaker"
	axonetRedis "github.com/jaxron/axonet/middleware/redis"
	"github.com/jaxron/axonet/middleware/retry"
	"github.com/jaxron/axonet/middleware/singleflight"
	axclient "github.com/jaxron/axonet/pkg/client"
	"github.com/jaxron/axonet/pkg/client/middleware"
	"go.uber.org/zap"
)

// responseCacheTTL bounds the transport-level response cache. It sits below
// the stats cache and only absorbs identical requests fired close together.
const responseCacheTTL = 5 * time.Minute

// NewHTTPClient constructs the outbound HTTP client with a middleware chain
// for reliability. Middleware order is important; each layer wraps the next.
func NewHTTPClient(
	cfg *config.Config, redisManager *redis.Manager, zapLogger *zap.Logger, requestTimeout time.Duration,
) (*axclient.Client, error) {
	// Transport response caching requires its own Redis database.
	redisClient, err := redisManager.GetClient(redis.CacheDBIndex)
	if err != nil {
		return nil, err
	}

	middlewares := []middleware.Middleware{
		circuitbreaker.New(
			cfg.CircuitBreaker.MaxFailures,
			time.Duration(cfg.CircuitBreaker.FailureThreshold)*time.Millisecond,
			time.Duration(cfg.CircuitBreaker.RecoveryTimeout)*time.Millisecond,
		),
		retry.New(
			cfg.Retry.MaxRetries,
			time.Duration(cfg.Retry.Delay)*time.Millisecond,
			time.Duration(cfg.Retry.MaxDelay)*time.Millisecond,
		),
		singleflight.New(),
		axonetRedis.New(redisClient, responseCacheTTL),
	}

	return axclient.NewClient(
		axclient.WithMarshalFunc(sonic.Marshal),
		axclient.WithUnmarshalFunc(sonic.Unmarshal),
		axclient.WithLogger(logger.NewAxonet(zapLogger)),
		axclient.WithTimeout(requestTimeout),
		axclient.WithMiddleware(middlewares...),
	), nil
}

// NewPlainHTTPClient builds the same client without the Redis-backed response
// cache, used when the cache store is unreachable at startup.
func NewPlainHTTPClient(
	cfg *config.Config, zapLogger *zap.Logger, requestTimeout time.Duration,
) *axclient.Client {
	return axclient.NewClient(
		axclient.WithMarshalFunc(sonic.Marshal),
		axclient.WithUnmarshalFunc(sonic.Unmarshal),
		axclient.WithLogger(logger.NewAxonet(zapLogger)),
		axclient.WithTimeout(requestTimeout),
		axclient.WithMiddleware(
			circuitbreaker.New(
				cfg.CircuitBreaker.MaxFailures,
				time.Duration(cfg.CircuitBreaker.FailureThreshold)*time.Millisecond,
				time.Duration(cfg.CircuitBreaker.RecoveryTimeout)*time.Millisecond,
			),
			retry.New(
				cfg.Retry.MaxRetries,
				time.Duration(cfg.Retry.Delay)*time.Millisecond,
				time.Duration(cfg.Retry.MaxDelay)*time.Millisecond,
			),
			singleflight.New(),
		),
	)
}
