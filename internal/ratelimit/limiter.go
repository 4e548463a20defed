package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// KeyPrefix namespaces rate limit counters in Redis.
const KeyPrefix = "ratelimit:"

// incrScript atomically increments the window counter, arming the window
// expiry on the first hit. A plain INCR followed by EXPIRE would race under
// concurrent callers and could leave a counter without an expiry.
const incrScript = `
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('EXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('TTL', KEYS[1])
return {count, ttl}
`

// Result reports the outcome of a rate limit check. The limiter never blocks;
// the caller decides whether to reject.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter is a fixed-window counter backed by a shared Redis store, answering
// "is this action allowed now" for arbitrary keys.
type Limiter struct {
	client rueidis.Client
	logger *zap.Logger
}

// New creates a rate limiter on the given Redis client. A nil client yields a
// limiter that always allows, matching the fail-open policy.
func New(client rueidis.Client, logger *zap.Logger) *Limiter {
	return &Limiter{
		client: client,
		logger: logger.Named("ratelimit"),
	}
}

// Check increments the counter for key and reports whether the action is
// within limit for the current window. If the backing store is unreachable the
// check fails open: enforcement is relaxed rather than blocking the feature.
func (l *Limiter) Check(ctx context.Context, key string, limit int, window time.Duration) Result {
	failOpen := Result{
		Allowed:   true,
		Remaining: limit,
		Reset:     time.Now().Add(window),
	}

	if l.client == nil {
		return failOpen
	}

	windowSeconds := int64(window / time.Second)
	if windowSeconds < 1 {
		windowSeconds = 1
	}

	resp := l.client.Do(ctx, l.client.B().Eval().
		Script(incrScript).
		Numkeys(1).
		Key(KeyPrefix+key).
		Arg(strconv.FormatInt(windowSeconds, 10)).
		Build())

	vals, err := resp.AsIntSlice()
	if err != nil || len(vals) != 2 {
		l.logger.Warn("Rate limit store unavailable, failing open",
			zap.String("key", key),
			zap.Error(err))

		return failOpen
	}

	count := int(vals[0])

	ttl := time.Duration(vals[1]) * time.Second
	if ttl < 0 {
		ttl = window
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   count <= limit,
		Remaining: remaining,
		Reset:     time.Now().Add(ttl),
	}
}
