package cache

import (
	"context"
	"time"

	"github.com/algoroom/algoroom/internal/database/types"
	"github.com/algoroom/algoroom/internal/database/types/enum"
	"github.com/algoroom/algoroom/internal/setup/config"
	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// KeyPrefix namespaces statistics snapshots in Redis.
// Keys are formatted as "stats:{platform}:{userID}".
const KeyPrefix = "stats:"

// Entry is a cached statistics snapshot. Entries are always replaced
// wholesale, never partially updated.
type Entry struct {
	Stats    types.PlatformStats `json:"stats"`
	CachedAt time.Time           `json:"cachedAt"`
}

// Cache stores the last-fetched normalized stats per (user, platform) with a
// platform-specific TTL. Every operation degrades to a safe default when the
// backing store is unavailable: callers treat the cache as best-effort and a
// cache outage means "always fetch fresh", never a system failure.
type Cache struct {
	client rueidis.Client
	ttls   map[enum.Platform]time.Duration
	logger *zap.Logger
}

// New creates a platform cache on the given Redis client. A nil client yields
// a disabled cache whose operations are all no-ops.
func New(client rueidis.Client, cfg *config.Config, logger *zap.Logger) *Cache {
	ttls := make(map[enum.Platform]time.Duration, len(enum.PlatformValues()))
	for _, platform := range enum.PlatformValues() {
		ttls[platform] = time.Duration(cfg.PlatformFor(platform.String()).CacheTTL) * time.Second
	}

	return &Cache{
		client: client,
		ttls:   ttls,
		logger: logger.Named("platform_cache"),
	}
}

// Enabled reports whether a backing store is configured.
func (c *Cache) Enabled() bool {
	return c.client != nil
}

// TTL returns the configured TTL for a platform.
func (c *Cache) TTL(platform enum.Platform) time.Duration {
	return c.ttls[platform]
}

func key(userID string, platform enum.Platform) string {
	return KeyPrefix + platform.String() + ":" + userID
}

// Get returns the cached entry for (userID, platform), or nil on a miss or
// when the store is unavailable.
func (c *Cache) Get(ctx context.Context, userID string, platform enum.Platform) *Entry {
	if c.client == nil {
		return nil
	}

	data, err := c.client.Do(ctx, c.client.B().Get().Key(key(userID, platform)).Build()).AsBytes()
	if err != nil {
		if !rueidis.IsRedisNil(err) {
			c.logger.Warn("Cache read failed", zap.String("userID", userID), zap.Error(err))
		}

		return nil
	}

	var entry Entry
	if err := sonic.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("Cache entry corrupt, treating as miss",
			zap.String("userID", userID),
			zap.Error(err))

		return nil
	}

	return &entry
}

// Set stores a snapshot for (userID, platform). A non-positive ttl uses the
// platform default. Returns false when the store is unavailable.
func (c *Cache) Set(
	ctx context.Context, userID string, platform enum.Platform, stats types.PlatformStats, ttl time.Duration,
) bool {
	if c.client == nil {
		return false
	}

	if ttl <= 0 {
		ttl = c.ttls[platform]
	}

	data, err := sonic.Marshal(Entry{Stats: stats, CachedAt: time.Now()})
	if err != nil {
		c.logger.Error("Failed to marshal cache entry", zap.Error(err))
		return false
	}

	err = c.client.Do(ctx, c.client.B().Set().
		Key(key(userID, platform)).
		Value(string(data)).
		Ex(ttl).
		Build()).Error()
	if err != nil {
		c.logger.Warn("Cache write failed", zap.String("userID", userID), zap.Error(err))
		return false
	}

	return true
}

// GetBulk returns cached entries for all hit userIDs on one platform. Misses
// are simply absent from the result; an unavailable store yields an empty map.
func (c *Cache) GetBulk(
	ctx context.Context, userIDs []string, platform enum.Platform,
) map[string]*Entry {
	entries := make(map[string]*Entry, len(userIDs))
	if c.client == nil || len(userIDs) == 0 {
		return entries
	}

	cmds := make(rueidis.Commands, len(userIDs))
	for i, userID := range userIDs {
		cmds[i] = c.client.B().Get().Key(key(userID, platform)).Build()
	}

	for i, resp := range c.client.DoMulti(ctx, cmds...) {
		data, err := resp.AsBytes()
		if err != nil {
			if !rueidis.IsRedisNil(err) {
				c.logger.Warn("Bulk cache read failed",
					zap.String("userID", userIDs[i]),
					zap.Error(err))
			}

			continue
		}

		var entry Entry
		if err := sonic.Unmarshal(data, &entry); err != nil {
			continue
		}

		entries[userIDs[i]] = &entry
	}

	return entries
}

// SetBulk stores snapshots for many users on one platform. Returns false when
// the store is unavailable or any write failed.
func (c *Cache) SetBulk(
	ctx context.Context, stats map[string]types.PlatformStats, platform enum.Platform, ttl time.Duration,
) bool {
	if c.client == nil || len(stats) == 0 {
		return false
	}

	if ttl <= 0 {
		ttl = c.ttls[platform]
	}

	now := time.Now()
	cmds := make(rueidis.Commands, 0, len(stats))

	for userID, snapshot := range stats {
		data, err := sonic.Marshal(Entry{Stats: snapshot, CachedAt: now})
		if err != nil {
			c.logger.Error("Failed to marshal cache entry", zap.Error(err))
			continue
		}

		cmds = append(cmds, c.client.B().Set().
			Key(key(userID, platform)).
			Value(string(data)).
			Ex(ttl).
			Build())
	}

	ok := true
	for _, resp := range c.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			c.logger.Warn("Bulk cache write failed", zap.Error(err))
			ok = false
		}
	}

	return ok
}

// Invalidate drops cached entries for a user. With no platforms given, all
// platforms are invalidated. Returns false when the store is unavailable.
func (c *Cache) Invalidate(ctx context.Context, userID string, platforms ...enum.Platform) bool {
	if c.client == nil {
		return false
	}

	if len(platforms) == 0 {
		platforms = enum.PlatformValues()
	}

	// One DEL per key keeps each command single-slot in cluster mode.
	cmds := make(rueidis.Commands, len(platforms))
	for i, platform := range platforms {
		cmds[i] = c.client.B().Del().Key(key(userID, platform)).Build()
	}

	ok := true
	for _, resp := range c.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			c.logger.Warn("Cache invalidation failed", zap.String("userID", userID), zap.Error(err))
			ok = false
		}
	}

	return ok
}
