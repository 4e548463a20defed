package setup

import (
	"fmt"
	"log"
	"time"

	"github.com/algoroom/algoroom/internal/database"
	"github.com/algoroom/algoroom/internal/database/types/enum"
	"github.com/algoroom/algoroom/internal/platform/cache"
	platformClient "github.com/algoroom/algoroom/internal/platform/client"
	"github.com/algoroom/algoroom/internal/platform/executor"
	"github.com/algoroom/algoroom/internal/platform/service"
	"github.com/algoroom/algoroom/internal/platform/updater"
	"github.com/algoroom/algoroom/internal/ratelimit"
	"github.com/algoroom/algoroom/internal/redis"
	setupClient "github.com/algoroom/algoroom/internal/setup/client"
	"github.com/algoroom/algoroom/internal/setup/config"
	"github.com/algoroom/algoroom/internal/setup/logger"
	"go.uber.org/zap"
)

// App bundles the shared components every process hangs off of.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	DB           database.Client
	RedisManager *redis.Manager
	StatsCache   *cache.Cache
	RateLimiter  *ratelimit.Limiter
	Executor     *executor.Executor
	Clients      map[enum.Platform]platformClient.Client
	Service      *service.Service
}

// InitializeApp performs common setup tasks and returns an App. The stats
// cache and the rate limiter degrade gracefully when Redis is unreachable;
// the database is required.
func InitializeApp() (*App, error) {
	cfg, configFile, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	zapLogger, err := logger.New(cfg.Debug.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if configFile != "" {
		zapLogger.Info("Loaded configuration file", zap.String("path", configFile))
	}

	db, err := database.NewConnection(&cfg.PostgreSQL, zapLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisManager := redis.NewManager(&cfg.Redis, zapLogger)

	// A dead Redis leaves the cache disabled and the limiter failing open
	// rather than taking the whole service down.
	cacheClient, err := redisManager.GetClient(redis.CacheDBIndex)
	if err != nil {
		zapLogger.Warn("Stats cache unavailable, continuing without caching", zap.Error(err))
		cacheClient = nil
	}

	limiterClient, err := redisManager.GetClient(redis.RatelimitDBIndex)
	if err != nil {
		zapLogger.Warn("Rate limit store unavailable, limits fail open", zap.Error(err))
		limiterClient = nil
	}

	requestTimeout := time.Duration(cfg.Server.RequestTimeout) * time.Millisecond

	httpClient, err := setupClient.NewHTTPClient(cfg, redisManager, zapLogger, requestTimeout)
	if err != nil {
		zapLogger.Warn("Transport cache unavailable, building plain HTTP client", zap.Error(err))

		httpClient = setupClient.NewPlainHTTPClient(cfg, zapLogger, requestTimeout)
	}

	statsCache := cache.New(cacheClient, cfg, zapLogger)
	limiter := ratelimit.New(limiterClient, zapLogger)

	exec := executor.New(executor.Limits{
		Platform: cfg.Concurrency.Platform,
		Database: cfg.Concurrency.Database,
		General:  cfg.Concurrency.General,
		External: cfg.Concurrency.External,
	}, zapLogger)

	clients := make(map[enum.Platform]platformClient.Client)
	updaters := make(map[enum.Platform]*updater.Updater)

	for _, platform := range enum.PlatformValues() {
		pcfg := cfg.PlatformFor(platform.String())
		c := platformClient.New(platform, httpClient, pcfg, zapLogger)
		clients[platform] = c
		updaters[platform] = updater.New(
			platform, c, statsCache, db.Users(),
			time.Duration(pcfg.Freshness)*time.Second, zapLogger,
		)
	}

	svc := service.New(db, statsCache, exec, updaters, nil, cfg.Bulk, zapLogger)

	return &App{
		Config:       cfg,
		Logger:       zapLogger,
		DB:           db,
		RedisManager: redisManager,
		StatsCache:   statsCache,
		RateLimiter:  limiter,
		Executor:     exec,
		Clients:      clients,
		Service:      svc,
	}, nil
}

// Cleanup releases shared resources in reverse dependency order.
func (a *App) Cleanup() {
	a.RedisManager.Close()

	if err := a.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	if err := a.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}
}
