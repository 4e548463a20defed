package rest

import (
	"net/http"

	"github.com/algoroom/algoroom/internal/database"
	"github.com/algoroom/algoroom/internal/platform/service"
	"github.com/algoroom/algoroom/internal/ratelimit"
	"github.com/algoroom/algoroom/internal/rest/handler"
	"github.com/algoroom/algoroom/internal/rest/middleware/clientip"
	ratelimitmw "github.com/algoroom/algoroom/internal/rest/middleware/ratelimit"
	"github.com/algoroom/algoroom/internal/setup/config"
	"github.com/klauspost/compress/gzhttp"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// Server implements the REST API service.
type Server struct {
	userHandler     *handler.UserHandler
	platformHandler *handler.PlatformHandler
}

// NewServer creates the REST API handler. Rate limits are enforced per
// endpoint class so a burst of room refreshes cannot starve plain reads.
func NewServer(
	db database.Client, svc *service.Service, limiter *ratelimit.Limiter,
	cfg *config.Config, logger *zap.Logger,
) http.Handler {
	server := &Server{
		userHandler:     handler.NewUserHandler(db, logger),
		platformHandler: handler.NewPlatformHandler(svc, logger),
	}

	ipMiddleware := clientip.New(logger)
	rateLimiter := ratelimitmw.New(limiter, cfg, logger)

	router := bunrouter.New()

	router.Use(ipMiddleware.AsRESTMiddleware).WithGroup("/v1", func(g *bunrouter.Group) {
		g.Use(rateLimiter.ForClass(config.RateLimitAPI)).WithGroup("", func(g *bunrouter.Group) {
			g.GET("/users/:id", server.userHandler.GetUser)
			g.GET("/stats", server.platformHandler.GetStats)
			g.DELETE("/users/:id/cache", server.platformHandler.InvalidateCache)
		})

		g.Use(rateLimiter.ForClass(config.RateLimitPlatformRefresh)).WithGroup("", func(g *bunrouter.Group) {
			g.POST("/users/:id/refresh", server.platformHandler.RefreshUser)
			g.POST("/users/:id/platforms/:platform/refresh", server.platformHandler.RefreshUserPlatform)
		})

		g.Use(rateLimiter.ForClass(config.RateLimitRoomOperations)).WithGroup("", func(g *bunrouter.Group) {
			g.POST("/rooms/:id/platforms/:platform/refresh", server.platformHandler.RefreshRoom)
		})
	})

	return gzhttp.GzipHandler(router)
}
