package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/backworld/backworld-server/internal/auth"
	"github.com/backworld/backworld-server/internal/config"
	"github.com/backworld/backworld-server/internal/core"
	"github.com/backworld/backworld-server/internal/store"
)

// NewServer builds the HTTP server: the realtime websocket endpoint,
// the REST API and a health probe.
func NewServer(cfg config.Config, hub *core.Hub, reconciler *core.Reconciler, st store.Store, authService *auth.Service, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(stdhttp.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/ws", gin.WrapH(NewWSHandler(hub, logger)))

	apiHandlers := NewAPIHandlers(authService, st, logger)
	roomHandlers := NewRoomHandlers(st, reconciler, hub, logger)
	userHandlers := NewUserHandlers(st, logger)
	statsHandlers := NewStatsHandlers(st, logger)
	worldHandlers := NewWorldHandlers(st, logger)

	authRequired := AuthMiddleware(authService, logger)

	api := router.Group("/api")
	{
		api.POST("/register", apiHandlers.Register)
		api.POST("/login", apiHandlers.Login)
		api.POST("/guest", apiHandlers.Guest)
		api.GET("/verify", authRequired, apiHandlers.Verify)

		api.GET("/rooms", roomHandlers.List)
		api.GET("/rooms/:id", roomHandlers.Get)
		api.POST("/rooms", authRequired, roomHandlers.Create)

		api.GET("/users", userHandlers.List)
		api.GET("/users/online", userHandlers.Online)

		api.GET("/stats/top", statsHandlers.Top)
		api.GET("/stats/:username", statsHandlers.ByUsername)

		api.GET("/worlds", worldHandlers.List)
		api.GET("/worlds/search", worldHandlers.Search)
		api.GET("/worlds/:id", worldHandlers.Get)
		api.POST("/worlds", authRequired, worldHandlers.Create)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
