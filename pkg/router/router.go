package router

import (
	"context"

	"chat-messaging-demo/backend/chat/api"
	"chat-messaging-demo/backend/chat/ws"
	"chat-messaging-demo/backend/pkg/config"
	"chat-messaging-demo/backend/pkg/di"
	"chat-messaging-demo/backend/pkg/errors"
	"chat-messaging-demo/backend/pkg/logger"
	"chat-messaging-demo/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Router is the HTTP entrypoint of the application.
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Hub       *ws.Hub
	Config    *config.Config
}

// New builds the engine, the ambient middleware stack and the
// websocket hub. Call SetupRoutes before serving.
func New(ctx context.Context, container *di.Container) *Router {
	logger.SetGlobal(container.Logger)
	cfg := container.Config

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.Recovery())
	engine.Use(corsMiddleware())

	hub := ws.NewHub(
		container.SendService,
		container.ReactionService,
		container.MessageRepo,
		container.Feed,
		container.Logger,
	)
	go hub.Run(ctx)

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Hub:       hub,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes.
func (r *Router) SetupRoutes() {
	handler := api.NewHandler(
		r.Container.ConversationService,
		r.Container.SendService,
		r.Container.ReactionService,
		r.Container.Resolver,
		r.Container.BlobStore,
		r.Container.Registry,
		r.Logger,
	)

	rateLimiter := middleware.NewRateLimiter(r.Logger, middleware.RateLimiterOptions{
		Limit:          rate.Limit(r.Config.Security.RateLimit),
		Burst:          r.Config.Security.RateLimitBurst,
		ExpiryDuration: middleware.DefaultRateLimiterOptions().ExpiryDuration,
		KeyFunc:        middleware.DefaultRateLimiterOptions().KeyFunc,
	})

	api.RegisterRoutes(r.Engine, handler, r.Hub, rateLimiter)
	r.setupHealthRoutes()
}

// corsMiddleware allows the browser client to reach the API and the
// websocket upgrade from another origin.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, X-Request-ID, Authorization, Origin, Upgrade, Connection, Cache-Control")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Upgrade, Connection")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
