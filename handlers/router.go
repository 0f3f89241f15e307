package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RipinDensumite/thinwatcher/config"
	"github.com/RipinDensumite/thinwatcher/middleware"
	"github.com/RipinDensumite/thinwatcher/services"
	"github.com/RipinDensumite/thinwatcher/utils"
)

// Router wires the HTTP and WebSocket surface onto gin.
type Router struct {
	cfg      *config.Config
	presence *services.PresenceService
	users    *services.UserService
	logger   *utils.Logger
}

func NewRouter(cfg *config.Config, presence *services.PresenceService, users *services.UserService, logger *utils.Logger) *Router {
	return &Router{
		cfg:      cfg,
		presence: presence,
		users:    users,
		logger:   logger,
	}
}

func (r *Router) Engine() *gin.Engine {
	if r.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	clientsHandler := NewClientsHandler(r.presence, r.logger)
	authHandler := NewAuthHandler(r.users, r.cfg.JWTSecret, r.cfg.JWTExpiry, r.logger)
	streamHandler := NewStreamHandler(r.presence, r.cfg.CORSOrigins, r.logger)

	auth := middleware.Auth(r.cfg.JWTSecret)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(r.logger))
	router.Use(middleware.CORS(r.cfg.CORSOrigins))

	router.GET("/health", r.healthCheck)

	// Dashboard event stream
	router.GET("/ws", auth, streamHandler.Serve)

	api := router.Group("/api")
	{
		// Frontend/backend connectivity check
		api.GET("/ctest", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.GET("/profile", auth, authHandler.Profile)
			authRoutes.POST("/logout", auth, authHandler.Logout)
		}

		api.PUT("/users/profile", auth, authHandler.UpdateProfile)

		clients := api.Group("/clients")
		{
			// Agents are network-trusted and report without credentials
			clients.POST("/status", clientsHandler.UpdateStatus)
			clients.GET("/check-client/:clientId", clientsHandler.CheckClient)

			clients.GET("", auth, clientsHandler.ListClients)
			clients.POST("/terminate", auth, clientsHandler.TerminateSession)
			clients.DELETE("/:clientId", auth, middleware.RequireAdmin(), clientsHandler.RemoveClient)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "API route not found"})
	})

	return router
}
