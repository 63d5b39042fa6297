// Package api exposes the signal engine over HTTP: gin routes for scores,
// audits and validation, JWT-protected favorites, and a websocket event
// stream.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"market-signals/config"
	"market-signals/internal/auth"
	"market-signals/internal/database"
	"market-signals/internal/engine"
	"market-signals/internal/events"
)

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	engine      *engine.Engine
	repo        *database.Repository // nil when the database is disabled
	authService *auth.Service        // nil when auth is disabled
	bus         *events.Bus
	hub         *WSHub
	cfg         config.ServerConfig
	logger      zerolog.Logger
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	eng *engine.Engine,
	repo *database.Repository,
	authService *auth.Service,
	bus *events.Bus,
	logger zerolog.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		engine:      eng,
		repo:        repo,
		authService: authService,
		bus:         bus,
		hub:         NewWSHub(logger),
		cfg:         cfg,
		logger:      logger.With().Str("component", "api").Logger(),
	}

	server.setupRoutes()

	// Forward all bus events to websocket clients.
	bus.SubscribeAll(server.hub.BroadcastEvent)

	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.hub.handleWebSocket)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/markets", s.handleMarkets)
		v1.GET("/signal/:symbol", s.handleSignal)
		v1.GET("/audit/:market", s.handleAudit)
		v1.GET("/validation/:market", s.handleValidation)
	}

	if s.authService != nil {
		authGroup := s.router.Group("/api/v1/auth")
		{
			authGroup.POST("/register", s.handleRegister)
			authGroup.POST("/login", s.handleLogin)
		}

		protected := s.router.Group("/api/v1")
		protected.Use(auth.Middleware(s.authService))
		{
			protected.GET("/favorites", s.handleListFavorites)
			protected.POST("/favorites", s.handleAddFavorite)
			protected.DELETE("/favorites/:symbol", s.handleRemoveFavorite)
		}
	}
}

// Start runs the hub and the HTTP server. Blocks until the server exits.
func (s *Server) Start() error {
	go s.hub.Run()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeout) * time.Second,
	}

	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
