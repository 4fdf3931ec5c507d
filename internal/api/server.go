package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fleetwatch/fleetwatch/internal/config"
	"github.com/fleetwatch/fleetwatch/internal/services"
)

// Server wraps the HTTP API and its lifecycle helpers.
type Server struct {
	logger *slog.Logger
	engine *gin.Engine
	http   *http.Server
}

// NewServer constructs the HTTP server and wires all routes.
func NewServer(cfg config.ServerConfig, logger *slog.Logger, assistant *services.Assistant) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	h := &handlers{assistant: assistant}
	engine.GET("/healthz", h.health)

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/ask", h.ask)
		v1.POST("/refresh", h.refresh)
		v1.GET("/status", h.status)
		v1.GET("/services", h.listServices)
		v1.GET("/services/:name", h.getService)
	}

	return &Server{
		logger: logger,
		engine: engine,
		http: &http.Server{
			Addr:              cfg.Address,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves requests until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", slog.String("address", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)))
	}
}
