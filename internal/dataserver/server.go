package dataserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forgevtt/forgesync/internal/datastore"
	"github.com/forgevtt/forgesync/internal/version"
)

// Server exposes the local asset mirror over HTTP so other tools on
// the host (the game server, preview UIs) can browse and read the
// synchronized files without touching the filesystem layout directly.
type Server struct {
	config   Config
	store    datastore.Store
	engine   *gin.Engine
	server   *http.Server
	listener net.Listener
}

func New(config Config, store datastore.Store) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(
		gin.Recovery(),
		requestLogger(),
	)

	s := &Server{
		config: config,
		store:  store,
		engine: engine,
	}
	s.registerRoutes()
	return s
}

// Start serves until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		slog.Info("data server is disabled")
		return nil
	}

	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if s.config.RequestTimeout > 0 {
		s.server.ReadTimeout = s.config.RequestTimeout
		s.server.WriteTimeout = s.config.RequestTimeout
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	slog.Info("starting data server", "address", listener.Addr().String())

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("data server error", "error", err)
		}
	}()

	<-ctx.Done()
	return s.Stop()
}

// Addr returns the bound address, valid after Start listened.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	slog.Info("stopping data server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop data server: %w", err)
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": version.Version,
		})
	})

	v1 := s.engine.Group("/v1")
	v1.GET("/browse", s.handleBrowse)
	v1.POST("/dirs", s.handleCreateDir)
	v1.GET("/etag/*path", s.handleEtag)
	v1.GET("/files/*path", s.handleDownload)
	v1.PUT("/files/*path", s.handleUpload)
}

// requestLogger logs one line per request in the structured log.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"clientIP", c.ClientIP(),
		)
	}
}
