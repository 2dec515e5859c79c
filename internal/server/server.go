// Package server wires the loader, session manager, and websocket
// bridge behind an HTTP API a host front end drives.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hostbridge/hostbridge/internal/client"
	"github.com/hostbridge/hostbridge/internal/config"
	"github.com/hostbridge/hostbridge/internal/host"
	"github.com/hostbridge/hostbridge/internal/loader"
	"github.com/hostbridge/hostbridge/internal/logging"
	"github.com/hostbridge/hostbridge/internal/monitoring"
	"github.com/hostbridge/hostbridge/internal/policy"
	"github.com/hostbridge/hostbridge/internal/session"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	router   *gin.Engine
	sessions *session.Manager
	loader   *loader.Loader
	metrics  *monitoring.Metrics
	cfg      *config.Config
	log      *logging.Logger
	httpSrv  *http.Server
}

// New creates a server instance from configuration.
func New(cfg *config.Config) (*Server, error) {
	log, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics := monitoring.NewMetrics()

	upstream := client.New(client.Options{
		BaseURL:    cfg.Upstream.BaseURL,
		Timeout:    cfg.Upstream.Timeout,
		MaxRetries: cfg.Upstream.MaxRetries,
		Logger:     log,
	})

	cacheSize := cfg.Fragment.CacheSize
	frags := loader.New(loader.Options{
		TTL:          cfg.Fragment.CacheTTL,
		MaxCacheSize: &cacheSize,
		Logger:       log,
		Stats:        metrics,
	})

	caps := host.Capabilities{
		Tools:     upstream,
		Resources: upstream,
	}

	sessions := session.NewManager(session.Config{
		Loader:       frags,
		ReadResource: upstream.ReadResource,
		Capabilities: caps,
		Policy: &policy.Config{
			AllowExternalConnections: cfg.Fragment.AllowExternalConnections,
			AllowedHosts:             cfg.Fragment.AllowedHosts,
		},
		Sanitize:       cfg.Fragment.Sanitize,
		RequestTimeout: cfg.Fragment.RequestTimeout,
		Metrics:        metrics,
		Logger:         log,
	})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	s := &Server{
		router:   router,
		sessions: sessions,
		loader:   frags,
		metrics:  metrics,
		cfg:      cfg,
		log:      log.Named("server"),
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/", s.root)
	s.router.GET("/health", s.health)

	s.router.POST("/sessions", s.openSession)
	s.router.GET("/sessions", s.listSessions)
	s.router.GET("/sessions/:id", s.getSession)
	s.router.GET("/sessions/:id/html", s.sessionHTML)
	s.router.GET("/sessions/:id/ws", s.attachSession)
	s.router.POST("/sessions/:id/tool-result", s.pushToolResult)
	s.router.DELETE("/sessions/:id", s.closeSession)

	s.router.POST("/cache/invalidate", s.invalidateCache)
	s.router.POST("/cache/clear", s.clearCache)

	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		s.metrics.Registry(), promhttp.HandlerOpts{})))
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("apphost listening", zap.String("addr", addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts the server down gracefully and disposes every session.
func (s *Server) Close() error {
	s.sessions.CloseAll()
	if s.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}
