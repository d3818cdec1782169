// Package server hosts the HTTP dispatcher for the five RPC
// operations (spec §6), built on Echo v4 the way the teacher's own
// server package wraps it: middleware, route registration, and a
// context-cancellation-driven graceful shutdown.
package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/oceanobs/objstore/internal/config"
	"github.com/oceanobs/objstore/internal/metrics"
	"github.com/oceanobs/objstore/internal/notify"
	"github.com/oceanobs/objstore/internal/workbench"
)

// Server wraps the Echo instance and the workbench/notify dependencies
// its handlers dispatch into.
type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	wb     *workbench.Manager
	events *notify.Manager
	logger *zap.Logger
}

// New creates a configured Echo server with every route registered.
// The logger defaults to a no-op one; call SetLogger to attach the
// process logger built in cmd/objstored.
func New(cfg *config.Config, wb *workbench.Manager, events *notify.Manager) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	s := &Server{echo: e, cfg: cfg, wb: wb, events: events, logger: zap.NewNop()}
	s.registerRoutes()
	return s
}

// SetLogger attaches the structured logger used for lifecycle events.
func (s *Server) SetLogger(logger *zap.Logger) {
	s.logger = logger
}

// Start begins listening for HTTP requests. It blocks until ctx is
// cancelled, then performs a graceful shutdown, letting in-flight
// requests complete.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.cfg.ListenAddr))
		if err := s.echo.Start(s.cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		if s.events != nil {
			s.events.Shutdown()
		}
		return s.echo.Shutdown(context.Background())
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	s.echo.POST("/rpc/push", s.handlePush)
	s.echo.POST("/rpc/pull", s.handlePull)
	s.echo.POST("/rpc/checkout", s.handleCheckout)
	s.echo.POST("/rpc/put_blobs", s.handlePutBlobs)
	s.echo.POST("/rpc/fetch_blobs", s.handleFetchBlobs)

	s.echo.GET("/rpc/subscribeCommits", s.handleSubscribeCommits)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
