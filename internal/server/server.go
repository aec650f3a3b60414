// Package server exposes the admin HTTP API of `sfsync serve`.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bianoble/sfsync/internal/engine"
	"github.com/bianoble/sfsync/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

// Trigger starts passes on demand.
type Trigger interface {
	Trigger() error
	Running() bool
}

// History returns the latest summary per record type.
type History interface {
	Last() []*engine.RunSummary
}

// Server is the admin HTTP server.
type Server struct {
	addr    string
	router  *gin.Engine
	trigger Trigger
	history History
	logger  *slog.Logger
}

// New builds the router. metrics may be nil to omit /metrics.
func New(addr string, trigger Trigger, history History, metrics http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		addr:    addr,
		router:  gin.New(),
		trigger: trigger,
		history: history,
		logger:  logger,
	}
	s.router.Use(gin.Recovery(), s.accessLog())

	s.router.GET("/healthz", s.health)
	if metrics != nil {
		s.router.GET("/metrics", gin.WrapH(metrics))
	}
	runs := s.router.Group("/runs")
	runs.GET("/last", s.lastRuns)
	runs.POST("", s.startRun)

	return s
}

// Handler returns the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("admin server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("admin server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"running": s.trigger.Running(),
	})
}

func (s *Server) lastRuns(c *gin.Context) {
	runs := s.history.Last()
	if runs == nil {
		runs = []*engine.RunSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) startRun(c *gin.Context) {
	err := s.trigger.Trigger()
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	case errors.Is(err, scheduler.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, scheduler.ErrNotStarted):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}
