// Package http serves the item operations as a JSON API.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/gleaner/pkg/usecase/item"
	"github.com/m-mizutani/gleaner/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Server exposes a UseCase over HTTP
type Server struct {
	uc     *item.UseCase
	engine *gin.Engine
}

// Option is a functional option for Server
type Option func(*Server)

// WithMCP mounts a Model Context Protocol handler at /mcp
func WithMCP(h http.Handler) Option {
	return func(s *Server) {
		s.engine.Any("/mcp", gin.WrapH(h))
	}
}

func New(uc *item.UseCase, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{uc: uc, engine: gin.New()}
	// item ids may be URLs; "%2F" must stay inside :id
	s.engine.UseRawPath = true
	s.engine.Use(gin.Recovery(), accessLog())

	s.engine.GET("/health", s.health)
	s.engine.GET("/enriched", s.listEnrichments)
	s.engine.GET("/enriched/:id", s.getEnrichment)
	s.engine.DELETE("/enriched/:id", s.deleteEnrichment)
	s.engine.POST("/enrich", s.enrich)
	s.engine.POST("/enrich/batch", s.enrichBatch)
	s.engine.POST("/analyze/general", s.analyze)
	s.engine.GET("/analyses", s.listAnalyses)
	s.engine.GET("/analyses/:id", s.getAnalysis)
	s.engine.POST("/fresh", s.checkFresh)

	for _, opt := range opts {
		opt(s)
	}

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, model.Fail(errors.New("endpoint not found")))
	})

	return s
}

// Handler returns the router for use with httptest or another server
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		// requests keep the logger of ctx but outlive its cancellation until Shutdown drains them
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	errCh := make(chan error, 1)
	go func() {
		logging.From(ctx).Info("http server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return goerr.Wrap(err, "failed to serve http", goerr.V("addr", addr))
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return goerr.Wrap(err, "failed to shutdown http server")
	}
	logging.From(ctx).Info("http server stopped")
	return nil
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logging.From(c.Request.Context()).Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(started))
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		logging.From(c.Request.Context()).Error("request failed", "error", err, "path", c.Request.URL.Path)
	}
	c.JSON(code, model.Fail(err))
}
