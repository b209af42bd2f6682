// Package server exposes the compositor, content, uploads and schedule over
// HTTP for a browser front end.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"tools.zach/dev/wisdomcard/internal/compositor"
	"tools.zach/dev/wisdomcard/internal/content"
	"tools.zach/dev/wisdomcard/internal/logger"
	"tools.zach/dev/wisdomcard/internal/store"
)

// ContentFetcher retrieves content for a topic.
type ContentFetcher interface {
	Fetch(ctx context.Context, topic string, view content.View) (*content.Collection, error)
}

// Options configures [New].
type Options struct {
	Renderer *compositor.Renderer
	// Logo is the branding locator handed to the compositor session.
	Logo    string
	Content ContentFetcher
	Store   *store.Store
	// AllowOrigins lists CORS origins; "*" allows any.
	AllowOrigins []string
	Logger       *slog.Logger
}

// Server routes API requests. One compositor session serves every export,
// so exports are serialized server-wide.
type Server struct {
	engine  *gin.Engine
	session *compositor.Session
	content ContentFetcher
	store   *store.Store
	log     *slog.Logger
}

// New builds the server. ctx bounds the compositor session; cancelling it
// abandons pending asset loads.
func New(ctx context.Context, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		session: compositor.NewSession(ctx, opts.Renderer, opts.Logo),
		content: opts.Content,
		store:   opts.Store,
		log:     log,
	}

	r := gin.New()
	r.Use(gin.CustomRecovery(s.recoverPanic), s.requestLog(), corsMiddleware(opts.AllowOrigins))
	s.routes(r)
	s.engine = r
	return s
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "X-Requested-With"},
		ExposeHeaders: []string{"Content-Disposition", "X-Wisdomcard-Overlay"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
		}
	}
	if !cfg.AllowAllOrigins {
		cfg.AllowOrigins = origins
	}
	if !cfg.AllowAllOrigins && len(origins) == 0 {
		cfg.AllowOrigins = []string{"http://localhost"}
	}
	return cors.New(cfg)
}

func (s *Server) recoverPanic(c *gin.Context, recovered any) {
	logger.Fail(s.log, "handler panicked", "path", c.Request.URL.Path, "panic", fmt.Sprint(recovered))
	c.AbortWithStatusJSON(http.StatusInternalServerError,
		ErrorEnvelope{Error: APIError{Message: "internal error", Code: "internal"}})
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "exporting": s.session.Busy()})
	})

	api := r.Group("/api")
	api.GET("/backgrounds", s.listBackgrounds)
	api.GET("/logo", s.logo)

	api.POST("/content", s.fetchContent)
	api.POST("/text", s.plainText)

	api.POST("/preview", s.preview)
	api.POST("/preview/events", s.previewEvent)
	api.POST("/export", s.export)

	if s.store != nil {
		api.GET("/uploads", s.listUploads)
		api.POST("/uploads", s.addUploads)
		api.DELETE("/uploads/:id", s.deleteUpload)
		r.Static(mediaPrefix, s.store.UploadsDir())

		api.GET("/schedule", s.listSchedule)
		api.POST("/schedule", s.createSchedule)
		api.PUT("/schedule/:id", s.updateSchedule)
		api.DELETE("/schedule/:id", s.deleteSchedule)
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Close ends the compositor session.
func (s *Server) Close() { s.session.Close() }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
