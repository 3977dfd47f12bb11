// Package server exposes the finder over HTTP: an HTML page for people, a
// JSON API for other front-ends, batch uploads, health checks and metrics.
package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pandal-finder/internal/batch"
	"pandal-finder/internal/finder"
)

//go:embed templates/*.html
var templatesFS embed.FS

const sessionName = "pandalsession"

type Options struct {
	Addr          string
	SessionSecret string
	CORSOrigins   []string
	UploadDir     string
}

// Server wires the gin engine to the finder and the batch runner.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	finder     *finder.Finder
	runner     *batch.Runner
	opts       Options
	clock      clockwork.Clock
	startedAt  time.Time
	logger     *slog.Logger
}

func New(opts Options, f *finder.Finder, runner *batch.Runner, clock clockwork.Clock, logger *slog.Logger) (*Server, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"km": func(v float64) string { return fmt.Sprintf("%.2f km", v) },
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.Use(gin.Recovery(), requestID(), accessLog(logger), corsMiddleware(opts.CORSOrigins))

	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{Path: "/", MaxAge: 86400, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))

	s := &Server{
		engine: r,
		httpServer: &http.Server{
			Addr:         opts.Addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		finder:    f,
		runner:    runner,
		opts:      opts,
		clock:     clock,
		startedAt: clock.Now(),
		logger:    logger,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.engine

	r.GET("/", s.handleIndex)
	r.POST("/find", s.handleFind)

	r.GET("/healthz", s.handleHealth)
	r.GET("/readyz", s.handleReady)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.GET("/pandals", s.handleList)
		api.GET("/pandals/nearest", s.handleNearest)
		api.GET("/pandals/nearest.xlsx", s.handleNearestExport)
		api.GET("/pandals/within", s.handleWithin)

		api.POST("/batch", s.handleBatchSubmit)
		api.GET("/batch/:id", s.handleBatchStatus)
		api.GET("/batch/:id/result", s.handleBatchResult)
	}
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func (s *Server) handleHealth(c *gin.Context) {
	ds := s.finder.Dataset()
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"pandals":   ds.Len(),
		"loaded_at": ds.LoadedAt(),
		"uptime":    s.clock.Since(s.startedAt).String(),
	})
}

func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.finder.CheckReadiness(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
