// Package api serves the read-mostly status API: cycle state, processed
// records, outcome history, scheduled tasks and recent logs.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/aiodarr/aiodarr/internal/api/handlers"
	apimw "github.com/aiodarr/aiodarr/internal/api/middleware"
	"github.com/aiodarr/aiodarr/internal/bridge"
	"github.com/aiodarr/aiodarr/internal/health"
	"github.com/aiodarr/aiodarr/internal/history"
	"github.com/aiodarr/aiodarr/internal/logger"
	"github.com/aiodarr/aiodarr/internal/processed"
	"github.com/aiodarr/aiodarr/internal/scheduler"
	"github.com/aiodarr/aiodarr/internal/scheduler/tasks"
)

// CycleStatus exposes the state of the poll cycle.
type CycleStatus interface {
	LastResult() (bridge.CycleResult, bool)
	IsRunning() bool
}

// Options wires the server's data sources. History, Health and Logs are
// optional.
type Options struct {
	Version   string
	Cycles    CycleStatus
	Store     *processed.Store
	Scheduler *scheduler.Scheduler
	History   *history.Service
	Health    *health.Service
	Logs      *logger.Recent
	LogPath   string
}

// Server handles HTTP requests for the status API.
type Server struct {
	echo      *echo.Echo
	logger    zerolog.Logger
	opts      Options
	startTime time.Time
}

// NewServer creates a new API server instance.
func NewServer(opts Options, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		logger:    logger.With().Str("component", "api").Logger(),
		opts:      opts,
		startTime: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(apimw.SecurityHeaders())

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := s.logger.Debug()
			if v.Error != nil {
				event = s.logger.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))

	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{Level: 5}))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group("/api/v1")
	api.GET("/status", s.getStatus)
	api.GET("/cycle", s.getLastCycle)
	api.POST("/cycle", s.runCycle)
	api.GET("/processed", s.listProcessed)
	api.DELETE("/processed/:key", s.forgetProcessed)

	schedulerHandler := handlers.NewSchedulerHandler(s.opts.Scheduler)
	taskGroup := api.Group("/scheduler/tasks")
	taskGroup.GET("", schedulerHandler.ListTasks)
	taskGroup.GET("/:id", schedulerHandler.GetTask)
	taskGroup.POST("/:id/run", schedulerHandler.RunTask)

	if s.opts.History != nil {
		history.NewHandlers(s.opts.History).RegisterRoutes(api.Group("/history"))
	}

	if s.opts.Health != nil {
		api.GET("/health", s.getHealth)
	}

	NewLogsHandlers(s.opts.Logs, s.opts.LogPath).RegisterRoutes(api.Group("/logs"))
}

// Start listens on address until Shutdown is called.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	if err := s.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Version      string               `json:"version"`
	StartTime    time.Time            `json:"startTime"`
	Uptime       string               `json:"uptime"`
	CycleRunning bool                 `json:"cycleRunning"`
	Cooldown     string               `json:"retryCooldown"`
	Processed    processed.Stats      `json:"processed"`
	LastCycle    *CycleSummary        `json:"lastCycle,omitempty"`
	Tasks        []scheduler.TaskInfo `json:"tasks"`
}

// CycleSummary condenses a cycle result to counts per state.
type CycleSummary struct {
	ID            string                `json:"id"`
	Started       time.Time             `json:"started"`
	Duration      string                `json:"duration"`
	Items         int                   `json:"items"`
	States        map[bridge.State]int  `json:"states"`
	LibraryErrors []bridge.LibraryError `json:"libraryErrors,omitempty"`
}

func summarize(r bridge.CycleResult) *CycleSummary {
	states := make(map[bridge.State]int)
	for _, item := range r.Items {
		states[item.State]++
	}
	return &CycleSummary{
		ID:            r.ID,
		Started:       r.Started,
		Duration:      r.Duration.String(),
		Items:         len(r.Items),
		States:        states,
		LibraryErrors: r.LibraryErrors,
	}
}

func (s *Server) getStatus(c echo.Context) error {
	resp := StatusResponse{
		Version:      s.opts.Version,
		StartTime:    s.startTime,
		Uptime:       time.Since(s.startTime).Round(time.Second).String(),
		CycleRunning: s.opts.Cycles.IsRunning(),
		Cooldown:     s.opts.Store.Cooldown().String(),
		Processed:    s.opts.Store.Stats(),
		Tasks:        s.opts.Scheduler.ListTasks(),
	}
	if last, ok := s.opts.Cycles.LastResult(); ok {
		resp.LastCycle = summarize(last)
	}
	return c.JSON(http.StatusOK, resp)
}

// getLastCycle returns the full per-item result of the last cycle.
// GET /api/v1/cycle
func (s *Server) getLastCycle(c echo.Context) error {
	last, ok := s.opts.Cycles.LastResult()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no cycle has completed yet")
	}
	return c.JSON(http.StatusOK, last)
}

// runCycle starts a cycle in the background.
// POST /api/v1/cycle
func (s *Server) runCycle(c echo.Context) error {
	if s.opts.Cycles.IsRunning() {
		return echo.NewHTTPError(http.StatusConflict, bridge.ErrCycleRunning.Error())
	}
	return handlers.NewSchedulerHandler(s.opts.Scheduler).Run(c, tasks.CycleTaskID)
}

// getHealth returns upstream service health.
// GET /api/v1/health
func (s *Server) getHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, s.opts.Health.GetSummary())
}

// ProcessedEntry is a processed record with its next retry time.
type ProcessedEntry struct {
	processed.Record
	RetryAt *time.Time `json:"retryAt,omitempty"`
}

// listProcessed returns every in-memory record.
// GET /api/v1/processed
func (s *Server) listProcessed(c echo.Context) error {
	records := s.opts.Store.Snapshot()
	out := make([]ProcessedEntry, len(records))
	for i, rec := range records {
		out[i] = ProcessedEntry{Record: rec}
		if at, ok := s.opts.Store.RetryAt(rec.Key); ok {
			out[i].RetryAt = &at
		}
	}
	return c.JSON(http.StatusOK, out)
}

// forgetProcessed clears a record so the item is retried next cycle.
// DELETE /api/v1/processed/:key
func (s *Server) forgetProcessed(c echo.Context) error {
	if !s.opts.Store.Forget(c.Param("key")) {
		return echo.NewHTTPError(http.StatusNotFound, "no record for key")
	}
	return c.NoContent(http.StatusNoContent)
}
