package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"github.com/aiodarr/aiodarr/internal/logger"
)

// LogsHandlers handles log-related HTTP endpoints.
type LogsHandlers struct {
	recent  *logger.Recent
	logPath string
}

// NewLogsHandlers creates a new logs handlers instance. recent may be nil
// and logDir empty.
func NewLogsHandlers(recent *logger.Recent, logDir string) *LogsHandlers {
	h := &LogsHandlers{recent: recent}
	if logDir != "" {
		h.logPath = filepath.Join(logDir, logger.FileName)
	}
	return h
}

// RegisterRoutes registers log routes on the given group.
func (h *LogsHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetRecentLogs)
	g.GET("/download", h.DownloadLogFile)
}

// GetRecentLogs returns buffered entries, optionally filtered by ?level=.
// GET /api/v1/logs
func (h *LogsHandlers) GetRecentLogs(c echo.Context) error {
	if h.recent == nil {
		return c.JSON(http.StatusOK, []logger.Entry{})
	}
	return c.JSON(http.StatusOK, h.recent.Entries(c.QueryParam("level")))
}

// DownloadLogFile serves the current log file for download.
// GET /api/v1/logs/download
func (h *LogsHandlers) DownloadLogFile(c echo.Context) error {
	if h.logPath == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no log file configured")
	}
	if _, err := os.Stat(h.logPath); os.IsNotExist(err) {
		return echo.NewHTTPError(http.StatusNotFound, "log file not found")
	}
	return c.Attachment(h.logPath, logger.FileName)
}
