// Package httpapi provides the HTTP status surface for agendad: health,
// pipeline statistics, a manual day trigger, and Prometheus metrics.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agendad/internal/model"
	"github.com/fyrsmithlabs/agendad/internal/pipeline"
)

// Pipeline is the slice of the coordinator the API needs.
type Pipeline interface {
	Stats() pipeline.Stats
	ProcessDay(ctx context.Context, date time.Time) (*model.PipelineResult, error)
}

// Server exposes agendad's status endpoints.
type Server struct {
	echo     *echo.Echo
	pipeline Pipeline
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// Gatherer serves /metrics. Nil falls back to the default registry.
	Gatherer prometheus.Gatherer
}

// NewServer creates the status server.
func NewServer(p Pipeline, logger *zap.Logger, cfg *Config) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 9180}
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:     e,
		pipeline: p,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/stats", s.handleStats)
	v1.POST("/process", s.handleProcess)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ProcessRequest is the request body for POST /api/v1/process.
type ProcessRequest struct {
	// Date in 2006-01-02 form. Empty means today.
	Date string `json:"date"`
}

// ProcessResponse summarizes one manually triggered day.
type ProcessResponse struct {
	Day      string `json:"day"`
	Events   int    `json:"events"`
	Tasks    int    `json:"tasks"`
	Rejected int    `json:"rejected"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.pipeline.Stats())
}

// handleProcess runs one day through the pipeline synchronously.
func (s *Server) handleProcess(c echo.Context) error {
	var req ProcessRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid process request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	date := time.Now()
	if req.Date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		date = parsed
	}

	result, err := s.pipeline.ProcessDay(c.Request().Context(), date)
	if err != nil {
		s.logger.Error("manual day processing failed", zap.String("day", model.DayKey(date)), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "day processing failed")
	}

	return c.JSON(http.StatusOK, ProcessResponse{
		Day:      model.DayKey(date),
		Events:   len(result.Events),
		Tasks:    len(result.Tasks),
		Rejected: len(result.Rejected),
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
