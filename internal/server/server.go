// Package server exposes the analysis service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"crypto-analyst/internal/config"
	apperrors "crypto-analyst/internal/errors"
	"crypto-analyst/internal/logging"
	"crypto-analyst/internal/metrics"
	"crypto-analyst/internal/models"
	"crypto-analyst/internal/resilience"
	"crypto-analyst/internal/security"
	"crypto-analyst/internal/service"
)

// Analyzer is the part of the service the HTTP surface needs.
type Analyzer interface {
	PerformCurrencyAnalysis(ctx context.Context, symbol string) (*models.AnalysisResult, error)
	Status(ctx context.Context, symbol string) (*service.Status, error)
	Invalidate(ctx context.Context, symbol string) error
	Breakers() []resilience.CircuitBreakerStats
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status   string                           `json:"status"`
	Time     time.Time                        `json:"time"`
	Breakers []resilience.CircuitBreakerStats `json:"breakers"`
}

// Server wraps an Echo instance.
type Server struct {
	echo     *echo.Echo
	cfg      config.ServerConfig
	analyzer Analyzer
	metrics  *metrics.Recorder
	logger   zerolog.Logger
}

// New builds the server and registers its routes. gatherer backs /metrics.
func New(cfg config.ServerConfig, analyzer Analyzer, rec *metrics.Recorder, gatherer prometheus.Gatherer, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	s := &Server{
		echo:     e,
		cfg:      cfg,
		analyzer: analyzer,
		metrics:  rec,
		logger:   logging.WithComponent(logger, "http"),
	}

	e.Use(middleware.Recover())
	e.Use(s.requestLogging)

	api := e.Group("/api/v1")
	api.GET("/analysis/:symbol", s.getAnalysis)
	api.GET("/analysis/:symbol/status", s.getStatus)
	api.DELETE("/analysis/:symbol", s.deleteAnalysis)

	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("HTTP server listening")
		if err := s.echo.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

func (s *Server) getAnalysis(c echo.Context) error {
	ctx := c.Request().Context()
	symbol := c.Param("symbol")

	if c.QueryParam("force") == "true" {
		if err := s.analyzer.Invalidate(ctx, symbol); err != nil {
			return s.fail(c, err)
		}
	}

	res, err := s.analyzer.PerformCurrencyAnalysis(ctx, symbol)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) getStatus(c echo.Context) error {
	st, err := s.analyzer.Status(c.Request().Context(), c.Param("symbol"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) deleteAnalysis(c echo.Context) error {
	if err := s.analyzer.Invalidate(c.Request().Context(), c.Param("symbol")); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) health(c echo.Context) error {
	breakers := s.analyzer.Breakers()
	if breakers == nil {
		breakers = []resilience.CircuitBreakerStats{}
	}
	status := "ok"
	for _, b := range breakers {
		if b.State == resilience.CircuitOpen {
			status = "degraded"
		}
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: status, Time: time.Now().UTC(), Breakers: breakers})
}

// fail maps pipeline errors onto status codes. Messages are redacted.
func (s *Server) fail(c echo.Context, err error) error {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		security.SafeErr(s.logger.Error(), err).Str("path", c.Path()).Msg("Request failed")
	}
	return c.JSON(status, ErrorResponse{Error: security.Redact(err.Error()), Code: code})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidSymbol):
		return http.StatusBadRequest, "invalid_symbol"
	case errors.Is(err, apperrors.ErrSymbolNotFound):
		return http.StatusNotFound, "symbol_not_found"
	case errors.Is(err, apperrors.ErrInsufficientHistory):
		return http.StatusUnprocessableEntity, "insufficient_history"
	case apperrors.IsDataUnavailable(err):
		return http.StatusBadGateway, "market_data_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) requestLogging(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		req := c.Request()
		status := c.Response().Status
		latency := time.Since(start)
		s.metrics.RecordHTTPRequest(c.Path(), req.Method, status, latency)
		s.logger.Debug().
			Str("method", req.Method).
			Str("path", c.Path()).
			Str("uri", req.RequestURI).
			Int("status", status).
			Dur("latency", latency).
			Msg("HTTP request")
		return nil
	}
}
