package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/julianstephens/rocky/internal/backup"
	"github.com/julianstephens/rocky/internal/constants"
	"github.com/julianstephens/rocky/internal/lockfile"
	"github.com/julianstephens/rocky/internal/logger"
	"github.com/julianstephens/rocky/internal/storage"
)

const shutdownTimeout = 5 * time.Second

// Options configures the save server.
type Options struct {
	// Listen is the TCP address to bind. Port 0 picks a free port.
	Listen string
	// RateLimit is the number of saves per second allowed per client IP.
	RateLimit int
	// AllowOrigins are the CORS origins.
	AllowOrigins []string
	// BackupCron schedules backups when the store keeps them. Empty disables.
	BackupCron string
	// LockPath is where the port|pid lockfile is written. Empty disables.
	LockPath string
}

// backupStore is implemented by stores that keep rotating file backups.
type backupStore interface {
	Backups() *backup.Manager
}

// Server serves the stored document over HTTP for local clients.
type Server struct {
	echo  *echo.Echo
	store storage.Provider
	opts  Options

	registry *prometheus.Registry
	saves    *prometheus.CounterVec
}

// New builds the echo app around store. The store must already be usable;
// Run does not call Init.
func New(store storage.Provider, opts Options) *Server {
	if opts.Listen == "" {
		opts.Listen = constants.DefaultListenAddr
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = constants.DefaultRateLimit
	}
	if len(opts.AllowOrigins) == 0 {
		opts.AllowOrigins = []string{"*"}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	s := &Server{
		echo:     e,
		store:    store,
		opts:     opts,
		registry: prometheus.NewRegistry(),
	}
	s.setupMetrics()
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", values.Method,
				"uri", values.URI,
				"status", values.Status,
				"latency_ms", float64(values.Latency.Nanoseconds()) / 1e6,
				"remote_ip", values.RemoteIP,
			}
			if values.Error != nil {
				fields = append(fields, "error", values.Error.Error())
				logger.Error("HTTP request failed", fields...)
			} else {
				logger.Info("HTTP request", fields...)
			}
			return nil
		},
	}))

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.opts.AllowOrigins,
		AllowHeaders: []string{echo.HeaderContentType},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))

	s.echo.Use(middleware.RequestID())
}

func (s *Server) setupRoutes() {
	limiter := middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(s.opts.RateLimit),
				Burst:     s.opts.RateLimit,
				ExpiresIn: time.Minute,
			},
		),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		},
	})

	s.echo.GET("/health", s.health)
	s.echo.GET("/api/load", s.load)
	s.echo.POST("/api/save", s.save, limiter)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
}

func (s *Server) setupMetrics() {
	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	s.saves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: constants.AppName + "_saves_total",
			Help: "Documents written through the save endpoint",
		},
		[]string{"result"},
	)
	s.registry.MustRegister(requestsTotal, requestDuration, s.saves)

	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Let the error handler settle the status before recording it.
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			requestsTotal.WithLabelValues(c.Request().Method, path, fmt.Sprintf("%d", c.Response().Status)).Inc()
			requestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	})
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"storage": s.store.Location(),
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) load(c echo.Context) error {
	ctx := c.Request().Context()
	data, err := s.store.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		data = storage.EmptyDocument()
		if err := s.store.Save(ctx, data); err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
	} else if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, data)
}

func (s *Server) save(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		s.saves.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to read body: %w", err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		body = []byte("{}")
	}
	if !json.Valid(body) {
		s.saves.WithLabelValues("invalid").Inc()
		return errors.New("request body is not valid JSON")
	}

	if err := s.store.Save(c.Request().Context(), json.RawMessage(body)); err != nil {
		s.saves.WithLabelValues("error").Inc()
		return err
	}
	s.saves.WithLabelValues("ok").Inc()
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// errorHandler renders every failure as {"error": msg}. Unknown routes and
// wrong methods both report Not Found.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprint(he.Message)
		if code == http.StatusNotFound || code == http.StatusMethodNotAllowed {
			code = http.StatusNotFound
			msg = "Not Found"
		}
	}
	if code >= http.StatusInternalServerError {
		logger.Error("Request failed", "path", c.Request().URL.Path, "error", err)
	}

	if err := c.JSON(code, map[string]string{"error": msg}); err != nil {
		logger.Warn("Failed to write error response", "error", err)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully. The
// lockfile and backup schedule live exactly as long as the listener.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Listen, err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	if s.opts.LockPath != "" {
		if err := lockfile.Write(s.opts.LockPath, port); err != nil {
			ln.Close()
			return err
		}
		defer func() {
			if err := lockfile.Remove(s.opts.LockPath); err != nil {
				logger.Warn("Failed to remove lockfile", "path", s.opts.LockPath, "error", err)
			}
		}()
	}

	scheduler, err := s.startBackups()
	if err != nil {
		ln.Close()
		return err
	}
	if scheduler != nil {
		defer scheduler.Stop()
	}

	s.echo.Listener = ln
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start("")
	}()
	logger.Info("Save server listening", "addr", ln.Addr().String(), "storage", s.store.Location())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	logger.Info("Save server stopped")
	return nil
}

func (s *Server) startBackups() (*cron.Cron, error) {
	if s.opts.BackupCron == "" {
		return nil, nil
	}
	bs, ok := s.store.(backupStore)
	if !ok {
		logger.Debug("Scheduled backups skipped; backend keeps no file backups", "storage", s.store.Location())
		return nil, nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.opts.BackupCron, func() {
		path, err := bs.Backups().CreateBackup()
		if err != nil {
			logger.Warn("Scheduled backup failed", "error", err)
			return
		}
		logger.Info("Scheduled backup created", "path", path)
	}); err != nil {
		return nil, fmt.Errorf("invalid backup schedule %q: %w", s.opts.BackupCron, err)
	}
	c.Start()
	return c, nil
}
