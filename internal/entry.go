// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/kwcat/internal/aicat"
	"github.com/starford/kwcat/internal/api"
	"github.com/starford/kwcat/internal/categorize"
	"github.com/starford/kwcat/internal/fallback"
	"github.com/starford/kwcat/internal/mcpserver"
	"github.com/starford/kwcat/internal/metrics"
	"github.com/starford/kwcat/internal/persist"
	"github.com/starford/kwcat/internal/sse"
	"github.com/starford/kwcat/internal/store"
)

// components are the long-lived pieces shared by the HTTP and MCP entry points.
type components struct {
	db       *store.DB
	rules    *fallback.Categorizer
	metrics  *metrics.Metrics
	service  *categorize.Service
	aiActive bool
}

func (a *application) build(logger *slog.Logger, events categorize.Events) (*components, error) {
	cfg := a.config

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	var rules *fallback.RuleSet
	if cfg.Fallback.RulesPath != "" {
		rules, err = fallback.LoadRules(cfg.Fallback.RulesPath)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("load fallback rules: %w", err)
		}
	}
	fb := fallback.New(rules)

	provider := a.provider
	if provider == nil {
		provider = newProvider(cfg.AI)
	}
	var ai categorize.AI
	if provider != nil {
		ai = aicat.New(provider, aicat.Config{
			SampleLimit: cfg.AI.SampleLimit,
			Timeout:     cfg.AI.Timeout,
			Params: aicat.GenerationParams{
				Temperature:     cfg.AI.Temperature,
				MaxOutputTokens: cfg.AI.MaxOutputTokens,
			},
		})
	}

	m := metrics.New(db, logger)
	opts := []categorize.Option{
		categorize.WithLogger(logger),
		categorize.WithMetrics(m),
		categorize.WithSampleLimit(cfg.AI.SampleLimit),
	}
	if events != nil {
		opts = append(opts, categorize.WithEvents(events))
	}
	svc := categorize.NewService(db, ai, fb, persist.New(db, cfg.Persist.BatchSize), opts...)

	return &components{db: db, rules: fb, metrics: m, service: svc, aiActive: ai != nil}, nil
}

// newProvider builds the configured AI provider, or nil when AI is disabled.
func newProvider(c AIConfig) aicat.Provider {
	if !c.Enabled() {
		return nil
	}
	switch c.Provider {
	case ProviderAnthropic:
		return aicat.NewAnthropic(c.APIKey, c.Model, c.Endpoint, c.Timeout)
	default:
		return aicat.NewGemini(c.APIKey, c.Model, c.Endpoint, c.Timeout)
	}
}

func (a *application) init(opts []Option) error {
	for _, opt := range opts {
		opt(a)
	}
	if a.config == nil {
		return fmt.Errorf("config is required")
	}
	if a.version == "" {
		a.version = "dev"
	}
	return nil
}

// newRouter mounts health, metrics and API routes.
func newRouter(cfg *Config, c *components, broker *sse.Broker) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := c.db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", promhttp.HandlerFor(c.metrics.Registry, promhttp.HandlerOpts{}))

	var sseHandler http.Handler
	if broker != nil {
		sseHandler = broker
	}
	r.Mount("/api", api.NewRouter(c.service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, sseHandler, cfg.Persist.ReportActualStatus))
	return r
}

// Run starts the HTTP application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	if err := app.init(opts); err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("ai_provider", cfg.AI.Provider),
		slog.Bool("ai_enabled", cfg.AI.Enabled() || app.provider != nil),
		slog.Int("persist_batch_size", cfg.Persist.BatchSize),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := app.build(logger, broker)
	if err != nil {
		return err
	}
	defer c.db.Close()
	if !c.aiActive {
		logger.Warn("AI categorization disabled, using rule-based categories only")
	}

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newRouter(cfg, c, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Fallback.Watch {
		g.Go(func() error {
			if err := c.rules.Watch(gCtx, cfg.Fallback.RulesPath, logger); err != nil {
				logger.Error("rules watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher exits with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the categorization tools over stdio. Logs go to stderr
// because stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	if err := app.init(opts); err != nil {
		return err
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))

	c, err := app.build(logger, nil)
	if err != nil {
		return err
	}
	defer c.db.Close()

	if cfg.Fallback.Watch {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := c.rules.Watch(watchCtx, cfg.Fallback.RulesPath, logger); err != nil {
				logger.Error("rules watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	logger.Info("Starting MCP server on stdio", slog.String("version", app.version))
	return mcpserver.New(c.service, app.version, logger).ServeStdio()
}
