// Command pitchlive serves the Famous AI live reply API: rate limiting,
// persona selection, budget tracking and LLM generation behind one HTTP
// surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/famousai/pitchlive/internal/agent"
	"github.com/famousai/pitchlive/internal/auth"
	"github.com/famousai/pitchlive/internal/budget"
	"github.com/famousai/pitchlive/internal/config"
	"github.com/famousai/pitchlive/internal/health"
	"github.com/famousai/pitchlive/internal/live"
	"github.com/famousai/pitchlive/internal/observe"
	"github.com/famousai/pitchlive/internal/ratelimit"
	"github.com/famousai/pitchlive/internal/reply"
	"github.com/famousai/pitchlive/internal/server"
	"github.com/famousai/pitchlive/internal/store"
	"github.com/famousai/pitchlive/pkg/provider/llm"
	"github.com/famousai/pitchlive/pkg/provider/llm/anyllm"
	openaiprovider "github.com/famousai/pitchlive/pkg/provider/llm/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "pitchlive: %v\n", err)
			return 1
		}
		// The service is operable with zero configuration: fallback
		// replies, no persistence, requests rejected until a JWT secret
		// is set.
		cfg = config.Default()
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("pitchlive starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "pitchlive",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Store ─────────────────────────────────────────────────────────────────
	var db *store.Store
	if cfg.Store.PostgresDSN != "" {
		db, err = store.New(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			// Persistence is best effort across the whole pipeline, so a dead
			// database degrades the service instead of stopping it.
			slog.Warn("database unavailable, running without persistence", "err", err)
			db = nil
		} else {
			defer db.Close()
			slog.Info("database connected")
		}
	}

	// ── LLM provider ──────────────────────────────────────────────────────────
	provider, err := buildProvider(cfg.LLM)
	if err != nil {
		slog.Error("failed to create llm provider", "provider", cfg.LLM.Provider, "err", err)
		return 1
	}
	if provider == nil {
		slog.Warn("no llm api key configured, serving local fallback replies")
	} else {
		slog.Info("llm provider created",
			"provider", cfg.LLM.Provider,
			"base_model", cfg.LLM.BaseModel,
			"complex_model", cfg.LLM.ComplexModel,
		)
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	service := reply.NewService(
		ratelimit.New(time.Duration(cfg.Pipeline.CooldownMs)*time.Millisecond, cfg.Pipeline.MaxPerMinute),
		agent.NewSelector(cfg.Pipeline.ActiveAgentSlots),
		budget.New(budget.NewMemoryStore(), cfg.Pipeline.MonthlyBudgetUsd),
		reply.NewGenerator(provider, cfg.LLM.Provider, cfg.LLM.BaseModel, cfg.LLM.ComplexModel, metrics),
		persistenceOf(db),
		metrics,
	)

	// ── HTTP surface ──────────────────────────────────────────────────────────
	var checkers []health.Checker
	if db != nil {
		checkers = append(checkers, health.Ping("database", db.Ping))
	}

	srv := server.New(
		service,
		storeOf(db),
		live.NewHub(),
		auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.ModeratorEmails),
		health.New(checkers...),
		metrics,
	)

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server ready", "listen_addr", cfg.Server.ListenAddr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		slog.Error("server error", "err", err)
		return 1
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildProvider instantiates the configured LLM backend. A missing API key
// yields a nil provider and the generator serves canned fallback replies.
func buildProvider(cfg config.LLMConfig) (llm.Provider, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}

	if cfg.Provider == "openai" {
		var opts []openaiprovider.Option
		if cfg.BaseURL != "" {
			opts = append(opts, openaiprovider.WithBaseURL(cfg.BaseURL))
		}
		return openaiprovider.New(cfg.APIKey, cfg.BaseModel, opts...)
	}

	opts := []anyllmlib.Option{anyllmlib.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
	}
	return anyllm.New(cfg.Provider, cfg.BaseModel, opts...)
}

// persistenceOf converts a possibly-nil store into the pipeline dependency.
// A typed nil inside a non-nil interface would dodge the pipeline's nil
// checks, so the conversion has to happen on the concrete type.
func persistenceOf(db *store.Store) reply.Persistence {
	if db == nil {
		return nil
	}
	return db
}

// storeOf converts a possibly-nil store into the HTTP layer dependency.
func storeOf(db *store.Store) server.Store {
	if db == nil {
		return nil
	}
	return db
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
