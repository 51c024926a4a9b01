// Package app wires configuration into a ready study session: table
// storage, plan cache, text generation providers and the session itself.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/pai-studio/internal/ai"
	"github.com/p-n-ai/pai-studio/internal/api"
	"github.com/p-n-ai/pai-studio/internal/curriculum"
	"github.com/p-n-ai/pai-studio/internal/planner"
	"github.com/p-n-ai/pai-studio/internal/platform/cache"
	"github.com/p-n-ai/pai-studio/internal/platform/config"
	"github.com/p-n-ai/pai-studio/internal/platform/database"
	"github.com/p-n-ai/pai-studio/internal/platform/tables"
	"github.com/p-n-ai/pai-studio/internal/progress"
	"github.com/p-n-ai/pai-studio/internal/scratch"
	"github.com/p-n-ai/pai-studio/internal/session"
)

// App holds the session and the resources it was built from.
type App struct {
	Session *session.Session
	Router  *ai.Router
	Checks  map[string]api.Checker

	closers []func()
}

// Open builds the session described by cfg. Events from the stores go to
// notifier, which may be nil.
func Open(ctx context.Context, cfg *config.Config, notifier progress.Notifier) (*App, error) {
	a := &App{Checks: map[string]api.Checker{}}

	catalog, err := curriculum.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	store, err := a.openStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Router = NewRouter(cfg)
	if a.Router.HasProvider() {
		a.Checks["ai"] = a.Router
	}

	sess, err := session.Open(ctx, session.Config{
		Catalog:   catalog,
		States:    progress.NewStateStore(store, cfg.Storage.StateTable, notifier),
		Ledger:    progress.NewScoreLedger(store, cfg.Storage.ScoresTable, notifier),
		Planner:   planner.New(a.planCache(ctx, cfg)),
		Generator: a.Router,
		Scratch:   scratch.NewStore(cfg.Storage.ScratchDir),
		ExamName:  cfg.Exam.Name,
		ExamDate:  cfg.Exam.Date,
		FanOut:    cfg.AI.FanOutLimit,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Session = sess
	return a, nil
}

// Close releases database and cache connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (tables.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		s, err := tables.NewSQLiteStore(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		a.closers = append(a.closers, func() { _ = s.Close() })
		a.Checks["storage"] = s
		slog.Info("storage ready", "driver", cfg.Storage.Driver, "path", cfg.Storage.SQLitePath)
		return s, nil

	case config.DriverPostgres:
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.Checks["storage"] = db
		s, err := tables.NewPostgresStore(ctx, db.Pool)
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		slog.Info("storage ready", "driver", cfg.Storage.Driver)
		return s, nil

	default:
		slog.Info("storage ready", "driver", config.DriverCSV, "dir", cfg.Storage.DataDir)
		return tables.NewCSVStore(cfg.Storage.DataDir), nil
	}
}

// planCache returns the Redis-backed plan cache when enabled and reachable,
// otherwise an in-process one.
func (a *App) planCache(ctx context.Context, cfg *config.Config) planner.Cache {
	if !cfg.Cache.Enabled {
		return planner.NewMemoryCache()
	}

	c, err := cache.New(ctx, cfg.Cache.URL)
	if err != nil {
		slog.Warn("plan cache unavailable, using memory", "error", err)
		return planner.NewMemoryCache()
	}
	a.closers = append(a.closers, func() { _ = c.Close() })
	a.Checks["cache"] = c
	slog.Info("plan cache connected", "ttl", cfg.Cache.TTL)
	return planner.NewRedisCache(c, cfg.Cache.TTL)
}

// NewRouter registers the configured providers, OpenRouter first, and the
// optional token budget.
func NewRouter(cfg *config.Config) *ai.Router {
	router := ai.NewRouter()

	if key := cfg.AI.OpenRouter.APIKey; key != "" {
		router.Register("openrouter", ai.NewOpenRouterProvider(key,
			ai.WithOpenRouterModel(cfg.AI.OpenRouter.Model),
			ai.WithOpenRouterBaseURL(cfg.AI.OpenRouter.BaseURL),
		))
		slog.Info("AI provider registered", "provider", "openrouter")
	}
	if u := cfg.AI.Ollama.URL; u != "" {
		router.Register("ollama", ai.NewOllamaProvider(u, ai.WithOllamaModel(cfg.AI.Ollama.Model)))
		slog.Info("AI provider registered", "provider", "ollama", "url", u)
	}
	if !router.HasProvider() {
		slog.Warn("no AI provider configured, generated content will be error messages")
	}

	if cfg.AI.TokenBudget > 0 {
		router.UseBudget(ai.NewInMemoryBudget(cfg.AI.TokenBudget))
		slog.Info("AI token budget enabled", "tokens", cfg.AI.TokenBudget)
	}
	return router
}
