// Package app wires the autotrade worker: the selection reconciler, plan
// materializer, trigger dispatcher and queue maintainer running as one
// sequential cycle over a shared database.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"autotrade-worker/cache"
	"autotrade-worker/config"
	"autotrade-worker/database"
	"autotrade-worker/engine"
	"autotrade-worker/notifications"
	"autotrade-worker/pricefeed"
)

// App represents the main application
type App struct {
	config *config.Config
	log    zerolog.Logger
	once   bool

	db     *database.Database
	redis  *cache.RedisClient
	repo   *database.AutoTradeRepository
	worker *Worker
}

// New creates a new application instance. once limits the run to a single
// cycle, for cron-style deployments.
func New(cfg *config.Config, once bool, logger zerolog.Logger) *App {
	return &App{
		config: cfg,
		log:    logger.With().Str("component", "app").Logger(),
		once:   once,
	}
}

// Start connects the backing services, wires the cycle stages and runs
// until a shutdown signal arrives (or one cycle completes in once mode).
func (a *App) Start() error {
	if !a.config.Autotrade.Enabled {
		a.log.Info().Msg("autotrade disabled, nothing to do")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Database connection
	db, err := database.Connect(
		a.config.DatabaseHost,
		a.config.DatabasePort,
		a.config.DatabaseName,
		a.config.DatabaseUser,
		a.config.DatabasePassword,
	)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	a.db = db
	defer a.db.Close()
	if err := a.db.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	a.log.Info().Str("host", a.config.DatabaseHost).Msg("database connected")

	// 2. Redis connection (optional, quote caching only)
	a.redis = cache.NewRedisClient(
		a.config.RedisHost,
		a.config.RedisPort,
		a.config.RedisPassword,
		a.log,
	)
	if a.redis != nil {
		defer a.redis.Close()
	}

	// 3. Schema migration for the worker-owned tables
	a.repo = database.NewAutoTradeRepository(a.db)
	if err := a.repo.InitSchema(); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	// 4. Stage wiring
	if a.config.Autotrade.SendEnabled && !a.config.CredentialsResolved() {
		return fmt.Errorf("send enabled but relay credentials are unresolved")
	}

	quoteCache := cache.NewQuoteCache(a.redis, a.config.PriceFeed.QuoteCacheTTL)
	prices := pricefeed.NewClient(quoteCache, a.config.PriceFeed.BrokerQuoteURL, a.log)
	engineClient := engine.NewClient(a.config.Engine.URL, a.log)

	var notifier MessageNotifier
	n := notifications.NewNotifier(
		a.config.Notify.DiscordWebhookURL,
		a.config.Notify.TelegramToken,
		a.config.Notify.TelegramChatID,
		a.log,
	)
	if n.Enabled() {
		notifier = n
	}

	autoCfg := a.config.Autotrade
	selector := NewSelector(a.repo.Market, a.log)
	reconciler := NewReconciler(a.repo.Watchlist, a.repo.Market, selector, autoCfg, a.log)
	planner := NewPlanner(a.repo.Plans, a.repo.Queue, a.repo.Watchlist, a.repo.Market, a.repo, engineClient, autoCfg, a.log)
	dispatcher := NewDispatcher(a.repo.Queue, prices, notifier, autoCfg, a.log)
	maintainer := NewMaintainer(a.repo.Queue, a.repo.Market, autoCfg, a.log)
	a.worker = NewWorker(reconciler, planner, dispatcher, maintainer, autoCfg, a.log)

	a.log.Info().
		Bool("send_enabled", autoCfg.SendEnabled).
		Dur("poll_interval", autoCfg.PollInterval).
		Bool("once", a.once).
		Msg("autotrade worker starting")

	if a.once {
		return a.worker.RunCycle(ctx)
	}

	// 5. Run until shutdown signal
	done := make(chan struct{})
	go func() {
		a.worker.Run(ctx)
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		a.log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case <-done:
		return nil
	}

	cancel()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		a.log.Warn().Msg("shutdown timed out, exiting")
	}
	return nil
}

// ShowRecentEvents prints the newest dispatch events and returns. Operator
// tooling for auditing what the worker delivered and when.
func (a *App) ShowRecentEvents(limit int) error {
	db, err := database.Connect(
		a.config.DatabaseHost,
		a.config.DatabasePort,
		a.config.DatabaseName,
		a.config.DatabaseUser,
		a.config.DatabasePassword,
	)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	repo := database.NewAutoTradeRepository(db)
	events, err := repo.Queue.ListEvents(limit)
	if err != nil {
		return err
	}
	for _, e := range events {
		evt := a.log.Info().
			Time("ts", e.Ts).
			Str("cycle", e.CycleID).
			Str("asof", e.AsofDate).
			Str("code", e.Code).
			Str("side", string(e.Side)).
			Str("status", string(e.Status))
		if e.HTTPStatus != nil {
			evt = evt.Int("http_status", *e.HTTPStatus)
		}
		if e.ErrorText != "" {
			evt = evt.Str("error", e.ErrorText)
		}
		evt.Msg("dispatch event")
	}
	if len(events) == 0 {
		a.log.Info().Msg("no dispatch events recorded")
	}
	return nil
}
