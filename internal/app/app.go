package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"abc-inventory-alerts/internal/alerting"
	"abc-inventory-alerts/internal/config"
	"abc-inventory-alerts/internal/inventory"
	"abc-inventory-alerts/internal/monitor"
	"abc-inventory-alerts/internal/scheduler"
	"abc-inventory-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newSource() inventory.Source {
	return inventory.NewClient(inventory.ClientOptions{
		SearchURL:  a.Config.Inventory.SearchURL,
		UserAgent:  a.Config.Inventory.UserAgent,
		Timeout:    a.Config.Inventory.RequestTimeout,
		MaxResults: a.Config.Monitor.MaxResultsPerKeyword,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Telegram.Enabled {
		cfg := a.Config.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running watch service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; the watch service requires persistence")
	}
	defer closeStore()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Monitor.Interval,
		StartupDelay: a.Config.Monitor.StartupDelay,
		MinGap:       a.Config.Monitor.MinCycleGap,
	}, a.Logger)

	notifier := a.newNotifier()
	if notifier == nil {
		a.Logger.Warn().Msg("telegram not enabled; events will be recorded but not delivered")
	}

	svc := monitor.New(
		a.Config.Monitor,
		sched,
		a.newSource(),
		store, store, store, store,
		notifier,
		a.Logger,
	)

	a.Logger.Info().Msg("starting watch service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watch service terminated with error")
		return err
	}

	a.Logger.Info().Msg("watch service stopped")
	return nil
}

// Migrate applies the database schema.
func (a *App) Migrate(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot migrate")
	}
	defer closeStore()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	a.Logger.Info().Msg("schema up to date")
	return nil
}

// ExportOptions hold parameters for exporting product history.
type ExportOptions struct {
	ProductKey string
	From       *time.Time
	To         *time.Time
	PNGPath    string
	CSVPath    string
	MaxPoints  int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
