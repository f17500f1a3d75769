// Package app wires the services together and owns their lifecycle.
package app

import (
	"context"

	"github.com/rs/zerolog"

	"visitbot/internal/booking"
	"visitbot/internal/config"
	"visitbot/internal/gateway"
	"visitbot/internal/notify"
	"visitbot/internal/scheduler"
	"visitbot/internal/storage"
	"visitbot/internal/transport/telegram"
)

type App struct {
	cfg *config.Config
	log zerolog.Logger

	store     storage.Store
	adapter   *telegram.Adapter
	scheduler *scheduler.Service
}

// New builds the dependency graph, leaves first: store, chat adapter,
// notifier, gateway client, scheduler, booking coordinator.
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: cfg.Storage.BusyTimeout.Std(),
	}, log.With().Str("component", "storage").Logger())
	if err != nil {
		return nil, err
	}

	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.Telegram.PollTimeout.Std(),
	}, log.With().Str("component", "telegram").Logger())
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	notifier := notify.New(notify.Config{RatePerSec: cfg.Notify.RatePerSec},
		map[string]notify.Sender{"telegram": adapter},
		log.With().Str("component", "notify").Logger())

	gw := gateway.NewClient(gateway.Config{
		BaseURL:    cfg.Gateway.BaseURL,
		Timeout:    cfg.Gateway.Timeout.Std(),
		RatePerSec: cfg.Gateway.RatePerSec,
	}, gateway.StaticSessions(cfg.Gateway.Tokens),
		log.With().Str("component", "gateway").Logger())

	sched := scheduler.New(scheduler.Config{
		Workers:         cfg.Scheduler.Workers,
		QueueSize:       cfg.Scheduler.QueueSize,
		PeriodBase:      cfg.Scheduler.PeriodBase.Std(),
		PeriodJitter:    cfg.Scheduler.PeriodJitter.Std(),
		MaxInitialDelay: cfg.Scheduler.MaxInitialDelay.Std(),
		SweepEvery:      cfg.Scheduler.SweepEvery.Std(),
		MaxPerAccount:   cfg.Scheduler.MaxPerAccount,
	}, store, gw, notifier, log.With().Str("component", "scheduler").Logger())

	// The coordinator retires monitorings through the scheduler so the
	// registry invariant (inactive record => no live job) holds.
	sched.SetBooker(booking.New(gw, notifier, sched,
		log.With().Str("component", "booking").Logger()))

	return &App{cfg: cfg, log: log, store: store, adapter: adapter, scheduler: sched}, nil
}

// Scheduler exposes the monitoring API surface (create, deactivate, list,
// manual booking) to outer layers.
func (a *App) Scheduler() *scheduler.Service { return a.scheduler }

func (a *App) Start(ctx context.Context) error {
	return a.scheduler.Start(ctx)
}

func (a *App) Stop(ctx context.Context) {
	a.scheduler.Stop(ctx)
	a.adapter.Stop()
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("store close failed")
	}
}
