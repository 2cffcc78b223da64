// Package core wires the storage, notification log, scheduler and settings
// watcher into one App with a Start/Stop lifecycle. Dashboard surfaces talk
// to the App, never to the pieces directly.
package core

import (
	"context"
	"io"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"wellboard/internal/config"
	"wellboard/internal/eventbus"
	"wellboard/internal/logging"
	"wellboard/internal/notify"
	"wellboard/internal/scheduler"
	"wellboard/internal/settings"
	"wellboard/internal/storage"
)

type App struct {
	cfg *config.Config
	clk clock.Clock

	log     zerolog.Logger
	logC    io.Closer
	bus     eventbus.Bus
	store   storage.Store
	notes   *notify.Log
	sched   *scheduler.Scheduler
	watcher *settings.Watcher

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewApp loads the config file and builds the full component graph.
func NewApp(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	return NewAppWith(cfg, clock.New())
}

// NewAppWith builds an App from an already-loaded config. The clock is
// injectable so the whole graph can run against a mock in tests.
func NewAppWith(cfg *config.Config, clk clock.Clock) (*App, error) {
	log, logC, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()

	scfg, err := cfg.Storage.ToStorage()
	if err != nil {
		logC.Close()
		return nil, err
	}
	store, err := storage.Open(scfg, bus, log.With().Str("comp", "storage").Logger())
	if err != nil {
		logC.Close()
		return nil, err
	}

	notes := notify.NewLog(store, bus, clk, log.With().Str("comp", "notify").Logger(), cfg.Keys.Notifications)
	sched := scheduler.New(clk, notes, bus, log.With().Str("comp", "scheduler").Logger())
	watcher := settings.NewWatcher(store, bus, sched, clk, log.With().Str("comp", "settings").Logger(), cfg.Keys.Settings)

	return &App{
		cfg:     cfg,
		clk:     clk,
		log:     log.With().Str("comp", "app").Logger(),
		logC:    logC,
		bus:     bus,
		store:   store,
		notes:   notes,
		sched:   sched,
		watcher: watcher,
	}, nil
}

// Start loads persisted settings, arms the schedule and launches the
// background watchers. Unreadable or malformed settings fall back to the
// defaults rather than blocking startup.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}

	// Background goroutines outlive the Start call; they stop via Stop.
	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	s, err := settings.Load(ctx, a.store, a.cfg.Keys.Settings)
	if err != nil {
		a.log.Warn().Err(err).Msg("persisted settings unusable; starting with defaults")
		s = settings.Default()
	}
	if err := a.sched.Start(s); err != nil {
		a.log.Warn().Err(err).Msg("persisted settings rejected; starting with defaults")
		if err := a.sched.Start(settings.Default()); err != nil {
			cancel()
			return err
		}
	}

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		if err := a.store.Watch(runCtx); err != nil && runCtx.Err() == nil {
			a.log.Error().Err(err).Msg("store watch stopped")
		}
	}()
	go func() {
		defer a.wg.Done()
		if err := a.watcher.Run(runCtx); err != nil && runCtx.Err() == nil {
			a.log.Error().Err(err).Msg("settings watcher stopped")
		}
	}()

	a.started = true
	a.log.Info().Str("driver", a.cfg.Storage.Driver).Msg("notification core started")
	return nil
}

// Stop cancels the background goroutines, disarms the schedule and releases
// the store. The ctx bounds how long Stop waits for goroutines to drain.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return nil
	}
	a.started = false

	a.cancel()
	a.sched.Cleanup()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn().Msg("shutdown deadline hit before watchers drained")
	}

	err := a.store.Close()
	a.log.Info().Msg("notification core stopped")
	if cerr := a.logC.Close(); err == nil {
		err = cerr
	}
	return err
}

// Bus exposes the event stream (notification appends, schedule fires, store
// changes) for dashboard surfaces that want push updates.
func (a *App) Bus() eventbus.Bus { return a.bus }

func (a *App) ListNotifications(ctx context.Context, unreadOnly bool) ([]notify.Notification, error) {
	return a.notes.List(ctx, unreadOnly)
}

func (a *App) UnreadCount(ctx context.Context) (int, error) {
	return a.notes.UnreadCount(ctx)
}

func (a *App) MarkRead(ctx context.Context, id string) (bool, error) {
	return a.notes.MarkRead(ctx, id)
}

func (a *App) MarkAllRead(ctx context.Context) error {
	return a.notes.MarkAllRead(ctx)
}

func (a *App) DeleteNotification(ctx context.Context, id string) (bool, error) {
	return a.notes.Delete(ctx, id)
}

func (a *App) ClearNotifications(ctx context.Context) error {
	return a.notes.Clear(ctx)
}

// StartScheduler replaces the active schedule with one computed from the
// given settings. It does not persist them; use UpdateSettings for that.
func (a *App) StartScheduler(s settings.Settings) error {
	return a.sched.Start(s)
}

// ScheduleSnapshot reports the currently-armed cadences.
func (a *App) ScheduleSnapshot() scheduler.Snapshot {
	return a.sched.Snapshot()
}

// Settings returns the persisted settings, or the defaults when none are
// stored yet.
func (a *App) Settings(ctx context.Context) (settings.Settings, error) {
	return settings.Load(ctx, a.store, a.cfg.Keys.Settings)
}

// UpdateSettings applies a partial update on top of the persisted settings
// and saves the result. The save publishes a store change, which the watcher
// turns into a debounced reschedule; callers do not reschedule directly.
// Patches producing malformed settings are rejected without saving.
func (a *App) UpdateSettings(ctx context.Context, p settings.Patch) (settings.Settings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cur, err := settings.Load(ctx, a.store, a.cfg.Keys.Settings)
	if err != nil {
		return settings.Settings{}, err
	}
	next := cur.Apply(p)
	if err := next.Validate(); err != nil {
		return settings.Settings{}, err
	}
	if err := settings.Save(ctx, a.store, a.cfg.Keys.Settings, next); err != nil {
		return settings.Settings{}, err
	}
	a.log.Debug().Msg("settings updated")
	return next, nil
}
