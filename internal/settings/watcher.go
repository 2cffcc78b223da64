package settings

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"wellboard/internal/eventbus"
	"wellboard/internal/storage"
)

// debounceDelay collapses a burst of change events into a single reschedule
// carrying the final settings value.
const debounceDelay = 250 * time.Millisecond

// rescheduleRetryDelay is used when the rate limiter defers a reload.
const rescheduleRetryDelay = time.Second

// Rescheduler is the scheduler surface the watcher drives.
type Rescheduler interface {
	Reschedule(s Settings) error
}

// Watcher turns store change events for the settings key into debounced
// Reschedule calls. Changes may originate in-process (UpdateSettings) or from
// another process via the store's own watch.
type Watcher struct {
	store storage.Store
	bus   eventbus.Bus
	sched Rescheduler
	clk   clock.Clock
	log   zerolog.Logger
	key   string

	// limiter guards against timer churn if something rewrites the settings
	// key in a tight loop. Deferred reloads are retried, never dropped.
	limiter *rate.Limiter

	mu    sync.Mutex
	timer *clock.Timer
}

func NewWatcher(st storage.Store, bus eventbus.Bus, sched Rescheduler, clk clock.Clock, log zerolog.Logger, key string) *Watcher {
	if key == "" {
		key = DefaultKey
	}
	return &Watcher{
		store:   st,
		bus:     bus,
		sched:   sched,
		clk:     clk,
		log:     log,
		key:     key,
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
	}
}

// Run consumes bus events until ctx is done. It is meant to run on its own
// goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	ch, unsub := w.bus.Subscribe(16)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
				w.timer = nil
			}
			w.mu.Unlock()
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if ev.Type != storage.EventChanged {
				continue
			}
			if c, ok := ev.Data.(storage.Change); ok && c.Key == w.key {
				w.debounce(debounceDelay)
			}
		}
	}
}

func (w *Watcher) debounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.log.Debug().Str("key", w.key).Msg("settings change detected; scheduling reload")
	w.timer = w.clk.AfterFunc(d, w.reload)
}

func (w *Watcher) reload() {
	if !w.limiter.Allow() {
		w.log.Warn().Msg("settings reload rate limited; retrying")
		w.debounce(rescheduleRetryDelay)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := Load(ctx, w.store, w.key)
	if err != nil {
		w.log.Warn().Err(err).Msg("settings reload failed; keeping current schedule")
		return
	}
	if err := s.Validate(); err != nil {
		w.log.Warn().Err(err).Msg("settings rejected; keeping current schedule")
		return
	}
	if err := w.sched.Reschedule(s); err != nil {
		w.log.Warn().Err(err).Msg("reschedule failed")
		return
	}
	w.log.Debug().Msg("schedule updated from settings change")
}
