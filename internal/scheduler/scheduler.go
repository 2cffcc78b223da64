package scheduler

import (
	"context"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"wellboard/internal/eventbus"
	"wellboard/internal/notify"
	"wellboard/internal/settings"
)

// EventFired is published on the bus after a cadence fires, with a TaskInfo
// as the event data.
const EventFired = "schedule.fired"

// appendTimeout bounds each sink call so a stuck store cannot hang the
// cadence forever.
const appendTimeout = 10 * time.Second

// Scheduler owns the in-memory pending-task set. One instance per process;
// the caller constructs and holds exactly one (there is no hidden global).
// Tasks are not persisted: they are recomputed from settings on startup.
type Scheduler struct {
	clk  clock.Clock
	sink Sink
	bus  eventbus.Bus
	log  zerolog.Logger

	mu      sync.Mutex
	pending map[Kind]*pending
	gen     uint64
}

func New(clk clock.Clock, sink Sink, bus eventbus.Bus, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		clk:     clk,
		sink:    sink,
		bus:     bus,
		log:     log,
		pending: map[Kind]*pending{},
	}
}

// Start arms one Pending task per enabled cadence, replacing any existing
// schedule. No notification is appended synchronously.
func (s *Scheduler) Start(cfg settings.Settings) error {
	return s.Reschedule(cfg)
}

// Reschedule is cancel-all followed by arming from the given snapshot. Safe
// to call repeatedly and from concurrent triggers: the surviving schedule
// always reflects the snapshot of the call that finished last, with exactly
// one Pending task per cadence.
//
// Malformed settings are rejected before any timer is touched, leaving the
// previously-active schedule intact.
func (s *Scheduler) Reschedule(cfg settings.Settings) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	plan, err := buildPlan(cfg, s.clk.Now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAllLocked()
	s.gen++
	for _, e := range plan {
		s.armLocked(e.kind, e.fireAt, e.next, e.payload)
	}
	s.log.Info().Int("tasks", len(plan)).Uint64("gen", s.gen).Msg("schedule applied")
	return nil
}

// Cleanup cancels all pending tasks without arming replacements. Used at
// shutdown; Start may be called again afterwards.
func (s *Scheduler) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAllLocked()
	s.gen++
	s.log.Debug().Msg("scheduler cleaned up")
}

// Snapshot returns the current pending tasks ordered by fire time.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Snapshot{Generation: s.gen, Tasks: make([]TaskInfo, 0, len(s.pending))}
	for _, p := range s.pending {
		out.Tasks = append(out.Tasks, TaskInfo{ID: p.id, Kind: p.kind, FireAt: p.fireAt})
	}
	sort.Slice(out.Tasks, func(i, j int) bool {
		if out.Tasks[i].FireAt.Equal(out.Tasks[j].FireAt) {
			return out.Tasks[i].Kind < out.Tasks[j].Kind
		}
		return out.Tasks[i].FireAt.Before(out.Tasks[j].FireAt)
	})
	return out
}

func (s *Scheduler) cancelAllLocked() {
	for kind, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, kind)
	}
}

// armLocked replaces the kind's Pending task, guaranteeing at most one per
// cadence. fireAt is always strictly future at arm time (recurrence
// contract); the zero clamp only guards against clock movement between
// computation and arming.
func (s *Scheduler) armLocked(kind Kind, fireAt time.Time, next nextFunc, payload payloadFunc) {
	if cur, ok := s.pending[kind]; ok {
		cur.timer.Stop()
	}
	p := &pending{
		id:      taskID(kind, fireAt),
		kind:    kind,
		fireAt:  fireAt,
		gen:     s.gen,
		next:    next,
		payload: payload,
	}
	d := fireAt.Sub(s.clk.Now())
	if d < 0 {
		d = 0
	}
	p.timer = s.clk.AfterFunc(d, func() { s.onFire(p) })
	s.pending[kind] = p
	s.log.Debug().Str("task", p.id).Time("fire_at", fireAt).Msg("cadence armed")
}

// onFire runs when a timer elapses: append the payload, then re-arm the same
// cadence. Re-arming happens even when the append fails; it is skipped only
// when a Reschedule/Cleanup has superseded this task's generation (the fresh
// schedule already owns the cadence).
func (s *Scheduler) onFire(p *pending) {
	s.mu.Lock()
	if cur, ok := s.pending[p.kind]; ok && cur == p {
		delete(s.pending, p.kind)
	}
	stale := p.gen != s.gen
	s.mu.Unlock()

	s.deliver(p)

	if stale {
		return
	}
	fireAt, err := p.next(s.clk.Now())
	if err != nil {
		s.log.Error().Err(err).Str("kind", string(p.kind)).Msg("next occurrence failed; cadence stopped")
		return
	}
	s.mu.Lock()
	if p.gen == s.gen {
		s.armLocked(p.kind, fireAt, p.next, p.payload)
	}
	s.mu.Unlock()
}

// deliver builds the payload and appends it to the sink. Panics and errors
// are contained here so one bad fire never takes the cadence down.
func (s *Scheduler) deliver(p *pending) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Any("panic", r).Str("kind", string(p.kind)).
				Str("stack", string(debug.Stack())).Msg("panic in cadence callback")
		}
	}()

	payload := p.payload()
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()

	n, appended, err := s.sink.Append(ctx, payload)
	switch {
	case err != nil:
		s.log.Warn().Err(err).Str("kind", string(p.kind)).Msg("notification append failed; cadence continues")
	case !appended:
		s.log.Debug().Str("kind", string(p.kind)).Msg("notification suppressed as duplicate")
	default:
		s.log.Info().Str("kind", string(p.kind)).Str("id", n.ID).Msg("notification fired")
	}

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type: EventFired,
			Time: s.clk.Now(),
			Data: TaskInfo{ID: p.id, Kind: p.kind, FireAt: p.fireAt},
		})
	}
}

// ensure the interface contract stays in sync with notify.Log.
var _ Sink = (*notify.Log)(nil)
