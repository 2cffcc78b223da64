// Package notify owns the bounded, deduplicated notification log that the
// dashboard UI reads.
//
// Every mutation is a full read-modify-write cycle against the persistent
// store, serialized by one mutex, so in-process callers always observe the
// dedup and eviction invariants. Two processes mutating the same key race
// last-write-wins; that is an accepted limitation, not a bug.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wellboard/internal/eventbus"
	"wellboard/internal/storage"
)

const (
	// MaxLogSize caps the retained entries; the oldest are evicted first.
	MaxLogSize = 200
	// DuplicateWindow suppresses appends that repeat the title/message of an
	// entry created within this window.
	DuplicateWindow = 5 * time.Minute
	// DefaultKey is the store key holding the persisted log.
	DefaultKey = "notifications"
)

// Bus event types published by the log.
const (
	EventAppended = "notification.appended"
	EventDeduped  = "notification.deduped"
)

type Log struct {
	store storage.Store
	bus   eventbus.Bus
	clk   clock.Clock
	log   zerolog.Logger
	key   string

	// mu serializes the load -> mutate -> save cycle.
	mu sync.Mutex
}

// NewLog returns a log backed by store under key (DefaultKey when empty).
func NewLog(store storage.Store, bus eventbus.Bus, clk clock.Clock, log zerolog.Logger, key string) *Log {
	if key == "" {
		key = DefaultKey
	}
	return &Log{store: store, bus: bus, clk: clk, log: log, key: key}
}

// Append assigns ID/CreatedAt/Read=false and inserts the entry at the head,
// unless an entry with the same title and message was created within
// DuplicateWindow, in which case nothing is stored and appended is false.
// The tail is trimmed to MaxLogSize, discarding the oldest entries.
func (l *Log) Append(ctx context.Context, p Payload) (n *Notification, appended bool, err error) {
	if p.Title == "" {
		return nil, false, errors.New("notify: payload title is required")
	}
	if !p.Category.Valid() {
		p.Category = CategoryInfo
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.loadLocked(ctx)
	if err != nil {
		return nil, false, err
	}

	now := l.clk.Now().UTC()
	// CreatedAt is monotonically non-decreasing within the log even if the
	// wall clock steps backwards.
	if len(entries) > 0 && entries[0].CreatedAt.After(now) {
		now = entries[0].CreatedAt
	}

	for _, e := range entries {
		if now.Sub(e.CreatedAt) >= DuplicateWindow {
			break // entries are newest-first; everything below is older
		}
		if e.Title == p.Title && e.Message == p.Message {
			l.log.Debug().Str("title", p.Title).Msg("duplicate notification suppressed")
			l.publish(EventDeduped, e)
			return nil, false, nil
		}
	}

	fresh := Notification{
		ID:        uuid.NewString(),
		Title:     p.Title,
		Message:   p.Message,
		Category:  p.Category,
		CreatedAt: now,
		Read:      false,
		Action:    p.Action,
	}
	entries = append([]Notification{fresh}, entries...)
	if len(entries) > MaxLogSize {
		entries = entries[:MaxLogSize]
	}
	if err := l.saveLocked(ctx, entries); err != nil {
		return nil, false, err
	}
	l.publish(EventAppended, fresh)
	return &fresh, true, nil
}

// MarkRead marks one entry read. It is idempotent: re-marking an already-read
// entry still reports true. False means the ID was not found.
func (l *Log) MarkRead(ctx context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.loadLocked(ctx)
	if err != nil {
		return false, err
	}
	for i := range entries {
		if entries[i].ID != id {
			continue
		}
		if entries[i].Read {
			return true, nil
		}
		entries[i].Read = true
		if err := l.saveLocked(ctx, entries); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// MarkAllRead sets every entry read. No-op on an empty log.
func (l *Log) MarkAllRead(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.loadLocked(ctx)
	if err != nil {
		return err
	}
	changed := false
	for i := range entries {
		if !entries[i].Read {
			entries[i].Read = true
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return l.saveLocked(ctx, entries)
}

// Delete removes one entry. False means the ID was not found.
func (l *Log) Delete(ctx context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.loadLocked(ctx)
	if err != nil {
		return false, err
	}
	for i := range entries {
		if entries[i].ID != id {
			continue
		}
		entries = append(entries[:i], entries[i+1:]...)
		if err := l.saveLocked(ctx, entries); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// Clear empties the log.
func (l *Log) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveLocked(ctx, []Notification{})
}

// UnreadCount reports how many entries are unread.
func (l *Log) UnreadCount(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.loadLocked(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if !e.Read {
			n++
		}
	}
	return n, nil
}

// List returns entries newest-first, optionally filtered to unread only.
func (l *Log) List(ctx context.Context, unreadOnly bool) ([]Notification, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	if !unreadOnly {
		return entries, nil
	}
	out := make([]Notification, 0, len(entries))
	for _, e := range entries {
		if !e.Read {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *Log) loadLocked(ctx context.Context) ([]Notification, error) {
	data, err := l.store.Get(ctx, l.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	entries, dropped, err := decodeEntries(data)
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	if dropped > 0 {
		l.log.Warn().Int("dropped", dropped).Msg("corrupt notification entries dropped on load")
	}
	return entries, nil
}

func (l *Log) saveLocked(ctx context.Context, entries []Notification) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode notifications: %w", err)
	}
	if err := l.store.Put(ctx, l.key, data); err != nil {
		return fmt.Errorf("save notifications: %w", err)
	}
	return nil
}

func (l *Log) publish(typ string, n Notification) {
	if l.bus == nil {
		return
	}
	l.bus.Publish(eventbus.Event{Type: typ, Time: l.clk.Now(), Data: n})
}
