package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wellboard/internal/eventbus"
)

// Store is the minimal persistence API used by the notification core.
//
// Get/Put/Delete are atomic per call. Cross-process mutations race
// last-write-wins; there is no distributed locking.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// Watch blocks until ctx is done, delivering cross-process change
	// events to the bus. Drivers without an external change signal simply
	// wait for cancellation.
	Watch(ctx context.Context) error

	Close() error
}

// Open initializes the configured store. Change events are published on bus.
func Open(cfg Config, bus eventbus.Bus, log zerolog.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, bus, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, bus, log)
	case "memory":
		return NewMemory(bus), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

func publishChange(bus eventbus.Bus, key string) {
	if bus == nil {
		return
	}
	now := time.Now()
	bus.Publish(eventbus.Event{Type: EventChanged, Time: now, Data: Change{Key: key, At: now}})
}

func validKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}
