package storage

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("storage: key not found")
	ErrClosed   = errors.New("storage: store closed")
)

// EventChanged is published on the bus whenever a key's value changes,
// with a Change as the event data.
const EventChanged = "store.changed"

// Change describes a single key mutation.
type Change struct {
	Key string
	At  time.Time
}

// Config configures the store.
//
// Driver values:
//   - "file": one JSON document per key, atomic rename writes, fsnotify watch
//   - "sqlite": single-file database, in-process change events only
//   - "memory": volatile map, for tests
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}
