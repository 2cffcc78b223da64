package storage

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"wellboard/internal/eventbus"
)

// fileStore keeps one JSON document per key under a single directory
// (<dir>/<key>.json). Writes go through a temp file + rename so readers in
// other processes never observe a partial document.
type fileStore struct {
	dir string
	bus eventbus.Bus
	log zerolog.Logger

	mu     sync.Mutex
	closed bool
	// hashes tracks the last content written or observed per key, so the
	// watch loop does not republish our own writes.
	hashes map[string]uint64
}

func openFile(cfg Config, bus eventbus.Bus, log zerolog.Logger) (Store, error) {
	dir := strings.TrimSpace(cfg.Path)
	if dir == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &fileStore{dir: dir, bus: bus, log: log, hashes: map[string]uint64{}}, nil
}

func (s *fileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *fileStore) Get(ctx context.Context, key string) ([]byte, error) {
	_ = ctx
	if !validKey(key) {
		return nil, errors.New("storage: invalid key")
	}
	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *fileStore) Put(ctx context.Context, key string, value []byte) error {
	_ = ctx
	if !validKey(key) {
		return errors.New("storage: invalid key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	path := s.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	s.hashes[key] = hashBytes(value)
	publishChange(s.bus, key)
	return nil
}

func (s *fileStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	if !validKey(key) {
		return errors.New("storage: invalid key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	delete(s.hashes, key)
	publishChange(s.bus, key)
	return nil
}

// Watch observes the backing directory with fsnotify and publishes a change
// event for every key whose content actually changed. The watcher is
// recreated with a small backoff if it breaks (editor quirks, inotify limits).
func (s *fileStore) Watch(ctx context.Context) error {
	const (
		backoffBase = 250 * time.Millisecond
		backoffMax  = 5 * time.Second
	)
	backoff := backoffBase

	for {
		if ctx.Err() != nil {
			return nil
		}

		w, err := fsnotify.NewWatcher()
		if err == nil {
			err = w.Add(s.dir)
			if err != nil {
				_ = w.Close()
			}
		}
		if err != nil {
			s.log.Warn().Err(err).Str("dir", s.dir).Msg("store watch init failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			if backoff < backoffMax {
				backoff *= 2
			}
			continue
		}
		backoff = backoffBase
		s.log.Debug().Str("dir", s.dir).Msg("store watcher started")

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					s.handleEvent(ev.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				if err != nil {
					s.log.Warn().Err(err).Str("dir", s.dir).Msg("store watch error")
				}
			}
		}

		_ = w.Close()
		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if backoff < backoffMax {
			backoff *= 2
		}
	}
}

func (s *fileStore) handleEvent(name string) {
	base := filepath.Base(name)
	key := strings.TrimSuffix(base, ".json")
	if key == base || !validKey(key) {
		return
	}

	var h uint64
	b, err := os.ReadFile(s.path(key))
	if err == nil {
		h = hashBytes(b)
	}

	s.mu.Lock()
	unchanged := h != 0 && h == s.hashes[key]
	if !unchanged {
		s.hashes[key] = h
	}
	closed := s.closed
	s.mu.Unlock()

	if unchanged || closed {
		return
	}
	s.log.Debug().Str("key", key).Msg("external store change detected")
	publishChange(s.bus, key)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
