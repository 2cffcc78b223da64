package storage

import (
	"context"
	"sync"

	"wellboard/internal/eventbus"
)

// NewMemory returns a volatile in-process store. Used by tests and as a
// throwaway backend when persistence is explicitly not wanted.
func NewMemory(bus eventbus.Bus) Store {
	return &memStore{bus: bus, m: map[string][]byte{}}
}

type memStore struct {
	bus eventbus.Bus

	mu     sync.Mutex
	closed bool
	m      map[string][]byte
}

func (s *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	v, ok := s.m[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := append([]byte(nil), v...)
	return out, nil
}

func (s *memStore) Put(ctx context.Context, key string, value []byte) error {
	_ = ctx
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.m[key] = append([]byte(nil), value...)
	s.mu.Unlock()

	publishChange(s.bus, key)
	return nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	_, ok := s.m[key]
	delete(s.m, key)
	s.mu.Unlock()

	if ok {
		publishChange(s.bus, key)
	}
	return nil
}

func (s *memStore) Watch(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (s *memStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
