package store

import (
	"sync"
)

// KV is the durable key-space the local store is built on.
// Values are opaque serialised collections; Get returns nil, nil for a
// missing key.
type KV interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Keys() ([]string, error)
	Close() error
}

// MemKV is an in-memory KV for testing.
type MemKV struct {
	mu   sync.RWMutex
	data map[string][]byte

	// PutErr, when set, fails every Put. Used to simulate quota errors.
	PutErr error
}

// NewMemKV creates an empty in-memory key-space.
func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string][]byte)}
}

// Close is a no-op for MemKV.
func (s *MemKV) Close() error {
	return nil
}

func (s *MemKV) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemKV) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.PutErr != nil {
		return s.PutErr
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = v
	return nil
}

func (s *MemKV) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

func (s *MemKV) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

// Compile-time interface check
var _ KV = (*MemKV)(nil)
