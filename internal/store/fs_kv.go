package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hack-pad/hackpadfs"
)

const fsKVExt = ".json"

// FSKV stores each key as one file in a hackpadfs filesystem.
// In the browser the FS is IndexedDB-backed; tests use hackpadfs/mem.
type FSKV struct {
	mu sync.RWMutex
	fs hackpadfs.FS
}

// NewFSKV wraps fs. Keys become files at the root of fs.
func NewFSKV(fs hackpadfs.FS) *FSKV {
	return &FSKV{fs: fs}
}

// Close is a no-op; the FS owner releases it.
func (s *FSKV) Close() error {
	return nil
}

func (s *FSKV) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := hackpadfs.ReadFile(s.fs, key+fsKVExt)
	if errors.Is(err, hackpadfs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

func (s *FSKV) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := hackpadfs.WriteFullFile(s.fs, key+fsKVExt, value, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *FSKV) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := hackpadfs.Remove(s.fs, key+fsKVExt)
	if err != nil && !errors.Is(err, hackpadfs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

func (s *FSKV) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := hackpadfs.ReadDir(s.fs, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fsKVExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(e.Name(), fsKVExt))
	}
	return keys, nil
}

// Compile-time interface check
var _ KV = (*FSKV)(nil)
