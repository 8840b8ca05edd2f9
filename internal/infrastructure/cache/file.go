package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"crosslight/pkg/logger"
)

type fileEntry struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FileStore is a JSON-file-backed cache. The whole map is read once at
// construction and written once per Flush with an atomic tmp-then-rename
// replace. Expired entries are pruned lazily on read and dropped at flush.
// Concurrent pipeline runs against the same file are not supported; this is
// a documented constraint, not enforced with a file lock.
type FileStore struct {
	mu      sync.RWMutex
	path    string
	entries map[string]fileEntry
	dirty   bool
	now     func() time.Time
	logger  *logger.Logger
}

func NewFileStore(dir, name string, log *logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	s := &FileStore{
		path:    filepath.Join(dir, name+".json"),
		entries: make(map[string]fileEntry),
		now:     time.Now,
		logger:  log.WithComponent("cache"),
	}
	s.load()
	return s, nil
}

// load reads the previous run's map. A missing or corrupt file is a cold
// start, never an error.
func (s *FileStore) load() {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var entries map[string]fileEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		s.logger.Warn().Str("path", s.path).Msg("corrupt cache file, starting cold")
		return
	}
	s.entries = entries
	s.logger.Debug().Str("path", s.path).Int("entries", len(entries)).Msg("cache loaded")
}

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !entry.ExpiresAt.IsZero() && !s.now().Before(entry.ExpiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.dirty = true
		s.mu.Unlock()
		return "", false, nil
	}
	return entry.Value, true, nil
}

func (s *FileStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	entry := fileEntry{Value: value}
	if ttl > 0 {
		entry.ExpiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = entry
	s.dirty = true
	s.mu.Unlock()
	return nil
}

// Flush writes the pruned map atomically. No-op when nothing changed.
func (s *FileStore) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	now := s.now()
	for key, entry := range s.entries {
		if !entry.ExpiresAt.IsZero() && !now.Before(entry.ExpiresAt) {
			delete(s.entries, key)
		}
	}

	raw, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	s.dirty = false
	return nil
}

func (s *FileStore) Close() error {
	return s.Flush(context.Background())
}

// Len returns the number of live entries.
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
