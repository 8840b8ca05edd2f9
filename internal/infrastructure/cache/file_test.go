package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"crosslight/pkg/logger"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFileStore(dir, "translation", logger.Nop())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s, dir
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, dir := newTestStore(t)

	if err := s.Set(ctx, Hash("hello"), "bonjour", time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// A fresh store over the same directory sees the persisted entry.
	s2, err := NewFileStore(dir, "translation", logger.Nop())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	got, ok, err := s2.Get(ctx, Hash("hello"))
	if err != nil || !ok {
		t.Fatalf("Get after reload: ok=%v err=%v", ok, err)
	}
	if got != "bonjour" {
		t.Errorf("got %q", got)
	}
}

func TestFileStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	current := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return current }

	s.Set(ctx, "k", "v", time.Hour)

	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Fatal("entry should be live before expiry")
	}

	current = current.Add(2 * time.Hour)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("entry should have expired")
	}
	if s.Len() != 0 {
		t.Error("expired entry should be pruned on read")
	}
}

func TestFileStoreZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	current := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return current }

	s.Set(ctx, "k", "v", 0)
	current = current.Add(1000 * time.Hour)
	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Error("zero-TTL entry should not expire")
	}
}

func TestFileStoreCorruptFileColdStart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "translation.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewFileStore(dir, "translation", logger.Nop())
	if err != nil {
		t.Fatalf("corrupt file should not fail construction: %v", err)
	}
	if s.Len() != 0 {
		t.Error("corrupt file should yield an empty cache")
	}
}

func TestFileStoreFlushPrunesExpired(t *testing.T) {
	ctx := context.Background()
	s, dir := newTestStore(t)
	current := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return current }

	s.Set(ctx, "stale", "v", time.Minute)
	s.Set(ctx, "live", "v", time.Hour)
	current = current.Add(30 * time.Minute)

	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	s2, err := NewFileStore(dir, "translation", logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	s2.now = func() time.Time { return current }
	if _, ok, _ := s2.Get(ctx, "stale"); ok {
		t.Error("expired entry survived flush")
	}
	if _, ok, _ := s2.Get(ctx, "live"); !ok {
		t.Error("live entry lost in flush")
	}
}

func TestFileStoreFlushNoopWhenClean(t *testing.T) {
	ctx := context.Background()
	s, dir := newTestStore(t)

	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "translation.json")); !os.IsNotExist(err) {
		t.Error("clean store should not write a file")
	}
}

func TestHashStable(t *testing.T) {
	if Hash("abc") != Hash("abc") {
		t.Error("hash must be stable")
	}
	if Hash("abc") == Hash("abd") {
		t.Error("distinct inputs should hash differently")
	}
}
