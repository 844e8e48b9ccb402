package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()

	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s.now = clock.Now

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, "k", []byte("first"), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "k", []byte("second"), 2*time.Hour); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	value, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(value) != "second" {
		t.Fatalf("expected overwritten value, got %q ok=%v err=%v", value, ok, err)
	}
	remaining, ok, err := s.TTL(ctx, "k")
	if err != nil || !ok || remaining != 2*time.Hour {
		t.Fatalf("unexpected ttl %s ok=%v err=%v", remaining, ok, err)
	}

	clock.Advance(2 * time.Hour)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("expired row should be a miss")
	}
}

func TestSQLitePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	first, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := first.Set(ctx, "k", []byte("v"), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	_ = first.Close()

	second, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if value, ok, _ := second.Get(ctx, "k"); !ok || string(value) != "v" {
		t.Fatalf("expected value to survive reopen, got %q ok=%v", value, ok)
	}
}
