package backup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hourbook/hourbook/internal/storage/sqlite"
)

type fakeStore struct {
	mu    sync.Mutex
	calls int
	dirs  []string
	fail  error
}

func (f *fakeStore) Backup(_ context.Context, dir string, keep int) (*sqlite.BackupResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.dirs = append(f.dirs, dir)
	if f.fail != nil {
		return nil, f.fail
	}
	return &sqlite.BackupResult{Path: dir + "/b.db", Size: int64(keep)}, nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSchedulerRunsOnTickAndAtShutdown(t *testing.T) {
	store := &fakeStore{}
	s := NewScheduler(store, "/bk", 3, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	waitFor(t, "two ticks", func() bool { return store.count() >= 2 })
	before := store.count()
	cancel()
	<-done

	if got := store.count(); got != before+1 {
		t.Errorf("backups after shutdown = %d, want %d", got, before+1)
	}
	last, err := s.Last()
	if err != nil || last == nil || last.Size != 3 {
		t.Errorf("Last() = %+v, %v", last, err)
	}
}

func TestSchedulerShutdownOnly(t *testing.T) {
	store := &fakeStore{}
	s := NewScheduler(store, "/bk", 1, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Run(ctx)

	if store.count() != 1 {
		t.Errorf("backups = %d, want 1", store.count())
	}
}

func TestSchedulerSetInterval(t *testing.T) {
	store := &fakeStore{}
	s := NewScheduler(store, "/bk", 1, time.Hour)

	if err := s.SetInterval(0); err == nil {
		t.Error("expected error for zero interval")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	if err := s.SetInterval(15 * time.Millisecond); err != nil {
		t.Fatalf("SetInterval failed: %v", err)
	}
	if s.Interval() != 15*time.Millisecond {
		t.Errorf("Interval() = %s", s.Interval())
	}
	waitFor(t, "tick at new interval", func() bool { return store.count() >= 1 })
	cancel()
	<-done
}

func TestSchedulerRecordsFailure(t *testing.T) {
	boom := errors.New("disk full")
	store := &fakeStore{fail: boom}
	s := NewScheduler(store, "/bk", 1, 0)

	if s.Interval() != DefaultInterval {
		t.Errorf("default interval = %s", s.Interval())
	}
	if _, err := s.RunOnce(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("RunOnce error = %v", err)
	}
	last, err := s.Last()
	if last != nil || !errors.Is(err, boom) {
		t.Errorf("Last() = %+v, %v", last, err)
	}
	if s.Runs() != 1 {
		t.Errorf("Runs() = %d", s.Runs())
	}
}

func TestSchedulerWithStore(t *testing.T) {
	dir := t.TempDir()
	store, err := sqlite.New(dir + "/hourbook.db")
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	s := NewScheduler(store, dir+"/backups", 2, time.Hour)
	result, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if result.Size == 0 {
		t.Error("backup file is empty")
	}
}
