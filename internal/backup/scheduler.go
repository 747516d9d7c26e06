// Package backup runs periodic database backups for the daemon.
package backup

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hourbook/hourbook/internal/debug"
	"github.com/hourbook/hourbook/internal/storage/sqlite"
)

// DefaultInterval is the backup period when none is configured
const DefaultInterval = time.Hour

// shutdownTimeout bounds the final backup taken when the scheduler stops
const shutdownTimeout = 30 * time.Second

// Backupper takes one backup into dir, keeping the newest keep files
type Backupper interface {
	Backup(ctx context.Context, dir string, keep int) (*sqlite.BackupResult, error)
}

// Scheduler backs up a store on a fixed interval and once more when stopped
type Scheduler struct {
	store Backupper
	dir   string
	keep  int

	mu       sync.Mutex
	interval time.Duration
	last     *sqlite.BackupResult
	lastErr  error
	runs     int

	reset chan time.Duration
}

// NewScheduler creates a scheduler. A non-positive interval means DefaultInterval.
func NewScheduler(store Backupper, dir string, keep int, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		store:    store,
		dir:      dir,
		keep:     keep,
		interval: interval,
		reset:    make(chan time.Duration, 1),
	}
}

// Interval returns the current backup period
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval changes the period. The next backup is due one full new
// interval after the change.
func (s *Scheduler) SetInterval(d time.Duration) error {
	if d <= 0 {
		return errors.New("backup interval must be positive")
	}
	s.mu.Lock()
	if d == s.interval {
		s.mu.Unlock()
		return nil
	}
	s.interval = d
	s.mu.Unlock()

	// Drop a pending change; the newest one wins
	select {
	case <-s.reset:
	default:
	}
	s.reset <- d
	return nil
}

// RunOnce takes a backup now
func (s *Scheduler) RunOnce(ctx context.Context) (*sqlite.BackupResult, error) {
	result, err := s.store.Backup(ctx, s.dir, s.keep)

	s.mu.Lock()
	s.runs++
	s.lastErr = err
	if err == nil {
		s.last = result
	}
	s.mu.Unlock()

	if err != nil {
		debug.Logf("backup: failed: %v", err)
		return nil, err
	}
	debug.Logf("backup: wrote %s (%d bytes, pruned %d)", result.Path, result.Size, len(result.Pruned))
	return result, nil
}

// Last returns the most recent successful backup and the error of the most recent attempt
func (s *Scheduler) Last() (*sqlite.BackupResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastErr
}

// Runs returns the number of attempted backups
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// Run blocks until ctx is cancelled, backing up on every tick. A final backup
// is taken on the way out with a fresh context.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if ctx.Err() != nil {
				continue
			}
			_, _ = s.RunOnce(ctx)
		case d := <-s.reset:
			ticker.Reset(d)
			debug.Logf("backup: interval now %s", d)
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			_, _ = s.RunOnce(finalCtx)
			cancel()
			return
		}
	}
}
