// Package scheduler drives the sync engine in the background: periodic
// cycles on a timer, immediate cycles when local edits or connectivity
// events request one, and coalescing so that a burst of requests costs a
// single cycle.
package scheduler

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/clubops/clubsync/internal/engine"
)

const (
	// DefaultInterval is the periodic cycle spacing when the
	// configuration does not set one.
	DefaultInterval = 30 * time.Second

	// stuckThreshold is how many consecutive failing cycles without a
	// drop in the pending count mark the scheduler as stuck.
	stuckThreshold = 5
)

// Runner runs one sync cycle. *engine.Engine satisfies it.
type Runner interface {
	Sync(ctx context.Context, tables ...string) *engine.Report
}

// PendingCounter reports how many local changes still await upload.
// *store.Store satisfies it.
type PendingCounter interface {
	PendingCount(ctx context.Context) (int, error)
}

// Status is a point-in-time snapshot of scheduler health.
type Status struct {
	// Running reports whether the background loop is active.
	Running bool

	// PendingCount is the number of dirty records awaiting upload,
	// including rejected ones.
	PendingCount int

	// LastSuccessAt is when the last fully clean cycle finished. Zero
	// if no cycle has succeeded yet.
	LastSuccessAt time.Time

	// LastError is the error from the most recent cycle, nil if it
	// succeeded.
	LastError error

	// Stuck reports that cycles keep failing while the pending count
	// is not shrinking. The UI surfaces this so stale data is never
	// mistaken for synced data.
	Stuck bool
}

// Scheduler owns the background sync loop for one device.
type Scheduler struct {
	runner  Runner
	pending PendingCounter
	logger  *log.Logger

	wake chan struct{}

	mu            sync.Mutex
	interval      time.Duration
	requested     map[string]bool // coalesced table requests; empty map means all tables
	requestAll    bool
	running       bool
	lastSuccessAt time.Time
	lastError     error
	lastPending   int
	failStreak    int
}

// New creates a scheduler around a sync runner. A nil logger logs to
// stderr. Call Run to start the loop.
func New(runner Runner, pending PendingCounter, interval time.Duration, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(os.Stderr, "[scheduler] ", log.LstdFlags)
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		runner:    runner,
		pending:   pending,
		logger:    logger,
		wake:      make(chan struct{}, 1),
		interval:  interval,
		requested: make(map[string]bool),
	}
}

// RequestSync asks for a cycle as soon as possible. Named tables are
// merged into the next cycle's scope; with no arguments the next cycle
// covers all tables. Requests arriving while a cycle runs are coalesced
// into one follow-up cycle.
func (s *Scheduler) RequestSync(tables ...string) {
	s.mu.Lock()
	if len(tables) == 0 {
		s.requestAll = true
	} else if !s.requestAll {
		for _, t := range tables {
			s.requested[t] = true
		}
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default: // a wakeup is already queued
	}
}

// NotifyOnline signals that connectivity was regained. The backlog may
// span every table, so the next cycle is a full one.
func (s *Scheduler) NotifyOnline() {
	s.RequestSync()
}

// SetInterval changes the periodic cycle spacing. Takes effect after the
// current tick.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
}

// Status returns a snapshot of scheduler health for the status surface.
func (s *Scheduler) Status(ctx context.Context) (Status, error) {
	count, err := s.pending.PendingCount(ctx)
	if err != nil {
		return Status{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:       s.running,
		PendingCount:  count,
		LastSuccessAt: s.lastSuccessAt,
		LastError:     s.lastError,
		Stuck:         s.failStreak >= stuckThreshold,
	}, nil
}

// Run executes the scheduling loop until ctx is cancelled. It runs one
// full cycle immediately on startup to drain anything accumulated while
// the process was down.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.running = true
	interval := s.interval
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.runCycle(ctx, nil)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx, nil)
		case <-s.wake:
			s.runCycle(ctx, s.takeRequests())
			// A timed cycle right after an on-demand one would be
			// redundant.
			ticker.Reset(s.currentInterval())
		}

		if d := s.currentInterval(); d != interval {
			interval = d
			ticker.Reset(d)
		}
	}
}

// takeRequests drains the coalesced request set. nil means all tables.
func (s *Scheduler) takeRequests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.requestAll {
		s.requestAll = false
		clear(s.requested)
		return nil
	}
	if len(s.requested) == 0 {
		return nil
	}
	tables := make([]string, 0, len(s.requested))
	for t := range s.requested {
		tables = append(tables, t)
	}
	clear(s.requested)
	return tables
}

func (s *Scheduler) currentInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// runCycle runs one sync cycle and records its outcome. A nil table list
// means all tables.
func (s *Scheduler) runCycle(ctx context.Context, tables []string) {
	if ctx.Err() != nil {
		return
	}

	report := s.runner.Sync(ctx, tables...)
	err := report.Err()

	count, cerr := s.pending.PendingCount(ctx)
	if cerr != nil {
		s.logger.Printf("Failed to read pending count: %v", cerr)
		count = -1
	}

	s.mu.Lock()
	s.lastError = err
	if err == nil {
		s.lastSuccessAt = report.FinishedAt
		s.failStreak = 0
	} else if count >= 0 && count < s.lastPending {
		// Partial progress still counts; only a flat-lining backlog
		// accumulates toward stuck.
		s.failStreak = 0
	} else {
		s.failStreak++
	}
	if count >= 0 {
		s.lastPending = count
	}
	stuck := s.failStreak >= stuckThreshold
	s.mu.Unlock()

	if err != nil {
		if engine.Transient(err) {
			s.logger.Printf("Sync cycle failed (transient, will retry): %v", err)
		} else {
			s.logger.Printf("Sync cycle failed: %v", err)
		}
		if stuck {
			s.logger.Printf("Sync appears stuck: %d consecutive failed cycles with %d records pending", stuckThreshold, count)
		}
		return
	}
	if count > 0 {
		s.logger.Printf("Sync cycle complete, %d records still pending (rejected or changed mid-cycle)", count)
	}
}
