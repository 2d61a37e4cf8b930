package scheduler

import (
	"context"
	"errors"
	"log"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/clubops/clubsync/internal/engine"
	"github.com/clubops/clubsync/internal/remote"
)

// fakeRunner records Sync calls and reports a scripted outcome. When
// started and release are set, Sync blocks until released so tests can
// interleave requests with a running cycle.
type fakeRunner struct {
	mu      sync.Mutex
	calls   [][]string
	err     error
	started chan []string
	release chan struct{}
}

func (f *fakeRunner) Sync(ctx context.Context, tables ...string) *engine.Report {
	if f.started != nil {
		f.started <- tables
	}
	if f.release != nil {
		<-f.release
	}

	f.mu.Lock()
	f.calls = append(f.calls, tables)
	err := f.err
	f.mu.Unlock()

	report := &engine.Report{StartedAt: time.Now(), FinishedAt: time.Now()}
	if err != nil {
		report.Tables = []engine.TableReport{{Table: "players", Err: err}}
	}
	return report
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeCounter struct {
	mu sync.Mutex
	n  int
}

func (f *fakeCounter) PendingCount(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n, nil
}

func (f *fakeCounter) set(n int) {
	f.mu.Lock()
	f.n = n
	f.mu.Unlock()
}

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[test] ", 0)
}

func TestRunsFullCycleOnStartup(t *testing.T) {
	runner := &fakeRunner{started: make(chan []string)}
	s := New(runner, &fakeCounter{}, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	select {
	case tables := <-runner.started:
		if len(tables) != 0 {
			t.Errorf("startup cycle scoped to %v, want all tables", tables)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no startup cycle within 5s")
	}
}

func TestRequestSyncTriggersScopedCycle(t *testing.T) {
	runner := &fakeRunner{started: make(chan []string)}
	s := New(runner, &fakeCounter{}, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	<-runner.started // startup cycle

	s.RequestSync("players")

	select {
	case tables := <-runner.started:
		if len(tables) != 1 || tables[0] != "players" {
			t.Errorf("cycle scoped to %v, want [players]", tables)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no on-demand cycle within 5s")
	}
}

func TestBurstOfRequestsCoalescesIntoOneCycle(t *testing.T) {
	runner := &fakeRunner{
		started: make(chan []string),
		release: make(chan struct{}),
	}
	s := New(runner, &fakeCounter{}, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	<-runner.started // startup cycle is now blocked inside Sync

	// A burst of edits while a cycle runs must cost one follow-up
	// cycle covering both tables, not one cycle each.
	s.RequestSync("teams")
	s.RequestSync("players")
	s.RequestSync("players")
	runner.release <- struct{}{}

	select {
	case tables := <-runner.started:
		sort.Strings(tables)
		if len(tables) != 2 || tables[0] != "players" || tables[1] != "teams" {
			t.Errorf("coalesced cycle scoped to %v, want [players teams]", tables)
		}
		runner.release <- struct{}{}
	case <-time.After(5 * time.Second):
		t.Fatal("no coalesced cycle within 5s")
	}

	// Give a stray extra cycle a moment to appear before counting.
	time.Sleep(100 * time.Millisecond)
	if got := runner.callCount(); got != 2 {
		t.Errorf("ran %d cycles, want 2 (startup + coalesced)", got)
	}
}

func TestNotifyOnlineRequestsFullCycle(t *testing.T) {
	runner := &fakeRunner{
		started: make(chan []string),
		release: make(chan struct{}),
	}
	s := New(runner, &fakeCounter{}, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	<-runner.started // startup cycle is now blocked inside Sync

	s.RequestSync("teams")
	s.NotifyOnline() // widens the pending request to all tables
	runner.release <- struct{}{}

	select {
	case tables := <-runner.started:
		if len(tables) != 0 {
			t.Errorf("post-reconnect cycle scoped to %v, want all tables", tables)
		}
		runner.release <- struct{}{}
	case <-time.After(5 * time.Second):
		t.Fatal("no post-reconnect cycle within 5s")
	}
}

func TestStuckDetection(t *testing.T) {
	runner := &fakeRunner{err: &remote.TransientError{Op: "pull", Err: errors.New("connection refused")}}
	counter := &fakeCounter{n: 3}
	s := New(runner, counter, time.Hour, testLogger())
	ctx := context.Background()

	for i := 0; i < stuckThreshold-1; i++ {
		s.runCycle(ctx, nil)
	}
	st, err := s.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.Stuck {
		t.Fatalf("stuck after %d cycles, threshold is %d", stuckThreshold-1, stuckThreshold)
	}
	if st.LastError == nil {
		t.Error("LastError not recorded")
	}

	s.runCycle(ctx, nil)
	st, err = s.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !st.Stuck {
		t.Error("not stuck after reaching the failure threshold")
	}
	if st.PendingCount != 3 {
		t.Errorf("PendingCount = %d, want 3", st.PendingCount)
	}
}

func TestShrinkingBacklogResetsStuckStreak(t *testing.T) {
	runner := &fakeRunner{err: &remote.TransientError{Op: "pull", Err: errors.New("connection refused")}}
	counter := &fakeCounter{n: 10}
	s := New(runner, counter, time.Hour, testLogger())
	ctx := context.Background()

	for i := 0; i < stuckThreshold; i++ {
		s.runCycle(ctx, nil)
		// Each failing cycle still drains part of the backlog, so the
		// scheduler is degraded but not stuck.
		counter.set(10 - (i+1)*2)
	}

	st, err := s.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.Stuck {
		t.Error("marked stuck while the pending count was shrinking")
	}
}

func TestSuccessClearsFailureState(t *testing.T) {
	runner := &fakeRunner{err: errors.New("boom")}
	s := New(runner, &fakeCounter{}, time.Hour, testLogger())
	ctx := context.Background()

	for i := 0; i < stuckThreshold; i++ {
		s.runCycle(ctx, nil)
	}

	runner.mu.Lock()
	runner.err = nil
	runner.mu.Unlock()
	s.runCycle(ctx, nil)

	st, err := s.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.Stuck {
		t.Error("still stuck after a clean cycle")
	}
	if st.LastError != nil {
		t.Errorf("LastError = %v after a clean cycle", st.LastError)
	}
	if st.LastSuccessAt.IsZero() {
		t.Error("LastSuccessAt not recorded")
	}
}
