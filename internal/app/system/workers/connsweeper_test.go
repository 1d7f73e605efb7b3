package workers

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSweeper struct {
	mu      sync.Mutex
	cutoffs []time.Time
	closed  int
}

func (f *fakeSweeper) Sweep(cutoff time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.closed
}

func (f *fakeSweeper) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func TestSweepOnce_UsesIdleCutoff(t *testing.T) {
	fs := &fakeSweeper{closed: 2}
	core, logs := observer.New(zap.InfoLevel)
	w := NewConnSweeper(fs, zap.New(core), time.Minute, 90*time.Second)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	if got := w.SweepOnce(); got != 2 {
		t.Fatalf("SweepOnce = %d, want 2", got)
	}
	if want := fixed.Add(-90 * time.Second); !fs.cutoffs[0].Equal(want) {
		t.Errorf("cutoff = %v, want %v", fs.cutoffs[0], want)
	}
	if logs.FilterMessage("closed idle connections").Len() != 1 {
		t.Error("expected a log line for closed connections")
	}
}

func TestSweepOnce_QuietWhenNothingClosed(t *testing.T) {
	fs := &fakeSweeper{}
	core, logs := observer.New(zap.InfoLevel)
	w := NewConnSweeper(fs, zap.New(core), time.Minute, time.Minute)

	w.SweepOnce()
	if logs.FilterMessage("closed idle connections").Len() != 0 {
		t.Error("no log expected when nothing was closed")
	}
}

func TestConnSweeper_StartStop(t *testing.T) {
	fs := &fakeSweeper{}
	w := NewConnSweeper(fs, zap.NewNop(), 5*time.Millisecond, time.Minute)
	w.Start()

	deadline := time.Now().Add(2 * time.Second)
	for fs.calls() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	w.Stop()
	w.Stop()

	if fs.calls() < 2 {
		t.Fatalf("expected at least 2 sweeps, got %d", fs.calls())
	}
	after := fs.calls()
	time.Sleep(20 * time.Millisecond)
	if fs.calls() != after {
		t.Error("sweeps continued after Stop")
	}
}
