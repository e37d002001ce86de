// Package profiler captures slow database operations in memory so operators
// can inspect and clear them without touching claim data. It is deliberately
// bounded: a fixed-size ring keeps the most recent captures.
package profiler

import (
	"sync"
	"time"
)

const defaultCapacity = 256

// SlowOp records one operation that exceeded the slow threshold.
type SlowOp struct {
	Operation string        `json:"operation"`
	Detail    string        `json:"detail,omitempty"`
	Duration  time.Duration `json:"duration"`
	At        time.Time     `json:"at"`
}

// Profiler collects SlowOp records above a configurable threshold.
// All methods are safe for concurrent use.
type Profiler struct {
	mu        sync.Mutex
	threshold time.Duration
	ops       []SlowOp
	capacity  int
	captured  int64 // total captures since last Clear, including evicted ones
}

// New creates a Profiler that records operations slower than threshold.
func New(threshold time.Duration) *Profiler {
	return &Profiler{
		threshold: threshold,
		capacity:  defaultCapacity,
	}
}

// Threshold returns the configured slow threshold.
func (p *Profiler) Threshold() time.Duration { return p.threshold }

// Record captures the operation if it exceeded the threshold. Fast
// operations are ignored, so callers can report every query unconditionally.
func (p *Profiler) Record(operation, detail string, duration time.Duration) {
	if duration < p.threshold {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.captured++
	p.ops = append(p.ops, SlowOp{
		Operation: operation,
		Detail:    detail,
		Duration:  duration,
		At:        time.Now(),
	})
	if len(p.ops) > p.capacity {
		p.ops = p.ops[len(p.ops)-p.capacity:]
	}
}

// Snapshot returns a copy of the currently retained slow operations.
func (p *Profiler) Snapshot() []SlowOp {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]SlowOp, len(p.ops))
	copy(out, p.ops)
	return out
}

// ClearResult reports the outcome of a Clear call.
type ClearResult struct {
	DeletedCount int64 `json:"deletedCount"`
	Cleared      bool  `json:"cleared"`
}

// Clear drops all captured operations and returns how many were dropped.
// Clearing an already-empty profiler is not an error.
func (p *Profiler) Clear() ClearResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	deleted := p.captured
	p.ops = nil
	p.captured = 0
	return ClearResult{DeletedCount: deleted, Cleared: true}
}
