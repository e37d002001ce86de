package profiler

import (
	"fmt"
	"testing"
	"time"
)

func TestRecord_IgnoresFastOperations(t *testing.T) {
	p := New(100 * time.Millisecond)

	p.Record("listClaims", "", 50*time.Millisecond)
	p.Record("listClaims", "", 99*time.Millisecond)

	if got := p.Snapshot(); len(got) != 0 {
		t.Errorf("expected no captures, got %d", len(got))
	}
}

func TestRecord_CapturesSlowOperations(t *testing.T) {
	p := New(100 * time.Millisecond)

	p.Record("listClaims", "status=denied", 150*time.Millisecond)
	p.Record("bootstrap", "", 2*time.Second)

	ops := p.Snapshot()
	if len(ops) != 2 {
		t.Fatalf("expected 2 captures, got %d", len(ops))
	}
	if ops[0].Operation != "listClaims" || ops[0].Detail != "status=denied" {
		t.Errorf("unexpected first capture: %+v", ops[0])
	}
	if ops[1].Operation != "bootstrap" {
		t.Errorf("unexpected second capture: %+v", ops[1])
	}
}

func TestRecord_RingEviction(t *testing.T) {
	p := New(time.Millisecond)
	for i := 0; i < defaultCapacity+10; i++ {
		p.Record("op", fmt.Sprintf("n=%d", i), time.Second)
	}

	ops := p.Snapshot()
	if len(ops) != defaultCapacity {
		t.Fatalf("expected ring capped at %d, got %d", defaultCapacity, len(ops))
	}
	// Oldest entries are evicted first.
	if ops[0].Detail != "n=10" {
		t.Errorf("expected oldest retained capture n=10, got %s", ops[0].Detail)
	}
}

func TestClear(t *testing.T) {
	p := New(time.Millisecond)
	for i := 0; i < defaultCapacity+5; i++ {
		p.Record("op", "", time.Second)
	}

	res := p.Clear()
	if !res.Cleared {
		t.Error("expected cleared=true")
	}
	// DeletedCount counts every capture since the last clear, including
	// entries the ring already evicted.
	if res.DeletedCount != int64(defaultCapacity+5) {
		t.Errorf("expected deletedCount %d, got %d", defaultCapacity+5, res.DeletedCount)
	}
	if len(p.Snapshot()) != 0 {
		t.Error("expected empty snapshot after clear")
	}

	again := p.Clear()
	if again.DeletedCount != 0 || !again.Cleared {
		t.Errorf("clearing empty profiler: expected {0 true}, got %+v", again)
	}
}
