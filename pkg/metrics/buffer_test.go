package metrics

import (
	"path/filepath"
	"testing"
)

func TestRingEvictsOldest(t *testing.T) {
	b := New(0)
	for i := 0; i < ringCapacity+10; i++ {
		b.PushForce(float64(i))
	}
	rings := b.RingsSnapshot()
	if len(rings.Force) != ringCapacity {
		t.Fatalf("len(force) = %d, want %d", len(rings.Force), ringCapacity)
	}
	if rings.Force[0] != 10 {
		t.Fatalf("oldest surviving entry = %v, want 10", rings.Force[0])
	}
}

func TestDeadlineMissAccounting(t *testing.T) {
	b := New(0)
	b.RecordDeadlineMiss("sensor")
	b.RecordDeadlineMiss("processor")
	b.RecordDeadlineMiss("actuator")
	c := b.Snapshot()
	if c.DeadlineMissTot != 3 {
		t.Fatalf("deadline_miss_total = %d, want 3", c.DeadlineMissTot)
	}
	if c.MissSensor != 1 || c.MissProcessor != 1 || c.MissActuator != 1 {
		t.Fatalf("per-component counters not all 1: %+v", c)
	}
}

func TestIncMissMethodsBumpAggregate(t *testing.T) {
	b := New(0)
	b.IncMissSensor()
	b.IncMissProcessor()
	b.IncMissActuator()
	c := b.Snapshot()
	if c.DeadlineMissTot != 3 {
		t.Fatalf("deadline_miss_total = %d, want 3 (IncMiss* must bump the aggregate too)", c.DeadlineMissTot)
	}
}

func TestDeadlineMissRate(t *testing.T) {
	b := New(0)
	if b.DeadlineMissRate() != 0 {
		t.Fatalf("expected 0 rate with no cycles")
	}
	b.IncTotalCycles()
	b.IncTotalCycles()
	b.RecordDeadlineMiss("processor")
	if got := b.DeadlineMissRate(); got != 0.5 {
		t.Fatalf("rate = %v, want 0.5", got)
	}
}

func TestWriteSweepSummaryCSV(t *testing.T) {
	b := New(4)
	b.IncTotalCycles()
	b.PushJitterUs(12.5)
	b.PushLatencyUs(80)
	path := filepath.Join(t.TempDir(), "summary.csv")
	if err := b.WriteSweepSummaryCSV(path); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestPanicDuringUpdateDoesNotWedgeBuffer(t *testing.T) {
	b := New(0)
	b.locked(func() { panic("simulated writer fault") })
	// buffer must still be usable after a recovered panic
	b.PushForce(1.0)
	if len(b.RingsSnapshot().Force) != 1 {
		t.Fatalf("buffer did not remain usable after recovered panic")
	}
}
