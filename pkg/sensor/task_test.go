package sensor

import (
	"path/filepath"
	"testing"
	"time"

	"rtsim/pkg/metrics"
	"rtsim/pkg/rtqueue"
	"rtsim/pkg/telemetry"
	"rtsim/pkg/tracer"
	"rtsim/pkg/types"
)

func newHarness(t *testing.T) (*rtqueue.Queue[types.SensorSample], *tracer.Tracer, *telemetry.Sink, *metrics.Buffer) {
	t.Helper()
	out := rtqueue.New[types.SensorSample](2048)
	tr := tracer.New(filepath.Join(t.TempDir(), "events.csv"), 0)
	sink := telemetry.New(telemetry.Atomics, telemetry.Config{})
	m := metrics.New(0)
	return out, tr, sink, m
}

func TestSensorTaskProducesIncreasingSeq(t *testing.T) {
	out, tr, sink, m := newHarness(t)
	task := New(types.SensorForce, 2*time.Millisecond, out, tr, sink, m, 1, -1)
	task.Start()
	time.Sleep(30 * time.Millisecond)
	task.Stop()
	task.Wait()

	var last int64 = -1
	count := 0
	for {
		s, ok := out.TryDequeue()
		if !ok {
			break
		}
		if int64(s.Seq) <= last {
			t.Fatalf("seq not strictly increasing: got %d after %d", s.Seq, last)
		}
		last = int64(s.Seq)
		count++
	}
	if count == 0 {
		t.Fatalf("expected at least one sample")
	}
}

func TestZeroPeriodAlwaysMisses(t *testing.T) {
	out, tr, sink, m := newHarness(t)
	task := New(types.SensorPosition, 0, out, tr, sink, m, 2, -1)
	task.Start()
	time.Sleep(5 * time.Millisecond)
	task.Stop()
	task.Wait()

	if m.Snapshot().MissSensor == 0 {
		t.Fatalf("expected sensor misses with zero period")
	}
}
