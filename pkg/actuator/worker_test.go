package actuator

import (
	"path/filepath"
	"testing"
	"time"

	"rtsim/pkg/feedback"
	"rtsim/pkg/metrics"
	"rtsim/pkg/rtqueue"
	"rtsim/pkg/telemetry"
	"rtsim/pkg/tracer"
	"rtsim/pkg/types"
)

func newWorkerHarness(t *testing.T) (*rtqueue.Queue[types.ProcessedSample], *feedback.Channel, *Worker) {
	t.Helper()
	in := rtqueue.New[types.ProcessedSample](8)
	fb := feedback.New()
	tr := tracer.New(filepath.Join(t.TempDir(), "events.csv"), 0)
	sink := telemetry.New(telemetry.Atomics, telemetry.Config{})
	m := metrics.New(0)
	w := NewWorker(Specs[0], WorkerConfig{}, in, fb, tr, sink, m)
	return in, fb, w
}

func TestWorkerEmitsAckUnderBudget(t *testing.T) {
	in, fb, w := newWorkerHarness(t)
	w.Start()
	defer func() { w.Stop(); w.Wait() }()

	in.TryEnqueue(types.ProcessedSample{Kind: types.SensorForce, Seq: 1, Raw: 101, Filtered: 100, ProcessedAt: time.Now()})

	deadline := time.Now().Add(200 * time.Millisecond)
	var gotAck bool
	for time.Now().Before(deadline) {
		if fb.DrainAll(func(msg types.FeedbackMsg) {
			if msg.Kind == types.FeedbackAck {
				gotAck = true
			}
		}) > 0 {
			if gotAck {
				break
			}
		}
		time.Sleep(time.Millisecond)
	}
	if !gotAck {
		t.Fatalf("expected an Ack feedback message")
	}
}

func TestWorkerFlagsInstability(t *testing.T) {
	in, fb, w := newWorkerHarness(t)
	w.Start()
	defer func() { w.Stop(); w.Wait() }()

	in.TryEnqueue(types.ProcessedSample{Kind: types.SensorForce, Seq: 1, Raw: 200, Filtered: 100, ProcessedAt: time.Now()})

	deadline := time.Now().Add(200 * time.Millisecond)
	var gotUnstable bool
	for time.Now().Before(deadline) {
		fb.DrainAll(func(msg types.FeedbackMsg) {
			if msg.Kind == types.FeedbackError && msg.ErrCode == types.ErrUnstableSensor {
				gotUnstable = true
			}
		})
		if gotUnstable {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if !gotUnstable {
		t.Fatalf("expected an unstable_sensor feedback message")
	}
}
