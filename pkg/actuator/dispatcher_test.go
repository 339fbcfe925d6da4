package actuator

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

func TestDispatcherRoutesByKind(t *testing.T) {
	in := rtqueue.New[types.ProcessedSample](8)
	queues := map[types.ActuatorKind]*rtqueue.Queue[types.ProcessedSample]{
		types.ActuatorGripper:    rtqueue.New[types.ProcessedSample](8),
		types.ActuatorMotor:      rtqueue.New[types.ProcessedSample](8),
		types.ActuatorStabiliser: rtqueue.New[types.ProcessedSample](8),
	}
	tr := tracer.New(filepath.Join(t.TempDir(), "events.csv"), 0)
	sink := telemetry.New(telemetry.Atomics, telemetry.Config{})
	m := metrics.New(0)

	d := NewDispatcher(in, queues, tr, sink, m)
	d.Start()
	defer func() { d.Stop(); d.Wait() }()

	in.TryEnqueue(types.ProcessedSample{Kind: types.SensorTemperature, ProcessedAt: time.Now()})

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if queues[types.ActuatorStabiliser].Len() > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected temperature sample routed to stabiliser queue")
}
