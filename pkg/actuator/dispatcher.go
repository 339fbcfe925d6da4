package actuator

import (
	"time"

	"rtsim/pkg/metrics"
	"rtsim/pkg/rtqueue"
	"rtsim/pkg/telemetry"
	"rtsim/pkg/tracer"
	"rtsim/pkg/types"
)

// Dispatcher is the Actuator Dispatcher (C7): the single consumer of the
// processor->actuator queue, routing each sample to its actuator's own
// bounded queue by a fixed, compile-time routing table.
type Dispatcher struct {
	in      *rtqueue.Queue[types.ProcessedSample]
	queues  map[types.ActuatorKind]*rtqueue.Queue[types.ProcessedSample]
	tr      *tracer.Tracer
	sink    *telemetry.Sink
	metrics *metrics.Buffer

	stop chan struct{}
	done chan struct{}
}

// NewDispatcher constructs the dispatcher. queues must contain an entry
// for every ActuatorKind.
func NewDispatcher(in *rtqueue.Queue[types.ProcessedSample], queues map[types.ActuatorKind]*rtqueue.Queue[types.ProcessedSample], tr *tracer.Tracer, sink *telemetry.Sink, m *metrics.Buffer) *Dispatcher {
	return &Dispatcher{
		in:      in,
		queues:  queues,
		tr:      tr,
		sink:    sink,
		metrics: m,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the dispatcher's loop goroutine.
func (d *Dispatcher) Start() { go d.run() }

// Stop signals the loop to exit; it observes the signal on its next
// blocking receive or immediately if idle.
func (d *Dispatcher) Stop() { close(d.stop) }

// Wait blocks until the loop has exited.
func (d *Dispatcher) Wait() { <-d.done }

func (d *Dispatcher) run() {
	defer close(d.done)

	for {
		select {
		case ps := <-d.in.Out():
			d.handle(ps)
		case <-d.stop:
			// drain whatever is already queued before exiting, matching
			// the orchestrator's "exit after draining what is already
			// queued" shutdown contract.
			for {
				select {
				case ps := <-d.in.Out():
					d.handle(ps)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) handle(ps types.ProcessedSample) {
	now := time.Now()
	sensorID := int(ps.Kind)

	d.tr.Record("rtsim", "dispatcher", "ActuatorReceive", float64(sensorID), float64(ps.Seq), 0)

	latencyUs := float64(now.Sub(ps.ProcessedAt).Microseconds())
	d.metrics.PushLatencyUs(latencyUs)
	d.sink.RecordRxLatency(latencyUs)

	target := types.RouteFor(ps.Kind)
	q := d.queues[target]
	if q == nil || !q.TryEnqueue(ps) {
		d.sink.RecordTxDrop()
	}
}
