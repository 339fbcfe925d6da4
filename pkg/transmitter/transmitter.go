// Package transmitter implements the Transmitter (C6): a thin,
// never-blocking façade over the processor->actuator queue with an
// explicit backpressure threshold, distinct from the queue's own
// capacity so the system can shed load before the queue is physically
// full.
package transmitter

import (
	"rtsim/pkg/rtqueue"
	"rtsim/pkg/telemetry"
	"rtsim/pkg/types"
)

// Transmitter hands ProcessedSamples from the processor to the actuator
// dispatcher's shared input queue.
type Transmitter struct {
	out       *rtqueue.Queue[types.ProcessedSample]
	threshold int
	sink      *telemetry.Sink
}

// New constructs a Transmitter. threshold is the queue-length backpressure
// cutoff (default 1024 per spec §4.3).
func New(out *rtqueue.Queue[types.ProcessedSample], threshold int, sink *telemetry.Sink) *Transmitter {
	if threshold <= 0 {
		threshold = 1024
	}
	return &Transmitter{out: out, threshold: threshold, sink: sink}
}

// Transmit attempts to hand off one sample. Never blocks: a queue at or
// beyond the threshold is treated as backpressure and the sample is
// dropped-and-counted without attempting the enqueue.
func (t *Transmitter) Transmit(s types.ProcessedSample) {
	if t.out.Len() >= t.threshold {
		t.sink.RecordTxDrop()
		return
	}
	if !t.out.TryEnqueue(s) {
		t.sink.RecordTxDrop()
	}
}
