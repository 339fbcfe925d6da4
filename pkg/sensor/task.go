// Package sensor implements the Sensor Task (C4): one periodic generator
// per SensorKind, paced with a precision sleep, non-blocking downstream
// enqueue, and full jitter/drop accounting to the Telemetry Sink, Event
// Tracer, and Metrics Buffer.
//
// Follows a periodic polling loop shape (Start/Stop, sync.WaitGroup),
// paced here by a precision sleep rather than a ticker and generalized
// from a single hardware poller to three independently
// paced, parameterized sensor kinds feeding a shared bounded queue.
package sensor

import (
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"rtsim/pkg/affinity"
	"rtsim/pkg/logger"
	"rtsim/pkg/metrics"
	"rtsim/pkg/rtqueue"
	"rtsim/pkg/telemetry"
	"rtsim/pkg/tracer"
	"rtsim/pkg/types"
)

// profile describes a sensor kind's nominal reading and noise band.
type profile struct {
	base      float64
	noiseBand float64
}

var profiles = map[types.SensorKind]profile{
	types.SensorForce:       {base: 100.0, noiseBand: 5.0},
	types.SensorPosition:    {base: 0.0, noiseBand: 2.0},
	types.SensorTemperature: {base: 25.0, noiseBand: 1.0},
}

// Task is one periodic sensor generator.
type Task struct {
	kind   types.SensorKind
	period time.Duration

	out     *rtqueue.Queue[types.SensorSample]
	tr      *tracer.Tracer
	sink    *telemetry.Sink
	metrics *metrics.Buffer

	running atomic.Bool
	seq     uint64
	rng     *rand.Rand

	sharedCore int

	wg sync.WaitGroup
}

// New constructs a sensor task for kind, sampling at period and enqueuing
// onto out. seed gives each task an independent noise stream. sharedCore
// is the configured affinity target (-1 disables pinning).
func New(kind types.SensorKind, period time.Duration, out *rtqueue.Queue[types.SensorSample], tr *tracer.Tracer, sink *telemetry.Sink, m *metrics.Buffer, seed uint64, sharedCore int) *Task {
	t := &Task{
		kind:       kind,
		period:     period,
		out:        out,
		tr:         tr,
		sink:       sink,
		metrics:    m,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		sharedCore: sharedCore,
	}
	t.running.Store(true)
	return t
}

// Start launches the task's loop goroutine.
func (t *Task) Start() {
	t.wg.Add(1)
	go t.run()
}

func pinCurrentThread(sharedCore int, who string) {
	if sharedCore < 0 {
		return
	}
	runtime.LockOSThread()
	if err := affinity.PinToCore(sharedCore); err != nil {
		logger.Warn("affinity pinning refused by host, continuing", "who", who, "core", sharedCore, "err", err)
	}
}

// Stop clears the running flag; the task exits after its next wake.
func (t *Task) Stop() {
	t.running.Store(false)
}

// Wait blocks until the task's goroutine has exited.
func (t *Task) Wait() { t.wg.Wait() }

func (t *Task) run() {
	defer t.wg.Done()
	pinCurrentThread(t.sharedCore, "sensor:"+t.kind.String())

	sensorID := int(t.kind)
	nextDeadline := time.Now().Add(t.period)
	lastTick := time.Now()

	for {
		if !t.running.Load() {
			return
		}

		if t.period <= 0 {
			// A zero period can never be "on time"; every cycle records a
			// scheduling miss per spec §8's boundary behavior.
			t.sink.RecordProcMiss()
			t.metrics.IncMissSensor()
		} else {
			sleepUntil(nextDeadline)
			if time.Now().After(nextDeadline.Add(spinThreshold)) {
				t.sink.RecordProcMiss()
				t.metrics.IncMissSensor()
			}
		}

		now := time.Now()

		if !t.running.Load() {
			return
		}

		t.tr.Record("rtsim", "sensor:"+t.kind.String(), "SensorRelease", float64(sensorID), 0, 0)

		actualPeriod := now.Sub(lastTick)
		lastTick = now
		jitterUs := absUs(actualPeriod - t.period)
		t.metrics.PushJitterUs(jitterUs)
		t.sink.RecordJitter(sensorID, jitterUs)

		p := profiles[t.kind]
		reading := p.base + (t.rng.Float64()*2-1)*p.noiseBand

		sample := types.SensorSample{
			Kind:      t.kind,
			Seq:       t.seq,
			Value:     reading,
			Timestamp: now,
			JitterUs:  jitterUs,
		}

		enqueued := t.out.TryEnqueue(sample)
		if !enqueued {
			t.sink.RecordTxDrop()
		}
		t.tr.Record("rtsim", "sensor:"+t.kind.String(), "SensorSent", boolToF(enqueued), float64(t.out.Len()), 0)

		if enqueued {
			t.pushReading(reading)
			t.sink.RecordSample(sensorID)
		}

		t.seq++
		nextDeadline = nextDeadline.Add(t.period)
	}
}

func (t *Task) pushReading(v float64) {
	switch t.kind {
	case types.SensorForce:
		t.metrics.PushForce(v)
	case types.SensorPosition:
		t.metrics.PushPosition(v)
	case types.SensorTemperature:
		t.metrics.PushTemperature(v)
	}
}

func absUs(d time.Duration) float64 {
	us := float64(d.Microseconds())
	if us < 0 {
		return -us
	}
	return us
}

func boolToF(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
