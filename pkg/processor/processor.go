// Package processor implements the Processor Task (C5): the single
// consumer of the sensor queue. Each cycle drains feedback
// non-blockingly, filters one sample through a per-kind sliding window,
// runs a deterministic busy phase to model computation cost, detects
// statistical anomalies, and hands the filtered result to the
// Transmitter — all within a hard per-cycle deadline.
//
// Follows a worker-loop shape (drain feedback, try-dequeue-or-sleep:
// select on input channel / stop signal, bounded per-item work), adapted
// from a generic op-dispatch loop to a fixed five-phase real-time cycle.
package processor

import (
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"rtsim/pkg/affinity"
	"rtsim/pkg/feedback"
	"rtsim/pkg/logger"
	"rtsim/pkg/metrics"
	"rtsim/pkg/rtqueue"
	"rtsim/pkg/telemetry"
	"rtsim/pkg/tracer"
	"rtsim/pkg/transmitter"
	"rtsim/pkg/types"
)

// Config holds the processor's tunable knobs, all sourced from spec §6.
type Config struct {
	Window        int
	AnomalySigma  float64
	DeadlineUs    int
	BusyPhaseUs   int
	MissConfirmK  int
	NominalPeriod time.Duration
	SharedCore    int
}

// Task is the Processor Task.
type Task struct {
	cfg Config

	in       *rtqueue.Queue[types.SensorSample]
	fb       *feedback.Channel
	transmit *transmitter.Transmitter
	tr       *tracer.Tracer
	sink     *telemetry.Sink
	metrics  *metrics.Buffer

	running atomic.Bool

	windows         map[types.SensorKind]*window
	lastArrival     map[types.SensorKind]time.Time
	anomalyThreshold float64
	consecutiveOverruns int

	overloadLimiter *rate.Limiter

	done chan struct{}
}

// New constructs the Processor Task.
func New(cfg Config, in *rtqueue.Queue[types.SensorSample], fb *feedback.Channel, tx *transmitter.Transmitter, tr *tracer.Tracer, sink *telemetry.Sink, m *metrics.Buffer) *Task {
	t := &Task{
		cfg:              cfg,
		in:               in,
		fb:               fb,
		transmit:         tx,
		tr:               tr,
		sink:             sink,
		metrics:          m,
		windows:          map[types.SensorKind]*window{},
		lastArrival:      map[types.SensorKind]time.Time{},
		anomalyThreshold: cfg.AnomalySigma,
		overloadLimiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		done:             make(chan struct{}),
	}
	t.running.Store(true)
	for _, k := range []types.SensorKind{types.SensorForce, types.SensorPosition, types.SensorTemperature} {
		t.windows[k] = newWindow(cfg.Window)
	}
	return t
}

// Start launches the processor's cycle loop goroutine.
func (t *Task) Start() { go t.run() }

// Stop clears the running flag; the loop exits after observing an empty
// input queue on its next try-receive.
func (t *Task) Stop() { t.running.Store(false) }

// Wait blocks until the loop has exited.
func (t *Task) Wait() { <-t.done }

// AnomalyThreshold reports the current (possibly feedback-mutated) sigma,
// exposed for tests and for the sweep summary.
func (t *Task) AnomalyThreshold() float64 { return t.anomalyThreshold }

func (t *Task) run() {
	defer close(t.done)

	if t.cfg.SharedCore >= 0 {
		runtime.LockOSThread()
		if err := affinity.PinToCore(t.cfg.SharedCore); err != nil {
			logger.Warn("affinity pinning refused by host, continuing", "who", "processor", "core", t.cfg.SharedCore, "err", err)
		}
	}

	for {
		t.drainFeedback()

		sample, ok := t.in.TryDequeue()
		if !ok {
			if !t.running.Load() {
				return
			}
			time.Sleep(50 * time.Microsecond)
			continue
		}

		t.cycle(sample)

		if !t.running.Load() {
			// drain what's left of this wake before exiting, then stop;
			// next TryDequeue miss above will return.
		}
	}
}

func (t *Task) drainFeedback() {
	t.fb.DrainAll(func(msg types.FeedbackMsg) {
		switch {
		case msg.Kind == types.FeedbackError && msg.ErrCode == types.ErrUnstableSensor:
			t.anomalyThreshold *= 1.10
		case msg.Kind == types.FeedbackError && msg.ErrCode == types.ErrDeadlineMiss:
			t.anomalyThreshold *= 0.95
		case msg.Kind == types.FeedbackAck:
			if t.anomalyThreshold > 1.5 {
				t.anomalyThreshold *= 0.999
			}
		}
	})
}

func (t *Task) cycle(sample types.SensorSample) {
	cycleStart := time.Now()
	sensorID := int(sample.Kind)

	nominal := t.cfg.NominalPeriod
	if last, ok := t.lastArrival[sample.Kind]; ok && nominal > 0 {
		arrivalJitterUs := absUs(cycleStart.Sub(last) - nominal)
		t.sink.RecordJitter(sensorID, arrivalJitterUs)
	}
	t.lastArrival[sample.Kind] = cycleStart

	w := t.windows[sample.Kind]
	w.push(sample.Value)
	avg := w.mean()
	t.pushAvg(sample.Kind, avg)

	busySpinUs(t.cfg.BusyPhaseUs)

	s := w.stddev()
	anomaly := s > 0 && absF(sample.Value-avg) > t.anomalyThreshold*s
	if anomaly {
		t.sink.RecordCustom(100 + sensorID)
	}

	t.tr.Record("rtsim", "processor", "SensorProcessed", float64(sensorID), sample.Value, avg)

	ps := types.ProcessedSample{
		Kind:        sample.Kind,
		Seq:         sample.Seq,
		Raw:         sample.Value,
		Filtered:    avg,
		Anomaly:     anomaly,
		SampledAt:   sample.Timestamp,
		ProcessedAt: cycleStart,
	}
	t.transmit.Transmit(ps)

	elapsed := time.Since(cycleStart)
	elapsedUs := float64(elapsed.Microseconds())
	t.metrics.PushLatencyUs(elapsedUs)
	t.metrics.IncTotalCycles()

	if int(elapsed.Microseconds()) > t.cfg.DeadlineUs {
		t.metrics.IncMissProcessor()
		t.sink.RecordProcMiss()
		t.consecutiveOverruns++
		k := t.cfg.MissConfirmK
		if k <= 0 {
			k = 3
		}
		if t.consecutiveOverruns >= k && t.overloadLimiter.Allow() {
			logOverload(t.consecutiveOverruns)
		}
	} else {
		t.consecutiveOverruns = 0
	}
}

func (t *Task) pushAvg(kind types.SensorKind, avg float64) {
	switch kind {
	case types.SensorForce:
		t.metrics.PushForce(avg)
	case types.SensorPosition:
		t.metrics.PushPosition(avg)
	case types.SensorTemperature:
		t.metrics.PushTemperature(avg)
	}
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func absUs(d time.Duration) float64 {
	us := float64(d.Microseconds())
	if us < 0 {
		return -us
	}
	return us
}
