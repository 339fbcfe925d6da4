package actuator

import (
	"time"

	"rtsim/pkg/affinity"
	"rtsim/pkg/feedback"
	"rtsim/pkg/logger"
	"rtsim/pkg/metrics"
	"rtsim/pkg/rtqueue"
	"rtsim/pkg/telemetry"
	"rtsim/pkg/tracer"
	"rtsim/pkg/types"
)

// WorkerConfig holds the cross-worker tunables sourced from spec §6.
type WorkerConfig struct {
	DeadlineUs     int // D_act, default 2000
	FeedbackDeadlineUs int // default 500
}

// Worker is one Actuator Worker (C8): an independent high-priority loop
// owning its bounded input queue and PID instance.
type Worker struct {
	spec WorkerSpec
	cfg  WorkerConfig

	in      *rtqueue.Queue[types.ProcessedSample]
	pid     *PID
	fb      *feedback.Channel
	tr      *tracer.Tracer
	sink    *telemetry.Sink
	metrics *metrics.Buffer

	lastUpdate    time.Time
	actuatorState float64
	initialized   bool
	lastSetpoint  float64

	stop chan struct{}
	done chan struct{}
}

// NewWorker constructs an actuator worker.
func NewWorker(spec WorkerSpec, cfg WorkerConfig, in *rtqueue.Queue[types.ProcessedSample], fb *feedback.Channel, tr *tracer.Tracer, sink *telemetry.Sink, m *metrics.Buffer) *Worker {
	if cfg.DeadlineUs <= 0 {
		cfg.DeadlineUs = 2000
	}
	if cfg.FeedbackDeadlineUs <= 0 {
		cfg.FeedbackDeadlineUs = 500
	}
	return &Worker{
		spec:    spec,
		cfg:     cfg,
		in:      in,
		pid:     NewPID(spec.Kp, spec.Ki, spec.Kd, spec.Setpoint, spec.OutputMin, spec.OutputMax),
		fb:      fb,
		tr:      tr,
		sink:    sink,
		metrics: m,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the worker loop, first requesting elevated scheduling
// priority (best-effort; see pkg/affinity).
func (w *Worker) Start() { go w.run() }

// Stop signals the loop to exit after draining what is already queued.
func (w *Worker) Stop() { close(w.stop) }

// Wait blocks until the loop has exited.
func (w *Worker) Wait() { <-w.done }

func (w *Worker) run() {
	defer close(w.done)

	if err := affinity.RequestMaxPriority(); err != nil {
		logger.Warn("priority elevation refused by host, continuing", "who", w.spec.Kind.String(), "err", err)
	}

	w.lastUpdate = time.Now()

	for {
		select {
		case ps := <-w.in.Out():
			w.cycle(ps)
		case <-w.stop:
			for {
				select {
				case ps := <-w.in.Out():
					w.cycle(ps)
				default:
					return
				}
			}
		}
	}
}

func (w *Worker) cycle(ps types.ProcessedSample) {
	cycleStart := time.Now()

	dt := cycleStart.Sub(w.lastUpdate)
	if dt < time.Microsecond {
		dt = time.Microsecond
	}
	if dt > 50*time.Millisecond {
		dt = 50 * time.Millisecond
	}
	w.lastUpdate = cycleStart

	if absF(ps.Raw-ps.Filtered) > 10.0 {
		w.emitFeedback(cycleStart, types.FeedbackError, 0, types.ErrUnstableSensor, ps.Seq)
		w.sink.RecordCustom(900)
	}

	if !w.initialized || w.lastSetpoint != w.spec.Setpoint {
		if err := w.pid.Reconfigure(w.spec.Setpoint); err != nil {
			w.emitFeedback(cycleStart, types.FeedbackError, 0, types.ErrPIDConfigFailed, ps.Seq)
		}
		w.lastSetpoint = w.spec.Setpoint
		w.initialized = true
	}

	control := w.pid.Compute(ps.Filtered, dt)

	w.actuatorState += control
	w.pushState(w.actuatorState)

	execUs := float64(time.Since(cycleStart).Microseconds())
	w.tr.Record("rtsim", "actuator:"+w.spec.Kind.String(), "ControllerComplete", control, execUs, float64(ps.Seq))

	elapsed := time.Since(cycleStart)
	if int(elapsed.Microseconds()) > w.cfg.DeadlineUs {
		w.sink.RecordProcMiss()
		w.metrics.RecordDeadlineMiss("actuator")
		w.emitFeedback(cycleStart, types.FeedbackError, 0, types.ErrDeadlineMiss, ps.Seq)
	}

	if elapsed.Microseconds() <= int64(w.cfg.FeedbackDeadlineUs) {
		w.emitFeedback(cycleStart, types.FeedbackAck, 0, "", ps.Seq)
		w.emitFeedback(cycleStart, types.FeedbackActuatorState, w.actuatorState, "", ps.Seq)
	} else {
		w.emitFeedback(cycleStart, types.FeedbackError, 0, types.ErrDeadlineMiss, ps.Seq)
	}
}

// emitFeedback sends one feedback message, overriding its kind with
// Error(feedback_deadline_miss) if the time since actuation-start exceeds
// the feedback latency budget, per spec §4.5's final paragraph.
func (w *Worker) emitFeedback(actuationStart time.Time, kind types.FeedbackKind, state float64, errCode string, seq uint64) {
	sinceStart := time.Since(actuationStart)
	if int(sinceStart.Microseconds()) > w.cfg.FeedbackDeadlineUs {
		kind = types.FeedbackError
		errCode = types.ErrFeedbackDeadline
	}
	msg := types.FeedbackMsg{
		Actuator:  w.spec.Kind,
		Kind:      kind,
		State:     state,
		ErrCode:   errCode,
		Seq:       seq,
		EmittedAt: time.Now(),
	}
	w.fb.TrySend(msg)
}

func (w *Worker) pushState(v float64) {
	switch w.spec.Kind {
	case types.ActuatorGripper:
		w.metrics.PushGripper(v)
	case types.ActuatorMotor:
		w.metrics.PushMotor(v)
	case types.ActuatorStabiliser:
		w.metrics.PushStabiliser(v)
	}
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
