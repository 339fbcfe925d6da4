// Package orchestrator implements the Orchestrator (C10): it constructs
// every other component, wires the pipeline queues between them, owns the
// run/shutdown lifecycle, and performs an ordered graceful shutdown.
//
// Follows a construct-wire-start-signal-wait-shutdown sequencing
// (config -> logger -> stores -> servers -> signal handler -> graceful
// stop) and pkg/shutdown's signal-to-context wiring, generalized from a
// single HTTP server's lifecycle to ten cooperating pipeline components.
package orchestrator

import (
	"context"
	"path/filepath"
	"time"

	"rtsim/pkg/actuator"
	"rtsim/pkg/config"
	"rtsim/pkg/feedback"
	"rtsim/pkg/logger"
	"rtsim/pkg/metrics"
	"rtsim/pkg/processor"
	"rtsim/pkg/rtqueue"
	"rtsim/pkg/sensor"
	"rtsim/pkg/telemetry"
	"rtsim/pkg/tracer"
	"rtsim/pkg/transmitter"
	"rtsim/pkg/types"
)

// Orchestrator owns every component's handle for the duration of one run.
type Orchestrator struct {
	cfg config.Config

	tracer    *tracer.Tracer
	sink      *telemetry.Sink
	metrics   *metrics.Buffer
	feedback  *feedback.Channel

	sensorQueue    *rtqueue.Queue[types.SensorSample]
	processorQueue *rtqueue.Queue[types.ProcessedSample]
	actuatorQueues map[types.ActuatorKind]*rtqueue.Queue[types.ProcessedSample]

	sensors    []*sensor.Task
	proc       *processor.Task
	dispatcher *actuator.Dispatcher
	workers    []*actuator.Worker
}

// New constructs the Orchestrator and every component it owns, wiring the
// pipeline queues named in spec §4.10. Nothing is started yet.
func New(cfg config.Config) *Orchestrator {
	strategy, err := telemetry.ParseStrategy(cfg.SyncStrategy)
	if err != nil {
		logger.Warn("invalid sync strategy, defaulting to mutex", "err", err)
		strategy = telemetry.Mutex
	}

	o := &Orchestrator{cfg: cfg}
	o.tracer = tracer.New(filepath.Join(cfg.OutputDir, "events.csv"), cfg.CPULoadThreads)
	o.sink = telemetry.New(strategy, telemetry.Config{
		RingCapacity: cfg.LockfreeRingCapacity,
		OutPath:      filepath.Join(cfg.OutputDir, "sync.csv"),
	})
	o.metrics = metrics.New(cfg.CPULoadThreads)
	o.feedback = feedback.New()

	o.sensorQueue = rtqueue.New[types.SensorSample](cfg.SensorQueueCapacity)
	o.processorQueue = rtqueue.New[types.ProcessedSample](cfg.ProcessorQueueCapacity)
	o.actuatorQueues = map[types.ActuatorKind]*rtqueue.Queue[types.ProcessedSample]{}
	for _, spec := range actuator.Specs {
		capacity := cfg.ActuatorQueueCapacity
		if capacity <= 0 {
			capacity = spec.QueueCapacity
		}
		o.actuatorQueues[spec.Kind] = rtqueue.New[types.ProcessedSample](capacity)
	}

	tx := transmitter.New(o.processorQueue, cfg.TransmitDropThreshold, o.sink)

	o.proc = processor.New(processor.Config{
		Window:        cfg.ProcessorWindow,
		AnomalySigma:  cfg.AnomalySigma,
		DeadlineUs:    cfg.ProcessorDeadlineUs,
		BusyPhaseUs:   cfg.BusyPhaseUs,
		MissConfirmK:  cfg.MissConfirmK,
		NominalPeriod: cfg.SensorPeriod.Duration(),
		SharedCore:    cfg.SharedCore,
	}, o.sensorQueue, o.feedback, tx, o.tracer, o.sink, o.metrics)

	o.dispatcher = actuator.NewDispatcher(o.processorQueue, o.actuatorQueues, o.tracer, o.sink, o.metrics)

	for _, spec := range actuator.Specs {
		w := actuator.NewWorker(spec, actuator.WorkerConfig{
			DeadlineUs:         cfg.ActuatorDeadlineUs,
			FeedbackDeadlineUs: cfg.FeedbackDeadlineUs,
		}, o.actuatorQueues[spec.Kind], o.feedback, o.tracer, o.sink, o.metrics)
		o.workers = append(o.workers, w)
	}

	kinds := []types.SensorKind{types.SensorForce, types.SensorPosition, types.SensorTemperature}
	for i, k := range kinds {
		s := sensor.New(k, cfg.SensorPeriod.Duration(), o.sensorQueue, o.tracer, o.sink, o.metrics, uint64(i+1), cfg.SharedCore)
		o.sensors = append(o.sensors, s)
	}

	return o
}

// Run starts every component, runs for the configured duration (or until
// ctx is canceled, whichever comes first), then performs an ordered
// shutdown: upstream sensor senders first, then the processor, then the
// dispatcher, then the actuator workers, then the tracer and telemetry
// drain — mirroring spec §4.10's upstream-to-downstream teardown order.
func (o *Orchestrator) Run(ctx context.Context) {
	o.tracer.StartExporter()
	o.sink.StartDrain()

	for _, s := range o.sensors {
		s.Start()
	}
	o.proc.Start()
	o.dispatcher.Start()
	for _, w := range o.workers {
		w.Start()
	}

	timer := time.NewTimer(o.cfg.Duration.Duration())
	defer timer.Stop()

	select {
	case <-timer.C:
		logger.Info("simulation duration elapsed")
	case <-ctx.Done():
		logger.Info("shutdown requested")
	}

	o.Shutdown()
}

// Shutdown tears every component down in upstream-to-downstream order and
// writes the sweep summary CSV. Safe to call once.
func (o *Orchestrator) Shutdown() {
	for _, s := range o.sensors {
		s.Stop()
	}
	for _, s := range o.sensors {
		s.Wait()
	}

	o.proc.Stop()
	o.proc.Wait()

	o.dispatcher.Stop()
	o.dispatcher.Wait()

	for _, w := range o.workers {
		w.Stop()
	}
	for _, w := range o.workers {
		w.Wait()
	}

	o.tracer.Stop(2 * time.Second)
	o.sink.Stop(2 * time.Second)

	summaryPath := filepath.Join(o.cfg.OutputDir, "sweep_summary.csv")
	if err := o.metrics.WriteSweepSummaryCSV(summaryPath); err != nil {
		logger.Error("failed to write sweep summary", "err", err)
	}
}

// Metrics exposes the Metrics Buffer for callers that want a live
// snapshot without waiting for shutdown (e.g. tests).
func (o *Orchestrator) Metrics() *metrics.Buffer { return o.metrics }
