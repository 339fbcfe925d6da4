// Package metrics implements the Metrics Buffer (C3): a single
// mutex-protected aggregate of bounded rings and scalar counters, plus a
// parallel Prometheus view for an external dashboard collaborator (never
// read by the hot real-time path itself).
//
// Uses a compact metrics-snapshot struct shape
// and cmd/progressdb/main.go's prometheus/client_golang wiring, generalized
// from a single embedded-DB metrics snapshot to the pipeline's eight
// bounded rings.
package metrics

import (
	"fmt"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"rtsim/pkg/logger"
)

const ringCapacity = 1000

// ring is a fixed-capacity FIFO of float64 samples; oldest is evicted
// before insert once full, per spec §3's MetricsBuffer invariant.
type ring struct {
	data []float64
	cap  int
}

func newRing(cap int) *ring { return &ring{data: make([]float64, 0, cap), cap: cap} }

func (r *ring) push(v float64) {
	if len(r.data) >= r.cap {
		r.data = append(r.data[:0], r.data[1:]...)
	}
	r.data = append(r.data, v)
}

func (r *ring) snapshot() []float64 {
	out := make([]float64, len(r.data))
	copy(out, r.data)
	return out
}

// Buffer is the Metrics Buffer. All fields are guarded by mu.
type Buffer struct {
	mu sync.Mutex

	force       *ring
	position    *ring
	temperature *ring
	gripper     *ring
	motor       *ring
	stabiliser  *ring
	latencyUs   *ring
	jitterUs    *ring

	missSensor       uint64
	missProcessor    uint64
	missActuator     uint64
	deadlineMissTot  uint64
	totalCycles      uint64
	cpuLoadThreads   int

	reg *prometheus.Registry

	promMissSensor    prometheus.Counter
	promMissProcessor prometheus.Counter
	promMissActuator  prometheus.Counter
	promDeadlineMiss  prometheus.Counter
	promTotalCycles   prometheus.Counter
	promLatency       prometheus.Gauge
	promJitter        prometheus.Gauge
}

// New constructs a Buffer and registers its Prometheus view. cpuLoadThreads
// is the configured background-contention level, recorded as a constant
// scalar per spec §3/§6.
func New(cpuLoadThreads int) *Buffer {
	b := &Buffer{
		force:          newRing(ringCapacity),
		position:       newRing(ringCapacity),
		temperature:    newRing(ringCapacity),
		gripper:        newRing(ringCapacity),
		motor:          newRing(ringCapacity),
		stabiliser:     newRing(ringCapacity),
		latencyUs:      newRing(ringCapacity),
		jitterUs:       newRing(ringCapacity),
		cpuLoadThreads: cpuLoadThreads,
		reg:            prometheus.NewRegistry(),
	}
	b.promMissSensor = prometheus.NewCounter(prometheus.CounterOpts{Name: "rtsim_miss_sensor_total", Help: "sensor scheduling misses"})
	b.promMissProcessor = prometheus.NewCounter(prometheus.CounterOpts{Name: "rtsim_miss_processor_total", Help: "processor deadline misses"})
	b.promMissActuator = prometheus.NewCounter(prometheus.CounterOpts{Name: "rtsim_miss_actuator_total", Help: "actuator deadline misses"})
	b.promDeadlineMiss = prometheus.NewCounter(prometheus.CounterOpts{Name: "rtsim_deadline_miss_total", Help: "aggregate deadline misses across all components"})
	b.promTotalCycles = prometheus.NewCounter(prometheus.CounterOpts{Name: "rtsim_total_cycles", Help: "processor cycles completed"})
	b.promLatency = prometheus.NewGauge(prometheus.GaugeOpts{Name: "rtsim_latency_us", Help: "most recent end-to-end latency, microseconds"})
	b.promJitter = prometheus.NewGauge(prometheus.GaugeOpts{Name: "rtsim_jitter_us", Help: "most recent sample jitter, microseconds"})
	b.reg.MustRegister(b.promMissSensor, b.promMissProcessor, b.promMissActuator, b.promDeadlineMiss, b.promTotalCycles, b.promLatency, b.promJitter)
	return b
}

// Registry exposes the Prometheus registry for an external collaborator
// (e.g. an HTTP /metrics handler) to mount; the core never scrapes it.
func (b *Buffer) Registry() *prometheus.Registry { return b.reg }

// locked runs fn under mu, recovering a panic so a single faulty writer
// can never wedge the buffer for the rest of the run (spec §7's mutex
// poisoning tolerance via "unwrap-into-inner" semantics).
func (b *Buffer) locked(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("metrics: recovered panic mid-update, buffer remains usable", "panic", r)
		}
	}()
	fn()
}

func (b *Buffer) PushForce(v float64)       { b.locked(func() { b.force.push(v) }) }
func (b *Buffer) PushPosition(v float64)    { b.locked(func() { b.position.push(v) }) }
func (b *Buffer) PushTemperature(v float64) { b.locked(func() { b.temperature.push(v) }) }
func (b *Buffer) PushGripper(v float64)     { b.locked(func() { b.gripper.push(v) }) }
func (b *Buffer) PushMotor(v float64)       { b.locked(func() { b.motor.push(v) }) }
func (b *Buffer) PushStabiliser(v float64)  { b.locked(func() { b.stabiliser.push(v) }) }

func (b *Buffer) PushLatencyUs(v float64) {
	b.locked(func() { b.latencyUs.push(v) })
	b.promLatency.Set(v)
}

func (b *Buffer) PushJitterUs(v float64) {
	b.locked(func() { b.jitterUs.push(v) })
	b.promJitter.Set(v)
}

func (b *Buffer) IncMissSensor() {
	b.locked(func() { b.missSensor++; b.deadlineMissTot++ })
	b.promMissSensor.Inc()
	b.promDeadlineMiss.Inc()
}

func (b *Buffer) IncMissProcessor() {
	b.locked(func() { b.missProcessor++; b.deadlineMissTot++ })
	b.promMissProcessor.Inc()
	b.promDeadlineMiss.Inc()
}

func (b *Buffer) IncMissActuator() {
	b.locked(func() { b.missActuator++; b.deadlineMissTot++ })
	b.promMissActuator.Inc()
	b.promDeadlineMiss.Inc()
}

func (b *Buffer) IncTotalCycles() {
	b.locked(func() { b.totalCycles++ })
	b.promTotalCycles.Inc()
}

// RecordDeadlineMiss increments the per-component counter named by
// component ("sensor", "processor", "actuator"); each of those, in turn,
// also bumps the aggregate deadline_miss counter, so C3.deadline_miss ==
// C3.miss_sensor + C3.miss_processor + C3.miss_actuator always holds
// regardless of whether a call site uses this dispatcher or the
// per-component Inc methods directly.
func (b *Buffer) RecordDeadlineMiss(component string) {
	switch component {
	case "sensor":
		b.IncMissSensor()
	case "processor":
		b.IncMissProcessor()
	case "actuator":
		b.IncMissActuator()
	}
}

// Counters is a point-in-time copy of the buffer's scalar counters.
type Counters struct {
	MissSensor      uint64
	MissProcessor   uint64
	MissActuator    uint64
	DeadlineMissTot uint64
	TotalCycles     uint64
	CPULoadThreads  int
}

// Snapshot returns the current scalar counters.
func (b *Buffer) Snapshot() Counters {
	var c Counters
	b.locked(func() {
		c = Counters{
			MissSensor:      b.missSensor,
			MissProcessor:   b.missProcessor,
			MissActuator:    b.missActuator,
			DeadlineMissTot: b.deadlineMissTot,
			TotalCycles:     b.totalCycles,
			CPULoadThreads:  b.cpuLoadThreads,
		}
	})
	return c
}

// Rings is a point-in-time copy of every bounded ring.
type Rings struct {
	Force, Position, Temperature []float64
	Gripper, Motor, Stabiliser   []float64
	LatencyUs, JitterUs          []float64
}

func (b *Buffer) RingsSnapshot() Rings {
	var r Rings
	b.locked(func() {
		r = Rings{
			Force:       b.force.snapshot(),
			Position:    b.position.snapshot(),
			Temperature: b.temperature.snapshot(),
			Gripper:     b.gripper.snapshot(),
			Motor:       b.motor.snapshot(),
			Stabiliser:  b.stabiliser.snapshot(),
			LatencyUs:   b.latencyUs.snapshot(),
			JitterUs:    b.jitterUs.snapshot(),
		}
	})
	return r
}

// DeadlineMissRate returns deadline_miss_total / total_cycles, or 0 when no
// cycles have completed yet. A pure read, used by the sweep summary and by
// an external report generator; never consulted by the real-time path.
func (b *Buffer) DeadlineMissRate() float64 {
	c := b.Snapshot()
	if c.TotalCycles == 0 {
		return 0
	}
	return float64(c.DeadlineMissTot) / float64(c.TotalCycles)
}

// SweepSummary is the one-line summary row described in spec.md §6,
// grounded on _examples/original_source/src/utils/metrics_export.rs (see
// SPEC_FULL.md, Supplemented Feature 1).
type SweepSummary struct {
	CPULoadThreads    int
	DeadlineMiss      uint64
	TotalCycles       uint64
	DeadlineMissRate  float64
	MaxJitterUs       float64
	AvgLatencyUs      float64
}

func (b *Buffer) SweepSummary() SweepSummary {
	c := b.Snapshot()
	rings := b.RingsSnapshot()
	return SweepSummary{
		CPULoadThreads:   c.CPULoadThreads,
		DeadlineMiss:     c.DeadlineMissTot,
		TotalCycles:      c.TotalCycles,
		DeadlineMissRate: b.DeadlineMissRate(),
		MaxJitterUs:      max(rings.JitterUs),
		AvgLatencyUs:     avg(rings.LatencyUs),
	}
}

// WriteSweepSummaryCSV writes the one-line sweep summary row to path,
// header included, per spec.md §6's stable schema.
func (b *Buffer) WriteSweepSummaryCSV(path string) error {
	s := b.SweepSummary()
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("metrics: write sweep summary: %w", err)
	}
	defer f.Close()
	fmt.Fprintln(f, "cpu_load_threads,deadline_miss,total_cycles,deadline_miss_rate,max_jitter_us,avg_latency_us")
	fmt.Fprintf(f, "%d,%d,%d,%g,%g,%g\n", s.CPULoadThreads, s.DeadlineMiss, s.TotalCycles, s.DeadlineMissRate, s.MaxJitterUs, s.AvgLatencyUs)
	return nil
}

func max(xs []float64) float64 {
	var m float64
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	return m
}

func avg(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
