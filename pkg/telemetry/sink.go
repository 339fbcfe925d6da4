// Package telemetry implements the Telemetry Sink (C1): a single producer
// contract (record_sample/record_jitter/record_proc_miss/record_tx_drop/
// record_rx_latency/record_custom) backed by one of three interchangeable
// internal representations selected once at construction.
//
// Per spec §9's explicit design note, this is ONE struct with a strategy
// tag switched on in every method body, not three types behind an
// interface. Uses the same drop-counted non-blocking queue shape for the lock-free
// ring's bounded/non-blocking/drop-counted shape, and on
// _examples/original_source/src/component_a/sync_manager.rs for the
// construction-time strategy dispatch (see SPEC_FULL.md, Supplemented
// Feature 2).
package telemetry

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/bytebufferpool"

	"rtsim/pkg/logger"
	"rtsim/pkg/rtqueue"
	"rtsim/pkg/types"
)

func sensorName(id int) (string, bool) {
	switch types.SensorKind(id) {
	case types.SensorForce:
		return "force", true
	case types.SensorPosition:
		return "position", true
	case types.SensorTemperature:
		return "temperature", true
	default:
		return "", false
	}
}

// Strategy selects the Sink's internal representation.
type Strategy int

const (
	Mutex Strategy = iota
	Atomics
	Lockfree
)

func (s Strategy) String() string {
	switch s {
	case Mutex:
		return "mutex"
	case Atomics:
		return "atomics"
	case Lockfree:
		return "lockfree"
	default:
		return "unknown"
	}
}

// ParseStrategy parses the config-level sync_strategy string.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "mutex":
		return Mutex, nil
	case "atomics":
		return Atomics, nil
	case "lockfree":
		return Lockfree, nil
	default:
		return Mutex, fmt.Errorf("telemetry: unknown strategy %q", s)
	}
}

// rawLog is one tagged entry pushed through the lock-free ring.
type rawLog struct {
	seq   uint64
	tsUs  int64
	kind  string
	value float64
	extra int
}

// drainState models the lock-free drain worker's lifecycle, spec §4.6.
type drainState int32

const (
	stateIdle drainState = iota
	stateRunning
	stateDraining
	stateStopped
)

// Config configures the Sink regardless of strategy; unused fields for a
// given strategy are ignored.
type Config struct {
	RingCapacity int    // lock-free ring capacity, default 8192
	OutPath      string // lock-free strategy's sync CSV output path
}

// Sink is the Telemetry Sink. Construct with New; the strategy tag is
// immutable thereafter.
type Sink struct {
	strategy Strategy

	// mutex strategy state
	mu          sync.Mutex
	sampleCount map[int]uint64
	jitterSum   map[int]float64
	procMiss    uint64
	txDrop      uint64

	// atomics strategy state
	atomicSamples sync.Map // int -> *atomic.Uint64
	atomicJitter  sync.Map // int -> *atomic.Uint64 (accumulated whole microseconds)
	atomicProc    atomic.Uint64
	atomicDrop    atomic.Uint64

	// lock-free strategy state
	ring       *rtqueue.Queue[rawLog]
	seq        atomic.Uint64
	droppedLog atomic.Uint64
	outPath    string
	state      atomic.Int32
	stopCh     chan struct{}
	doneCh     chan struct{}
	startOnce  sync.Once
}

// New constructs a Sink for the given strategy. cfg is only consulted for
// the lock-free strategy.
func New(strategy Strategy, cfg Config) *Sink {
	s := &Sink{strategy: strategy}
	switch strategy {
	case Mutex:
		s.sampleCount = make(map[int]uint64)
		s.jitterSum = make(map[int]float64)
	case Atomics:
		// sync.Map entries are created lazily on first touch per sensor id.
	case Lockfree:
		cap := cfg.RingCapacity
		if cap <= 0 {
			cap = 8192
		}
		s.ring = rtqueue.New[rawLog](cap)
		s.outPath = cfg.OutPath
		s.stopCh = make(chan struct{})
		s.doneCh = make(chan struct{})
	}
	return s
}

// Strategy reports the sink's selected strategy.
func (s *Sink) Strategy() Strategy { return s.strategy }

// RecordSample records one successful sample from the given sensor id.
func (s *Sink) RecordSample(sensorID int) {
	switch s.strategy {
	case Mutex:
		s.mu.Lock()
		s.sampleCount[sensorID]++
		s.mu.Unlock()
	case Atomics:
		s.counter(&s.atomicSamples, sensorID).Add(1)
	case Lockfree:
		s.push(rawLog{kind: "sample", extra: sensorID})
	}
}

// RecordJitter records a jitter measurement in microseconds for a sensor.
func (s *Sink) RecordJitter(sensorID int, us float64) {
	switch s.strategy {
	case Mutex:
		s.mu.Lock()
		s.jitterSum[sensorID] += us
		s.mu.Unlock()
	case Atomics:
		// Individual counters are independent; no global ordering is
		// required, so whole-microsecond truncation is an acceptable
		// trade-off for a lock-free fetch-add accumulator.
		s.counter(&s.atomicJitter, sensorID).Add(uint64(us))
	case Lockfree:
		s.push(rawLog{kind: "jitter", value: us, extra: sensorID})
	}
}

// RecordProcMiss records a processor-miss (or generic scheduling fault,
// per spec §9's open question) event.
func (s *Sink) RecordProcMiss() {
	switch s.strategy {
	case Mutex:
		s.mu.Lock()
		s.procMiss++
		s.mu.Unlock()
	case Atomics:
		s.atomicProc.Add(1)
	case Lockfree:
		s.push(rawLog{kind: "proc_miss"})
	}
}

// RecordTxDrop records a transmitter/queue backpressure drop.
func (s *Sink) RecordTxDrop() {
	switch s.strategy {
	case Mutex:
		s.mu.Lock()
		s.txDrop++
		s.mu.Unlock()
	case Atomics:
		s.atomicDrop.Add(1)
	case Lockfree:
		s.push(rawLog{kind: "tx_drop"})
	}
}

// RecordRxLatency records end-to-end receive latency in microseconds.
// Only the lock-free strategy keeps per-event traces; other strategies
// silently ignore this call, per spec §4.6.
func (s *Sink) RecordRxLatency(us float64) {
	if s.strategy == Lockfree {
		s.push(rawLog{kind: "rx_latency", value: us})
	}
}

// RecordCustom records a custom diagnostic code (e.g. 100+sensor_id for
// anomalies, 900 for instability). Only the lock-free strategy keeps this.
func (s *Sink) RecordCustom(code int) {
	if s.strategy == Lockfree {
		s.push(rawLog{kind: "custom", extra: code})
	}
}

func (s *Sink) counter(m *sync.Map, key int) *atomic.Uint64 {
	if v, ok := m.Load(key); ok {
		return v.(*atomic.Uint64)
	}
	v, _ := m.LoadOrStore(key, &atomic.Uint64{})
	return v.(*atomic.Uint64)
}

func (s *Sink) push(l rawLog) {
	l.seq = s.seq.Add(1)
	l.tsUs = time.Now().UnixMicro()
	if !s.ring.TryEnqueue(l) {
		s.droppedLog.Add(1)
	}
}

// Snapshot is a consistent point-in-time read of the mutex/atomics
// strategies' aggregate counters, used by dashboard-style collaborators.
type Snapshot struct {
	SampleCount map[int]uint64
	JitterSum   map[int]uint64 // microseconds
	ProcMiss    uint64
	TxDrop      uint64
}

// Snapshot clones the current aggregate state. Valid for Mutex and
// Atomics strategies; returns an empty snapshot for Lockfree (its state
// lives in the exported CSV, not in memory).
func (s *Sink) Snapshot() Snapshot {
	out := Snapshot{SampleCount: map[int]uint64{}, JitterSum: map[int]uint64{}}
	switch s.strategy {
	case Mutex:
		s.mu.Lock()
		for k, v := range s.sampleCount {
			out.SampleCount[k] = v
		}
		for k, v := range s.jitterSum {
			out.JitterSum[k] = uint64(v)
		}
		out.ProcMiss = s.procMiss
		out.TxDrop = s.txDrop
		s.mu.Unlock()
	case Atomics:
		s.atomicSamples.Range(func(k, v any) bool {
			out.SampleCount[k.(int)] = v.(*atomic.Uint64).Load()
			return true
		})
		s.atomicJitter.Range(func(k, v any) bool {
			out.JitterSum[k.(int)] = v.(*atomic.Uint64).Load()
			return true
		})
		out.ProcMiss = s.atomicProc.Load()
		out.TxDrop = s.atomicDrop.Load()
	}
	return out
}

// DroppedLog reports the lock-free strategy's dropped-log counter; zero
// for the other strategies, which never drop (mutex/atomics updates
// always succeed once acquired/CAS'd).
func (s *Sink) DroppedLog() uint64 { return s.droppedLog.Load() }

// StartDrain launches the lock-free strategy's background drain worker.
// No-op for other strategies.
func (s *Sink) StartDrain() {
	if s.strategy != Lockfree {
		return
	}
	s.startOnce.Do(func() {
		s.state.Store(int32(stateRunning))
		go s.drainLoop()
	})
}

func (s *Sink) drainLoop() {
	defer close(s.doneCh)

	f, err := os.Create(s.outPath)
	if err != nil {
		logger.Error("telemetry: failed to open sync CSV", "path", s.outPath, "err", err)
		s.state.Store(int32(stateStopped))
		return
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "seq,ts_epoch_us,age_us,event,value")

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	batchesSinceFlush := 0
	for {
		select {
		case <-s.stopCh:
			s.state.Store(int32(stateDraining))
			s.drainAll(w, bb)
			w.Flush()
			s.state.Store(int32(stateStopped))
			return
		default:
		}

		popped := s.popBatch(w, bb, 256)
		if popped > 0 {
			batchesSinceFlush++
			if batchesSinceFlush >= 8 {
				w.Flush()
				batchesSinceFlush = 0
			}
		} else {
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func (s *Sink) popBatch(w *bufio.Writer, bb *bytebufferpool.ByteBuffer, max int) int {
	n := 0
	for n < max {
		l, ok := s.ring.TryDequeue()
		if !ok {
			break
		}
		writeRow(w, bb, l)
		n++
	}
	return n
}

func (s *Sink) drainAll(w *bufio.Writer, bb *bytebufferpool.ByteBuffer) {
	for {
		l, ok := s.ring.TryDequeue()
		if !ok {
			return
		}
		writeRow(w, bb, l)
	}
}

func writeRow(w *bufio.Writer, bb *bytebufferpool.ByteBuffer, l rawLog) {
	ageUs := time.Now().UnixMicro() - l.tsUs
	event := encodeEvent(l)
	bb.Reset()
	fmt.Fprintf(bb, "%d,%d,%d,%s,%g\n", l.seq, l.tsUs, ageUs, event, l.value)
	w.Write(bb.B)
}

func encodeEvent(l rawLog) string {
	switch l.kind {
	case "sample":
		if name, ok := sensorName(l.extra); ok {
			return name
		}
		return fmt.Sprintf("sensor:%d", l.extra)
	case "jitter":
		return fmt.Sprintf("jitter:%gus@sensor:%d", l.value, l.extra)
	case "proc_miss":
		return "proc_miss"
	case "tx_drop":
		return "tx_drop"
	case "custom":
		return fmt.Sprintf("custom:%d", l.extra)
	case "rx_latency":
		return fmt.Sprintf("rx_latency:%gus", l.value)
	default:
		return l.kind
	}
}

// Stop signals the drain worker to drain and exit, waiting up to grace.
// No-op for non-lockfree strategies or if StartDrain was never called.
func (s *Sink) Stop(grace time.Duration) {
	if s.strategy != Lockfree || s.state.Load() == int32(stateIdle) {
		return
	}
	close(s.stopCh)
	select {
	case <-s.doneCh:
	case <-time.After(grace):
		logger.Warn("telemetry: lockfree drain worker did not exit within grace period")
	}
}
