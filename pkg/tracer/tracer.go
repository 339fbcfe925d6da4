// Package tracer implements the Event Tracer: a single lock-free ring of
// lifecycle events with relative-ns timestamps and a background CSV
// exporter. Kept separate from the telemetry sink so raw lifecycle events
// are always available regardless of which sync strategy is under study,
// per spec §4.7/§9 ("Global state" / "Pluggable sync strategy" notes).
//
// Follows a background-writer-goroutine
// pattern (a channel drained by one goroutine into a file) and
// pkg/ingest.Queue's bounded, non-blocking, drop-counted channel, here
// specialized to a fixed-size ring of RawEvent rows.
package tracer

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

const ringCapacity = 16384

// Tracer is not a singleton: the orchestrator constructs one and hands
// every worker its handle explicitly (spec §9, "Global state").
type Tracer struct {
	start   time.Time
	ring    *rtqueue.Queue[types.RawEvent]
	seq     uint64
	dropped uint64

	cpuLoadThreads int
	outPath        string

	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	started bool
}

// New constructs a Tracer. outPath is the CSV file the background exporter
// writes to; cpuLoadThreads is recorded in the file's comment header only
// (the stressor itself is out of core scope, see SPEC_FULL.md).
func New(outPath string, cpuLoadThreads int) *Tracer {
	return &Tracer{
		start:          time.Now(),
		ring:           rtqueue.New[types.RawEvent](ringCapacity),
		cpuLoadThreads: cpuLoadThreads,
		outPath:        outPath,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// NowNs returns nanoseconds elapsed since the tracer was constructed.
func (t *Tracer) NowNs() int64 { return time.Since(t.start).Nanoseconds() }

// Record pushes one event onto the ring, non-blocking. On overflow the
// event is silently dropped and the drop counter incremented; a full trace
// ring must never perturb the caller's real-time cycle.
func (t *Tracer) Record(pipeline, component, event string, f1, f2, f3 float64) {
	seq := atomic.AddUint64(&t.seq, 1)
	e := types.RawEvent{
		Seq:       seq,
		Pipeline:  pipeline,
		Component: component,
		Event:     event,
		TsNs:      t.NowNs(),
		Field1:    f1,
		Field2:    f2,
		Field3:    f3,
	}
	if !t.ring.TryEnqueue(e) {
		atomic.AddUint64(&t.dropped, 1)
	}
}

// Dropped reports the number of events dropped due to a full ring.
func (t *Tracer) Dropped() uint64 { return atomic.LoadUint64(&t.dropped) }

// StartExporter launches the background CSV exporter goroutine. Safe to
// call once; subsequent calls are no-ops.
func (t *Tracer) StartExporter() {
	t.once.Do(func() {
		t.started = true
		go t.exportLoop()
	})
}

func (t *Tracer) exportLoop() {
	defer close(t.done)

	f, err := os.Create(t.outPath)
	if err != nil {
		logger.Error("tracer: failed to open export file", "path", t.outPath, "err", err)
		return
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()

	fmt.Fprintf(w, "# cpu_load_threads=%d\n", t.cpuLoadThreads)
	fmt.Fprintln(w, "seq,pipeline,component,event,ts_ns,field1,field2,field3")

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	for {
		select {
		case <-t.stop:
			t.drainAll(w, bb)
			return
		default:
		}

		e, ok := t.ring.TryDequeue()
		if !ok {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		writeRow(w, bb, e)
	}
}

// drainAll pops every remaining queued event before exiting, matching the
// lock-free drain worker's "pop-all, flush, exit" shutdown phase.
func (t *Tracer) drainAll(w *bufio.Writer, bb *bytebufferpool.ByteBuffer) {
	for {
		e, ok := t.ring.TryDequeue()
		if !ok {
			return
		}
		writeRow(w, bb, e)
	}
}

func writeRow(w *bufio.Writer, bb *bytebufferpool.ByteBuffer, e types.RawEvent) {
	bb.Reset()
	fmt.Fprintf(bb, "%d,%s,%s,%s,%d,%g,%g,%g\n",
		e.Seq, e.Pipeline, e.Component, e.Event, e.TsNs, e.Field1, e.Field2, e.Field3)
	w.Write(bb.B)
}

// Stop signals the exporter to drain and exit, then waits for it (with a
// grace deadline) before returning. Calling Stop before StartExporter is a
// no-op.
func (t *Tracer) Stop(grace time.Duration) {
	if !t.started {
		return
	}
	close(t.stop)
	select {
	case <-t.done:
	case <-time.After(grace):
		logger.Warn("tracer: exporter did not exit within grace period")
	}
}
