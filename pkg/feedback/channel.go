// Package feedback implements the Feedback Channel (C9): a bounded,
// one-way, many-producer/single-consumer channel from actuator workers
// back to the processor task, closing the control loop. Thin wrapper
// around rtqueue so the processor's non-blocking drain and the actuator
// workers' try-send share the exact same bounded/drop-on-full semantics
// as the rest of the pipeline.
package feedback

import (
	"rtsim/pkg/rtqueue"
	"rtsim/pkg/types"
)

// Capacity is the feedback channel's fixed capacity, spec §4.9.
const Capacity = 64

// Channel is the bounded feedback channel.
type Channel struct {
	q *rtqueue.Queue[types.FeedbackMsg]
}

// New constructs the feedback channel.
func New() *Channel {
	return &Channel{q: rtqueue.New[types.FeedbackMsg](Capacity)}
}

// TrySend attempts a non-blocking send, used by actuator workers. Silently
// drops on full, per spec's RT-safety requirement.
func (c *Channel) TrySend(msg types.FeedbackMsg) bool {
	return c.q.TryEnqueue(msg)
}

// DrainAll consumes every currently queued message without blocking,
// invoking fn for each. Used by the processor's per-cycle feedback drain;
// must never wait on an empty channel (spec §3 invariant).
func (c *Channel) DrainAll(fn func(types.FeedbackMsg)) int {
	n := 0
	for {
		msg, ok := c.q.TryDequeue()
		if !ok {
			return n
		}
		fn(msg)
		n++
	}
}

// Dropped reports how many TrySend calls were rejected for a full channel.
func (c *Channel) Dropped() uint64 { return c.q.Dropped() }
