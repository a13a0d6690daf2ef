package object

import "sync/atomic"

// Clock is the monotonic logical clock lifecycle events are stamped
// with. Sequence numbers, never wall-clock timestamps: orderings must
// be deterministic and replayable in tests.
//
// Thread-safety: safe for concurrent use (atomic operations).
type Clock interface {
	// Next returns the next sequence number and advances the clock.
	Next() int64

	// Current returns the current sequence number without advancing.
	Current() int64
}

// SeqClock is the default Clock: a strictly increasing atomic counter.
type SeqClock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *SeqClock {
	return &SeqClock{}
}

// NewClockAt creates a clock starting at a specific sequence number.
func NewClockAt(start int64) *SeqClock {
	c := &SeqClock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
// Each call returns a unique, increasing value.
func (c *SeqClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *SeqClock) Current() int64 {
	return c.seq.Load()
}
