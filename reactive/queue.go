package reactive

import "go.uber.org/zap"

// Queue is the bounded single-producer/single-consumer FIFO the prefetch
// operator requires from its caller. It is the only storage primitive the
// operator owns when it is not running output-fused against an upstream
// queue it was handed directly.
//
// Implementations must be safe for one concurrent producer (the upstream's
// OnNext, which calls Offer) and one concurrent consumer (whichever goroutine
// currently holds the drain loop and calls Poll/Clear): the operator may
// Offer and Poll from different goroutines at the same time.
type Queue[T any] interface {
	// Offer appends v, returning false if the queue is at capacity.
	Offer(v T) bool
	// Poll removes and returns the oldest value, or the zero value and
	// false if the queue is empty.
	Poll() (T, bool)
	// Clear discards all queued values without invoking any discard hook;
	// callers that need per-element notification iterate with Poll first.
	Clear()
	IsEmpty() bool
	Size() int
}

// QueueFactory constructs a fresh Queue[T] of at least the given capacity
// hint. The prefetch operator calls this once per subscription, unless
// fusion adopts the upstream's own queue instead.
type QueueFactory[T any] func(capacityHint int) Queue[T]

// RequestMode selects when the operator issues its initial request to the
// upstream.
type RequestMode int

const (
	// RequestEager issues Request(prefetch) to the upstream as soon as
	// OnSubscribe completes.
	RequestEager RequestMode = iota
	// RequestLazy defers the initial Request(prefetch) until the downstream
	// has requested demand (the first downstream Request, or the first drain
	// entry that finds outstanding demand), useful when the downstream may cancel before ever
	// requesting and the upstream has side effects on first request.
	RequestLazy
)

// Config configures a Prefetch operator instance (see Prefetch in
// operator.go). The zero value is invalid; set Prefetch and QueueFactory
// explicitly before calling Validate.
type Config[T any] struct {
	// Prefetch is the desired in-flight window size; must be > 0. Use
	// UnboundedPrefetch to request an unbounded upstream window.
	Prefetch int
	// LowTide is the margin subtracted from Prefetch to compute the
	// replenishment threshold (limit = Prefetch - LowTide). Zero selects
	// the default of Prefetch/4. Must be in [0, Prefetch).
	LowTide int
	// QueueFactory builds the bounded queue the operator owns when it is
	// not fusing with the upstream's own queue. Required unless every
	// expected upstream is fuseable.
	QueueFactory QueueFactory[T]
	// RequestMode selects the EAGER or LAZY initial-request policy.
	RequestMode RequestMode
	// Metrics, when non-nil, receives emitted/discarded/overflow/requested
	// counters and a queue-depth gauge. See NewMetrics.
	Metrics *Metrics
	// Logger receives upstream-replenishment diagnostics at Debug and queue
	// overflow events at Warn; discards are not logged. Defaults to a no-op
	// logger.
	Logger *zap.Logger
}

// Validate checks the configuration's invariants, returning a wrapped
// ErrProtocolViolation describing the first problem found.
func (c Config[T]) Validate() error {
	if c.Prefetch <= 0 {
		return protocolViolation("prefetch must be > 0, got %d", c.Prefetch)
	}
	if c.LowTide < 0 || (c.Prefetch != UnboundedPrefetch && c.LowTide >= c.Prefetch) {
		return protocolViolation("lowTide must be in [0, prefetch), got %d for prefetch %d", c.LowTide, c.Prefetch)
	}
	if c.QueueFactory == nil {
		return protocolViolation("queueFactory must not be nil")
	}
	return nil
}
