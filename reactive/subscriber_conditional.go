package reactive

// newConditionalSubscriber builds the same drain engine as the plain
// subscriber (PrefetchSubscriber), but routes emission through the
// downstream's TryOnNext instead of OnNext, so a declined value does not
// consume requested demand. This is the C5 arm of the operator's component
// design: rather than a parallel type hierarchy, it is the same engine
// parameterised over the emit function, as suggested for implementers that
// prefer a tagged variant over polymorphism (see the design notes in
// SPEC_FULL.md's carried-forward §9).
func newConditionalSubscriber[T any](downstream ConditionalSubscriber[T], cfg Config[T]) *PrefetchSubscriber[T] {
	p := &PrefetchSubscriber[T]{
		downstream:   downstream,
		prefetch:     cfg.Prefetch,
		limit:        unboundedOrLimit(cfg.Prefetch, cfg.LowTide),
		requestMode:  cfg.RequestMode,
		queueFactory: cfg.QueueFactory,
		metrics:      cfg.Metrics,
		logger:       logOrNop(cfg.Logger),
		sourceMode:   int32(uninitializedSourceMode),
	}
	p.emit = downstream.TryOnNext
	return p
}
