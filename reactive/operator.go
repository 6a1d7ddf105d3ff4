package reactive

// Prefetch wraps source with the prefetch operator described in this
// package: a bounded in-flight window decoupling the upstream's pace from
// the downstream's, with full backpressure. It is the sole entry point into
// this package (C6 in the operator's component breakdown) — everything else
// here is an implementation detail of the returned Publisher.
//
// cfg is validated on every Subscribe call; an invalid
// cfg causes the returned Publisher's Subscribe to deliver OnSubscribe
// followed immediately by OnError, never panicking.
func Prefetch[T any](source Publisher[T], cfg Config[T]) Publisher[T] {
	return &operator[T]{source: source, cfg: cfg}
}

type operator[T any] struct {
	source Publisher[T]
	cfg    Config[T]
}

func (o *operator[T]) Subscribe(downstream Subscriber[T]) {
	if err := o.cfg.Validate(); err != nil {
		downstream.OnSubscribe(noopSubscription{})
		downstream.OnError(err)
		return
	}

	if cond, ok := downstream.(ConditionalSubscriber[T]); ok {
		o.source.Subscribe(newConditionalSubscriber[T](cond, o.cfg))
		return
	}
	o.source.Subscribe(newPlainSubscriber[T](downstream, o.cfg))
}

// noopSubscription is handed to a downstream that subscribed to a
// misconfigured operator, so OnSubscribe's contract (always called first)
// still holds even though nothing will ever flow.
type noopSubscription struct{}

func (noopSubscription) Request(int64) {}
func (noopSubscription) Cancel()       {}
