// Command conditional-demo subscribes a ConditionalSubscriber downstream of
// the prefetch operator and declines odd values via TryOnNext, showing that
// declined values do not consume requested demand.
package main

import (
	"sync"

	"go.uber.org/zap"

	"github.com/tariod/reactor-go/queue"
	"github.com/tariod/reactor-go/reactive"
)

type rangePublisher struct{ n int }

func (p rangePublisher) Subscribe(s reactive.Subscriber[int]) {
	sub := &rangeSubscription{n: p.n, sub: s}
	s.OnSubscribe(sub)
}

type rangeSubscription struct {
	n, sent   int
	requested int64
	mu        sync.Mutex
	sub       reactive.Subscriber[int]
	completed bool
}

func (r *rangeSubscription) Request(n int64) {
	r.mu.Lock()
	r.requested += n
	r.mu.Unlock()

	for {
		r.mu.Lock()
		if r.requested <= 0 || r.sent >= r.n {
			fire := r.sent >= r.n && !r.completed
			if fire {
				r.completed = true
			}
			r.mu.Unlock()
			if fire {
				r.sub.OnComplete()
			}
			return
		}
		v := r.sent
		r.sent++
		r.requested--
		r.mu.Unlock()
		r.sub.OnNext(v)
	}
}

func (r *rangeSubscription) Cancel() {}

// evenOnlySubscriber accepts even values and declines odd ones, the
// canonical use case for a ConditionalSubscriber: filtering without
// consuming demand on a decline.
type evenOnlySubscriber struct {
	logger *zap.Logger
	sub    reactive.Subscription
	done   chan struct{}
}

func (e *evenOnlySubscriber) OnSubscribe(s reactive.Subscription) {
	e.sub = s
	s.Request(reactive.Unbounded)
}

func (e *evenOnlySubscriber) OnNext(v int) {
	e.logger.Warn("OnNext called directly; operator should have used TryOnNext", zap.Int("value", v))
}

func (e *evenOnlySubscriber) TryOnNext(v int) bool {
	if v%2 != 0 {
		e.logger.Debug("declined odd value", zap.Int("value", v))
		return false
	}
	e.logger.Info("accepted even value", zap.Int("value", v))
	return true
}

func (e *evenOnlySubscriber) OnError(err error) {
	e.logger.Error("error", zap.Error(err))
	close(e.done)
}

func (e *evenOnlySubscriber) OnComplete() {
	e.logger.Info("complete")
	close(e.done)
}

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg := reactive.Config[int]{
		Prefetch:     32,
		QueueFactory: queue.NewRing[int](),
		RequestMode:  reactive.RequestEager,
		Logger:       logger,
	}

	op := reactive.Prefetch[int](rangePublisher{n: 20}, cfg)
	sub := &evenOnlySubscriber{logger: logger, done: make(chan struct{})}
	op.Subscribe(sub)
	<-sub.done
}
