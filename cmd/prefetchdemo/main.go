// Command prefetchdemo wires the prefetch operator between a synthetic
// in-memory publisher and a slow consumer, logging the backpressure window
// in action.
package main

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tariod/reactor-go/queue"
	"github.com/tariod/reactor-go/reactive"
)

// rangePublisher emits the integers [0, n) as fast as it is requested,
// honoring demand rather than pushing unconditionally.
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
	cancelled bool
	completed bool
}

func (r *rangeSubscription) Request(n int64) {
	r.mu.Lock()
	if r.cancelled {
		r.mu.Unlock()
		return
	}
	r.requested += n
	r.mu.Unlock()

	for {
		r.mu.Lock()
		if r.cancelled || r.requested <= 0 || r.sent >= r.n {
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

func (r *rangeSubscription) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = true
}

type loggingSubscriber struct {
	logger *zap.Logger
	sub    reactive.Subscription
}

func (l *loggingSubscriber) OnSubscribe(s reactive.Subscription) {
	l.sub = s
	s.Request(4)
}

func (l *loggingSubscriber) OnNext(v int) {
	l.logger.Info("received", zap.Int("value", v))
	time.Sleep(10 * time.Millisecond)
	l.sub.Request(1)
}

func (l *loggingSubscriber) OnError(err error) {
	l.logger.Error("stream failed", zap.Error(err))
}

func (l *loggingSubscriber) OnComplete() {
	l.logger.Info("stream complete")
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := reactive.Config[int]{
		Prefetch:     16,
		QueueFactory: queue.NewRing[int](),
		RequestMode:  reactive.RequestEager,
		Logger:       logger,
	}

	op := reactive.Prefetch[int](rangePublisher{n: 100}, cfg)
	done := make(chan struct{})
	op.Subscribe(&doneWrapper{loggingSubscriber{logger: logger}, done})
	<-done

	fmt.Println("demo finished")
}

type doneWrapper struct {
	loggingSubscriber
	done chan struct{}
}

func (d *doneWrapper) OnComplete() {
	d.loggingSubscriber.OnComplete()
	close(d.done)
}

func (d *doneWrapper) OnError(err error) {
	d.loggingSubscriber.OnError(err)
	close(d.done)
}
