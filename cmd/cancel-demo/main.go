// Command cancel-demo subscribes to an effectively unbounded upstream and
// cancels after a handful of values, verifying the operator discards its
// buffered backlog rather than continuing to drain it.
package main

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tariod/reactor-go/queue"
	"github.com/tariod/reactor-go/reactive"
)

// tickerPublisher emits an incrementing counter once per tick, ignoring
// downstream demand entirely (a deliberately misbehaving, push-style
// upstream) so the operator's own queue is what absorbs the backlog.
type tickerPublisher struct{ interval time.Duration }

func (p tickerPublisher) Subscribe(s reactive.Subscriber[int64]) {
	sub := &tickerSubscription{}
	s.OnSubscribe(sub)
	go func() {
		var n int64
		t := time.NewTicker(p.interval)
		defer t.Stop()
		for range t.C {
			if atomic.LoadInt32(&sub.cancelled) != 0 {
				return
			}
			n++
			s.OnNext(n)
		}
	}()
}

type tickerSubscription struct{ cancelled int32 }

func (t *tickerSubscription) Request(int64) {}
func (t *tickerSubscription) Cancel()       { atomic.StoreInt32(&t.cancelled, 1) }

type countingSubscriber struct {
	logger  *zap.Logger
	sub     reactive.Subscription
	limit   int
	seen    int
	stopped chan struct{}
}

func (c *countingSubscriber) OnSubscribe(s reactive.Subscription) {
	c.sub = s
	s.Request(int64(c.limit))
}

func (c *countingSubscriber) OnNext(v int64) {
	c.seen++
	c.logger.Info("tick", zap.Int64("value", v), zap.Int("seen", c.seen))
	if c.seen >= c.limit {
		c.sub.Cancel()
		close(c.stopped)
	}
}

func (c *countingSubscriber) OnError(err error) { c.logger.Error("error", zap.Error(err)) }
func (c *countingSubscriber) OnComplete()       { c.logger.Info("complete") }

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg := reactive.Config[int64]{
		Prefetch:     8,
		QueueFactory: queue.NewRing[int64](),
		RequestMode:  reactive.RequestEager,
		Logger:       logger,
	}

	op := reactive.Prefetch[int64](tickerPublisher{interval: 5 * time.Millisecond}, cfg)
	sub := &countingSubscriber{logger: logger, limit: 5, stopped: make(chan struct{})}
	op.Subscribe(sub)
	<-sub.stopped

	logger.Info("cancelled after reaching limit", zap.Int("limit", sub.limit))
}
