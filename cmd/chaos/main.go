// Command chaos drives the prefetch operator with a rate-limited synthetic
// upstream and a downstream that alternates between keeping up and
// stalling, deliberately inducing overflow, while sampling process
// resource usage to observe the operator's footprint under load.
package main

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tariod/reactor-go/queue"
	"github.com/tariod/reactor-go/reactive"
)

type rateLimitedPublisher struct {
	limiter *rate.Limiter
	count   int
}

func (p rateLimitedPublisher) Subscribe(s reactive.Subscriber[int]) {
	sub := &rateSubscription{stopped: make(chan struct{})}
	s.OnSubscribe(sub)
	go func() {
		ctx := context.Background()
		for i := 0; i < p.count; i++ {
			if err := p.limiter.Wait(ctx); err != nil {
				return
			}
			if sub.cancelled() {
				return
			}
			s.OnNext(i)
		}
		s.OnComplete()
	}()
}

type rateSubscription struct{ stopped chan struct{} }

func (r *rateSubscription) Request(int64) {}
func (r *rateSubscription) Cancel() {
	if r.stopped != nil {
		select {
		case <-r.stopped:
		default:
			close(r.stopped)
		}
	}
}
func (r *rateSubscription) cancelled() bool {
	if r.stopped == nil {
		return false
	}
	select {
	case <-r.stopped:
		return true
	default:
		return false
	}
}

// stallingSubscriber alternates between draining quickly and sleeping, to
// force the operator's bounded queue toward its overflow threshold.
type stallingSubscriber struct {
	logger *zap.Logger
	sub    reactive.Subscription
	mu     sync.Mutex
	seen   int
	done   chan struct{}
}

func (s *stallingSubscriber) OnSubscribe(sub reactive.Subscription) {
	s.sub = sub
	sub.Request(8)
}

func (s *stallingSubscriber) OnNext(v int) {
	s.mu.Lock()
	s.seen++
	stall := s.seen%50 == 0
	s.mu.Unlock()

	if stall {
		s.logger.Debug("stalling consumer", zap.Int("seen", s.seen))
		time.Sleep(200 * time.Millisecond)
	}
	s.sub.Request(1)
}

func (s *stallingSubscriber) OnError(err error) {
	s.logger.Warn("chaos harness observed overflow/error", zap.Error(err))
	close(s.done)
}

func (s *stallingSubscriber) OnComplete() {
	s.logger.Info("chaos run complete", zap.Int("total_seen", s.seen))
	close(s.done)
}

func sampleResourceUsage(ctx context.Context, logger *zap.Logger) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn("gopsutil process handle unavailable", zap.Error(err))
		return
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cpuPct, err := proc.CPUPercent()
			if err != nil {
				continue
			}
			memInfo, err := proc.MemoryInfo()
			if err != nil {
				continue
			}
			logger.Info("resource sample", zap.Float64("cpu_pct", cpuPct), zap.Uint64("rss_bytes", memInfo.RSS))
		}
	}
}

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sampleResourceUsage(ctx, logger)

	cfg := reactive.Config[int]{
		Prefetch:     32,
		LowTide:      8,
		QueueFactory: queue.NewRing[int](),
		RequestMode:  reactive.RequestEager,
		Logger:       logger,
	}

	source := rateLimitedPublisher{limiter: rate.NewLimiter(rate.Limit(500), 50), count: 5000}
	op := reactive.Prefetch[int](source, cfg)

	sub := &stallingSubscriber{logger: logger, done: make(chan struct{})}
	op.Subscribe(sub)
	<-sub.done
}
