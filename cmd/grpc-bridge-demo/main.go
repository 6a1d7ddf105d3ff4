// Command grpc-bridge-demo runs the prefetch operator downstream of a
// reconnecting gRPC stream, logging a periodic throughput snapshot on a
// cron schedule.
package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/tariod/reactor-go/queue"
	"github.com/tariod/reactor-go/reactive"
	"github.com/tariod/reactor-go/transport/grpcbridge"
)

// echoStream is a placeholder Stream[[]byte] an operator would normally
// receive from a generated gRPC client; wiring a real service is left to
// the integrating application via grpcbridge.Opener.
type echoStream struct {
	ctx context.Context
}

func (echoStream) Recv() ([]byte, error) {
	return nil, fmt.Errorf("grpc-bridge-demo: no real service configured")
}
func (echoStream) CloseSend() error { return nil }

func openEcho(ctx context.Context, _ *grpc.ClientConn) (grpcbridge.Stream[[]byte], error) {
	return echoStream{ctx: ctx}, nil
}

type metricsSubscriber struct {
	logger   *zap.Logger
	sub      reactive.Subscription
	received int64
}

func (m *metricsSubscriber) OnSubscribe(s reactive.Subscription) {
	m.sub = s
	s.Request(reactive.Unbounded)
}

func (m *metricsSubscriber) OnNext(v []byte) {
	atomic.AddInt64(&m.received, 1)
	m.logger.Debug("message received", zap.Int("bytes", len(v)))
}

func (m *metricsSubscriber) OnError(err error) {
	m.logger.Error("bridge failed", zap.Error(err))
}

func (m *metricsSubscriber) OnComplete() {
	m.logger.Info("bridge stream complete")
}

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	bridgeCfg, err := grpcbridge.LoadEnvConfig(".env")
	if err != nil {
		logger.Warn("falling back to loopback target; set GRPCBRIDGE_TARGET to use a real service", zap.Error(err))
		bridgeCfg = grpcbridge.Config{Target: "localhost:50051", Insecure: true}
	}
	bridgeCfg.Logger = logger

	bridge := grpcbridge.New[[]byte](bridgeCfg, openEcho)

	opCfg := reactive.Config[[]byte]{
		Prefetch:     64,
		QueueFactory: queue.NewRing[[]byte](),
		RequestMode:  reactive.RequestEager,
		Logger:       logger,
	}
	op := reactive.Prefetch[[]byte](bridge, opCfg)

	sub := &metricsSubscriber{logger: logger}
	op.Subscribe(sub)

	c := cron.New()
	_, err = c.AddFunc("@every 10s", func() {
		logger.Info("throughput snapshot", zap.Int64("received_total", atomic.LoadInt64(&sub.received)))
	})
	if err != nil {
		logger.Fatal("scheduling reporting job", zap.Error(err))
	}
	c.Start()
	defer c.Stop()

	select {}
}
