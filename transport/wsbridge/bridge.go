// Package wsbridge adapts a WebSocket connection into a reactive.Publisher,
// the same reconnect-loop shape as transport/grpcbridge but for a transport
// with no generated client stub: frames are decoded by a caller-supplied
// Decode function instead of a protobuf Recv call.
package wsbridge

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tariod/reactor-go/reactive"
)

const (
	DefaultMaxReconnectAttempts = 240
	DefaultReconnectInterval    = 5 * time.Second
)

// Decode turns one WebSocket message payload into a domain value. Returning
// ok=false skips the message (e.g. a ping frame) without counting as an
// error or as forward progress.
type Decode[T any] func(messageType int, payload []byte) (v T, ok bool, err error)

type Config struct {
	URL                  string
	Dialer               *websocket.Dialer
	MaxReconnectAttempts int
	ReconnectInterval    time.Duration
	Logger               *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Bridge is a reactive.Publisher[T] backed by a reconnecting WebSocket
// connection.
type Bridge[T any] struct {
	cfg    Config
	decode Decode[T]
}

func New[T any](cfg Config, decode Decode[T]) *Bridge[T] {
	return &Bridge[T]{cfg: cfg.withDefaults(), decode: decode}
}

func (b *Bridge[T]) Subscribe(downstream reactive.Subscriber[T]) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &wsSubscription{cancel: cancel}
	downstream.OnSubscribe(sub)
	go b.streamLoop(ctx, downstream)
}

type wsSubscription struct {
	cancel    context.CancelFunc
	cancelled int32
}

func (s *wsSubscription) Request(int64) {}

func (s *wsSubscription) Cancel() {
	if atomic.CompareAndSwapInt32(&s.cancelled, 0, 1) {
		s.cancel()
	}
}

func (b *Bridge[T]) streamLoop(ctx context.Context, downstream reactive.Subscriber[T]) {
	var attempts int

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		progressed, err := b.connectAndStream(ctx, downstream)
		if err == nil {
			downstream.OnComplete()
			return
		}
		if ctx.Err() != nil {
			return
		}

		attempts++
		if progressed {
			attempts = 1
		}

		b.cfg.Logger.Warn("wsbridge: connection attempt failed",
			zap.Int("attempt", attempts), zap.Int("max", b.cfg.MaxReconnectAttempts), zap.Error(err))

		if attempts >= b.cfg.MaxReconnectAttempts {
			downstream.OnError(fmt.Errorf("wsbridge: giving up after %d attempts: %w", attempts, err))
			return
		}

		select {
		case <-time.After(b.cfg.ReconnectInterval):
		case <-ctx.Done():
			return
		}
	}
}

func (b *Bridge[T]) connectAndStream(ctx context.Context, downstream reactive.Subscriber[T]) (progressed bool, err error) {
	conn, _, err := b.cfg.Dialer.DialContext(ctx, b.cfg.URL, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return progressed, nil
			}
			return progressed, fmt.Errorf("read: %w", err)
		}

		v, ok, err := b.decode(msgType, payload)
		if err != nil {
			return progressed, fmt.Errorf("decode: %w", err)
		}
		if !ok {
			continue
		}

		progressed = true
		downstream.OnNext(v)
	}
}
