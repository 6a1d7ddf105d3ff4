package reactive

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// FusedSink is implemented by a downstream Subscriber that wants queue
// fusion on the operator's output. Because Go generics have no analogue of
// "push a null sentinel to mean data is available" (the trick the source
// protocol uses on a nullable reference type), a fusion-aware consumer here
// implements OnDataAvailable instead of receiving a poke through OnNext.
// RequestFusion only ever grants SYNC/ASYNC output fusion to a downstream
// that implements this interface.
type FusedSink interface {
	OnDataAvailable()
}

// PrefetchSubscriber is the plain (non-conditional) prefetch operator
// subscriber: it subscribes to the upstream Publisher and exposes itself to
// the downstream as a fuseable Subscription. Construct one through Prefetch,
// not directly.
type PrefetchSubscriber[T any] struct {
	downstream   Subscriber[T]
	prefetch     int
	limit        int
	requestMode  RequestMode
	queueFactory QueueFactory[T]
	metrics      *Metrics
	logger       *zap.Logger

	// emit delivers v downstream and reports whether it consumed one unit
	// of requested demand. The plain subscriber always delivers via OnNext
	// and always returns true; the conditional subscriber delivers via
	// TryOnNext and returns its verdict. This is the single point where the
	// two arms (C4/C5 in the operator's own component breakdown) diverge;
	// everything else in the drain loop is shared.
	emit func(T) bool

	upstream     Subscription
	upstreamFuse Fuseable[T]

	negotiateOnce sync.Once
	ownQueue      Queue[T]
	fusedQueue    Fuseable[T]

	sourceMode   int32 // FusionMode, atomic
	outputFused  int32 // 0/1, atomic
	firstIssued  int32 // 0/1, atomic: LAZY's one-shot initial request guard

	requested int64 // atomic, saturating
	wip       int32 // atomic, drain reentrancy guard
	cancelled int32 // atomic 0/1
	done      int32 // atomic 0/1; release signal for err below
	err       error // plain write, ordered before the done store that publishes it

	// terminated guards delivery of the single allowed downstream terminal
	// signal (OnComplete or OnError). Without it, a drain re-entry after the
	// terminal has already fired (a late downstream Request, or a Poll on a
	// fused downstream) would re-run the dispatch and re-deliver it.
	terminated int32 // atomic 0/1

	produced int // owned by the drain loop (mutual exclusion via wip)

	discardGuard int32 // atomic: exactly-once discard across Cancel/Clear races
}

func newPlainSubscriber[T any](downstream Subscriber[T], cfg Config[T]) *PrefetchSubscriber[T] {
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
	p.emit = func(v T) bool {
		p.downstream.OnNext(v)
		return true
	}
	return p
}

// OnSubscribe implements Subscriber[T] against the upstream Publisher.
func (p *PrefetchSubscriber[T]) OnSubscribe(s Subscription) {
	if p.upstream != nil {
		s.Cancel()
		p.OnError(protocolViolation("OnSubscribe called more than once"))
		return
	}
	p.upstream = s
	if fz, ok := s.(Fuseable[T]); ok {
		p.upstreamFuse = fz
	}
	p.ensureSourceMode()

	p.downstream.OnSubscribe(p)

	if p.requestMode == RequestEager {
		mode := FusionMode(atomic.LoadInt32(&p.sourceMode))
		if mode == FusionNone || mode == FusionAsync {
			p.issueUpstreamRequest(unboundedOrPrefetch(p.prefetch))
		}
	}

	p.drain()
}

// OnNext implements Subscriber[T] against the upstream Publisher.
func (p *PrefetchSubscriber[T]) OnNext(v T) {
	mode := FusionMode(atomic.LoadInt32(&p.sourceMode))
	if mode == uninitializedSourceMode {
		discard[T](v) // protocol violation: OnNext before OnSubscribe
		return
	}
	if mode == FusionAsync {
		// The upstream already pushed v into the queue it owns; this call is
		// only a signal that more work is available.
		p.drain()
		return
	}
	if atomic.LoadInt32(&p.done) != 0 || atomic.LoadInt32(&p.cancelled) != 0 {
		discard[T](v)
		p.metrics.incDiscarded(1)
		return
	}
	if !p.ownQueue.Offer(v) {
		p.err = overflowError(p.prefetch)
		atomic.StoreInt32(&p.done, 1)
		p.metrics.incOverflowed()
		p.logger.Warn("prefetch queue overflow", zap.Int("prefetch", p.prefetch))
		discard[T](v)
		p.metrics.incDiscarded(1)
		p.drain()
		return
	}
	p.metrics.setQueueDepth(p.ownQueue.Size())
	p.drain()
}

// OnError implements Subscriber[T] against the upstream Publisher.
func (p *PrefetchSubscriber[T]) OnError(err error) {
	if atomic.LoadInt32(&p.done) != 0 {
		return // idempotent: only the first terminal signal counts
	}
	p.err = err
	atomic.StoreInt32(&p.done, 1)
	p.drain()
}

// OnComplete implements Subscriber[T] against the upstream Publisher.
func (p *PrefetchSubscriber[T]) OnComplete() {
	if atomic.LoadInt32(&p.done) != 0 {
		return
	}
	atomic.StoreInt32(&p.done, 1)
	p.drain()
}

// Request implements Subscription for the downstream Subscriber.
func (p *PrefetchSubscriber[T]) Request(n int64) {
	if n <= 0 {
		if atomic.LoadInt32(&p.done) == 0 {
			p.err = protocolViolation("request(%d) called, must be > 0", n)
			atomic.StoreInt32(&p.done, 1)
			if p.upstream != nil {
				p.upstream.Cancel()
			}
		}
		p.drain()
		return
	}
	for {
		old := atomic.LoadInt64(&p.requested)
		next := addCap(old, n)
		if atomic.CompareAndSwapInt64(&p.requested, old, next) {
			break
		}
	}
	p.maybeIssueLazyInitialRequest()
	p.drain()
}

// Cancel implements Subscription for the downstream Subscriber. It is
// idempotent and safe to call concurrently with drain/request/upstream
// signals from any goroutine.
func (p *PrefetchSubscriber[T]) Cancel() {
	if !atomic.CompareAndSwapInt32(&p.cancelled, 0, 1) {
		return
	}
	if p.upstream != nil {
		p.upstream.Cancel()
	}
	p.drain()
}

// RequestFusion implements Fuseable[T] for the downstream Subscriber,
// negotiating the operator's own output fusion mode. Upstream fusion (which
// queue backs the operator) is resolved lazily on first call, same as at
// OnSubscribe time, guarded so either caller order is safe.
func (p *PrefetchSubscriber[T]) RequestFusion(requested FusionMode) FusionMode {
	p.ensureSourceMode()

	if _, ok := p.downstream.(FusedSink); !ok {
		return FusionNone
	}

	mode := FusionMode(atomic.LoadInt32(&p.sourceMode))
	switch mode {
	case FusionSync:
		if requested == FusionSync || requested == FusionAny {
			atomic.StoreInt32(&p.outputFused, 1)
			return FusionSync
		}
	case FusionAsync:
		if requested == FusionAsync || requested == FusionAny {
			atomic.StoreInt32(&p.outputFused, 1)
			return FusionAsync
		}
	default: // NONE: we own the queue, only async output fusion makes sense
		if requested == FusionAsync || requested == FusionAny {
			atomic.StoreInt32(&p.outputFused, 1)
			return FusionAsync
		}
	}
	return FusionNone
}

// Poll implements Fuseable[T] for a downstream that negotiated output
// fusion.
func (p *PrefetchSubscriber[T]) Poll() (T, bool, error) {
	v, ok, err := p.pollAny()
	if err != nil {
		var zero T
		return zero, false, err
	}
	if ok {
		p.metrics.incEmitted(1)
	}
	if ok && FusionMode(atomic.LoadInt32(&p.sourceMode)) != FusionSync {
		p.produced++
		if p.produced == p.limit {
			p.produced = 0
			p.replenishUpstream(int64(p.limit))
		}
	}
	p.metrics.setQueueDepth(p.sizeAny())
	// Re-check: once the upstream has terminated and the queue drains dry,
	// surface the pending terminal. Polls while the upstream is still live
	// do not re-enter drain, so a drain pass that polls through
	// OnDataAvailable does not keep scheduling missed work for itself.
	if atomic.LoadInt32(&p.done) != 0 && p.isEmptyAny() {
		p.drain()
	}
	return v, ok, nil
}

// Clear implements Fuseable[T]: discard every queued value.
func (p *PrefetchSubscriber[T]) Clear() {
	p.discardAll()
}

// IsEmpty implements Fuseable[T].
func (p *PrefetchSubscriber[T]) IsEmpty() bool { return p.isEmptyAny() }

// Size implements Fuseable[T].
func (p *PrefetchSubscriber[T]) Size() int { return p.sizeAny() }

// ensureSourceMode negotiates fusion with the upstream exactly once,
// regardless of whether OnSubscribe or RequestFusion triggers it first.
func (p *PrefetchSubscriber[T]) ensureSourceMode() {
	p.negotiateOnce.Do(func() {
		if p.upstreamFuse != nil {
			switch p.upstreamFuse.RequestFusion(FusionAny) {
			case FusionSync:
				p.fusedQueue = p.upstreamFuse
				atomic.StoreInt32(&p.sourceMode, int32(FusionSync))
				atomic.StoreInt32(&p.done, 1) // a SYNC source is already exhaustively described
			case FusionAsync:
				p.fusedQueue = p.upstreamFuse
				atomic.StoreInt32(&p.sourceMode, int32(FusionAsync))
			default:
				p.ownQueue = p.queueFactory(p.prefetch)
				atomic.StoreInt32(&p.sourceMode, int32(FusionNone))
			}
			return
		}
		p.ownQueue = p.queueFactory(p.prefetch)
		atomic.StoreInt32(&p.sourceMode, int32(FusionNone))
	})
}

func (p *PrefetchSubscriber[T]) maybeIssueLazyInitialRequest() {
	if p.requestMode != RequestLazy {
		return
	}
	if FusionMode(atomic.LoadInt32(&p.sourceMode)) != FusionNone {
		return
	}
	if atomic.LoadInt64(&p.requested) == 0 {
		return // no downstream demand yet
	}
	if atomic.CompareAndSwapInt32(&p.firstIssued, 0, 1) {
		p.issueUpstreamRequest(unboundedOrPrefetch(p.prefetch))
	}
}

func (p *PrefetchSubscriber[T]) issueUpstreamRequest(n int64) {
	if p.upstream == nil || n <= 0 {
		return
	}
	p.upstream.Request(n)
	p.metrics.incRequested(n)
}

func (p *PrefetchSubscriber[T]) replenishUpstream(n int64) {
	if p.upstream == nil || n <= 0 {
		return
	}
	p.upstream.Request(n)
	p.metrics.incRequested(n)
	p.logger.Debug("replenished upstream demand", zap.Int64("n", n))
}

func (p *PrefetchSubscriber[T]) subRequested(n int64) {
	if n <= 0 {
		return
	}
	for {
		old := atomic.LoadInt64(&p.requested)
		next := subCap(old, n)
		if next == old {
			return
		}
		if atomic.CompareAndSwapInt64(&p.requested, old, next) {
			return
		}
	}
}

// drain is the lock-free serialisation point: wip acts as a mutual-exclusion
// counter, not a fairness mechanism. The winner of the wip.getAndIncrement
// race runs one or more dispatch passes and republishes any work missed by
// concurrent callers before releasing wip back to zero.
func (p *PrefetchSubscriber[T]) drain() {
	if atomic.AddInt32(&p.wip, 1) != 1 {
		return
	}
	missed := int32(1)
	for {
		if atomic.LoadInt32(&p.cancelled) != 0 {
			p.discardAll()
			atomic.StoreInt32(&p.wip, 0)
			return
		}
		if atomic.LoadInt32(&p.terminated) != 0 {
			// The single allowed terminal signal already reached downstream;
			// nothing left to dispatch on this or any future drain entry.
			atomic.StoreInt32(&p.wip, 0)
			return
		}

		p.maybeIssueLazyInitialRequest()

		var terminated bool
		switch {
		case atomic.LoadInt32(&p.outputFused) != 0:
			terminated = p.drainOutputPass()
		case FusionMode(atomic.LoadInt32(&p.sourceMode)) == FusionSync:
			terminated = p.drainSyncPass()
		default:
			terminated = p.drainAsyncPass()
		}
		if terminated {
			atomic.StoreInt32(&p.wip, 0)
			return
		}

		missed = atomic.AddInt32(&p.wip, -missed)
		if missed == 0 {
			return
		}
	}
}

// completeDownstream and errorDownstream are the only two call sites allowed
// to deliver a downstream terminal signal. Both are guarded by terminated so
// that, however many drain passes or fused Poll calls re-enter after the
// first terminal fires, at most one OnComplete/OnError ever reaches
// downstream (property 5).
func (p *PrefetchSubscriber[T]) completeDownstream() {
	if atomic.CompareAndSwapInt32(&p.terminated, 0, 1) {
		p.downstream.OnComplete()
	}
}

func (p *PrefetchSubscriber[T]) errorDownstream(err error) {
	if atomic.CompareAndSwapInt32(&p.terminated, 0, 1) {
		p.downstream.OnError(err)
	}
}

// checkTerminated implements §4.3.3. current/haveCurrent carry a value that
// was just polled out of the queue but not yet emitted: if termination is
// decided here, current must still be run through the discard policy (it
// has already been removed from the queue, so discardAll alone would miss
// it) before any terminal signal is delivered.
func (p *PrefetchSubscriber[T]) checkTerminated(done, empty bool, current T, haveCurrent bool) bool {
	if atomic.LoadInt32(&p.cancelled) != 0 {
		if haveCurrent {
			discard[T](current)
			p.metrics.incDiscarded(1)
		}
		p.discardAll()
		return true
	}
	if done {
		if p.err != nil {
			if haveCurrent {
				discard[T](current)
				p.metrics.incDiscarded(1)
			}
			p.discardAll()
			p.errorDownstream(p.err)
			return true
		}
		if empty {
			p.completeDownstream()
			return true
		}
	}
	return false
}

// drainSyncPass runs one emission pass against a SYNC-fused upstream. Every
// value pulled off the queue goes through emit; emitted counts only those the
// emit function actually consumed demand for (always equal for the plain
// subscriber, may diverge for the conditional one — see §4.4).
func (p *PrefetchSubscriber[T]) drainSyncPass() bool {
	requested := atomic.LoadInt64(&p.requested)
	var emitted int64
	for emitted != requested {
		if atomic.LoadInt32(&p.cancelled) != 0 {
			p.discardAll()
			return true
		}
		v, ok, err := p.fusedQueue.Poll()
		if err != nil {
			p.failDownstream(pollFailed(err))
			return true
		}
		if !ok {
			p.completeDownstream()
			return true
		}
		if p.emit(v) {
			p.metrics.incEmitted(1)
			emitted++
		}
	}
	if emitted != 0 {
		p.subRequested(emitted)
	}
	if p.fusedQueue.IsEmpty() {
		p.completeDownstream()
		return true
	}
	return false
}

// drainAsyncPass runs one emission pass against a NONE (we own the queue) or
// ASYNC-fused (upstream owns the queue) source. Replenishment is driven by
// polled == limit, not emitted == limit: upstream only cares that an item
// was processed, not whether the downstream actually accepted it.
func (p *PrefetchSubscriber[T]) drainAsyncPass() bool {
	requested := atomic.LoadInt64(&p.requested)
	var emitted int64
	for emitted != requested {
		if atomic.LoadInt32(&p.cancelled) != 0 {
			p.discardAll()
			return true
		}
		done := atomic.LoadInt32(&p.done) != 0
		v, ok, err := p.pollAny()
		if err != nil {
			p.failDownstream(pollFailed(err))
			return true
		}
		if p.checkTerminated(done, !ok, v, ok) {
			return true
		}
		if !ok {
			break
		}
		if p.emit(v) {
			p.metrics.incEmitted(1)
			emitted++
		}
		p.metrics.setQueueDepth(p.sizeAny())
		p.produced++
		if p.produced == p.limit {
			p.produced = 0
			p.replenishUpstream(int64(p.limit))
		}
	}
	if emitted != 0 {
		p.subRequested(emitted)
	}
	var zero T
	return p.checkTerminated(atomic.LoadInt32(&p.done) != 0, p.isEmptyAny(), zero, false)
}

// drainOutputPass pokes a fusion-aware downstream that more data is
// available, forwarding a terminal signal once the queue has fully drained.
func (p *PrefetchSubscriber[T]) drainOutputPass() bool {
	if atomic.LoadInt32(&p.cancelled) != 0 {
		p.discardAll()
		return true
	}
	if fs, ok := p.downstream.(FusedSink); ok {
		fs.OnDataAvailable()
	}
	if atomic.LoadInt32(&p.done) == 0 {
		return false
	}
	if p.err != nil {
		p.errorDownstream(p.err)
		return true
	}
	if p.isEmptyAny() {
		p.completeDownstream()
		return true
	}
	return false
}

func (p *PrefetchSubscriber[T]) failDownstream(err error) {
	p.err = err
	atomic.StoreInt32(&p.done, 1)
	if p.upstream != nil {
		p.upstream.Cancel()
	}
	p.discardAll()
	p.errorDownstream(err)
}

// discardAll runs the per-mode discard policy exactly once, even if Cancel's
// drain-side discard races with an explicit Clear() call from a fused
// downstream.
func (p *PrefetchSubscriber[T]) discardAll() {
	if !atomic.CompareAndSwapInt32(&p.discardGuard, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&p.discardGuard, 0)

	switch FusionMode(atomic.LoadInt32(&p.sourceMode)) {
	case FusionAsync:
		// The upstream owns this queue; racing with its producer on a
		// per-element walk is unsafe, so only a bulk, hook-free clear is
		// performed here. The queue implementation guarantees this is safe
		// concurrently with its own producer.
		if p.fusedQueue != nil {
			p.fusedQueue.Clear()
		}
	case FusionSync:
		n := 0
		if p.fusedQueue != nil {
			for {
				v, ok, _ := p.fusedQueue.Poll()
				if !ok {
					break
				}
				discard[T](v)
				n++
			}
			p.fusedQueue.Clear()
		}
		p.metrics.incDiscarded(n)
	default:
		n := 0
		if p.ownQueue != nil {
			for {
				v, ok := p.ownQueue.Poll()
				if !ok {
					break
				}
				discard[T](v)
				n++
			}
		}
		p.metrics.incDiscarded(n)
	}
	p.metrics.setQueueDepth(0)
}

func (p *PrefetchSubscriber[T]) pollAny() (T, bool, error) {
	if p.fusedQueue != nil {
		return p.fusedQueue.Poll()
	}
	v, ok := p.ownQueue.Poll()
	return v, ok, nil
}

func (p *PrefetchSubscriber[T]) sizeAny() int {
	if p.fusedQueue != nil {
		return p.fusedQueue.Size()
	}
	if p.ownQueue != nil {
		return p.ownQueue.Size()
	}
	return 0
}

func (p *PrefetchSubscriber[T]) isEmptyAny() bool {
	if p.fusedQueue != nil {
		return p.fusedQueue.IsEmpty()
	}
	if p.ownQueue != nil {
		return p.ownQueue.IsEmpty()
	}
	return true
}
