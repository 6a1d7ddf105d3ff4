package reactive

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncFuseableSource is a Publisher[T] that advertises SYNC fusion: its
// Subscription is itself a Fuseable[T] backed by a plain slice, so a
// downstream that negotiates fusion polls it directly instead of receiving
// pushed OnNext calls.
type syncFuseableSource[T any] struct{ values []T }

func (s syncFuseableSource[T]) Subscribe(sub Subscriber[T]) {
	sub.OnSubscribe(&syncFuseableSubscription[T]{values: s.values})
}

type syncFuseableSubscription[T any] struct {
	values []T
	pos    int
}

func (s *syncFuseableSubscription[T]) Request(int64) {}
func (s *syncFuseableSubscription[T]) Cancel()       {}
func (s *syncFuseableSubscription[T]) RequestFusion(requested FusionMode) FusionMode {
	if requested == FusionSync || requested == FusionAny {
		return FusionSync
	}
	return FusionNone
}
func (s *syncFuseableSubscription[T]) Poll() (T, bool, error) {
	var zero T
	if s.pos >= len(s.values) {
		return zero, false, nil
	}
	v := s.values[s.pos]
	s.pos++
	return v, true, nil
}
func (s *syncFuseableSubscription[T]) Clear()      { s.pos = len(s.values) }
func (s *syncFuseableSubscription[T]) IsEmpty() bool { return s.pos >= len(s.values) }
func (s *syncFuseableSubscription[T]) Size() int     { return len(s.values) - s.pos }

func TestSyncFusionUpstreamStillDeliversAllValues(t *testing.T) {
	source := syncFuseableSource[int]{values: []int{10, 20, 30}}
	downstream := &recordingSubscriber[int]{autoRequest: Unbounded}

	Prefetch[int](source, testConfig[int](4)).Subscribe(downstream)

	vals, err, completed := downstream.snapshot()
	assert.NoError(t, err)
	assert.True(t, completed)
	assert.Equal(t, []int{10, 20, 30}, vals)
}

// asyncFuseableSource is a Publisher[T] that advertises ASYNC fusion: its
// Subscription is a Fuseable[T] whose queue is pre-filled before Subscribe
// ever returns, matching an upstream that pushes into a shared queue and
// pokes the downstream rather than handing values over one OnNext at a
// time. OnComplete is delivered explicitly once the caller's Subscribe
// call returns, the way a real async source would after its own producer
// loop drains dry.
type asyncFuseableSource[T any] struct{ values []T }

func (s asyncFuseableSource[T]) Subscribe(sub Subscriber[T]) {
	sub.OnSubscribe(&asyncFuseableSubscription[T]{values: s.values})
	sub.OnComplete()
}

type asyncFuseableSubscription[T any] struct {
	values []T
	pos    int
}

func (s *asyncFuseableSubscription[T]) Request(int64) {}
func (s *asyncFuseableSubscription[T]) Cancel()       {}
func (s *asyncFuseableSubscription[T]) RequestFusion(requested FusionMode) FusionMode {
	if requested == FusionAsync || requested == FusionAny {
		return FusionAsync
	}
	return FusionNone
}
func (s *asyncFuseableSubscription[T]) Poll() (T, bool, error) {
	var zero T
	if s.pos >= len(s.values) {
		return zero, false, nil
	}
	v := s.values[s.pos]
	s.pos++
	return v, true, nil
}
func (s *asyncFuseableSubscription[T]) Clear()       { s.pos = len(s.values) }
func (s *asyncFuseableSubscription[T]) IsEmpty() bool { return s.pos >= len(s.values) }
func (s *asyncFuseableSubscription[T]) Size() int     { return len(s.values) - s.pos }

func TestAsyncFusionUpstreamStillDeliversAllValues(t *testing.T) {
	source := asyncFuseableSource[int]{values: []int{7, 8, 9}}
	downstream := &recordingSubscriber[int]{autoRequest: Unbounded}

	Prefetch[int](source, testConfig[int](4)).Subscribe(downstream)

	vals, err, completed := downstream.snapshot()
	assert.NoError(t, err)
	assert.True(t, completed)
	assertValues(t, []int{7, 8, 9}, vals)
}

// fusedDownstream is a Subscriber[T] + FusedSink that negotiates ASYNC
// output fusion on the Fuseable[T] handed to it in OnSubscribe and pulls
// values itself via Poll, the way a fusion-aware downstream operator would
// rather than waiting for pushed OnNext calls.
type fusedDownstream[T any] struct {
	mu        sync.Mutex
	fuse      Fuseable[T]
	values    []T
	err       error
	completed bool
}

func (f *fusedDownstream[T]) OnSubscribe(s Subscription) {
	fz, ok := s.(Fuseable[T])
	if !ok {
		return
	}
	if fz.RequestFusion(FusionAsync) == FusionAsync {
		f.mu.Lock()
		f.fuse = fz
		f.mu.Unlock()
	}
}

func (f *fusedDownstream[T]) OnNext(T)        {} // unused once fusion is granted
func (f *fusedDownstream[T]) OnError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}
func (f *fusedDownstream[T]) OnComplete() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = true
}

// OnDataAvailable implements FusedSink: drain the fused queue dry every time
// the operator signals more might be available.
func (f *fusedDownstream[T]) OnDataAvailable() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for {
		v, ok, err := f.fuse.Poll()
		if err != nil {
			f.err = err
			return
		}
		if !ok {
			return
		}
		f.values = append(f.values, v)
	}
}

func (f *fusedDownstream[T]) snapshot() (vals []T, err error, completed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]T, len(f.values))
	copy(out, f.values)
	return out, f.err, f.completed
}

func TestOutputFusionDownstreamPullsViaPoll(t *testing.T) {
	source := sliceSource[int]{values: []int{1, 2, 3}, errAfter: -1}
	downstream := &fusedDownstream[int]{}

	Prefetch[int](source, testConfig[int](4)).Subscribe(downstream)

	vals, err, completed := downstream.snapshot()
	assert.NoError(t, err)
	assert.True(t, completed, "a downstream Poll after the queue drains dry must still observe completion")
	assertValues(t, []int{1, 2, 3}, vals)
}

func TestFusionModeStringer(t *testing.T) {
	cases := map[FusionMode]string{
		FusionNone:  "NONE",
		FusionSync:  "SYNC",
		FusionAsync: "ASYNC",
		FusionAny:   "ANY",
	}
	for mode, want := range cases {
		assert.Equal(t, want, mode.String())
	}
}

func TestRequestFusionRefusedWithoutFusedSinkDownstream(t *testing.T) {
	source := syncFuseableSource[int]{values: []int{1}}
	downstream := &recordingSubscriber[int]{autoRequest: Unbounded}

	op := Prefetch[int](source, testConfig[int](4))
	// downstream here is a plain recordingSubscriber which does not
	// implement FusedSink, so no direct RequestFusion call is exercised
	// through the public operator surface; this test instead documents the
	// invariant at the PrefetchSubscriber level.
	p := newPlainSubscriber[int](downstream, testConfig[int](4))
	require.Equal(t, FusionNone, p.RequestFusion(FusionAny))

	op.Subscribe(downstream) // smoke: construction path itself must not panic
}
