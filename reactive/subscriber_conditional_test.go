package reactive

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingConditionalSubscriber[T any] struct {
	mu        sync.Mutex
	accepted  []T
	declined  []T
	err       error
	completed bool
	sub       Subscription
	accept    func(T) bool
}

func (r *recordingConditionalSubscriber[T]) OnSubscribe(s Subscription) {
	r.sub = s
	s.Request(Unbounded)
}

func (r *recordingConditionalSubscriber[T]) OnNext(v T) {
	r.mu.Lock()
	r.accepted = append(r.accepted, v)
	r.mu.Unlock()
}

func (r *recordingConditionalSubscriber[T]) TryOnNext(v T) bool {
	ok := r.accept(v)
	r.mu.Lock()
	if ok {
		r.accepted = append(r.accepted, v)
	} else {
		r.declined = append(r.declined, v)
	}
	r.mu.Unlock()
	return ok
}

func (r *recordingConditionalSubscriber[T]) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *recordingConditionalSubscriber[T]) OnComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = true
}

func TestConditionalSubscriberDeclinesWithoutConsumingDemand(t *testing.T) {
	source := sliceSource[int]{values: []int{1, 2, 3, 4, 5, 6}, errAfter: -1}
	downstream := &recordingConditionalSubscriber[int]{
		accept: func(v int) bool { return v%2 == 0 },
	}

	Prefetch[int](source, testConfig[int](4)).Subscribe(downstream)

	downstream.mu.Lock()
	accepted := append([]int(nil), downstream.accepted...)
	declined := append([]int(nil), downstream.declined...)
	completed := downstream.completed
	downstream.mu.Unlock()

	assert.Equal(t, []int{2, 4, 6}, accepted)
	assert.Equal(t, []int{1, 3, 5}, declined)
	assert.True(t, completed, "decline must not stall completion once the upstream is exhausted")
}

func TestConditionalSubscriberAcceptingEverythingMatchesPlain(t *testing.T) {
	source := sliceSource[int]{values: []int{1, 2, 3}, errAfter: -1}
	downstream := &recordingConditionalSubscriber[int]{accept: func(int) bool { return true }}

	Prefetch[int](source, testConfig[int](4)).Subscribe(downstream)

	downstream.mu.Lock()
	defer downstream.mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, downstream.accepted)
	assert.Empty(t, downstream.declined)
}
