package reactive

// FusionMode enumerates the operator-fusion negotiation outcomes described
// in the prefetch operator's fusion protocol. Fusion lets adjacent stages
// share a single queue instead of round-tripping through push (OnNext) and
// pull (Request).
type FusionMode int32

const (
	// FusionNone means no fusion: the stage pushes values via OnNext and
	// honours demand communicated via Request.
	FusionNone FusionMode = iota
	// FusionSync means the upstream is a finite, synchronous source whose
	// values can all be drained via Poll without ever blocking or waiting
	// on an async signal; termination is detected by Poll returning empty.
	FusionSync
	// FusionAsync means the upstream pushes into a shared queue and signals
	// availability asynchronously; the consumer drains via Poll and detects
	// termination via a done flag plus an empty queue.
	FusionAsync
	// FusionAny is only ever passed as a request, asking the callee to pick
	// whichever of Sync/Async it prefers; it is never returned.
	FusionAny
)

func (m FusionMode) String() string {
	switch m {
	case FusionNone:
		return "NONE"
	case FusionSync:
		return "SYNC"
	case FusionAsync:
		return "ASYNC"
	case FusionAny:
		return "ANY"
	default:
		return "UNKNOWN"
	}
}

// uninitializedSourceMode is the sentinel sourceMode value before the
// upstream fusion negotiation has happened.
const uninitializedSourceMode FusionMode = -1

// Fuseable is implemented by a Subscription whose Publisher supports queue
// fusion. A Publisher advertises this by having the Subscription it hands to
// OnSubscribe implement Fuseable in addition to Subscription.
type Fuseable[T any] interface {
	Subscription
	// RequestFusion negotiates a fusion mode. Implementations return the
	// mode actually granted, which may be FusionNone if fusion is refused.
	RequestFusion(requested FusionMode) FusionMode
	// Poll removes and returns the next queued value. ok is false when the
	// queue is currently empty (which, combined with a done/terminal flag,
	// signals completion in fused mode). err is non-nil only if the
	// underlying queue implementation failed to poll (a fatal condition,
	// never swallowed).
	Poll() (T, bool, error)
	// Clear discards all currently queued values, invoking the discard
	// hook on each one whose mode requires it (see subscriber_plain.go).
	Clear()
	IsEmpty() bool
	Size() int
}
