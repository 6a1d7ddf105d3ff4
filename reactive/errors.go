package reactive

import (
	"errors"
	"fmt"
)

// Sentinel errors for the protocol-violation and overflow taxonomy described
// in the operator's error-handling design. Wrap with fmt.Errorf("...: %w", ...)
// to attach context; compare with errors.Is against these sentinels.
var (
	// ErrProtocolViolation is surfaced when the upstream or downstream
	// breaks the Reactive Streams contract: a second OnSubscribe, or a
	// Request(n) with n <= 0.
	ErrProtocolViolation = errors.New("reactive: protocol violation")

	// ErrBackpressureOverflow is surfaced when a non-fused queue rejects an
	// Offer because it is already at capacity. The offending element is
	// discarded and the subscription terminates.
	ErrBackpressureOverflow = errors.New("reactive: queue full, cannot accept more values")

	// ErrPollFailed wraps an error returned by a caller-supplied Queue's
	// Poll. It is never swallowed: it cancels the upstream, clears the
	// queue, and terminates downstream with the wrapped cause.
	ErrPollFailed = errors.New("reactive: queue poll failed")
)

func protocolViolation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocolViolation, fmt.Sprintf(format, args...))
}

func overflowError(prefetch int) error {
	return fmt.Errorf("%w (capacity %d)", ErrBackpressureOverflow, prefetch)
}

func pollFailed(cause error) error {
	return fmt.Errorf("%w: %v", ErrPollFailed, cause)
}
