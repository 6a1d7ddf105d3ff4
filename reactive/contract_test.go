package reactive

import "testing"

type discardOnce struct{ discarded *bool }

func (d discardOnce) Discard() { *d.discarded = true }

func TestDiscardInvokesHookWhenPresent(t *testing.T) {
	var called bool
	discard[discardOnce](discardOnce{discarded: &called})
	if !called {
		t.Fatal("expected Discard to be invoked")
	}
}

func TestDiscardIsNoOpForNonDiscardable(t *testing.T) {
	// must not panic when T does not implement Discardable
	discard[int](42)
}
