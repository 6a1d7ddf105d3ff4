package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingOfferPollOrder(t *testing.T) {
	r := newRing[int](4)

	for i := 0; i < 8; i++ {
		require.True(t, r.Offer(i))
	}
	assert.False(t, r.Offer(99), "ring sized to 8 should be full after 8 offers")
	assert.Equal(t, 8, r.Size())

	for i := 0; i < 8; i++ {
		v, ok := r.Poll()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.True(t, r.IsEmpty())
	_, ok := r.Poll()
	assert.False(t, ok)
}

func TestRingWrapAround(t *testing.T) {
	r := newRing[string](4)

	require.True(t, r.Offer("a"))
	require.True(t, r.Offer("b"))
	v, ok := r.Poll()
	require.True(t, ok)
	assert.Equal(t, "a", v)

	require.True(t, r.Offer("c"))
	require.True(t, r.Offer("d"))
	require.True(t, r.Offer("e"))

	var got []string
	for {
		v, ok := r.Poll()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []string{"b", "c", "d", "e"}, got)
}

func TestRingClearDiscardsWithoutHook(t *testing.T) {
	r := newRing[int](8)
	for i := 0; i < 5; i++ {
		r.Offer(i)
	}
	r.Clear()
	assert.True(t, r.IsEmpty())
	assert.Equal(t, 0, r.Size())
}

func TestNextPowerOfTwo(t *testing.T) {
	cases := map[int]int{0: 1, 1: 1, 2: 2, 3: 4, 5: 8, 8: 8, 9: 16}
	for in, want := range cases {
		assert.Equal(t, want, nextPowerOfTwo(in), "input %d", in)
	}
}
