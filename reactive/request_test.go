package reactive

import "testing"

func TestAddCapSaturates(t *testing.T) {
	cases := []struct {
		a, b, want int64
	}{
		{1, 2, 3},
		{Unbounded, 5, Unbounded},
		{5, Unbounded, Unbounded},
		{Unbounded - 1, 2, Unbounded},
	}
	for _, c := range cases {
		if got := addCap(c.a, c.b); got != c.want {
			t.Errorf("addCap(%d, %d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestSubCapFloorsAtZero(t *testing.T) {
	cases := []struct {
		a, b, want int64
	}{
		{5, 2, 3},
		{2, 5, 0},
		{Unbounded, 1000, Unbounded},
	}
	for _, c := range cases {
		if got := subCap(c.a, c.b); got != c.want {
			t.Errorf("subCap(%d, %d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestUnboundedOrLimitDefaultsToQuarter(t *testing.T) {
	if got := unboundedOrLimit(100, 0); got != 75 {
		t.Errorf("unboundedOrLimit(100, 0) = %d, want 75", got)
	}
}

func TestUnboundedOrLimitExplicitLowTide(t *testing.T) {
	if got := unboundedOrLimit(100, 90); got != 10 {
		t.Errorf("unboundedOrLimit(100, 90) = %d, want 10", got)
	}
}

func TestUnboundedOrLimitNeverZero(t *testing.T) {
	if got := unboundedOrLimit(2, 1); got != 1 {
		t.Errorf("unboundedOrLimit(2, 1) = %d, want 1", got)
	}
}

func TestUnboundedOrLimitPassesThroughUnboundedPrefetch(t *testing.T) {
	if got := unboundedOrLimit(UnboundedPrefetch, 0); got != UnboundedPrefetch {
		t.Errorf("unboundedOrLimit(UnboundedPrefetch, 0) = %d, want %d", got, UnboundedPrefetch)
	}
}
