package obslog

import "testing"

func TestHotCounters(t *testing.T) {
	var h Hot
	h.Drop()
	h.Drop()
	h.Fault()
	if h.Drops() != 2 {
		t.Fatalf("Drops() = %d, want 2", h.Drops())
	}
	if h.Faults() != 1 {
		t.Fatalf("Faults() = %d, want 1", h.Faults())
	}
}
