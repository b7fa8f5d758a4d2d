package record

import (
	"testing"
	"unsafe"
)

// TestRecordSize pins the on-the-wire contract: exactly 20 bytes, no padding.
func TestRecordSize(t *testing.T) {
	if got := unsafe.Sizeof(Record{}); got != Size {
		t.Fatalf("Record size = %d, want %d", got, Size)
	}
}

// TestSlotSize pins the cache-line alignment invariant from the data model.
func TestSlotSize(t *testing.T) {
	if got := unsafe.Sizeof(Slot{}); got != SlotSize {
		t.Fatalf("Slot size = %d, want %d", got, SlotSize)
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		name string
		r    Record
		want bool
	}{
		{"zero value", Record{}, false},
		{"zero seq", Record{Seq: 0, Price: 1, Quantity: 5}, false},
		{"zero quantity", Record{Seq: 1, Price: 1, Quantity: 0}, false},
		{"sell side", Record{Seq: 1, Price: 1, Quantity: -5}, true},
		{"buy side", Record{Seq: 1, Price: 1, Quantity: 5}, true},
	}
	for _, c := range cases {
		if got := c.r.Valid(); got != c.want {
			t.Errorf("%s: Valid() = %v, want %v", c.name, got, c.want)
		}
	}
}

// TestEncodeDecodeRoundTrip checks Decode(Encode(r)) == r for a handful of
// representative records, including negative quantities (sell side).
func TestEncodeDecodeRoundTrip(t *testing.T) {
	recs := []Record{
		{Seq: 1, Price: 100.25, Quantity: 10},
		{Seq: 1 << 40, Price: -0.5, Quantity: -1},
		{Seq: 18446744073709551615, Price: 0, Quantity: 2147483647},
	}
	buf := make([]byte, Size)
	for _, r := range recs {
		Encode(buf, r)
		got := Decode(buf)
		if got != r {
			t.Errorf("round trip: got %+v, want %+v", got, r)
		}
	}
}
