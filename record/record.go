// Package record defines the wire-level unit of market data that crosses
// every ring in the ingestion data plane, and the cache-line-aligned cell
// that actually resides in a ring.
//
// Layout is load-bearing: a Record's encoded form is exactly 20 bytes
// (seq uint64, price float64, quantity int32, little-endian, no padding),
// and Slot must stay exactly 64 bytes so that adjacent ring cells never
// share a cache line. The in-memory Go struct is not packed: the compiler
// pads it to 24 bytes for 8-byte alignment, so Encode and Decode convert
// field by field rather than reinterpreting memory.
package record

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// Size is the on-the-wire byte width of an encoded Record.
const Size = 20

// Record is the fundamental unit of market data. Seq is monotonically
// increasing per feed; Quantity's sign encodes side (positive = buy,
// negative = sell) and zero is never valid.
type Record struct {
	Seq      uint64
	Price    float64
	Quantity int32
}

// Compile-time layout assertions: either array bound goes negative (a
// compile error) if the summed width of Record's fields ever drifts from
// Size.
const fieldBytes = int(unsafe.Sizeof(Record{}.Seq) + unsafe.Sizeof(Record{}.Price) + unsafe.Sizeof(Record{}.Quantity))

var _ [Size - fieldBytes]struct{}
var _ [fieldBytes - Size]struct{}

// Valid reports whether r satisfies the data-model invariants: a positive
// sequence number and a non-zero quantity. Malformed *bytes* still decode
// to some Record (there is no wire-level validation in this protocol) —
// Valid exists for callers that want to flag clearly-wrong records without
// rejecting them.
func (r Record) Valid() bool {
	return r.Seq > 0 && r.Quantity != 0
}

// Decode reads a Record from the first Size bytes of b, which are in
// little-endian order whatever the host's byte order. It panics if b is
// shorter than Size.
func Decode(b []byte) Record {
	_ = b[Size-1]
	return Record{
		Seq:      binary.LittleEndian.Uint64(b[0:8]),
		Price:    math.Float64frombits(binary.LittleEndian.Uint64(b[8:16])),
		Quantity: int32(binary.LittleEndian.Uint32(b[16:20])),
	}
}

// Encode writes r into the first Size bytes of b, which must have at least
// Size bytes of capacity.
func Encode(b []byte, r Record) {
	_ = b[Size-1]
	binary.LittleEndian.PutUint64(b[0:8], r.Seq)
	binary.LittleEndian.PutUint64(b[8:16], math.Float64bits(r.Price))
	binary.LittleEndian.PutUint32(b[16:20], uint32(r.Quantity))
}

// SlotSize is the cache-line width every Slot is padded to.
const SlotSize = 64

// slotPayload is the portion of Slot that actually carries data: the
// Record plus its receive timestamp. What remains of SlotSize is padding.
const slotPayload = int(unsafe.Sizeof(Record{})) + 8 // Record (24 in memory) + RxTS (8)

// Slot is what resides in a ring cell: one Record plus the nanosecond
// receive timestamp captured at emission time (monotonic raw clock).
// Padding fills out the remaining bytes of the cache line so that batched
// slot copies never straddle two lines and trigger false sharing between
// producer and consumer.
type Slot struct {
	Raw  Record
	RxTS uint64
	_    [SlotSize - slotPayload]byte
}

var _ [SlotSize - int(unsafe.Sizeof(Slot{}))]struct{}
var _ [int(unsafe.Sizeof(Slot{})) - SlotSize]struct{}

// FeedSlot is the MPSC fan-in payload: a Slot plus the feed that produced
// it and the time it arrived at the shared ring. ArrivalNS is a monotonic
// timestamp, not a wall-clock one, matching RxTS's clock source.
type FeedSlot struct {
	Base      Slot
	OriginID  uint32
	ArrivalNS int64
}
