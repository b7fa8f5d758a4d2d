// Package encoding implements the three wire encoders named in
// original_source/include/mdfh/encoding.hpp: the binary layout the
// ingestion pipeline actually decodes, plus a FIX-like and an ITCH-like
// encoder carried forward as alternative synthgen producers. Only
// BinaryEncoder round-trips with parser.Parser; FIXEncoder and ITCHEncoder
// exist to exercise synthgen against wire shapes other than the one this
// pipeline parses, not to claim compatibility with any real exchange
// protocol.
package encoding

import (
	"fmt"
	"time"

	"github.com/mdfh-labs/feedhub/bitio"
	"github.com/mdfh-labs/feedhub/record"
)

// Encoder turns a batch of Records into wire bytes, appending to buf and
// returning the extended slice — mirrors the original's encode_inplace,
// which reuses a caller-owned buffer instead of allocating per call.
type Encoder interface {
	Encode(msgs []record.Record, buf []byte) []byte
}

// BinaryEncoder writes the on-the-wire record layout the parser decodes:
// 20 bytes, little-endian, unframed and concatenated.
type BinaryEncoder struct{}

func (BinaryEncoder) Encode(msgs []record.Record, buf []byte) []byte {
	for _, m := range msgs {
		var b [record.Size]byte
		record.Encode(b[:], m)
		buf = append(buf, b[:]...)
	}
	return buf
}

// sofhSize is the Simple Open Framing Header used by both FIXEncoder and
// ITCHEncoder: a 4-byte big-endian message length (including the header
// itself) plus a 2-byte encoding type tag.
const sofhSize = 6

const (
	fixEncodingType  = 0x5000
	itchEncodingType = 0x4954 // 'IT'
)

// FIXConfig names the two FIX session identifiers the original's
// EncodingConfig carries.
type FIXConfig struct {
	SenderCompID string
	TargetCompID string
}

// DefaultFIXConfig matches the original's field defaults.
func DefaultFIXConfig() FIXConfig {
	return FIXConfig{SenderCompID: "MDFH_SIM", TargetCompID: "CLIENT"}
}

// FIXEncoder produces a minimal tag=value FIX 4.4 Market Data Incremental
// Refresh message per Record, each framed with an SOFH header and
// terminated by a standard FIX checksum field.
type FIXEncoder struct {
	Config FIXConfig
}

// NewFIXEncoder returns a FIXEncoder using DefaultFIXConfig.
func NewFIXEncoder() FIXEncoder {
	return FIXEncoder{Config: DefaultFIXConfig()}
}

func (e FIXEncoder) Encode(msgs []record.Record, buf []byte) []byte {
	for _, m := range msgs {
		body := e.buildBody(m)

		framed := make([]byte, sofhSize)
		bitio.StoreBE32(framed[0:4], uint32(sofhSize+len(body)))
		bitio.StoreBE16(framed[4:6], fixEncodingType)
		framed = append(framed, body...)

		buf = append(buf, framed...)
	}
	return buf
}

const soh = "\x01"

func (e FIXEncoder) buildBody(m record.Record) []byte {
	side := "0"
	if m.Quantity < 0 {
		side = "1"
	}
	qty := m.Quantity
	if qty < 0 {
		qty = -qty
	}

	tail := fmt.Sprintf(
		"35=X"+soh+"49=%s"+soh+"56=%s"+soh+"34=%d"+soh+"52=%s"+soh+
			"268=1"+soh+"279=0"+soh+"269=%s"+soh+"270=%.4f"+soh+"271=%d"+soh,
		e.Config.SenderCompID, e.Config.TargetCompID, m.Seq,
		time.Now().UTC().Format("20060102-15:04:05"),
		side, m.Price, qty,
	)

	bodyLength := fmt.Sprintf("9=%d"+soh, len(tail))
	msg := "8=FIX.4.4" + soh + bodyLength + tail
	checksum := fixChecksum(msg)
	msg += fmt.Sprintf("10=%03d"+soh, checksum)
	return []byte(msg)
}

// fixChecksum sums every byte modulo 256, matching the original's
// calculate_checksum.
func fixChecksum(msg string) uint8 {
	var sum uint32
	for i := 0; i < len(msg); i++ {
		sum += uint32(msg[i])
	}
	return uint8(sum % 256)
}

// ITCHEncoder writes the original's 26-byte fixed ITCHMsg layout, framed
// with the same SOFH header FIXEncoder uses but tagged as ITCH.
type ITCHEncoder struct{}

// itchMsgSize is msg_type(1) + timestamp(8) + seq(8) + price(4) + qty(4) +
// side(1) = 26 bytes, matching the original's static_assert.
const itchMsgSize = 26

func (ITCHEncoder) Encode(msgs []record.Record, buf []byte) []byte {
	now := uint64(time.Now().UnixNano())
	for _, m := range msgs {
		var frame [sofhSize + itchMsgSize]byte
		bitio.StoreBE32(frame[0:4], uint32(sofhSize+itchMsgSize))
		bitio.StoreBE16(frame[4:6], itchEncodingType)

		body := frame[sofhSize:]
		body[0] = 'Q'
		bitio.StoreBE64(body[1:9], now)
		bitio.StoreBE64(body[9:17], m.Seq)

		qty := m.Quantity
		side := byte('B')
		if qty < 0 {
			qty = -qty
			side = 'S'
		}
		bitio.StoreBE32(body[17:21], uint32(m.Price*10000))
		bitio.StoreBE32(body[21:25], uint32(qty))
		body[25] = side

		buf = append(buf, frame[:]...)
	}
	return buf
}
