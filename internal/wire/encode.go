package wire

import (
	"math"

	"github.com/tpsql-core/tpsql/internal/dec"
)

// Builder accumulates fields for a single wire message and serializes them in
// append order. It is the encoding counterpart used by tests (and by any
// future real encoder) to construct StructuredQuery byte strings that
// internal/sqlgen then decodes, mirroring the role a generated protozero
// message builder would play if this repository compiled .proto schemas.
type Builder struct {
	buf []byte
}

// NewBuilder returns an empty message builder.
func NewBuilder() *Builder { return &Builder{} }

// Bytes returns the serialized message built so far.
func (b *Builder) Bytes() []byte { return b.buf }

// String appends a length-delimited UTF-8 string field. An empty s appends
// nothing.
func (b *Builder) String(field uint16, s string) *Builder {
	if s == "" {
		return b
	}
	b.buf = dec.EncodeBytesField(b.buf, field, []byte(s))
	return b
}

// Message appends a length-delimited raw-bytes field (e.g. a nested message).
func (b *Builder) Message(field uint16, msg []byte) *Builder {
	b.buf = dec.EncodeBytesField(b.buf, field, msg)
	return b
}

// Varint appends a varint-encoded field.
func (b *Builder) Varint(field uint16, v uint64) *Builder {
	b.buf = dec.EncodeTag(b.buf, field, dec.WireVarint)
	b.buf = dec.EncodeVarint(b.buf, v)
	return b
}

// Int64 appends a signed varint field using zigzag encoding, so negative
// timestamps/durations round-trip correctly.
func (b *Builder) Int64(field uint16, v int64) *Builder {
	return b.Varint(field, zigzagEncode(v))
}

// Bool appends a varint boolean field. A false v appends nothing.
func (b *Builder) Bool(field uint16, v bool) *Builder {
	if !v {
		return b
	}
	return b.Varint(field, 1)
}

// Double appends a fixed64 IEEE-754 double field.
func (b *Builder) Double(field uint16, v float64) *Builder {
	b.buf = dec.EncodeTag(b.buf, field, dec.WireFixed64)
	b.buf = dec.EncodeFixed64(b.buf, doubleBits(v))
	return b
}

func zigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

// ZigzagDecode reverses zigzagEncode; exported for internal/sqlgen's decoder.
func ZigzagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

func doubleBits(v float64) uint64 {
	return math.Float64bits(v)
}
