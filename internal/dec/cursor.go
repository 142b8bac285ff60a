package dec

// ScalarKind identifies which numeric wire representation a Scalar holds.
type ScalarKind int

const (
	ScalarVarInt ScalarKind = iota
	ScalarFixed32
	ScalarFixed64
)

// Scalar is a tagged numeric value extracted from a scalar field, mirroring
// the wire type it was read as rather than any particular target Go type.
type Scalar struct {
	Kind ScalarKind
	Raw  uint64
}

// VarInt builds a Scalar of kind VarInt.
func VarInt(v uint64) Scalar { return Scalar{Kind: ScalarVarInt, Raw: v} }

// Fixed32Scalar builds a Scalar of kind Fixed32.
func Fixed32Scalar(v uint32) Scalar { return Scalar{Kind: ScalarFixed32, Raw: uint64(v)} }

// Fixed64Scalar builds a Scalar of kind Fixed64.
func Fixed64Scalar(v uint64) Scalar { return Scalar{Kind: ScalarFixed64, Raw: v} }

// AsUint64 widens the scalar's raw payload to uint64 regardless of kind.
func (s Scalar) AsUint64() uint64 { return s.Raw }

// Cursor is a stack-free navigator over a single record's worth of wire
// bytes. It is a plain value type: copy it to fork exploration without
// disturbing the original, same as perfetto's RoCursor.
//
// A Cursor always points at either a length-delimited payload (isBytes) or a
// scalar value; the zero Cursor points at an empty bytes payload.
type Cursor struct {
	isScalar bool
	bytes    []byte
	scalar   Scalar
}

// NewCursor wraps buf as a top-level record.
func NewCursor(buf []byte) Cursor {
	return Cursor{bytes: buf}
}

// IsBytes reports whether the cursor currently points at a length-delimited
// payload.
func (c Cursor) IsBytes() bool { return !c.isScalar }

// IsScalar reports whether the cursor currently points at a varint/fixed
// payload.
func (c Cursor) IsScalar() bool { return c.isScalar }

// findLast scans the current bytes payload for every occurrence of id,
// returning the last one found, or ok=false if none exist. err is non-nil
// only for malformed wire data.
func (c Cursor) findLast(id uint16) (f Field, ok bool, err error) {
	buf := c.bytes
	for len(buf) > 0 {
		var field Field
		var more bool
		field, buf, more, err = NextField(buf)
		if err != nil {
			return Field{}, false, err
		}
		if !more {
			break
		}
		if field.ID == id {
			f, ok = field, true
		}
	}
	return f, ok, nil
}

// findAt scans for the index-th (0-based) occurrence of id.
func (c Cursor) findAt(id uint16, index int) (f Field, ok bool, err error) {
	buf := c.bytes
	seen := 0
	for len(buf) > 0 {
		var field Field
		var more bool
		field, buf, more, err = NextField(buf)
		if err != nil {
			return Field{}, false, err
		}
		if !more {
			break
		}
		if field.ID == id {
			if seen == index {
				return field, true, nil
			}
			seen++
		}
	}
	return Field{}, false, nil
}

func fieldToCursor(f Field) Cursor {
	if f.Type == WireBytes {
		return Cursor{bytes: f.Data}
	}
	return Cursor{isScalar: true, scalar: Scalar{Kind: scalarKindOf(f.Type), Raw: f.Raw}}
}

func scalarKindOf(t WireType) ScalarKind {
	switch t {
	case WireFixed32:
		return ScalarFixed32
	case WireFixed64:
		return ScalarFixed64
	default:
		return ScalarVarInt
	}
}

// EnterField descends into the last occurrence of field id inside the
// current record. Returns ErrTypeMismatch if the current cursor is not a
// record, ErrFieldAbsent if id does not occur.
func (c Cursor) EnterField(id uint16) (Cursor, error) {
	if c.isScalar {
		return Cursor{}, ErrTypeMismatch
	}
	f, ok, err := c.findLast(id)
	if err != nil {
		return Cursor{}, err
	}
	if !ok {
		return Cursor{}, ErrFieldAbsent
	}
	return fieldToCursor(f), nil
}

// EnterRepeatedFieldAt descends into the index-th (0-based) occurrence of
// field id.
func (c Cursor) EnterRepeatedFieldAt(id uint16, index int) (Cursor, error) {
	if c.isScalar {
		return Cursor{}, ErrTypeMismatch
	}
	f, ok, err := c.findAt(id, index)
	if err != nil {
		return Cursor{}, err
	}
	if !ok {
		return Cursor{}, ErrFieldAbsent
	}
	return fieldToCursor(f), nil
}

// RepeatedFieldIterator yields one child Cursor per occurrence of a field id,
// in source order.
type RepeatedFieldIterator struct {
	buf        []byte
	id         uint16
	cur        Cursor
	hasCurrent bool
	err        error
}

// IterateRepeatedField returns an iterator over every occurrence of field id
// inside the current record. If the current cursor is a scalar this returns
// ErrTypeMismatch. If id is absent, it returns a valid, immediately-exhausted
// iterator (Ok, not Error) per the contract that an absent repeated field is
// indistinguishable from an empty one.
func (c Cursor) IterateRepeatedField(id uint16) (*RepeatedFieldIterator, error) {
	if c.isScalar {
		return nil, ErrTypeMismatch
	}
	it := &RepeatedFieldIterator{buf: c.bytes, id: id}
	it.advance()
	return it, nil
}

// advance scans forward from it.buf to the next occurrence of it.id, leaving
// it.cur valid and it.buf positioned just past the consumed field. Sets
// it.err on malformed input and clears it.cur.
func (it *RepeatedFieldIterator) advance() {
	for len(it.buf) > 0 {
		field, rest, more, err := NextField(it.buf)
		it.buf = rest
		if err != nil {
			it.err = err
			it.cur = Cursor{}
			it.hasCurrent = false
			return
		}
		if !more {
			break
		}
		if field.ID == it.id {
			it.cur = fieldToCursor(field)
			it.hasCurrent = true
			return
		}
	}
	it.cur = Cursor{}
	it.hasCurrent = false
	it.buf = nil
}

// Valid reports whether the iterator currently has an element. A false
// return, whether from exhaustion or a decode error, ends iteration.
func (it *RepeatedFieldIterator) Valid() bool {
	return it.err == nil && it.hasCurrent
}

// Err returns any malformed-input error encountered while iterating.
func (it *RepeatedFieldIterator) Err() error { return it.err }

// Current returns the cursor at the iterator's current position. Only valid
// to call when Valid() is true.
func (it *RepeatedFieldIterator) Current() Cursor { return it.cur }

// Next advances the iterator to the next occurrence.
func (it *RepeatedFieldIterator) Next() { it.advance() }

// GetScalar returns the scalar value at the current cursor. Requires the
// cursor to point at a scalar; otherwise returns ErrTypeMismatch.
func (c Cursor) GetScalar() (Scalar, error) {
	if !c.isScalar {
		return Scalar{}, ErrTypeMismatch
	}
	return c.scalar, nil
}

// GetBytes returns the length-delimited payload at the current cursor.
// Requires the cursor to point at bytes; otherwise returns ErrTypeMismatch.
func (c Cursor) GetBytes() ([]byte, error) {
	if c.isScalar {
		return nil, ErrTypeMismatch
	}
	return c.bytes, nil
}
