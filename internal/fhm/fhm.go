// Package fhm implements a SwissTable-style open-addressed hash map: fixed-width
// groups of control bytes scanned together, a 7-bit tag split off the key hash,
// tombstones for lazy deletion, and triangular probing that is guaranteed to visit
// every group of a power-of-two-sized table before repeating.
//
// Go has no portable SIMD intrinsics without hand-written assembly, so groups here
// are always the 8-byte SWAR width (matching what the Go runtime's own built-in
// map falls back to on non-SIMD architectures), rather than picking a 16-byte SIMD
// group on platforms that would support it. This is a deliberate simplification,
// not an oversight.
//
// The table doubles whenever the growth-left budget is used up, however many
// tombstones it holds; there is no in-place rehash that reclaims tombstones
// without growing. A workload that keeps inserting and erasing distinct keys
// can therefore keep growing capacity while Len stays small.
//
// No operation here is safe for concurrent use; callers must serialize access to
// a single Map, same as any other Go map.
package fhm

import (
	"log/slog"
	"math/bits"
)

const (
	groupSize           = 8
	ctrlEmpty      byte = 0x80
	ctrlTombstone  byte = 0xFE
	defaultMinCap       = 128
	defaultLoadPct      = 75
)

// Hasher computes a 64-bit hash for a key. Implementations should be stable for
// the lifetime of a single Map but need not be stable across processes.
type Hasher[K any] func(K) uint64

// Eq reports whether two keys are equal.
type Eq[K any] func(a, b K) bool

type slot[K any, V any] struct {
	key   K
	value V
}

// Map is a SwissTable-style hash map from K to V.
type Map[K any, V any] struct {
	hasher Hasher[K]
	eq     Eq[K]

	ctrls []byte
	slots []slot[K, V]

	capacity      int
	size          int
	growthLeft    int
	loadLimitPct  int
	hasTombstones bool
}

// New constructs an empty Map. If initialCapacity is zero no backing storage is
// allocated yet (capacity() reports zero until the first Insert). If non-zero, it
// is rounded up to a power of two no smaller than 128, matching the invariant that
// capacity is zero or a power of two >= 128 once allocated.
//
// loadLimitPct must be in (0, 100]; a value of 0 or out of range is replaced with
// the default of 75 (permissive defaults over hard failures for config-ish
// parameters).
func New[K any, V any](hasher Hasher[K], eq Eq[K], initialCapacity int, loadLimitPct int) *Map[K, V] {
	if loadLimitPct <= 0 || loadLimitPct > 100 {
		loadLimitPct = defaultLoadPct
	}
	m := &Map[K, V]{hasher: hasher, eq: eq, loadLimitPct: loadLimitPct}
	if initialCapacity > 0 {
		m.allocate(roundUpCapacity(initialCapacity))
	}
	return m
}

func roundUpCapacity(n int) int {
	if n < defaultMinCap {
		n = defaultMinCap
	}
	p := defaultMinCap
	for p < n {
		p <<= 1
	}
	return p
}

func splitHash(h uint64) (h1 uint64, h2 byte) {
	return h >> 7, byte(h & 0x7F)
}

func (m *Map[K, V]) allocate(capacity int) {
	m.capacity = capacity
	m.ctrls = make([]byte, capacity+groupSize-1)
	for i := range m.ctrls {
		m.ctrls[i] = ctrlEmpty
	}
	m.slots = make([]slot[K, V], capacity)
	m.growthLeft = capacity * m.loadLimitPct / 100
	m.size = 0
	m.hasTombstones = false
}

// setCtrl writes the control byte at idx, mirroring it into the cloned tail when
// idx falls within the first groupSize-1 positions. This mirror is a correctness
// requirement (groups straddling the end of the table must see consistent bytes),
// not an optimization, and must be maintained on every write to an early slot.
func (m *Map[K, V]) setCtrl(idx int, c byte) {
	m.ctrls[idx] = c
	if idx < groupSize-1 {
		m.ctrls[m.capacity+idx] = c
	}
}

func matchByte(window []byte, want byte) uint8 {
	var mask uint8
	for i, c := range window {
		if c == want {
			mask |= 1 << uint(i)
		}
	}
	return mask
}

func matchEmpty(window []byte) uint8 {
	return matchByte(window, ctrlEmpty)
}

func matchEmptyOrDeleted(window []byte) uint8 {
	var mask uint8
	for i, c := range window {
		if c&0x80 != 0 {
			mask |= 1 << uint(i)
		}
	}
	return mask
}

// Len returns the number of live entries.
func (m *Map[K, V]) Len() int { return m.size }

// Capacity returns the current backing capacity (0 if nothing has been allocated
// yet).
func (m *Map[K, V]) Capacity() int { return m.capacity }

// Find returns a pointer to the value for k, and true, if present.
func (m *Map[K, V]) Find(k K) (*V, bool) {
	if m.capacity == 0 {
		return nil, false
	}
	h1, h2 := splitHash(m.hasher(k))
	mask := uint64(m.capacity - 1)
	offset := h1 & mask
	var probeIndex uint64
	for {
		window := m.ctrls[offset : offset+groupSize]
		mm := matchByte(window, h2)
		for mm != 0 {
			i := bits.TrailingZeros8(mm)
			idx := int((offset + uint64(i)) & mask)
			if m.eq(m.slots[idx].key, k) {
				return &m.slots[idx].value, true
			}
			mm &= mm - 1
		}
		if matchEmpty(window) != 0 {
			return nil, false
		}
		probeIndex += groupSize
		offset = (offset + probeIndex) & mask
	}
}

// FindHash performs a heterogeneous lookup: the caller supplies an already
// computed hash (consistent with Hasher for equal keys) and a match predicate,
// avoiding the need to materialize a K value for the lookup key (for example,
// searching a string-keyed map from a borrowed byte slice).
func (m *Map[K, V]) FindHash(h uint64, match func(K) bool) (*V, bool) {
	if m.capacity == 0 {
		return nil, false
	}
	h1, h2 := splitHash(h)
	mask := uint64(m.capacity - 1)
	offset := h1 & mask
	var probeIndex uint64
	for {
		window := m.ctrls[offset : offset+groupSize]
		mm := matchByte(window, h2)
		for mm != 0 {
			i := bits.TrailingZeros8(mm)
			idx := int((offset + uint64(i)) & mask)
			if match(m.slots[idx].key) {
				return &m.slots[idx].value, true
			}
			mm &= mm - 1
		}
		if matchEmpty(window) != 0 {
			return nil, false
		}
		probeIndex += groupSize
		offset = (offset + probeIndex) & mask
	}
}

// Insert inserts k=>v if absent, or leaves an existing entry untouched. Returns a
// pointer to the (possibly pre-existing) value and true iff a new entry was
// created.
func (m *Map[K, V]) Insert(k K, v V) (*V, bool) {
	if m.capacity == 0 {
		m.allocate(defaultMinCap)
	}
	for {
		h1, h2 := splitHash(m.hasher(k))
		mask := uint64(m.capacity - 1)
		offset := h1 & mask
		var probeIndex uint64
		firstNonFull := -1
		firstNonFullIsEmpty := false
		for {
			window := m.ctrls[offset : offset+groupSize]
			mm := matchByte(window, h2)
			for mm != 0 {
				i := bits.TrailingZeros8(mm)
				idx := int((offset + uint64(i)) & mask)
				if m.eq(m.slots[idx].key, k) {
					return &m.slots[idx].value, false
				}
				mm &= mm - 1
			}
			if firstNonFull == -1 {
				if nm := matchEmptyOrDeleted(window); nm != 0 {
					i := bits.TrailingZeros8(nm)
					firstNonFull = int((offset + uint64(i)) & mask)
					firstNonFullIsEmpty = window[i] == ctrlEmpty
				}
			}
			if matchEmpty(window) != 0 {
				break
			}
			probeIndex += groupSize
			if probeIndex > uint64(m.capacity) {
				panic("fhm: probe sequence exceeded capacity, table invariant violated")
			}
			offset = (offset + probeIndex) & mask
		}

		// The grow decision depends on growth_left alone, not on whether the
		// insertion point is an Empty slot or a reusable Tombstone.
		if m.growthLeft == 0 {
			m.grow()
			continue // recompute from scratch against the new table
		}

		m.setCtrl(firstNonFull, h2)
		m.slots[firstNonFull] = slot[K, V]{key: k, value: v}
		m.size++
		if firstNonFullIsEmpty {
			m.growthLeft--
		}
		return &m.slots[firstNonFull].value, true
	}
}

// Index returns a pointer to the value for k, inserting the zero value of V if
// absent (`index(k)` -> insert(k, default()) then return).
func (m *Map[K, V]) Index(k K) *V {
	var zero V
	v, _ := m.Insert(k, zero)
	return v
}

// Erase removes k if present, returning true iff something was removed.
func (m *Map[K, V]) Erase(k K) bool {
	if m.capacity == 0 {
		return false
	}
	h1, h2 := splitHash(m.hasher(k))
	mask := uint64(m.capacity - 1)
	offset := h1 & mask
	var probeIndex uint64
	for {
		window := m.ctrls[offset : offset+groupSize]
		mm := matchByte(window, h2)
		for mm != 0 {
			i := bits.TrailingZeros8(mm)
			idx := int((offset + uint64(i)) & mask)
			if m.eq(m.slots[idx].key, k) {
				m.setCtrl(idx, ctrlTombstone)
				var zero slot[K, V]
				m.slots[idx] = zero
				m.size--
				m.hasTombstones = true
				return true
			}
			mm &= mm - 1
		}
		if matchEmpty(window) != 0 {
			return false
		}
		probeIndex += groupSize
		offset = (offset + probeIndex) & mask
	}
}

// Clear destroys every live element and resets every control byte to Empty,
// keeping the current allocation (a no-op if capacity is 0).
func (m *Map[K, V]) Clear() {
	if m.capacity == 0 {
		return
	}
	for i := range m.ctrls {
		m.ctrls[i] = ctrlEmpty
	}
	for i := range m.slots {
		m.slots[i] = slot[K, V]{}
	}
	m.size = 0
	m.growthLeft = m.capacity * m.loadLimitPct / 100
	m.hasTombstones = false
}

// grow doubles capacity (or allocates the default minimum capacity if this is the
// very first allocation) and rehashes every live entry. Capacity overflow on grow
// is the one fatal condition in this package: it panics unconditionally (not just
// in debug builds) as a defense against wraparound.
func (m *Map[K, V]) grow() {
	oldCtrls, oldSlots, oldCapacity := m.ctrls, m.slots, m.capacity
	newCapacity := defaultMinCap
	if oldCapacity > 0 {
		newCapacity = oldCapacity * 2
		if newCapacity <= oldCapacity {
			panic("fhm: capacity overflow on grow")
		}
	}
	slog.Debug("growing flat hash map", "old_capacity", oldCapacity, "new_capacity", newCapacity, "size", m.size)
	m.allocate(newCapacity)
	for i := 0; i < oldCapacity; i++ {
		if oldCtrls[i]&0x80 != 0 {
			continue // empty or tombstone
		}
		m.insertFresh(oldSlots[i].key, oldSlots[i].value)
	}
}

// insertFresh places a key known not to already be present into a table that is
// known to have room, without needing to compare against existing keys beyond
// probing past occupied groups. Used only during grow/rehash.
func (m *Map[K, V]) insertFresh(k K, v V) {
	h1, h2 := splitHash(m.hasher(k))
	mask := uint64(m.capacity - 1)
	offset := h1 & mask
	var probeIndex uint64
	for {
		window := m.ctrls[offset : offset+groupSize]
		if em := matchEmpty(window); em != 0 {
			i := bits.TrailingZeros8(em)
			idx := int((offset + uint64(i)) & mask)
			m.setCtrl(idx, h2)
			m.slots[idx] = slot[K, V]{key: k, value: v}
			m.size++
			m.growthLeft--
			return
		}
		probeIndex += groupSize
		offset = (offset + probeIndex) & mask
	}
}

// ForEach calls f for every live entry in unspecified order, stopping early if f
// returns false. Mutating the map from within f is undefined behavior.
func (m *Map[K, V]) ForEach(f func(K, V) bool) {
	for i := 0; i < m.capacity; i++ {
		if m.ctrls[i]&0x80 != 0 {
			continue
		}
		if !f(m.slots[i].key, m.slots[i].value) {
			return
		}
	}
}

// Keys returns a snapshot of all live keys in unspecified order.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.size)
	m.ForEach(func(k K, _ V) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}
