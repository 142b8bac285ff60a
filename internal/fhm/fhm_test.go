package fhm

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newIntMap() *Map[int64, int64] {
	return New[int64, int64](Int64Hasher(), Int64Eq, 0, 0)
}

func TestSmoke(t *testing.T) {
	m := newIntMap()
	m.Insert(1, 10)
	m.Insert(2, 20)
	m.Insert(3, 30)

	v, ok := m.Find(2)
	assert.True(t, ok)
	assert.Equal(t, int64(20), *v)

	assert.True(t, m.Erase(1))
	assert.Equal(t, 2, m.Len())

	seen := map[int64]int64{}
	m.ForEach(func(k, v int64) bool {
		seen[k] = v
		return true
	})
	assert.Equal(t, map[int64]int64{2: 20, 3: 30}, seen)
}

// All keys collide on bucket 0; after erasing everything and reinserting the
// same keys, capacity must not have grown again (tombstones get reused).
func TestTombstoneReuse(t *testing.T) {
	collidingHasher := func(k int64) uint64 { return uint64(k & 0x7F) }
	m := New[int64, int64](collidingHasher, Int64Eq, 0, 0)

	for i := int64(0); i < 1024; i++ {
		m.Insert(i, i*10)
	}
	assert.Equal(t, 1024, m.Len())
	capAfterFirstPhase := m.Capacity()

	for i := int64(0); i < 1024; i++ {
		assert.True(t, m.Erase(i))
	}
	assert.Equal(t, 0, m.Len())

	for i := int64(0); i < 1024; i++ {
		m.Insert(i, i*100)
	}

	assert.Equal(t, 1024, m.Len())
	assert.Equal(t, capAfterFirstPhase, m.Capacity())
}

// Once growth_left reaches zero the next insert grows the table, even when a
// tombstone along the probe chain could have been reused.
func TestGrowthAtLimitIgnoresTombstones(t *testing.T) {
	collidingHasher := func(k int64) uint64 { return uint64(k & 0x7F) }
	m := New[int64, int64](collidingHasher, Int64Eq, 128, 75)

	limit := int64(128 * 75 / 100)
	for i := int64(0); i < limit; i++ {
		m.Insert(i, i)
	}
	assert.Equal(t, 128, m.Capacity())

	assert.True(t, m.Erase(0))
	m.Insert(1000, 1)
	assert.Equal(t, 256, m.Capacity())
	assert.Equal(t, int(limit), m.Len())

	v, ok := m.Find(1000)
	assert.True(t, ok)
	assert.Equal(t, int64(1), *v)
}

// A random insert/erase sequence keeps Find() and Len() coherent with a
// parallel map model.
func TestRoundtripProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m := newIntMap()
	model := map[int64]int64{}

	for i := 0; i < 20000; i++ {
		k := rng.Int63n(500)
		if rng.Intn(2) == 0 {
			v := rng.Int63()
			m.Insert(k, v)
			if _, exists := model[k]; !exists {
				model[k] = v
			}
		} else {
			m.Erase(k)
			delete(model, k)
		}
	}

	assert.Equal(t, len(model), m.Len())
	for k, want := range model {
		got, ok := m.Find(k)
		assert.True(t, ok)
		assert.Equal(t, want, *got)
	}
	for k := int64(0); k < 500; k++ {
		if _, inModel := model[k]; !inModel {
			_, ok := m.Find(k)
			assert.False(t, ok)
		}
	}
}

// Growing the map preserves the multiset of entries.
func TestGrowPreservesContents(t *testing.T) {
	m := newIntMap()
	want := map[int64]int64{}
	for i := int64(0); i < 5000; i++ {
		m.Insert(i, i*2)
		want[i] = i * 2
	}
	got := map[int64]int64{}
	m.ForEach(func(k, v int64) bool {
		got[k] = v
		return true
	})
	assert.Equal(t, want, got)
}

// Insert 256 keys whose tags span all 128 possible H2 values (two keys per
// tag), erase in a non-trivial order, and check size stays consistent with
// the control bytes at every step.
func TestAllTagsValid(t *testing.T) {
	tagHasher := func(k int64) uint64 { return uint64(k % 128) }
	m := New[int64, int64](tagHasher, Int64Eq, 0, 0)

	keys := make([]int64, 256)
	for i := range keys {
		keys[i] = int64(i)
	}
	for _, k := range keys {
		m.Insert(k, k)
		assert.Equal(t, countFull(m), m.Len())
	}

	rng := rand.New(rand.NewSource(2))
	rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	for _, k := range keys {
		m.Erase(k)
		assert.Equal(t, countFull(m), m.Len())
	}
}

func countFull(m *Map[int64, int64]) int {
	n := 0
	m.ForEach(func(int64, int64) bool {
		n++
		return true
	})
	return n
}

func TestIndexInsertsDefault(t *testing.T) {
	m := newIntMap()
	v := m.Index(42)
	assert.Equal(t, int64(0), *v)
	*v = 99
	got, ok := m.Find(42)
	assert.True(t, ok)
	assert.Equal(t, int64(99), *got)
}

// FindHash looks up by precomputed hash and a match predicate, without
// materializing a key value.
func TestFindHashHeterogeneousLookup(t *testing.T) {
	hasher := StringHasher()
	m := New[string, int](hasher, StringEq, 0, 0)
	m.Insert("alpha", 1)
	m.Insert("beta", 2)

	lookup := []byte("beta")
	v, ok := m.FindHash(hasher(string(lookup)), func(k string) bool { return k == string(lookup) })
	assert.True(t, ok)
	assert.Equal(t, 2, *v)

	_, ok = m.FindHash(hasher("gamma"), func(k string) bool { return k == "gamma" })
	assert.False(t, ok)
}

// A non-zero initial capacity is rounded up to a power of two no smaller
// than 128; zero defers allocation entirely.
func TestNewInitialCapacityRounding(t *testing.T) {
	m := New[int64, int64](Int64Hasher(), Int64Eq, 200, 0)
	assert.Equal(t, 256, m.Capacity())

	empty := newIntMap()
	assert.Equal(t, 0, empty.Capacity())
	empty.Clear() // no-op without an allocation
	assert.Equal(t, 0, empty.Capacity())
}

func TestClearKeepsAllocation(t *testing.T) {
	m := newIntMap()
	for i := int64(0); i < 200; i++ {
		m.Insert(i, i)
	}
	capBefore := m.Capacity()
	m.Clear()
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, capBefore, m.Capacity())
	_, ok := m.Find(5)
	assert.False(t, ok)
}
