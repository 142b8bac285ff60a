package fhm

import "hash/maphash"

// StringHasher returns a Hasher[string] seeded once at construction time and
// stable for the lifetime of the returned function: implementation-defined
// but stable within a process, which is all callers that hash keys across
// lookups in the same map instance require.
func StringHasher() Hasher[string] {
	seed := maphash.MakeSeed()
	return func(s string) uint64 {
		var h maphash.Hash
		h.SetSeed(seed)
		_, _ = h.WriteString(s)
		return h.Sum64()
	}
}

// StringEq is the equality function for string keys.
func StringEq(a, b string) bool { return a == b }

// Int64Hasher returns a Hasher[int64] using a fixed-width mix (splitmix64),
// adequate for integer keys without needing to go through maphash's streaming
// API for a single 8-byte input.
func Int64Hasher() Hasher[int64] {
	return func(k int64) uint64 {
		x := uint64(k)
		x += 0x9E3779B97F4A7C15
		x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
		x = (x ^ (x >> 27)) * 0x94D049BB133111EB
		return x ^ (x >> 31)
	}
}

// Int64Eq is the equality function for int64 keys.
func Int64Eq(a, b int64) bool { return a == b }
