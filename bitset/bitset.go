// Package bitset implements a compact set of small non-negative integers.
//
// Sets up to 64 elements live entirely in an inline word and never touch
// the heap. Larger sets switch to a heap-allocated word slice.
package bitset

import "math/bits"

const wordBits = 64

// BitSet is a bitmap over register or block indices.
// BitSet values must not be copied after first use; use Copy.
type BitSet struct {
	words []uint64
	w0    [1]uint64
}

// New creates a BitSet able to hold values in [0, size) without growing.
func New(size int) *BitSet {
	b := &BitSet{}
	b.words = b.w0[:]
	if n := (size + wordBits - 1) / wordBits; n > 1 {
		b.words = make([]uint64, n)
	}
	return b
}

func mask(i uint32) uint64 {
	return uint64(1) << (i % wordBits)
}

// Set adds val to the set.
func (b *BitSet) Set(val uint32) {
	word := int(val / wordBits)
	if word >= len(b.words) {
		b.grow(word + 1)
	}
	b.words[word] |= mask(val)
}

// Clear removes val from the set.
func (b *BitSet) Clear(val uint32) {
	word := int(val / wordBits)
	if word < len(b.words) {
		b.words[word] &^= mask(val)
	}
}

// Has returns true if val is in the set.
func (b *BitSet) Has(val uint32) bool {
	word := int(val / wordBits)
	if word >= len(b.words) {
		return false
	}
	return b.words[word]&mask(val) != 0
}

// Union adds all elements from other into this set and reports whether b changed.
func (b *BitSet) Union(other *BitSet) bool {
	if len(other.words) > len(b.words) {
		b.grow(len(other.words))
	}
	changed := false
	for i, w := range other.words {
		n := b.words[i] | w
		if n != b.words[i] {
			b.words[i] = n
			changed = true
		}
	}
	return changed
}

// Intersect keeps only the elements also present in other.
func (b *BitSet) Intersect(other *BitSet) {
	for i := range b.words {
		if i < len(other.words) {
			b.words[i] &= other.words[i]
		} else {
			b.words[i] = 0
		}
	}
}

// Difference removes every element of other.
func (b *BitSet) Difference(other *BitSet) {
	for i, w := range other.words {
		if i == len(b.words) {
			break
		}
		b.words[i] &^= w
	}
}

// Equal reports whether both sets hold the same elements.
func (b *BitSet) Equal(other *BitSet) bool {
	n := max(len(b.words), len(other.words))
	for i := 0; i < n; i++ {
		var x, y uint64
		if i < len(b.words) {
			x = b.words[i]
		}
		if i < len(other.words) {
			y = other.words[i]
		}
		if x != y {
			return false
		}
	}
	return true
}

// Copy returns an independent copy of the set.
func (b *BitSet) Copy() *BitSet {
	c := New(len(b.words) * wordBits)
	copy(c.words, b.words)
	return c
}

// Reset clears all elements from the set.
func (b *BitSet) Reset() {
	for i := range b.words {
		b.words[i] = 0
	}
}

// Empty reports whether the set has no elements.
func (b *BitSet) Empty() bool {
	for _, w := range b.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// Count returns the number of elements in the set.
func (b *BitSet) Count() int {
	count := 0
	for _, w := range b.words {
		count += bits.OnesCount64(w)
	}
	return count
}

// Range calls f for every element in ascending order until f returns false.
func (b *BitSet) Range(f func(val uint32) bool) {
	for i, w := range b.words {
		for w != 0 {
			j := bits.TrailingZeros64(w)
			if !f(uint32(i*wordBits + j)) {
				return
			}
			w &= w - 1
		}
	}
}

// ToSlice returns sorted slice of all values in the set.
func (b *BitSet) ToSlice() []uint32 {
	result := make([]uint32, 0, b.Count())
	b.Range(func(val uint32) bool {
		result = append(result, val)
		return true
	})
	return result
}

// grow expands the bitset to n words.
// Callers guarantee n > len(b.words).
func (b *BitSet) grow(n int) {
	words := make([]uint64, n)
	copy(words, b.words)
	b.words = words
}
