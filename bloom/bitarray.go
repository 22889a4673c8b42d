// Copyright ©2015 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bloom

import (
	"math/bits"
	"sync/atomic"
)

const wordBits = 64

// bitArray is a dense, word-packed bit vector supporting concurrent,
// linearizable test-and-set at the word level. Bits only ever
// transition 0 to 1; there is no way to clear a bit once set.
type bitArray struct {
	words []uint64
}

// newBitArray allocates a zeroed bitArray with room for at least nbits
// bits.
func newBitArray(nbits uint64) *bitArray {
	n := (nbits + wordBits - 1) / wordBits
	return &bitArray{words: make([]uint64, n)}
}

// len returns the number of addressable bits, which may exceed the
// nbits passed to newBitArray by up to wordBits-1.
func (b *bitArray) len() uint64 {
	return uint64(len(b.words)) * wordBits
}

// setIfUnset atomically sets the bit at index i and reports whether it
// transitioned from 0 to 1. It is safe under concurrent callers racing
// on the same or different bits.
func (b *bitArray) setIfUnset(i uint64) bool {
	word := &b.words[i/wordBits]
	mask := uint64(1) << (i % wordBits)
	for {
		old := atomic.LoadUint64(word)
		if old&mask != 0 {
			return false
		}
		if atomic.CompareAndSwapUint64(word, old, old|mask) {
			return true
		}
	}
}

// test reports whether the bit at index i is set.
func (b *bitArray) test(i uint64) bool {
	word := atomic.LoadUint64(&b.words[i/wordBits])
	return word&(uint64(1)<<(i%wordBits)) != 0
}

// popcount returns the total number of set bits. It is a non-atomic
// snapshot: concurrent setIfUnset calls may or may not be reflected.
func (b *bitArray) popcount() uint64 {
	var n uint64
	for _, w := range b.words {
		n += uint64(bits.OnesCount64(w))
	}
	return n
}
