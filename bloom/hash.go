// Copyright ©2015 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bloom

import "github.com/twmb/murmur3"

// hashPair holds the two independent 64-bit hash halves produced by a
// single 128-bit hash of a key. The k probe indices for a key are derived
// from this pair by Kirsch-Mitzenmacher double hashing, so the expensive
// 128-bit mix is only ever computed once per key.
type hashPair struct {
	h1, h2 uint64
}

// hashKey computes the 128-bit primitive hash of key, split into two
// independent 64-bit halves.
func hashKey(key []byte) hashPair {
	h1, h2 := murmur3.Sum128(key)
	return hashPair{h1: h1, h2: h2}
}

// at returns the i-th of k independent hash values derived from p via
// double hashing: h_i = h1 + i*h2. This is the classic Kirsch-Mitzenmacher
// construction; it is sufficient for a Bloom filter's accuracy needs
// because h1 and h2 are independent halves of one high-quality 128-bit
// mix (see Kirsch & Mitzenmacher, "Less Hashing, Same Performance").
func (p hashPair) at(i int) uint64 {
	return p.h1 + uint64(i)*p.h2
}
