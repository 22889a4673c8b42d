// Copyright ©2015 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bloom implements a space-optimal probabilistic set keyed by
// template fingerprints.
//
// Unlike github.com/greatroar/blobloom's blocked design, which trades
// memory for cache locality, this is the classic unblocked Bloom
// filter: a single dense bit array addressed directly by k hash
// indices. Deduplication only ever performs Add and Contains against
// a filter sized once at startup, so the blocking tradeoff buys
// nothing here and a simpler, analytically-sized design is used
// instead.
package bloom

import (
	"fmt"
	"math"
)

// Dimension computes the bit-array width m and hash count k that
// satisfy a target false-positive rate p for n expected insertions:
//
//	m = ceil(-n*ln(p) / (ln 2)^2)
//	k = round(m/n * ln 2), clamped to >= 1
func Dimension(n uint64, p float64) (m uint64, k int) {
	nf := float64(n)
	mf := math.Ceil(-nf * math.Log(p) / (math.Ln2 * math.Ln2))
	if mf < 1 {
		mf = 1
	}
	m = uint64(mf)

	kf := math.Round(mf / nf * math.Ln2)
	k = int(kf)
	if k < 1 {
		k = 1
	}
	return m, k
}

// MinBits returns the smallest bit-array width that can achieve false
// positive rate p for n expected insertions; it is Dimension's m
// without the cost of allocating a Filter, for use by configuration
// validation and the memcalc diagnostic.
func MinBits(n uint64, p float64) uint64 {
	m, _ := Dimension(n, p)
	return m
}

// Filter is a thread-safe Bloom filter with an immutable sizing triple
// (n, p, m, k) and a mutable, monotonically-growing bit array.
type Filter struct {
	n uint64
	p float64
	m uint64
	k int

	pow2 bool
	bits *bitArray
}

// New constructs a Filter sized from the expected item count n and
// target false-positive rate p, per Dimension.
func New(n uint64, p float64) *Filter {
	m, k := Dimension(n, p)
	return newSized(n, p, m, k)
}

// NewWithBits constructs a Filter for n expected items and target
// false-positive rate p, but with the bit-array width overridden to
// mbits (the --mem flag of cmd/streammd). It returns an error if
// mbits is smaller than the theoretical minimum required for any
// k >= 1, refusing rather than silently degrading to a weaker filter.
func NewWithBits(n uint64, p float64, mbits uint64) (*Filter, error) {
	min := MinBits(n, p)
	if mbits < min {
		return nil, fmt.Errorf("bloom: requested memory gives m=%d bits, below the minimum %d bits required for n=%d, p=%g; suggest at least %d bits (%.2f MiB)",
			mbits, min, n, p, min, float64(min)/8/(1<<20))
	}
	_, k := Dimension(n, p)
	return newSized(n, p, mbits, k), nil
}

func newSized(n uint64, p float64, m uint64, k int) *Filter {
	return &Filter{
		n:    n,
		p:    p,
		m:    m,
		k:    k,
		pow2: m != 0 && m&(m-1) == 0,
		bits: newBitArray(m),
	}
}

// M returns the configured bit-array width.
func (f *Filter) M() uint64 { return f.m }

// K returns the configured hash count.
func (f *Filter) K() int { return f.k }

// N returns the configured expected item count.
func (f *Filter) N() uint64 { return f.n }

// P returns the configured target false-positive rate.
func (f *Filter) P() float64 { return f.p }

// index reduces a raw hash value to a bit index in [0, m), using the
// power-of-two mask fast path when applicable.
func (f *Filter) index(h uint64) uint64 {
	if f.pow2 {
		return h & (f.m - 1)
	}
	return h % f.m
}

// Add inserts key into f. It returns true if key was definitely new
// (at least one of its k bits transitioned 0->1), or false if key was
// probably already present. Add is safe for concurrent use.
func (f *Filter) Add(key []byte) bool {
	h := hashKey(key)
	var isNew bool
	for i := 0; i < f.k; i++ {
		idx := f.index(h.at(i))
		if f.bits.setIfUnset(idx) {
			isNew = true
		}
	}
	return isNew
}

// Contains reports whether key has (probably) been added to f. It
// never returns a false negative: if key was ever passed to a
// successful Add, Contains(key) is true.
func (f *Filter) Contains(key []byte) bool {
	h := hashKey(key)
	for i := 0; i < f.k; i++ {
		idx := f.index(h.at(i))
		if !f.bits.test(idx) {
			return false
		}
	}
	return true
}

// CountEstimate estimates the number of distinct keys added to f from
// the fraction of set bits:
//
//	x = popcount(B)
//	estimate = round(-(m/k) * ln(1 - x/m))
func (f *Filter) CountEstimate() uint64 {
	x := f.bits.popcount()
	if x == 0 {
		return 0
	}
	mf := float64(f.m)
	xf := float64(x)
	if xf >= mf {
		// Filter is saturated; the estimator diverges to +Inf.
		xf = mf - 1
	}
	est := -(mf / float64(f.k)) * math.Log(1-xf/mf)
	return uint64(math.Round(est))
}

// FillRatio returns the fraction of bits currently set, x/m.
func (f *Filter) FillRatio() float64 {
	return float64(f.bits.popcount()) / float64(f.m)
}

// EstimatedFPR returns the theoretical false-positive rate
// (1 - e^(-kn/m))^k, evaluated at the configured n rather than the
// live count, for reporting alongside the metrics summary. It does
// not depend on the filter's current fill.
func (f *Filter) EstimatedFPR() float64 {
	kf := float64(f.k)
	exponent := -kf * float64(f.n) / float64(f.m)
	return math.Pow(1-math.Exp(exponent), kf)
}
