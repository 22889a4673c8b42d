// Copyright ©2015 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bloom

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDimensionKnownAnswers(t *testing.T) {
	// Expected m, k computed directly from the m >= -n*ln(p)/(ln2)^2,
	// k = round(m/n * ln2) formulas of spec.md Sec 3/4.3.
	cases := []struct {
		n uint64
		p float64
		m uint64
		k int
	}{
		{1e6, 1e-6, 28_755_176, 20},
		{1e7, 1e-7, 335_477_044, 23},
		{1e8, 1e-8, 3_834_023_351, 27},
		{1e9, 1e-6, 28_755_175_133, 20},
	}
	for _, c := range cases {
		m, k := Dimension(c.n, c.p)
		assert.Equal(t, c.m, m, "m for n=%d p=%g", c.n, c.p)
		assert.Equal(t, c.k, k, "k for n=%d p=%g", c.n, c.p)
	}
}

func TestAddContains(t *testing.T) {
	f := New(1000, 1e-4)
	assert.False(t, f.Contains([]byte("x")))
	assert.True(t, f.Add([]byte("x")))
	assert.False(t, f.Add([]byte("x")))
	assert.True(t, f.Contains([]byte("x")))
}

func TestNoFalseNegatives(t *testing.T) {
	const n = 100000
	f := New(n, 1e-3)
	keys := make([][]byte, n)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("key-%d", i))
		f.Add(keys[i])
	}
	for _, k := range keys {
		assert.True(t, f.Contains(k))
	}
}

func TestBoundedFalsePositiveRate(t *testing.T) {
	const n = 100000
	for _, p := range []float64{1e-3, 1e-4} {
		f := New(n, p)
		for i := 0; i < n; i++ {
			f.Add([]byte(fmt.Sprintf("loaded-%d", i)))
		}
		var falsePositives int
		for i := 0; i < n; i++ {
			if f.Contains([]byte(fmt.Sprintf("probe-%d", i))) {
				falsePositives++
			}
		}
		observed := float64(falsePositives) / float64(n)
		assert.LessOrEqual(t, observed, 2*p, "p=%g observed=%g", p, observed)
	}
}

func TestCountEstimate(t *testing.T) {
	const n = 1_000_000
	f := New(n, 1e-6)
	for i := 0; i < n; i++ {
		f.Add([]byte(fmt.Sprintf("key-%d", i)))
	}
	est := f.CountEstimate()
	diff := float64(est) - n
	if diff < 0 {
		diff = -diff
	}
	assert.LessOrEqual(t, diff/n, 0.001)
}

func TestConcurrentDisjointAdd(t *testing.T) {
	const (
		workers   = 8
		perWorker = 20000
	)
	f := New(workers*perWorker, 1e-5)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				f.Add([]byte(fmt.Sprintf("w%d-k%d", w, i)))
			}
		}()
	}
	wg.Wait()

	for w := 0; w < workers; w++ {
		for i := 0; i < perWorker; i++ {
			assert.True(t, f.Contains([]byte(fmt.Sprintf("w%d-k%d", w, i))))
		}
	}
}

func TestConcurrentOverlappingAddExactlyOneWinner(t *testing.T) {
	const workers = 16
	f := New(1000, 1e-6)
	key := []byte("contested")

	results := make([]bool, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[w] = f.Add(key)
		}()
	}
	wg.Wait()

	var winners int
	for _, r := range results {
		if r {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestNewWithBitsRefusesBelowMinimum(t *testing.T) {
	n, p := uint64(1_000_000), 1e-6
	min := MinBits(n, p)
	_, err := NewWithBits(n, p, min-1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "minimum")
}

func TestNewWithBitsAcceptsMinimum(t *testing.T) {
	n, p := uint64(1000), 1e-6
	min := MinBits(n, p)
	f, err := NewWithBits(n, p, min)
	require.NoError(t, err)
	assert.Equal(t, min, f.M())
}

func TestPowerOfTwoFastPath(t *testing.T) {
	f, err := NewWithBits(1000, 1e-3, 1<<20)
	require.NoError(t, err)
	assert.True(t, f.pow2)
	f.Add([]byte("a"))
	assert.True(t, f.Contains([]byte("a")))
}
