// Copyright ©2015 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// memcalc prints the Bloom filter dimensions and memory footprint for
// a given expected template count and target false-positive rate,
// without running the duplicate-marking pipeline.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/streammd/streammd/bloom"
)

var (
	nItems = flag.Uint64("n-items", 1e9, "expected template count")
	fpRate = flag.Float64("fp-rate", 1e-6, "target false-positive rate")
)

func main() {
	flag.Parse()
	if *fpRate <= 0 || *fpRate >= 1 {
		fmt.Fprintln(os.Stderr, "invalid argument: -fp-rate must be in (0, 1)")
		flag.Usage()
		os.Exit(2)
	}

	m, k := bloom.Dimension(*nItems, *fpRate)
	bytes := m / 8
	if m%8 != 0 {
		bytes++
	}

	fmt.Printf("n\t%d\n", *nItems)
	fmt.Printf("p\t%g\n", *fpRate)
	fmt.Printf("m_bits\t%d\n", m)
	fmt.Printf("k\t%d\n", k)
	fmt.Printf("memory\t%s (%d bytes)\n", humanize.IBytes(bytes), bytes)
}
