// Copyright ©2015 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// streammd marks PCR/optical duplicates in a query-name-grouped
// sequence alignment stream using a single-pass Bloom filter.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/streammd/streammd/bloom"
	"github.com/streammd/streammd/metrics"
	"github.com/streammd/streammd/pipeline"
)

const (
	exitOK = iota
	exitRuntime
	exitUsage
)

var (
	nItems      = flag.Uint64("n-items", 1e9, "expected template count")
	fpRate      = flag.Float64("fp-rate", 1e-6, "target false-positive rate")
	memBytes    = flag.Uint64("mem", 0, "override Bloom filter memory in bytes (0 = derive from -n-items, -fp-rate)")
	workers     = flag.Int("workers", 1, "worker goroutine count")
	metricsPath = flag.String("metrics", "", "metrics output path (default alongside input)")
	inputPath   = flag.String("input", "-", "input path; - or omitted = standard input")
	outputPath  = flag.String("output", "-", "output path; - or omitted = standard output")
	verbose     = flag.Bool("v", false, "verbose logging of run configuration")
)

func init() {
	flag.Uint64Var(nItems, "n", 1e9, "shorthand for -n-items")
	flag.Float64Var(fpRate, "p", 1e-6, "shorthand for -fp-rate")
	flag.Uint64Var(memBytes, "m", 0, "shorthand for -mem")
	flag.IntVar(workers, "w", 1, "shorthand for -workers")
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("streammd: ")
	flag.Parse()

	if *workers < 1 {
		fmt.Fprintln(os.Stderr, "invalid argument: -workers must be >= 1")
		flag.Usage()
		os.Exit(exitUsage)
	}
	if *fpRate <= 0 || *fpRate >= 1 {
		fmt.Fprintln(os.Stderr, "invalid argument: -fp-rate must be in (0, 1)")
		flag.Usage()
		os.Exit(exitUsage)
	}

	var (
		filter *bloom.Filter
		err    error
	)
	if *memBytes > 0 {
		filter, err = bloom.NewWithBits(*nItems, *fpRate, *memBytes*8)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitUsage)
		}
	} else {
		filter = bloom.New(*nItems, *fpRate)
	}

	if *verbose {
		log.Printf("n=%d p=%g m=%d bits k=%d workers=%d", filter.N(), filter.P(), filter.M(), filter.K(), *workers)
	}

	in, inClose, err := openInput(*inputPath)
	if err != nil {
		log.Print(err)
		os.Exit(exitRuntime)
	}
	defer inClose()

	out, outClose, err := openOutput(*outputPath)
	if err != nil {
		log.Print(err)
		os.Exit(exitRuntime)
	}
	defer outClose()

	start := time.Now()
	counters, err := pipeline.Run(context.Background(), pipeline.Config{
		Filter:  filter,
		Workers: *workers,
	}, in, out)
	if err != nil {
		log.Print(err)
		os.Exit(exitRuntime)
	}

	mf, mClose, err := openMetrics(*metricsPath, *inputPath)
	if err != nil {
		log.Print(err)
		os.Exit(exitRuntime)
	}
	defer mClose()

	report := metrics.Report{Counters: counters, Filter: filter, Elapsed: time.Since(start)}
	if _, err := report.WriteTo(mf); err != nil {
		log.Print(err)
		os.Exit(exitRuntime)
	}
}

func openInput(path string) (*os.File, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input %q: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}

func openOutput(path string) (*os.File, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output %q: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}

func openMetrics(path, inputPath string) (*os.File, func(), error) {
	if path == "" {
		base := "stdin"
		if inputPath != "" && inputPath != "-" {
			base = inputPath
		}
		path = strings.TrimSuffix(base, filepath.Ext(base)) + ".streammd.metrics"
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create metrics file %q: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}
