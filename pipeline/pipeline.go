// Copyright ©2015 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline wires the reader, worker pool, and writer stages
// of the duplicate-marking run. The channel-fed sync.WaitGroup worker
// pool mirrors the shard-processing pool in
// grailbio/bio/markduplicates' Mark (a bounded channel of work handed
// to N goroutines, drained by a dedicated writer so output order
// within a unit of work is preserved without serializing the workers).
package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/streammd/streammd/bloom"
	"github.com/streammd/streammd/fingerprint"
	"github.com/streammd/streammd/metrics"
	"github.com/streammd/streammd/record"
)

// Config configures a Run.
type Config struct {
	Filter  *bloom.Filter
	Workers int // number of worker goroutines; must be >= 1

	// QueueDepth bounds the number of in-flight batches between the
	// reader and the workers, and between the workers and the writer,
	// providing backpressure against a slow writer or slow disk.
	QueueDepth int
}

// batch is one qname-group's records, read together so the
// fingerprinter sees every primary, secondary, and supplementary
// alignment that shares a QNAME.
type batch struct {
	seq     uint64 // input order; recorded but not read by any stage
	records []*record.Record
}

// Run executes the full reader/worker/writer pipeline against r,
// writing the marked stream to w. It returns the merged metrics
// counters for every processed template.
func Run(ctx context.Context, cfg Config, r io.Reader, w io.Writer) (metrics.Counters, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueDepth < 1 {
		cfg.QueueDepth = cfg.Workers * 4
	}

	br := bufio.NewReaderSize(r, 1<<20)
	bw := bufio.NewWriterSize(w, 1<<20)

	in := make(chan batch, cfg.QueueDepth)
	out := make(chan batch, cfg.QueueDepth)

	var (
		errOnce sync.Once
		errVal  error
	)
	fail := func(err error) {
		errOnce.Do(func() { errVal = err })
	}

	var readerWG sync.WaitGroup
	readerWG.Add(1)
	go func() {
		defer readerWG.Done()
		defer close(in)
		if err := readBatches(ctx, br, bw, in); err != nil {
			fail(err)
		}
	}()

	var workerWG sync.WaitGroup
	counters := make([]metrics.Counters, cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		workerWG.Add(1)
		go func(i int) {
			defer workerWG.Done()
			counters[i] = work(ctx, cfg.Filter, in, out)
		}(i)
	}
	go func() {
		workerWG.Wait()
		close(out)
	}()

	var writerWG sync.WaitGroup
	writerWG.Add(1)
	go func() {
		defer writerWG.Done()
		if err := writeBatches(out, bw); err != nil {
			fail(err)
		}
	}()

	readerWG.Wait()
	writerWG.Wait()
	if err := bw.Flush(); err != nil {
		fail(err)
	}

	var merged metrics.Counters
	for _, c := range counters {
		merged.Merge(c)
	}
	return merged, errVal
}

// readBatches reads the header (copied straight to w) then groups
// consecutive records sharing a QNAME into batches: a single pass
// over the qname-grouped input.
func readBatches(ctx context.Context, r *bufio.Reader, w io.Writer, in chan<- batch) error {
	var seq uint64
	var pending []*record.Record
	var pendingQName string
	closedQNames := make(map[string]struct{})

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		b := batch{seq: seq, records: pending}
		seq++
		select {
		case in <- b:
		case <-ctx.Done():
			return ctx.Err()
		}
		closedQNames[pendingQName] = struct{}{}
		pending = nil
		return nil
	}

	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			trimmed := bytes.TrimRight(line, "\n")
			if len(trimmed) > 0 && trimmed[0] == '@' {
				if _, werr := w.Write(line); werr != nil {
					return fmt.Errorf("pipeline: write header: %w", werr)
				}
			} else if len(trimmed) > 0 {
				rec, perr := record.Parse(trimmed)
				if perr != nil {
					return fmt.Errorf("pipeline: %w", perr)
				}
				if rec.QName != pendingQName && len(pending) > 0 {
					if ferr := flush(); ferr != nil {
						return ferr
					}
				}
				if rec.QName != pendingQName {
					if _, seen := closedQNames[rec.QName]; seen {
						return fmt.Errorf("pipeline: qname %q reappeared after its group closed; input is not qname-grouped", rec.QName)
					}
				}
				pendingQName = rec.QName
				pending = append(pending, rec)
			}
		}
		if err != nil {
			if err == io.EOF {
				return flush()
			}
			return fmt.Errorf("pipeline: read input: %w", err)
		}
	}
}

// work drains in, marks each batch's records for duplication, and
// forwards the (unchanged-order) batch to out. It runs in its own
// goroutine; one call to work is one pool worker.
func work(ctx context.Context, f *bloom.Filter, in <-chan batch, out chan<- batch) metrics.Counters {
	var c metrics.Counters
	for b := range in {
		select {
		case <-ctx.Done():
			return c
		default:
		}
		markBatch(f, b.records, &c)
		select {
		case out <- b:
		case <-ctx.Done():
			return c
		}
	}
	return c
}

// markBatch derives the batch's fingerprint (if any primary is
// mapped) and, only when the template has already been seen, sets the
// duplicate flag on every record in the template, including its
// secondary and supplementary alignments, which inherit the primary's
// decision rather than being fingerprinted themselves. A first-seen or
// unmapped template is forwarded byte-for-byte unchanged.
func markBatch(f *bloom.Filter, recs []*record.Record, c *metrics.Counters) {
	c.Templates++
	c.RecordsProcessed += uint64(len(recs))
	for _, r := range recs {
		if r.IsSecondary() {
			c.SecondaryRecords++
		}
		if r.IsSupplementary() {
			c.SupplementaryRecords++
		}
	}

	key, ok := fingerprint.Fingerprint(recs)
	if !ok {
		c.TemplatesUnmapped++
		return
	}

	seenBefore := !f.Add(key)
	if !seenBefore {
		return
	}
	c.TemplatesDuplicate++
	for _, r := range recs {
		r.SetDuplicate(true)
	}
}

// writeBatches drains out in the order batches complete and appends
// each record to w. Batches are not reordered back to input order
// when more than one worker is in play, but every record within one
// batch is written in its original order.
func writeBatches(out <-chan batch, w io.Writer) error {
	for b := range out {
		for _, r := range b.records {
			if _, err := w.Write(r.Bytes()); err != nil {
				return fmt.Errorf("pipeline: write output: %w", err)
			}
			if _, err := w.Write([]byte{'\n'}); err != nil {
				return fmt.Errorf("pipeline: write output: %w", err)
			}
		}
	}
	return nil
}
