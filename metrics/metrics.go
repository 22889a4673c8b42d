// Copyright ©2015 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics accumulates per-worker duplicate-marking counters
// and renders the run's plain-text summary file. The merge-at-shutdown
// shape follows grailbio/bio/markduplicates'
// DuplicateMetrics aggregation: each worker owns an independent
// counter set during the run and the counters are summed once,
// avoiding any shared-counter contention on the hot path.
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/streammd/streammd/bloom"
)

// Counters holds one worker's (or the merged run's) tallies. All
// fields are plain, non-atomic integers: a Counters value is only
// ever owned by a single worker goroutine until Merge combines them.
type Counters struct {
	Templates           uint64 // qname-groups processed
	TemplatesDuplicate  uint64
	TemplatesUnmapped   uint64 // skipped: no mapped primary record in the group
	SecondaryRecords    uint64
	SupplementaryRecords uint64
	RecordsProcessed    uint64
}

// Merge adds other's counts into c and returns c, for use folding
// every worker's local Counters into one run-level total at shutdown.
func (c *Counters) Merge(other Counters) *Counters {
	c.Templates += other.Templates
	c.TemplatesDuplicate += other.TemplatesDuplicate
	c.TemplatesUnmapped += other.TemplatesUnmapped
	c.SecondaryRecords += other.SecondaryRecords
	c.SupplementaryRecords += other.SupplementaryRecords
	c.RecordsProcessed += other.RecordsProcessed
	return c
}

// Report is the full content of the metrics file: the run's merged
// counters plus the Bloom filter's configured (n,p) and derived
// (m,k), the live cardinality estimate, and the implied post-fill
// false-positive rate.
type Report struct {
	Counters Counters
	Filter   *bloom.Filter
	Elapsed  time.Duration
}

// WriteTo renders the report as tab-aligned key/value lines: one
// metric per line, no nested structure.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	var n int64
	var err error
	line := func(format string, args ...interface{}) {
		if err != nil {
			return
		}
		var m int
		m, err = fmt.Fprintf(w, format+"\n", args...)
		n += int64(m)
	}

	line("templates\t%d", r.Counters.Templates)
	line("templates_duplicate\t%d", r.Counters.TemplatesDuplicate)
	line("templates_unmapped\t%d", r.Counters.TemplatesUnmapped)
	line("secondary_records\t%d", r.Counters.SecondaryRecords)
	line("supplementary_records\t%d", r.Counters.SupplementaryRecords)
	line("records_processed\t%d", r.Counters.RecordsProcessed)
	if r.Counters.Templates > 0 {
		rate := float64(r.Counters.TemplatesDuplicate) / float64(r.Counters.Templates)
		line("duplicate_fraction\t%.6f", rate)
	}
	if r.Filter != nil {
		line("filter_n\t%d", r.Filter.N())
		line("filter_p\t%g", r.Filter.P())
		line("filter_m_bits\t%d", r.Filter.M())
		line("filter_k\t%d", r.Filter.K())
		line("filter_fill_ratio\t%.6f", r.Filter.FillRatio())
		line("filter_count_estimate\t%d", r.Filter.CountEstimate())
		line("filter_estimated_fpr\t%g", r.Filter.EstimatedFPR())
	}
	line("elapsed_seconds\t%.3f", r.Elapsed.Seconds())

	if err != nil {
		return n, fmt.Errorf("metrics: write report: %w", err)
	}
	return n, nil
}
