// Copyright ©2015 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fingerprint derives the canonical deduplication key for a
// qname-group of alignment records, matching the documented semantics
// of grailbio/bio's markduplicates package:
// "reference, unclipped 5' position, and read direction ... ALL
// identical" determines whether two templates are duplicates, and a
// mate-unmapped read can duplicate the mapped mate of a proper pair.
package fingerprint

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/streammd/streammd/record"
)

const (
	strandForward byte = 0
	strandReverse byte = 1
)

// unmappedMateSentinel marks a fingerprint as belonging to a template
// whose other mate is unmapped. The control bytes make collision with
// a legitimate reference name astronomically unlikely.
const unmappedMateSentinel = "\x00unmapped-mate\x00"

// tuple is a single mate's canonical coordinate: reference name,
// unclipped 5' reference coordinate, and strand.
type tuple struct {
	ref    string
	coord  int
	strand byte
}

func less(a, b tuple) bool {
	if a.ref != b.ref {
		return a.ref < b.ref
	}
	if a.coord != b.coord {
		return a.coord < b.coord
	}
	return a.strand < b.strand
}

// unclipped5p computes the 5'-soft-clip-corrected reference
// coordinate for a mapped primary alignment.
func unclipped5p(r *record.Record) tuple {
	if r.IsReverse() {
		coord := r.Pos + r.AlignedRefLen() + r.TrailingSoftClip() - 1
		return tuple{ref: r.RName, coord: coord, strand: strandReverse}
	}
	coord := r.Pos - r.LeadingSoftClip()
	return tuple{ref: r.RName, coord: coord, strand: strandForward}
}

// Fingerprint derives the canonical deduplication key for the primary
// alignments of one qname-group. ok is false when the template is
// ineligible for duplicate marking (every primary alignment is
// unmapped); secondary and supplementary records never affect the
// result and are not required in group.
//
// The returned key is stable under permutation of group's order: two
// templates whose primary alignments share the same set of
// (reference, unclipped 5' coordinate, strand) tuples always produce
// byte-identical fingerprints, regardless of mate order.
func Fingerprint(group []*record.Record) (key []byte, ok bool) {
	var primaries []*record.Record
	for _, r := range group {
		if r.IsPrimary() {
			primaries = append(primaries, r)
		}
	}
	if len(primaries) == 0 {
		return nil, false
	}

	tuples := make([]tuple, 0, len(primaries))
	for _, r := range primaries {
		if !r.IsUnmapped() {
			tuples = append(tuples, unclipped5p(r))
		}
	}
	if len(tuples) == 0 {
		// Every primary in the template is unmapped.
		return nil, false
	}

	sort.Slice(tuples, func(i, j int) bool { return less(tuples[i], tuples[j]) })

	var buf bytes.Buffer
	for _, t := range tuples {
		fmt.Fprintf(&buf, "%s\x1f%d\x1f%d\x1e", t.ref, t.coord, t.strand)
	}
	if len(tuples) < len(primaries) {
		// At least one mate is unmapped. With the usual two-primary
		// template this means exactly one mapped mate plus the
		// sentinel.
		buf.WriteString(unmappedMateSentinel)
	}
	return buf.Bytes(), true
}
