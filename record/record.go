// Copyright ©2015 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package record implements the tab-separated alignment record codec:
// tokenizing input lines, exposing the fields the fingerprinter and
// duplicate marker need, and re-serializing a record with only the
// flag field rewritten.
//
// Flag bit semantics and CIGAR operation types are taken from
// github.com/biogo/hts/sam; see that package's flagstat example for
// the canonical flag-bit walk this package mirrors.
package record

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/biogo/hts/sam"
)

// minFields is the number of mandatory tab-separated columns in an
// alignment record: QNAME, FLAG, RNAME, POS, MAPQ, CIGAR, RNEXT,
// PNEXT, TLEN, SEQ, QUAL.
const minFields = 11

const (
	fieldQName = iota
	fieldFlag
	fieldRName
	fieldPos
	fieldMapQ
	fieldCigar
	fieldRNext
	fieldPNext
	fieldTLen
	fieldSeq
	fieldQual
)

// Record is a parsed alignment line. The original tab-separated
// fields are retained verbatim so Bytes can re-emit the line with
// only the flag column rewritten.
type Record struct {
	fields [][]byte

	QName string
	Flag  sam.Flags
	RName string
	Pos   int // 1-based leftmost mapped position; 0 if unmapped ("*").
	MapQ  int
	Cigar sam.Cigar

	MateRName string
	MatePos   int
	TLen      int
}

// Parse tokenizes a single alignment line. line must not include the
// trailing newline. Header lines (leading '@') are never passed to
// Parse; the pipeline's reader forwards them unchanged.
func Parse(line []byte) (*Record, error) {
	fields := bytes.Split(line, []byte{'\t'})
	if len(fields) < minFields {
		return nil, fmt.Errorf("record: line has %d fields, want at least %d", len(fields), minFields)
	}

	flagN, err := strconv.ParseUint(string(fields[fieldFlag]), 10, 16)
	if err != nil {
		return nil, fmt.Errorf("record: invalid flag field %q: %w", fields[fieldFlag], err)
	}

	pos, err := strconv.Atoi(string(fields[fieldPos]))
	if err != nil {
		return nil, fmt.Errorf("record: invalid pos field %q: %w", fields[fieldPos], err)
	}

	mapq, err := strconv.Atoi(string(fields[fieldMapQ]))
	if err != nil {
		return nil, fmt.Errorf("record: invalid mapq field %q: %w", fields[fieldMapQ], err)
	}

	var cigar sam.Cigar
	if s := string(fields[fieldCigar]); s != "*" {
		cigar, err = sam.ParseCigar([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("record: invalid cigar field %q: %w", fields[fieldCigar], err)
		}
	}

	matePos, err := strconv.Atoi(string(fields[fieldPNext]))
	if err != nil {
		return nil, fmt.Errorf("record: invalid mate pos field %q: %w", fields[fieldPNext], err)
	}

	tlen, err := strconv.Atoi(string(fields[fieldTLen]))
	if err != nil {
		return nil, fmt.Errorf("record: invalid tlen field %q: %w", fields[fieldTLen], err)
	}

	return &Record{
		fields:    fields,
		QName:     string(fields[fieldQName]),
		Flag:      sam.Flags(flagN),
		RName:     string(fields[fieldRName]),
		Pos:       pos,
		MapQ:      mapq,
		Cigar:     cigar,
		MateRName: string(fields[fieldRNext]),
		MatePos:   matePos,
		TLen:      tlen,
	}, nil
}

// SetDuplicate sets or clears the duplicate bit (0x400) of the flag
// field, leaving every other byte of the original line untouched.
func (r *Record) SetDuplicate(dup bool) {
	if dup {
		r.Flag |= sam.Duplicate
	} else {
		r.Flag &^= sam.Duplicate
	}
}

// Bytes re-serializes the record, rendering the flag column from
// r.Flag and emitting every other column as originally parsed.
func (r *Record) Bytes() []byte {
	r.fields[fieldFlag] = strconv.AppendUint(r.fields[fieldFlag][:0], uint64(r.Flag), 10)
	return bytes.Join(r.fields, []byte{'\t'})
}

// IsUnmapped reports whether the record itself is unmapped.
func (r *Record) IsUnmapped() bool { return r.Flag&sam.Unmapped != 0 }

// IsMateUnmapped reports whether the record's mate is unmapped.
func (r *Record) IsMateUnmapped() bool { return r.Flag&sam.MateUnmapped != 0 }

// IsPaired reports whether the record is paired-end.
func (r *Record) IsPaired() bool { return r.Flag&sam.Paired != 0 }

// IsReverse reports whether the record is aligned to the reverse
// strand.
func (r *Record) IsReverse() bool { return r.Flag&sam.Reverse != 0 }

// IsSecondary reports whether the record is a secondary alignment.
func (r *Record) IsSecondary() bool { return r.Flag&sam.Secondary != 0 }

// IsSupplementary reports whether the record is a supplementary
// alignment.
func (r *Record) IsSupplementary() bool { return r.Flag&sam.Supplementary != 0 }

// IsPrimary reports whether the record is neither secondary nor
// supplementary, i.e. it is part of the template's identity.
func (r *Record) IsPrimary() bool {
	return !r.IsSecondary() && !r.IsSupplementary()
}

// LeadingSoftClip returns the length of a leading soft-clip CIGAR
// operation, or 0 if the CIGAR does not begin with one.
func (r *Record) LeadingSoftClip() int {
	if len(r.Cigar) == 0 {
		return 0
	}
	if op := r.Cigar[0]; op.Type() == sam.CigarSoftClipped {
		return op.Len()
	}
	return 0
}

// TrailingSoftClip returns the length of a trailing soft-clip CIGAR
// operation, or 0 if the CIGAR does not end with one.
func (r *Record) TrailingSoftClip() int {
	if len(r.Cigar) == 0 {
		return 0
	}
	if op := r.Cigar[len(r.Cigar)-1]; op.Type() == sam.CigarSoftClipped {
		return op.Len()
	}
	return 0
}

// AlignedRefLen returns the number of reference bases consumed by the
// CIGAR (the sum of M/D/N/=/X run lengths).
func (r *Record) AlignedRefLen() int {
	var n int
	for _, op := range r.Cigar {
		n += op.Type().Consumes().Reference * op.Len()
	}
	return n
}
