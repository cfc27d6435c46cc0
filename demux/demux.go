// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package demux anchors the configured 5'/3' primers in a stitched
// read and, when cycles carry barcodes, classifies the read to its
// source selection cycle.
package demux

import (
	"github.com/soumitrakp/aptasuite/read"
)

// Barcode is one selection cycle's expected 5'/3' flanking barcode,
// checked after the primers have been anchored.
type Barcode struct {
	CycleName string
	Barcode5  string
	Barcode3  string
}

// Options bounds the matcher's tolerance.
type Options struct {
	Primer5 string
	Primer3 string

	// Tolerance is the maximum Hamming distance accepted for each
	// primer match and for each barcode match.
	Tolerance int
	// ShiftWindow widens each primer search window by this many
	// extra start offsets beyond MaxLeading/MaxTrailing. Barcodes
	// are matched only at the position adjacent to their primer.
	ShiftWindow int

	// MaxLeading/MaxTrailing bound how far into the read the 5'/3'
	// primer may be searched for.
	MaxLeading  int
	MaxTrailing int

	MinRandomized int
	MaxRandomized int

	MinMeanQuality float64
}

// DefaultOptions are reasonable tolerances for Illumina-scale reads.
var DefaultOptions = Options{
	Tolerance:      2,
	ShiftWindow:    2,
	MaxLeading:     30,
	MaxTrailing:    30,
	MinRandomized:  1,
	MaxRandomized:  1 << 20,
	MinMeanQuality: 20,
}

// Matcher classifies stitched reads against a fixed primer pair and
// an optional set of per-cycle barcodes.
type Matcher struct {
	opts     Options
	barcodes []Barcode
}

// NewMatcher builds a Matcher. barcodes may be empty, in which case
// Classify never assigns a CycleName but still anchors primers,
// checks the randomized region, and gates on quality.
func NewMatcher(opts Options, barcodes []Barcode) *Matcher {
	return &Matcher{opts: opts, barcodes: barcodes}
}

// Classify checks the 5' primer, the 3' primer, the randomized-region
// length, the barcodes (when configured) and the mean base quality,
// in that order, rejecting at the first failing step. On success it trims the primers (recording
// Primer5Trim/Primer3Trim) and, if barcodes are configured, sets
// r.CycleName.
func (m *Matcher) Classify(r *read.Read) bool {
	seq, qual := r.Stitched, r.StitchedQual

	p5Start, ok := anchor5(seq, m.opts.Primer5, m.opts.MaxLeading, m.opts.ShiftWindow, m.opts.Tolerance)
	if !ok {
		r.Reject("primer_unmatched")
		return false
	}
	p5End := p5Start + len(m.opts.Primer5)

	p3Start, ok := anchor3(seq, m.opts.Primer3, m.opts.MaxTrailing, m.opts.ShiftWindow, m.opts.Tolerance)
	if !ok {
		r.Reject("primer_unmatched")
		return false
	}
	p3End := p3Start + len(m.opts.Primer3)

	if p3Start < p5End {
		r.Reject("primer_unmatched")
		return false
	}

	randLen := p3Start - p5End
	if randLen < m.opts.MinRandomized || randLen > m.opts.MaxRandomized {
		r.Reject("primer_unmatched")
		return false
	}

	if len(m.barcodes) > 0 {
		name, ok, collision := m.classifyBarcode(seq, p5Start, p3End)
		if collision {
			r.Reject("barcode_collision")
			return false
		}
		if !ok {
			r.Reject("barcode_unmatched")
			return false
		}
		r.CycleName = name
	}

	if meanQuality(qual[p5End:p3Start]) < m.opts.MinMeanQuality {
		r.Reject("quality_too_low")
		return false
	}

	r.Primer5Trim = p5End
	r.Primer3Trim = len(seq) - p3Start
	return true
}

// classifyBarcode finds the unique cycle whose barcode pair matches
// the flanks immediately outside [p5Start, p3End) within tolerance:
// barcode5 immediately precedes the primer5 match, barcode3
// immediately follows the primer3 match. More than one equally-good
// match is a collision.
func (m *Matcher) classifyBarcode(seq []byte, p5Start, p3End int) (string, bool, bool) {
	type hit struct {
		name     string
		mismatch int
	}
	var hits []hit
	for _, bc := range m.barcodes {
		if bc.Barcode5 == "" && bc.Barcode3 == "" {
			continue
		}
		mm5, ok5 := matchBefore(seq, bc.Barcode5, p5Start, m.opts.Tolerance)
		if !ok5 {
			continue
		}
		mm3, ok3 := matchAfter(seq, bc.Barcode3, p3End, m.opts.Tolerance)
		if !ok3 {
			continue
		}
		hits = append(hits, hit{name: bc.CycleName, mismatch: mm5 + mm3})
	}
	if len(hits) == 0 {
		return "", false, false
	}
	best := hits[0]
	tie := false
	for _, h := range hits[1:] {
		if h.mismatch < best.mismatch {
			best, tie = h, false
		} else if h.mismatch == best.mismatch && h.name != best.name {
			tie = true
		}
	}
	if tie {
		return "", false, true
	}
	return best.name, true, false
}

// matchBefore reports whether barcode matches immediately preceding
// position end (i.e. seq[end-len(barcode):end]).
func matchBefore(seq []byte, barcode string, end, tolerance int) (int, bool) {
	if barcode == "" {
		return 0, true
	}
	start := end - len(barcode)
	if start < 0 {
		return 0, false
	}
	mm := hamming(seq[start:end], []byte(barcode))
	return mm, mm <= tolerance
}

// matchAfter reports whether barcode matches immediately following
// position start (i.e. seq[start:start+len(barcode)]).
func matchAfter(seq []byte, barcode string, start, tolerance int) (int, bool) {
	if barcode == "" {
		return 0, true
	}
	end := start + len(barcode)
	if end > len(seq) {
		return 0, false
	}
	mm := hamming(seq[start:end], []byte(barcode))
	return mm, mm <= tolerance
}

// anchor5 returns the start offset of the best match of primer among
// candidate start offsets in [0, maxLeading+shift].
func anchor5(seq []byte, primer string, maxLeading, shift, tolerance int) (int, bool) {
	if primer == "" {
		return 0, true
	}
	maxStart := maxLeading + shift
	bestStart := -1
	bestMismatch := 1 << 30
	for offset := 0; offset <= maxStart && offset+len(primer) <= len(seq); offset++ {
		mm := hamming(seq[offset:offset+len(primer)], []byte(primer))
		if mm > tolerance {
			continue
		}
		if mm < bestMismatch {
			bestMismatch = mm
			bestStart = offset
		}
	}
	return bestStart, bestStart >= 0
}

// anchor3 returns the start offset of the best match of primer among
// candidate start offsets that leave at most maxTrailing+shift bases
// of seq after the primer.
func anchor3(seq []byte, primer string, maxTrailing, shift, tolerance int) (int, bool) {
	if primer == "" {
		return len(seq), true
	}
	minStart := len(seq) - len(primer) - maxTrailing - shift
	if minStart < 0 {
		minStart = 0
	}
	bestStart := -1
	bestMismatch := 1 << 30
	for start := minStart; start+len(primer) <= len(seq); start++ {
		mm := hamming(seq[start:start+len(primer)], []byte(primer))
		if mm > tolerance {
			continue
		}
		if mm < bestMismatch {
			bestMismatch = mm
			bestStart = start
		}
	}
	return bestStart, bestStart >= 0
}

func hamming(a, b []byte) int {
	n := 0
	for i := range a {
		if a[i] != b[i] {
			n++
		}
	}
	return n
}

func meanQuality(qual []byte) float64 {
	if len(qual) == 0 {
		return 0
	}
	var sum int
	for _, q := range qual {
		sum += int(q) - 33 // Phred+33
	}
	return float64(sum) / float64(len(qual))
}
