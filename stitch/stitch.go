// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stitch merges a forward/reverse read pair into a single
// consensus sequence by overlap alignment.
package stitch

import (
	"github.com/soumitrakp/aptasuite/read"
)

// Options configures the overlap search.
type Options struct {
	// MinOverlap is the shortest accepted overlap length, in bases.
	MinOverlap int
	// MaxMismatchRate is the maximum fraction of mismatching bases
	// tolerated within the aligned overlap.
	MaxMismatchRate float64
}

// DefaultOptions mirror the conservative defaults named in spec.md
// §6.
var DefaultOptions = Options{MinOverlap: 10, MaxMismatchRate: 0.1}

// complementTable maps a base to its Watson-Crick complement; any other
// byte maps to itself, tolerating ambiguity codes by simply never
// matching them.
var complementTable = [256]byte{}

func init() {
	for i := range complementTable {
		complementTable[i] = byte(i)
	}
	complementTable['A'] = 'T'
	complementTable['T'] = 'A'
	complementTable['C'] = 'G'
	complementTable['G'] = 'C'
}

// reverseComplement returns the reverse complement of seq.
func reverseComplement(seq []byte) []byte {
	out := make([]byte, len(seq))
	n := len(seq)
	for i, b := range seq {
		out[n-1-i] = complementTable[b]
	}
	return out
}

// candidate is one evaluated offset in the bounded overlap search.
type candidate struct {
	offset   int
	overlap  int
	mismatch int
}

// Stitch attempts to merge r.Forward and the reverse complement of
// r.Reverse into a single consensus sequence, searching over at most
// len(r.Forward) candidate offsets for the best-scoring overlap —
// not an exhaustive Smith-Waterman alignment — per SPEC_FULL.md
// §C.6. On success it populates r.Stitched/r.StitchedQual and
// returns true; on failure it calls r.Reject and returns false.
func Stitch(r *read.Read, opts Options) bool {
	fwd := r.Forward
	fwdQual := r.ForwardQual
	rev := reverseComplement(r.Reverse)
	revQual := reverseQual(r.ReverseQual)

	best, ok := bestOverlap(fwd, rev, opts)
	if !ok {
		r.Reject("no_overlap")
		return false
	}

	stitched, stitchedQual := merge(fwd, fwdQual, rev, revQual, best.offset)
	r.Stitched = stitched
	r.StitchedQual = stitchedQual
	return true
}

// bestOverlap scans candidate offsets where rev begins within fwd
// (i.e. the pair overlaps instead of merely abutting), scoring each
// by its mismatch rate over the aligned region, and returns the
// candidate with the lowest mismatch rate among those meeting
// MinOverlap and MaxMismatchRate.
func bestOverlap(fwd, rev []byte, opts Options) (candidate, bool) {
	var best candidate
	found := false
	var bestRate float64 = 2 // worse than any real rate (max 1.0)

	for offset := 0; offset <= len(fwd); offset++ {
		overlap := len(fwd) - offset
		if overlap > len(rev) {
			overlap = len(rev)
		}
		if overlap < opts.MinOverlap {
			continue
		}

		mismatch := 0
		for i := 0; i < overlap; i++ {
			if fwd[offset+i] != rev[i] {
				mismatch++
			}
		}
		rate := float64(mismatch) / float64(overlap)
		if rate > opts.MaxMismatchRate {
			continue
		}
		if rate < bestRate {
			bestRate = rate
			best = candidate{offset: offset, overlap: overlap, mismatch: mismatch}
			found = true
		}
	}
	return best, found
}

// merge builds the consensus sequence: fwd up to offset, then the
// overlapping region resolved base-by-base (preferring the
// higher-quality base, ties broken toward fwd), then the remaining
// tail of rev beyond the overlap.
func merge(fwd, fwdQual, rev, revQual []byte, offset int) ([]byte, []byte) {
	overlap := len(fwd) - offset
	if overlap > len(rev) {
		overlap = len(rev)
	}

	out := make([]byte, 0, offset+len(rev))
	outQual := make([]byte, 0, offset+len(rev))

	out = append(out, fwd[:offset]...)
	outQual = append(outQual, fwdQual[:offset]...)

	for i := 0; i < overlap; i++ {
		fb, fq := fwd[offset+i], fwdQual[offset+i]
		rb, rq := rev[i], revQual[i]
		if fb == rb {
			out = append(out, fb)
			if fq >= rq {
				outQual = append(outQual, fq)
			} else {
				outQual = append(outQual, rq)
			}
			continue
		}
		if rq > fq {
			out = append(out, rb)
			outQual = append(outQual, rq)
		} else {
			out = append(out, fb)
			outQual = append(outQual, fq)
		}
	}

	out = append(out, rev[overlap:]...)
	outQual = append(outQual, revQual[overlap:]...)
	return out, outQual
}

func reverseQual(q []byte) []byte {
	out := make([]byte, len(q))
	n := len(q)
	for i, b := range q {
		out[n-1-i] = b
	}
	return out
}
