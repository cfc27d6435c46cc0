// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stitch

import (
	"strings"
	"testing"

	"github.com/soumitrakp/aptasuite/read"
)

func qual(n int, c byte) []byte {
	return []byte(strings.Repeat(string(c), n))
}

// TestStitchOverlapping checks that a forward and reverse read with
// a clean overlapping region stitch to the expected consensus.
func TestStitchOverlapping(t *testing.T) {
	// The original fragment, forward strand: "AAACGTACGTTTT".
	// Forward read covers the first 10 bases; reverse read covers
	// the last 10 bases, so they share a 7-base overlap "CGTACGT".
	fwd := []byte("AAACGTACGT")
	reverseRaw := reverseComplement([]byte("CGTACGTTTT"))

	r := &read.Read{
		Forward:     fwd,
		ForwardQual: qual(len(fwd), 'I'),
		Reverse:     reverseRaw,
		ReverseQual: qual(len(reverseRaw), 'I'),
	}

	opts := Options{MinOverlap: 5, MaxMismatchRate: 0.1}
	ok := Stitch(r, opts)
	if !ok {
		t.Fatalf("Stitch failed, want success; reason=%q", r.RejectReason)
	}
	if string(r.Stitched) != "AAACGTACGTTTT" {
		t.Fatalf("Stitched = %q, want %q", r.Stitched, "AAACGTACGTTTT")
	}
	if len(r.Stitched) == 0 {
		t.Fatalf("Stitched is empty")
	}
	if len(r.Stitched) != len(r.StitchedQual) {
		t.Fatalf("len(Stitched)=%d != len(StitchedQual)=%d", len(r.Stitched), len(r.StitchedQual))
	}
}

// TestStitchNoOverlap checks that pairs with no qualifying overlap
// are rejected, not silently concatenated.
func TestStitchNoOverlap(t *testing.T) {
	r := &read.Read{
		Forward:     []byte("AAAAAAAAAA"),
		ForwardQual: qual(10, 'I'),
		Reverse:     []byte("CCCCCCCCCC"),
		ReverseQual: qual(10, 'I'),
	}
	ok := Stitch(r, DefaultOptions)
	if ok {
		t.Fatalf("Stitch succeeded on non-overlapping pair, want rejection")
	}
	if !r.Rejected() {
		t.Fatalf("read not marked Rejected after failed stitch")
	}
	if r.RejectReason != "no_overlap" {
		t.Fatalf("RejectReason = %q, want %q", r.RejectReason, "no_overlap")
	}
}

func TestReverseComplement(t *testing.T) {
	got := reverseComplement([]byte("ACGT"))
	if string(got) != "ACGT" {
		t.Fatalf("reverseComplement(ACGT) = %q, want %q (palindromic)", got, "ACGT")
	}
	got2 := reverseComplement([]byte("AAAC"))
	if string(got2) != "GTTT" {
		t.Fatalf("reverseComplement(AAAC) = %q, want %q", got2, "GTTT")
	}
}

func TestMergePrefersHigherQualityOnMismatch(t *testing.T) {
	fwd := []byte("AAAA")
	fwdQual := []byte{'I', 'I', '#', 'I'}
	rev := []byte("AAGA")
	revQual := []byte{'I', 'I', 'I', 'I'}

	out, outQual := merge(fwd, fwdQual, rev, revQual, 0)
	if string(out) != "AAGA" {
		t.Fatalf("merge = %q, want %q (higher-quality base wins mismatch)", out, "AAGA")
	}
	if len(outQual) != len(out) {
		t.Fatalf("len(outQual) = %d, want %d", len(outQual), len(out))
	}
}
