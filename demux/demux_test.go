// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package demux

import (
	"strings"
	"testing"

	"github.com/soumitrakp/aptasuite/read"
)

func highQual(n int) []byte {
	return []byte(strings.Repeat("I", n))
}

func baseOptions() Options {
	return Options{
		Primer5:        "AAAA",
		Primer3:        "TTTT",
		Tolerance:      0,
		ShiftWindow:    0,
		MaxLeading:     10,
		MaxTrailing:    10,
		MinRandomized:  1,
		MaxRandomized:  1000,
		MinMeanQuality: 20,
	}
}

// TestClassifyBarcodeDemux covers two cycles with barcodes
// ("AT","GC") and ("CG","TA"); a read beginning with
// "AT"+P5+...+P3+"GC" routes to the matching cycle.
func TestClassifyBarcodeDemux(t *testing.T) {
	barcodes := []Barcode{
		{CycleName: "cycle1", Barcode5: "AT", Barcode3: "GC"},
		{CycleName: "cycle2", Barcode5: "CG", Barcode3: "TA"},
	}
	m := NewMatcher(baseOptions(), barcodes)

	seq := "AT" + "AAAA" + "CGTACGA" + "TTTT" + "GC"
	r := &read.Read{Stitched: []byte(seq), StitchedQual: highQual(len(seq))}

	ok := m.Classify(r)
	if !ok {
		t.Fatalf("Classify failed, want success; reason=%q", r.RejectReason)
	}
	if r.CycleName != "cycle1" {
		t.Fatalf("CycleName = %q, want %q", r.CycleName, "cycle1")
	}
}

func TestClassifyPrimerUnmatched(t *testing.T) {
	m := NewMatcher(baseOptions(), nil)
	seq := "GGGG" + "CGTACGT" + "CCCC"
	r := &read.Read{Stitched: []byte(seq), StitchedQual: highQual(len(seq))}

	ok := m.Classify(r)
	if ok {
		t.Fatalf("Classify succeeded, want rejection")
	}
	if r.RejectReason != "primer_unmatched" {
		t.Fatalf("RejectReason = %q, want %q", r.RejectReason, "primer_unmatched")
	}
}

func TestClassifyQualityTooLow(t *testing.T) {
	opts := baseOptions()
	opts.MinMeanQuality = 50
	m := NewMatcher(opts, nil)

	seq := "AAAA" + "CGTACGT" + "TTTT"
	qual := make([]byte, len(seq))
	for i := range qual {
		qual[i] = 'I' // Phred+33 'I' = Q40, below the 50 threshold
	}
	r := &read.Read{Stitched: []byte(seq), StitchedQual: qual}

	ok := m.Classify(r)
	if ok {
		t.Fatalf("Classify succeeded, want rejection on low quality")
	}
	if r.RejectReason != "quality_too_low" {
		t.Fatalf("RejectReason = %q, want %q", r.RejectReason, "quality_too_low")
	}
}

func TestClassifyNoPrimerSuccess(t *testing.T) {
	// Primers empty: anchors trivially succeed at the read's edges.
	opts := baseOptions()
	opts.Primer5, opts.Primer3 = "", ""
	m := NewMatcher(opts, nil)

	seq := "ACGTACGTACGT"
	r := &read.Read{Stitched: []byte(seq), StitchedQual: highQual(len(seq))}
	ok := m.Classify(r)
	if !ok {
		t.Fatalf("Classify failed, want success; reason=%q", r.RejectReason)
	}
	if r.Primer5Trim != 0 || r.Primer3Trim != 0 {
		t.Fatalf("Primer5Trim/Primer3Trim = %d/%d, want 0/0", r.Primer5Trim, r.Primer3Trim)
	}
}

func TestHamming(t *testing.T) {
	if got := hamming([]byte("AAAA"), []byte("AAAA")); got != 0 {
		t.Fatalf("hamming(equal) = %d, want 0", got)
	}
	if got := hamming([]byte("AAAA"), []byte("AAAT")); got != 1 {
		t.Fatalf("hamming(one diff) = %d, want 1", got)
	}
}

func TestMeanQuality(t *testing.T) {
	q := []byte{'I', 'I', 'I'} // 'I'-33 = 40
	if got := meanQuality(q); got != 40 {
		t.Fatalf("meanQuality = %v, want 40", got)
	}
}
