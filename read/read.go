// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package read defines the in-flight read record carried through the
// AptaPlex pipeline stages (stitch, demux, contam, register).
package read

// Read is one paired-end (or single-end) sequencing read as it flows
// through the pipeline. Forward/Reverse are raw, untrimmed bytes read
// from input; Stitched is populated once the stitcher has produced a
// single consensus sequence, and is what gets registered into the
// pool.
type Read struct {
	Name string

	Forward     []byte
	ForwardQual []byte
	Reverse     []byte
	ReverseQual []byte

	Stitched     []byte
	StitchedQual []byte

	CycleName string

	// Primer5Trim and Primer3Trim are byte counts of non-randomized
	// flanking primer/barcode sequence to exclude from the pool's
	// randomized-region bounds.
	Primer5Trim int
	Primer3Trim int

	Contaminated bool

	// RejectReason is non-empty when the read failed a pipeline
	// stage (stitch, demux, or validation) and was not registered.
	RejectReason string
}

// Rejected reports whether this read was excluded from registration.
func (r *Read) Rejected() bool {
	return r.RejectReason != ""
}

// Reject marks the read as rejected for reason: a single bad read is
// tagged and dropped, never a reason to panic or abort the run.
func (r *Read) Reject(reason string) {
	r.RejectReason = reason
}
