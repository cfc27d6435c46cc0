// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fastx

import (
	"fmt"
	"io"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"

	"github.com/soumitrakp/aptasuite/read"
)

// fastaReader reads FASTA records via biogo's seqio scanner, the same
// combination fragment.go's split uses for DNA sequence input. FASTA
// carries no quality line, so NextRead synthesizes an all-maximum
// quality string of the matching length (see fillQual in fastx.go)
// so that FASTA and FASTQ reads flow through the same quality-gated
// pipeline stages.
type fastaReader struct {
	rc io.ReadCloser
	sc *seqio.Scanner
}

func newFASTAReader(rc io.ReadCloser) *fastaReader {
	sc := seqio.NewScanner(fasta.NewReader(rc, linear.NewSeq("", nil, alphabet.DNA)))
	return &fastaReader{rc: rc, sc: sc}
}

func (r *fastaReader) NextRead() (*read.Read, error) {
	if !r.sc.Next() {
		if err := r.sc.Error(); err != nil {
			return nil, fmt.Errorf("fastx: reading FASTA record: %w", err)
		}
		return nil, io.EOF
	}
	seq, ok := r.sc.Seq().(*linear.Seq)
	if !ok {
		return nil, fmt.Errorf("fastx: unexpected sequence type in FASTA record")
	}

	raw := make([]byte, seq.Len())
	for i, l := range seq.Seq {
		raw[i] = byte(l)
	}

	return &read.Read{
		Name:        seq.ID,
		Forward:     raw,
		ForwardQual: fillQual(len(raw)),
	}, nil
}

func (r *fastaReader) Close() error { return r.rc.Close() }
