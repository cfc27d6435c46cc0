// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fastx reads FASTQ and FASTA sequencing input into the
// read.Read record used by the rest of the pipeline, per spec.md
// §4.5. Gzip-compressed input is detected transparently.
package fastx

import (
	"fmt"

	"github.com/soumitrakp/aptasuite/read"
)

// Reader yields one read.Read at a time from an underlying file,
// returning io.EOF once input is exhausted. Implementations never
// mutate the file they were constructed from outside of normal
// sequential reads.
type Reader interface {
	NextRead() (*read.Read, error)
	Close() error
}

// Format names the input encoding, selected explicitly by the caller
// rather than sniffed from content — only compression is
// auto-detected (magic.go), never the record format itself.
type Format int

const (
	FormatFASTQ Format = iota
	FormatFASTA
)

// ParseFormat maps a config string to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "fastq":
		return FormatFASTQ, nil
	case "fasta":
		return FormatFASTA, nil
	default:
		return 0, fmt.Errorf("fastx: unknown format %q", s)
	}
}

// Open opens path, transparently decompressing gzip input, and
// returns a Reader for the named format.
func Open(path string, format Format) (Reader, error) {
	f, err := openMaybeGzip(path)
	if err != nil {
		return nil, fmt.Errorf("fastx: opening %s: %w", path, err)
	}
	switch format {
	case FormatFASTQ:
		return newFASTQReader(f), nil
	case FormatFASTA:
		return newFASTAReader(f), nil
	default:
		f.Close()
		return nil, fmt.Errorf("fastx: unknown format %v", format)
	}
}

// maxQual is the synthesized Phred quality byte ('I' = Q40 in
// Phred+33) used to backfill FASTA input, which carries no quality
// line, so that downstream quality-gated stages (stitch, demux) can
// treat FASTA and FASTQ reads uniformly.
const maxQual = 'I'

func fillQual(n int) []byte {
	q := make([]byte, n)
	for i := range q {
		q[i] = maxQual
	}
	return q
}
