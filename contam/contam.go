// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package contam screens stitched reads against a small reference
// FASTA of known contaminant/vector/adapter sequences, populating a
// read's contamination bit.
package contam

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/biogo/hts/fai"
)

// entry is one contaminant record's name and length, discovered by a
// single sequential scan of the reference FASTA before it is
// reopened for indexed random access.
type entry struct {
	name   string
	length int
}

// Screener answers whether a candidate sequence contains a known
// contaminant as a substring.
type Screener struct {
	f       *os.File
	file    *fai.File
	entries []entry
	minimum int
}

// Open builds a Screener from a FASTA file of contaminant sequences
// at path, indexing it for random access with biogo/hts/fai the same
// way cmd/ins/main.go indexes its query genome. Names and lengths are
// collected with a plain sequential scan (the same seqio/fasta
// combination fragment.go's split uses) so SeqRange is only ever
// called with a verified-valid end coordinate.
func Open(path string) (*Screener, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("contam: opening %s: %w", path, err)
	}

	entries, err := scanEntries(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("contam: scanning %s: %w", path, err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	idx, err := fai.NewIndex(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("contam: indexing %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	return &Screener{f: f, file: fai.NewFile(f, idx), entries: entries, minimum: 12}, nil
}

func scanEntries(r io.Reader) ([]entry, error) {
	sc := seqio.NewScanner(fasta.NewReader(r, linear.NewSeq("", nil, alphabet.DNA)))
	var entries []entry
	for sc.Next() {
		seq, ok := sc.Seq().(*linear.Seq)
		if !ok {
			return nil, fmt.Errorf("unexpected sequence type in reference FASTA")
		}
		entries = append(entries, entry{name: seq.ID, length: seq.Len()})
	}
	if err := sc.Error(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Screen reports whether seq contains any indexed contaminant
// sequence as a substring of at least the screener's minimum match
// length.
func (s *Screener) Screen(seq []byte) (bool, error) {
	for _, e := range s.entries {
		if e.length < s.minimum {
			continue
		}
		r, err := s.file.SeqRange(e.name, 0, e.length)
		if err != nil {
			return false, fmt.Errorf("contam: reading %s: %w", e.name, err)
		}
		ref, err := ioutil.ReadAll(r)
		if err != nil {
			return false, fmt.Errorf("contam: reading %s: %w", e.name, err)
		}
		if bytes.Contains(seq, ref) {
			return true, nil
		}
	}
	return false, nil
}

// Close releases the underlying reference file handle.
func (s *Screener) Close() error {
	return s.f.Close()
}
