// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fastx

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/soumitrakp/aptasuite/read"
)

// fastqReader reads 4-line FASTQ records, grounded in the
// line-at-a-time bufio.Scanner pattern of muscato's
// utils.ReadInSeq.Next, generalized to return errors instead of
// panicking and to carry the quality line through to read.Read.
type fastqReader struct {
	rc      io.ReadCloser
	scanner *bufio.Scanner
}

func newFASTQReader(rc io.ReadCloser) *fastqReader {
	sc := bufio.NewScanner(rc)
	buf := make([]byte, 0, 64*1024)
	sc.Buffer(buf, 1024*1024)
	return &fastqReader{rc: rc, scanner: sc}
}

func (r *fastqReader) NextRead() (*read.Read, error) {
	var lines [4]string
	for i := 0; i < 4; i++ {
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, fmt.Errorf("fastx: reading FASTQ record: %w", err)
			}
			if i == 0 {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("fastx: truncated FASTQ record after line %d", i)
		}
		lines[i] = r.scanner.Text()
	}
	if len(lines[0]) == 0 || lines[0][0] != '@' {
		return nil, fmt.Errorf("fastx: malformed FASTQ header %q", lines[0])
	}
	if len(lines[2]) == 0 || lines[2][0] != '+' {
		return nil, fmt.Errorf("fastx: malformed FASTQ separator %q", lines[2])
	}
	if len(lines[1]) != len(lines[3]) {
		return nil, fmt.Errorf("fastx: sequence/quality length mismatch for %q: %d vs %d", lines[0], len(lines[1]), len(lines[3]))
	}
	name := strings.TrimPrefix(lines[0], "@")
	if fields := strings.Fields(name); len(fields) > 0 {
		name = fields[0]
	}

	return &read.Read{
		Name:        name,
		Forward:     []byte(lines[1]),
		ForwardQual: []byte(lines[3]),
	}, nil
}

func (r *fastqReader) Close() error { return r.rc.Close() }
