// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package contam

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFasta(t *testing.T, dir string) string {
	t.Helper()
	p := filepath.Join(dir, "contaminants.fasta")
	const data = ">adapter1\nAGATCGGAAGAGC\n>vector1\nGGGGCCCCTTTTAAAA\n"
	if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

func TestScreenDetectsContaminant(t *testing.T) {
	p := writeFasta(t, t.TempDir())
	s, err := Open(p)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	seq := []byte("TTTTTTTTTTAGATCGGAAGAGCGGGG")
	found, err := s.Screen(seq)
	if err != nil {
		t.Fatalf("Screen: %v", err)
	}
	if !found {
		t.Fatalf("Screen = false, want true (adapter1 is a substring)")
	}
}

func TestScreenCleanSequence(t *testing.T) {
	p := writeFasta(t, t.TempDir())
	s, err := Open(p)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	seq := []byte("ACGTACGTACGTACGTACGT")
	found, err := s.Screen(seq)
	if err != nil {
		t.Fatalf("Screen: %v", err)
	}
	if found {
		t.Fatalf("Screen = true, want false (no contaminant present)")
	}
}
