// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bloomidx

import (
	"path/filepath"
	"testing"
)

func TestNoFalseNegatives(t *testing.T) {
	idx := New(1000, 0.01)
	seqs := [][]byte{[]byte("ACGT"), []byte("TTTT"), []byte("GGCCAA")}
	for _, s := range seqs {
		idx.Add(s)
	}
	for _, s := range seqs {
		if !idx.MaybeContains(s) {
			t.Fatalf("MaybeContains(%s) = false, want true after Add", s)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.bloom")

	idx := New(1000, 0.01)
	idx.Add([]byte("ACGTACGT"))
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.MaybeContains([]byte("ACGTACGT")) {
		t.Fatalf("MaybeContains after Load = false, want true")
	}
}

func TestLoadOrNewCreatesWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.bloom")

	idx, err := LoadOrNew(path, 100, 0.01)
	if err != nil {
		t.Fatalf("LoadOrNew: %v", err)
	}
	idx.Add([]byte("X"))
	if !idx.MaybeContains([]byte("X")) {
		t.Fatalf("MaybeContains = false, want true")
	}
}
