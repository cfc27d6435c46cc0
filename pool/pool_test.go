// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pool

import (
	"sync"
	"testing"
)

func testOptions() Options {
	return Options{BloomCapacity: 1000, BloomFPRate: 0.01}
}

// TestTinyPool exercises basic registration and lookup on a small pool.
func TestTinyPool(t *testing.T) {
	p, err := Open(t.TempDir(), testOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	var ids []uint32
	for _, seq := range []string{"ACGT", "ACGT", "TGCA"} {
		id, err := p.Register([]byte(seq), 0, 0)
		if err != nil {
			t.Fatalf("Register(%s): %v", seq, err)
		}
		ids = append(ids, id)
	}
	want := []uint32{0, 0, 1}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
	if got := p.Size(); got != 2 {
		t.Fatalf("Size() = %d, want 2", got)
	}
	bnd, err := p.BoundsOf(0)
	if err != nil {
		t.Fatalf("BoundsOf(0): %v", err)
	}
	if bnd.Start != 0 || bnd.End != 4 {
		t.Fatalf("BoundsOf(0) = %+v, want {0,4}", bnd)
	}
}

// TestPrimerTrim checks that primer trim bounds are recorded and
// retrievable per id.
func TestPrimerTrim(t *testing.T) {
	p, err := Open(t.TempDir(), testOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	read := "AAACGTCGTTT"
	id, err := p.Register([]byte(read), len("AAA"), len("TTT"))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	bnd, err := p.BoundsOf(id)
	if err != nil {
		t.Fatalf("BoundsOf: %v", err)
	}
	if bnd.Start != 3 || bnd.End != 8 {
		t.Fatalf("BoundsOf = %+v, want {3,8}", bnd)
	}
	randomized := read[bnd.Start:bnd.End]
	if randomized != "CGTCG" {
		t.Fatalf("randomized region = %q, want %q", randomized, "CGTCG")
	}
}

func TestIdentifierOfAbsent(t *testing.T) {
	p, err := Open(t.TempDir(), testOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	if _, ok, err := p.IdentifierOf([]byte("ACGT")); err != nil || ok {
		t.Fatalf("IdentifierOf(absent) = (_, %v, %v), want (_, false, nil)", ok, err)
	}
}

func TestRegisterInvalidSequence(t *testing.T) {
	p, err := Open(t.TempDir(), testOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	if _, err := p.Register([]byte("ACGN"), 0, 0); err == nil {
		t.Fatalf("Register(invalid) succeeded, want error")
	}
}

func TestIterAscending(t *testing.T) {
	p, err := Open(t.TempDir(), testOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	for _, seq := range []string{"TTTT", "AAAA", "CCCC"} {
		if _, err := p.Register([]byte(seq), 0, 0); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	var got []string
	err = p.Iter(func(e Entry) error {
		got = append(got, string(e.Sequence))
		return nil
	})
	if err != nil {
		t.Fatalf("Iter: %v", err)
	}
	want := []string{"AAAA", "CCCC", "TTTT"}
	if len(got) != len(want) {
		t.Fatalf("Iter order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Iter order = %v, want %v", got, want)
		}
	}
}

// TestRoundTripReopen checks that a pool closed and reopened preserves
// its registered sequences and ids.
func TestRoundTripReopen(t *testing.T) {
	dir := t.TempDir()
	p, err := Open(dir, testOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, err := p.Register([]byte("GATTACA"), 0, 0)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	p2, err := Open(dir, testOptions())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer p2.Close()
	if got := p2.Size(); got != 1 {
		t.Fatalf("Size after reopen = %d, want 1", got)
	}
	got, ok, err := p2.IdentifierOf([]byte("GATTACA"))
	if err != nil || !ok || got != id {
		t.Fatalf("IdentifierOf after reopen = (%v,%v,%v), want (%d,true,nil)", got, ok, err, id)
	}
}

// TestConcurrentRegisterSameSequence exercises the invariant that
// racing callers registering the same sequence end with exactly one id.
func TestConcurrentRegisterSameSequence(t *testing.T) {
	p, err := Open(t.TempDir(), testOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	const n = 50
	ids := make([]uint32, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = p.Register([]byte("ACGTACGT"), 0, 0)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Register[%d]: %v", i, err)
		}
	}
	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("ids[%d] = %d, want %d (all equal)", i, ids[i], ids[0])
		}
	}
	if got := p.Size(); got != 1 {
		t.Fatalf("Size() = %d, want 1", got)
	}
}
