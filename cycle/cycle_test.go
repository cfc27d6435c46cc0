// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cycle

import (
	"testing"

	"github.com/soumitrakp/aptasuite/pool"
)

func testCycleOptions() Options {
	return Options{BloomCapacity: 1000, BloomFPRate: 0.01}
}

func testPool(t *testing.T) *pool.Pool {
	t.Helper()
	p, err := pool.Open(t.TempDir(), pool.Options{BloomCapacity: 1000, BloomFPRate: 0.01})
	if err != nil {
		t.Fatalf("pool.Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

// TestCycleCounts checks that repeated registrations of the same and
// distinct sequences accumulate the expected per-id counts.
func TestCycleCounts(t *testing.T) {
	p := testPool(t)
	c, err := Open(t.TempDir(), "R1", 1, testCycleOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	for _, seq := range []string{"AAA", "AAA", "CCC"} {
		if _, err := c.Add(p, []byte(seq), 0, 0); err != nil {
			t.Fatalf("Add(%s): %v", seq, err)
		}
	}

	if got := c.Size(); got != 3 {
		t.Fatalf("Size() = %d, want 3", got)
	}
	if got := c.UniqueSize(); got != 2 {
		t.Fatalf("UniqueSize() = %d, want 2", got)
	}
	n, err := c.CountOf(p, []byte("AAA"))
	if err != nil {
		t.Fatalf("CountOf: %v", err)
	}
	if n != 2 {
		t.Fatalf("CountOf(AAA) = %d, want 2", n)
	}
}

// TestCycleInvariant checks that size = Σ counts and
// unique_size = |{id : count>0}|.
func TestCycleInvariant(t *testing.T) {
	p := testPool(t)
	c, err := Open(t.TempDir(), "R2", 2, testCycleOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	seqs := []string{"AAAA", "CCCC", "AAAA", "GGGG", "AAAA", "CCCC"}
	for _, s := range seqs {
		if _, err := c.Add(p, []byte(s), 0, 0); err != nil {
			t.Fatalf("Add(%s): %v", s, err)
		}
	}

	if got, want := c.Size(), uint64(len(seqs)); got != want {
		t.Fatalf("Size() = %d, want %d", got, want)
	}
	if got := c.UniqueSize(); got != 3 {
		t.Fatalf("UniqueSize() = %d, want 3", got)
	}
}

func TestCycleContainsAbsent(t *testing.T) {
	p := testPool(t)
	c, err := Open(t.TempDir(), "R1", 1, testCycleOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	ok, err := c.Contains(p, []byte("NEVERADDED"))
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if ok {
		t.Fatalf("Contains(never added) = true, want false")
	}
}

func TestCycleRoundTripReopen(t *testing.T) {
	p := testPool(t)
	dir := t.TempDir()
	c, err := Open(dir, "R1", 1, testCycleOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := c.Add(p, []byte("AAAA"), 0, 0); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c2, err := Open(dir, "R1", 1, testCycleOptions())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c2.Close()
	if got := c2.Size(); got != 1 {
		t.Fatalf("Size after reopen = %d, want 1", got)
	}
	n, err := c2.CountOf(p, []byte("AAAA"))
	if err != nil || n != 1 {
		t.Fatalf("CountOf after reopen = (%d,%v), want (1,nil)", n, err)
	}
}
