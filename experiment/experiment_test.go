// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package experiment

import (
	"testing"

	"github.com/soumitrakp/aptasuite/cycle"
	"github.com/soumitrakp/aptasuite/pool"
)

func testPoolOptions() pool.Options {
	return pool.Options{BloomCapacity: 1000, BloomFPRate: 0.01}
}

func testCycleOptions() cycle.Options {
	return cycle.Options{BloomCapacity: 1000, BloomFPRate: 0.01}
}

func TestCycleByRoundNameIsIdempotent(t *testing.T) {
	e, err := Open(t.TempDir(), testPoolOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	c1, err := e.CycleByRoundName(1, "R1", testCycleOptions())
	if err != nil {
		t.Fatalf("CycleByRoundName: %v", err)
	}
	c2, err := e.CycleByRoundName(1, "R1", testCycleOptions())
	if err != nil {
		t.Fatalf("CycleByRoundName (again): %v", err)
	}
	if c1 != c2 {
		t.Fatalf("CycleByRoundName returned distinct cycles for the same round/name")
	}
}

func TestCyclesOrderedByRound(t *testing.T) {
	e, err := Open(t.TempDir(), testPoolOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	for _, round := range []int{3, 1, 2} {
		if _, err := e.CycleByRoundName(round, "x", testCycleOptions()); err != nil {
			t.Fatalf("CycleByRoundName(%d): %v", round, err)
		}
	}

	cycles := e.Cycles()
	if len(cycles) != 3 {
		t.Fatalf("len(Cycles()) = %d, want 3", len(cycles))
	}
	for i, want := range []int{1, 2, 3} {
		if cycles[i].Round != want {
			t.Fatalf("Cycles()[%d].Round = %d, want %d", i, cycles[i].Round, want)
		}
	}
}

func TestNextPreviousCycle(t *testing.T) {
	e, err := Open(t.TempDir(), testPoolOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	c1, err := e.CycleByRoundName(1, "x", testCycleOptions())
	if err != nil {
		t.Fatalf("CycleByRoundName(1): %v", err)
	}
	c2, err := e.CycleByRoundName(2, "x", testCycleOptions())
	if err != nil {
		t.Fatalf("CycleByRoundName(2): %v", err)
	}

	if got := e.NextCycle(c1); got != c2 {
		t.Fatalf("NextCycle(c1) = %v, want c2", got)
	}
	if got := e.PreviousCycle(c2); got != c1 {
		t.Fatalf("PreviousCycle(c2) = %v, want c1", got)
	}
	if got := e.NextCycle(c2); got != nil {
		t.Fatalf("NextCycle(c2) = %v, want nil", got)
	}
	if got := e.PreviousCycle(c1); got != nil {
		t.Fatalf("PreviousCycle(c1) = %v, want nil", got)
	}
}
