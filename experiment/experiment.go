// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package experiment ties together one aptamer pool and an ordered
// list of selection cycles, and owns their lifecycle exclusively.
package experiment

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/soumitrakp/aptasuite/cycle"
	"github.com/soumitrakp/aptasuite/pool"
)

const (
	poolDir  = "pooldata"
	cycleDir = "cycledata"
)

// Experiment owns one aptamer pool and the ordered cycle list
// indexed by round. Next/previous navigation is provided by
// NextCycle and PreviousCycle on the Experiment; a Cycle holds no
// reference to the Experiment and cannot find its neighbours by
// itself.
type Experiment struct {
	dir string

	Pool *pool.Pool

	mu     sync.RWMutex
	cycles []*cycle.Cycle // ordered by Round, ascending
}

// Open opens or creates the project directory at dir, bringing up
// the pool; cycles already persisted under cycledata/ are reopened
// eagerly, and new ones are created lazily on the first
// CycleByRoundName call for their round and name.
func Open(dir string, opts pool.Options) (*Experiment, error) {
	if err := os.MkdirAll(filepath.Join(dir, poolDir), 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(dir, cycleDir), 0o755); err != nil {
		return nil, err
	}
	p, err := pool.Open(filepath.Join(dir, poolDir), opts)
	if err != nil {
		return nil, fmt.Errorf("experiment: opening pool: %w", err)
	}

	e := &Experiment{dir: dir, Pool: p}
	if err := e.discoverCycles(); err != nil {
		p.Close()
		return nil, err
	}
	return e, nil
}

// discoverCycles reopens every cycle already persisted under
// cycledata/ from a prior run, so a freshly opened Experiment sees
// the same cycle list a long-lived one would, rather than only the
// cycles a caller happens to touch via CycleByRoundName.
func (e *Experiment) discoverCycles() error {
	matches, err := filepath.Glob(filepath.Join(e.dir, cycleDir, "*.store"))
	if err != nil {
		return fmt.Errorf("experiment: listing cycles: %w", err)
	}
	for _, m := range matches {
		round, name, ok := parseCycleStoreName(filepath.Base(m))
		if !ok {
			continue
		}
		if _, err := e.CycleByRoundName(round, name, cycle.DefaultOptions); err != nil {
			return fmt.Errorf("experiment: reopening cycle %s: %w", filepath.Base(m), err)
		}
	}
	return nil
}

// parseCycleStoreName recovers (round, name) from a "<round>_<name>.store"
// filename produced by cycle.storePath.
func parseCycleStoreName(base string) (round int, name string, ok bool) {
	base = strings.TrimSuffix(base, ".store")
	i := strings.IndexByte(base, '_')
	if i < 0 {
		return 0, "", false
	}
	round, err := strconv.Atoi(base[:i])
	if err != nil {
		return 0, "", false
	}
	return round, base[i+1:], true
}

// CycleByRoundName opens (or returns the already-open) cycle
// identified by round and name, creating its stores on first use.
func (e *Experiment) CycleByRoundName(round int, name string, opts cycle.Options) (*cycle.Cycle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, c := range e.cycles {
		if c.Round == round && c.Name == name {
			return c, nil
		}
	}

	c, err := cycle.Open(filepath.Join(e.dir, cycleDir), name, round, opts)
	if err != nil {
		return nil, err
	}
	e.insertLocked(c)
	return c, nil
}

func (e *Experiment) insertLocked(c *cycle.Cycle) {
	i := 0
	for ; i < len(e.cycles); i++ {
		if e.cycles[i].Round > c.Round {
			break
		}
	}
	e.cycles = append(e.cycles, nil)
	copy(e.cycles[i+1:], e.cycles[i:])
	e.cycles[i] = c
}

// Cycles returns the ordered list of cycles by ascending round. The
// returned slice is a snapshot and safe to range over independent of
// further experiment activity.
func (e *Experiment) Cycles() []*cycle.Cycle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*cycle.Cycle, len(e.cycles))
	copy(out, e.cycles)
	return out
}

// NextCycle returns the cycle with the next-higher round after c, or
// nil if c is the last cycle.
func (e *Experiment) NextCycle(c *cycle.Cycle) *cycle.Cycle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for i, x := range e.cycles {
		if x == c && i+1 < len(e.cycles) {
			return e.cycles[i+1]
		}
	}
	return nil
}

// PreviousCycle returns the cycle with the next-lower round before
// c, or nil if c is the first cycle.
func (e *Experiment) PreviousCycle(c *cycle.Cycle) *cycle.Cycle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for i, x := range e.cycles {
		if x == c && i > 0 {
			return e.cycles[i-1]
		}
	}
	return nil
}

// Close tears down every owned resource in reverse acquisition
// order: cycles first, then the pool, since a cycle's Registrar
// capability depends on the pool staying open underneath it.
func (e *Experiment) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	for i := len(e.cycles) - 1; i >= 0; i-- {
		if err := e.cycles[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := e.Pool.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
