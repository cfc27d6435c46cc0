// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cycle implements the persistent per-selection-cycle
// id→count multiset: one round of a SELEX selection, tracking how
// many times each pool id was observed.
package cycle

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/soumitrakp/aptasuite/bloomidx"
	"github.com/soumitrakp/aptasuite/kvstore"
)

// Registrar is the subset of pool.Pool a Cycle needs: resolving a
// sequence to its pool-wide id. Depending on the narrow interface
// rather than *pool.Pool keeps this package free of an import cycle
// and limits a Cycle to exactly the pool capability it exercises.
type Registrar interface {
	Register(sequence []byte, primer5Trim, primer3Trim int) (uint32, error)
}

// Lookup resolves a sequence to its pool-wide id without registering
// it, used by read-only queries (Contains, CountOf).
type Lookup interface {
	IdentifierOf(sequence []byte) (uint32, bool, error)
}

// Options configures a cycle's Bloom-filter sizing.
type Options struct {
	BloomCapacity uint
	BloomFPRate   float64
}

// DefaultOptions are reasonable defaults for a single cycle's id set.
var DefaultOptions = Options{BloomCapacity: 10 * 1000 * 1000, BloomFPRate: 0.001}

// Cycle is a named SELEX selection round: its persistent id→count
// map, cached totals, and round metadata (barcode pair, control/counter
// flags).
type Cycle struct {
	Name       string
	Round      int
	Barcode5   string
	Barcode3   string
	IsControl  bool
	IsCounter  bool

	counts *kvstore.Store
	seen   *bloomidx.Index
	dir    string

	mu         sync.Mutex
	size       uint64
	uniqueSize uint64
}

func storePath(dir, name string, round int) string {
	return filepath.Join(dir, fmt.Sprintf("%d_%s.store", round, name))
}

func bloomPath(dir, name string, round int) string {
	return filepath.Join(dir, fmt.Sprintf("%d_%s.bloom", round, name))
}

// Open opens (or lazily creates) the persistent store for a cycle
// named name at round, rooted at the experiment's "cycledata"
// directory.
func Open(dir, name string, round int, opts Options) (*Cycle, error) {
	counts, err := kvstore.Open(storePath(dir, name, round), kvstore.ByteOrder, kvstore.Uint32Codec{})
	if err != nil {
		return nil, fmt.Errorf("cycle %s: opening store: %w", name, err)
	}
	seen, err := bloomidx.LoadOrNew(bloomPath(dir, name, round), opts.BloomCapacity, opts.BloomFPRate)
	if err != nil {
		counts.Close()
		return nil, fmt.Errorf("cycle %s: loading bloom index: %w", name, err)
	}

	c := &Cycle{Name: name, Round: round, counts: counts, seen: seen, dir: dir}
	var size, unique uint64
	err = counts.RangeIter(func(_ []byte, v interface{}) error {
		size += uint64(v.(uint32))
		unique++
		return nil
	})
	if err != nil {
		counts.Close()
		return nil, err
	}
	c.size, c.uniqueSize = size, unique
	return c, nil
}

// Add registers sequence in pool and increments this cycle's count
// for the resulting id, initializing it to 1 on first sight. A Bloom
// miss is treated as definite absence; a Bloom hit is verified by a
// store lookup to tolerate false positives.
func (c *Cycle) Add(pool Registrar, sequence []byte, primer5Trim, primer3Trim int) (uint32, error) {
	id, err := pool.Register(sequence, primer5Trim, primer3Trim)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := kvstore.Uint32Key(id)
	var count uint32
	if c.seen.MaybeContains(key) {
		v, ok, err := c.counts.Get(key)
		if err != nil {
			return 0, err
		}
		if ok {
			count = v.(uint32)
		}
	}

	if count == 0 {
		c.uniqueSize++
	}
	count++
	if err := c.counts.Put(key, count); err != nil {
		return 0, err
	}
	c.seen.Add(key)
	c.size++

	return id, nil
}

// Contains reports whether sequence has a positive count in this
// cycle. It requires a Lookup only to resolve sequence to an id; it
// performs no registration.
func (c *Cycle) Contains(pool Lookup, sequence []byte) (bool, error) {
	n, err := c.CountOf(pool, sequence)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountOf returns the count of sequence in this cycle, or 0 if
// sequence has never been registered in the pool or never added to
// this cycle.
func (c *Cycle) CountOf(pool Lookup, sequence []byte) (uint32, error) {
	id, ok, err := pool.IdentifierOf(sequence)
	if err != nil || !ok {
		return 0, err
	}
	return c.CountOfID(id)
}

// CountOfID returns the count for a pool id already resolved by the
// caller, without needing a Registrar/lookup capability.
func (c *Cycle) CountOfID(id uint32) (uint32, error) {
	key := kvstore.Uint32Key(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.seen.MaybeContains(key) {
		return 0, nil
	}
	v, ok, err := c.counts.Get(key)
	if err != nil || !ok {
		return 0, err
	}
	return v.(uint32), nil
}

// IDs calls fn for every (id, count) pair held by this cycle, for
// callers that need to enumerate membership rather than query one id
// at a time (e.g. cross-checking every cycle id against the pool).
func (c *Cycle) IDs(fn func(id uint32, count uint32) error) error {
	return c.counts.RangeIter(func(k []byte, v interface{}) error {
		return fn(kvstore.KeyToUint32(k), v.(uint32))
	})
}

// Size returns Σ counts: the total number of reads this cycle has
// accumulated across all registered ids.
func (c *Cycle) Size() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// UniqueSize returns the number of distinct ids with a positive
// count in this cycle.
func (c *Cycle) UniqueSize() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uniqueSize
}

// Close flushes and releases the cycle's store handle and persists
// its Bloom index.
func (c *Cycle) Close() error {
	if err := c.seen.Save(bloomPath(c.dir, c.Name, c.Round)); err != nil {
		return err
	}
	return c.counts.Close()
}
