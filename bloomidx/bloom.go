// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bloomidx provides the Bloom-filter fast-reject gate used by
// the aptamer pool and each selection cycle, accelerating membership
// tests ahead of the expensive persistent store lookup.
package bloomidx

import (
	"bufio"
	"os"

	"github.com/willf/bloom"
)

// Index is a Bloom filter sized at construction from an expected
// capacity and a target false-positive rate. It guarantees zero false
// negatives: once Add(x) has been called, MaybeContains(x) always
// reports true.
type Index struct {
	filter *bloom.BloomFilter
}

// New creates an Index sized for capacity expected elements at
// fpRate target false-positive rate, once the live element count
// reaches capacity.
func New(capacity uint, fpRate float64) *Index {
	return &Index{filter: bloom.NewWithEstimates(capacity, fpRate)}
}

// Add records b as present.
func (x *Index) Add(b []byte) {
	x.filter.Add(b)
}

// MaybeContains reports whether b may have been added. A false
// result is definitive; a true result may be a false positive.
func (x *Index) MaybeContains(b []byte) bool {
	return x.filter.Test(b)
}

// Save writes the filter's binary representation to path, to be
// restored with Load when the pool or cycle directory is reopened.
func (x *Index) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if _, err := x.filter.WriteTo(w); err != nil {
		return err
	}
	return w.Flush()
}

// Load restores a filter previously written with Save.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	filter := &bloom.BloomFilter{}
	if _, err := filter.ReadFrom(bufio.NewReader(f)); err != nil {
		return nil, err
	}
	return &Index{filter: filter}, nil
}

// LoadOrNew restores the filter at path if it exists, otherwise
// constructs a new one sized for capacity and fpRate. It is the
// standard way a pool or cycle brings up its Bloom index at open
// time, matching spec.md's "created empty or opened from directory
// on startup" lifecycle.
func LoadOrNew(path string, capacity uint, fpRate float64) (*Index, error) {
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	return New(capacity, fpRate), nil
}
