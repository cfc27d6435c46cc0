// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kvstore provides a persistent, memory-mapped, ordered
// key-value store with pluggable value codecs, backing the aptamer
// pool and selection cycle maps.
package kvstore

import (
	"encoding/binary"
	"errors"
	"io"
	"os"

	"modernc.org/kv"
)

// ErrClosed is returned by operations attempted on a closed Store.
var ErrClosed = errors.New("kvstore: store is closed")

// Codec encodes and decodes values stored against a key.
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(b []byte) (interface{}, error)
}

// CompareFunc orders two raw keys, matching the modernc.org/kv
// comparison contract: negative if x<y, zero if equal, positive if
// x>y.
type CompareFunc func(x, y []byte) int

// ByteOrder is the default key comparison, lexicographic over raw
// bytes; it is used for both the big-endian uint32 id keys and the
// raw sequence-byte keys, since both orderings are adequate for this
// store's only access pattern: point lookup and ascending iteration.
func ByteOrder(x, y []byte) int {
	switch {
	case len(x) < len(y):
		if c := compareBytes(x, y[:len(x)]); c != 0 {
			return c
		}
		return -1
	case len(x) > len(y):
		if c := compareBytes(x[:len(y)], y); c != 0 {
			return c
		}
		return 1
	default:
		return compareBytes(x, y)
	}
}

func compareBytes(x, y []byte) int {
	for i := range x {
		switch {
		case x[i] < y[i]:
			return -1
		case x[i] > y[i]:
			return 1
		}
	}
	return 0
}

// Store is a single-writer, many-reader ordered map from byte-slice
// keys to codec-encoded values, backed by a memory-mapped B-tree file
// (modernc.org/kv, which in turn wraps modernc.org/lldb over
// github.com/edsrzf/mmap-go). Keys are fixed-width big-endian uint32s
// for id-keyed maps and raw aptamer bytes for sequence-keyed maps;
// the on-disk byte order is little-endian within lldb's own block
// format but that is an implementation detail of the underlying
// library, not of this package.
type Store struct {
	db     *kv.DB
	codec  Codec
	path   string
	closed bool
}

// Open opens the store file at path, creating it if it does not
// exist. cmp orders keys; codec encodes and decodes values.
func Open(path string, cmp CompareFunc, codec Codec) (*Store, error) {
	opts := &kv.Options{Compare: cmp}
	var db *kv.DB
	var err error
	if _, statErr := os.Stat(path); statErr == nil {
		db, err = kv.Open(path, opts)
	} else {
		db, err = kv.Create(path, opts)
	}
	if err != nil {
		return nil, err
	}
	return &Store{db: db, codec: codec, path: path}, nil
}

// Put writes v under k, overwriting any existing value.
func (s *Store) Put(k []byte, v interface{}) error {
	if s.closed {
		return ErrClosed
	}
	b, err := s.codec.Encode(v)
	if err != nil {
		return err
	}
	return s.db.Set(k, b)
}

// Get returns the value stored under k, or ok=false if absent.
func (s *Store) Get(k []byte) (v interface{}, ok bool, err error) {
	if s.closed {
		return nil, false, ErrClosed
	}
	b, err := s.db.Get(nil, k)
	if err != nil {
		return nil, false, err
	}
	if b == nil {
		return nil, false, nil
	}
	v, err = s.codec.Decode(b)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Contains reports whether k is present in the store.
func (s *Store) Contains(k []byte) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}
	b, err := s.db.Get(nil, k)
	if err != nil {
		return false, err
	}
	return b != nil, nil
}

// RangeFunc is called for each key-value pair during an ascending
// iteration. Returning an error stops the iteration and is returned
// by RangeIter.
type RangeFunc func(k []byte, v interface{}) error

// RangeIter walks all entries in ascending key order, as determined
// by the Store's CompareFunc.
func (s *Store) RangeIter(fn RangeFunc) error {
	if s.closed {
		return ErrClosed
	}
	it, err := s.db.SeekFirst()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}
	for {
		k, v, err := it.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		val, err := s.codec.Decode(v)
		if err != nil {
			return err
		}
		if err := fn(k, val); err != nil {
			return err
		}
	}
}

// Size returns the number of entries in the store.
func (s *Store) Size() (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	return s.db.Len()
}

// Flush commits buffered writes to disk without closing the store.
func (s *Store) Flush() error {
	if s.closed {
		return ErrClosed
	}
	return s.db.Flush()
}

// Close flushes and releases the underlying store handle. Close is
// idempotent.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Uint32Key encodes n as a fixed-width 4-byte big-endian key so that
// byte-order comparison of keys matches numeric order of ids.
func Uint32Key(n uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	return b[:]
}

// KeyToUint32 decodes a key produced by Uint32Key.
func KeyToUint32(k []byte) uint32 {
	return binary.BigEndian.Uint32(k)
}
