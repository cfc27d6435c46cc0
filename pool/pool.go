// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pool implements the persistent aptamer pool: a
// sequence-to-id bijection plus per-id randomized-region bounds,
// accelerated by Bloom-filter fast-reject gates.
package pool

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/soumitrakp/aptasuite/bloomidx"
	"github.com/soumitrakp/aptasuite/kvstore"
)

// Bounds is the randomized-region offset pair for an aptamer: the
// half-open interval [Start,End) within the full-length sequence.
type Bounds = kvstore.Bounds

// Options configures a pool's Bloom-filter sizing.
type Options struct {
	// BloomCapacity is the expected number of distinct aptamers.
	BloomCapacity uint
	// BloomFPRate is the target false-positive rate at capacity.
	BloomFPRate float64
}

// DefaultOptions are reasonable defaults for a SELEX-scale pool.
var DefaultOptions = Options{BloomCapacity: 100 * 1000 * 1000, BloomFPRate: 0.001}

const (
	seqToIDFile    = "seq_to_id.store"
	idToBoundsFile = "id_to_bounds.store"
	bloomFile      = "pool_bloom.bin"
	idBloomFile    = "pool_id_bloom.bin"
)

// Pool is the persistent aptamer pool: a sequence-to-id bijection
// plus per-id randomized-region bounds. Writes are only safe during
// the parsing phase, serialized by the embedded write lock; once
// parsing is closed the pool is read-only and concurrent readers
// require no further synchronization.
type Pool struct {
	dir string

	seqToID    *kvstore.Store
	idToBounds *kvstore.Store
	seen       *bloomidx.Index // over registered sequence bytes
	seenIDs    *bloomidx.Index // over assigned ids, for cycles/callers probing pool membership by id

	writeMu sync.Mutex
	nextID  uint32 // next_id, incremented atomically under writeMu
}

// Open opens the pool rooted at dir, creating its stores if they do
// not already exist.
func Open(dir string, opts Options) (*Pool, error) {
	seqToID, err := kvstore.Open(filepath.Join(dir, seqToIDFile), kvstore.ByteOrder, kvstore.Uint32Codec{})
	if err != nil {
		return nil, fmt.Errorf("pool: opening %s: %w", seqToIDFile, err)
	}
	idToBounds, err := kvstore.Open(filepath.Join(dir, idToBoundsFile), kvstore.ByteOrder, kvstore.BoundsCodec{})
	if err != nil {
		seqToID.Close()
		return nil, fmt.Errorf("pool: opening %s: %w", idToBoundsFile, err)
	}
	seen, err := bloomidx.LoadOrNew(filepath.Join(dir, bloomFile), opts.BloomCapacity, opts.BloomFPRate)
	if err != nil {
		seqToID.Close()
		idToBounds.Close()
		return nil, fmt.Errorf("pool: loading bloom index: %w", err)
	}
	seenIDs, err := bloomidx.LoadOrNew(filepath.Join(dir, idBloomFile), opts.BloomCapacity, opts.BloomFPRate)
	if err != nil {
		seqToID.Close()
		idToBounds.Close()
		return nil, fmt.Errorf("pool: loading id bloom index: %w", err)
	}

	n, err := seqToID.Size()
	if err != nil {
		seqToID.Close()
		idToBounds.Close()
		return nil, err
	}

	return &Pool{
		dir:        dir,
		seqToID:    seqToID,
		idToBounds: idToBounds,
		seen:       seen,
		seenIDs:    seenIDs,
		nextID:     uint32(n),
	}, nil
}

// ErrInvalidSequence is returned by Register when sequence contains
// bytes outside the uppercase {A,C,G,T} alphabet.
type ErrInvalidSequence struct {
	Sequence []byte
}

func (e *ErrInvalidSequence) Error() string {
	return fmt.Sprintf("pool: invalid aptamer sequence %q", e.Sequence)
}

// validAptamer reports whether seq is a non-empty uppercase
// {A,C,G,T} byte string. Validation belongs here rather than in
// fastx/demux because it is the pool's injectivity invariant that a
// malformed sequence would violate.
func validAptamer(seq []byte) bool {
	if len(seq) == 0 {
		return false
	}
	for _, b := range seq {
		switch b {
		case 'A', 'C', 'G', 'T':
		default:
			return false
		}
	}
	return true
}

// Register assigns sequence a stable integer id, allocating a new one
// on first registration and returning the existing id, idempotently,
// on every subsequent call with the same bytes. primer5Trim and
// primer3Trim are the lengths of the matched 5′ and 3′ primer
// regions; bounds are recorded only at first registration and never
// mutated afterward.
func (p *Pool) Register(sequence []byte, primer5Trim, primer3Trim int) (uint32, error) {
	if !validAptamer(sequence) {
		return 0, &ErrInvalidSequence{Sequence: append([]byte(nil), sequence...)}
	}

	if p.seen.MaybeContains(sequence) {
		if id, ok, err := p.identifierOfLocked(sequence); err != nil {
			return 0, err
		} else if ok {
			return id, nil
		}
		// Bloom hit but store miss: a false positive, fall through
		// to registration.
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	// Re-check under the write lock: another goroutine may have
	// registered this exact sequence while we were waiting.
	if id, ok, err := p.identifierOfLocked(sequence); err != nil {
		return 0, err
	} else if ok {
		return id, nil
	}

	id := atomic.AddUint32(&p.nextID, 1) - 1

	key := append([]byte(nil), sequence...)
	if err := p.seqToID.Put(key, id); err != nil {
		return 0, err
	}
	idKey := kvstore.Uint32Key(id)
	bnd := kvstore.Bounds{Start: uint32(primer5Trim), End: uint32(len(sequence) - primer3Trim)}
	if err := p.idToBounds.Put(idKey, bnd); err != nil {
		return 0, err
	}
	p.seen.Add(key)
	p.seenIDs.Add(idKey)

	return id, nil
}

func (p *Pool) identifierOfLocked(sequence []byte) (uint32, bool, error) {
	v, ok, err := p.seqToID.Get(sequence)
	if err != nil || !ok {
		return 0, false, err
	}
	return v.(uint32), true, nil
}

// IdentifierOf returns the id previously assigned to sequence, or
// ok=false if it has never been registered.
func (p *Pool) IdentifierOf(sequence []byte) (id uint32, ok bool, err error) {
	if !p.seen.MaybeContains(sequence) {
		return 0, false, nil
	}
	return p.identifierOfLocked(sequence)
}

// BoundsOf returns the randomized-region bounds for id. Behavior is
// undefined if id was never registered.
func (p *Pool) BoundsOf(id uint32) (Bounds, error) {
	v, ok, err := p.idToBounds.Get(kvstore.Uint32Key(id))
	if err != nil {
		return Bounds{}, err
	}
	if !ok {
		return Bounds{}, fmt.Errorf("pool: unknown id %d", id)
	}
	return v.(Bounds), nil
}

// MaybeContainsID reports whether id may belong to this pool, a fast
// reject gate for downstream consumers (a cycle's id set, an audit
// pass) that want to check pool membership by id without paying for
// an idToBounds lookup. A false result is definitive; a true result
// may be a false positive and should be confirmed with BoundsOf.
func (p *Pool) MaybeContainsID(id uint32) bool {
	return p.seenIDs.MaybeContains(kvstore.Uint32Key(id))
}

// Entry is one (sequence, id) pair yielded by Iter.
type Entry struct {
	Sequence []byte
	ID       uint32
}

// Iter calls fn for every registered (sequence, id) pair in
// ascending sequence-byte order. It is only safe to call once the
// pool has stopped accepting writes.
func (p *Pool) Iter(fn func(Entry) error) error {
	return p.seqToID.RangeIter(func(k []byte, v interface{}) error {
		return fn(Entry{Sequence: k, ID: v.(uint32)})
	})
}

// Size returns the number of distinct aptamers registered, i.e.
// next_id.
func (p *Pool) Size() uint32 {
	return atomic.LoadUint32(&p.nextID)
}

// Close flushes and releases the pool's store handles and persists
// its Bloom indexes.
func (p *Pool) Close() error {
	if err := p.seen.Save(filepath.Join(p.dir, bloomFile)); err != nil {
		return err
	}
	if err := p.seenIDs.Save(filepath.Join(p.dir, idBloomFile)); err != nil {
		return err
	}
	if err := p.seqToID.Close(); err != nil {
		return err
	}
	return p.idToBounds.Close()
}
