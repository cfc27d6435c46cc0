// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package caprdriver runs the CapR structural-profiling engine over
// an entire pool: a single producer walks the pool in ascending id
// order; N-1 consumers each own a reusable capr.Engine instance; an
// atomic counter tracks progress; profiles are optionally persisted
// to a kvstore-backed profile store.
package caprdriver

import (
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/soumitrakp/aptasuite/capr"
	"github.com/soumitrakp/aptasuite/kvstore"
	"github.com/soumitrakp/aptasuite/pool"
)

const profileStoreFile = "id_to_profile.store"

// OpenProfileStore opens (or creates) the optional structural-profile
// store under dir, the "structuredata" directory named in spec.md
// §6. Values are compressed via kvstore.SnappyCodec, matching its
// doc comment's stated use case.
func OpenProfileStore(dir string) (*kvstore.Store, error) {
	s, err := kvstore.Open(filepath.Join(dir, profileStoreFile), kvstore.ByteOrder, kvstore.SnappyCodec{Inner: kvstore.ProfileCodec{}})
	if err != nil {
		return nil, fmt.Errorf("caprdriver: opening profile store: %w", err)
	}
	return s, nil
}

// Flatten lays out a capr.Profile as the row-major []float64 the
// profile store's ProfileCodec expects.
func Flatten(p capr.Profile) []float64 {
	if len(p) == 0 {
		return nil
	}
	cols := len(p[0])
	out := make([]float64, len(p)*cols)
	for r, row := range p {
		copy(out[r*cols:(r+1)*cols], row)
	}
	return out
}

// Unflatten is Flatten's inverse, given the number of columns (the
// sequence length the profile was computed for).
func Unflatten(flat []float64, cols int) capr.Profile {
	rows := len(flat) / cols
	p := make(capr.Profile, rows)
	for r := 0; r < rows; r++ {
		p[r] = append([]float64(nil), flat[r*cols:(r+1)*cols]...)
	}
	return p
}

// Options configures a Driver run.
type Options struct {
	// MaxThreads caps the thread count N = min(detected logical
	// CPUs, MaxThreads); the driver runs N-1 consumers, at least one.
	MaxThreads int
	Engine     capr.Options
}

// Result is the outcome of one caprdriver pass. RunID correlates this
// pass's log lines across consumers, the way a trace ID correlates
// spans.
type Result struct {
	RunID     string
	Processed uint64
}

// Driver runs one CapR pass over a pool.
type Driver struct {
	log      *log.Logger
	pool     *pool.Pool
	profiles *kvstore.Store
	opts     Options

	progress uint64
}

// New builds a Driver. profiles may be nil to skip persistence.
func New(logger *log.Logger, p *pool.Pool, profiles *kvstore.Store, opts Options) *Driver {
	return &Driver{log: logger, pool: p, profiles: profiles, opts: opts}
}

// Progress returns the number of aptamers handled so far in the
// current (or most recent) Run, counting those whose fold or store
// write failed as well as those folded and stored.
func (d *Driver) Progress() uint64 {
	return atomic.LoadUint64(&d.progress)
}

func (d *Driver) consumerCount() int {
	n := runtime.NumCPU()
	if d.opts.MaxThreads > 0 && d.opts.MaxThreads < n {
		n = d.opts.MaxThreads
	}
	if n < 2 {
		n = 2
	}
	return n - 1
}

type entry struct {
	id       uint32
	sequence []byte
}

type job struct {
	e    entry
	pill bool
}

// Run folds every aptamer in the pool and, if a profile store was
// configured, persists each resulting Profile keyed by id. Input
// order is ascending id; output (store-write) order is not
// guaranteed, since consumers finish independently.
func (d *Driver) Run() (Result, error) {
	runID := uuid.New().String()
	d.log.Printf("run %s: starting", runID)

	entries, err := d.orderedEntries()
	if err != nil {
		return Result{}, err
	}

	atomic.StoreUint64(&d.progress, 0)

	n := d.consumerCount()
	jobs := make(chan *job, n*4)
	// Buffered to the worst case (every entry errors) so a consumer
	// can never block on errs while wg.Wait() waits for it to exit.
	errs := make(chan error, len(entries))

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go d.consume(jobs, errs, &wg)
	}

	for _, e := range entries {
		jobs <- &job{e: e}
	}
	jobs <- &job{pill: true}

	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return Result{}, err
		}
	}

	return Result{RunID: runID, Processed: atomic.LoadUint64(&d.progress)}, nil
}

func (d *Driver) consume(jobs chan *job, errs chan<- error, wg *sync.WaitGroup) {
	defer wg.Done()
	eng := capr.New(d.opts.Engine)
	for {
		j := <-jobs
		if j.pill {
			jobs <- j
			return
		}

		prof, err := eng.Fold(j.e.sequence)
		if err != nil {
			d.log.Printf("caprdriver: folding id %d: %v", j.e.id, err)
			atomic.AddUint64(&d.progress, 1)
			continue
		}

		if d.profiles != nil {
			flat := Flatten(prof)
			if err := d.profiles.Put(kvstore.Uint32Key(j.e.id), flat); err != nil {
				errs <- fmt.Errorf("caprdriver: storing profile for id %d: %w", j.e.id, err)
				atomic.AddUint64(&d.progress, 1)
				continue
			}
		}

		atomic.AddUint64(&d.progress, 1)
	}
}

// orderedEntries walks the pool's (sequence,id) pairs and sorts them
// by ascending id, since the pool only exposes sequence-ordered
// iteration (its bijection is keyed on sequence bytes, not id).
func (d *Driver) orderedEntries() ([]entry, error) {
	var entries []entry
	err := d.pool.Iter(func(e pool.Entry) error {
		bnd, err := d.pool.BoundsOf(e.ID)
		if err != nil {
			return err
		}
		// Fold only the randomized region, not the flanking primers
		// still present in the registered full-length sequence.
		region := append([]byte(nil), e.Sequence[bnd.Start:bnd.End]...)
		entries = append(entries, entry{id: e.ID, sequence: region})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("caprdriver: iterating pool: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	return entries, nil
}
