// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package caprdriver

import (
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/soumitrakp/aptasuite/kvstore"
	"github.com/soumitrakp/aptasuite/pool"
)

func testLogger() *log.Logger {
	return log.New(os.Stderr, "caprdriver-test: ", 0)
}

func TestRunFoldsAndPersists(t *testing.T) {
	dir := t.TempDir()
	p, err := pool.Open(dir, pool.Options{BloomCapacity: 1000, BloomFPRate: 0.01})
	if err != nil {
		t.Fatalf("pool.Open: %v", err)
	}
	defer p.Close()

	seqs := [][]byte{
		[]byte("AAAAGGGAAATCCCTTTT"),
		[]byte("AAAAGCGCTTTT"),
	}
	ids := make([]uint32, len(seqs))
	for i, s := range seqs {
		id, err := p.Register(s, 4, 4)
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
		ids[i] = id
	}

	profiles, err := OpenProfileStore(filepath.Join(dir))
	if err != nil {
		t.Fatalf("OpenProfileStore: %v", err)
	}
	defer profiles.Close()

	d := New(testLogger(), p, profiles, Options{MaxThreads: 2})
	result, err := d.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Processed != uint64(len(seqs)) {
		t.Fatalf("Processed = %d, want %d", result.Processed, len(seqs))
	}

	for i, id := range ids {
		v, ok, err := profiles.Get(kvstore.Uint32Key(id))
		if err != nil {
			t.Fatalf("Get(%d): %v", id, err)
		}
		if !ok {
			t.Fatalf("profile for id %d not stored", id)
		}
		flat := v.([]float64)
		cols := len(seqs[i]) - 8 // minus the 4+4 primer trims
		if len(flat) != 6*cols {
			t.Fatalf("id %d: flat profile length = %d, want %d", id, len(flat), 6*cols)
		}
	}
}
