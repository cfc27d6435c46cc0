// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aptaplex

import (
	"encoding/json"
	"fmt"
	"os"
)

// CycleFileConfig names one cycle's input files and (if carried) its
// demultiplexing barcodes.
type CycleFileConfig struct {
	Name    string
	Round   int
	Forward string
	Reverse string // empty for single-end input

	Barcode5 string
	Barcode3 string

	IsControl bool
	IsCounter bool
}

// Config is the JSON-decoded configuration for one AptaPlex run,
// following muscato/utils.Config's plain exported-struct pattern: one
// field per tunable, decoded once at process startup and never
// mutated after the driver starts.
type Config struct {
	ProjectPath string

	// Format is "fastq" or "fasta".
	Format string

	// IsPerFile stamps each cycle's files directly to that cycle
	// instead of demultiplexing by barcode.
	IsPerFile bool

	Cycles []CycleFileConfig

	Primer5 string
	Primer3 string

	MinOverlap      int
	MaxMismatchRate float64

	Tolerance      int
	ShiftWindow    int
	MaxLeading     int
	MaxTrailing    int
	MinRandomized  int
	MaxRandomized  int
	MinMeanQuality float64

	BloomCapacity uint
	BloomFPRate   float64

	// ContamFASTA is an optional reference of known
	// contaminant/adapter/vector sequences. Empty disables the
	// contamination screen.
	ContamFASTA string

	// QueueCapacity bounds the producer/consumer job queue.
	QueueCapacity int

	// MaxThreads caps the thread count N = min(detected logical
	// CPUs, MaxThreads); the driver runs N-1 consumers, at least one.
	MaxThreads int
}

// ReadConfig decodes a Config from the JSON file at path, following
// muscato/utils.ReadConfig's pattern but returning an error instead
// of panicking.
func ReadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("aptaplex: opening config %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("aptaplex: decoding config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills zero-value fields with conservative defaults,
// mirroring muscato/cmd/muscato's checkArgs pattern of applying
// defaults at the call site rather than in the struct itself.
func applyDefaults(cfg *Config) {
	if cfg.Format == "" {
		cfg.Format = "fastq"
	}
	if cfg.MinOverlap == 0 {
		cfg.MinOverlap = 10
	}
	if cfg.MaxMismatchRate == 0 {
		cfg.MaxMismatchRate = 0.1
	}
	if cfg.Tolerance == 0 {
		cfg.Tolerance = 2
	}
	if cfg.MaxLeading == 0 {
		cfg.MaxLeading = 30
	}
	if cfg.MaxTrailing == 0 {
		cfg.MaxTrailing = 30
	}
	if cfg.MaxRandomized == 0 {
		cfg.MaxRandomized = 1 << 20
	}
	if cfg.MinMeanQuality == 0 {
		cfg.MinMeanQuality = 20
	}
	if cfg.BloomCapacity == 0 {
		cfg.BloomCapacity = 10 * 1000 * 1000
	}
	if cfg.BloomFPRate == 0 {
		cfg.BloomFPRate = 0.001
	}
	if cfg.QueueCapacity == 0 {
		cfg.QueueCapacity = 1024
	}
	if cfg.MaxThreads == 0 {
		cfg.MaxThreads = 4
	}
}
