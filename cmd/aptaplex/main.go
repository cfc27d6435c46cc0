// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// aptaplex demultiplexes and registers raw sequencing reads into an
// experiment's pool and cycles.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/soumitrakp/aptasuite/aptaplex"
	"github.com/soumitrakp/aptasuite/experiment"
	"github.com/soumitrakp/aptasuite/pool"
)

func main() {
	config := flag.String("config", "", "path to a JSON AptaPlex configuration file")
	bloomCap := flag.Uint("bloom-capacity", 100*1000*1000, "expected number of distinct aptamers, for pool Bloom sizing")
	bloomFP := flag.Float64("bloom-fp-rate", 0.001, "target pool Bloom filter false-positive rate")
	flag.Parse()

	logger := log.New(os.Stderr, "aptaplex: ", log.LstdFlags)

	if err := run(logger, *config, *bloomCap, *bloomFP); err != nil {
		logger.Fatal(err)
	}
}

func run(logger *log.Logger, configPath string, bloomCap uint, bloomFP float64) error {
	if configPath == "" {
		return fmt.Errorf("aptaplex: -config is required")
	}

	cfg, err := aptaplex.ReadConfig(configPath)
	if err != nil {
		return err
	}

	exp, err := experiment.Open(cfg.ProjectPath, pool.Options{BloomCapacity: bloomCap, BloomFPRate: bloomFP})
	if err != nil {
		return fmt.Errorf("aptaplex: opening experiment: %w", err)
	}
	defer exp.Close()

	d, err := aptaplex.New(logger, exp, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	result, err := d.Run()
	if err != nil {
		return err
	}

	logger.Printf("run %s: processed %d reads", result.RunID, result.TotalReads)
	for reason, n := range result.Histogram {
		logger.Printf("  %s: %d", reason, n)
	}
	return nil
}
