// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// caprprofile computes per-aptamer structural-context profiles for
// every aptamer in an experiment's pool and persists them to
// structuredata/id_to_profile.store.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/soumitrakp/aptasuite/capr"
	"github.com/soumitrakp/aptasuite/caprdriver"
	"github.com/soumitrakp/aptasuite/experiment"
	"github.com/soumitrakp/aptasuite/pool"
)

func main() {
	project := flag.String("project", "", "experiment project directory")
	maxThreads := flag.Int("threads", 4, "maximum number of threads; one fewer folding consumers run")
	maxSpan := flag.Int("max-span", capr.DefaultMaxSpan, "maximum base-pair distance and loop size considered")
	tempC := flag.Float64("temp", 37.0, "folding temperature in Celsius")
	bloomCap := flag.Uint("bloom-capacity", 100*1000*1000, "expected number of distinct aptamers, for pool Bloom sizing")
	bloomFP := flag.Float64("bloom-fp-rate", 0.001, "target pool Bloom filter false-positive rate")
	flag.Parse()

	logger := log.New(os.Stderr, "caprprofile: ", log.LstdFlags)

	if err := run(logger, *project, *maxThreads, *maxSpan, *tempC, *bloomCap, *bloomFP); err != nil {
		logger.Fatal(err)
	}
}

func run(logger *log.Logger, project string, maxThreads, maxSpan int, tempC float64, bloomCap uint, bloomFP float64) error {
	if project == "" {
		return fmt.Errorf("caprprofile: -project is required")
	}

	exp, err := experiment.Open(project, pool.Options{BloomCapacity: bloomCap, BloomFPRate: bloomFP})
	if err != nil {
		return fmt.Errorf("caprprofile: opening experiment: %w", err)
	}
	defer exp.Close()

	structDir := filepath.Join(project, "structuredata")
	if err := os.MkdirAll(structDir, 0o755); err != nil {
		return fmt.Errorf("caprprofile: creating structuredata: %w", err)
	}
	profiles, err := caprdriver.OpenProfileStore(structDir)
	if err != nil {
		return err
	}
	defer profiles.Close()

	d := caprdriver.New(logger, exp.Pool, profiles, caprdriver.Options{
		MaxThreads: maxThreads,
		Engine:     capr.Options{MaxSpan: maxSpan, TemperatureC: tempC},
	})

	result, err := d.Run()
	if err != nil {
		return err
	}

	logger.Printf("run %s: folded %d aptamers", result.RunID, result.Processed)
	return nil
}
