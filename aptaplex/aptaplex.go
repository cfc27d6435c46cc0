// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package aptaplex implements the paired-end demultiplexing driver:
// a single producer pairs forward/reverse input by file and index;
// N-1 consumers stitch, demultiplex and contamination-screen each
// read; a single registrar performs all pool/cycle registration so
// concurrent consumers never race to register the same sequence.
package aptaplex

import (
	"fmt"
	"io"
	"log"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/soumitrakp/aptasuite/contam"
	"github.com/soumitrakp/aptasuite/cycle"
	"github.com/soumitrakp/aptasuite/demux"
	"github.com/soumitrakp/aptasuite/experiment"
	"github.com/soumitrakp/aptasuite/fastx"
	"github.com/soumitrakp/aptasuite/read"
	"github.com/soumitrakp/aptasuite/stitch"
)

// job is one unit of producer→consumer work. pill is the poison-pill
// sentinel: a consumer that dequeues a pill re-enqueues it (so the
// next consumer also terminates) and exits.
type job struct {
	r    *read.Read
	pill bool
}

// Result is the outcome of one AptaPlex run: TotalReads counts the
// reads that passed stitching and classification and reached the
// registrar (reads rejected earlier appear only in the histogram),
// and Histogram counts rejection reasons. RunID correlates this run's
// log lines across consumers, the way a trace ID correlates spans.
type Result struct {
	RunID      string
	TotalReads uint64
	Histogram  map[string]int
}

// Driver runs one AptaPlex pass over a Config's input files into an
// Experiment's pool and cycles.
type Driver struct {
	log *log.Logger
	exp *experiment.Experiment
	cfg *Config

	screener *contam.Screener

	mu        sync.Mutex
	histogram map[string]int
	total     uint64
}

// New builds a Driver. logger must not be nil; it is injected rather
// than a package-level singleton so callers control destination and
// format.
func New(logger *log.Logger, exp *experiment.Experiment, cfg *Config) (*Driver, error) {
	d := &Driver{log: logger, exp: exp, cfg: cfg, histogram: make(map[string]int)}
	if cfg.ContamFASTA != "" {
		s, err := contam.Open(cfg.ContamFASTA)
		if err != nil {
			return nil, fmt.Errorf("aptaplex: opening contamination reference: %w", err)
		}
		d.screener = s
	}
	return d, nil
}

// Close releases the optional contamination screen.
func (d *Driver) Close() error {
	if d.screener != nil {
		return d.screener.Close()
	}
	return nil
}

func (d *Driver) reject(reason string) {
	d.mu.Lock()
	d.histogram[reason]++
	d.mu.Unlock()
}

// consumerCount returns N-1, where N is the minimum of detected
// logical CPUs and the configured cap, floored so there is always at
// least one consumer.
func (d *Driver) consumerCount() int {
	n := runtime.NumCPU()
	if d.cfg.MaxThreads > 0 && d.cfg.MaxThreads < n {
		n = d.cfg.MaxThreads
	}
	if n < 2 {
		n = 2
	}
	return n - 1
}

// Run executes one full AptaPlex pass and returns the aggregate
// result. It opens (or reuses) one cycle per configured
// CycleFileConfig before starting the worker pools.
func (d *Driver) Run() (Result, error) {
	runID := uuid.New().String()
	d.log.Printf("run %s: starting", runID)

	cycles := make(map[string]*cycle.Cycle, len(d.cfg.Cycles))
	var barcodes []demux.Barcode
	for _, cfc := range d.cfg.Cycles {
		c, err := d.exp.CycleByRoundName(cfc.Round, cfc.Name, cycle.DefaultOptions)
		if err != nil {
			return Result{}, fmt.Errorf("aptaplex: opening cycle %s: %w", cfc.Name, err)
		}
		cycles[cfc.Name] = c
		if cfc.Barcode5 != "" || cfc.Barcode3 != "" {
			barcodes = append(barcodes, demux.Barcode{CycleName: cfc.Name, Barcode5: cfc.Barcode5, Barcode3: cfc.Barcode3})
		}
	}

	demuxOpts := demux.Options{
		Primer5:        d.cfg.Primer5,
		Primer3:        d.cfg.Primer3,
		Tolerance:      d.cfg.Tolerance,
		ShiftWindow:    d.cfg.ShiftWindow,
		MaxLeading:     d.cfg.MaxLeading,
		MaxTrailing:    d.cfg.MaxTrailing,
		MinRandomized:  d.cfg.MinRandomized,
		MaxRandomized:  d.cfg.MaxRandomized,
		MinMeanQuality: d.cfg.MinMeanQuality,
	}
	var matcher *demux.Matcher
	if d.cfg.IsPerFile {
		matcher = demux.NewMatcher(demuxOpts, nil)
	} else {
		matcher = demux.NewMatcher(demuxOpts, barcodes)
	}

	stitchOpts := stitch.Options{MinOverlap: d.cfg.MinOverlap, MaxMismatchRate: d.cfg.MaxMismatchRate}

	jobs := make(chan *job, d.cfg.QueueCapacity)
	results := make(chan *read.Read, d.cfg.QueueCapacity)

	n := d.consumerCount()
	d.log.Printf("starting %d consumers", n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go d.consume(jobs, results, matcher, stitchOpts, &wg)
	}

	registrarDone := make(chan struct{})
	go d.registrar(results, cycles, registrarDone)

	if err := d.produce(jobs); err != nil {
		return Result{}, err
	}

	wg.Wait()
	close(results)
	<-registrarDone

	d.log.Printf("processed %d reads", atomic.LoadUint64(&d.total))
	d.mu.Lock()
	histCopy := make(map[string]int, len(d.histogram))
	for k, v := range d.histogram {
		histCopy[k] = v
	}
	d.mu.Unlock()

	return Result{RunID: runID, TotalReads: atomic.LoadUint64(&d.total), Histogram: histCopy}, nil
}

// consume is one consumer goroutine: stitch (if paired), classify,
// screen for contamination, and hand the fully-classified read to
// the registrar over results. It never performs registration itself.
func (d *Driver) consume(jobs chan *job, results chan<- *read.Read, matcher *demux.Matcher, stitchOpts stitch.Options, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		j := <-jobs
		if j.pill {
			jobs <- j
			return
		}
		rd := j.r

		if rd.Reverse != nil {
			if !stitch.Stitch(rd, stitchOpts) {
				d.reject(rd.RejectReason)
				continue
			}
		} else {
			rd.Stitched = rd.Forward
			rd.StitchedQual = rd.ForwardQual
		}

		if !matcher.Classify(rd) {
			d.reject(rd.RejectReason)
			continue
		}

		if d.screener != nil {
			found, err := d.screener.Screen(rd.Stitched)
			if err != nil {
				d.reject("io_error")
				continue
			}
			rd.Contaminated = found
		}

		results <- rd
	}
}

// registrar is the sole writer of pool/cycle state: a single
// goroutine reading one results channel, so two concurrent consumers
// can never race to register the same sequence. Arrival order on
// results is set by whichever consumer finishes stitching/classifying
// a read first, not by producer order, so ids are not guaranteed
// stable across repeated runs over the same input — only uniqueness
// and single-writer safety are guaranteed.
func (d *Driver) registrar(results <-chan *read.Read, cycles map[string]*cycle.Cycle, done chan<- struct{}) {
	defer close(done)
	for rd := range results {
		atomic.AddUint64(&d.total, 1)

		c, ok := cycles[rd.CycleName]
		if !ok {
			d.reject("record_malformed")
			continue
		}
		if _, err := c.Add(d.exp.Pool, rd.Stitched, rd.Primer5Trim, rd.Primer3Trim); err != nil {
			d.reject("record_malformed")
			continue
		}
	}
}

// produce is the single producer: it iterates each configured
// cycle's input files in order, pairs forward/reverse by index, and
// enqueues into jobs. End of input enqueues one poison pill.
func (d *Driver) produce(jobs chan<- *job) error {
	format, err := fastx.ParseFormat(d.cfg.Format)
	if err != nil {
		return err
	}

	for _, cfc := range d.cfg.Cycles {
		if err := d.produceFile(jobs, cfc, format); err != nil {
			return err
		}
	}

	jobs <- &job{pill: true}
	return nil
}

func (d *Driver) produceFile(jobs chan<- *job, cfc CycleFileConfig, format fastx.Format) error {
	fwd, err := fastx.Open(cfc.Forward, format)
	if err != nil {
		return fmt.Errorf("aptaplex: %w", err)
	}
	defer fwd.Close()

	var rev fastx.Reader
	if cfc.Reverse != "" {
		rev, err = fastx.Open(cfc.Reverse, format)
		if err != nil {
			return fmt.Errorf("aptaplex: %w", err)
		}
		defer rev.Close()
	}

	for {
		fr, err := fwd.NextRead()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("aptaplex: reading %s: %w", cfc.Forward, err)
		}

		rd := &read.Read{
			Name:        fr.Name,
			Forward:     fr.Forward,
			ForwardQual: fr.ForwardQual,
		}
		if d.cfg.IsPerFile {
			rd.CycleName = cfc.Name
		}

		if rev != nil {
			rr, err := rev.NextRead()
			if err == io.EOF {
				return fmt.Errorf("aptaplex: %s has fewer records than %s", cfc.Reverse, cfc.Forward)
			}
			if err != nil {
				return fmt.Errorf("aptaplex: reading %s: %w", cfc.Reverse, err)
			}
			rd.Reverse = rr.Forward
			rd.ReverseQual = rr.ForwardQual
		}

		jobs <- &job{r: rd}
	}

	if rev != nil {
		if _, err := rev.NextRead(); err != io.EOF {
			return fmt.Errorf("aptaplex: %s has more records than %s", cfc.Reverse, cfc.Forward)
		}
	}

	return nil
}
