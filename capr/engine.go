// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package capr computes per-base structural-context probabilities for
// short nucleotide sequences: for every position, the probability the
// base is part of a Bulge, Exterior loop, Hairpin loop, Interior
// loop, Multi-branch loop or Stem, summing to 1 within 1e-6.
//
// The engine is a reduced McCaskill-style partition-function DP,
// banded by MaxSpan on base-pair distance. The thermodynamic tables
// in tables.go are a small representative set, not a full NNDB port,
// and — a further, documented reduction — the engine does not model
// multi-branch (multi-loop) secondary structures: aptamers are short,
// typically single-hairpin sequences, so the Multi-branch context is
// carried in the output but is always reported as zero probability
// mass. See DESIGN.md.
package capr

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// DefaultMaxSpan is the MaxSpan used when Options.MaxSpan is zero.
// MaxSpan bounds both the maximum base-pair distance (j-i) the
// engine will consider and the maximum interior/bulge/hairpin loop
// size.
const DefaultMaxSpan = 100

// Context names the six structural contexts, in the fixed
// B,E,H,I,M,S column order used by Profile.
type Context int

const (
	Bulge Context = iota
	Exterior
	Hairpin
	Interior
	Multi
	Stem
	numContexts
)

func (c Context) String() string {
	switch c {
	case Bulge:
		return "B"
	case Exterior:
		return "E"
	case Hairpin:
		return "H"
	case Interior:
		return "I"
	case Multi:
		return "M"
	case Stem:
		return "S"
	default:
		return "?"
	}
}

// Profile is the per-position structural-context distribution for
// one sequence: Profile[c][k] is the probability base k is in
// context c. Rows are indexed by Context, columns by 0-based
// sequence position.
type Profile [][]float64

// Options configures the engine's thermodynamic model.
type Options struct {
	// MaxSpan bounds base-pair distance and loop size. Zero uses
	// DefaultMaxSpan.
	MaxSpan int
	// TemperatureC is the folding temperature in Celsius. Zero uses
	// 37.0, the Turner-table reference temperature.
	TemperatureC float64
}

func (o Options) withDefaults() Options {
	if o.MaxSpan <= 0 {
		o.MaxSpan = DefaultMaxSpan
	}
	if o.TemperatureC == 0 {
		o.TemperatureC = 37.0
	}
	return o
}

// Engine holds the reusable work arrays a folding consumer owns: the
// triangular DP tables are sized to the largest sequence the engine
// has processed and reused across calls to avoid reallocating per
// read.
type Engine struct {
	opts Options
	rt   float64

	n  int
	zb []float64 // inside, paired at (i,j): zb[i*n+j]
	z  []float64 // inside, exterior-style over [i,j]: z[i*n+j]
	zo []float64 // outside, paired at (i,j): zo[i*n+j]
}

// New builds an Engine with the given options.
func New(opts Options) *Engine {
	return &Engine{opts: opts.withDefaults(), rt: rt(opts.withDefaults().TemperatureC)}
}

func (e *Engine) grow(n int) {
	if n <= e.n {
		return
	}
	e.n = n
	e.zb = make([]float64, n*n)
	e.z = make([]float64, n*n)
	e.zo = make([]float64, n*n)
}

func (e *Engine) idx(i, j int) int { return i*e.n + j }

// Fold computes the structural-context Profile for seq (ASCII
// A/C/G/U/T, case-insensitive; T is read as U). It is safe to call
// repeatedly on an Engine from a single goroutine; it is NOT safe to
// call concurrently on the same Engine.
func (e *Engine) Fold(seq []byte) (Profile, error) {
	l := len(seq)
	if l == 0 {
		return Profile{}, fmt.Errorf("capr: empty sequence")
	}
	e.grow(l)
	n := l
	maxSpan := e.opts.MaxSpan
	if maxSpan > n {
		maxSpan = n
	}

	code := make([]int, l)
	for i, b := range seq {
		code[i] = encodeBase(b)
	}

	// The arrays keep the stride e.n of the largest sequence seen so
	// far, which idx uses, so they are used whole rather than cut to n*n.
	zb := e.zb
	z := e.z
	zo := e.zo
	for i := range zb {
		zb[i] = 0
		z[i] = 0
		zo[i] = 0
	}

	// Inside pass. z[i][j] for i>j is the empty-region base case 1;
	// represented implicitly by treating out-of-range reads as 1.
	zAt := func(i, j int) float64 {
		if i > j {
			return 1
		}
		return z[e.idx(i, j)]
	}

	for span := 0; span < n; span++ {
		for i := 0; i+span < n; i++ {
			j := i + span
			// zb[i][j]: requires i,j to pair and span within band.
			if span >= minHairpin+1 && span <= maxSpan && canPair(code[i], code[j]) {
				loopLen := span - 1
				acc := boltzmann(loopInitExtrapolate(hairpinInit, loopLen), e.rt)
				for p := i + 1; p < j; p++ {
					for q := j - 1; q > p; q-- {
						left := p - i - 1
						right := j - q - 1
						if left+right > 30 {
							continue
						}
						if !canPair(code[p], code[q]) {
							continue
						}
						var dG float64
						switch {
						case left == 0 && right == 0:
							dG = pairStack(code[i], code[j])
						case left == 0 || right == 0:
							dG = loopInitExtrapolate(bulgeInit, left+right)
						default:
							dG = loopInitExtrapolate(interiorInit, left+right) + asymmetryPenalty(left, right)
						}
						acc += boltzmann(dG, e.rt) * zb[e.idx(p, q)]
					}
				}
				zb[e.idx(i, j)] = acc
			}

			// z[i][j]: exterior-style chain of 0+ helices over
			// [i,j], classified by i's fate: unpaired, or paired
			// with some k in (i,j].
			acc := zAt(i+1, j)
			for k := i + 1; k <= j; k++ {
				if k-i > maxSpan {
					continue
				}
				bp := zb[e.idx(i, k)]
				if bp == 0 {
					continue
				}
				acc += bp * zAt(k+1, j)
			}
			z[e.idx(i, j)] = acc
		}
	}

	total := zAt(0, n-1)
	if total <= 0 {
		total = 1
	}

	// Outside pass, largest span to smallest: zo[i][j] accumulates
	// the Boltzmann weight of every way to complete the molecule
	// around a paired (i,j), via the two terms symmetric to the
	// inside zb/z recursions (exterior placement and single-pair
	// interior/bulge/stack nesting). No multi-branch term: see the
	// package doc's documented simplification.
	for span := n - 1; span >= 0; span-- {
		for i := 0; i+span < n; i++ {
			j := i + span
			if span < minHairpin+1 || span > maxSpan || !canPair(code[i], code[j]) {
				continue
			}
			acc := zAt(0, i-1) * zAt(j+1, n-1)
			for p := 0; p < i; p++ {
				for q := j + 1; q < n; q++ {
					if q-p > maxSpan || !canPair(code[p], code[q]) {
						continue
					}
					left := i - p - 1
					right := q - j - 1
					if left+right > 30 {
						continue
					}
					var dG float64
					switch {
					case left == 0 && right == 0:
						dG = pairStack(code[p], code[q])
					case left == 0 || right == 0:
						dG = loopInitExtrapolate(bulgeInit, left+right)
					default:
						dG = loopInitExtrapolate(interiorInit, left+right) + asymmetryPenalty(left, right)
					}
					// (i,j) is the sole pair enclosed by (p,q): no
					// extra factor for the loop-region nucleotides
					// themselves, matching the inside zb recursion,
					// which weights them only by dG above.
					acc += boltzmann(dG, e.rt) * zo[e.idx(p, q)]
				}
			}
			zo[e.idx(i, j)] = acc
		}
	}

	prof := newProfile(int(numContexts), n)

	// Stem: marginal pairing probability, summed over all partners.
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			a, b := i, j
			if a > b {
				a, b = b, a
			}
			if b-a > maxSpan || b-a < minHairpin+1 || !canPair(code[a], code[b]) {
				continue
			}
			p := zb[e.idx(a, b)] * zo[e.idx(a, b)] / total
			prof[Stem][i] += p
		}
	}

	// Exterior: k unpaired and not enclosed by anything.
	for k := 0; k < n; k++ {
		prof[Exterior][k] = zAt(0, k-1) * zAt(k+1, n-1) / total
	}

	// Hairpin: k strictly inside a pure hairpin-closing pair (i,j).
	for i := 0; i < n; i++ {
		for j := i + minHairpin + 1; j < n && j-i <= maxSpan; j++ {
			if !canPair(code[i], code[j]) {
				continue
			}
			w := zo[e.idx(i, j)] * boltzmann(loopInitExtrapolate(hairpinInit, j-i-1), e.rt) / total
			if w == 0 {
				continue
			}
			for k := i + 1; k < j; k++ {
				prof[Hairpin][k] += w
			}
		}
	}

	// Bulge/Interior: k in the gap between an enclosing pair (i,j)
	// and its single enclosed pair (p,q).
	for i := 0; i < n; i++ {
		for j := i + minHairpin + 1; j < n && j-i <= maxSpan; j++ {
			if !canPair(code[i], code[j]) {
				continue
			}
			zoij := zo[e.idx(i, j)]
			if zoij == 0 {
				continue
			}
			for p := i + 1; p < j; p++ {
				for q := j - 1; q > p; q-- {
					left := p - i - 1
					right := j - q - 1
					if left+right == 0 || left+right > 30 {
						continue
					}
					if !canPair(code[p], code[q]) {
						continue
					}
					var dG float64
					ctx := Interior
					switch {
					case left == 0 || right == 0:
						dG = loopInitExtrapolate(bulgeInit, left+right)
						ctx = Bulge
					default:
						dG = loopInitExtrapolate(interiorInit, left+right) + asymmetryPenalty(left, right)
					}
					w := zoij * boltzmann(dG, e.rt) * zb[e.idx(p, q)] / total
					if w == 0 {
						continue
					}
					for k := i + 1; k < p; k++ {
						prof[ctx][k] += w
					}
					for k := q + 1; k < j; k++ {
						prof[ctx][k] += w
					}
				}
			}
		}
	}

	// Multi: not modeled (see package doc); rows already zero.

	normalize(prof)
	return prof, nil
}

func newProfile(rows, cols int) Profile {
	p := make(Profile, rows)
	for i := range p {
		p[i] = make([]float64, cols)
	}
	return p
}

// normalize rescales each column so its six context probabilities
// sum to exactly 1, folding any residual mass (from the
// MaxSpan/loop-size truncations and the no-multiloop simplification)
// into Exterior, the context for "not enclosed by any modeled
// pair" — the natural home for probability the reduced model cannot
// otherwise place.
func normalize(p Profile) {
	if len(p) == 0 || len(p[0]) == 0 {
		return
	}
	cols := len(p[0])
	column := make([]float64, len(p))
	for k := 0; k < cols; k++ {
		for c := range p {
			column[c] = p[c][k]
		}
		sum := floats.Sum(column)
		if sum > 1 {
			// Clamp numerical overshoot from the truncated band.
			for c := range p {
				p[c][k] /= sum
			}
			continue
		}
		p[Exterior][k] += 1 - sum
	}
}
