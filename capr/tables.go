// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package capr

import "math"

// Nucleotide codes: A=1, C=2, G=3, U=4, with T mapped to U. 0 is
// reserved for "unknown".
const (
	baseA = 1
	baseC = 2
	baseG = 3
	baseU = 4
)

func encodeBase(b byte) int {
	switch b {
	case 'A', 'a':
		return baseA
	case 'C', 'c':
		return baseC
	case 'G', 'g':
		return baseG
	case 'U', 'u', 'T', 't':
		return baseU
	default:
		return 0
	}
}

// canPair reports whether bases a and b (encoded per encodeBase) form
// a Watson-Crick or wobble pair, the set of pairs recognized by the
// stacking/hairpin/interior tables below.
func canPair(a, b int) bool {
	switch {
	case a == baseA && b == baseU, a == baseU && b == baseA:
		return true
	case a == baseG && b == baseC, a == baseC && b == baseG:
		return true
	case a == baseG && b == baseU, a == baseU && b == baseG:
		return true
	default:
		return false
	}
}

// minHairpin is the fewest unpaired bases tolerated in a hairpin
// loop (j - i - 1), the conventional RNA folding floor.
const minHairpin = 3

// gasConstant is in kcal/(mol·K), matching the scaling convention
// get_scaled_params uses for rescaling enthalpy/entropy tables.
const gasConstant = 0.0019872041

// rt returns RT at the given Celsius temperature, used to convert
// the free-energy tables below into Boltzmann factors.
func rt(tempC float64) float64 {
	return gasConstant * (273.15 + tempC)
}

// boltzmann converts a free energy in kcal/mol to a dimensionless
// Boltzmann factor at the given RT.
func boltzmann(dG, rt float64) float64 {
	return math.Exp(-dG / rt)
}

// stackEnergy is a reduced nearest-neighbor stacking table (kcal/mol,
// favorable/negative), indexed by the two encoded bases of the outer
// (enclosing) pair of the stack; the inner pair does not enter the
// lookup. Sized and shaped after
// vrna_param_t.stack in the bebop-poly MFE port, but populated with
// representative, not full NNDB, values.
var stackEnergy = map[[2]int]float64{
	{baseG, baseC}: -3.3,
	{baseC, baseG}: -3.4,
	{baseG, baseU}: -2.1,
	{baseU, baseG}: -2.1,
	{baseA, baseU}: -2.2,
	{baseU, baseA}: -2.0,
}

func pairStack(a, b int) float64 {
	if e, ok := stackEnergy[[2]int{a, b}]; ok {
		return e
	}
	return -1.0
}

// hairpinInit gives the loop-initiation penalty (kcal/mol) by loop
// length for small loops, mirroring vrna_param_t.hairpin's
// fixed-length table; lengths beyond the table use a
// Jacobson-Stockmayer log-length extrapolation from the largest
// tabulated entry, the standard NNDB convention for untabulated loop
// sizes.
var hairpinInit = [31]float64{
	0: 10, 1: 10, 2: 10, // sterically impossible, kept finite not infinite
	3: 5.4, 4: 5.6, 5: 5.7, 6: 5.4, 7: 6.0, 8: 5.5, 9: 6.4,
	10: 6.5, 11: 6.6, 12: 6.7, 13: 6.8, 14: 6.9, 15: 6.9,
	16: 7.0, 17: 7.0, 18: 7.1, 19: 7.1, 20: 7.1, 21: 7.2,
	22: 7.2, 23: 7.3, 24: 7.3, 25: 7.3, 26: 7.4, 27: 7.4,
	28: 7.4, 29: 7.5, 30: 7.5,
}

func loopInitExtrapolate(table [31]float64, length int) float64 {
	if length <= 30 {
		return table[length]
	}
	return table[30] + 1.75*gasConstant*(310.15)*math.Log(float64(length)/30.0)
}

// bulgeInit mirrors vrna_param_t.bulge.
var bulgeInit = [31]float64{
	0: 0, 1: 3.8, 2: 2.8, 3: 3.2, 4: 3.6, 5: 4.0, 6: 4.4,
	7: 4.6, 8: 4.7, 9: 4.8, 10: 4.9, 11: 5.0, 12: 5.1,
	13: 5.2, 14: 5.3, 15: 5.4, 16: 5.4, 17: 5.5, 18: 5.5,
	19: 5.6, 20: 5.6, 21: 5.7, 22: 5.7, 23: 5.8, 24: 5.8,
	25: 5.8, 26: 5.9, 27: 5.9, 28: 6.0, 29: 6.0, 30: 6.0,
}

// interiorInit mirrors vrna_param_t.internal_loop.
var interiorInit = [31]float64{
	0: 0, 1: 0, 2: 0.8, 3: 1.0, 4: 1.5, 5: 1.8, 6: 2.0,
	7: 2.2, 8: 2.3, 9: 2.4, 10: 2.5, 11: 2.6, 12: 2.7,
	13: 2.8, 14: 2.8, 15: 2.9, 16: 2.9, 17: 3.0, 18: 3.0,
	19: 3.1, 20: 3.1, 21: 3.2, 22: 3.2, 23: 3.2, 24: 3.3,
	25: 3.3, 26: 3.3, 27: 3.4, 28: 3.4, 29: 3.4, 30: 3.5,
}

// asymmetryPenalty mirrors the ninio asymmetry correction applied to
// interior loops whose two sides differ in length.
func asymmetryPenalty(sideA, sideB int) float64 {
	d := sideA - sideB
	if d < 0 {
		d = -d
	}
	const perUnit = 0.6
	const max = 3.0
	p := float64(d) * perUnit
	if p > max {
		p = max
	}
	return p
}

