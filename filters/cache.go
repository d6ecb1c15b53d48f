// deCoVar: a tool for reducing allele complexity in VCF/BCF files.
// Copyright (c) 2023 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/decovar/blob/master/LICENSE.txt>.

package filters

import (
	"log"

	"github.com/bits-and-blooms/bitset"

	"github.com/exascience/decovar/vcf"
)

// Options bundles the settings of the allele transformations. The zero
// value disables every transformation.
type Options struct {
	RareAFThreshold  float64 // remove ALT alleles with AF < threshold; 0 disables
	SplitByLength    int     // split records at this allele length; 0 disables
	LocalAlleles     int     // the number of local alleles L; 0 disables
	KeepGlobalFields bool    // keep AD/PL next to LAD/LPL
	TransformAll     bool    // localise records with <= L alleles, too
	BinByLength      bool    // activate length binning
	SameLengthSplits bool    // bin even between alleles of equal length
	Verbose          bool    // per-record diagnostics on the log sink
}

func (opts *Options) log(format string, args ...interface{}) {
	if opts.Verbose {
		log.Printf("[decovar log] "+format, args...)
	}
}

// A filterVector flags the positions of an allele-indexed array that
// are to be removed. Its backing bit set is reused across records.
type filterVector struct {
	bits *bitset.BitSet
	size int
}

func (f *filterVector) reset(size int) {
	if f.bits == nil {
		f.bits = bitset.New(uint(size))
	} else {
		f.bits.ClearAll()
	}
	f.size = size
}

// Len returns the logical length of the filter vector.
func (f *filterVector) Len() int {
	return f.size
}

// Test reports whether position i is flagged for removal.
func (f *filterVector) Test(i int) bool {
	return f.bits.Test(uint(i))
}

func (f *filterVector) set(i int) {
	f.bits.Set(uint(i))
}

func (f *filterVector) setTo(i int, value bool) {
	f.bits.SetTo(uint(i), value)
}

// Ones returns the number of flagged positions.
func (f *filterVector) Ones() int {
	return int(f.bits.Count())
}

func (f *filterVector) any() bool {
	return f.bits.Any()
}

func (f *filterVector) all() bool {
	return f.Ones() == f.size
}

type gtPair struct {
	a, b int
}

// FilterVectors holds the R-, A-, and G-indexed removal flags for the
// record currently being rewritten, plus the reverse of the genotype
// formula. The vectors are cleared-not-freed between records; the
// reverse cache only ever grows.
type FilterVectors struct {
	R, A, G filterVector
	reverse []gtPair
}

// deriveAG fills the A and G filter vectors and the formula reverse
// cache. It must run after the R vector has been computed.
func (fv *FilterVectors) deriveAG(nAlts int) {
	fv.A.reset(nAlts)
	for i := 0; i < nAlts; i++ {
		fv.A.setTo(i, fv.R.Test(i+1))
	}

	gtSize := vcf.GenotypeCount(nAlts)
	fv.G.reset(gtSize)
	for b := 0; b <= nAlts; b++ {
		for a := 0; a <= b; a++ {
			fv.G.setTo(vcf.GenotypeFormula(a, b), fv.R.Test(a) || fv.R.Test(b))
		}
	}

	if len(fv.reverse) < gtSize {
		fv.reverse = append(fv.reverse, make([]gtPair, gtSize-len(fv.reverse))...)
		for b := 0; b <= nAlts; b++ {
			for a := 0; a <= b; a++ {
				fv.reverse[vcf.GenotypeFormula(a, b)] = gtPair{a, b}
			}
		}
	}
}

func (fv *FilterVectors) logVectors(opts *Options) {
	if !opts.Verbose {
		return
	}
	opts.log("filter vector A: %v", fv.A.bits.DumpAsBits())
	opts.log("filter vector R: %v", fv.R.bits.DumpAsBits())
	opts.log("filter vector G: %v", fv.G.bits.DumpAsBits())
}
