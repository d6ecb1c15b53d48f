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
	"sort"
	"strconv"

	"golang.org/x/exp/constraints"

	"github.com/exascience/decovar/utils"
	"github.com/exascience/decovar/vcf"
)

// The INFO fields of length-binned records.
var (
	RefbinIndexes = utils.Intern("REFBIN_INDEXES")
	RefbinMaxLen  = utils.Intern("REFBIN_MAXLEN")
	AltbinIndexes = utils.Intern("ALTBIN_INDEXES")
	AltbinMinLen  = utils.Intern("ALTBIN_MINLEN")
)

type alleleLength struct {
	length, index int
}

// newBinScaffold creates the output record that the binner reuses for
// every emitted cut. Emitting writes through before the next cut is
// computed, so a single scaffold suffices.
func newBinScaffold(nSamples int) *vcf.Variant {
	gt := new(vcf.Column[string])
	gt.Scaffold(nSamples, 1)
	return &vcf.Variant{
		Ref: ".",
		Alt: []string{".", "."},
		Info: utils.SmallMap{
			{Key: RefbinMaxLen, Value: 0},
			{Key: AltbinMinLen, Value: 0},
			{Key: RefbinIndexes, Value: []int32(nil)},
			{Key: AltbinIndexes, Value: []int32(nil)},
		},
		Genotypes: utils.SmallMap{
			{Key: vcf.GT, Value: gt},
		},
	}
}

// establishPLs ensures the scaffold carries a PL column of the same
// width as the input record's, shaped nSamples x 3.
func establishPLs[T constraints.Signed](out *vcf.Variant, nSamples int) *vcf.Column[T] {
	if value, ok := out.Genotypes.Get(vcf.PL); ok {
		if col, ok := value.(*vcf.Column[T]); ok {
			col.Scaffold(nSamples, 3)
			return col
		}
	}
	col := new(vcf.Column[T])
	col.Scaffold(nSamples, 3)
	out.Genotypes.Set(vcf.PL, col)
	return col
}

func minPair[T constraints.Signed](in []T, x, y int32) T {
	a, b := int(x), int(y)
	if a > b {
		a, b = b, a
	}
	return in[vcf.GenotypeFormula(a, b)]
}

// minWithin returns the minimum PL over all unordered allele pairs
// drawn from one bin, homozygous pairs included.
func minWithin[T constraints.Signed](in []T, bin []int32) T {
	result := minPair(in, bin[0], bin[0])
	for _, b := range bin {
		for _, a := range bin {
			if v := minPair(in, a, b); v < result {
				result = v
			}
		}
	}
	return result
}

// minAcross returns the minimum PL over all allele pairs with one
// endpoint in each bin.
func minAcross[T constraints.Signed](in []T, refs, alts []int32) T {
	result := minPair(in, refs[0], alts[0])
	for _, b := range alts {
		for _, a := range refs {
			if v := minPair(in, a, b); v < result {
				result = v
			}
		}
	}
	return result
}

var binGTs = [3]string{"0/0", "0/1", "1/1"}

// binPLs fills the scaffold's PL and GT columns for one cut: the three
// output PLs are the minima over the REF-bin pairs, the cross-bin
// pairs, and the ALT-bin pairs, and GT is the argmin (lowest index on
// a tie).
func binPLs[T constraints.Signed](out *vcf.Variant, pls *vcf.Column[T], refbin, altbin []int32, nSamples, nAlts, no int) error {
	if len(pls.Data) != nSamples*vcf.GenotypeCount(nAlts) {
		return vcf.NewError(vcf.DiploidOrCardinalityMismatch, no,
			"field PL: every sample must be diploid and must contain the full number of PL values (no single '.' placeholder allowed)")
	}

	outPLs := establishPLs[T](out, nSamples)
	gtValue, _ := out.Genotypes.Get(vcf.GT)
	gts := gtValue.(*vcf.Column[string])

	for j := 0; j < nSamples; j++ {
		in := pls.Row(j)
		o := outPLs.Row(j)

		o[0] = minWithin(in, refbin)
		o[1] = minAcross(in, refbin, altbin)
		o[2] = minWithin(in, altbin)

		k := 0
		if o[1] < o[k] {
			k = 1
		}
		if o[2] < o[k] {
			k = 2
		}
		gts.Row(j)[0] = binGTs[k]
	}
	return nil
}

// BinByLength returns a pipeline transform that collapses every
// n-allelic record into up to n-1 biallelic records. The alleles, REF
// included, are sorted by length; each cut point pools the shorter
// group into a synthetic REF bin and the longer group into a synthetic
// ALT bin, with PL and GT recomputed for the two bins. Cuts between
// alleles of equal length are skipped unless same-length splits are
// enabled. Records with fewer than two ALT alleles or without PL pass
// through unchanged.
func BinByLength(opts *Options) vcf.Transform {
	return func(hdr *vcf.Header) vcf.VariantTransform {
		if !opts.BinByLength {
			return nil
		}
		nSamples := hdr.NSamples()
		out := newBinScaffold(nSamples)
		var lengths []alleleLength
		var refbin, altbin []int32
		return func(no int, v *vcf.Variant, emit vcf.Emit) error {
			nAlts := v.NAlts()
			nAlleles := nAlts + 1

			if nAlts <= 1 {
				return emit(no, v)
			}
			plValue, ok := v.Genotypes.Get(vcf.PL)
			if !ok {
				return emit(no, v)
			}

			lengths = lengths[:0]
			lengths = append(lengths, alleleLength{len(v.Ref), 0})
			for i, alt := range v.Alt {
				lengths = append(lengths, alleleLength{len(alt), i + 1})
			}
			sort.Slice(lengths, func(x, y int) bool {
				if lengths[x].length != lengths[y].length {
					return lengths[x].length < lengths[y].length
				}
				return lengths[x].index < lengths[y].index
			})

			out.Chrom = v.Chrom
			out.Pos = v.Pos

			for i := 0; i < nAlleles-1; i++ {
				refbinMax := lengths[i].length
				altbinMin := lengths[i+1].length

				// lengths shall not be present in both groups
				if refbinMax == altbinMin && !opts.SameLengthSplits {
					continue
				}

				if missingID(v.ID) {
					out.ID = nil
				} else {
					out.ID = suffixID(v.ID, "_div_"+strconv.Itoa(i))
				}

				refbin = refbin[:0]
				for _, l := range lengths[:i+1] {
					refbin = append(refbin, int32(l.index))
				}
				altbin = altbin[:0]
				for _, l := range lengths[i+1:] {
					altbin = append(altbin, int32(l.index))
				}

				out.Info.Set(RefbinMaxLen, refbinMax)
				out.Info.Set(AltbinMinLen, altbinMin)
				out.Info.Set(RefbinIndexes, refbin)
				out.Info.Set(AltbinIndexes, altbin)

				var err error
				switch pls := plValue.(type) {
				case *vcf.Column[int8]:
					err = binPLs(out, pls, refbin, altbin, nSamples, nAlts, no)
				case *vcf.Column[int16]:
					err = binPLs(out, pls, refbin, altbin, nSamples, nAlts, no)
				case *vcf.Column[int32]:
					err = binPLs(out, pls, refbin, altbin, nSamples, nAlts, no)
				default:
					err = vcf.NewError(vcf.PLTypeMismatch, no, "PL field was in wrong state")
				}
				if err != nil {
					return err
				}

				if err := emit(no, out); err != nil {
					return err
				}
			}
			return nil
		}
	}
}
