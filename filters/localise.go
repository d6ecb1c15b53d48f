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
	"math"
	"sort"

	"golang.org/x/exp/constraints"

	"github.com/exascience/decovar/utils"
	"github.com/exascience/decovar/vcf"
)

// PLToProb converts a phred-scaled genotype likelihood to the
// corresponding probability.
func PLToProb(pl float64) float64 {
	return math.Pow(10.0, pl/-10.0)
}

type alleleProb struct {
	prob  float64
	index int
}

// localiseCache holds the buffers the local-allele projection reuses
// across records: the per-sample allele index table, the probability
// accumulator, and one scratch column per integer width. When AD or PL
// is dropped from a record, its buffers are moved into the scratch
// slot of the matching width instead of being freed.
type localiseCache struct {
	laa   vcf.Column[int32]
	probs []alleleProb
	col8  vcf.Column[int8]
	col16 vcf.Column[int16]
	col32 vcf.Column[int32]
}

// determineLAA fills the cache's laa column with, per sample, the
// indexes of the L alternative alleles most likely to be present in
// that sample, in ascending index order. In pseudo mode all
// alternative alleles are listed verbatim.
func determineLAA[T constraints.Signed](cache *localiseCache, pls *vcf.Column[T], nAlts, nSamples, L, no int, pseudo bool, opts *Options) error {
	if len(pls.Data) != nSamples*vcf.GenotypeCount(nAlts) {
		return vcf.NewError(vcf.DiploidOrCardinalityMismatch, no,
			"field PL: every sample must be diploid and must contain the full number of PL values (no single '.' placeholder allowed)")
	}

	cache.laa.Clear()

	if pseudo {
		for i := 0; i < nSamples; i++ {
			for index := 1; index <= nAlts; index++ {
				cache.laa.Data = append(cache.laa.Data, int32(index))
			}
			cache.laa.Delim = append(cache.laa.Delim, len(cache.laa.Data))
		}
		return nil
	}

	for i := 0; i < nSamples; i++ {
		row := pls.Row(i)

		if cap(cache.probs) < nAlts+1 {
			cache.probs = make([]alleleProb, nAlts+1)
		} else {
			cache.probs = cache.probs[:nAlts+1]
		}
		for k := range cache.probs {
			cache.probs[k] = alleleProb{0, k}
		}

		for b := 0; b <= nAlts; b++ {
			for a := 0; a <= b; a++ {
				p := PLToProb(float64(row[vcf.GenotypeFormula(a, b)]))
				cache.probs[a].prob += p
				cache.probs[b].prob += p
			}
		}

		// sort all but the REF allele by accumulated probability
		tail := cache.probs[1:]
		sort.Slice(tail, func(x, y int) bool { return tail[x].prob > tail[y].prob })

		// re-sort the first L+1 entries by their allele index
		lead := cache.probs[:L+1]
		sort.Slice(lead, func(x, y int) bool { return lead[x].index < lead[y].index })

		// the REF position is not copied; only the next L
		for _, p := range cache.probs[1 : L+1] {
			cache.laa.Data = append(cache.laa.Data, int32(p.index))
		}
		cache.laa.Delim = append(cache.laa.Delim, len(cache.laa.Data))
	}

	opts.log("index map: %v", cache.laa.Data)
	return nil
}

// localiseAD builds the LAD column from AD: per sample the REF depth
// followed by the depths of the sample's local alleles.
func localiseAD[T constraints.Signed](v *vcf.Variant, cache *localiseCache, scratch *vcf.Column[T], ads *vcf.Column[T], nSamples, nAlts int, no int, opts *Options) error {
	if len(ads.Data) != nSamples*(nAlts+1) {
		return vcf.NewError(vcf.DiploidOrCardinalityMismatch, no,
			"field AD: every sample must contain one value per allele (no single '.' placeholder allowed)")
	}

	lad := new(vcf.Column[T])
	*lad, *scratch = *scratch, vcf.Column[T]{}
	lad.Clear()

	for i := 0; i < nSamples; i++ {
		row := ads.Row(i)
		lad.Data = append(lad.Data, row[0]) // the REF depth is always retained
		for _, index := range cache.laa.Row(i) {
			lad.Data = append(lad.Data, row[index])
		}
		lad.Delim = append(lad.Delim, len(lad.Data))
	}

	v.Genotypes = append(v.Genotypes, utils.SmallMapEntry{Key: vcf.LAD, Value: lad})

	if !opts.KeepGlobalFields {
		// salvage the AD buffers, since the field will be removed later
		*scratch = vcf.Column[T]{Data: ads.Data[:0], Delim: ads.Delim[:0]}
	}
	return nil
}

// localisePL builds the LPL column by remapping the triangular PL
// indexes through the sample's LAA row. The LAA row lists only
// alternative alleles, so indexes into it are shifted by one and the
// REF cases are handled separately.
func localisePL[T constraints.Signed](v *vcf.Variant, cache *localiseCache, scratch *vcf.Column[T], pls *vcf.Column[T], nSamples, L int, opts *Options) {
	// the PL cardinality was already checked while determining LAA

	lpl := new(vcf.Column[T])
	*lpl, *scratch = *scratch, vcf.Column[T]{}
	lpl.Scaffold(nSamples, vcf.GenotypeCount(L))

	for i := 0; i < nSamples; i++ {
		laaRow := cache.laa.Row(i)
		pl := pls.Row(i)
		out := lpl.Row(i)

		out[0] = pl[0] // the (0,0) cell; REF is always preserved
		for b := 1; b <= L; b++ {
			out[vcf.GenotypeFormula(0, b)] = pl[vcf.GenotypeFormula(0, int(laaRow[b-1]))]
			for a := 1; a <= b; a++ {
				out[vcf.GenotypeFormula(a, b)] = pl[vcf.GenotypeFormula(int(laaRow[a-1]), int(laaRow[b-1]))]
			}
		}
	}

	v.Genotypes = append(v.Genotypes, utils.SmallMapEntry{Key: vcf.LPL, Value: lpl})

	if !opts.KeepGlobalFields {
		// salvage the PL buffers, since the field will be removed later
		*scratch = vcf.Column[T]{Data: pls.Data[:0], Delim: pls.Delim[:0]}
	}
}

// localiseAlleles adds the LAA, LAD, and LPL fields to a record,
// restricted per sample to the L alleles most likely to be
// non-reference for that sample. The record's global ALT list is not
// altered. In pseudo mode (transform-all), LAA lists all alternative
// alleles so that downstream processors see a uniform schema.
func localiseAlleles(v *vcf.Variant, no int, hdr *vcf.Header, opts *Options, cache *localiseCache, pseudo bool) error {
	nAlts := v.NAlts()
	nSamples := hdr.NSamples()
	L := opts.LocalAlleles
	if pseudo {
		L = nAlts
	}

	for _, key := range []utils.Symbol{vcf.LAA, vcf.LAD, vcf.LGT, vcf.LPL} {
		if _, ok := v.Genotypes.Get(key); ok {
			return vcf.NewError(vcf.FieldAlreadyPresent, no, "cannot add %v field, because %v field already present", *key, *key)
		}
	}

	plValue, ok := v.Genotypes.Get(vcf.PL)
	if !ok {
		return vcf.NewError(vcf.MissingPL, no, "cannot compute localised alleles if PL field is not present")
	}

	var err error
	switch pls := plValue.(type) {
	case *vcf.Column[int8]:
		err = determineLAA(cache, pls, nAlts, nSamples, L, no, pseudo, opts)
	case *vcf.Column[int16]:
		err = determineLAA(cache, pls, nAlts, nSamples, L, no, pseudo, opts)
	case *vcf.Column[int32]:
		err = determineLAA(cache, pls, nAlts, nSamples, L, no, pseudo, opts)
	default:
		return vcf.NewError(vcf.PLTypeMismatch, no, "PL field was in wrong state")
	}
	if err != nil {
		return err
	}

	if adValue, ok := v.Genotypes.Get(vcf.AD); ok {
		switch ads := adValue.(type) {
		case *vcf.Column[int8]:
			err = localiseAD(v, cache, &cache.col8, ads, nSamples, nAlts, no, opts)
		case *vcf.Column[int16]:
			err = localiseAD(v, cache, &cache.col16, ads, nSamples, nAlts, no, opts)
		case *vcf.Column[int32]:
			err = localiseAD(v, cache, &cache.col32, ads, nSamples, nAlts, no, opts)
		default:
			err = vcf.NewError(vcf.ADTypeMismatch, no, "AD field was not a range of integers")
		}
		if err != nil {
			return err
		}
	}

	switch pls := plValue.(type) {
	case *vcf.Column[int8]:
		localisePL(v, cache, &cache.col8, pls, nSamples, L, opts)
	case *vcf.Column[int16]:
		localisePL(v, cache, &cache.col16, pls, nSamples, L, opts)
	case *vcf.Column[int32]:
		localisePL(v, cache, &cache.col32, pls, nSamples, L, opts)
	}

	// LAA comes last, because the cache's laa column is read above
	laa := new(vcf.Column[int32])
	*laa, cache.laa = cache.laa, vcf.Column[int32]{}
	v.Genotypes = append(v.Genotypes, utils.SmallMapEntry{Key: vcf.LAA, Value: laa})

	// remove AD and PL; GT is kept
	if !opts.KeepGlobalFields {
		v.Genotypes, _ = v.Genotypes.DeleteIf(func(key utils.Symbol, _ interface{}) bool {
			return key == vcf.AD || key == vcf.PL
		})
	}
	return nil
}

// salvageLocaliseCache takes the LAA buffer of a record that has been
// written back into the cache, to be reused for the next record. The
// LAD and LPL buffers already salvaged the dropped PL and AD fields.
func salvageLocaliseCache(v *vcf.Variant, cache *localiseCache) {
	if value, ok := v.Genotypes.Get(vcf.LAA); ok {
		if laa, ok := value.(*vcf.Column[int32]); ok {
			cache.laa = *laa
			cache.laa.Clear()
		}
	}
}

// LocaliseAlleles returns a pipeline transform that determines the
// locally relevant alleles per sample from the PL field and stores
// their indexes in the newly added LAA field; PL and AD are subsampled
// into LPL and LAD accordingly. Records with at most L alternative
// alleles pass through unchanged unless transform-all is set.
func LocaliseAlleles(opts *Options) vcf.Transform {
	return func(hdr *vcf.Header) vcf.VariantTransform {
		if opts.LocalAlleles == 0 {
			return nil
		}
		cache := new(localiseCache)
		return func(no int, v *vcf.Variant, emit vcf.Emit) error {
			localised := false
			if v.NAlts() > opts.LocalAlleles {
				opts.log("record no %d allele-localisation begin.", no)
				if err := localiseAlleles(v, no, hdr, opts, cache, false); err != nil {
					return err
				}
				opts.log("record no %d allele-localisation end.", no)
				localised = true
			} else if opts.TransformAll {
				opts.log("record no %d allele-pseudo-localisation begin.", no)
				if err := localiseAlleles(v, no, hdr, opts, cache, true); err != nil {
					return err
				}
				opts.log("record no %d allele-pseudo-localisation end.", no)
				localised = true
			}
			if err := emit(no, v); err != nil {
				return err
			}
			if localised {
				salvageLocaliseCache(v, cache)
			}
			return nil
		}
	}
}
