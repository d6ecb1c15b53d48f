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
	"strconv"

	"golang.org/x/exp/constraints"

	"github.com/exascience/decovar/utils"
	"github.com/exascience/decovar/vcf"
)

// determineFilterVectorR fills the R filter vector from the INFO AF
// field: an ALT allele is flagged iff its AF is strictly below the
// threshold. R[0] is the REF allele and never flagged.
func determineFilterVectorR(info utils.SmallMap, no, nAlts int, threshold float64, fv *FilterVectors) error {
	fv.R.reset(nAlts + 1)
	value, ok := info.Get(vcf.AF)
	if !ok {
		return vcf.NewError(vcf.MissingAF, no, "no AF field in record")
	}
	afs, ok := value.([]float64)
	if !ok {
		return vcf.NewError(vcf.AFTypeMismatch, no, "AF field of multi-allelic record is not a float vector")
	}
	if len(afs) != nAlts {
		return vcf.NewError(vcf.AFLengthMismatch, no, "AF field of multi-allelic record has wrong size: %d, but %d was expected", len(afs), nAlts)
	}
	for i, af := range afs {
		if af < threshold {
			fv.R.set(i + 1)
		}
	}
	return nil
}

// compactSlice removes the flagged positions from a flat slice, in
// place and order-preserving. For concatenated columns, the flat index
// is down-mapped to the inner position modulo the filter length.
func compactSlice[T any](data []T, fv *filterVector) []T {
	width := fv.Len()
	j := 0
	for k, v := range data {
		if !fv.Test(k % width) {
			data[j] = v
			j++
		}
	}
	return data[:j]
}

// updateInfos rewrites all INFO vectors with declared Number A or R by
// the matching filter vector.
func updateInfos(v *vcf.Variant, hdr *vcf.Header, no int, fv *FilterVectors) error {
	for i := range v.Info {
		entry := &v.Info[i]
		info := hdr.FindInfo(entry.Key)
		if info == nil {
			continue
		}
		var selected *filterVector
		switch info.Number {
		case vcf.NumberR:
			selected = &fv.R
		case vcf.NumberA:
			selected = &fv.A
		default:
			continue
		}
		switch vec := entry.Value.(type) {
		case []int32:
			if len(vec) != selected.Len() {
				return infoLengthError(no, entry.Key, selected.Len(), len(vec))
			}
			entry.Value = compactSlice(vec, selected)
		case []float64:
			if len(vec) != selected.Len() {
				return infoLengthError(no, entry.Key, selected.Len(), len(vec))
			}
			entry.Value = compactSlice(vec, selected)
		case []string:
			if len(vec) != selected.Len() {
				return infoLengthError(no, entry.Key, selected.Len(), len(vec))
			}
			entry.Value = compactSlice(vec, selected)
		default:
			return vcf.NewError(vcf.FieldLengthMismatch, no, "expected a vector when trimming field %v", *entry.Key)
		}
	}
	return nil
}

func infoLengthError(no int, key utils.Symbol, expected, actual int) error {
	return vcf.NewError(vcf.FieldLengthMismatch, no,
		"expected %d elements in field %v, but got %d; a single '.' as placeholder is not supported",
		expected, *key, actual)
}

// compactFormatColumn removes the flagged inner positions from every
// sample's slice of a concatenated column and rewrites the delimiter
// vector for the reduced width.
func compactFormatColumn[T any](col *vcf.Column[T], fv *filterVector, nSamples, no int, key utils.Symbol) error {
	before := fv.Len()
	after := before - fv.Ones()
	if len(col.Data) != nSamples*before {
		return vcf.NewError(vcf.DiploidOrCardinalityMismatch, no,
			"field %v: every sample must be diploid and must contain the correct number of values (no single '.' placeholder allowed)",
			*key)
	}
	col.Data = compactSlice(col.Data, fv)
	col.SetUniformDelim(after)
	return nil
}

// renormalizePL subtracts each sample's minimum PL value from all of
// the sample's PL values, so that the minimum is 0.
func renormalizePL[T constraints.Signed](col *vcf.Column[T]) {
	for i := 0; i < col.NSamples(); i++ {
		row := col.Row(i)
		if len(row) == 0 {
			continue
		}
		min := row[0]
		for _, v := range row[1:] {
			if v < min {
				min = v
			}
		}
		if min > 0 {
			for k := range row {
				row[k] -= min
			}
		}
	}
}

// updateGenotypes rewrites all FORMAT columns with declared Number A,
// R, or G by the matching filter vector. PL columns are additionally
// renormalized per sample.
func updateGenotypes(v *vcf.Variant, hdr *vcf.Header, no, nSamples int, fv *FilterVectors) error {
	for i := range v.Genotypes {
		entry := &v.Genotypes[i]
		format := hdr.FindFormat(entry.Key)
		if format == nil {
			continue
		}
		var selected *filterVector
		switch format.Number {
		case vcf.NumberR:
			selected = &fv.R
		case vcf.NumberA:
			selected = &fv.A
		case vcf.NumberG:
			selected = &fv.G
		default:
			continue
		}
		var err error
		switch col := entry.Value.(type) {
		case *vcf.Column[int8]:
			if err = compactFormatColumn(col, selected, nSamples, no, entry.Key); err == nil && entry.Key == vcf.PL {
				renormalizePL(col)
			}
		case *vcf.Column[int16]:
			if err = compactFormatColumn(col, selected, nSamples, no, entry.Key); err == nil && entry.Key == vcf.PL {
				renormalizePL(col)
			}
		case *vcf.Column[int32]:
			if err = compactFormatColumn(col, selected, nSamples, no, entry.Key); err == nil && entry.Key == vcf.PL {
				renormalizePL(col)
			}
		case *vcf.Column[float64]:
			err = compactFormatColumn(col, selected, nSamples, no, entry.Key)
		case *vcf.Column[string]:
			err = compactFormatColumn(col, selected, nSamples, no, entry.Key)
		default:
			err = vcf.NewError(vcf.FieldLengthMismatch, no, "expected a vector when trimming field %v", *entry.Key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func formatGenotypePair(p gtPair) string {
	// always unphased
	return strconv.Itoa(p.a) + "/" + strconv.Itoa(p.b)
}

func fixGTFromPL[T constraints.Signed](gt *vcf.Column[string], pl *vcf.Column[T], fv *FilterVectors) {
	for i := 0; i < pl.NSamples(); i++ {
		row := pl.Row(i)
		iMin := 0
		for k, v := range row {
			if v < row[iMin] {
				iMin = k
			}
		}
		gt.Row(i)[0] = formatGenotypePair(fv.reverse[iMin])
	}
}

// fixGT recomputes every sample's GT string from the post-removal PL
// vector, via the formula reverse cache. When PL is absent, GT is left
// unchanged and a warning is emitted.
func fixGT(v *vcf.Variant, no int, fv *FilterVectors) error {
	gtValue, ok := v.Genotypes.Get(vcf.GT)
	if !ok {
		return nil
	}
	gt, ok := gtValue.(*vcf.Column[string])
	if !ok {
		return vcf.NewError(vcf.FieldLengthMismatch, no, "GT field was in wrong state")
	}
	plValue, ok := v.Genotypes.Get(vcf.PL)
	if !ok {
		log.Printf("Warning: [record no: %d] GT present but no PL field; GT indexes not updated.", no)
		return nil
	}
	switch pl := plValue.(type) {
	case *vcf.Column[int8]:
		fixGTFromPL(gt, pl, fv)
	case *vcf.Column[int16]:
		fixGTFromPL(gt, pl, fv)
	case *vcf.Column[int32]:
		fixGTFromPL(gt, pl, fv)
	default:
		return vcf.NewError(vcf.PLTypeMismatch, no, "expected an integer column when reading PL")
	}
	return nil
}

// applyFilterVectors compacts the ALT list and every allele-indexed
// INFO and FORMAT field by the previously derived filter triple, and
// recomputes GT. The order matters: FORMAT before GT fixup, so the
// fixup reads the already compacted PL vector.
func applyFilterVectors(v *vcf.Variant, hdr *vcf.Header, no int, fv *FilterVectors) error {
	v.Alt = compactSlice(v.Alt, &fv.A)
	if err := updateInfos(v, hdr, no, fv); err != nil {
		return err
	}
	if err := updateGenotypes(v, hdr, no, hdr.NSamples(), fv); err != nil {
		return err
	}
	return fixGT(v, no, fv)
}

// removeRareAlleles rewrites a record in place. It returns true if all
// alleles were removed and the entire record should be skipped.
func removeRareAlleles(v *vcf.Variant, no int, hdr *vcf.Header, opts *Options, fv *FilterVectors) (skip bool, err error) {
	nAlts := v.NAlts()

	if err := determineFilterVectorR(v.Info, no, nAlts, opts.RareAFThreshold, fv); err != nil {
		return false, err
	}
	fv.deriveAG(nAlts)
	fv.logVectors(opts)

	if fv.A.all() {
		opts.log("record no %d would have no remaining alleles and is skipped completely.", no)
		return true, nil
	}

	if fv.A.any() { // only modify the record if necessary
		if err := applyFilterVectors(v, hdr, no, fv); err != nil {
			return false, err
		}
	}

	return false, nil
}

// RemoveRareAlleles returns a pipeline transform that removes ALT
// alleles whose AF lies strictly below the configured threshold from
// multi-allelic records, rewriting all fields with A, R, or G
// multiplicity and updating GT to the new indexes. Records whose
// alleles are all removed are dropped.
func RemoveRareAlleles(opts *Options) vcf.Transform {
	return func(hdr *vcf.Header) vcf.VariantTransform {
		if opts.RareAFThreshold == 0 {
			return nil
		}
		fv := new(FilterVectors)
		return func(no int, v *vcf.Variant, emit vcf.Emit) error {
			if v.NAlts() > 1 {
				opts.log("record no %d allele-removal begin.", no)
				skip, err := removeRareAlleles(v, no, hdr, opts, fv)
				opts.log("record no %d allele-removal end.", no)
				if err != nil {
					return err
				}
				if skip {
					return nil
				}
			}
			return emit(no, v)
		}
	}
}
