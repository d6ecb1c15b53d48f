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
	"github.com/exascience/decovar/vcf"
)

// needsSplitting holds iff the record has at least two ALT alleles and
// the cutoff separates them into two non-empty groups.
func needsSplitting(v *vcf.Variant, cutoff int) bool {
	if v.NAlts() <= 1 {
		return false
	}
	hasShorter := false
	hasLonger := false
	for _, alt := range v.Alt {
		if len(alt) <= cutoff {
			hasShorter = true
		} else {
			hasLonger = true
		}
	}
	return hasShorter && hasLonger
}

// splitFilterVectorR fills the R filter vector for one of the two
// copies: the short copy removes alleles longer than the cutoff, the
// long copy removes the rest.
func splitFilterVectorR(v *vcf.Variant, cutoff int, removeLong bool, fv *FilterVectors) {
	nAlts := v.NAlts()
	fv.R.reset(nAlts + 1) // REF is never filtered
	for i, alt := range v.Alt {
		fv.R.setTo(i+1, (len(alt) > cutoff) == removeLong)
	}
}

// removeAllelesByLength rewrites one of the two split copies in place.
func removeAllelesByLength(v *vcf.Variant, no, cutoff int, removeLong bool, hdr *vcf.Header, opts *Options, fv *FilterVectors) error {
	splitFilterVectorR(v, cutoff, removeLong, fv)
	fv.deriveAG(v.NAlts())
	fv.logVectors(opts)
	return applyFilterVectors(v, hdr, no, fv)
}

func missingID(id []string) bool {
	return len(id) == 0 || (len(id) == 1 && id[0] == ".")
}

func suffixID(id []string, suffix string) []string {
	result := make([]string, len(id))
	for i, entry := range id {
		result[i] = entry + suffix
	}
	return result
}

// SplitByLength returns a pipeline transform that partitions a
// multi-allelic record's ALT set at the configured allele length: the
// first emitted copy keeps the alleles with length <= cutoff, the
// second the longer ones. Records whose alleles all fall on one side
// pass through unchanged.
func SplitByLength(opts *Options) vcf.Transform {
	return func(hdr *vcf.Header) vcf.VariantTransform {
		if opts.SplitByLength == 0 {
			return nil
		}
		fv := new(FilterVectors)
		return func(no int, v *vcf.Variant, emit vcf.Emit) error {
			if !needsSplitting(v, opts.SplitByLength) {
				return emit(no, v)
			}
			opts.log("record no %d splitting-by-length begin.", no)

			short := v.Clone()
			if !missingID(v.ID) {
				short.ID = suffixID(short.ID, "_split1")
				v.ID = suffixID(v.ID, "_split2")
			}

			// short alleles: remove the long ones
			if err := removeAllelesByLength(short, no, opts.SplitByLength, true, hdr, opts, fv); err != nil {
				return err
			}
			// long alleles: remove the short ones
			if err := removeAllelesByLength(v, no, opts.SplitByLength, false, hdr, opts, fv); err != nil {
				return err
			}

			opts.log("record no %d splitting-by-length end.", no)

			if err := emit(no, short); err != nil {
				return err
			}
			return emit(no, v)
		}
	}
}
