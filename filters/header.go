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
	"github.com/exascience/decovar/utils"
	"github.com/exascience/decovar/vcf"
)

func newFormatInformation(id utils.Symbol, number int32, typ vcf.Type, description string) *vcf.FormatInformation {
	return &vcf.FormatInformation{
		ID:          id,
		Number:      number,
		Type:        typ,
		Description: description,
		Fields:      make(utils.StringMap),
	}
}

// The reserved definitions for the local-allele FORMAT fields.
func reservedLocalFormat(id utils.Symbol) *vcf.FormatInformation {
	switch id {
	case vcf.LAA:
		return newFormatInformation(vcf.LAA, vcf.NumberDot, vcf.Integer,
			"1-based indexes into ALT of the alleles that are locally relevant for the sample")
	case vcf.LAD:
		return newFormatInformation(vcf.LAD, vcf.NumberDot, vcf.Integer,
			"Allelic depths for the REF and the local alleles listed in LAA")
	default:
		return newFormatInformation(vcf.LPL, vcf.NumberDot, vcf.Integer,
			"Phred-scaled genotype likelihoods for the REF and the local alleles listed in LAA")
	}
}

// LocaliseHeader returns a header amended with the reserved LAA, LAD,
// and LPL FORMAT definitions. LAD is only declared when AD is, and LPL
// only when PL is.
func LocaliseHeader(hdr *vcf.Header) *vcf.Header {
	newHdr := hdr.Clone()
	if newHdr.FindFormat(vcf.LAA) == nil {
		newHdr.Formats = append(newHdr.Formats, reservedLocalFormat(vcf.LAA))
	}
	if newHdr.FindFormat(vcf.AD) != nil && newHdr.FindFormat(vcf.LAD) == nil {
		newHdr.Formats = append(newHdr.Formats, reservedLocalFormat(vcf.LAD))
	}
	if newHdr.FindFormat(vcf.PL) != nil && newHdr.FindFormat(vcf.LPL) == nil {
		newHdr.Formats = append(newHdr.Formats, reservedLocalFormat(vcf.LPL))
	}
	return newHdr
}

// BinAllelesHeader returns a header for length-binned output: the INFO
// definitions are replaced by the four bin descriptors, and only GT and
// PL remain under FORMAT.
func BinAllelesHeader(hdr *vcf.Header) *vcf.Header {
	newHdr := hdr.Clone()

	newHdr.Infos = []*vcf.FormatInformation{
		newFormatInformation(RefbinIndexes, vcf.NumberDot, vcf.Integer,
			"Indexes of original alleles binned as the reference."),
		newFormatInformation(RefbinMaxLen, 1, vcf.Integer,
			"Maximum allele length in REFBIN."),
		newFormatInformation(AltbinIndexes, vcf.NumberDot, vcf.Integer,
			"Indexes of original alleles binned as the ALT."),
		newFormatInformation(AltbinMinLen, 1, vcf.Integer,
			"Minimum allele length in ALTBIN."),
	}

	gt := hdr.FindFormat(vcf.GT)
	if gt == nil {
		gt = newFormatInformation(vcf.GT, 1, vcf.String, "Genotype")
	}
	pl := hdr.FindFormat(vcf.PL)
	if pl == nil {
		pl = newFormatInformation(vcf.PL, vcf.NumberG, vcf.Integer,
			"Phred-scaled genotype likelihoods rounded to the closest integer")
	}
	newHdr.Formats = []*vcf.FormatInformation{gt, pl}

	return newHdr
}
