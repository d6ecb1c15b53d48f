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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/decovar/vcf"
)

func TestNeedsSplitting(t *testing.T) {
	hdr := parseTestHeader(t, testHeader1Sample)

	v := parseTestVariant(t, hdr, "1\t100\t.\tA\tT,ATG\t.\t.\tAF=0.5,0.5\tGT\t0/1")
	assert.True(t, needsSplitting(v, 2))

	// all alleles on one side of the cutoff
	v = parseTestVariant(t, hdr, "1\t100\t.\tA\tT,G\t.\t.\tAF=0.5,0.5\tGT\t0/1")
	assert.False(t, needsSplitting(v, 2))

	// a single ALT allele never splits
	v = parseTestVariant(t, hdr, "1\t100\t.\tA\tATG\t.\t.\tAF=0.5\tGT\t0/1")
	assert.False(t, needsSplitting(v, 2))
}

func TestSplitByLengthScenario(t *testing.T) {
	hdr := parseTestHeader(t, testHeader1Sample)
	// four ALT alleles, cutoff 2: T and G are short, ATG and ATGCTG long
	v := parseTestVariant(t, hdr,
		"1\t100\trs1\tA\tT,ATG,G,ATGCTG\t.\t.\tAF=0.1,0.2,0.3,0.4\tGT:AD:PL\t0/1:1,2,3,4,5:0,1,2,3,4,5,6,7,8,9,10,11,12,13,14")

	out := runTransforms(t, hdr, []*vcf.Variant{v}, SplitByLength(&Options{SplitByLength: 2}))
	require.Len(t, out, 2)

	short, long := out[0], out[1]

	assert.Equal(t, []string{"T", "G"}, short.Alt)
	assert.Equal(t, []string{"rs1_split1"}, short.ID)
	assert.Equal(t, []string{"ATG", "ATGCTG"}, long.Alt)
	assert.Equal(t, []string{"rs1_split2"}, long.ID)

	// both copies keep position and chromosome
	assert.Equal(t, v.Chrom, short.Chrom)
	assert.Equal(t, int32(100), long.Pos)

	afShort, _ := short.Info.Get(vcf.AF)
	assert.Equal(t, []float64{0.1, 0.3}, afShort)
	afLong, _ := long.Info.Get(vcf.AF)
	assert.Equal(t, []float64{0.2, 0.4}, afLong)

	// AD keeps REF plus the surviving alleles
	assert.Equal(t, []int64{1, 2, 4}, intColumn(t, short, "AD"))
	assert.Equal(t, []int64{1, 3, 5}, intColumn(t, long, "AD"))

	// PL keeps the genotypes over the surviving alleles, renormalized;
	// the short copy retains alleles {0,1,3} of the original indexing
	assert.Equal(t, []int64{0, 1, 2, 6, 7, 9}, intColumn(t, short, "PL"))
	// the long copy retains alleles {0,2,4}: g-indexes 0,3,5,10,12,14
	assert.Equal(t, []int64{0, 3, 5, 10, 12, 14}, intColumn(t, long, "PL"))

	// GT is recomputed from the compacted PL
	assert.Equal(t, []string{"0/0"}, gtStrings(t, short))
	assert.Equal(t, []string{"0/0"}, gtStrings(t, long))
}

func TestSplitByLengthUniversalInvariants(t *testing.T) {
	hdr := parseTestHeader(t, testHeader1Sample)
	v := parseTestVariant(t, hdr,
		"1\t100\t.\tA\tT,ATG,G,ATGCTG\t.\t.\tAF=0.1,0.2,0.3,0.4\tGT:AD:PL\t0/1:1,2,3,4,5:5,1,2,3,4,5,6,7,8,9,10,11,12,13,14")

	out := runTransforms(t, hdr, []*vcf.Variant{v}, SplitByLength(&Options{SplitByLength: 2}))
	require.Len(t, out, 2)

	for _, result := range out {
		nAlts := result.NAlts()
		require.Equal(t, 2, nAlts)
		af, _ := result.Info.Get(vcf.AF)
		assert.Len(t, af, nAlts)
		assert.Len(t, intColumn(t, result, "AD"), nAlts+1)
		pl := intColumn(t, result, "PL")
		assert.Len(t, pl, vcf.GenotypeCount(nAlts))
		min := pl[0]
		for _, x := range pl[1:] {
			if x < min {
				min = x
			}
		}
		assert.Equal(t, int64(0), min)
	}

	// missing (`.`) IDs were not suffixed
	assert.Nil(t, out[0].ID)
	assert.Nil(t, out[1].ID)
}

func TestSplitByLengthPassThrough(t *testing.T) {
	hdr := parseTestHeader(t, testHeader1Sample)
	v := parseTestVariant(t, hdr,
		"1\t100\t.\tA\tT,G\t.\t.\tAF=0.5,0.5\tGT:AD:PL\t0/1:1,2,3:0,10,20,30,40,50")

	out := runTransforms(t, hdr, []*vcf.Variant{v}, SplitByLength(&Options{SplitByLength: 2}))
	require.Len(t, out, 1)
	assert.Equal(t, []string{"T", "G"}, out[0].Alt)
}

func TestSplitByLengthDisabled(t *testing.T) {
	hdr := parseTestHeader(t, testHeader1Sample)
	assert.Nil(t, vcf.ComposeTransforms(hdr, []vcf.Transform{SplitByLength(&Options{SplitByLength: 0})}))
}
