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

// binTestLine has REF A (length 1), ALTs T, G (length 1) and ATG
// (length 3), and a PL vector whose value equals its genotype index.
const binTestLine = "1\t100\trs9\tA\tT,G,ATG\t.\t.\tAF=0.2,0.3,0.4\tGT:AD:PL\t0/1:1,2,3,4:0,1,2,3,4,5,6,7,8,9"

func TestBinByLengthScenario(t *testing.T) {
	hdr := parseTestHeader(t, testHeader1Sample)
	v := parseTestVariant(t, hdr, binTestLine)

	out := runTransforms(t, hdr, []*vcf.Variant{v}, BinByLength(&Options{BinByLength: true}))

	// the cuts between the three length-1 alleles are skipped; only the
	// cut before ATG survives
	require.Len(t, out, 1)
	result := out[0]

	assert.Equal(t, "1", result.Chrom)
	assert.Equal(t, int32(100), result.Pos)
	assert.Equal(t, []string{"rs9_div_2"}, result.ID)
	assert.Equal(t, ".", result.Ref)
	assert.Equal(t, []string{".", "."}, result.Alt)

	refbin, _ := result.Info.Get(RefbinIndexes)
	assert.Equal(t, []int32{0, 1, 2}, refbin)
	refbinMax, _ := result.Info.Get(RefbinMaxLen)
	assert.Equal(t, 1, refbinMax)
	altbin, _ := result.Info.Get(AltbinIndexes)
	assert.Equal(t, []int32{3}, altbin)
	altbinMin, _ := result.Info.Get(AltbinMinLen)
	assert.Equal(t, 3, altbinMin)

	// PL minima: within {0,1,2} over g-indexes {0,1,2,3,4,5} = 0;
	// across {0,1,2}x{3} over {6,7,8} = 6; within {3} = g(3,3) = 9
	assert.Equal(t, []int64{0, 6, 9}, intColumn(t, result, "PL"))
	assert.Equal(t, []string{"0/0"}, gtStrings(t, result))
}

func TestBinByLengthSameLengthSplits(t *testing.T) {
	hdr := parseTestHeader(t, testHeader1Sample)
	v := parseTestVariant(t, hdr, binTestLine)

	out := runTransforms(t, hdr, []*vcf.Variant{v},
		BinByLength(&Options{BinByLength: true, SameLengthSplits: true}))

	// all three cut points are emitted
	require.Len(t, out, 3)

	assert.Equal(t, []string{"rs9_div_0"}, out[0].ID)
	refbin, _ := out[0].Info.Get(RefbinIndexes)
	assert.Equal(t, []int32{0}, refbin)
	altbin, _ := out[0].Info.Get(AltbinIndexes)
	assert.Equal(t, []int32{1, 2, 3}, altbin)

	// cut 0: within {0} = g(0,0) = 0; across = min(g(0,1), g(0,2),
	// g(0,3)) = 1; within {1,2,3} = min(2,4,5,7,8,9) = 2
	assert.Equal(t, []int64{0, 1, 2}, intColumn(t, out[0], "PL"))

	// cut 1: within {0,1} = 0; across {0,1}x{2,3} = g(0,2) = 3;
	// within {2,3} = g(2,2) = 5
	refbin, _ = out[1].Info.Get(RefbinIndexes)
	assert.Equal(t, []int32{0, 1}, refbin)
	assert.Equal(t, []int64{0, 3, 5}, intColumn(t, out[1], "PL"))

	refbin, _ = out[2].Info.Get(RefbinIndexes)
	assert.Equal(t, []int32{0, 1, 2}, refbin)
}

func TestBinByLengthUniversalInvariants(t *testing.T) {
	hdr := parseTestHeader(t, testHeader1Sample)
	v := parseTestVariant(t, hdr, binTestLine)

	out := runTransforms(t, hdr, []*vcf.Variant{v},
		BinByLength(&Options{BinByLength: true, SameLengthSplits: true}))
	require.NotEmpty(t, out)

	for _, result := range out {
		assert.Len(t, result.Alt, 2)
		pl := intColumn(t, result, "PL")
		assert.Len(t, pl, 3)
		gt := gtStrings(t, result)
		require.Len(t, gt, 1)
		assert.Contains(t, []string{"0/0", "0/1", "1/1"}, gt[0])
	}
}

func TestBinByLengthArgminGT(t *testing.T) {
	hdr := parseTestHeader(t, testHeader1Sample)
	// make the cross-bin genotype the most likely one
	v := parseTestVariant(t, hdr,
		"1\t100\t.\tA\tT,G,ATG\t.\t.\tAF=0.2,0.3,0.4\tGT:PL\t0/3:50,50,50,50,50,50,0,50,50,40")

	out := runTransforms(t, hdr, []*vcf.Variant{v}, BinByLength(&Options{BinByLength: true}))
	require.Len(t, out, 1)

	// within refbin = 50, across = 0 (g(0,3)), within altbin = 40
	assert.Equal(t, []int64{50, 0, 40}, intColumn(t, out[0], "PL"))
	assert.Equal(t, []string{"0/1"}, gtStrings(t, out[0]))
}

func TestBinByLengthPassThrough(t *testing.T) {
	hdr := parseTestHeader(t, testHeader1Sample)

	// a biallelic record passes through unchanged
	v := parseTestVariant(t, hdr,
		"1\t100\t.\tA\tT\t.\t.\tAF=0.5\tGT:PL\t0/0:0,10,20")
	out := runTransforms(t, hdr, []*vcf.Variant{v}, BinByLength(&Options{BinByLength: true}))
	require.Len(t, out, 1)
	assert.Equal(t, []string{"T"}, out[0].Alt)

	// as does a record without PL
	v = parseTestVariant(t, hdr,
		"1\t100\t.\tA\tT,G,ATG\t.\t.\tAF=0.2,0.3,0.4\tGT\t0/1")
	out = runTransforms(t, hdr, []*vcf.Variant{v}, BinByLength(&Options{BinByLength: true}))
	require.Len(t, out, 1)
	assert.Equal(t, []string{"T", "G", "ATG"}, out[0].Alt)
}

func TestBinByLengthScaffoldReuse(t *testing.T) {
	hdr := parseTestHeader(t, testHeader1Sample)

	vs := []*vcf.Variant{
		parseTestVariant(t, hdr, binTestLine),
		parseTestVariant(t, hdr,
			"2\t200\t.\tAT\tT,GATC\t.\t.\tAF=0.5,0.5\tGT:PL\t0/0:3,1,2,5,4,0"),
	}

	out := runTransforms(t, hdr, []*vcf.Variant{vs[0], vs[1]}, BinByLength(&Options{BinByLength: true}))
	require.Len(t, out, 3)

	// lengths of the second record: T(1) < AT(2) < GATC(4), two cuts
	second, third := out[1], out[2]
	assert.Equal(t, "2", second.Chrom)
	refbin, _ := second.Info.Get(RefbinIndexes)
	assert.Equal(t, []int32{1}, refbin)
	altbin, _ := second.Info.Get(AltbinIndexes)
	assert.Equal(t, []int32{0, 2}, altbin)

	refbin, _ = third.Info.Get(RefbinIndexes)
	assert.Equal(t, []int32{1, 0}, refbin)
	altbin, _ = third.Info.Get(AltbinIndexes)
	assert.Equal(t, []int32{2}, altbin)

	// the second record carries no ID, so none is synthesized
	assert.Nil(t, second.ID)
}

func TestBinAllelesHeader(t *testing.T) {
	hdr := parseTestHeader(t, testHeader1Sample)
	out := BinAllelesHeader(hdr)

	require.Len(t, out.Infos, 4)
	assert.Equal(t, RefbinIndexes, out.Infos[0].ID)
	assert.Equal(t, vcf.NumberDot, out.Infos[0].Number)
	assert.Equal(t, int32(1), out.Infos[1].Number)

	require.Len(t, out.Formats, 2)
	assert.Equal(t, vcf.GT, out.Formats[0].ID)
	assert.Equal(t, vcf.PL, out.Formats[1].ID)

	// the input header is untouched
	assert.Len(t, hdr.Infos, 2)
}

func TestLocaliseHeader(t *testing.T) {
	hdr := parseTestHeader(t, testHeader1Sample)
	out := LocaliseHeader(hdr)

	assert.NotNil(t, out.FindFormat(vcf.LAA))
	assert.NotNil(t, out.FindFormat(vcf.LAD))
	assert.NotNil(t, out.FindFormat(vcf.LPL))
	assert.Nil(t, hdr.FindFormat(vcf.LAA))

	// amending twice adds nothing
	again := LocaliseHeader(out)
	assert.Len(t, again.Formats, len(out.Formats))
}
