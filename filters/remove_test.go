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
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/decovar/utils"
	"github.com/exascience/decovar/vcf"
)

const testHeader1Sample = `##fileformat=VCFv4.3
##INFO=<ID=AF,Number=A,Type=Float,Description="Allele frequency">
##INFO=<ID=AC,Number=A,Type=Integer,Description="Allele count">
##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">
##FORMAT=<ID=AD,Number=R,Type=Integer,Description="Allelic depths">
##FORMAT=<ID=PL,Number=G,Type=Integer,Description="Phred-scaled genotype likelihoods">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	S1
`

func parseTestHeader(t *testing.T, text string) *vcf.Header {
	t.Helper()
	hdr, _, err := vcf.ParseHeader(bufio.NewReader(strings.NewReader(text)))
	require.NoError(t, err)
	return hdr
}

func parseTestVariant(t *testing.T, hdr *vcf.Header, line string) *vcf.Variant {
	t.Helper()
	vp := hdr.NewVariantParser()
	var sc vcf.StringScanner
	sc.Reset(line)
	v := sc.ParseVariant(vp)
	require.NoError(t, sc.Err())
	require.NotNil(t, v)
	return v
}

// runTransforms drives the composed transforms over the given records
// and collects the emitted records. Emitted records are cloned, since
// fan-out stages may reuse their output buffers after emitting.
func runTransforms(t *testing.T, hdr *vcf.Header, vs []*vcf.Variant, transforms ...vcf.Transform) []*vcf.Variant {
	t.Helper()
	chain := vcf.ComposeTransforms(hdr, transforms)
	var out []*vcf.Variant
	emit := func(no int, v *vcf.Variant) error {
		out = append(out, v.Clone())
		return nil
	}
	for no, v := range vs {
		if chain == nil {
			require.NoError(t, emit(no, v))
		} else {
			require.NoError(t, chain(no, v, emit))
		}
	}
	return out
}

func intColumn(t *testing.T, v *vcf.Variant, key string) []int64 {
	t.Helper()
	value, ok := v.Genotypes.Get(utils.Intern(key))
	require.True(t, ok, "missing FORMAT field %v", key)
	switch col := value.(type) {
	case *vcf.Column[int8]:
		result := make([]int64, len(col.Data))
		for i, x := range col.Data {
			result[i] = int64(x)
		}
		return result
	case *vcf.Column[int16]:
		result := make([]int64, len(col.Data))
		for i, x := range col.Data {
			result[i] = int64(x)
		}
		return result
	case *vcf.Column[int32]:
		result := make([]int64, len(col.Data))
		for i, x := range col.Data {
			result[i] = int64(x)
		}
		return result
	default:
		t.Fatalf("FORMAT field %v is not an integer column", key)
		return nil
	}
}

func gtStrings(t *testing.T, v *vcf.Variant) []string {
	t.Helper()
	value, ok := v.Genotypes.Get(vcf.GT)
	require.True(t, ok)
	return value.(*vcf.Column[string]).Data
}

func TestRemoveRareAllelesScenario(t *testing.T) {
	hdr := parseTestHeader(t, testHeader1Sample)
	v := parseTestVariant(t, hdr,
		"1\t100\t.\tA\tT,G,C\t.\tPASS\tAF=0.5,1e-08,0.2;AC=20,1,8\tGT:AD:PL\t1/2:10,3,0,7:0,20,40,35,60,80,10,30,55,25")

	out := runTransforms(t, hdr, []*vcf.Variant{v}, RemoveRareAlleles(&Options{RareAFThreshold: 1e-5}))
	require.Len(t, out, 1)
	result := out[0]

	// the second ALT allele is dropped
	assert.Equal(t, []string{"T", "C"}, result.Alt)

	af, _ := result.Info.Get(vcf.AF)
	assert.Equal(t, []float64{0.5, 0.2}, af)
	ac, _ := result.Info.Get(utils.Intern("AC"))
	assert.Equal(t, []int32{20, 8}, ac)

	assert.Equal(t, []int64{10, 3, 7}, intColumn(t, result, "AD"))
	assert.Equal(t, []int64{0, 20, 40, 10, 30, 25}, intColumn(t, result, "PL"))

	// argmin of the compacted PL is index 0 = genotype (0,0)
	assert.Equal(t, []string{"0/0"}, gtStrings(t, result))
}

func TestRemoveRareAllelesUniversalInvariants(t *testing.T) {
	hdr := parseTestHeader(t, testHeader1Sample)
	v := parseTestVariant(t, hdr,
		"1\t100\t.\tA\tT,G,C\t.\tPASS\tAF=0.5,1e-08,0.2;AC=20,1,8\tGT:AD:PL\t1/2:10,3,0,7:12,20,40,35,60,80,10,30,55,25")

	out := runTransforms(t, hdr, []*vcf.Variant{v}, RemoveRareAlleles(&Options{RareAFThreshold: 1e-5}))
	require.Len(t, out, 1)
	result := out[0]

	nAlts := result.NAlts()
	require.Equal(t, 2, nAlts)

	// A/R/G cardinalities match the reduced allele count
	af, _ := result.Info.Get(vcf.AF)
	assert.Len(t, af, nAlts)
	assert.Len(t, intColumn(t, result, "AD"), nAlts+1)
	pl := intColumn(t, result, "PL")
	assert.Len(t, pl, vcf.GenotypeCount(nAlts))

	// PL is renormalized so its minimum is 0
	min := pl[0]
	for _, x := range pl[1:] {
		if x < min {
			min = x
		}
	}
	assert.Equal(t, int64(0), min)
}

func TestRemoveRareAllelesAllDropped(t *testing.T) {
	hdr := parseTestHeader(t, testHeader1Sample)
	v := parseTestVariant(t, hdr,
		"1\t100\t.\tA\tT,G\t.\t.\tAF=1e-09,1e-09\tGT:AD:PL\t0/1:1,2,3:0,10,20,30,40,50")

	out := runTransforms(t, hdr, []*vcf.Variant{v}, RemoveRareAlleles(&Options{RareAFThreshold: 1e-5}))
	assert.Empty(t, out)
}

func TestRemoveRareAllelesThresholdZeroIsIdentity(t *testing.T) {
	hdr := parseTestHeader(t, testHeader1Sample)
	line := "1\t100\t.\tA\tT,G\t.\t.\tAF=0,0\tGT:AD:PL\t0/1:1,2,3:0,10,20,30,40,50"
	v := parseTestVariant(t, hdr, line)

	// threshold 0 disables the stage entirely
	out := runTransforms(t, hdr, []*vcf.Variant{v}, RemoveRareAlleles(&Options{RareAFThreshold: 0}))
	require.Len(t, out, 1)
	formatted, err := out[0].Format(nil)
	require.NoError(t, err)
	assert.Equal(t, line+"\n", string(formatted))
}

func TestRemoveRareAllelesStrictComparison(t *testing.T) {
	hdr := parseTestHeader(t, testHeader1Sample)
	// AF exactly at the threshold is kept: the comparison is strict
	v := parseTestVariant(t, hdr,
		"1\t100\t.\tA\tT,G\t.\t.\tAF=1e-05,0.5\tGT:AD:PL\t0/1:1,2,3:0,10,20,30,40,50")

	out := runTransforms(t, hdr, []*vcf.Variant{v}, RemoveRareAlleles(&Options{RareAFThreshold: 1e-5}))
	require.Len(t, out, 1)
	assert.Equal(t, []string{"T", "G"}, out[0].Alt)
}

func TestRemoveRareAllelesIdempotence(t *testing.T) {
	hdr := parseTestHeader(t, testHeader1Sample)
	v := parseTestVariant(t, hdr,
		"1\t100\t.\tA\tT,G,C\t.\tPASS\tAF=0.5,1e-08,0.2;AC=20,1,8\tGT:AD:PL\t1/2:10,3,0,7:0,20,40,35,60,80,10,30,55,25")

	opts := &Options{RareAFThreshold: 1e-5}
	once := runTransforms(t, hdr, []*vcf.Variant{v}, RemoveRareAlleles(opts))
	require.Len(t, once, 1)

	// the second pass finds no allele below the threshold
	twice := runTransforms(t, hdr, []*vcf.Variant{once[0].Clone()}, RemoveRareAlleles(opts))
	require.Len(t, twice, 1)

	a, err := once[0].Format(nil)
	require.NoError(t, err)
	b, err := twice[0].Format(nil)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRemoveRareAllelesBiallelicPassesThrough(t *testing.T) {
	hdr := parseTestHeader(t, testHeader1Sample)
	// records with a single ALT allele are never rewritten
	v := parseTestVariant(t, hdr,
		"1\t100\t.\tA\tT\t.\t.\tAF=1e-09\tGT:AD:PL\t0/0:1,2:0,10,20")

	out := runTransforms(t, hdr, []*vcf.Variant{v}, RemoveRareAlleles(&Options{RareAFThreshold: 1e-5}))
	require.Len(t, out, 1)
	assert.Equal(t, []string{"T"}, out[0].Alt)
}

func TestDetermineFilterVectorRErrors(t *testing.T) {
	hdr := parseTestHeader(t, testHeader1Sample)
	opts := &Options{RareAFThreshold: 1e-5}

	run := func(line string) error {
		v := parseTestVariant(t, hdr, line)
		chain := vcf.ComposeTransforms(hdr, []vcf.Transform{RemoveRareAlleles(opts)})
		return chain(7, v, func(int, *vcf.Variant) error { return nil })
	}

	err := run("1\t100\t.\tA\tT,G\t.\t.\tAC=1,2\tGT:PL\t0/0:0,1,2,3,4,5")
	var verr *vcf.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, vcf.MissingAF, verr.Kind)
	assert.Equal(t, 7, verr.RecordNo)

	err = run("1\t100\t.\tA\tT,G\t.\t.\tAF=0.5\tGT:PL\t0/0:0,1,2,3,4,5")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, vcf.AFLengthMismatch, verr.Kind)
}

func TestUpdateInfosLengthMismatch(t *testing.T) {
	hdr := parseTestHeader(t, testHeader1Sample)
	// AC carries too few values for Number=A
	v := parseTestVariant(t, hdr,
		"1\t100\t.\tA\tT,G,C\t.\t.\tAF=0.5,1e-08,0.2;AC=1\tGT:PL\t0/0:0,1,2,3,4,5,6,7,8,9")

	chain := vcf.ComposeTransforms(hdr, []vcf.Transform{RemoveRareAlleles(&Options{RareAFThreshold: 1e-5})})
	err := chain(0, v, func(int, *vcf.Variant) error { return nil })
	var verr *vcf.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, vcf.FieldLengthMismatch, verr.Kind)
}

func TestUpdateGenotypesCardinalityMismatch(t *testing.T) {
	hdr := parseTestHeader(t, testHeader1Sample)
	// the PL column is short one value
	v := parseTestVariant(t, hdr,
		"1\t100\t.\tA\tT,G,C\t.\t.\tAF=0.5,1e-08,0.2\tGT:PL\t0/0:0,1,2,3,4,5,6,7,8")

	chain := vcf.ComposeTransforms(hdr, []vcf.Transform{RemoveRareAlleles(&Options{RareAFThreshold: 1e-5})})
	err := chain(0, v, func(int, *vcf.Variant) error { return nil })
	var verr *vcf.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, vcf.DiploidOrCardinalityMismatch, verr.Kind)
}
