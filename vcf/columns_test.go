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

package vcf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenotypeFormula(t *testing.T) {
	assert.Equal(t, 0, GenotypeFormula(0, 0))
	assert.Equal(t, 1, GenotypeFormula(0, 1))
	assert.Equal(t, 2, GenotypeFormula(1, 1))
	assert.Equal(t, 3, GenotypeFormula(0, 2))
	assert.Equal(t, 4, GenotypeFormula(1, 2))
	assert.Equal(t, 5, GenotypeFormula(2, 2))

	assert.Equal(t, 1, GenotypeCount(0))
	assert.Equal(t, 3, GenotypeCount(1))
	assert.Equal(t, 6, GenotypeCount(2))
	assert.Equal(t, 10, GenotypeCount(3))
	assert.Equal(t, 21, GenotypeCount(5))
}

func TestColumnAppendRow(t *testing.T) {
	var col Column[int32]
	col.AppendRow(1, 2, 3)
	col.AppendRow(4, 5, 6)

	require.Equal(t, 2, col.NSamples())
	assert.Equal(t, []int32{1, 2, 3}, col.Row(0))
	assert.Equal(t, []int32{4, 5, 6}, col.Row(1))
	assert.Equal(t, []int{0, 3, 6}, col.Delim)
}

func TestColumnScaffold(t *testing.T) {
	var col Column[int16]
	col.Scaffold(3, 2)

	require.Equal(t, 3, col.NSamples())
	assert.Len(t, col.Data, 6)
	assert.Equal(t, []int{0, 2, 4, 6}, col.Delim)

	// scaffolding again with a smaller shape reuses the slices
	data := col.Data
	col.Scaffold(2, 2)
	require.Equal(t, 2, col.NSamples())
	assert.True(t, &data[0] == &col.Data[0])
}

func TestColumnSetUniformDelim(t *testing.T) {
	col := Column[int32]{
		Data:  []int32{1, 2, 3, 4},
		Delim: []int{0, 4, 8},
	}
	col.Data = col.Data[:4]
	col.SetUniformDelim(2)
	assert.Equal(t, []int{0, 2, 4}, col.Delim)
	assert.Equal(t, []int32{3, 4}, col.Row(1))
}

func TestNarrowIntColumn(t *testing.T) {
	col := &Column[int32]{Data: []int32{0, 100, MissingInt32}, Delim: []int{0, 3}}
	narrow := NarrowIntColumn(col)
	c8, ok := narrow.(*Column[int8])
	require.True(t, ok)
	assert.Equal(t, []int8{0, 100, MissingInt8}, c8.Data)

	col = &Column[int32]{Data: []int32{0, 1000}, Delim: []int{0, 2}}
	c16, ok := NarrowIntColumn(col).(*Column[int16])
	require.True(t, ok)
	assert.Equal(t, []int16{0, 1000}, c16.Data)

	col = &Column[int32]{Data: []int32{0, 100000}, Delim: []int{0, 2}}
	_, ok = NarrowIntColumn(col).(*Column[int32])
	assert.True(t, ok)

	// -128 collides with the int8 sentinel and must widen
	col = &Column[int32]{Data: []int32{-128}, Delim: []int{0, 1}}
	_, ok = NarrowIntColumn(col).(*Column[int16])
	assert.True(t, ok)
}

func TestCloneFieldValue(t *testing.T) {
	col := &Column[int8]{Data: []int8{1, 2}, Delim: []int{0, 2}}
	clone := CloneFieldValue(col).(*Column[int8])
	clone.Data[0] = 9
	assert.Equal(t, int8(1), col.Data[0])
}
