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
	"math"

	"golang.org/x/exp/constraints"
)

// Missing sentinels for integer column entries, one per width. They
// render as "." and map onto each other when a column is narrowed.
const (
	MissingInt8  int8  = math.MinInt8
	MissingInt16 int16 = math.MinInt16
	MissingInt32 int32 = math.MinInt32
)

// MissingFloat is the sentinel for missing float column entries.
var MissingFloat = math.NaN()

// A Column holds the values of one FORMAT field for all samples of a
// record in concatenated layout: one flat data slice plus a prefix-sum
// delimiter slice of length NSamples+1 with Delim[0] == 0 and
// Delim[NSamples] == len(Data). The values for sample i are
// Data[Delim[i]:Delim[i+1]]. The two-dimensional shape is never
// materialized.
type Column[T any] struct {
	Data  []T
	Delim []int
}

// NSamples returns the number of rows in the column.
func (col *Column[T]) NSamples() int {
	return len(col.Delim) - 1
}

// Row returns the slice of values for sample i. The slice aliases the
// column's flat data.
func (col *Column[T]) Row(i int) []T {
	return col.Data[col.Delim[i]:col.Delim[i+1]]
}

// Clear empties the column but keeps its capacity for reuse.
func (col *Column[T]) Clear() {
	col.Data = col.Data[:0]
	col.Delim = col.Delim[:0]
	col.Delim = append(col.Delim, 0)
}

// AppendRow appends one sample's values to the column.
func (col *Column[T]) AppendRow(values ...T) {
	if len(col.Delim) == 0 {
		col.Delim = append(col.Delim, 0)
	}
	col.Data = append(col.Data, values...)
	col.Delim = append(col.Delim, len(col.Data))
}

// Scaffold resizes the column to outer rows of inner values each,
// reusing the underlying slices where possible. The data contents are
// unspecified afterwards.
func (col *Column[T]) Scaffold(outer, inner int) {
	size := outer * inner
	if cap(col.Data) < size {
		col.Data = make([]T, size)
	} else {
		col.Data = col.Data[:size]
	}
	if cap(col.Delim) < outer+1 {
		col.Delim = make([]int, outer+1)
	} else {
		col.Delim = col.Delim[:outer+1]
	}
	for i := range col.Delim {
		col.Delim[i] = i * inner
	}
}

// SetUniformDelim rewrites the delimiter slice in place for rows of
// inner values each. The number of rows is unchanged.
func (col *Column[T]) SetUniformDelim(inner int) {
	for i := range col.Delim {
		col.Delim[i] = i * inner
	}
}

// Clone returns a deep copy of the column.
func (col *Column[T]) Clone() *Column[T] {
	return &Column[T]{
		Data:  append([]T(nil), col.Data...),
		Delim: append([]int(nil), col.Delim...),
	}
}

// CloneFieldValue deep-copies a genotype field value of any of the
// supported column types.
func CloneFieldValue(value interface{}) interface{} {
	switch col := value.(type) {
	case *Column[int8]:
		return col.Clone()
	case *Column[int16]:
		return col.Clone()
	case *Column[int32]:
		return col.Clone()
	case *Column[float64]:
		return col.Clone()
	case *Column[string]:
		return col.Clone()
	default:
		return value
	}
}

func convertIntColumn[T constraints.Signed](col *Column[int32], missing T) *Column[T] {
	out := &Column[T]{
		Data:  make([]T, len(col.Data)),
		Delim: append([]int(nil), col.Delim...),
	}
	for i, v := range col.Data {
		if v == MissingInt32 {
			out.Data[i] = missing
		} else {
			out.Data[i] = T(v)
		}
	}
	return out
}

// NarrowIntColumn converts an int32 column to the smallest integer
// width that can represent all its values, mirroring the width
// selection BCF applies on the wire. Missing sentinels are mapped
// across widths. The result is one of *Column[int8], *Column[int16],
// or the input column itself.
func NarrowIntColumn(col *Column[int32]) interface{} {
	min, max := int32(0), int32(0)
	for _, v := range col.Data {
		if v == MissingInt32 {
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	switch {
	case min > int32(MissingInt8) && max <= math.MaxInt8:
		return convertIntColumn(col, MissingInt8)
	case min > int32(MissingInt16) && max <= math.MaxInt16:
		return convertIntColumn(col, MissingInt16)
	default:
		return col
	}
}
