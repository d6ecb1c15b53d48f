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
	"github.com/exascience/decovar/utils"
)

// The supported VCF file format version.
const (
	FileFormatVersion           = "VCFv4.3"
	FileFormatVersionLine       = "##fileformat=VCFv4.3"
	fileFormatVersionLinePrefix = "##fileformat=VCFv4."
)

// DefaultHeaderColumns for VCF files.
var DefaultHeaderColumns = []string{"CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO"}

// Type is an enumeration type for different VCF field types
type Type uint

// The different VCF field types. Character content is carried as
// strings; the reader does not distinguish the two beyond the header
// declaration.
const (
	InvalidType Type = iota
	Integer
	Float
	Flag
	Character
	String
)

// Constants for format information Number entries.
const (
	NumberA int32 = -1 * (1 + iota)
	NumberR
	NumberG
	NumberDot
	InvalidNumber
)

// Commonly used VCF entries.
var (
	PASS = utils.Intern("PASS")
	GT   = utils.Intern("GT")
	AF   = utils.Intern("AF")
	AD   = utils.Intern("AD")
	PL   = utils.Intern("PL")
	LAA  = utils.Intern("LAA")
	LAD  = utils.Intern("LAD")
	LGT  = utils.Intern("LGT")
	LPL  = utils.Intern("LPL")
)

type (
	// MetaInformation in VCF files.
	MetaInformation struct {
		ID          utils.Symbol
		Description string // "" if not present
		Fields      utils.StringMap
	}

	// FormatInformation describes an INFO or FORMAT entry in a VCF header.
	FormatInformation struct {
		ID          utils.Symbol
		Description string // "" if not present
		Number      int32  // > InvalidNumber
		Type        Type
		Fields      utils.StringMap
	}

	// Header section of a VCF file.
	Header struct {
		FileFormat string
		Infos      []*FormatInformation
		Formats    []*FormatInformation
		Meta       map[string][]interface{} // string or *MetaInformation
		Columns    []string
	}

	// Variant line in a VCF file.
	//
	// Info values are typed Go values: bool, int, float64, string,
	// []int32, []float64, or []string.
	//
	// Genotypes maps each FORMAT key, in declared order, to a
	// column-major per-sample value: one of *Column[int8],
	// *Column[int16], *Column[int32], *Column[float64], or
	// *Column[string].
	Variant struct {
		Chrom     string
		Pos       int32    // < 0 if unknown
		ID        []string // nil/empty if missing
		Ref       string
		Alt       []string       // nil/empty if missing
		Qual      interface{}    // float64, or nil if missing
		Filter    []utils.Symbol // nil/empty if missing
		Info      utils.SmallMap
		Genotypes utils.SmallMap
	}
)

// NewMetaInformation creates an empty instance.
func NewMetaInformation() *MetaInformation {
	return &MetaInformation{Fields: make(utils.StringMap)}
}

// NewFormatInformation creates an empty instance.
func NewFormatInformation() *FormatInformation {
	return &FormatInformation{Number: InvalidNumber, Fields: make(utils.StringMap)}
}

// NewHeader creates an empty instance.
func NewHeader() *Header {
	return &Header{
		FileFormat: FileFormatVersionLine,
		Meta:       make(map[string][]interface{}),
		Columns:    DefaultHeaderColumns,
	}
}

// GenotypeFormula returns the canonical VCF genotype index for the
// unordered diploid allele pair (a, b) with a <= b.
func GenotypeFormula(a, b int) int {
	return b*(b+1)/2 + a
}

// GenotypeCount returns the number of diploid genotypes for a record
// with nAlts alternative alleles.
func GenotypeCount(nAlts int) int {
	return GenotypeFormula(nAlts, nAlts) + 1
}

// NSamples returns the number of sample columns declared in the header.
func (header *Header) NSamples() int {
	n := len(header.Columns) - len(DefaultHeaderColumns) - 1
	if n < 0 {
		return 0
	}
	return n
}

// FindInfo returns the INFO declaration for the given ID, or nil.
func (header *Header) FindInfo(id utils.Symbol) *FormatInformation {
	for _, info := range header.Infos {
		if info.ID == id {
			return info
		}
	}
	return nil
}

// FindFormat returns the FORMAT declaration for the given ID, or nil.
func (header *Header) FindFormat(id utils.Symbol) *FormatInformation {
	for _, format := range header.Formats {
		if format.ID == id {
			return format
		}
	}
	return nil
}

// Clone returns a copy of the header whose Infos, Formats, Meta, and
// Columns slices can be modified without affecting the original.
func (header *Header) Clone() *Header {
	h := Header{
		FileFormat: header.FileFormat,
		Infos:      append([]*FormatInformation(nil), header.Infos...),
		Formats:    append([]*FormatInformation(nil), header.Formats...),
		Meta:       make(map[string][]interface{}, len(header.Meta)),
		Columns:    append([]string(nil), header.Columns...),
	}
	for key, metas := range header.Meta {
		h.Meta[key] = append([]interface{}(nil), metas...)
	}
	return &h
}

// Pass determines whether the variant passed all filters.
func (v *Variant) Pass() bool {
	return len(v.Filter) == 1 && v.Filter[0] == PASS
}

// NAlts returns the number of alternative alleles of the variant.
func (v *Variant) NAlts() int {
	return len(v.Alt)
}

// Clone returns a deep copy of the variant. The fan-out pipeline
// stages duplicate records before rewriting the copies in place.
func (v *Variant) Clone() *Variant {
	c := Variant{
		Chrom:  v.Chrom,
		Pos:    v.Pos,
		ID:     append([]string(nil), v.ID...),
		Ref:    v.Ref,
		Alt:    append([]string(nil), v.Alt...),
		Qual:   v.Qual,
		Filter: append([]utils.Symbol(nil), v.Filter...),
	}
	for _, entry := range v.Info {
		c.Info = append(c.Info, utils.SmallMapEntry{Key: entry.Key, Value: cloneInfoValue(entry.Value)})
	}
	for _, entry := range v.Genotypes {
		c.Genotypes = append(c.Genotypes, utils.SmallMapEntry{Key: entry.Key, Value: CloneFieldValue(entry.Value)})
	}
	return &c
}

func cloneInfoValue(value interface{}) interface{} {
	switch val := value.(type) {
	case []int32:
		return append([]int32(nil), val...)
	case []float64:
		return append([]float64(nil), val...)
	case []string:
		return append([]string(nil), val...)
	default:
		return value
	}
}
