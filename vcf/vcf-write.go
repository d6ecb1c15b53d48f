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
	"bufio"
	"errors"
	"io"
	"math"
	"strconv"

	"golang.org/x/exp/constraints"

	"github.com/exascience/decovar/utils"
)

// FormatString outputs a string to a VCF file, adding necessary double quotes and escapes
func FormatString(out io.ByteWriter, str string) error {
	_ = out.WriteByte('"')
	for i := 0; i < len(str); i++ {
		b := str[i]
		if b == '"' || b == '\\' {
			_ = out.WriteByte('\\')
		}
		_ = out.WriteByte(b)
	}
	return out.WriteByte('"')
}

func needsQuotes(s string) bool {
	for i := 0; i < len(s); i++ {
		if ch := s[i]; ch == '"' || ch == ' ' {
			return true
		}
	}
	return false
}

// FormatMetaInformation outputs VCF meta information, which can be just a string or *MetaInformation
func FormatMetaInformation(out *bufio.Writer, meta interface{}) error {
	switch m := meta.(type) {
	case string:
		_, _ = out.WriteString(m)
		return out.WriteByte('\n')
	case *MetaInformation:
		_, _ = out.WriteString("<ID=")
		_, _ = out.WriteString(*m.ID)
		for key, value := range m.Fields {
			_ = out.WriteByte(',')
			_, _ = out.WriteString(key)
			_ = out.WriteByte('=')
			if needsQuotes(value) {
				_ = FormatString(out, value)
			} else {
				_, _ = out.WriteString(value)
			}
		}
		if m.Description != "" {
			_, _ = out.WriteString(",Description=")
			_ = FormatString(out, m.Description)
		}
		_, err := out.WriteString(">\n")
		return err
	default:
		return errors.New("invalid MetaInformation type")
	}
}

// FormatFormatInformation outputs VCF info or format information
func FormatFormatInformation(out *bufio.Writer, format *FormatInformation, infoNotFormat bool) error {
	_, _ = out.WriteString("<ID=")
	_, _ = out.WriteString(*format.ID)
	_, _ = out.WriteString(",Number=")
	if format.Number >= 0 {
		_, _ = out.WriteString(strconv.FormatInt(int64(format.Number), 10))
	} else {
		switch format.Number {
		case NumberA:
			_ = out.WriteByte('A')
		case NumberR:
			_ = out.WriteByte('R')
		case NumberG:
			_ = out.WriteByte('G')
		case NumberDot:
			_ = out.WriteByte('.')
		default:
			return errors.New("unknown Number kind in a VCF meta-information line")
		}
	}
	_, _ = out.WriteString(",Type=")
	switch format.Type {
	case Integer:
		_, _ = out.WriteString("Integer")
	case Float:
		_, _ = out.WriteString("Float")
	case Flag:
		_, _ = out.WriteString("Flag")
	case Character:
		_, _ = out.WriteString("Character")
	case String:
		_, _ = out.WriteString("String")
	default:
		return errors.New("invalid Type in a VCF meta-information line")
	}
	for key, value := range format.Fields {
		_ = out.WriteByte(',')
		_, _ = out.WriteString(key)
		_ = out.WriteByte('=')
		if (infoNotFormat && (key == "Source" || key == "Version")) || needsQuotes(value) {
			_ = FormatString(out, value)
		} else {
			_, _ = out.WriteString(value)
		}
	}
	if format.Description != "" {
		_, _ = out.WriteString(",Description=")
		_ = FormatString(out, format.Description)
	}
	_, err := out.WriteString(">\n")
	return err
}

// Format outputs a VCF header
func (header *Header) Format(out *bufio.Writer) (err error) {
	_, _ = out.WriteString(header.FileFormat)
	_ = out.WriteByte('\n')
	for _, info := range header.Infos {
		_, _ = out.WriteString("##INFO=")
		_ = FormatFormatInformation(out, info, true)
	}
	for _, format := range header.Formats {
		_, _ = out.WriteString("##FORMAT=")
		_ = FormatFormatInformation(out, format, false)
	}
	for key, metas := range header.Meta {
		for _, meta := range metas {
			_, _ = out.WriteString("##")
			_, _ = out.WriteString(key)
			_ = out.WriteByte('=')
			_ = FormatMetaInformation(out, meta)
		}
	}
	_ = out.WriteByte('#')
	if len(header.Columns) > 0 {
		_, _ = out.WriteString(header.Columns[0])
		for _, col := range header.Columns[1:] {
			_ = out.WriteByte('\t')
			_, _ = out.WriteString(col)
		}
	}
	return out.WriteByte('\n')
}

func formatStringList(out []byte, list []string, separator byte) []byte {
	if len(list) == 0 {
		return append(out, '.', '\t')
	}
	out = append(out, list[0]...)
	for _, entry := range list[1:] {
		out = append(out, separator)
		out = append(out, entry...)
	}
	return append(out, '\t')
}

func formatSymbolList(out []byte, list []utils.Symbol, separator byte) []byte {
	if len(list) == 0 {
		return append(out, '.')
	}
	out = append(out, (*list[0])...)
	for _, sym := range list[1:] {
		out = append(out, separator)
		out = append(out, (*sym)...)
	}
	return out
}

func appendFloat(out []byte, f float64) []byte {
	if math.IsNaN(f) {
		return append(out, '.')
	}
	return strconv.AppendFloat(out, f, 'f', -1, 64)
}

func appendIntRow[T constraints.Signed](out []byte, row []T, missing T) []byte {
	for k, v := range row {
		if k > 0 {
			out = append(out, ',')
		}
		if v == missing {
			out = append(out, '.')
		} else {
			out = strconv.AppendInt(out, int64(v), 10)
		}
	}
	return out
}

func appendFloatRow(out []byte, row []float64) []byte {
	for k, v := range row {
		if k > 0 {
			out = append(out, ',')
		}
		out = appendFloat(out, v)
	}
	return out
}

func appendStringRow(out []byte, row []string) []byte {
	for k, v := range row {
		if k > 0 {
			out = append(out, ',')
		}
		out = append(out, v...)
	}
	return out
}

func formatColumnRow(out []byte, value interface{}, sample int) ([]byte, error) {
	switch col := value.(type) {
	case *Column[int8]:
		return appendIntRow(out, col.Row(sample), MissingInt8), nil
	case *Column[int16]:
		return appendIntRow(out, col.Row(sample), MissingInt16), nil
	case *Column[int32]:
		return appendIntRow(out, col.Row(sample), MissingInt32), nil
	case *Column[float64]:
		return appendFloatRow(out, col.Row(sample)), nil
	case *Column[string]:
		return appendStringRow(out, col.Row(sample)), nil
	default:
		return nil, errors.New("invalid genotype column type")
	}
}

func formatInfoValue(out []byte, value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case int:
		return strconv.AppendInt(out, int64(v), 10), nil
	case float64:
		return appendFloat(out, v), nil
	case string:
		return append(out, v...), nil
	case []int32:
		return appendIntRow(out, v, MissingInt32), nil
	case []float64:
		return appendFloatRow(out, v), nil
	case []string:
		return appendStringRow(out, v), nil
	default:
		return nil, errors.New("invalid INFO value type")
	}
}

func formatInfoEntry(out []byte, entry utils.SmallMapEntry) ([]byte, error) {
	out = append(out, (*entry.Key)...)
	if flag, ok := entry.Value.(bool); ok {
		if !flag {
			return nil, errors.New("unexpected boolean value")
		}
		return out, nil
	}
	out = append(out, '=')
	return formatInfoValue(out, entry.Value)
}

func formatInfo(out []byte, info utils.SmallMap) ([]byte, error) {
	if len(info) == 0 {
		return append(out, '.'), nil
	}
	var err error
	out, err = formatInfoEntry(out, info[0])
	if err != nil {
		return nil, err
	}
	for _, entry := range info[1:] {
		out = append(out, ';')
		out, err = formatInfoEntry(out, entry)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Format outputs a VCF variant line
func (v *Variant) Format(out []byte) ([]byte, error) {
	out = append(append(out, v.Chrom...), '\t')
	if v.Pos < 0 {
		out = append(out, '.', '\t')
	} else {
		out = append(strconv.AppendInt(out, int64(v.Pos), 10), '\t')
	}
	out = formatStringList(out, v.ID, ';')
	out = append(append(out, v.Ref...), '\t')
	out = formatStringList(out, v.Alt, ',')
	if value, ok := v.Qual.(float64); ok {
		out = append(appendFloat(out, value), '\t')
	} else {
		out = append(out, '.', '\t')
	}
	if len(v.Filter) == 0 {
		out = append(out, '.', '\t')
	} else {
		out = append(formatSymbolList(out, v.Filter, ';'), '\t')
	}
	var err error
	out, err = formatInfo(out, v.Info)
	if err != nil {
		return nil, err
	}
	if len(v.Genotypes) > 0 {
		out = append(out, '\t')
		for j, entry := range v.Genotypes {
			if j > 0 {
				out = append(out, ':')
			}
			out = append(out, (*entry.Key)...)
		}
		nSamples := 0
		if col := v.Genotypes[0].Value; col != nil {
			switch c := col.(type) {
			case *Column[int8]:
				nSamples = c.NSamples()
			case *Column[int16]:
				nSamples = c.NSamples()
			case *Column[int32]:
				nSamples = c.NSamples()
			case *Column[float64]:
				nSamples = c.NSamples()
			case *Column[string]:
				nSamples = c.NSamples()
			}
		}
		for i := 0; i < nSamples; i++ {
			out = append(out, '\t')
			for j, entry := range v.Genotypes {
				if j > 0 {
					out = append(out, ':')
				}
				out, err = formatColumnRow(out, entry.Value, i)
				if err != nil {
					return nil, err
				}
			}
		}
	}
	return append(out, '\n'), nil
}
