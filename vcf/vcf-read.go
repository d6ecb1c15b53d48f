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
	"fmt"
	"io"
	"strconv"

	"github.com/exascience/decovar/utils"
)

const (
	descriptionKey = "Description"
	idKey          = "ID"
	numberKey      = "Number"
	typeKey        = "Type"
)

// ParseMetaField parses a VCF meta field
func (sc *StringScanner) ParseMetaField() (key, value string) {
	if sc.err != nil {
		return
	}
	sc.SkipSpace()
	start := sc.index
	for ; sc.index < len(sc.data); sc.index++ {
		if c := sc.data[sc.index]; (c == ' ') || (c == '=') {
			break
		}
	}
	key = sc.data[start:sc.index]
	sc.SkipSpace()
	if sc.index >= len(sc.data) || sc.data[sc.index] != '=' {
		if sc.err == nil {
			sc.err = fmt.Errorf("invalid key=value pair in a VCF meta-information line: %v", sc.data)
		}
		return
	}
	sc.index++
	start = sc.index
	if sc.data[sc.index] == '"' {
		start++
		sc.index++
		var buf []byte
		for ; sc.index < len(sc.data); sc.index++ {
			switch sc.data[sc.index] {
			case '"':
				sc.index++
				return key, string(buf)
			case '\\':
				sc.index++
			}
			buf = append(buf, sc.data[sc.index])
		}
		sc.index = len(sc.data)
		if sc.err == nil {
			sc.err = fmt.Errorf("missing closing \" in a VCF meta-information line: %v", sc.data)
		}
		return key, string(buf)
	}
	for ; sc.index < len(sc.data); sc.index++ {
		if c := sc.data[sc.index]; (c == ' ') || (c == ',') || (c == '>') {
			return key, sc.data[start:sc.index]
		}
	}
	if sc.err == nil {
		sc.err = fmt.Errorf("missing closing > in a VCF meta-information line: %v", sc.data)
	}
	return key, sc.data[start:]
}

// ParseMetaInformation parses VCF meta information
func (sc *StringScanner) ParseMetaInformation() interface{} {
	if sc.err != nil {
		return nil
	}
	if sc.data[sc.index] != '<' {
		start := sc.index
		sc.index = len(sc.data)
		return sc.data[start:]
	}
	sc.index++
	meta := NewMetaInformation()
	for {
		key, value := sc.ParseMetaField()
		switch key {
		case idKey:
			if meta.ID != nil {
				if sc.err == nil {
					sc.err = fmt.Errorf("multiple IDs in a VCF meta-information line: %v", sc.data)
				}
			} else {
				meta.ID = utils.Intern(value)
			}
		case descriptionKey:
			if meta.Description != "" {
				if sc.err == nil {
					sc.err = fmt.Errorf("multiple Descriptions in a VCF meta-information line: %v", sc.data)
				}
			} else {
				meta.Description = value
			}
		default:
			if !meta.Fields.SetUniqueEntry(key, value) {
				if sc.err == nil {
					sc.err = fmt.Errorf("duplicate field key %v in a VCF meta-information line: %v", key, sc.data)
				}
			}
		}
		sc.SkipSpace()
		if c := sc.data[sc.index]; c == ',' {
			sc.index++
			continue
		} else if c == '>' {
			sc.index++
			break
		}
		if sc.err == nil {
			sc.err = fmt.Errorf("invalid syntax in a VCF meta-information line: %v", sc.data)
		}
		break
	}
	if meta.ID == nil {
		if sc.err == nil {
			sc.err = fmt.Errorf("missing ID in a VCF meta-information line: %v", sc.data)
		}
	}
	return meta
}

// ParseFormatInformation parses a VCF INFO or FORMAT meta-information line
func (sc *StringScanner) ParseFormatInformation() *FormatInformation {
	if sc.err != nil {
		return nil
	}
	if sc.data[sc.index] != '<' {
		sc.err = fmt.Errorf("missing open angle bracket in a VCF INFO/FORMAT meta-information line: %v", sc.data)
		return nil
	}
	sc.index++
	format := NewFormatInformation()
	for {
		key, value := sc.ParseMetaField()
		switch key {
		case idKey:
			if format.ID != nil {
				if sc.err == nil {
					sc.err = fmt.Errorf("multiple IDs in a VCF INFO/FORMAT meta-information line: %v", sc.data)
				}
			} else {
				format.ID = utils.Intern(value)
			}
		case descriptionKey:
			if format.Description != "" {
				if sc.err == nil {
					sc.err = fmt.Errorf("multiple Descriptions in a VCF INFO/FORMAT meta-information line: %v", sc.data)
				}
			} else {
				format.Description = value
			}
		case numberKey:
			if format.Number > InvalidNumber {
				if sc.err == nil {
					sc.err = fmt.Errorf("multiple Number entries in a VCF INFO/FORMAT meta-information line: %v", sc.data)
				}
			} else {
				switch value {
				case "a", "A":
					format.Number = NumberA
				case "r", "R":
					format.Number = NumberR
				case "g", "G":
					format.Number = NumberG
				case ".":
					format.Number = NumberDot
				default:
					n, err := strconv.ParseInt(value, 10, 32)
					if err != nil {
						if sc.err == nil {
							sc.err = err
						}
					} else {
						format.Number = int32(n)
					}
				}
			}
		case typeKey:
			if format.Type != InvalidType {
				if sc.err == nil {
					sc.err = fmt.Errorf("multiple Types in a VCF INFO/FORMAT meta-information line: %v", sc.data)
				}
			} else {
				switch value {
				case "Integer":
					format.Type = Integer
				case "Float":
					format.Type = Float
				case "Flag":
					format.Type = Flag
				case "Character":
					format.Type = Character
				case "String":
					format.Type = String
				default:
					if sc.err == nil {
						sc.err = fmt.Errorf("unknown Type in a VCF INFO/FORMAT meta-information line: %v", sc.data)
					}
				}
			}
		default:
			if !format.Fields.SetUniqueEntry(key, value) {
				if sc.err == nil {
					sc.err = fmt.Errorf("duplicate field key %v in a VCF meta-information line: %v", key, sc.data)
				}
			}
		}
		sc.SkipSpace()
		if c := sc.data[sc.index]; c == ',' {
			sc.index++
			continue
		} else if c == '>' {
			sc.index++
			break
		}
		if sc.err == nil {
			sc.err = fmt.Errorf("invalid syntax in a VCF INFO/FORMAT meta-information line: %v", sc.data)
		}
		break
	}
	if format.ID == nil {
		if sc.err == nil {
			sc.err = fmt.Errorf("missing ID in a VCF INFO/FORMAT meta-information line: %v", sc.data)
		}
	}
	if format.Number <= InvalidNumber {
		if sc.err == nil {
			sc.err = fmt.Errorf("missing Number entry in a VCF INFO/FORMAT meta-information line: %v", sc.data)
		}
	}
	if format.Type == InvalidType {
		if sc.err == nil {
			sc.err = fmt.Errorf("missing Type in a VCF INFO/FORMAT meta-information line: %v", sc.data)
		}
	}
	return format
}

func getLine(reader *bufio.Reader) (line string, err error) {
	line, err = reader.ReadString('\n')
	switch {
	case err == nil:
		line = line[:len(line)-1]
	case err == io.EOF:
		err = nil
	}
	return
}

// ParseHeader parses a VCF header
func ParseHeader(reader *bufio.Reader) (hdr *Header, lines int, err error) {
	line, err := getLine(reader)
	if err != nil {
		return nil, 0, err
	}
	lines++
	if len(line) < len(fileFormatVersionLinePrefix) ||
		line[:len(fileFormatVersionLinePrefix)] != fileFormatVersionLinePrefix {
		return nil, 0, errors.New("invalid first line in a VCF file")
	}
	hdr = NewHeader()
	hdr.FileFormat = line
	hdr.Columns = nil
	var sc StringScanner
	for {
		if data, e := reader.Peek(1); (e != nil) || (data[0] != '#') {
			return nil, 0, errors.New("unexpected end of VCF header")
		}
		_, _ = reader.ReadByte()
		if data, e := reader.Peek(1); e != nil {
			return nil, 0, errors.New("unexpected end of VCF header")
		} else if data[0] != '#' {
			break
		}
		_, _ = reader.ReadByte()
		line, err = getLine(reader)
		if err != nil {
			return nil, 0, err
		}
		lines++
		sc.Reset(line)
		if key, found := sc.readUntilByte('='); !found {
			return nil, 0, errors.New("invalid syntax in a VCF header")
		} else if key == "fileformat" {
			return nil, 0, errors.New("multiple file format meta-information lines in a VCF file")
		} else if key == "INFO" {
			hdr.Infos = append(hdr.Infos, sc.ParseFormatInformation())
		} else if key == "FORMAT" {
			hdr.Formats = append(hdr.Formats, sc.ParseFormatInformation())
		} else {
			hdr.Meta[key] = append(hdr.Meta[key], sc.ParseMetaInformation())
		}
		if sc.err != nil {
			return nil, 0, sc.err
		}
	}
	line, err = getLine(reader)
	if err != nil {
		return nil, 0, err
	}
	lines++
	sc.Reset(line)
	for sc.Len() > 0 {
		column, _ := sc.readUntilByte('\t')
		hdr.Columns = append(hdr.Columns, column)
	}
	if sc.err != nil {
		return nil, 0, sc.err
	}
	return hdr, lines, nil
}

// A VariantParser is an optimized parser for VCF variant lines that
// produces typed INFO values and column-major FORMAT columns according
// to the header declarations.
type VariantParser struct {
	infos    map[utils.Symbol]*FormatInformation
	formats  map[utils.Symbol]*FormatInformation
	NSamples int
}

// NewVariantParser creates a VariantParser for the given VCF header.
func (header *Header) NewVariantParser() *VariantParser {
	vp := VariantParser{
		infos:    make(map[utils.Symbol]*FormatInformation, len(header.Infos)),
		formats:  make(map[utils.Symbol]*FormatInformation, len(header.Formats)),
		NSamples: header.NSamples(),
	}
	for _, info := range header.Infos {
		vp.infos[info.ID] = info
	}
	for _, format := range header.Formats {
		vp.formats[format.ID] = format
	}
	return &vp
}

var (
	idSeparator  = []byte{';', '\t'}
	altSeparator = []byte{',', '\t'}
)

func (sc *StringScanner) doString() string {
	if sc.missingEntry() {
		return "."
	}
	value, ok := sc.readUntilByte('\t')
	if !ok {
		if sc.err == nil {
			sc.err = errors.New("missing tabulator in VCF data line")
		}
		return ""
	}
	return value
}

func (sc *StringScanner) doInt32() int32 {
	if sc.missingEntry() {
		return -1
	}
	value, ok := sc.readUntilByte('\t')
	if !ok {
		if sc.err == nil {
			sc.err = errors.New("missing tabulator in VCF data line")
		}
		return -1
	}
	i, err := strconv.ParseInt(value, 10, 32)
	if (err != nil) && (sc.err == nil) {
		sc.err = err
	}
	return int32(i)
}

func (sc *StringScanner) doFloat() interface{} {
	if sc.missingEntry() {
		return nil
	}
	value, ok := sc.readUntilByte('\t')
	if !ok {
		if sc.err == nil {
			sc.err = errors.New("missing tabulator in VCF data line")
		}
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if (err != nil) && (sc.err == nil) {
		sc.err = err
	}
	return f
}

func (sc *StringScanner) doStringList(separator []byte) (result []string) {
	if sc.missingEntry() {
		return nil
	}
	for sc.err == nil {
		result = append(result, sc.readUntilBytes(separator))
		if (sc.index >= len(sc.data)) || (sc.data[sc.index] != separator[0]) {
			break
		}
		sc.index++
	}
	sc.scanChar('\t')
	return result
}

var (
	filterSeparator = []byte{';', '\t'}
	passList        = []utils.Symbol{PASS}
)

func (sc *StringScanner) doFilter() []utils.Symbol {
	if sc.missingEntry() {
		return nil
	}
	str := sc.readUntilBytes(filterSeparator)
	if str == "PASS" {
		sc.scanChar('\t')
		return passList
	}
	result := []utils.Symbol{utils.Intern(str)}
	for (sc.err == nil) && (sc.index < len(sc.data)) && (sc.data[sc.index] == ';') {
		sc.index++
		result = append(result, utils.Intern(sc.readUntilBytes(filterSeparator)))
	}
	sc.scanChar('\t')
	return result
}

var (
	endOfInfoKey   = []byte{'=', ';', '\t'}
	endOfInfoValue = []byte{',', ';', '\t'}
)

func (sc *StringScanner) parseInfoInt32() int32 {
	token := sc.readUntilBytes(endOfInfoValue)
	i, err := strconv.ParseInt(token, 10, 32)
	if (err != nil) && (sc.err == nil) {
		sc.err = err
	}
	return int32(i)
}

func (sc *StringScanner) parseInfoFloat() float64 {
	token := sc.readUntilBytes(endOfInfoValue)
	f, err := strconv.ParseFloat(token, 64)
	if (err != nil) && (sc.err == nil) {
		sc.err = err
	}
	return f
}

func (sc *StringScanner) parseInfoValue(info *FormatInformation) interface{} {
	if info.Type == Flag {
		return true
	}
	if (sc.index >= len(sc.data)) || (sc.data[sc.index] != '=') {
		if sc.err == nil {
			sc.err = fmt.Errorf("missing = for INFO field %v in a VCF data line", *info.ID)
		}
		return nil
	}
	sc.index++
	if info.Number == 1 {
		switch info.Type {
		case Integer:
			return int(sc.parseInfoInt32())
		case Float:
			return sc.parseInfoFloat()
		default:
			return sc.readUntilBytes(endOfInfoValue)
		}
	}
	switch info.Type {
	case Integer:
		var result []int32
		for sc.err == nil {
			result = append(result, sc.parseInfoInt32())
			if (sc.index >= len(sc.data)) || (sc.data[sc.index] != ',') {
				break
			}
			sc.index++
		}
		return result
	case Float:
		var result []float64
		for sc.err == nil {
			result = append(result, sc.parseInfoFloat())
			if (sc.index >= len(sc.data)) || (sc.data[sc.index] != ',') {
				break
			}
			sc.index++
		}
		return result
	default:
		var result []string
		for sc.err == nil {
			result = append(result, sc.readUntilBytes(endOfInfoValue))
			if (sc.index >= len(sc.data)) || (sc.data[sc.index] != ',') {
				break
			}
			sc.index++
		}
		return result
	}
}

var endOfGenericInfoValue = []byte{';', '\t'}

// doInfo parses the INFO column. Unlike the fixed-column parsers it
// leaves a trailing tabulator unconsumed, because INFO may be the last
// column of the line.
func (sc *StringScanner) doInfo(vp *VariantParser) (result utils.SmallMap) {
	if (sc.err != nil) || (sc.index >= len(sc.data)) {
		return nil
	}
	if sc.data[sc.index] == '.' {
		if next := sc.index + 1; (next >= len(sc.data)) || (sc.data[next] == '\t') {
			sc.index = next
			return nil
		}
	}
	for {
		key := utils.Intern(sc.readUntilBytes(endOfInfoKey))
		var value interface{}
		if info, ok := vp.infos[key]; ok {
			value = sc.parseInfoValue(info)
		} else if (sc.index < len(sc.data)) && (sc.data[sc.index] == '=') {
			sc.index++
			value = sc.readUntilBytes(endOfGenericInfoValue)
		} else {
			value = true
		}
		if sc.err != nil {
			return nil
		}
		result = append(result, utils.SmallMapEntry{Key: key, Value: value})
		if (sc.index >= len(sc.data)) || (sc.data[sc.index] != ';') {
			return result
		}
		sc.index++
	}
}

var formatKeySeparator = []byte{':', '\t'}

func (sc *StringScanner) doFormatKeys() (result []utils.Symbol) {
	for {
		str := sc.readUntilBytes(formatKeySeparator)
		if sc.err != nil {
			return nil
		}
		result = append(result, utils.Intern(str))
		if (sc.index >= len(sc.data)) || (sc.data[sc.index] != ':') {
			return result
		}
		sc.index++
	}
}

// A columnBuilder accumulates one FORMAT field's values across the
// samples of a record.
type columnBuilder interface {
	parseField(sc *StringScanner)
	missingField()
	finish() interface{}
}

var endOfFormatValue = []byte{',', ':', '\t'}

type intColumnBuilder struct{ col Column[int32] }

func (b *intColumnBuilder) parseField(sc *StringScanner) {
	for {
		token := sc.readUntilBytes(endOfFormatValue)
		if token == "." || token == "" {
			b.col.Data = append(b.col.Data, MissingInt32)
		} else {
			i, err := strconv.ParseInt(token, 10, 32)
			if (err != nil) && (sc.err == nil) {
				sc.err = err
			}
			b.col.Data = append(b.col.Data, int32(i))
		}
		if (sc.index >= len(sc.data)) || (sc.data[sc.index] != ',') {
			break
		}
		sc.index++
	}
	b.col.Delim = append(b.col.Delim, len(b.col.Data))
}

func (b *intColumnBuilder) missingField() {
	b.col.Data = append(b.col.Data, MissingInt32)
	b.col.Delim = append(b.col.Delim, len(b.col.Data))
}

func (b *intColumnBuilder) finish() interface{} {
	return NarrowIntColumn(&b.col)
}

type floatColumnBuilder struct{ col Column[float64] }

func (b *floatColumnBuilder) parseField(sc *StringScanner) {
	for {
		token := sc.readUntilBytes(endOfFormatValue)
		if token == "." || token == "" {
			b.col.Data = append(b.col.Data, MissingFloat)
		} else {
			f, err := strconv.ParseFloat(token, 64)
			if (err != nil) && (sc.err == nil) {
				sc.err = err
			}
			b.col.Data = append(b.col.Data, f)
		}
		if (sc.index >= len(sc.data)) || (sc.data[sc.index] != ',') {
			break
		}
		sc.index++
	}
	b.col.Delim = append(b.col.Delim, len(b.col.Data))
}

func (b *floatColumnBuilder) missingField() {
	b.col.Data = append(b.col.Data, MissingFloat)
	b.col.Delim = append(b.col.Delim, len(b.col.Data))
}

func (b *floatColumnBuilder) finish() interface{} {
	return &b.col
}

type stringColumnBuilder struct{ col Column[string] }

func (b *stringColumnBuilder) parseField(sc *StringScanner) {
	for {
		b.col.Data = append(b.col.Data, sc.readUntilBytes(endOfFormatValue))
		if (sc.index >= len(sc.data)) || (sc.data[sc.index] != ',') {
			break
		}
		sc.index++
	}
	b.col.Delim = append(b.col.Delim, len(b.col.Data))
}

func (b *stringColumnBuilder) missingField() {
	b.col.Data = append(b.col.Data, ".")
	b.col.Delim = append(b.col.Delim, len(b.col.Data))
}

func (b *stringColumnBuilder) finish() interface{} {
	return &b.col
}

func (vp *VariantParser) newColumnBuilder(key utils.Symbol) columnBuilder {
	if format, ok := vp.formats[key]; ok {
		switch format.Type {
		case Integer:
			return &intColumnBuilder{col: Column[int32]{Delim: []int{0}}}
		case Float:
			return &floatColumnBuilder{col: Column[float64]{Delim: []int{0}}}
		}
	}
	return &stringColumnBuilder{col: Column[string]{Delim: []int{0}}}
}

// ParseVariant parses a VCF variant line
func (sc *StringScanner) ParseVariant(vp *VariantParser) *Variant {
	var variant Variant
	variant.Chrom = sc.doString()
	variant.Pos = sc.doInt32()
	variant.ID = sc.doStringList(idSeparator)
	variant.Ref = sc.doString()
	variant.Alt = sc.doStringList(altSeparator)
	variant.Qual = sc.doFloat()
	variant.Filter = sc.doFilter()
	variant.Info = sc.doInfo(vp)
	if vp.NSamples > 0 && sc.err == nil {
		sc.scanChar('\t')
		formatKeys := sc.doFormatKeys()
		builders := make([]columnBuilder, len(formatKeys))
		for j, key := range formatKeys {
			builders[j] = vp.newColumnBuilder(key)
		}
		for i := 0; i < vp.NSamples; i++ {
			sc.scanChar('\t')
			for j := range builders {
				builders[j].parseField(sc)
				if sc.err != nil {
					return nil
				}
				if (sc.index >= len(sc.data)) || (sc.data[sc.index] != ':') {
					// remaining fields are omitted for this sample
					for k := j + 1; k < len(builders); k++ {
						builders[k].missingField()
					}
					break
				}
				sc.index++
			}
		}
		for j, key := range formatKeys {
			variant.Genotypes = append(variant.Genotypes, utils.SmallMapEntry{Key: key, Value: builders[j].finish()})
		}
	}
	if sc.err != nil {
		return nil
	}
	return &variant
}
