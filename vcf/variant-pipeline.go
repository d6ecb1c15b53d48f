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
	"io"
)

type (
	// An Emit function passes a record to the next pipeline stage. The
	// record number is the monotonic index of the input record the
	// emitted record derives from; fan-out stages emit several records
	// under the same number. Emit writes through synchronously, so a
	// stage may reuse an emitted record's buffers once Emit returns.
	Emit func(no int, v *Variant) error

	// A VariantTransform receives an input record, which it can modify
	// in place, and emits zero or more records downstream. Emitting
	// nothing drops the record; returning a non-nil error aborts the
	// pipeline without emitting.
	VariantTransform func(no int, v *Variant, emit Emit) error

	// A Transform receives a Header and returns a VariantTransform or
	// nil.
	Transform func(hdr *Header) VariantTransform
)

// ComposeTransforms takes a Header and a slice of Transform functions,
// and successively calls these functions to generate the corresponding
// VariantTransform stages. The stages are chained so that every record
// a stage emits is handed to the next stage before the stage resumes.
// ComposeTransforms may return nil if all VariantTransforms are nil.
func ComposeTransforms(hdr *Header, transforms []Transform) VariantTransform {
	var stages []VariantTransform
	for _, t := range transforms {
		if t != nil {
			if stage := t(hdr); stage != nil {
				stages = append(stages, stage)
			}
		}
	}
	if len(stages) == 0 {
		return nil
	}
	composed := stages[len(stages)-1]
	for i := len(stages) - 2; i >= 0; i-- {
		outer, inner := stages[i], composed
		composed = func(no int, v *Variant, emit Emit) error {
			return outer(no, v, func(no int, u *Variant) error {
				return inner(no, u, emit)
			})
		}
	}
	return composed
}

// RunPipeline pulls variant lines from the input file, assigns each
// record its monotonic input record number, applies the composed
// transforms, and formats every emitted record into the output file in
// emission order. The header must already have been written to the
// output. One format buffer is reused across all records.
//
// The first transform error aborts the pipeline; the offending record
// is not written.
func (input *InputFile) RunPipeline(output *OutputFile, hdr *Header, transforms []Transform) error {
	vp := hdr.NewVariantParser()
	chain := ComposeTransforms(hdr, transforms)
	var sc StringScanner
	var buf []byte
	write := func(no int, v *Variant) error {
		var err error
		if buf, err = v.Format(buf[:0]); err != nil {
			return NewError(WriterError, no, "%v while formatting a variant", err)
		}
		if _, err = output.Write(buf); err != nil {
			return NewError(WriterError, no, "%v while writing a variant", err)
		}
		return nil
	}
	for no := 0; ; no++ {
		line, err := input.ReadString('\n')
		if err == io.EOF {
			if len(line) == 0 {
				return nil
			}
		} else if err != nil {
			return NewError(ReaderError, no, "%v while reading a variant line", err)
		} else {
			line = line[:len(line)-1]
			if len(line) == 0 {
				return nil
			}
		}
		sc.Reset(line)
		v := sc.ParseVariant(vp)
		if v == nil {
			return NewError(ReaderError, no, "%v while parsing a variant line", sc.Err())
		}
		if chain == nil {
			err = write(no, v)
		} else {
			err = chain(no, v, write)
		}
		if err != nil {
			return err
		}
	}
}
