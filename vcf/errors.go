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

import "fmt"

// ErrorKind enumerates the fatal error conditions of the record
// pipeline. Every kind is raised synchronously at the record that
// triggered it; there is no per-record skip-and-continue policy.
type ErrorKind int

// The pipeline error kinds.
const (
	MissingAF ErrorKind = iota
	AFTypeMismatch
	AFLengthMismatch
	FieldLengthMismatch
	DiploidOrCardinalityMismatch
	MissingPL
	PLTypeMismatch
	FieldAlreadyPresent
	ADTypeMismatch
	ReaderError
	WriterError
)

var errorKindNames = map[ErrorKind]string{
	MissingAF:                    "MissingAF",
	AFTypeMismatch:               "AFTypeMismatch",
	AFLengthMismatch:             "AFLengthMismatch",
	FieldLengthMismatch:          "FieldLengthMismatch",
	DiploidOrCardinalityMismatch: "DiploidOrCardinalityMismatch",
	MissingPL:                    "MissingPL",
	PLTypeMismatch:               "PLTypeMismatch",
	FieldAlreadyPresent:          "FieldAlreadyPresent",
	ADTypeMismatch:               "ADTypeMismatch",
	ReaderError:                  "ReaderError",
	WriterError:                  "WriterError",
}

func (kind ErrorKind) String() string {
	if name, ok := errorKindNames[kind]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(kind))
}

// An Error is a fatal pipeline error carrying the number of the input
// record that triggered it. Records derived from the same input share
// its record number.
type Error struct {
	Kind     ErrorKind
	RecordNo int
	Message  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%v [record no: %d] %s", e.Kind, e.RecordNo, e.Message)
}

// NewError creates an Error of the given kind for the given input
// record number.
func NewError(kind ErrorKind, recordNo int, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, RecordNo: recordNo, Message: fmt.Sprintf(format, args...)}
}
