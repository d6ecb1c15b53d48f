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
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/exascience/decovar/utils/bgzf"
)

// The possible file extensions for VCF or BCF files, or bgzf-compressed VCF files
const (
	VcfExt = ".vcf"
	BcfExt = ".bcf"
	GzExt  = ".gz"
)

// The output format letters accepted by the -O option: automatic
// detection from the filename, BCF with bgzf compression, uncompressed
// BCF, VCF with bgzf compression, and uncompressed VCF text.
const (
	FormatAuto            = byte('a')
	FormatBcf             = byte('b')
	FormatUncompressedBcf = byte('u')
	FormatCompressedVcf   = byte('z')
	FormatVcf             = byte('v')
)

// An InputFile represents a VCF or BCF file for input.
type InputFile struct {
	rc io.ReadCloser
	bg *bgzf.Reader
	*bufio.Reader
	*exec.Cmd
}

// An OutputFile represents a VCF or BCF file for output.
type OutputFile struct {
	wc io.WriteCloser
	bg *bgzf.Writer
	*bufio.Writer
	*exec.Cmd
}

func bcftoolsThreads(threads int) string {
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	return strconv.FormatInt(int64(threads), 10)
}

// Open a VCF file for input.
//
// If the name is "-" or "/dev/stdin", the input is read from os.Stdin,
// with transparent bgzf decompression if the stream starts like a gzip
// file.
//
// If the filename extension is .bcf, bcftools view is used for input;
// bcftools must be visible in the directories named by the PATH
// environment variable. If the extension is .gz, the native parallel
// bgzf reader is used. Anything else is read as plain VCF text.
func Open(name string, threads int) (*InputFile, error) {
	if name == "-" || name == "/dev/stdin" {
		buf := bufio.NewReader(os.Stdin)
		if ok, err := bgzf.IsGzip(buf); err != nil {
			return nil, err
		} else if ok {
			bg, err := bgzf.NewReader(buf)
			if err != nil {
				return nil, err
			}
			return &InputFile{os.Stdin, bg, bufio.NewReader(bg), nil}, nil
		}
		return &InputFile{os.Stdin, nil, buf, nil}, nil
	}
	switch filepath.Ext(name) {
	case BcfExt:
		if _, err := os.Stat(name); err != nil {
			return nil, err
		}
		cmd := exec.Command("bcftools", "view", "--threads", bcftoolsThreads(threads), name)
		outPipe, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		return &InputFile{outPipe, nil, bufio.NewReader(outPipe), cmd}, nil
	case GzExt:
		file, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		bg, err := bgzf.NewReader(bufio.NewReader(file))
		if err != nil {
			_ = file.Close()
			return nil, err
		}
		return &InputFile{file, bg, bufio.NewReader(bg), nil}, nil
	default:
		file, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		return &InputFile{file, nil, bufio.NewReader(file), nil}, nil
	}
}

// resolveFormat maps the automatic format letter to a concrete one
// based on the output filename. Output to stdout defaults to plain VCF
// text.
func resolveFormat(name string, format byte) byte {
	if format != FormatAuto {
		return format
	}
	if name == "-" || name == "/dev/stdout" {
		return FormatVcf
	}
	switch filepath.Ext(name) {
	case BcfExt:
		return FormatBcf
	case GzExt:
		return FormatCompressedVcf
	default:
		return FormatVcf
	}
}

// Create a VCF or BCF file for output.
//
// The format letter selects the output representation; FormatAuto
// derives it from the filename extension. BCF output (compressed or
// uncompressed) pipes through bcftools view, which must be visible in
// the directories named by the PATH environment variable. Compressed
// VCF uses the native parallel bgzf writer.
//
// If the name is "-" or "/dev/stdout", the output is written to
// os.Stdout.
func Create(name string, format byte, threads int) (*OutputFile, error) {
	switch format = resolveFormat(name, format); format {
	case FormatBcf, FormatUncompressedBcf:
		args := []string{"view"}
		if format == FormatBcf {
			args = append(args, "-Ob")
		} else {
			args = append(args, "-Ou")
		}
		args = append(args, "--threads", bcftoolsThreads(threads))
		if name != "-" && name != "/dev/stdout" {
			args = append(args, "-o", name)
		}
		args = append(args, "-")
		cmd := exec.Command("bcftools", args...)
		cmd.Stdout = os.Stdout
		inPipe, err := cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		return &OutputFile{inPipe, nil, bufio.NewWriter(inPipe), cmd}, nil
	case FormatCompressedVcf:
		var sink io.WriteCloser
		if name == "-" || name == "/dev/stdout" {
			sink = os.Stdout
		} else {
			file, err := os.Create(name)
			if err != nil {
				return nil, err
			}
			sink = file
		}
		bg := bgzf.NewWriter(sink, gzip.DefaultCompression)
		return &OutputFile{sink, bg, bufio.NewWriter(bg), nil}, nil
	case FormatVcf:
		if name == "-" || name == "/dev/stdout" {
			return &OutputFile{os.Stdout, nil, bufio.NewWriter(os.Stdout), nil}, nil
		}
		file, err := os.Create(name)
		if err != nil {
			return nil, err
		}
		return &OutputFile{file, nil, bufio.NewWriter(file), nil}, nil
	default:
		return nil, fmt.Errorf("invalid output format %c", format)
	}
}

// FormatHeader writes the VCF header to the output file. It must be
// called once before the first variant is written.
func (output *OutputFile) FormatHeader(hdr *Header) error {
	return hdr.Format(output.Writer)
}

// Close the VCF input file. If bcftools view is used for input, wait
// for its process to finish.
func (input *InputFile) Close() error {
	if input.bg != nil {
		if err := input.bg.Close(); err != nil {
			return err
		}
	}
	if input.rc != os.Stdin {
		if err := input.rc.Close(); err != nil {
			return err
		}
	}
	if input.Cmd != nil {
		if err := input.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// Close the VCF output file. If bcftools view is used for output, wait
// for its process to finish.
func (output *OutputFile) Close() error {
	if err := output.Flush(); err != nil {
		return err
	}
	if output.bg != nil {
		if err := output.bg.Close(); err != nil {
			return err
		}
	}
	if output.wc != os.Stdout {
		if err := output.wc.Close(); err != nil {
			return err
		}
	}
	if output.Cmd != nil {
		if err := output.Wait(); err != nil {
			return err
		}
	}
	return nil
}
