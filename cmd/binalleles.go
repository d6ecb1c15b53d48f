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

package cmd

import (
	"errors"
	"flag"
	"log"
	"os"
	"runtime"

	"github.com/exascience/decovar/filters"
	"github.com/exascience/decovar/vcf"
)

// BinAllelesHelp is the help string for this command.
const BinAllelesHelp = "\nbinalleles parameters:\n" +
	"decovar binalleles vcf-file\n" +
	"[--bin-by-length]\n" +
	"[--same-length-splits]\n" +
	"[-o output-file]\n" +
	"[-O a|b|u|z|v]\n" +
	"[-@ nr | --threads nr]\n" +
	"[-v | --verbose]\n" +
	"[--log-path path]\n"

// BinAlleles implements the decovar binalleles command: every
// n-allelic record is collapsed into up to n-1 biallelic records whose
// REF and ALT each pool a group of original alleles by length.
func BinAlleles() (err error) {
	var (
		binByLength      bool
		sameLengthSplits bool
		output           string
		outputFormat     string
		nrOfThreads      int
		verbose          bool
		logPath          string
	)

	var flags flag.FlagSet

	flags.BoolVar(&binByLength, "bin-by-length", false, "activate binning of alleles by length")
	flags.BoolVar(&sameLengthSplits, "same-length-splits", false, "also write records whose split falls between alleles of the same length")
	flags.StringVar(&output, "o", "-", "path to output file, or - for stdout")
	flags.StringVar(&outputFormat, "O", "a", "output format: compressed BCF (b), uncompressed BCF (u), compressed VCF (z), uncompressed VCF (v), or automatic detection (a)")
	flags.IntVar(&nrOfThreads, "@", 0, "maximum number of threads to use")
	flags.IntVar(&nrOfThreads, "threads", 0, "same as -@")
	flags.BoolVar(&verbose, "v", false, "print per-record diagnostics to stderr")
	flags.BoolVar(&verbose, "verbose", false, "same as -v")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(flags, 3, BinAllelesHelp)

	input := getFilename(os.Args[2], BinAllelesHelp)

	setLogOutput(logPath)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", input) {
		sanityChecksFailed = true
	}
	if !checkCreate("-o", output) {
		sanityChecksFailed = true
	}
	if !checkOutputFormat(outputFormat) {
		sanityChecksFailed = true
	}
	if nrOfThreads < 0 {
		log.Println("Error: Invalid number of threads.")
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		os.Exit(1)
	}

	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
	}

	opts := &filters.Options{
		BinByLength:      binByLength,
		SameLengthSplits: sameLengthSplits,
		Verbose:          verbose,
	}

	in, err := vcf.Open(input, nrOfThreads)
	if err != nil {
		return err
	}
	defer func() {
		nerr := in.Close()
		if err == nil {
			err = nerr
		}
	}()

	hdr, _, err := vcf.ParseHeader(in.Reader)
	if err != nil {
		return err
	}
	if hdr.NSamples() < 1 {
		return errors.New("VCF file contains no samples")
	}

	outHdr := hdr
	if binByLength {
		outHdr = filters.BinAllelesHeader(hdr)
	}

	out, err := vcf.Create(output, outputFormat[0], nrOfThreads)
	if err != nil {
		return err
	}
	defer func() {
		nerr := out.Close()
		if err == nil {
			err = nerr
		}
	}()

	if err = out.FormatHeader(outHdr); err != nil {
		return err
	}

	return in.RunPipeline(out, hdr, []vcf.Transform{
		filters.BinByLength(opts),
	})
}
