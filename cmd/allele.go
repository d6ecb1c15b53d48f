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
	"flag"
	"log"
	"os"
	"runtime"

	"github.com/exascience/decovar/filters"
	"github.com/exascience/decovar/vcf"
)

// AlleleHelp is the help string for this command.
const AlleleHelp = "\nallele parameters:\n" +
	"decovar allele vcf-file\n" +
	"[--rare-af-thresh threshold]\n" +
	"[--split-by-length length]\n" +
	"[-L nr | --local-alleles nr]\n" +
	"[--keep-global-fields]\n" +
	"[--transform-all]\n" +
	"[-o output-file]\n" +
	"[-O a|b|u|z|v]\n" +
	"[-@ nr | --threads nr]\n" +
	"[-v | --verbose]\n" +
	"[--log-path path]\n"

// Allele implements the decovar allele command: removal of rare
// alleles, splitting of records by allele length, and local-allele
// projection, in that order.
func Allele() (err error) {
	var (
		rareAFThreshold  float64
		splitByLength    int
		localAlleles     int
		keepGlobalFields bool
		transformAll     bool
		output           string
		outputFormat     string
		nrOfThreads      int
		verbose          bool
		logPath          string
	)

	var flags flag.FlagSet

	flags.Float64Var(&rareAFThreshold, "rare-af-thresh", 0, "for multi-allelic records, remove alleles with AF < threshold (0 disables)")
	flags.IntVar(&splitByLength, "split-by-length", 0, "alleles up to this length stay in the record; longer ones are moved into a separate one (0 disables)")
	flags.IntVar(&localAlleles, "L", 0, "transform global alleles to local alleles for records with more than L alleles (0 disables)")
	flags.IntVar(&localAlleles, "local-alleles", 0, "same as -L")
	flags.BoolVar(&keepGlobalFields, "keep-global-fields", false, "keep the PL and AD fields in addition to LPL and LAD")
	flags.BoolVar(&transformAll, "transform-all", false, "also add LAA/LPL/LAD to records with at most L alleles, for a uniform schema")
	flags.StringVar(&output, "o", "-", "path to output file, or - for stdout")
	flags.StringVar(&outputFormat, "O", "a", "output format: compressed BCF (b), uncompressed BCF (u), compressed VCF (z), uncompressed VCF (v), or automatic detection (a)")
	flags.IntVar(&nrOfThreads, "@", 0, "maximum number of threads to use")
	flags.IntVar(&nrOfThreads, "threads", 0, "same as -@")
	flags.BoolVar(&verbose, "v", false, "print per-record diagnostics to stderr")
	flags.BoolVar(&verbose, "verbose", false, "same as -v")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(flags, 3, AlleleHelp)

	input := getFilename(os.Args[2], AlleleHelp)

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
	if rareAFThreshold < 0 || rareAFThreshold > 1 {
		log.Println("Error: --rare-af-thresh must lie in [0, 1].")
		sanityChecksFailed = true
	}
	if splitByLength < 0 {
		log.Println("Error: --split-by-length must not be negative.")
		sanityChecksFailed = true
	}
	if localAlleles < 0 || localAlleles > 127 {
		log.Println("Error: -L must lie in [0, 127].")
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
		RareAFThreshold:  rareAFThreshold,
		SplitByLength:    splitByLength,
		LocalAlleles:     localAlleles,
		KeepGlobalFields: keepGlobalFields,
		TransformAll:     transformAll,
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

	outHdr := hdr
	if localAlleles > 0 {
		outHdr = filters.LocaliseHeader(hdr)
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
		filters.RemoveRareAlleles(opts),
		filters.SplitByLength(opts),
		filters.LocaliseAlleles(opts),
	})
}
