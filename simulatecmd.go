// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"bufio"
	"flag"
	"fmt"
	"io"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

type simulatecmd struct{}

func (cmd *simulatecmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	cfg, err := LoadConfig()
	if err != nil {
		return 2
	}
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	setup := commonFlags(flags, cfg)
	var opts SimOptions
	flags.IntVar(&opts.Samples, "samples", 100, "number of samples")
	flags.IntVar(&opts.Variants, "variants", 1000, "number of variants")
	flags.IntVar(&opts.Populations, "populations", 1, "number of populations")
	flags.Float64Var(&opts.Fst, "fst", 0.1, "fixation index")
	flags.Uint64Var(&opts.Seed, "seed", 0, "random seed")
	flags.Float64Var(&opts.Missing, "missing", 0, "probability of a missing call")
	outputFilename := flags.String("o", "-", "output VCF `file`")
	samplesFilename := flags.String("samples-out", "", "also write a sample table with population and simulated phenotypes to `file`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if flags.NArg() > 0 {
		err = fmt.Errorf("unexpected arguments: %q", flags.Args())
		return 2
	}
	if err = setup(); err != nil {
		return 2
	}

	output, err := createOutput(*outputFilename, stdout)
	if err != nil {
		return 1
	}
	defer output.Close()
	samples, err := SimulateVCF(output, opts)
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	if *samplesFilename != "" {
		var f io.WriteCloser
		f, err = createOutput(*samplesFilename, stdout)
		if err != nil {
			return 1
		}
		defer f.Close()
		err = writeSimulatedPhenotypes(f, samples, opts.Seed)
		if err != nil {
			return 1
		}
		err = f.Close()
		if err != nil {
			return 1
		}
	}
	return 0
}

// writeSimulatedPhenotypes writes a sample table with columns Sample,
// pop, pheno (population index plus standard normal noise), and
// isCase (pheno above the population index).
func writeSimulatedPhenotypes(w io.Writer, samples []SimSample, seed uint64) error {
	noise := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(seed + 1)}
	bufw := bufio.NewWriter(w)
	fmt.Fprintln(bufw, "Sample\tpop\tpheno\tisCase")
	for _, s := range samples {
		e := noise.Rand()
		isCase := 0
		if e > 0 {
			isCase = 1
		}
		fmt.Fprintf(bufw, "%s\t%d\t%.6f\t%d\n", s.ID, s.Population, float64(s.Population)+e, isCase)
	}
	return bufw.Flush()
}
