// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"bufio"
	"fmt"
	"io"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// SimOptions configure SimulateVCF.
type SimOptions struct {
	Samples     int
	Variants    int
	Populations int     // default 1
	Fst         float64 // default 0.1
	Seed        uint64
	// Missing is the probability of a genotype call being
	// written as "./.".
	Missing float64
}

// SimSample describes a simulated sample.
type SimSample struct {
	ID         string
	Population int
}

// SimulateVCF writes a VCF file with genotypes drawn from the
// Balding-Nichols model: each variant has an ancestral allele
// frequency drawn uniformly from [0.1, 0.9], and each population's
// allele frequency is drawn from a beta distribution around it with
// the given Fst. Samples are assigned to populations uniformly at
// random.
func SimulateVCF(w io.Writer, opts SimOptions) ([]SimSample, error) {
	if opts.Samples < 1 || opts.Variants < 0 {
		return nil, fmt.Errorf("invalid size: %d samples, %d variants", opts.Samples, opts.Variants)
	}
	if opts.Populations < 1 {
		opts.Populations = 1
	}
	if opts.Fst <= 0 || opts.Fst >= 1 {
		opts.Fst = 0.1
	}
	src := rand.NewSource(opts.Seed)
	rnd := rand.New(src)

	samples := make([]SimSample, opts.Samples)
	for i := range samples {
		samples[i] = SimSample{ID: fmt.Sprintf("sample%d", i+1), Population: rnd.Intn(opts.Populations)}
	}

	bufw := bufio.NewWriter(w)
	fmt.Fprintln(bufw, "##fileformat=VCFv4.2")
	fmt.Fprintln(bufw, `##INFO=<ID=AF,Number=A,Type=Float,Description="Ancestral allele frequency">`)
	fmt.Fprintln(bufw, `##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">`)
	fmt.Fprint(bufw, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT")
	for _, s := range samples {
		fmt.Fprint(bufw, "\t", s.ID)
	}
	fmt.Fprintln(bufw)

	bases := []string{"A", "C", "G", "T"}
	popAF := make([]float64, opts.Populations)
	scale := (1 - opts.Fst) / opts.Fst
	for v := 0; v < opts.Variants; v++ {
		p := 0.1 + 0.8*rnd.Float64()
		for k := range popAF {
			popAF[k] = distuv.Beta{Alpha: p * scale, Beta: (1 - p) * scale, Src: src}.Rand()
		}
		ref := rnd.Intn(4)
		alt := (ref + 1 + rnd.Intn(3)) % 4
		fmt.Fprintf(bufw, "1\t%d\t.\t%s\t%s\t.\tPASS\tAF=%.4f\tGT", 1000+v*100, bases[ref], bases[alt], p)
		for _, s := range samples {
			if opts.Missing > 0 && rnd.Float64() < opts.Missing {
				bufw.WriteString("\t./.")
				continue
			}
			af := popAF[s.Population]
			a, b := 0, 0
			if rnd.Float64() < af {
				a = 1
			}
			if rnd.Float64() < af {
				b = 1
			}
			fmt.Fprintf(bufw, "\t%d/%d", a, b)
		}
		fmt.Fprintln(bufw)
	}
	return samples, bufw.Flush()
}
