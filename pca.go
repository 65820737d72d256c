// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strings"

	"github.com/james-bowman/nlp"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCA computes the top k principal components of the samples'
// standardized genotype dosages, and returns m with sample
// annotations root.PC1 ... root.PCk (default root "sa.pca"). The
// components are typically used as regression covariates.
func PCA(ctx context.Context, m *Matrix, k int, root string, threads int) (*Matrix, error) {
	nvariants, nsamples := m.NumVariants(), m.NumSamples()
	if k < 1 {
		return nil, fmt.Errorf("invalid number of components %d", k)
	} else if nsamples < 2 || nvariants < 1 {
		return nil, fmt.Errorf("cannot compute PCA with %d samples and %d variants", nsamples, nvariants)
	} else if k > nsamples || k > nvariants {
		return nil, fmt.Errorf("cannot compute %d components with %d samples and %d variants", k, nsamples, nvariants)
	}
	if threads < 1 {
		threads = runtime.GOMAXPROCS(0)
	}

	log.Printf("creating matrix: %d rows, %d cols", nvariants, nsamples)
	data := make([]float64, nvariants*nsamples)
	throttle := throttle{Max: threads}
	row := 0
	for _, p := range m.Partitions {
		p, row0 := p, row
		row += p.Len()
		throttle.GoContext(ctx, func() error {
			for i := 0; i < p.Len(); i++ {
				dosage := data[(row0+i)*nsamples : (row0+i+1)*nsamples]
				if _, err := p.Run(i).Dosages(dosage); err != nil {
					return fmt.Errorf("%s: %w", p.Variant(i), err)
				}
				standardize(dosage)
			}
			return nil
		})
	}
	if err := throttle.Wait(); err != nil {
		return nil, err
	}
	mtx := mat.NewDense(nvariants, nsamples, data)

	log.Print("fitting")
	transformer := nlp.NewPCA(k)
	transformer.Fit(mtx)
	log.Printf("transforming")
	pcs, err := transformer.Transform(mtx)
	if err != nil {
		return nil, err
	}
	pcs = pcs.T()

	path := SplitPath(strings.TrimPrefix(root, "sa."))
	if len(path) == 0 {
		path = []string{"pca"}
	}
	fields := make([]Field, k)
	for j := range fields {
		fields[j] = Field{Name: fmt.Sprintf("PC%d", j+1), Sig: Leaf(KindDouble)}
	}
	sig, insert := m.InsertSampleAnnotation(Struct(fields...), path...)
	sa := make([]Annotations, nsamples)
	for i := range sa {
		pc := Annotations{}
		for j, f := range fields {
			pc[f.Name] = pcs.At(i, j)
		}
		var old Annotations
		if i < len(m.SampleAnnotations) {
			old = m.SampleAnnotations[i]
		}
		sa[i] = insert(old, pc)
	}
	log.Print("done")
	return m.WithSampleAnnotations(sig, sa)
}

// standardize replaces missing values (NaN) with the mean, then
// rescales x to mean 0 and standard deviation 1. A constant x
// becomes all zeros.
func standardize(x []float64) {
	sum, n := 0.0, 0
	for _, v := range x {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		for i := range x {
			x[i] = 0
		}
		return
	}
	mean := sum / float64(n)
	for i, v := range x {
		if math.IsNaN(v) {
			x[i] = mean
		}
	}
	mean, std := stat.MeanStdDev(x, nil)
	if std == 0 || math.IsNaN(std) {
		std = 1
	}
	for i, v := range x {
		x[i] = (v - mean) / std
	}
}
