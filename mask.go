// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/guregu/null.v3"
)

// BuildMask returns a mask with one entry per sample: true where
// every one of the given vectors has a value. NaN counts as missing.
func BuildMask(nSamples int, vectors ...[]null.Float) ([]bool, error) {
	for i, v := range vectors {
		if len(v) != nSamples {
			return nil, &DimensionMismatchError{What: fmt.Sprintf("vector %d", i), Want: nSamples, Got: len(v)}
		}
	}
	mask := make([]bool, nSamples)
	for i := range mask {
		mask[i] = true
		for _, v := range vectors {
			if !v[i].Valid || math.IsNaN(v[i].Float64) {
				mask[i] = false
				break
			}
		}
	}
	return mask, nil
}

// CountMask returns the number of true entries.
func CountMask(mask []bool) int {
	n := 0
	for _, ok := range mask {
		if ok {
			n++
		}
	}
	return n
}

// ExtractDense returns the values at the masked positions of v, in
// order. It is an error for a masked position to have no value.
func ExtractDense(v []null.Float, mask []bool) ([]float64, error) {
	if len(v) != len(mask) {
		return nil, &DimensionMismatchError{What: "vector", Want: len(mask), Got: len(v)}
	}
	out := make([]float64, 0, CountMask(mask))
	for i, ok := range mask {
		if !ok {
			continue
		}
		if !v[i].Valid {
			return nil, &TypeError{Path: fmt.Sprintf("[%d]", i), Reason: "masked value is not numeric"}
		}
		out = append(out, v[i].Float64)
	}
	return out, nil
}

// CovariateMatrix returns an n×k matrix whose columns are the masked
// values of the k covariates, where n is the number of true entries
// in mask. It returns nil if there are no covariates.
func CovariateMatrix(covariates [][]null.Float, mask []bool) (*mat.Dense, error) {
	if len(covariates) == 0 {
		return nil, nil
	}
	n := CountMask(mask)
	if n == 0 {
		return nil, &DimensionMismatchError{What: "masked samples", Want: 1, Got: 0}
	}
	cov := mat.NewDense(n, len(covariates), nil)
	for j, v := range covariates {
		col, err := ExtractDense(v, mask)
		if err != nil {
			return nil, fmt.Errorf("covariate %d: %w", j, err)
		}
		cov.SetCol(j, col)
	}
	return cov, nil
}
