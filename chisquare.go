// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"
)

var chisquared = distuv.ChiSquared{K: 1}

// carrierChiSquare returns the Pearson chi-square statistic (1 df)
// and p-value for the 2x2 table of carrier status by case status. ok
// is false if a row or column of the table is empty (no carriers,
// all carriers, no cases, or no controls).
func carrierChiSquare(carrier, isCase []bool) (stat, pval float64, ok bool) {
	var obs [2][2]float64 // [carrier][case]
	for i, c := range isCase {
		x, y := 0, 0
		if carrier[i] {
			x = 1
		}
		if c {
			y = 1
		}
		obs[x][y]++
	}
	rows := [2]float64{obs[0][0] + obs[0][1], obs[1][0] + obs[1][1]}
	cols := [2]float64{obs[0][0] + obs[1][0], obs[0][1] + obs[1][1]}
	sz := rows[0] + rows[1]
	if rows[0] == 0 || rows[1] == 0 || cols[0] == 0 || cols[1] == 0 {
		return 0, 1, false
	}
	for x := range obs {
		for y := range obs[x] {
			exp := rows[x] * cols[y] / sz
			d := obs[x][y] - exp
			stat += d * d / exp
		}
	}
	return stat, 1 - chisquared.CDF(stat), true
}

var carrierSignature = Struct(
	Field{Name: "chi2", Sig: Leaf(KindDouble)},
	Field{Name: "pval", Sig: Leaf(KindDouble)},
)

// CarrierTestOptions configure CarrierTest. Fields have the same
// meaning as in LinRegOptions.
type CarrierTestOptions struct {
	Response string
	Root     string // default "va.carrier"
	Threads  int
	MinAC    int
	MinAF    float64
	Regions  *RegionMask
}

// CarrierTest tests each variant for association between carrying
// at least one alternate allele and a binary (0/1) sample phenotype,
// using a chi-square test. Variants where every called sample is a
// carrier, or none is, get no result. Samples with a missing call are left out
// of that variant's test. Results are stored at opts.Root as a
// struct with fields chi2 and pval.
func CarrierTest(ctx context.Context, m *Matrix, opts CarrierTestOptions) (*Matrix, error) {
	starttime := time.Now()
	in, err := prepareRegression(m, opts.Response, nil)
	if err != nil {
		return nil, err
	}
	isCase := make([]bool, len(in.y))
	for i, v := range in.y {
		if v != 0 && v != 1 {
			return nil, &TypeError{Path: fmt.Sprintf("response[%d]", i), Reason: fmt.Sprintf("carrier test requires 0/1 response, found %v", v)}
		}
		isCase[i] = v == 1
	}
	vf := variantFilter{minAC: opts.MinAC, minAF: opts.MinAF, regions: opts.Regions}
	threads := opts.Threads
	if threads < 1 {
		threads = runtime.GOMAXPROCS(0)
	}
	filtered := in.filtered
	values := make([][]VariantValue, len(filtered.Partitions))
	throttle := throttle{Max: threads}
	for pi, p := range filtered.Partitions {
		pi, p := pi, p
		throttle.GoContext(ctx, func() error {
			out := make([]VariantValue, p.Len())
			var dosage []float64
			carrier := make([]bool, 0, len(isCase))
			cases := make([]bool, 0, len(isCase))
			for i := range out {
				v := p.Variant(i)
				out[i].Variant = v
				var err error
				dosage, err = p.Run(i).Dosages(dosage)
				if err != nil {
					return fmt.Errorf("%s: %w", v, err)
				}
				carrier, cases = carrier[:0], cases[:0]
				ac := 0.0
				for j, x := range dosage {
					if math.IsNaN(x) {
						continue
					}
					ac += x
					carrier = append(carrier, x > 0)
					cases = append(cases, isCase[j])
				}
				if !vf.keep(v, ac, len(carrier)) {
					continue
				}
				if stat, pval, ok := carrierChiSquare(carrier, cases); ok {
					out[i].Value = Annotations{"chi2": stat, "pval": pval}
				}
			}
			values[pi] = out
			return nil
		})
	}
	if err := throttle.Wait(); err != nil {
		return nil, err
	}
	log.Infof("carrier test: %d variants in %v", m.NumVariants(), time.Since(starttime).Round(time.Millisecond))
	return m.ZipValues(values, carrierSignature, rootPath(opts.Root, "va.carrier")...), nil
}
