// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"math"
	"runtime"
	"time"

	"github.com/kshedden/statmodel/glm"
	"github.com/kshedden/statmodel/statmodel"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var glmConfig = &glm.Config{
	Family:         glm.NewFamily(glm.BinomialFamily),
	FitMethod:      "IRLS",
	ConcurrentIRLS: 1000,
	Log:            stdlog.New(io.Discard, "", 0),
}

// normalize rescales a to mean 0 and standard deviation 1. A
// constant series is only centered.
func normalize(a []float64) {
	mean, std := stat.MeanStdDev(a, nil)
	if std == 0 || math.IsNaN(std) {
		std = 1
	}
	for i, x := range a {
		a[i] = (x - mean) / std
	}
}

// LogRegResult is the likelihood ratio test result for one variant.
type LogRegResult struct {
	Beta   float64
	Chi2   float64
	PValue float64
}

var logregSignature = Struct(
	Field{Name: "beta", Sig: Leaf(KindDouble)},
	Field{Name: "chi2", Sig: Leaf(KindDouble)},
	Field{Name: "pval", Sig: Leaf(KindDouble)},
)

// logisticFitter compares, for each variant, the model
// outcome ~ 1 + covariates with outcome ~ dosage + 1 + covariates.
type logisticFitter struct {
	variantFilter
	names   []string
	data    [][]statmodel.Dtype // outcome, constants, covariates...
	logNull float64
}

func newLogisticFitter(y []float64, cov [][]float64) (*logisticFitter, error) {
	outcome := make([]statmodel.Dtype, len(y))
	constants := make([]statmodel.Dtype, len(y))
	for i, v := range y {
		if v != 0 && v != 1 {
			return nil, &TypeError{Path: fmt.Sprintf("response[%d]", i), Reason: fmt.Sprintf("logistic regression requires 0/1 response, found %v", v)}
		}
		outcome[i] = v
		constants[i] = 1
	}
	f := &logisticFitter{
		names: []string{"outcome", "constants"},
		data:  [][]statmodel.Dtype{outcome, constants},
	}
	for j, series := range cov {
		series = append([]float64(nil), series...)
		normalize(series)
		f.data = append(f.data, series)
		f.names = append(f.names, fmt.Sprintf("cov%d", j))
	}
	if len(y) == 0 {
		return f, nil
	}
	ll, err := f.loglike(f.data, f.names)
	if err != nil {
		return nil, fmt.Errorf("null model: %w", err)
	}
	f.logNull = ll
	return f, nil
}

// loglike fits data[0] ~ data[1:] and returns the log likelihood.
func (f *logisticFitter) loglike(data [][]statmodel.Dtype, names []string) (ll float64, err error) {
	defer func() {
		if e := recover(); e != nil {
			// typically "matrix singular or near-singular with condition number +Inf"
			err = fmt.Errorf("%v", e)
		}
	}()
	dataset := statmodel.NewDataset(data, names)
	model, err := glm.NewGLM(dataset, "outcome", names[1:], glmConfig)
	if err != nil {
		return 0, err
	}
	return model.Fit().LogLike(), nil
}

// fit returns the test result for one variant, or nil if it cannot be
// fitted.
func (f *logisticFitter) fit(v Variant, run GenotypeRun) (*LogRegResult, error) {
	n := len(f.data[0])
	if run.N != n {
		return nil, &DimensionMismatchError{What: "genotype run of " + v.String(), Want: n, Got: run.N}
	}
	// The dataset retains the dosage slice, so it is not reused.
	dosage, ac, ncalled, constant, err := imputedDosages(run, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", v, err)
	}
	if constant || !f.keep(v, ac, ncalled) {
		return nil, nil
	}
	data := append([][]statmodel.Dtype{f.data[0], dosage}, f.data[1:]...)
	names := append([]string{"outcome", "variant"}, f.names[1:]...)

	var params []float64
	var logComp float64
	func() {
		defer func() {
			if recover() != nil {
				logComp = math.NaN()
			}
		}()
		dataset := statmodel.NewDataset(data, names)
		model, e := glm.NewGLM(dataset, "outcome", names[1:], glmConfig)
		if e != nil {
			logComp = math.NaN()
			return
		}
		result := model.Fit()
		logComp = result.LogLike()
		params = result.Params()
	}()
	if math.IsNaN(logComp) || len(params) == 0 {
		return nil, nil
	}
	chi2 := -2 * (f.logNull - logComp)
	if chi2 < 0 {
		chi2 = 0
	}
	return &LogRegResult{
		Beta:   params[0],
		Chi2:   chi2,
		PValue: distuv.ChiSquared{K: 1}.Survival(chi2),
	}, nil
}

func (f *logisticFitter) run(ctx context.Context, m *Matrix, threads int) ([][]VariantValue, int, error) {
	if threads < 1 {
		threads = runtime.GOMAXPROCS(0)
	}
	values := make([][]VariantValue, len(m.Partitions))
	fitted := make([]int, len(m.Partitions))
	throttle := throttle{Max: threads}
	for pi, p := range m.Partitions {
		pi, p := pi, p
		throttle.GoContext(ctx, func() error {
			out := make([]VariantValue, p.Len())
			for i := range out {
				v := p.Variant(i)
				res, err := f.fit(v, p.Run(i))
				if err != nil {
					return err
				}
				out[i].Variant = v
				if res != nil {
					out[i].Value = Annotations{"beta": res.Beta, "chi2": res.Chi2, "pval": res.PValue}
					fitted[pi]++
				}
			}
			values[pi] = out
			return nil
		})
	}
	if err := throttle.Wait(); err != nil {
		return nil, 0, err
	}
	total := 0
	for _, n := range fitted {
		total += n
	}
	return values, total, nil
}

// LogRegOptions configure LogisticRegression. Fields have the same
// meaning as in LinRegOptions.
type LogRegOptions struct {
	Response   string
	Covariates []string
	Root       string // default "va.logreg"
	Threads    int
	MinAC      int
	MinAF      float64
	Regions    *RegionMask
}

// LogisticRegression tests each variant for association with a
// binary (0/1) sample phenotype using a likelihood ratio test, and
// returns m with the results stored in the variant annotations at
// opts.Root, as a struct with fields beta, chi2, and pval.
func LogisticRegression(ctx context.Context, m *Matrix, opts LogRegOptions) (*Matrix, error) {
	starttime := time.Now()
	in, err := prepareRegression(m, opts.Response, opts.Covariates)
	if err != nil {
		return nil, err
	}
	cov := make([][]float64, in.ncov)
	for j := range cov {
		cov[j] = make([]float64, len(in.y))
		if in.cov != nil {
			mat.Col(cov[j], j, in.cov)
		}
	}
	f, err := newLogisticFitter(in.y, cov)
	if err != nil {
		return nil, err
	}
	f.variantFilter = variantFilter{minAC: opts.MinAC, minAF: opts.MinAF, regions: opts.Regions}
	values, fitted, err := f.run(ctx, in.filtered, opts.Threads)
	if err != nil {
		return nil, err
	}
	log.Infof("logistic regression: fitted %d of %d variants in %v", fitted, m.NumVariants(), time.Since(starttime).Round(time.Millisecond))
	return m.ZipValues(values, logregSignature, rootPath(opts.Root, "va.logreg")...), nil
}
