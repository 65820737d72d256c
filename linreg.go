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
	"time"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
	"gopkg.in/guregu/null.v3"
)

// LinRegResult is the fitted genotype effect for one variant.
type LinRegResult struct {
	Beta   float64
	SE     float64
	TStat  float64
	PValue float64
}

// VariantResult is the regression result for one variant. Result is
// nil if the variant could not be fitted (no called genotypes,
// constant genotype, or a singular design).
type VariantResult struct {
	Variant Variant
	Result  *LinRegResult
}

var linregSignature = Struct(
	Field{Name: "beta", Sig: Leaf(KindDouble)},
	Field{Name: "se", Sig: Leaf(KindDouble)},
	Field{Name: "tstat", Sig: Leaf(KindDouble)},
	Field{Name: "pval", Sig: Leaf(KindDouble)},
)

func (r *LinRegResult) annotations() Annotations {
	return Annotations{"beta": r.Beta, "se": r.SE, "tstat": r.TStat, "pval": r.PValue}
}

// variantFilter selects the variants to be tested.
type variantFilter struct {
	minAC   int
	minAF   float64
	regions *RegionMask
}

func (vf variantFilter) keep(v Variant, ac float64, ncalled int) bool {
	if vf.regions != nil && !vf.regions.Contains(v) {
		return false
	}
	return ncalled > 0 && int(ac) >= vf.minAC && ac/float64(2*ncalled) >= vf.minAF
}

// imputedDosages returns the per-sample dosages of run, with missing
// calls replaced by the mean dosage of the called samples. It also
// returns the alternate allele count and the number of called
// samples, and whether the dosages are all equal.
func imputedDosages(run GenotypeRun, dst []float64) (dosage []float64, ac float64, ncalled int, constant bool, err error) {
	dosage, err = run.Dosages(dst)
	if err != nil {
		return
	}
	for _, x := range dosage {
		if !math.IsNaN(x) {
			ncalled++
			ac += x
		}
	}
	if ncalled == 0 {
		return dosage, 0, 0, true, nil
	}
	mean := ac / float64(ncalled)
	constant = true
	for i, x := range dosage {
		if math.IsNaN(x) {
			x = mean
			dosage[i] = x
		}
		if x != dosage[0] {
			constant = false
		}
	}
	return
}

// linearFitter fits y ~ 1 + dosage + covariates for each variant.
// Its fields are read-only once fitting starts.
type linearFitter struct {
	variantFilter
	y    []float64
	cov  *mat.Dense // n×ncov, or nil
	ncov int
}

// fitBuffers is per-goroutine scratch space.
type fitBuffers struct {
	dosage []float64
	x      *mat.Dense
	qr     mat.QR
	r      mat.Dense
	rinv   *mat.TriDense
	beta   *mat.VecDense
	fitted *mat.VecDense
}

func (f *linearFitter) newBuffers() *fitBuffers {
	n, p := len(f.y), 2+f.ncov
	buf := &fitBuffers{dosage: make([]float64, n)}
	if n == 0 {
		return buf
	}
	buf.x = mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		buf.x.Set(i, 0, 1)
		for j := 0; j < f.ncov; j++ {
			buf.x.Set(i, 2+j, f.cov.At(i, j))
		}
	}
	buf.rinv = mat.NewTriDense(p, mat.Upper, nil)
	buf.beta = mat.NewVecDense(p, nil)
	buf.fitted = mat.NewVecDense(n, nil)
	return buf
}

// fit returns the result for one variant, or nil if the variant
// cannot be fitted.
func (f *linearFitter) fit(v Variant, run GenotypeRun, buf *fitBuffers) (*LinRegResult, error) {
	n, p := len(f.y), 2+f.ncov
	if run.N != n {
		return nil, &DimensionMismatchError{What: "genotype run of " + v.String(), Want: n, Got: run.N}
	}
	dosage, ac, ncalled, constant, err := imputedDosages(run, buf.dosage)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", v, err)
	}
	if constant || !f.keep(v, ac, ncalled) {
		return nil, nil
	}
	df := n - p
	if df <= 0 {
		return nil, nil
	}

	buf.x.SetCol(1, dosage)
	buf.qr.Factorize(buf.x)
	buf.r.Reset()
	buf.qr.RTo(&buf.r)
	maxdiag := 0.0
	for j := 0; j < p; j++ {
		maxdiag = math.Max(maxdiag, math.Abs(buf.r.At(j, j)))
	}
	for j := 0; j < p; j++ {
		if math.Abs(buf.r.At(j, j)) <= 1e-10*maxdiag {
			return nil, nil
		}
	}
	if err := buf.qr.SolveVecTo(buf.beta, false, mat.NewVecDense(n, f.y)); err != nil {
		return nil, nil
	}
	buf.fitted.MulVec(buf.x, buf.beta)
	rss, tss := 0.0, 0.0
	ymean := stat.Mean(f.y, nil)
	for i, y := range f.y {
		d := y - buf.fitted.AtVec(i)
		rss += d * d
		tss += (y - ymean) * (y - ymean)
	}
	// Constant response, or residuals at rounding level.
	if tss == 0 || rss <= 1e-12*tss {
		return nil, nil
	}
	sigma2 := rss / float64(df)

	// diag((XᵀX)⁻¹) == row sums of squares of R⁻¹.
	r := mat.NewTriDense(p, mat.Upper, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			r.SetTri(i, j, buf.r.At(i, j))
		}
	}
	if err := buf.rinv.InverseTri(r); err != nil {
		return nil, nil
	}
	xtxinv11 := 0.0
	for j := 1; j < p; j++ {
		x := buf.rinv.At(1, j)
		xtxinv11 += x * x
	}

	beta := buf.beta.AtVec(1)
	se := math.Sqrt(sigma2 * xtxinv11)
	t := beta / se
	pval := 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}.Survival(math.Abs(t))
	if se == 0 || math.IsNaN(t) || math.IsInf(t, 0) || math.IsNaN(pval) {
		return nil, nil
	}
	return &LinRegResult{Beta: beta, SE: se, TStat: t, PValue: pval}, nil
}

// run fits every variant of m, fitting up to threads partitions
// concurrently. The samples of m must correspond to f.y.
func (f *linearFitter) run(ctx context.Context, m *Matrix, threads int) ([][]VariantResult, error) {
	if m.NumSamples() != len(f.y) {
		return nil, &DimensionMismatchError{What: "response", Want: m.NumSamples(), Got: len(f.y)}
	}
	if f.cov != nil {
		r, c := f.cov.Dims()
		if r != len(f.y) {
			return nil, &DimensionMismatchError{What: "covariate matrix", Want: len(f.y), Got: r}
		}
		f.ncov = c
	}
	if threads < 1 {
		threads = runtime.GOMAXPROCS(0)
	}
	results := make([][]VariantResult, len(m.Partitions))
	throttle := throttle{Max: threads}
	for pi, p := range m.Partitions {
		pi, p := pi, p
		throttle.GoContext(ctx, func() error {
			buf := f.newBuffers()
			out := make([]VariantResult, p.Len())
			for i := range out {
				v := p.Variant(i)
				res, err := f.fit(v, p.Run(i), buf)
				if err != nil {
					return err
				}
				out[i] = VariantResult{Variant: v, Result: res}
			}
			results[pi] = out
			return nil
		})
	}
	if err := throttle.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// FitLinear fits y ~ 1 + dosage + cov for every variant of m, where
// dosage is the number of non-reference alleles of each sample's
// call. Missing calls are replaced by the mean dosage of the called
// samples. y has one entry per sample of m, and cov (which may be
// nil) has one row per sample.
//
// The result has the same partitioning and variant order as m.
func FitLinear(ctx context.Context, m *Matrix, y []float64, cov *mat.Dense, threads int) ([][]VariantResult, error) {
	f := &linearFitter{y: y, cov: cov}
	return f.run(ctx, m, threads)
}

// LinRegOptions configure LinearRegression.
type LinRegOptions struct {
	// Response is the sample annotation path of the phenotype,
	// e.g., "sa.pheno.height".
	Response string
	// Covariates are sample annotation paths.
	Covariates []string
	// Root is the variant annotation path where results are
	// stored. Default "va.linreg".
	Root string
	// Threads is the maximum number of partitions fitted
	// concurrently.
	Threads int
	// Variants with fewer than MinAC non-reference alleles, or
	// an allele frequency below MinAF, among the samples used in
	// the regression get no result.
	MinAC int
	MinAF float64
	// If Regions is not nil, variants outside the given regions
	// get no result.
	Regions *RegionMask
}

// regressionInputs are the response and covariate vectors of a
// regression, restricted to the samples where all are defined.
type regressionInputs struct {
	mask     []bool
	filtered *Matrix
	y        []float64
	cov      *mat.Dense
	ncov     int
}

func prepareRegression(m *Matrix, response string, covariates []string) (*regressionInputs, error) {
	y, err := QuerySamples(m, response)
	if err != nil {
		return nil, err
	}
	covs := make([][]null.Float, len(covariates))
	for i, path := range covariates {
		covs[i], err = QuerySamples(m, path)
		if err != nil {
			return nil, err
		}
	}
	mask, err := BuildMask(m.NumSamples(), append([][]null.Float{y}, covs...)...)
	if err != nil {
		return nil, err
	}
	in := &regressionInputs{mask: mask, ncov: len(covs)}
	nkept := CountMask(mask)
	log.Infof("%d of %d samples have phenotype and covariates", nkept, m.NumSamples())
	in.filtered, err = m.FilterSamples(func(i int) bool { return mask[i] })
	if err != nil {
		return nil, err
	}
	in.y, err = ExtractDense(y, mask)
	if err != nil {
		return nil, err
	}
	if nkept > 0 {
		in.cov, err = CovariateMatrix(covs, mask)
		if err != nil {
			return nil, err
		}
	}
	return in, nil
}

func rootPath(root, dflt string) []string {
	if root == "" {
		root = dflt
	}
	return SplitPath(strings.TrimPrefix(root, "va."))
}

// LinearRegression fits a linear model of a sample phenotype on each
// variant's genotype dosage plus covariates, and returns m with the
// results stored in the variant annotations at opts.Root, as a
// struct with fields beta, se, tstat, and pval. Variants with no
// result have no annotation at opts.Root.
//
// Only samples that have the response and every covariate are used.
func LinearRegression(ctx context.Context, m *Matrix, opts LinRegOptions) (*Matrix, error) {
	starttime := time.Now()
	in, err := prepareRegression(m, opts.Response, opts.Covariates)
	if err != nil {
		return nil, err
	}
	f := &linearFitter{
		variantFilter: variantFilter{minAC: opts.MinAC, minAF: opts.MinAF, regions: opts.Regions},
		y:             in.y,
		cov:           in.cov,
		ncov:          in.ncov,
	}
	results, err := f.run(ctx, in.filtered, opts.Threads)
	if err != nil {
		return nil, err
	}
	values := make([][]VariantValue, len(results))
	fitted := 0
	for pi, part := range results {
		values[pi] = make([]VariantValue, len(part))
		for i, vr := range part {
			values[pi][i].Variant = vr.Variant
			if vr.Result != nil {
				values[pi][i].Value = vr.Result.annotations()
				fitted++
			}
		}
	}
	log.Infof("linear regression: fitted %d of %d variants in %v", fitted, m.NumVariants(), time.Since(starttime).Round(time.Millisecond))
	return m.ZipValues(values, linregSignature, rootPath(opts.Root, "va.linreg")...), nil
}
