// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"context"
	"fmt"
	"math"
	"strings"

	"gopkg.in/check.v1"
)

type glmSuite struct{}

var _ = check.Suite(&glmSuite{})

// 20 samples: the first 10 have genotype 0/0 (3 cases), the rest
// have 0/1 (7 cases).
func glmTestData() (sampleIDs []string, genotypes string, y []interface{}) {
	var gts []string
	for i := 0; i < 20; i++ {
		sampleIDs = append(sampleIDs, fmt.Sprintf("sample%d", i+1))
		if i < 10 {
			gts = append(gts, "0/0")
		} else {
			gts = append(gts, "0/1")
		}
		if i%10 < 3 || (i >= 10 && i%10 < 7) {
			y = append(y, 1.0)
		} else {
			y = append(y, 0.0)
		}
	}
	return sampleIDs, strings.Join(gts, " "), y
}

func (s *glmSuite) TestLikelihoodRatio(c *check.C) {
	sampleIDs, gts, y := glmTestData()
	m := testMatrix(c, sampleIDs, []string{
		"1:100:A:G " + gts,
		"1:200:C:T " + strings.Repeat("0/0 ", 20),
	})
	m = withSampleValues(c, m, "isCase", y...)
	out, err := LogisticRegression(context.Background(), m, LogRegOptions{Response: "sa.isCase"})
	c.Assert(err, check.IsNil)
	sig, ok := out.VariantSignature.Lookup("logreg", "chi2")
	c.Check(ok, check.Equals, true)
	c.Check(sig.Kind, check.Equals, KindDouble)

	// With a single binary predictor, the fitted probabilities
	// are the case fractions of the two genotype groups.
	llFull := 20 * (0.3*math.Log(0.3) + 0.7*math.Log(0.7))
	llNull := 20 * math.Log(0.5)
	wantChi2 := 2 * (llFull - llNull)
	wantBeta := 2 * math.Log(7.0/3.0)

	rec := out.Partitions[0].Record(0)
	beta, ok := rec.Annotations.Get("logreg", "beta")
	c.Assert(ok, check.Equals, true)
	chi2, _ := rec.Annotations.Get("logreg", "chi2")
	pval, _ := rec.Annotations.Get("logreg", "pval")
	c.Check(math.Abs(beta.(float64)-wantBeta) < 1e-4, check.Equals, true, check.Commentf("beta %v want %v", beta, wantBeta))
	c.Check(math.Abs(chi2.(float64)-wantChi2) < 1e-4, check.Equals, true, check.Commentf("chi2 %v want %v", chi2, wantChi2))
	c.Check(pval.(float64) > 0.05 && pval.(float64) < 0.1, check.Equals, true, check.Commentf("pval %v", pval))

	_, ok = out.Partitions[0].Record(1).Annotations.Get("logreg")
	c.Check(ok, check.Equals, false)
}

func (s *glmSuite) TestCovariates(c *check.C) {
	sampleIDs, gts, y := glmTestData()
	m := testMatrix(c, sampleIDs, []string{"1:100:A:G " + gts})
	m = withSampleValues(c, m, "isCase", y...)
	var cov []interface{}
	for i := range sampleIDs {
		cov = append(cov, float64((i*7)%5))
	}
	m = withSampleValues(c, m, "age", cov...)
	out, err := LogisticRegression(context.Background(), m, LogRegOptions{
		Response:   "sa.isCase",
		Covariates: []string{"sa.age"},
		Root:       "va.assoc",
		Threads:    1,
	})
	c.Assert(err, check.IsNil)
	pval, ok := out.Partitions[0].Record(0).Annotations.Get("assoc", "pval")
	c.Assert(ok, check.Equals, true)
	c.Check(pval.(float64) > 0 && pval.(float64) < 1, check.Equals, true, check.Commentf("pval %v", pval))
	beta, _ := out.Partitions[0].Record(0).Annotations.Get("assoc", "beta")
	c.Check(beta.(float64) > 0, check.Equals, true)
}

func (s *glmSuite) TestNonBinaryResponse(c *check.C) {
	m := testMatrix(c, []string{"s1", "s2", "s3"}, []string{"1:100:A:G 0/0 0/1 1/1"})
	m = withSampleValues(c, m, "y", 0.0, 1.0, 2.0)
	_, err := LogisticRegression(context.Background(), m, LogRegOptions{Response: "y"})
	c.Check(err, check.FitsTypeOf, &TypeError{})
	c.Check(err, check.ErrorMatches, `type error at response\[2\]: .*found 2`)
}

func (s *glmSuite) TestNormalize(c *check.C) {
	a := []float64{1, 2, 3}
	normalize(a)
	c.Check(a, check.DeepEquals, []float64{-1, 0, 1})
	a = []float64{5, 5}
	normalize(a)
	c.Check(a, check.DeepEquals, []float64{0, 0})
}
