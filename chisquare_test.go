// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"context"
	"fmt"

	"gopkg.in/check.v1"
)

type pvalueSuite struct{}

var _ = check.Suite(&pvalueSuite{})

func (s *pvalueSuite) TestPvalue(c *check.C) {
	a := make([]bool, 54)
	b := make([]bool, 54)
	for i := 0; i < 25; i++ {
		a[i] = true
		b[i] = true
	}
	for i := 25; i < 31; i++ {
		a[i] = true
	}
	for i := 31; i < 39; i++ {
		b[i] = true
	}
	stat, pval, ok := carrierChiSquare(a, b)
	c.Check(ok, check.Equals, true)
	c.Check(fmt.Sprintf("%.6f", stat), check.Equals, "11.686017")
	c.Check(fmt.Sprintf("%.7f", pval), check.Equals, "0.0006297")
	for i := range a {
		a[i] = !a[i]
	}
	_, pval, _ = carrierChiSquare(a, b)
	c.Check(fmt.Sprintf("%.7f", pval), check.Equals, "0.0006297")

	stat, pval, ok = carrierChiSquare(
		[]bool{true, true, true, false, true, false, false, false},
		[]bool{true, true, true, true, false, false, false, false})
	c.Check(ok, check.Equals, true)
	closeTo(c, stat, 2)
	c.Check(fmt.Sprintf("%.7f", pval), check.Equals, "0.1572992")

	_, pval, ok = carrierChiSquare(make([]bool, 54), b)
	c.Check(ok, check.Equals, false)
	c.Check(pval, check.Equals, 1.0)
	_, _, ok = carrierChiSquare(a, make([]bool, 54))
	c.Check(ok, check.Equals, false)
}

func (s *pvalueSuite) TestCarrierTest(c *check.C) {
	m := testMatrix(c, []string{"s1", "s2", "s3", "s4", "s5", "s6"},
		[]string{
			"1:100:A:G 0/1 1/1 0/1 0/0 0/0 0/0",
			"1:200:C:T 0/0 0/0 0/0 0/0 0/0 0/0",
			"1:300:G:A 0/1 ./. 0/0 0/1 0/0 ./.",
			"1:400:T:C 0/1 1/1 0/1 0/1 1/1 0/0",
		})
	m = withSampleValues(c, m, "isCase", 1.0, 1.0, 1.0, 0.0, 0.0, nil)
	out, err := CarrierTest(context.Background(), m, CarrierTestOptions{Response: "sa.isCase"})
	c.Assert(err, check.IsNil)
	sig, ok := out.VariantSignature.Lookup("carrier", "pval")
	c.Check(ok, check.Equals, true)
	c.Check(sig.Kind, check.Equals, KindDouble)

	// carriers s1-s3 are all cases, non-carriers s4-s5 are controls
	got, ok := out.Partitions[0].Record(0).Annotations.Get("carrier", "chi2")
	c.Assert(ok, check.Equals, true)
	closeTo(c, got.(float64), 5)
	pval, _ := out.Partitions[0].Record(0).Annotations.Get("carrier", "pval")
	_, want, _ := carrierChiSquare([]bool{true, true, true, false, false}, []bool{true, true, true, false, false})
	c.Check(pval, check.Equals, want)

	// no carriers
	_, ok = out.Partitions[0].Record(1).Annotations.Get("carrier")
	c.Check(ok, check.Equals, false)

	// missing call for s2 is left out, leaving one carrier and one
	// non-carrier in each group
	got, ok = out.Partitions[0].Record(2).Annotations.Get("carrier", "chi2")
	c.Assert(ok, check.Equals, true)
	closeTo(c, got.(float64), 0)
	pval, _ = out.Partitions[0].Record(2).Annotations.Get("carrier", "pval")
	closeTo(c, pval.(float64), 1)

	// every sample with a phenotype is a carrier
	_, ok = out.Partitions[0].Record(3).Annotations.Get("carrier")
	c.Check(ok, check.Equals, false)

	m = withSampleValues(c, m, "y", 1.0, 2.0, 0.0, 0.0, 0.0, 0.0)
	_, err = CarrierTest(context.Background(), m, CarrierTestOptions{Response: "sa.y"})
	c.Check(err, check.FitsTypeOf, &TypeError{})
}
