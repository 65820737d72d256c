// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"math"

	"gopkg.in/check.v1"
	"gopkg.in/guregu/null.v3"
)

type maskSuite struct{}

var _ = check.Suite(&maskSuite{})

func (s *maskSuite) TestBuildMask(c *check.C) {
	y := []null.Float{null.FloatFrom(1), null.FloatFrom(2), null.Float{}, null.FloatFrom(4)}
	x := []null.Float{null.FloatFrom(0), null.FloatFrom(math.NaN()), null.FloatFrom(1), null.FloatFrom(1)}
	mask, err := BuildMask(4, y, x)
	c.Assert(err, check.IsNil)
	c.Check(mask, check.DeepEquals, []bool{true, false, false, true})
	c.Check(CountMask(mask), check.Equals, 2)

	mask, err = BuildMask(3)
	c.Check(err, check.IsNil)
	c.Check(mask, check.DeepEquals, []bool{true, true, true})

	_, err = BuildMask(3, y)
	c.Check(err, check.FitsTypeOf, &DimensionMismatchError{})
}

func (s *maskSuite) TestExtractDense(c *check.C) {
	y := []null.Float{null.FloatFrom(1), null.FloatFrom(2), null.Float{}, null.FloatFrom(4)}
	out, err := ExtractDense(y, []bool{true, false, false, true})
	c.Check(err, check.IsNil)
	c.Check(out, check.DeepEquals, []float64{1, 4})

	_, err = ExtractDense(y, []bool{true, true, true, true})
	c.Check(err, check.FitsTypeOf, &TypeError{})
	_, err = ExtractDense(y, []bool{true})
	c.Check(err, check.FitsTypeOf, &DimensionMismatchError{})
}

func (s *maskSuite) TestCovariateMatrix(c *check.C) {
	mask := []bool{true, false, true}
	cov, err := CovariateMatrix([][]null.Float{
		{null.FloatFrom(1), null.Float{}, null.FloatFrom(3)},
		{null.FloatFrom(10), null.FloatFrom(20), null.FloatFrom(30)},
	}, mask)
	c.Assert(err, check.IsNil)
	r, k := cov.Dims()
	c.Check(r, check.Equals, 2)
	c.Check(k, check.Equals, 2)
	c.Check(cov.RawRowView(1), check.DeepEquals, []float64{3, 30})

	cov, err = CovariateMatrix(nil, mask)
	c.Check(err, check.IsNil)
	c.Check(cov, check.IsNil)

	_, err = CovariateMatrix([][]null.Float{{null.FloatFrom(1)}}, []bool{false})
	c.Check(err, check.FitsTypeOf, &DimensionMismatchError{})
}

func (s *maskSuite) TestQuerySamples(c *check.C) {
	m := testMatrix(c, []string{"s1", "s2", "s3"}, []string{"1:100:A:G 0/1 1/1 0/0"})
	sig, insert := m.InsertSampleAnnotation(Leaf(KindDouble), "pheno", "height")
	sig = sig.Insert(Leaf(KindBoolean), "isCase")
	sig = sig.Insert(Leaf(KindString), "name")
	sa := []Annotations{
		insert(Annotations{"isCase": true, "name": "a"}, 1.5),
		Annotations{"isCase": false},
		insert(Annotations{"name": "c"}, 2),
	}
	m, err := m.WithSampleAnnotations(sig, sa)
	c.Assert(err, check.IsNil)

	height, err := QuerySamples(m, "sa.pheno.height")
	c.Assert(err, check.IsNil)
	c.Check(height, check.DeepEquals, []null.Float{null.FloatFrom(1.5), {}, null.FloatFrom(2)})

	isCase, err := QuerySamples(m, "isCase")
	c.Assert(err, check.IsNil)
	c.Check(isCase, check.DeepEquals, []null.Float{null.FloatFrom(1), null.FloatFrom(0), {}})

	_, err = QuerySamples(m, "sa.name")
	c.Check(err, check.FitsTypeOf, &TypeError{})
	_, err = QuerySamples(m, "sa.pheno.weight")
	c.Check(err, check.ErrorMatches, `type error at sa.pheno.weight: no such sample annotation`)
	_, err = QuerySamples(m, "sa.pheno")
	c.Check(err, check.FitsTypeOf, &TypeError{})
}
