// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"strconv"
	"strings"

	"gopkg.in/check.v1"
)

// testMatrix builds a Matrix from rows like "1:100:A:G 0/1 ./. 1/1",
// one partition per rows argument.
func testMatrix(c *check.C, sampleIDs []string, partitions ...[]string) *Matrix {
	m := &Matrix{Metadata: Metadata{
		SampleIDs:         sampleIDs,
		SampleAnnotations: make([]Annotations, len(sampleIDs)),
		SampleSignature:   Struct(),
		VariantSignature:  Struct(),
	}}
	for _, rows := range partitions {
		b := newPartitionBuilder(len(sampleIDs), false, len(rows))
		for _, row := range rows {
			fields := strings.Fields(row)
			loc := strings.Split(fields[0], ":")
			pos, err := strconv.Atoi(loc[1])
			c.Assert(err, check.IsNil)
			v := Variant{Contig: loc[0], Start: pos, Ref: loc[2], Alt: loc[3]}
			calls := make([]Genotype, len(fields)-1)
			for i, s := range fields[1:] {
				calls[i] = MissingGenotype
				if s == "./." {
					continue
				}
				sep := "/"
				if strings.Contains(s, "|") {
					sep = "|"
					calls[i].Phased = true
				}
				for _, a := range strings.Split(s, sep) {
					x, err := strconv.Atoi(a)
					c.Assert(err, check.IsNil)
					calls[i].GT = append(calls[i].GT, x)
				}
			}
			c.Assert(b.Add(v, Annotations{}, calls), check.IsNil)
		}
		m.Partitions = append(m.Partitions, b.Partition())
	}
	return m
}

func withSampleValues(c *check.C, m *Matrix, name string, values ...interface{}) *Matrix {
	sig, insert := m.InsertSampleAnnotation(Leaf(KindDouble), name)
	sa := make([]Annotations, m.NumSamples())
	for i := range sa {
		sa[i] = m.SampleAnnotations[i]
		if values[i] != nil {
			sa[i] = insert(sa[i], values[i])
		}
	}
	m, err := m.WithSampleAnnotations(sig, sa)
	c.Assert(err, check.IsNil)
	return m
}

type matrixSuite struct{}

var _ = check.Suite(&matrixSuite{})

func (s *matrixSuite) TestFilterSamples(c *check.C) {
	m := testMatrix(c, []string{"s1", "s2", "s3", "s4"},
		[]string{"1:100:A:G 0/1 1/1 ./. 0/0", "1:200:C:T 0/0 0/1 1/1 1|0"},
		[]string{"2:50:G:A 1/1 0/0 0/1 0/1"})
	m = withSampleValues(c, m, "x", 1.0, 2.0, 3.0, 4.0)
	c.Check(m.NumVariants(), check.Equals, 3)

	f, err := m.FilterSamples(func(i int) bool { return i != 1 })
	c.Assert(err, check.IsNil)
	c.Check(f.SampleIDs, check.DeepEquals, []string{"s1", "s3", "s4"})
	c.Check(f.SampleAnnotations[1]["x"], check.Equals, 3.0)
	c.Check(m.SampleIDs, check.HasLen, 4)
	c.Assert(f.Partitions, check.HasLen, 2)
	c.Check(f.Partitions[0].Len(), check.Equals, 2)

	var got []string
	err = f.EachRecord(func(pi, i int, r Record) error {
		calls, err := r.Genotypes.Decode()
		c.Assert(err, check.IsNil)
		var gts []string
		for _, g := range calls {
			gts = append(gts, g.String())
		}
		got = append(got, r.Variant.String()+" "+strings.Join(gts, " "))
		return nil
	})
	c.Check(err, check.IsNil)
	c.Check(got, check.DeepEquals, []string{
		"1:100:A:G 0/1 ./. 0/0",
		"1:200:C:T 0/0 1/1 1|0",
		"2:50:G:A 1/1 0/1 0/1",
	})

	same, err := m.FilterSamples(func(int) bool { return true })
	c.Check(err, check.IsNil)
	c.Check(same, check.Equals, m)

	none, err := m.FilterSamples(func(int) bool { return false })
	c.Assert(err, check.IsNil)
	c.Check(none.NumSamples(), check.Equals, 0)
	c.Check(none.NumVariants(), check.Equals, 3)
	c.Check(none.Partitions[1].Run(0).N, check.Equals, 0)
}

func (s *matrixSuite) TestZipValues(c *check.C) {
	m := testMatrix(c, []string{"s1", "s2"},
		[]string{"1:100:A:G 0/1 1/1", "1:200:C:T 0/0 0/1"})
	values := [][]VariantValue{{
		{Variant: m.Partitions[0].Variant(0), Value: Annotations{"beta": 0.5}},
		{Variant: m.Partitions[0].Variant(1)},
	}}
	sig := Struct(Field{Name: "beta", Sig: Leaf(KindDouble)})
	z := m.ZipValues(values, sig, "test", "result")
	got, ok := z.VariantSignature.Lookup("test", "result", "beta")
	c.Check(ok, check.Equals, true)
	c.Check(got.Kind, check.Equals, KindDouble)
	beta, ok := z.Partitions[0].Record(0).Annotations.Get("test", "result", "beta")
	c.Check(ok, check.Equals, true)
	c.Check(beta, check.Equals, 0.5)
	_, ok = z.Partitions[0].Record(1).Annotations.Get("test")
	c.Check(ok, check.Equals, false)
	_, ok = m.Partitions[0].Record(0).Annotations.Get("test")
	c.Check(ok, check.Equals, false)
	c.Check(z.Partitions[0].Run(1).Data, check.DeepEquals, m.Partitions[0].Run(1).Data)
}

func (s *matrixSuite) TestZipValuesMisaligned(c *check.C) {
	m := testMatrix(c, []string{"s1"},
		[]string{"1:100:A:G 0/1", "1:200:C:T 0/0"})
	swapped := [][]VariantValue{{
		{Variant: m.Partitions[0].Variant(1)},
		{Variant: m.Partitions[0].Variant(0)},
	}}
	c.Check(func() { m.ZipValues(swapped, Leaf(KindDouble), "x") }, check.PanicMatches, `bug: partition 0 record 0: variant 1:100:A:G does not match 1:200:C:T`)
	c.Check(func() { m.ZipValues(nil, Leaf(KindDouble), "x") }, check.PanicMatches, `bug: partition -1: 1 partitions zipped with 0`)
	short := [][]VariantValue{swapped[0][:1]}
	c.Check(func() { m.ZipValues(short, Leaf(KindDouble), "x") }, check.PanicMatches, `bug: partition 0: 2 records zipped with 1`)
}

func (s *matrixSuite) TestZipPartitions(c *check.C) {
	m := testMatrix(c, []string{"s1", "s2", "s3"},
		[]string{"1:100:A:G 0/1 1/1 0/0"},
		[]string{"1:300:A:C 0/0 ./. 0/1"})
	f, err := m.FilterSamples(func(i int) bool { return i > 0 })
	c.Assert(err, check.IsNil)
	sig := Struct(Field{Name: "n", Sig: Leaf(KindInt)})
	z := m.ZipPartitions(f, sig, func(left, right Record) Annotations {
		return Annotations{"n": left.Genotypes.N*10 + right.Genotypes.N}
	})
	c.Check(z.VariantSignature, check.DeepEquals, sig)
	c.Check(z.Partitions[1].Record(0).Annotations, check.DeepEquals, Annotations{"n": 32})

	other := testMatrix(c, []string{"s1", "s2", "s3"},
		[]string{"1:100:A:G 0/1 1/1 0/0"},
		[]string{"1:301:A:C 0/0 ./. 0/1"})
	c.Check(func() { m.ZipPartitions(other, sig, func(l, r Record) Annotations { return nil }) }, check.Panics, &ConsistencyError{
		Partition: 1,
		Index:     0,
		Left:      Variant{"1", 300, "A", "C"},
		Right:     Variant{"1", 301, "A", "C"},
	})
}

func (s *matrixSuite) TestWithSampleAnnotationsMismatch(c *check.C) {
	m := testMatrix(c, []string{"s1", "s2"}, []string{"1:100:A:G 0/1 1/1"})
	_, err := m.WithSampleAnnotations(Struct(), make([]Annotations, 3))
	c.Check(err, check.FitsTypeOf, &DimensionMismatchError{})
}

func (s *matrixSuite) TestPartitionBuilderWidth(c *check.C) {
	b := newPartitionBuilder(2, true, 0)
	err := b.Add(Variant{"1", 1, "A", "T"}, nil, []Genotype{MissingGenotype})
	c.Check(err, check.ErrorMatches, `dimension mismatch: genotypes of 1:1:A:T has length 1, expected 2`)
}

func (s *matrixSuite) TestAnnotationsInsert(c *check.C) {
	a := Annotations{"info": Annotations{"AC": 3}}
	b := a.Insert(0.25, "info", "AF")
	c.Check(a, check.DeepEquals, Annotations{"info": Annotations{"AC": 3}})
	c.Check(b, check.DeepEquals, Annotations{"info": Annotations{"AC": 3, "AF": 0.25}})
	v, ok := b.Get("info", "AF")
	c.Check(ok, check.Equals, true)
	c.Check(v, check.Equals, 0.25)
	_, ok = b.Get("info", "AF", "deeper")
	c.Check(ok, check.Equals, false)
	c.Check(NewSet("q10", "LowQual", "q10"), check.DeepEquals, []string{"LowQual", "q10"})
}

func (s *matrixSuite) TestSignatureInsert(c *check.C) {
	sig := Struct(Field{Name: "qual", Sig: Leaf(KindDouble)})
	sig2 := sig.Insert(Leaf(KindInt), "linreg", "n")
	c.Check(sig.String(), check.Equals, "Struct{qual: Double}")
	c.Check(sig2.String(), check.Equals, "Struct{qual: Double, linreg: Struct{n: Int}}")
	sig3 := sig2.Insert(Leaf(KindString), "qual")
	c.Check(sig3.String(), check.Equals, "Struct{qual: String, linreg: Struct{n: Int}}")
	c.Check(sig2.String(), check.Equals, "Struct{qual: Double, linreg: Struct{n: Int}}")
}
