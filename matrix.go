// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"fmt"
	"runtime"
)

// Filter is a FILTER definition from the VCF header.
type Filter struct {
	ID          string
	Description string
}

// Metadata is the dataset-level information shared by all
// partitions of a Matrix. SampleIDs defines the sample order used by
// SampleAnnotations and by every genotype run.
type Metadata struct {
	SampleIDs         []string
	SampleAnnotations []Annotations
	SampleSignature   Signature
	VariantSignature  Signature
	Filters           []Filter
	Global            Annotations
}

// Record is one row of a partition.
type Record struct {
	Variant     Variant
	Annotations Annotations
	Genotypes   GenotypeRun
}

// Partition is an ordered run of records. Genotype runs are stored
// back to back in one buffer; run i is buf[offsets[i]:offsets[i+1]].
type Partition struct {
	variants    []Variant
	annotations []Annotations
	offsets     []int
	buf         []byte
	width       int
	compressed  bool
}

// Len returns the number of records in the partition.
func (p *Partition) Len() int { return len(p.variants) }

// Variant returns the i'th variant.
func (p *Partition) Variant(i int) Variant { return p.variants[i] }

// Run returns the i'th genotype run.
func (p *Partition) Run(i int) GenotypeRun {
	return GenotypeRun{
		N:          p.width,
		Compressed: p.compressed,
		Data:       p.buf[p.offsets[i]:p.offsets[i+1]],
	}
}

// Record returns the i'th record.
func (p *Partition) Record(i int) Record {
	return Record{Variant: p.variants[i], Annotations: p.annotations[i], Genotypes: p.Run(i)}
}

// withAnnotations returns a partition sharing p's variants and
// genotype buffer but with different variant annotations.
func (p *Partition) withAnnotations(annotations []Annotations) *Partition {
	if len(annotations) != len(p.variants) {
		panic(fmt.Sprintf("bug: withAnnotations: %d annotations for %d variants", len(annotations), len(p.variants)))
	}
	np := *p
	np.annotations = annotations
	return &np
}

// partitionBuilder accumulates records for a new Partition.
type partitionBuilder struct {
	p Partition
}

func newPartitionBuilder(width int, compress bool, sizeHint int) *partitionBuilder {
	return &partitionBuilder{p: Partition{
		variants:    make([]Variant, 0, sizeHint),
		annotations: make([]Annotations, 0, sizeHint),
		offsets:     append(make([]int, 0, sizeHint+1), 0),
		width:       width,
		compressed:  compress,
	}}
}

// Add encodes calls and appends a record.
func (b *partitionBuilder) Add(v Variant, va Annotations, calls []Genotype) error {
	if len(calls) != b.p.width {
		return &DimensionMismatchError{What: "genotypes of " + v.String(), Want: b.p.width, Got: len(calls)}
	}
	buf, err := appendGenotypes(b.p.buf, calls, b.p.compressed)
	if err != nil {
		return fmt.Errorf("%s: %w", v, err)
	}
	b.p.buf = buf
	b.p.variants = append(b.p.variants, v)
	b.p.annotations = append(b.p.annotations, va)
	b.p.offsets = append(b.p.offsets, len(buf))
	return nil
}

func (b *partitionBuilder) Partition() *Partition {
	p := b.p
	return &p
}

// Matrix is a partitioned variants × samples dataset. Matrix values
// are never modified after construction: every transformation
// returns a new Matrix, sharing unchanged parts with the original.
type Matrix struct {
	Metadata
	Partitions []*Partition
}

// NumSamples returns the number of samples.
func (m *Matrix) NumSamples() int { return len(m.SampleIDs) }

// NumVariants returns the total number of records in all partitions.
func (m *Matrix) NumVariants() int {
	n := 0
	for _, p := range m.Partitions {
		n += p.Len()
	}
	return n
}

// EachRecord calls fn for every record, in partition order.
func (m *Matrix) EachRecord(fn func(partition, index int, r Record) error) error {
	for pi, p := range m.Partitions {
		for i := 0; i < p.Len(); i++ {
			if err := fn(pi, i, p.Record(i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// FilterSamples returns a new Matrix containing only the samples for
// which keep returns true. The same selection is applied to the
// sample IDs, the sample annotations, and every genotype run, and
// relative sample order is preserved.
func (m *Matrix) FilterSamples(keep func(i int) bool) (*Matrix, error) {
	var kept []int
	for i := range m.SampleIDs {
		if keep(i) {
			kept = append(kept, i)
		}
	}
	if len(kept) == len(m.SampleIDs) {
		return m, nil
	}
	out := &Matrix{Metadata: m.Metadata, Partitions: make([]*Partition, len(m.Partitions))}
	out.SampleIDs = make([]string, len(kept))
	out.SampleAnnotations = make([]Annotations, len(kept))
	for j, i := range kept {
		out.SampleIDs[j] = m.SampleIDs[i]
		if i < len(m.SampleAnnotations) {
			out.SampleAnnotations[j] = m.SampleAnnotations[i]
		}
	}
	throttle := throttle{Max: runtime.GOMAXPROCS(0)}
	for pi, p := range m.Partitions {
		pi, p := pi, p
		throttle.Go(func() error {
			b := newPartitionBuilder(len(kept), p.compressed, p.Len())
			calls := make([]Genotype, len(kept))
			for i := 0; i < p.Len(); i++ {
				all, err := p.Run(i).Decode()
				if err != nil {
					return fmt.Errorf("partition %d: %s: %w", pi, p.variants[i], err)
				}
				if len(all) != p.width {
					return &DimensionMismatchError{What: "genotype run of " + p.variants[i].String(), Want: p.width, Got: len(all)}
				}
				for j, k := range kept {
					calls[j] = all[k]
				}
				if err := b.Add(p.variants[i], p.annotations[i], calls); err != nil {
					return err
				}
			}
			out.Partitions[pi] = b.Partition()
			return nil
		})
	}
	if err := throttle.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Inserter merges a new value into a record's variant annotations,
// returning the merged annotations. It does not modify its input.
type Inserter func(old Annotations, value interface{}) Annotations

// InsertVariantAnnotation returns the variant signature extended with
// sig at path, and an Inserter that places a value at path.
func (m *Matrix) InsertVariantAnnotation(sig Signature, path ...string) (Signature, Inserter) {
	path = append([]string(nil), path...)
	newsig := m.VariantSignature.Insert(sig, path...)
	return newsig, func(old Annotations, value interface{}) Annotations {
		return old.Insert(value, path...)
	}
}

// InsertSampleAnnotation returns the sample signature extended with
// sig at path, and an Inserter for sample annotations.
func (m *Matrix) InsertSampleAnnotation(sig Signature, path ...string) (Signature, Inserter) {
	path = append([]string(nil), path...)
	newsig := m.SampleSignature.Insert(sig, path...)
	return newsig, func(old Annotations, value interface{}) Annotations {
		return old.Insert(value, path...)
	}
}

// WithSampleAnnotations returns a Matrix that shares m's partitions
// but has the given sample annotations and signature.
func (m *Matrix) WithSampleAnnotations(sig Signature, sa []Annotations) (*Matrix, error) {
	if len(sa) != m.NumSamples() {
		return nil, &DimensionMismatchError{What: "sample annotations", Want: m.NumSamples(), Got: len(sa)}
	}
	out := &Matrix{Metadata: m.Metadata, Partitions: m.Partitions}
	out.SampleSignature = sig
	out.SampleAnnotations = sa
	return out, nil
}

// VariantValue is a computed per-variant value, tagged with the
// variant it was computed for. A nil Value means "no value".
type VariantValue struct {
	Variant Variant
	Value   interface{}
}

// ZipValues attaches values to m's records at path and returns the
// resulting Matrix.
//
// values must have been computed from a Matrix with the same
// partitioning and variant order as m (typically m itself, or m with
// some samples filtered out): values[p][i] belongs to record i of
// partition p. Any misalignment is a bug, and causes a panic with a
// *ConsistencyError.
func (m *Matrix) ZipValues(values [][]VariantValue, sig Signature, path ...string) *Matrix {
	newsig, insert := m.InsertVariantAnnotation(sig, path...)
	out := &Matrix{Metadata: m.Metadata, Partitions: make([]*Partition, len(m.Partitions))}
	out.VariantSignature = newsig
	checkPartitionCount(len(m.Partitions), len(values))
	for pi, p := range m.Partitions {
		vals := values[pi]
		va := make([]Annotations, p.Len())
		zipAligned(pi, p.Len(), len(vals), p.Variant, func(i int) Variant { return vals[i].Variant }, func(i int) {
			if vals[i].Value == nil {
				va[i] = p.annotations[i]
			} else {
				va[i] = insert(p.annotations[i], vals[i].Value)
			}
		})
		out.Partitions[pi] = p.withAnnotations(va)
	}
	return out
}

// ZipPartitions combines m with other, record by record. other must
// have the same partitioning and variant order as m; see ZipValues.
// The result has m's genotypes and the annotations returned by
// combine.
func (m *Matrix) ZipPartitions(other *Matrix, sig Signature, combine func(left, right Record) Annotations) *Matrix {
	out := &Matrix{Metadata: m.Metadata, Partitions: make([]*Partition, len(m.Partitions))}
	out.VariantSignature = sig
	checkPartitionCount(len(m.Partitions), len(other.Partitions))
	for pi, p := range m.Partitions {
		q := other.Partitions[pi]
		va := make([]Annotations, p.Len())
		zipAligned(pi, p.Len(), q.Len(), p.Variant, q.Variant, func(i int) {
			va[i] = combine(p.Record(i), q.Record(i))
		})
		out.Partitions[pi] = p.withAnnotations(va)
	}
	return out
}

func checkPartitionCount(left, right int) {
	if left != right {
		panic(&ConsistencyError{Partition: -1, Index: -1, Reason: fmt.Sprintf("%d partitions zipped with %d", left, right)})
	}
}

// zipAligned walks two sequences of equal length in lockstep,
// asserting that they refer to the same variants, and calls fn with
// each index.
func zipAligned(partition, nleft, nright int, left, right func(int) Variant, fn func(int)) {
	if nleft != nright {
		panic(&ConsistencyError{Partition: partition, Index: -1, Reason: fmt.Sprintf("%d records zipped with %d", nleft, nright)})
	}
	for i := 0; i < nleft; i++ {
		if l, r := left(i), right(i); l != r {
			panic(&ConsistencyError{Partition: partition, Index: i, Left: l, Right: r})
		}
		fn(i)
	}
}
