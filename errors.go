// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import "fmt"

// FormatError reports input that is not a readable VCF (or sample
// table): unsupported filename suffix, malformed header, or a body
// line that does not parse.
type FormatError struct {
	Path   string
	Line   int // 1-based; 0 if not line-specific
	Reason string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s line %d: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// DimensionMismatchError reports per-sample vectors whose lengths
// disagree with each other or with the dataset's sample count.
type DimensionMismatchError struct {
	What string
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: %s has length %d, expected %d", e.What, e.Got, e.Want)
}

// EncodingError reports a genotype call that the codec cannot
// represent.
type EncodingError struct {
	Index  int // position of the call in the run
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("cannot encode genotype %d: %s", e.Index, e.Reason)
}

// TypeError reports an annotation value (or signature) of the wrong
// kind, e.g., a string where a number is required.
type TypeError struct {
	Path   string
	Reason string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("type error at %s: %s", e.Path, e.Reason)
}

// ConsistencyError is the panic value used when two structurally
// aligned sequences turn out not to be aligned. It indicates a bug,
// not bad input.
type ConsistencyError struct {
	Partition int
	Index     int
	Left      Variant
	Right     Variant
	Reason    string
}

func (e *ConsistencyError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("bug: partition %d: %s", e.Partition, e.Reason)
	}
	return fmt.Sprintf("bug: partition %d record %d: variant %s does not match %s", e.Partition, e.Index, e.Left, e.Right)
}
