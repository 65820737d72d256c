// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"fmt"
	"strings"
)

// Variant identifies a locus and allele change. Alternate alleles are
// kept comma-separated, as in the VCF ALT column, so Variant values
// are comparable with ==.
type Variant struct {
	Contig string
	Start  int
	Ref    string
	Alt    string
}

func (v Variant) String() string {
	return fmt.Sprintf("%s:%d:%s:%s", v.Contig, v.Start, v.Ref, v.Alt)
}

// AltAlleles returns the alternate alleles.
func (v Variant) AltAlleles() []string {
	if v.Alt == "" || v.Alt == "." {
		return nil
	}
	return strings.Split(v.Alt, ",")
}

// NAlleles returns the number of alleles including the reference.
func (v Variant) NAlleles() int {
	return 1 + len(v.AltAlleles())
}

// Genotype is one sample's call at one variant.
//
// GT holds allele indices (0 = reference), with -1 for an uncalled
// allele ("." in VCF). A nil GT means no call at all. DP and GQ are
// -1 when absent; AD and PL are nil when absent.
type Genotype struct {
	GT     []int
	Phased bool
	AD     []int
	DP     int
	GQ     int
	PL     []int
}

// MissingGenotype is the "./." call with no other data.
var MissingGenotype = Genotype{DP: -1, GQ: -1}

// IsCalled returns true if every allele of the call is known.
func (g Genotype) IsCalled() bool {
	if len(g.GT) == 0 {
		return false
	}
	for _, a := range g.GT {
		if a < 0 {
			return false
		}
	}
	return true
}

// NNonRef returns the number of non-reference alleles in the call,
// or -1 if the call is missing.
func (g Genotype) NNonRef() int {
	if !g.IsCalled() {
		return -1
	}
	n := 0
	for _, a := range g.GT {
		if a != 0 {
			n++
		}
	}
	return n
}

func (g Genotype) String() string {
	if len(g.GT) == 0 {
		return "./."
	}
	sep := "/"
	if g.Phased {
		sep = "|"
	}
	s := make([]string, len(g.GT))
	for i, a := range g.GT {
		if a < 0 {
			s[i] = "."
		} else {
			s[i] = fmt.Sprint(a)
		}
	}
	return strings.Join(s, sep)
}

// gqFromPL returns the difference between the two smallest PL values
// (the genotype quality implied by the likelihoods), capped at 99.
func gqFromPL(pl []int) int {
	if len(pl) < 2 {
		return -1
	}
	min1, min2 := pl[0], pl[1]
	if min2 < min1 {
		min1, min2 = min2, min1
	}
	for _, x := range pl[2:] {
		if x < min1 {
			min1, min2 = x, min1
		} else if x < min2 {
			min2 = x
		}
	}
	if gq := min2 - min1; gq < 99 {
		return gq
	}
	return 99
}
