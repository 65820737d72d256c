// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"fmt"
	"strconv"
	"strings"
)

// recordParser turns VCF body lines into records. A recordParser
// keeps scratch buffers, so each goroutine needs its own.
type recordParser struct {
	header *vcfHeader
	opts   ImportOptions

	// undeclared counts INFO keys that were not declared in the
	// header, and were therefore dropped.
	undeclared map[string]int

	calls  []Genotype
	fields []string
}

func newRecordParser(h *vcfHeader, opts ImportOptions) *recordParser {
	width := len(h.samples)
	if opts.SitesOnly {
		width = 0
	}
	return &recordParser{
		header:     h,
		opts:       opts,
		undeclared: map[string]int{},
		calls:      make([]Genotype, width),
	}
}

// Parse parses one body line. The returned genotype slice is reused
// by the next call.
func (rp *recordParser) Parse(line string) (Variant, Annotations, []Genotype, error) {
	line = strings.TrimRight(line, "\r\n")
	rp.fields = splitTabs(rp.fields[:0], line)
	fields := rp.fields
	nsamples := len(rp.header.samples)
	if want := 9 + nsamples; len(fields) != want && !(nsamples == 0 && len(fields) == 8) {
		return Variant{}, nil, nil, fmt.Errorf("found %d tab-separated fields, expected %d", len(fields), want)
	}
	pos, err := strconv.Atoi(fields[1])
	if err != nil || pos < 1 {
		return Variant{}, nil, nil, fmt.Errorf("invalid POS %q", fields[1])
	}
	v := Variant{Contig: fields[0], Start: pos, Ref: fields[3], Alt: fields[4]}
	if v.Ref == "" || v.Ref == "." {
		return Variant{}, nil, nil, fmt.Errorf("missing REF")
	}
	if v.NAlleles() > MaxAlleles {
		return Variant{}, nil, nil, fmt.Errorf("%d alleles exceeds maximum %d", v.NAlleles(), MaxAlleles)
	}
	va, err := rp.parseAnnotations(fields[2], fields[5], fields[6], fields[7])
	if err != nil {
		return Variant{}, nil, nil, err
	}
	if rp.opts.SitesOnly || nsamples == 0 {
		return v, va, rp.calls[:0], nil
	}
	format := strings.Split(fields[8], ":")
	for i, s := range fields[9:] {
		g, err := rp.parseGenotype(format, s, v.NAlleles())
		if err != nil {
			return Variant{}, nil, nil, fmt.Errorf("sample %s: %w", rp.header.samples[i], err)
		}
		rp.calls[i] = g
	}
	return v, va, rp.calls, nil
}

// splitTabs is strings.Split(s, "\t") without allocating a new slice
// for every line.
func splitTabs(dst []string, s string) []string {
	for {
		i := strings.IndexByte(s, '\t')
		if i < 0 {
			return append(dst, s)
		}
		dst = append(dst, s[:i])
		s = s[i+1:]
	}
}

func (rp *recordParser) parseAnnotations(id, qual, filter, info string) (Annotations, error) {
	va := Annotations{}
	if id != "." {
		va["rsid"] = id
	}
	if qual != "." {
		q, err := strconv.ParseFloat(qual, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid QUAL %q", qual)
		}
		va["qual"] = q
	}
	switch filter {
	case "PASS":
		va["filters"] = NewSet()
		va["pass"] = true
	case ".":
		va["filters"] = NewSet()
		va["pass"] = false
	default:
		va["filters"] = NewSet(strings.Split(filter, ";")...)
		va["pass"] = false
	}
	ia := Annotations{}
	for key, f := range rp.header.info {
		if f.kind == KindBoolean {
			ia[key] = false
		}
	}
	if info != "." && info != "" {
		for _, kv := range strings.Split(info, ";") {
			key, val := kv, ""
			hasval := false
			if i := strings.IndexByte(kv, '='); i >= 0 {
				key, val, hasval = kv[:i], kv[i+1:], true
			}
			f, ok := rp.header.info[key]
			if !ok {
				rp.undeclared[key]++
				continue
			}
			if f.kind == KindBoolean {
				ia[key] = true
				continue
			}
			if !hasval {
				return nil, fmt.Errorf("INFO %s: missing value", key)
			}
			if val == "." {
				continue
			}
			if f.raw {
				ia[key] = val
				continue
			}
			x, err := parseScalar(f.kind, val)
			if err != nil {
				return nil, fmt.Errorf("INFO %s: %w", key, err)
			}
			ia[key] = x
		}
	}
	va["info"] = ia
	return va, nil
}

// parseScalar parses s as a value of the given kind.
func parseScalar(kind Kind, s string) (interface{}, error) {
	switch kind {
	case KindInt:
		x, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid Int %q", s)
		}
		return x, nil
	case KindDouble:
		x, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid Double %q", s)
		}
		return x, nil
	case KindBoolean:
		x, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("invalid Boolean %q", s)
		}
		return x, nil
	case KindString:
		return s, nil
	default:
		return nil, fmt.Errorf("cannot parse %s value", kind)
	}
}

func (rp *recordParser) parseGenotype(format []string, s string, nalleles int) (Genotype, error) {
	g := MissingGenotype
	if s == "." || s == "./." || s == ".|." {
		return g, nil
	}
	values := strings.Split(s, ":")
	if len(values) > len(format) {
		return g, fmt.Errorf("%d values for %d FORMAT fields", len(values), len(format))
	}
	var gq = -1
	var badAD bool
	for i, val := range values {
		if val == "." || val == "" {
			continue
		}
		var err error
		switch format[i] {
		case "GT":
			g.GT, g.Phased, err = parseGT(val, nalleles)
		case "AD":
			g.AD, err = parseInts(val)
			if err == nil && g.AD != nil && len(g.AD) != nalleles {
				g.AD = nil
				badAD = true
			}
		case "DP":
			g.DP, err = parseNonNegative(val)
		case "GQ":
			gq, err = parseNonNegative(val)
		case "PL":
			if !rp.opts.PPAsPL {
				g.PL, err = parseInts(val)
			}
		case "PP":
			if rp.opts.PPAsPL {
				g.PL, err = parseInts(val)
			}
		}
		if err != nil {
			return g, fmt.Errorf("FORMAT %s: %w", format[i], err)
		}
	}
	if badAD && !rp.opts.SkipBadAD {
		return MissingGenotype, nil
	}
	if nG := nalleles * (nalleles + 1) / 2; g.PL != nil && len(g.GT) == 2 && len(g.PL) != nG {
		return g, fmt.Errorf("FORMAT PL: %d values, expected %d", len(g.PL), nG)
	}
	if rp.opts.StoreGQ {
		g.GQ = gq
	} else {
		g.GQ = gqFromPL(g.PL)
	}
	return g, nil
}

func parseGT(s string, nalleles int) ([]int, bool, error) {
	phased := strings.IndexByte(s, '|') >= 0
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == '|' })
	if len(parts) == 0 || len(parts) > 2 {
		return nil, false, fmt.Errorf("invalid GT %q", s)
	}
	gt := make([]int, len(parts))
	called := false
	for i, p := range parts {
		if p == "." {
			gt[i] = -1
			continue
		}
		a, err := strconv.Atoi(p)
		if err != nil || a < 0 {
			return nil, false, fmt.Errorf("invalid GT %q", s)
		}
		if a >= nalleles {
			return nil, false, fmt.Errorf("GT %q refers to allele %d but there are only %d alleles", s, a, nalleles)
		}
		gt[i] = a
		called = true
	}
	if !called {
		return nil, false, nil
	}
	return gt, phased, nil
}

// parseInts parses a comma-separated list. If any element is ".",
// the whole list is missing.
func parseInts(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	xs := make([]int, len(parts))
	for i, p := range parts {
		if p == "." {
			return nil, nil
		}
		x, err := parseNonNegative(p)
		if err != nil {
			return nil, err
		}
		xs[i] = x
	}
	return xs, nil
}

func parseNonNegative(s string) (int, error) {
	x, err := strconv.Atoi(s)
	if err != nil || x < 0 {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	return x, nil
}
