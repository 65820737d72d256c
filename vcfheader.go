// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/brentp/vcfgo"
	"golang.org/x/crypto/blake2b"
)

// infoField describes how to parse one declared INFO key.
type infoField struct {
	kind Kind
	// raw is true if the declared Number is not 0 or 1, in which
	// case the value is kept as its original text.
	raw bool
}

// vcfHeader is the part of a VCF header needed to parse body lines.
type vcfHeader struct {
	samples []string
	filters []Filter
	info    map[string]infoField
	sig     Signature
	// digest identifies the sample list, for comparing headers of
	// multiple input files.
	digest [blake2b.Size256]byte
	// lines is the number of header lines, including #CHROM.
	lines int
}

// readHeaderLines reads "#" lines up to and including the #CHROM line
// from r, and returns them.
func readHeaderLines(path string, r *bufio.Reader) ([]byte, int, error) {
	var buf bytes.Buffer
	lines := 0
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			lines++
			if line[0] != '#' {
				return nil, 0, &FormatError{Path: path, Line: lines, Reason: "missing #CHROM header line"}
			}
			buf.Write(line)
			if bytes.HasPrefix(line, []byte("#CHROM")) {
				return buf.Bytes(), lines, nil
			}
		}
		if err == io.EOF {
			return nil, 0, &FormatError{Path: path, Line: lines, Reason: "missing #CHROM header line"}
		} else if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", path, err)
		}
	}
}

// parseHeader interprets the given header lines.
func parseHeader(path string, text []byte, lines int) (*vcfHeader, error) {
	rdr, err := vcfgo.NewReader(bytes.NewReader(text), true)
	if err != nil {
		return nil, &FormatError{Path: path, Reason: fmt.Sprintf("header: %s", err)}
	}
	h := &vcfHeader{
		samples: append([]string(nil), rdr.Header.SampleNames...),
		info:    map[string]infoField{},
		lines:   lines,
	}
	seen := map[string]bool{}
	for _, s := range h.samples {
		if seen[s] {
			return nil, &FormatError{Path: path, Line: lines, Reason: fmt.Sprintf("duplicate sample ID %q", s)}
		}
		seen[s] = true
	}
	h.digest = blake2b.Sum256([]byte(strings.Join(h.samples, "\t")))

	for id, desc := range rdr.Header.Filters {
		h.filters = append(h.filters, Filter{ID: id, Description: desc})
	}
	sort.Slice(h.filters, func(i, j int) bool { return h.filters[i].ID < h.filters[j].ID })

	var ids []string
	for id := range rdr.Header.Infos {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var infoSig []Field
	for _, id := range ids {
		decl := rdr.Header.Infos[id]
		f, err := infoFieldFor(decl.Number, decl.Type)
		if err != nil {
			return nil, &FormatError{Path: path, Reason: fmt.Sprintf("INFO %s: %s", id, err)}
		}
		h.info[id] = f
		kind := f.kind
		if f.raw {
			kind = KindString
		}
		infoSig = append(infoSig, Field{Name: id, Sig: Leaf(kind)})
	}
	h.sig = Struct(
		Field{Name: "rsid", Sig: Leaf(KindString)},
		Field{Name: "qual", Sig: Leaf(KindDouble)},
		Field{Name: "filters", Sig: Leaf(KindSet)},
		Field{Name: "pass", Sig: Leaf(KindBoolean)},
		Field{Name: "info", Sig: Struct(infoSig...)},
	)
	return h, nil
}

func infoFieldFor(number, typ string) (infoField, error) {
	var f infoField
	switch typ {
	case "Integer":
		f.kind = KindInt
	case "Float":
		f.kind = KindDouble
	case "Flag":
		f.kind = KindBoolean
		return f, nil
	case "String", "Character":
		f.kind = KindString
	default:
		return f, fmt.Errorf("unsupported Type %q", typ)
	}
	f.raw = number != "0" && number != "1"
	return f, nil
}

// loadHeader reads just the header of the VCF file at path.
func loadHeader(path string) (*vcfHeader, error) {
	f, err := zopen(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	text, lines, err := readHeaderLines(path, bufio.NewReaderSize(f, 1<<20))
	if err != nil {
		return nil, err
	}
	return parseHeader(path, text, lines)
}
