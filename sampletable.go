// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// TableConfig describes a delimited text table of per-sample values.
type TableConfig struct {
	// Key is the name of the column holding sample IDs. Default
	// is the first column.
	Key string
	// Root is the sample annotation path under which the other
	// columns are stored, e.g., "sa.pheno". Default "sa".
	Root string
	// Delimiter separates fields. Default tab.
	Delimiter string
	// Missing is the text of a missing value. Default "NA".
	Missing string
	// Impute infers the type (Boolean, Int, Double, or String)
	// of each column not listed in Types from its values.
	// Otherwise, such columns are String.
	Impute bool
	// Types gives the type of the named columns.
	Types map[string]Kind
	// Lines starting with Comment (if not empty) are skipped.
	Comment string
	// NoHeader means the first line is data, and columns are
	// named _0, _1, etc.
	NoHeader bool
}

// LoadSampleTable reads the table at path (which may be gzipped),
// and returns m with the table's values added to its sample
// annotations. See ImportSampleTable.
func LoadSampleTable(m *Matrix, path string, cfg TableConfig) (*Matrix, error) {
	f, err := zopen(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ImportSampleTable(m, path, f, cfg)
}

// ImportSampleTable reads a table of per-sample values from r, and
// returns m with the values added to its sample annotations. Each
// row applies to the sample whose ID appears in the key column.
// Samples with no row are unchanged, and rows for samples that are
// not in m are ignored.
func ImportSampleTable(m *Matrix, path string, r io.Reader, cfg TableConfig) (*Matrix, error) {
	if cfg.Delimiter == "" {
		cfg.Delimiter = "\t"
	}
	if cfg.Missing == "" {
		cfg.Missing = "NA"
	}
	root := strings.TrimPrefix(cfg.Root, "sa.")
	if root == "sa" {
		root = ""
	}

	var header []string
	var rows [][]string
	var linenos []int
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1<<16), 1<<28)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || (cfg.Comment != "" && strings.HasPrefix(line, cfg.Comment)) {
			continue
		}
		fields := strings.Split(line, cfg.Delimiter)
		if header == nil {
			if cfg.NoHeader {
				header = make([]string, len(fields))
				for i := range header {
					header[i] = fmt.Sprintf("_%d", i)
				}
			} else {
				header = fields
				continue
			}
		}
		if len(fields) != len(header) {
			return nil, &FormatError{Path: path, Line: lineno, Reason: fmt.Sprintf("found %d fields, expected %d", len(fields), len(header))}
		}
		rows = append(rows, fields)
		linenos = append(linenos, lineno)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if header == nil {
		return nil, &FormatError{Path: path, Reason: "empty table"}
	}

	keycol := 0
	if cfg.Key != "" {
		keycol = -1
		for i, name := range header {
			if name == cfg.Key {
				keycol = i
			}
		}
		if keycol < 0 {
			return nil, &FormatError{Path: path, Line: 1, Reason: fmt.Sprintf("key column %q not found", cfg.Key)}
		}
	}

	kinds := make([]Kind, len(header))
	for col, name := range header {
		if col == keycol {
			continue
		}
		if kind, ok := cfg.Types[name]; ok {
			if kind == KindStruct || kind == KindSet {
				return nil, &TypeError{Path: name, Reason: fmt.Sprintf("unsupported column type %s", kind)}
			}
			kinds[col] = kind
		} else if cfg.Impute {
			kinds[col] = imputeKind(rows, col, cfg.Missing)
		} else {
			kinds[col] = KindString
		}
	}

	sampleIndex := make(map[string]int, m.NumSamples())
	for i, id := range m.SampleIDs {
		sampleIndex[id] = i
	}
	sa := make([]Annotations, m.NumSamples())
	copy(sa, m.SampleAnnotations)
	sig := m.SampleSignature
	paths := make([][]string, len(header))
	for col, name := range header {
		if col == keycol {
			continue
		}
		paths[col] = append(SplitPath(root), name)
		sig = sig.Insert(Leaf(kinds[col]), paths[col]...)
	}

	seen := map[string]int{}
	unknown := 0
	for row, fields := range rows {
		id := fields[keycol]
		if prev, dup := seen[id]; dup {
			return nil, &FormatError{Path: path, Line: linenos[row], Reason: fmt.Sprintf("duplicate key %q (also on line %d)", id, prev)}
		}
		seen[id] = linenos[row]
		i, ok := sampleIndex[id]
		if !ok {
			unknown++
			continue
		}
		for col, s := range fields {
			if col == keycol || s == cfg.Missing {
				continue
			}
			v, err := parseTableValue(kinds[col], s)
			if err != nil {
				return nil, &FormatError{Path: path, Line: linenos[row], Reason: fmt.Sprintf("column %s: %s", header[col], err)}
			}
			sa[i] = sa[i].Insert(v, paths[col]...)
		}
	}
	if unknown > 0 {
		log.Warnf("%s: ignored %d rows for samples not in dataset", path, unknown)
	}
	log.Infof("%s: loaded %d columns for %d of %d samples", path, len(header)-1, len(rows)-unknown, m.NumSamples())
	return m.WithSampleAnnotations(sig, sa)
}

// ParseTableTypes parses a comma-separated list of column:type pairs,
// e.g., "age:Int,sex:String", into a TableConfig.Types map.
func ParseTableTypes(s string) (map[string]Kind, error) {
	types := map[string]Kind{}
	if s == "" {
		return types, nil
	}
	for _, item := range strings.Split(s, ",") {
		idx := strings.LastIndex(item, ":")
		if idx < 1 {
			return nil, fmt.Errorf("invalid column type %q: expected column:type", item)
		}
		kind, err := ParseKind(item[idx+1:])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", item[:idx], err)
		}
		types[item[:idx]] = kind
	}
	return types, nil
}

func parseTableValue(kind Kind, s string) (interface{}, error) {
	if kind == KindBoolean {
		switch strings.ToLower(s) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return parseScalar(kind, s)
}

// imputeKind returns the narrowest kind that can represent every
// non-missing value in the given column.
func imputeKind(rows [][]string, col int, missing string) Kind {
	isBool, isInt, isDouble := true, true, true
	found := false
	for _, fields := range rows {
		s := fields[col]
		if s == missing {
			continue
		}
		found = true
		if ls := strings.ToLower(s); ls != "true" && ls != "false" {
			isBool = false
		}
		if _, err := strconv.Atoi(s); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			isDouble = false
		}
	}
	switch {
	case !found:
		return KindString
	case isBool:
		return KindBoolean
	case isInt:
		return KindInt
	case isDouble:
		return KindDouble
	default:
		return KindString
	}
}
