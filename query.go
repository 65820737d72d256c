// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"strings"

	"gopkg.in/guregu/null.v3"
)

// QuerySamples resolves a dotted sample annotation path like
// "sa.pheno.height" (the "sa." prefix is optional) to one value per
// sample. Samples with no value at path get an invalid null.Float.
// Boolean values convert to 0 and 1.
func QuerySamples(m *Matrix, path string) ([]null.Float, error) {
	segs := SplitPath(strings.TrimPrefix(path, "sa."))
	if len(segs) == 0 {
		return nil, &TypeError{Path: path, Reason: "empty annotation path"}
	}
	sig, ok := m.SampleSignature.Lookup(segs...)
	if !ok {
		return nil, &TypeError{Path: path, Reason: "no such sample annotation"}
	}
	if !sig.Kind.Numeric() {
		return nil, &TypeError{Path: path, Reason: "expected a numeric annotation, found " + sig.String()}
	}
	out := make([]null.Float, m.NumSamples())
	for i := range out {
		if i >= len(m.SampleAnnotations) {
			continue
		}
		v, ok := m.SampleAnnotations[i].Get(segs...)
		if !ok {
			continue
		}
		f, ok := numericValue(v)
		if !ok {
			return nil, &TypeError{Path: path, Reason: "sample " + m.SampleIDs[i] + " has non-numeric value"}
		}
		out[i] = f
	}
	return out, nil
}

// numericValue converts a numeric annotation value to a null.Float.
// A nil value is a valid "missing".
func numericValue(v interface{}) (null.Float, bool) {
	switch v := v.(type) {
	case nil:
		return null.Float{}, true
	case float64:
		return null.FloatFrom(v), true
	case int:
		return null.FloatFrom(float64(v)), true
	case bool:
		if v {
			return null.FloatFrom(1), true
		}
		return null.FloatFrom(0), true
	default:
		return null.Float{}, false
	}
}
