// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"fmt"
	"sort"
	"strings"
)

// Annotations is a tree of named values. Leaf values are string,
// float64, int, bool, or []string (a sorted set); inner nodes are
// Annotations. A nil Annotations is empty.
//
// Annotations values are shared between matrices, so they must be
// treated as immutable: use Insert, which copies the modified path.
type Annotations map[string]interface{}

// Get returns the value at path.
func (a Annotations) Get(path ...string) (interface{}, bool) {
	var v interface{} = a
	for _, name := range path {
		node, ok := v.(Annotations)
		if !ok {
			return nil, false
		}
		if v, ok = node[name]; !ok {
			return nil, false
		}
	}
	return v, true
}

// Insert returns a copy of a with value placed at path. Only the maps
// along path are copied; a is not modified.
func (a Annotations) Insert(value interface{}, path ...string) Annotations {
	if len(path) == 0 {
		if node, ok := value.(Annotations); ok {
			return node
		}
		panic("bug: Annotations.Insert with empty path and non-struct value")
	}
	out := make(Annotations, len(a)+1)
	for k, v := range a {
		out[k] = v
	}
	if len(path) == 1 {
		out[path[0]] = value
		return out
	}
	child, _ := a[path[0]].(Annotations)
	out[path[0]] = child.Insert(value, path[1:]...)
	return out
}

// NewSet returns a sorted, de-duplicated copy of ss for use as a set
// value.
func NewSet(ss ...string) []string {
	set := append([]string{}, ss...)
	sort.Strings(set)
	out := set[:0]
	for i, s := range set {
		if i == 0 || s != set[i-1] {
			out = append(out, s)
		}
	}
	return out
}

// SplitPath splits a dotted annotation path like "sa.pheno.height".
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

func (a Annotations) String() string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %v", k, a[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
