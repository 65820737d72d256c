// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"fmt"
	"strings"
)

// Kind is the type tag of a Signature node.
type Kind int

const (
	KindStruct Kind = iota
	KindString
	KindDouble
	KindInt
	KindBoolean
	KindSet // set of strings
)

var kindNames = map[Kind]string{
	KindStruct:  "Struct",
	KindString:  "String",
	KindDouble:  "Double",
	KindInt:     "Int",
	KindBoolean: "Boolean",
	KindSet:     "Set[String]",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind accepts the type names used in sample table type
// declarations ("Double", "Int", "Boolean", "String").
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if k != KindStruct && strings.EqualFold(name, s) {
			return k, nil
		}
	}
	switch strings.ToLower(s) {
	case "float", "float64":
		return KindDouble, nil
	case "integer", "int64":
		return KindInt, nil
	case "bool", "flag":
		return KindBoolean, nil
	}
	return 0, fmt.Errorf("unknown type %q", s)
}

// Numeric returns true if values of kind k can be used as a number.
func (k Kind) Numeric() bool {
	return k == KindDouble || k == KindInt || k == KindBoolean
}

// Signature describes the schema of an Annotations tree: either a
// scalar leaf, or a struct with ordered named fields.
type Signature struct {
	Kind   Kind
	Fields []Field
}

type Field struct {
	Name string
	Sig  Signature
}

// Leaf returns a scalar signature.
func Leaf(k Kind) Signature { return Signature{Kind: k} }

// Struct returns a struct signature with the given fields.
func Struct(fields ...Field) Signature {
	return Signature{Kind: KindStruct, Fields: fields}
}

// Field returns the named field of a struct signature.
func (s Signature) Field(name string) (Signature, bool) {
	if s.Kind != KindStruct {
		return Signature{}, false
	}
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Sig, true
		}
	}
	return Signature{}, false
}

// Lookup follows path through nested structs.
func (s Signature) Lookup(path ...string) (Signature, bool) {
	for _, name := range path {
		var ok bool
		if s, ok = s.Field(name); !ok {
			return Signature{}, false
		}
	}
	return s, true
}

// Insert returns a copy of s with t placed at path, replacing any
// existing field of that name (and turning scalar intermediate nodes
// into structs). s itself is not modified.
func (s Signature) Insert(t Signature, path ...string) Signature {
	if len(path) == 0 {
		return t
	}
	if s.Kind != KindStruct {
		s = Struct()
	}
	fields := make([]Field, len(s.Fields), len(s.Fields)+1)
	copy(fields, s.Fields)
	for i, f := range fields {
		if f.Name == path[0] {
			fields[i].Sig = f.Sig.Insert(t, path[1:]...)
			return Struct(fields...)
		}
	}
	fields = append(fields, Field{Name: path[0], Sig: Signature{}.Insert(t, path[1:]...)})
	return Struct(fields...)
}

func (s Signature) String() string {
	if s.Kind != KindStruct {
		return s.Kind.String()
	}
	parts := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		parts[i] = f.Name + ": " + f.Sig.String()
	}
	return "Struct{" + strings.Join(parts, ", ") + "}"
}
