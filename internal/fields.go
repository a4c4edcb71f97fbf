// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package internal

import (
	"iter"
	"reflect"
	"strings"
)

// FieldParameters is the parsed representation of a `bser` struct tag.
type FieldParameters struct {
	Ignore   bool   // true iff this field should be ignored
	Name     string // key override, empty if not set
	OmitZero bool   // true iff this field should be omitted if zero when marshaling
}

// ParseFieldParameters parses a given tag string into a FieldParameters
// structure, ignoring unknown parts of the string. The first comma-separated
// part is the key name, the remaining parts are options:
//
//	`bser:"myName"`          use myName as the object key
//	`bser:"myName,omitzero"` additionally omit the field if it is zero
//	`bser:",omitzero"`       keep the field name, omit if zero
//	`bser:"-"`               ignore the field
func ParseFieldParameters(str string) (ret FieldParameters) {
	if str == "-" {
		ret.Ignore = true
		return ret
	}
	name, rest, _ := strings.Cut(str, ",")
	ret.Name = name
	for part := range strings.SplitSeq(rest, ",") {
		switch part {
		case "omitzero":
			ret.OmitZero = true
		}
	}
	return ret
}

// StructFields returns a sequence that iterates over the fields of the struct
// identified by v together with their object keys. Struct fields with a
// `bser:"-"` tag are ignored, as are non-exported struct fields. Fields of
// embedded structs are returned as if they were fields of the containing
// struct.
func StructFields(v reflect.Value) iter.Seq2[reflect.Value, FieldParameters] {
	return func(yield func(reflect.Value, FieldParameters) bool) {
		t := v.Type()
		for i := range t.NumField() {
			field := t.Field(i)
			params := ParseFieldParameters(field.Tag.Get("bser"))
			if params.Ignore || !field.IsExported() {
				continue
			}
			if field.Anonymous && params.Name == "" && field.Type.Kind() == reflect.Struct {
				for vv, params := range StructFields(v.Field(i)) {
					if !yield(vv, params) {
						return
					}
				}
				continue
			}
			if params.Name == "" {
				params.Name = field.Name
			}
			if !yield(v.Field(i), params) {
				return
			}
		}
	}
}
