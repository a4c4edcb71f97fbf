// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package internal

import (
	"reflect"
	"testing"
)

func TestParseFieldParameters(t *testing.T) {
	tests := map[string]struct {
		input string
		want  FieldParameters
	}{
		"Empty":        {"", FieldParameters{}},
		"Ignore":       {"-", FieldParameters{Ignore: true}},
		"Name":         {"root", FieldParameters{Name: "root"}},
		"NameOmitZero": {"fields,omitzero", FieldParameters{Name: "fields", OmitZero: true}},
		"OmitZeroOnly": {",omitzero", FieldParameters{OmitZero: true}},
		"Unknown":      {"x,frobnicate", FieldParameters{Name: "x"}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := ParseFieldParameters(tc.input); got != tc.want {
				t.Errorf("ParseFieldParameters(%q): got %+v, want %+v", tc.input, got, tc.want)
			}
		})
	}
}

func TestStructFields(t *testing.T) {
	type Embedded struct {
		Inner string `bser:"inner"`
	}
	type outer struct {
		Embedded
		Name    string `bser:"name"`
		Plain   int
		Skipped int `bser:"-"`
		hidden  int
	}

	var names []string
	for _, params := range StructFields(reflect.ValueOf(outer{})) {
		names = append(names, params.Name)
	}
	want := []string{"inner", "name", "Plain"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("StructFields(): got %v, want %v", names, want)
	}
}
