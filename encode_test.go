// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bser

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"testing"

	"codello.dev/bser/wire"
)

// marshalLE encodes val using little-endian byte order so that expected byte
// sequences are independent of the host.
func marshalLE(val any) ([]byte, error) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	e.SetByteOrder(binary.LittleEndian)
	err := e.Encode(val)
	return buf.Bytes(), err
}

type basicObject struct {
	Name string `bser:"name"`
	Age  int32  `bser:"age"`
	Year int32  `bser:"year"`
}

func TestEncode(t *testing.T) {
	tests := map[string]struct {
		input any
		want  []byte
	}{
		"True":  {true, []byte{0x08}},
		"False": {false, []byte{0x09}},
		"Null":  {nil, []byte{0x0a}},
		"NilPointer": {(*int)(nil), []byte{0x0a}},
		"Int":   {43, []byte{0x03, 0x2b}},
		"Uint":  {uint16(300), []byte{0x04, 0x2c, 0x01}},
		"Float": {1.5, []byte{0x07, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xf8, 0x3f}},
		"Float32": {float32(1.5), []byte{0x07, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xf8, 0x3f}},
		"String": {"hi", []byte{0x02, 0x03, 0x02, 'h', 'i'}},
		"Bytes":  {[]byte{0xff, 0x00}, []byte{0x02, 0x03, 0x02, 0xff, 0x00}},
		"Array":  {[]int{1, 2}, []byte{0x00, 0x03, 0x02, 0x03, 0x01, 0x03, 0x02}},
		"BasicObject": {
			basicObject{Name: "John Doe", Age: 43, Year: 1976},
			[]byte{
				0x01, 0x03, 0x03,
				0x02, 0x03, 0x04, 'n', 'a', 'm', 'e',
				0x02, 0x03, 0x08, 'J', 'o', 'h', 'n', ' ', 'D', 'o', 'e',
				0x02, 0x03, 0x03, 'a', 'g', 'e',
				0x03, 0x2b,
				0x02, 0x03, 0x04, 'y', 'e', 'a', 'r',
				0x04, 0xb8, 0x07,
			},
		},
		"Map": {
			map[string]int64{"aaa": 10, "bbb": 20, "ccc": 0xdeadbeef, "ddd": -300},
			[]byte{
				0x01, 0x03, 0x04,
				0x02, 0x03, 0x03, 'a', 'a', 'a',
				0x03, 0x0a,
				0x02, 0x03, 0x03, 'b', 'b', 'b',
				0x03, 0x14,
				0x02, 0x03, 0x03, 'c', 'c', 'c',
				0x06, 0xef, 0xbe, 0xad, 0xde, 0x00, 0x00, 0x00, 0x00,
				0x02, 0x03, 0x03, 'd', 'd', 'd',
				0x04, 0xd4, 0xfe,
			},
		},
		"IntegerMapKeys": {
			map[int]bool{5: true},
			[]byte{0x01, 0x03, 0x01, 0x02, 0x03, 0x01, '5', 0x08},
		},
		"UnitVariant": {
			Variant{Name: "exists"},
			[]byte{0x02, 0x03, 0x06, 'e', 'x', 'i', 's', 't', 's'},
		},
		"PayloadVariant": {
			Variant{Name: "since", Value: 42},
			[]byte{0x01, 0x03, 0x01, 0x02, 0x03, 0x05, 's', 'i', 'n', 'c', 'e', 0x03, 0x2a},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := marshalLE(tc.input)
			if err != nil {
				t.Fatalf("Encode(%v) returned an unexpected error: %q", tc.input, err)
			}
			if !bytes.Equal(got, tc.want) {
				t.Errorf("Encode(%v): got %# x, want %# x", tc.input, got, tc.want)
			}
		})
	}
}

func TestEncode_OmitZero(t *testing.T) {
	type query struct {
		Root   string   `bser:"root"`
		Fields []string `bser:"fields,omitzero"`
	}
	got, err := marshalLE(query{Root: "/"})
	if err != nil {
		t.Fatalf("Encode() returned an unexpected error: %q", err)
	}
	want := []byte{0x01, 0x03, 0x01, 0x02, 0x03, 0x04, 'r', 'o', 'o', 't', 0x02, 0x03, 0x01, '/'}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode(): got %# x, want %# x", got, want)
	}
}

func TestEncode_Errors(t *testing.T) {
	t.Run("NonStringKey", func(t *testing.T) {
		_, err := marshalLE(map[float64]int{1.5: 1})
		var keyErr *NonStringKeyError
		if !errors.As(err, &keyErr) {
			t.Fatalf("Encode(): got error %q, want a *NonStringKeyError", err)
		}
	})

	t.Run("UintOverflow", func(t *testing.T) {
		_, err := marshalLE(uint64(math.MaxInt64) + 1)
		if !errors.Is(err, wire.ErrIntegerOverflow) {
			t.Errorf("Encode(): got error %q, want %q", err, wire.ErrIntegerOverflow)
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		_, err := marshalLE(make(chan int))
		var typeErr *UnsupportedTypeError
		if !errors.As(err, &typeErr) {
			t.Fatalf("Encode(): got error %q, want an *UnsupportedTypeError", err)
		}
	})

	t.Run("NoBytesPastObjectHeader", func(t *testing.T) {
		var buf bytes.Buffer
		e := NewEncoder(&buf)
		err := e.Encode(map[float64]int{1.5: 1})
		if err == nil {
			t.Fatal("Encode() did not return an error")
		}
		if buf.Len() != 0 {
			t.Errorf("Encode() wrote %# x before failing on the map key", buf.Bytes())
		}
	})
}

type binaryKey struct {
	b byte
}

func (k binaryKey) MarshalText() ([]byte, error) {
	return []byte{'k', k.b}, nil
}

func (k *binaryKey) UnmarshalText(b []byte) error {
	if len(b) != 2 || b[0] != 'k' {
		return fmt.Errorf("invalid key %q", b)
	}
	k.b = b[1]
	return nil
}

func TestEncode_TextMarshaler(t *testing.T) {
	got, err := marshalLE(map[binaryKey]int{{b: '1'}: 7})
	if err != nil {
		t.Fatalf("Encode() returned an unexpected error: %q", err)
	}
	want := []byte{0x01, 0x03, 0x01, 0x02, 0x03, 0x02, 'k', '1', 0x03, 0x07}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode(): got %# x, want %# x", got, want)
	}
}

func ExampleMarshal() {
	b, _ := Marshal(map[string]any{"ok": true})
	fmt.Printf("%# x\n", b)
	// Output: 0x01 0x03 0x01 0x02 0x03 0x02 0x6f 0x6b 0x08
}
