// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bser

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"io"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"codello.dev/bser/internal"
	"codello.dev/bser/wire"
)

//region type Encoder

// Encoder encodes Go values into a BSER byte stream. It is the counterpart to
// the [Decoder] type.
//
// An Encoder owns its writer exclusively and writes values strictly
// sequentially. After an Encode call returns an error, the state of the
// output stream is undefined and the Encoder must be discarded.
type Encoder struct {
	w *wire.Encoder
}

// NewEncoder creates a new [Encoder] writing to w using the host-native byte
// order. The encoder writes many small chunks; if w is not an
// [io.ByteWriter], wrapping it in a [bufio.Writer] is usually worthwhile.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: wire.NewEncoder(w)}
}

// SetByteOrder configures the byte order used for multi-byte numeric
// payloads. It must be called before the first Encode.
func (e *Encoder) SetByteOrder(order binary.ByteOrder) { e.w.SetByteOrder(order) }

// Encode writes the BSER encoding of val to the underlying writer as one
// top-level value.
func (e *Encoder) Encode(val any) error {
	return encodeValue(e.w, reflect.ValueOf(val))
}

//endregion

// Marshal returns the BSER encoding of val using the host-native byte order.
func Marshal(val any) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Encode(val); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var variantType = reflect.TypeFor[Variant]()

// encodeValue writes one value to w. The Go kind of v selects the wire form;
// pointer and interface indirections are followed, checking for
// [encoding.BinaryMarshaler] and [encoding.TextMarshaler] implementations
// along the way so that pointer-receiver methods are found.
func encodeValue(w *wire.Encoder, v reflect.Value) error {
	if !v.IsValid() {
		return w.WriteNull()
	}
	// If v is a named type and is addressable, start with its address, so that
	// if the type has pointer methods, we find them.
	if v.Kind() != reflect.Pointer && v.Type().Name() != "" && v.CanAddr() {
		v = v.Addr()
	}
	for {
		if v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
			if v.IsNil() {
				return w.WriteNull()
			}
		}
		if v.CanInterface() {
			switch m := v.Interface().(type) {
			case encoding.BinaryMarshaler:
				b, err := m.MarshalBinary()
				if err != nil {
					return err
				}
				return w.WriteBytes(b)
			case encoding.TextMarshaler:
				b, err := m.MarshalText()
				if err != nil {
					return err
				}
				return w.WriteBytes(b)
			}
		}
		if v.Kind() != reflect.Pointer && v.Kind() != reflect.Interface {
			break
		}
		// Prevent infinite loop if v is an interface pointing to its own address:
		//     var v interface{}
		//     v = &v
		if v.Kind() == reflect.Pointer && v.Elem().Kind() == reflect.Interface && v.Elem().Elem() == v {
			return &UnsupportedTypeError{Type: v.Type()}
		}
		v = v.Elem()
	}

	if v.Type() == variantType {
		return encodeVariant(w, v.Interface().(Variant))
	}

	switch v.Kind() {
	case reflect.Bool:
		return w.WriteBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return w.WriteInt(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return w.WriteUint(v.Uint())
	case reflect.Float32, reflect.Float64:
		return w.WriteFloat(v.Float())
	case reflect.String:
		return w.WriteString(v.String())
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return w.WriteBytes(byteSlice(v))
		}
		if err := w.BeginArray(v.Len()); err != nil {
			return err
		}
		for i := range v.Len() {
			if err := encodeValue(w, v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		return encodeMap(w, v)
	case reflect.Struct:
		return encodeStruct(w, v)
	default:
		return &UnsupportedTypeError{Type: v.Type()}
	}
}

// byteSlice returns the bytes of a byte slice or byte array value.
func byteSlice(v reflect.Value) []byte {
	if v.Kind() == reflect.Slice || v.CanAddr() {
		return v.Bytes()
	}
	b := make([]byte, v.Len())
	reflect.Copy(reflect.ValueOf(b), v)
	return b
}

// encodeVariant writes the wire form of a [Variant]: a bare string for a unit
// variant, a single-entry object otherwise.
func encodeVariant(w *wire.Encoder, vv Variant) error {
	if vv.Value == nil {
		return w.WriteString(vv.Name)
	}
	if err := w.BeginObject(1); err != nil {
		return err
	}
	if err := w.WriteString(vv.Name); err != nil {
		return err
	}
	return encodeValue(w, reflect.ValueOf(vv.Value))
}

// encodeMap writes v as an object. Keys pass through mapKey and entries are
// written in byte-wise sorted key order so that output is deterministic.
func encodeMap(w *wire.Encoder, v reflect.Value) error {
	type entry struct {
		key string
		val reflect.Value
	}
	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key, err := mapKey(iter.Key())
		if err != nil {
			return err
		}
		entries = append(entries, entry{key, iter.Value()})
	}
	slices.SortFunc(entries, func(a, b entry) int {
		return strings.Compare(a.key, b.key)
	})

	if err := w.BeginObject(len(entries)); err != nil {
		return err
	}
	for _, ent := range entries {
		if err := w.WriteString(ent.key); err != nil {
			return err
		}
		if err := encodeValue(w, ent.val); err != nil {
			return err
		}
	}
	return nil
}

// mapKey renders a map key as the string it will occupy on the wire. Integer
// keys are rendered as ASCII decimal; this loses the round-trip property for
// integer-keyed maps decoded into untyped destinations.
func mapKey(k reflect.Value) (string, error) {
	if k.CanInterface() {
		if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
			b, err := tm.MarshalText()
			if err != nil {
				return "", err
			}
			return string(b), nil
		}
	}
	switch k.Kind() {
	case reflect.String:
		return k.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	case reflect.Slice, reflect.Array:
		if k.Type().Elem().Kind() == reflect.Uint8 {
			return string(byteSlice(k)), nil
		}
	}
	return "", &NonStringKeyError{Type: k.Type()}
}

// encodeStruct writes v as an object of its fields in declaration order.
// Fields are collected up front because the entry count must precede them on
// the wire and "omitzero" fields do not count.
func encodeStruct(w *wire.Encoder, v reflect.Value) error {
	type field struct {
		name string
		val  reflect.Value
	}
	var fields []field
	for fv, params := range internal.StructFields(v) {
		if params.OmitZero && isZero(fv) {
			continue
		}
		fields = append(fields, field{params.Name, fv})
	}

	if err := w.BeginObject(len(fields)); err != nil {
		return err
	}
	for _, f := range fields {
		if err := w.WriteString(f.name); err != nil {
			return err
		}
		if err := encodeValue(w, f.val); err != nil {
			return err
		}
	}
	return nil
}

// isZero reports whether v should be considered zero for the purpose of the
// "omitzero" struct tag option.
func isZero(v reflect.Value) bool {
	if v.CanInterface() {
		if z, ok := v.Interface().(interface{ IsZero() bool }); ok {
			return z.IsZero()
		}
	}
	return v.IsZero()
}
