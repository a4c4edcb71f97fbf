// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bser

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"unicode/utf8"

	"codello.dev/bser/internal"
	"codello.dev/bser/wire"
)

//region type Decoder

// Decoder decodes a BSER byte stream into Go values. It is the counterpart to
// the [Encoder] type.
//
// A Decoder owns its source exclusively. It may be used to decode a sequence
// of top-level values; [Decoder.End] asserts that the input is exhausted.
// After a Decode call returns an error, the position in the input stream is
// undefined and the Decoder must be discarded.
type Decoder struct {
	w *wire.Decoder
}

// NewDecoder creates a new [Decoder] reading from r using the host-native
// byte order. Decoding requires single-byte reads; if r does not implement
// [io.ByteReader], wrapping it in a [bufio.Reader] is usually worthwhile.
// Note that a buffered reader may consume bytes past the end of the decoded
// value.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{w: wire.NewDecoder(wire.NewStreamSource(r))}
}

// NewDecoderBytes creates a new [Decoder] reading from b. Byte strings
// delivered to [encoding.BinaryUnmarshaler] implementations borrow directly
// from b instead of going through a scratch buffer.
func NewDecoderBytes(b []byte) *Decoder {
	return &Decoder{w: wire.NewDecoder(wire.NewSliceSource(b))}
}

// SetByteOrder configures the byte order used for multi-byte numeric
// payloads. It must be called before the first Decode.
func (d *Decoder) SetByteOrder(order binary.ByteOrder) { d.w.SetByteOrder(order) }

// Decode reads one top-level value from the input and stores it in the value
// pointed to by val. If val is nil or not a pointer, Decode returns an
// [InvalidDecodeError].
func (d *Decoder) Decode(val any) error {
	v := reflect.ValueOf(val)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return &InvalidDecodeError{Value: v}
	}
	return d.value(v.Elem())
}

// End asserts that the input is exhausted. It returns
// [wire.ErrTrailingBytes] if any input remains after the decoded values.
func (d *Decoder) End() error {
	return d.w.End()
}

//endregion

// Unmarshal decodes the BSER-encoded data into the value pointed to by val
// using the host-native byte order. Byte strings are borrowed from data where
// possible. If any input remains after the value, [wire.ErrTrailingBytes] is
// returned.
func Unmarshal(data []byte, val any) error {
	d := NewDecoderBytes(data)
	if err := d.Decode(val); err != nil {
		return err
	}
	return d.End()
}

// UnmarshalFrom decodes one BSER value from r into the value pointed to by
// val and asserts that no input remains. See [NewDecoder] for buffering
// considerations.
func UnmarshalFrom(r io.Reader, val any) error {
	d := NewDecoder(r)
	if err := d.Decode(val); err != nil {
		return err
	}
	return d.End()
}

//region value decoding

// value decodes a single value from the wire into v. The wire tag is matched
// against the kind of v after following pointer and interface indirections.
func (d *Decoder) value(rv reflect.Value) error {
	t, err := d.w.PeekTag()
	if err != nil {
		return err
	}

	v, bu, tu := indirect(rv, t == wire.TagNull)
	if bu != nil {
		b, err := d.text(t, v.Type())
		if err != nil {
			return err
		}
		return bu.UnmarshalBinary(b)
	}
	if tu != nil {
		b, err := d.text(t, v.Type())
		if err != nil {
			return err
		}
		if !utf8.Valid(b) {
			return ErrInvalidUTF8
		}
		return tu.UnmarshalText(b)
	}
	if v.Type() == variantType {
		return d.variant(v)
	}

	switch t {
	case wire.TagNull:
		d.w.ReadTag()
		switch v.Kind() {
		case reflect.Interface, reflect.Pointer:
			v.SetZero()
			return nil
		}
		return &TypeError{Tag: t, Type: v.Type()}

	case wire.TagTrue, wire.TagFalse:
		d.w.ReadTag()
		b := t == wire.TagTrue
		if v.Kind() == reflect.Bool {
			v.SetBool(b)
			return nil
		}
		if v.Kind() == reflect.Interface {
			return setAny(v, b)
		}
		return &TypeError{Tag: t, Type: v.Type()}

	case wire.TagInt8, wire.TagInt16, wire.TagInt32, wire.TagInt64:
		d.w.ReadTag()
		n, err := d.w.ReadInt(t)
		if err != nil {
			return err
		}
		return setInt(v, t, n)

	case wire.TagReal:
		d.w.ReadTag()
		f, err := d.w.ReadFloat()
		if err != nil {
			return err
		}
		switch v.Kind() {
		case reflect.Float32, reflect.Float64:
			if v.OverflowFloat(f) {
				return &TypeError{Tag: t, Type: v.Type(), Err: wire.ErrIntegerOverflow}
			}
			v.SetFloat(f)
			return nil
		case reflect.Interface:
			return setAny(v, f)
		}
		return &TypeError{Tag: t, Type: v.Type()}

	case wire.TagString:
		d.w.ReadTag()
		ref, err := d.w.ReadString()
		if err != nil {
			return err
		}
		return setBytes(v, ref.Bytes())

	case wire.TagArray:
		d.w.ReadTag()
		return d.array(v)

	case wire.TagObject:
		d.w.ReadTag()
		return d.object(v)

	case wire.TagTemplated:
		d.w.ReadTag()
		return d.templated(v)

	case wire.TagMissing:
		return &TypeError{Tag: t, Type: v.Type(), Err: errors.New("only valid inside a templated row")}
	}
	panic("unreachable")
}

// text reads the byte string demanded by an [encoding.BinaryUnmarshaler] or
// [encoding.TextUnmarshaler] destination.
func (d *Decoder) text(t wire.Tag, typ reflect.Type) ([]byte, error) {
	if t != wire.TagString {
		return nil, &TypeError{Tag: t, Type: typ}
	}
	if _, err := d.w.ReadTag(); err != nil {
		return nil, err
	}
	ref, err := d.w.ReadString()
	if err != nil {
		return nil, err
	}
	return ref.Bytes(), nil
}

// setAny stores x in the interface value v.
func setAny(v reflect.Value, x any) error {
	if v.NumMethod() != 0 {
		return &InvalidDecodeError{Value: v}
	}
	if x == nil {
		v.SetZero()
	} else {
		v.Set(reflect.ValueOf(x))
	}
	return nil
}

// setInt stores the decoded integer n in v, converting to the destination
// kind with overflow checks. Float destinations accept integers; integer
// destinations do not accept reals.
func setInt(v reflect.Value, t wire.Tag, n int64) error {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.OverflowInt(n) {
			return &TypeError{Tag: t, Type: v.Type(), Err: wire.ErrIntegerOverflow}
		}
		v.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if n < 0 || v.OverflowUint(uint64(n)) {
			return &TypeError{Tag: t, Type: v.Type(), Err: wire.ErrIntegerOverflow}
		}
		v.SetUint(uint64(n))
		return nil
	case reflect.Float32, reflect.Float64:
		v.SetFloat(float64(n))
		return nil
	case reflect.Interface:
		return setAny(v, n)
	}
	return &TypeError{Tag: t, Type: v.Type()}
}

// setBytes stores the decoded byte string b in v. The bytes are copied; b is
// only valid until the next read from the source.
func setBytes(v reflect.Value, b []byte) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(string(b))
		return nil
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			v.SetBytes(bytes.Clone(b))
			return nil
		}
	case reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			if v.Len() != len(b) {
				return &TypeError{Tag: wire.TagString, Type: v.Type(), Err: fmt.Errorf("%d bytes do not fit", len(b))}
			}
			reflect.Copy(v, reflect.ValueOf(b))
			return nil
		}
	case reflect.Interface:
		return setAny(v, string(b))
	}
	return &TypeError{Tag: wire.TagString, Type: v.Type()}
}

//endregion

//region composite decoding

// array decodes an array value (whose tag has been consumed) into v.
func (d *Decoder) array(v reflect.Value) error {
	n, err := d.w.ReadLength()
	if err != nil {
		return err
	}
	switch v.Kind() {
	case reflect.Slice:
		elemType := v.Type().Elem()
		slice := reflect.MakeSlice(v.Type(), 0, min(n, 16))
		for range n {
			ev := reflect.New(elemType).Elem()
			if err := d.value(ev); err != nil {
				return err
			}
			slice = reflect.Append(slice, ev)
		}
		v.Set(slice)
		return nil

	case reflect.Array:
		if n != v.Len() {
			return &TypeError{Tag: wire.TagArray, Type: v.Type(), Err: fmt.Errorf("%d elements do not fit", n)}
		}
		for i := range n {
			if err := d.value(v.Index(i)); err != nil {
				return err
			}
		}
		return nil

	case reflect.Struct:
		// positional form: array elements are the struct fields in order
		var fields []reflect.Value
		for fv := range internal.StructFields(v) {
			fields = append(fields, fv)
		}
		if n != len(fields) {
			return &TypeError{Tag: wire.TagArray, Type: v.Type(), Err: fmt.Errorf("got %d values for %d fields", n, len(fields))}
		}
		for _, fv := range fields {
			if err := d.value(fv); err != nil {
				return err
			}
		}
		return nil

	case reflect.Interface:
		s := make([]any, 0, min(n, 16))
		for range n {
			x, err := d.anyValue()
			if err != nil {
				return err
			}
			s = append(s, x)
		}
		return setAny(v, s)
	}
	return &TypeError{Tag: wire.TagArray, Type: v.Type()}
}

// object decodes an object value (whose tag has been consumed) into v.
func (d *Decoder) object(v reflect.Value) error {
	n, err := d.w.ReadLength()
	if err != nil {
		return err
	}
	switch v.Kind() {
	case reflect.Map:
		t := v.Type()
		if v.IsNil() {
			v.Set(reflect.MakeMap(t))
		}
		elemType := t.Elem()
		for range n {
			kb, err := d.objectKey()
			if err != nil {
				return err
			}
			kv, err := mapKeyValue(t.Key(), kb)
			if err != nil {
				return err
			}
			ev := reflect.New(elemType).Elem()
			if err := d.value(ev); err != nil {
				return err
			}
			v.SetMapIndex(kv, ev)
		}
		return nil

	case reflect.Struct:
		fields := structFieldsByName(v)
		for range n {
			kb, err := d.objectKey()
			if err != nil {
				return err
			}
			fv, ok := fields[string(kb)]
			if !ok {
				if err := d.skip(); err != nil {
					return err
				}
				continue
			}
			if err := d.value(fv); err != nil {
				return err
			}
		}
		return nil

	case reflect.Interface:
		m := make(map[string]any, min(n, 16))
		for range n {
			kb, err := d.objectKey()
			if err != nil {
				return err
			}
			key := string(kb)
			x, err := d.anyValue()
			if err != nil {
				return err
			}
			m[key] = x
		}
		return setAny(v, m)
	}
	return &TypeError{Tag: wire.TagObject, Type: v.Type()}
}

// templated decodes a templated array (whose tag has been consumed) into v.
// The physical form is an array of string keys, a row count, and rows of
// exactly one cell per key; a Missing cell means the key is absent from that
// row's logical object.
func (d *Decoder) templated(v reflect.Value) error {
	t, err := d.w.ReadTag()
	if err != nil {
		return err
	}
	if t != wire.TagArray {
		return &TypeError{Tag: t, Type: v.Type(), Err: errors.New("templated value must begin with its key array")}
	}
	k, err := d.w.ReadLength()
	if err != nil {
		return err
	}
	// The keys must outlive every row of the scan. Converting to string copies
	// them out of the scratch buffer before the row reads reuse it.
	keys := make([]string, k)
	for i := range keys {
		kb, err := d.objectKey()
		if err != nil {
			return err
		}
		keys[i] = string(kb)
	}
	n, err := d.w.ReadLength()
	if err != nil {
		return err
	}

	switch v.Kind() {
	case reflect.Slice:
		elemType := v.Type().Elem()
		slice := reflect.MakeSlice(v.Type(), 0, min(n, 16))
		for range n {
			ev := reflect.New(elemType).Elem()
			if err := d.row(ev, keys); err != nil {
				return err
			}
			slice = reflect.Append(slice, ev)
		}
		v.Set(slice)
		return nil

	case reflect.Array:
		if n != v.Len() {
			return &TypeError{Tag: wire.TagTemplated, Type: v.Type(), Err: fmt.Errorf("%d rows do not fit", n)}
		}
		for i := range n {
			if err := d.row(v.Index(i), keys); err != nil {
				return err
			}
		}
		return nil

	case reflect.Interface:
		s := make([]any, 0, min(n, 16))
		for range n {
			var ev reflect.Value
			m := map[string]any{}
			ev = reflect.ValueOf(&m).Elem()
			if err := d.row(ev, keys); err != nil {
				return err
			}
			s = append(s, m)
		}
		return setAny(v, s)
	}
	return &TypeError{Tag: wire.TagTemplated, Type: v.Type()}
}

// row decodes a single templated row into v. Exactly one cell per key is
// consumed from the wire; Missing cells are consumed and skipped so that the
// resulting object omits the key entirely.
func (d *Decoder) row(rv reflect.Value, keys []string) error {
	v, bu, tu := indirect(rv, false)
	if bu != nil || tu != nil {
		return &TypeError{Tag: wire.TagTemplated, Type: v.Type()}
	}

	switch v.Kind() {
	case reflect.Map:
		t := v.Type()
		if v.IsNil() {
			v.Set(reflect.MakeMap(t))
		}
		elemType := t.Elem()
		for _, key := range keys {
			ok, err := d.cell()
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			kv, err := mapKeyValue(t.Key(), []byte(key))
			if err != nil {
				return err
			}
			ev := reflect.New(elemType).Elem()
			if err := d.value(ev); err != nil {
				return err
			}
			v.SetMapIndex(kv, ev)
		}
		return nil

	case reflect.Struct:
		fields := structFieldsByName(v)
		for _, key := range keys {
			ok, err := d.cell()
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			fv, ok2 := fields[key]
			if !ok2 {
				if err := d.skip(); err != nil {
					return err
				}
				continue
			}
			if err := d.value(fv); err != nil {
				return err
			}
		}
		return nil

	case reflect.Interface:
		m := map[string]any{}
		for _, key := range keys {
			ok, err := d.cell()
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			x, err := d.anyValue()
			if err != nil {
				return err
			}
			m[key] = x
		}
		return setAny(v, m)
	}
	return &TypeError{Tag: wire.TagTemplated, Type: v.Type()}
}

// cell peeks at the next cell of a templated row. If the cell is Missing it
// is consumed and cell returns false; otherwise the cell's value remains to
// be read.
func (d *Decoder) cell() (bool, error) {
	t, err := d.w.PeekTag()
	if err != nil {
		return false, err
	}
	if t == wire.TagMissing {
		d.w.ReadTag()
		return false, nil
	}
	return true, nil
}

// variant decodes one of the two union wire forms into a [Variant] value.
func (d *Decoder) variant(v reflect.Value) error {
	t, err := d.w.PeekTag()
	if err != nil {
		return err
	}
	switch t {
	case wire.TagString:
		d.w.ReadTag()
		ref, err := d.w.ReadString()
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(Variant{Name: string(ref.Bytes())}))
		return nil

	case wire.TagObject:
		d.w.ReadTag()
		n, err := d.w.ReadLength()
		if err != nil {
			return err
		}
		if n != 1 {
			return &TypeError{Tag: t, Type: variantType, Err: fmt.Errorf("variant object has %d entries, want 1", n)}
		}
		kb, err := d.objectKey()
		if err != nil {
			return err
		}
		name := string(kb)
		payload, err := d.anyValue()
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(Variant{Name: name, Value: payload}))
		return nil
	}
	return &TypeError{Tag: t, Type: variantType}
}

//endregion

//region helpers

// objectKey reads an object key. Non-string keys are a serialization error,
// never a valid wire state. The returned bytes are only valid until the next
// read from the source.
func (d *Decoder) objectKey() ([]byte, error) {
	t, err := d.w.ReadTag()
	if err != nil {
		return nil, err
	}
	if t != wire.TagString {
		return nil, &TypeError{Tag: t, Err: errors.New("object key must be a string")}
	}
	ref, err := d.w.ReadString()
	if err != nil {
		return nil, err
	}
	return ref.Bytes(), nil
}

// anyValue decodes the next value into its default Go representation.
func (d *Decoder) anyValue() (any, error) {
	var x any
	err := d.value(reflect.ValueOf(&x).Elem())
	return x, err
}

// skip consumes one complete value without materializing it.
func (d *Decoder) skip() error {
	t, err := d.w.ReadTag()
	if err != nil {
		return err
	}
	switch t {
	case wire.TagNull, wire.TagTrue, wire.TagFalse:
		return nil
	case wire.TagInt8, wire.TagInt16, wire.TagInt32, wire.TagInt64:
		_, err := d.w.ReadInt(t)
		return err
	case wire.TagReal:
		_, err := d.w.ReadFloat()
		return err
	case wire.TagString:
		_, err := d.w.ReadString()
		return err
	case wire.TagArray:
		n, err := d.w.ReadLength()
		if err != nil {
			return err
		}
		for range n {
			if err := d.skip(); err != nil {
				return err
			}
		}
		return nil
	case wire.TagObject:
		n, err := d.w.ReadLength()
		if err != nil {
			return err
		}
		for range n {
			if _, err := d.objectKey(); err != nil {
				return err
			}
			if err := d.skip(); err != nil {
				return err
			}
		}
		return nil
	case wire.TagTemplated:
		at, err := d.w.ReadTag()
		if err != nil {
			return err
		}
		if at != wire.TagArray {
			return &TypeError{Tag: at, Err: errors.New("templated value must begin with its key array")}
		}
		k, err := d.w.ReadLength()
		if err != nil {
			return err
		}
		for range k {
			if _, err := d.objectKey(); err != nil {
				return err
			}
		}
		n, err := d.w.ReadLength()
		if err != nil {
			return err
		}
		for range n {
			for range k {
				ok, err := d.cell()
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				if err := d.skip(); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return &TypeError{Tag: t, Err: errors.New("only valid inside a templated row")}
}

// mapKeyValue converts the key bytes b into a value of the map key type t.
func mapKeyValue(t reflect.Type, b []byte) (reflect.Value, error) {
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		kv := reflect.New(t)
		if !utf8.Valid(b) {
			return reflect.Value{}, ErrInvalidUTF8
		}
		if err := kv.Interface().(encoding.TextUnmarshaler).UnmarshalText(b); err != nil {
			return reflect.Value{}, err
		}
		return kv.Elem(), nil
	}
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(string(b)).Convert(t), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil || reflect.Zero(t).OverflowInt(n) {
			return reflect.Value{}, fmt.Errorf("bser: cannot decode object key %q into %s", b, t)
		}
		return reflect.ValueOf(n).Convert(t), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := strconv.ParseUint(string(b), 10, 64)
		if err != nil || reflect.Zero(t).OverflowUint(n) {
			return reflect.Value{}, fmt.Errorf("bser: cannot decode object key %q into %s", b, t)
		}
		return reflect.ValueOf(n).Convert(t), nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			kv := reflect.New(t).Elem()
			kv.SetBytes(bytes.Clone(b))
			return kv, nil
		}
	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			if t.Len() != len(b) {
				return reflect.Value{}, fmt.Errorf("bser: cannot decode object key %q into %s", b, t)
			}
			kv := reflect.New(t).Elem()
			reflect.Copy(kv, reflect.ValueOf(b))
			return kv, nil
		}
	}
	return reflect.Value{}, fmt.Errorf("bser: cannot decode object key into %s", t)
}

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

// structFieldsByName collects the settable fields of a struct value indexed
// by their object keys.
func structFieldsByName(v reflect.Value) map[string]reflect.Value {
	fields := make(map[string]reflect.Value)
	for fv, params := range internal.StructFields(v) {
		if _, ok := fields[params.Name]; !ok {
			fields[params.Name] = fv
		}
	}
	return fields
}

// indirect walks down v allocating pointers as needed until it gets to a
// non-pointer value. If it encounters a type implementing
// [encoding.BinaryUnmarshaler] or [encoding.TextUnmarshaler], indirect stops
// and returns that. If decodingNull is true, indirect stops at the last
// settable pointer so it can be set to nil.
func indirect(v reflect.Value, decodingNull bool) (reflect.Value, encoding.BinaryUnmarshaler, encoding.TextUnmarshaler) {
	// Issue golang/go#24153 indicates that it is generally not a guaranteed
	// property that you may round-trip a reflect.Value by calling
	// Value.Addr().Elem() and expect the value to still be settable for values
	// derived from unexported embedded struct fields.
	v0 := v
	haveAddr := false

	// If v is a named type and is addressable, start with its address, so that
	// if the type has pointer methods, we find them.
	if v.Kind() != reflect.Pointer && v.Type().Name() != "" && v.CanAddr() {
		haveAddr = true
		v = v.Addr()
	}
	for {
		if v.Kind() == reflect.Interface && !v.IsNil() {
			e := v.Elem()
			if e.Kind() == reflect.Pointer && !e.IsNil() && (!decodingNull || e.Elem().Kind() == reflect.Pointer) {
				haveAddr = false
				v = e
				continue
			}
		}
		if v.Kind() != reflect.Pointer {
			break
		}
		if decodingNull && v.CanSet() {
			break
		}

		// Prevent infinite loop if v is an interface pointing to its own
		// address:
		//     var v interface{}
		//     v = &v
		if v.Elem().Kind() == reflect.Interface && v.Elem().Elem() == v {
			v = v.Elem()
			break
		}
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		if v.Type().NumMethod() > 0 && v.CanInterface() {
			switch u := v.Interface().(type) {
			case encoding.BinaryUnmarshaler:
				return v, u, nil
			case encoding.TextUnmarshaler:
				return v, nil, u
			}
		}

		if haveAddr {
			v = v0 // restore original value after round-trip Value.Addr().Elem()
			haveAddr = false
		} else {
			v = v.Elem()
		}
	}
	return v, nil, nil
}

//endregion
