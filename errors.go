// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bser

import (
	"errors"
	"reflect"
	"strings"

	"codello.dev/bser/wire"
)

// ErrInvalidUTF8 indicates that a value demanding a text view - an
// [encoding.TextUnmarshaler] destination - received a byte string that is not
// valid UTF-8. Plain string destinations receive the bytes unvalidated.
var ErrInvalidUTF8 = errors.New("bser: invalid UTF-8 in text value")

// UnsupportedTypeError indicates that a value was passed to [Marshal] or an
// Encode function that cannot be represented in BSER.
type UnsupportedTypeError struct {
	Type reflect.Type
}

func (e *UnsupportedTypeError) Error() string {
	if e.Type == nil {
		return "bser: cannot encode nil value"
	}
	return "bser: unsupported type: " + e.Type.String()
}

// NonStringKeyError indicates that a map key could not be rendered as a BSER
// string. Supported key kinds are strings, byte slices, integers and types
// implementing [encoding.TextMarshaler].
type NonStringKeyError struct {
	Type reflect.Type
}

func (e *NonStringKeyError) Error() string {
	return "bser: map key of type " + e.Type.String() + " cannot be encoded as a string"
}

// InvalidDecodeError indicates that an invalid value was passed to an
// Unmarshal or Decode function.
type InvalidDecodeError struct {
	Value reflect.Value
}

func (e *InvalidDecodeError) Error() string {
	if !e.Value.IsValid() {
		return "bser: cannot decode into nil value"
	}
	if e.Value.Kind() == reflect.Pointer && e.Value.IsNil() {
		return "bser: cannot decode into nil pointer of type " + e.Value.Type().String()
	}
	if e.Value.Kind() != reflect.Pointer {
		return "bser: cannot decode into non-pointer type " + e.Value.Type().String()
	}
	return "bser: cannot decode into value of type " + e.Value.Type().String()
}

// TypeError indicates that the tag on the wire did not satisfy the shape
// requested by the destination type.
type TypeError struct {
	Tag  wire.Tag     // the tag actually encountered
	Type reflect.Type // the Go destination, may be nil
	Err  error        // optional underlying cause
}

func (e *TypeError) Error() string {
	var s strings.Builder
	s.WriteString("bser: cannot decode ")
	s.WriteString(e.Tag.String())
	if e.Type != nil {
		s.WriteString(" into ")
		s.WriteString(e.Type.String())
	}
	if e.Err != nil {
		s.WriteString(": ")
		s.WriteString(e.Err.Error())
	}
	return s.String()
}

func (e *TypeError) Unwrap() error {
	return e.Err
}
