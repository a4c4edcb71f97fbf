// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bser implements encoding and decoding of BSER, the binary
// serialization format used by [Watchman] for its command and event stream.
// The package maps Go values onto the BSER wire format in the style of
// [encoding/json]; the syntactic layer of the format is implemented in
// [codello.dev/bser/wire].
//
// # Mapping of Go Types to BSER Values
//
// The following Go types translate into their BSER counterparts:
//
//   - A Go bool corresponds to the BSER boolean.
//   - All Go integer types correspond to the BSER integer. Values are encoded
//     using the smallest of the four integer widths that can represent them.
//     Unsigned values above the maximum signed 64-bit integer cannot be
//     encoded.
//   - The types float32 and float64 correspond to the BSER real. A float32 is
//     widened to a double before encoding.
//   - The Go string type, byte slices and byte arrays correspond to the BSER
//     string. BSER strings are byte strings; no UTF-8 validation is performed
//     in either direction.
//   - Types that implement [encoding.BinaryMarshaler] or
//     [encoding.TextMarshaler] are encoded as BSER strings of their binary or
//     text form. The inverse interfaces are honored during decoding; only the
//     text form demands valid UTF-8.
//   - Go slices and arrays correspond to the BSER array.
//   - Go maps and structs correspond to the BSER object. Map keys must be
//     strings, byte slices, byte arrays, integers (rendered as decimal
//     strings) or types implementing [encoding.TextMarshaler]. Map entries are encoded in byte-wise sorted key order so that
//     output is deterministic.
//   - A nil pointer or nil interface encodes as the BSER null. Decoding null
//     into a pointer sets it to nil; nil maps and slices encode as empty
//     composites.
//   - The [Variant] type corresponds to the two wire forms Watchman uses for
//     tagged unions.
//
// Decoding into an interface{} produces bool, int64, float64, string, nil,
// []any and map[string]any values. The templated array form - a packed
// sequence of objects sharing one key list - is transparently expanded during
// decoding; it is never produced during encoding.
//
// # Struct Tags
//
// The encoding of struct fields can be customized via `bser` struct tags:
//
//	type Query struct {
//		Root    string   `bser:"root"`
//		Fields  []string `bser:"fields,omitzero"`
//		private int      // unexported fields are ignored
//		Skipped int      `bser:"-"`
//	}
//
// The first tag element overrides the object key. The "omitzero" option omits
// the field during encoding if it holds the zero value for its type; if the
// type implements IsZero() bool, that method is consulted. During decoding,
// object keys that do not correspond to any struct field are skipped.
//
// # Byte Order
//
// Multi-byte numeric payloads use a byte order fixed when an [Encoder] or
// [Decoder] is constructed, defaulting to the host-native order. The wire
// carries no indication of the order used; both endpoints must agree.
//
// [Watchman]: https://facebook.github.io/watchman/docs/bser.html
package bser

// Variant is a value of a tagged union. Watchman encodes unions in one of two
// wire forms: a bare string naming a unit variant, or a single-entry object
// whose key names the variant and whose value carries its payload.
//
// A Variant with a nil Value encodes as the bare string form and a Variant
// decoded from the bare string form has a nil Value.
type Variant struct {
	Name  string
	Value any
}
