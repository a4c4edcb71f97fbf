package wire

import (
	"encoding/binary"
	"io"
	"math"
)

// Encoder is a streaming encoder for the syntactic layer of BSER. It writes
// tags, lengths and primitive payloads to an underlying [io.Writer] in the
// exact byte order of the format; it never seeks and performs no buffering
// beyond a small scratch array, so callers writing many small values should
// hand it a buffered writer.
//
// The byte order for multi-byte payloads is fixed at construction and
// defaults to [binary.NativeEndian], matching Watchman's local-socket usage.
//
// Encoder never emits the Templated or Missing tags; the templated form is a
// decode-side representation only.
type Encoder struct {
	w     io.Writer
	bw    io.ByteWriter // non-nil iff w implements io.ByteWriter
	order binary.ByteOrder

	scratch [9]byte
}

// NewEncoder creates a new [Encoder] writing to w using the host-native byte
// order.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: w, order: binary.NativeEndian}
	if bw, ok := w.(io.ByteWriter); ok {
		e.bw = bw
	}
	return e
}

// SetByteOrder configures the byte order used for multi-byte numeric
// payloads. It must be called before the first write. Both endpoints of a
// connection must agree on the order; nothing on the wire identifies it.
func (e *Encoder) SetByteOrder(order binary.ByteOrder) { e.order = order }

// write writes p to the underlying writer, converting short writes into
// errors.
func (e *Encoder) write(p []byte) error {
	n, err := e.w.Write(p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &ioError{"write", err}
	}
	return nil
}

// writeByte writes a single byte to the underlying writer.
func (e *Encoder) writeByte(b byte) error {
	if e.bw != nil {
		if err := e.bw.WriteByte(b); err != nil {
			return &ioError{"write", err}
		}
		return nil
	}
	e.scratch[0] = b
	return e.write(e.scratch[:1])
}

// WriteTag writes the single tag byte t.
func (e *Encoder) WriteTag(t Tag) error {
	return e.writeByte(byte(t))
}

// WriteBool writes True or False.
func (e *Encoder) WriteBool(v bool) error {
	if v {
		return e.WriteTag(TagTrue)
	}
	return e.WriteTag(TagFalse)
}

// WriteNull writes the Null tag.
func (e *Encoder) WriteNull() error {
	return e.WriteTag(TagNull)
}

// WriteInt writes v using the smallest integer tag whose range contains it:
// Int8 for [-128, 127], then Int16, Int32 and finally Int64.
func (e *Encoder) WriteInt(v int64) error {
	switch {
	case math.MinInt8 <= v && v <= math.MaxInt8:
		e.scratch[0] = byte(TagInt8)
		e.scratch[1] = byte(v)
		return e.write(e.scratch[:2])
	case math.MinInt16 <= v && v <= math.MaxInt16:
		e.scratch[0] = byte(TagInt16)
		e.order.PutUint16(e.scratch[1:3], uint16(v))
		return e.write(e.scratch[:3])
	case math.MinInt32 <= v && v <= math.MaxInt32:
		e.scratch[0] = byte(TagInt32)
		e.order.PutUint32(e.scratch[1:5], uint32(v))
		return e.write(e.scratch[:5])
	default:
		e.scratch[0] = byte(TagInt64)
		e.order.PutUint64(e.scratch[1:9], uint64(v))
		return e.write(e.scratch[:9])
	}
}

// WriteUint writes v like [Encoder.WriteInt]. The wire format has no unsigned
// integers; values above [math.MaxInt64] fail with [ErrIntegerOverflow].
func (e *Encoder) WriteUint(v uint64) error {
	if v > math.MaxInt64 {
		return ErrIntegerOverflow
	}
	return e.WriteInt(int64(v))
}

// WriteFloat writes v as a Real: the tag followed by eight IEEE-754 bytes.
func (e *Encoder) WriteFloat(v float64) error {
	e.scratch[0] = byte(TagReal)
	e.order.PutUint64(e.scratch[1:9], math.Float64bits(v))
	return e.write(e.scratch[:9])
}

// WriteBytes writes b as a byte string: the String tag, the tag-encoded
// length, then the bytes. BSER strings carry arbitrary bytes; no UTF-8
// validation is performed.
func (e *Encoder) WriteBytes(b []byte) error {
	if err := e.WriteTag(TagString); err != nil {
		return err
	}
	if err := e.WriteInt(int64(len(b))); err != nil {
		return err
	}
	return e.write(b)
}

// WriteString writes s as a byte string. See [Encoder.WriteBytes].
func (e *Encoder) WriteString(s string) error {
	if err := e.WriteTag(TagString); err != nil {
		return err
	}
	if err := e.WriteInt(int64(len(s))); err != nil {
		return err
	}
	return e.write([]byte(s))
}

// BeginArray writes the header of an array of n elements. The caller must
// follow up with exactly n values. A negative n indicates that the length is
// not known, which the format cannot express; this fails with
// [ErrLengthRequired].
func (e *Encoder) BeginArray(n int) error {
	return e.beginComposite(TagArray, n)
}

// BeginObject writes the header of an object of n entries. The caller must
// follow up with exactly n key/value pairs, each key a string. A negative n
// fails with [ErrLengthRequired].
func (e *Encoder) BeginObject(n int) error {
	return e.beginComposite(TagObject, n)
}

func (e *Encoder) beginComposite(t Tag, n int) error {
	if n < 0 {
		return ErrLengthRequired
	}
	if err := e.WriteTag(t); err != nil {
		return err
	}
	return e.WriteInt(int64(n))
}
