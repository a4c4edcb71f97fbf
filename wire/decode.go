package wire

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// Decoder is a streaming decoder for the syntactic layer of BSER. It reads
// tags, lengths and primitive payloads from a [Source] in the exact byte
// order of the format.
//
// The only lookahead is a single pushed-back tag byte, filled by
// [Decoder.PeekTag] and consumed by [Decoder.ReadTag]. One byte is enough for
// everything the format requires: distinguishing null from a present value,
// switching on variant shape, and skipping Missing cells in templated rows.
//
// Decoder state after an error is undefined; callers must discard the
// instance.
type Decoder struct {
	src   Source
	order binary.ByteOrder

	tag    Tag // pushed-back tag, valid iff hasTag
	hasTag bool
}

// NewDecoder creates a new [Decoder] reading from src using the host-native
// byte order.
func NewDecoder(src Source) *Decoder {
	return &Decoder{src: src, order: binary.NativeEndian}
}

// SetByteOrder configures the byte order used for multi-byte numeric
// payloads. It must be called before the first read.
func (d *Decoder) SetByteOrder(order binary.ByteOrder) { d.order = order }

// Source returns the source d reads from.
func (d *Decoder) Source() Source { return d.src }

// PeekTag reads the next tag byte and caches it. Subsequent calls to PeekTag
// return the cached tag without consuming input. A byte outside the tag range
// is reported as a [TagError]. End of input in tag position is reported as
// [io.ErrUnexpectedEOF]; use [Decoder.End] to probe for a clean end of the
// stream.
func (d *Decoder) PeekTag() (Tag, error) {
	if d.hasTag {
		return d.tag, nil
	}
	b, ok, err := d.src.Next()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, io.ErrUnexpectedEOF
	}
	if b > byte(TagMissing) {
		return 0, &TagError{Byte: b}
	}
	d.tag = Tag(b)
	d.hasTag = true
	return d.tag, nil
}

// ReadTag returns the next tag and clears the pushback slot.
func (d *Decoder) ReadTag() (Tag, error) {
	t, err := d.PeekTag()
	d.hasTag = false
	return t, err
}

// payload reads exactly n payload bytes. The returned slice is only valid
// until the next read from the source.
func (d *Decoder) payload(n int) ([]byte, error) {
	ref, err := d.src.ReadRef(n)
	if err != nil {
		return nil, err
	}
	return ref.Bytes(), nil
}

// ReadInt reads the payload of an integer value whose tag t has already been
// consumed and returns it sign-extended to 64 bits.
func (d *Decoder) ReadInt(t Tag) (int64, error) {
	switch t {
	case TagInt8:
		b, err := d.payload(1)
		if err != nil {
			return 0, err
		}
		return int64(int8(b[0])), nil
	case TagInt16:
		b, err := d.payload(2)
		if err != nil {
			return 0, err
		}
		return int64(int16(d.order.Uint16(b))), nil
	case TagInt32:
		b, err := d.payload(4)
		if err != nil {
			return 0, err
		}
		return int64(int32(d.order.Uint32(b))), nil
	case TagInt64:
		b, err := d.payload(8)
		if err != nil {
			return 0, err
		}
		return int64(d.order.Uint64(b)), nil
	}
	return 0, errors.New("bser: tag " + t.String() + " is not an integer")
}

// ReadFloat reads the eight-byte payload of a Real value whose tag has
// already been consumed.
func (d *Decoder) ReadFloat() (float64, error) {
	b, err := d.payload(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(d.order.Uint64(b)), nil
}

// ReadLength decodes a tag-encoded integer used as a length or count. The
// value must be non-negative and fit the int type; anything else fails with
// [ErrIntegerOverflow]. A non-integer tag in length position is a syntax
// error.
func (d *Decoder) ReadLength() (int, error) {
	t, err := d.ReadTag()
	if err != nil {
		return 0, err
	}
	if !t.IsInt() {
		return 0, errors.New("bser: length has non-integer tag " + t.String())
	}
	v, err := d.ReadInt(t)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > math.MaxInt {
		return 0, ErrIntegerOverflow
	}
	return int(v), nil
}

// ReadString reads the length and bytes of a string value whose String tag
// has already been consumed. The returned [Ref] is borrowed when the source
// is a [SliceSource] and copied otherwise; a copied view is invalidated by
// the next read from the source.
func (d *Decoder) ReadString() (Ref, error) {
	n, err := d.ReadLength()
	if err != nil {
		return Ref{}, err
	}
	return d.src.ReadRef(n)
}

// End asserts that the input is exhausted. It returns [ErrTrailingBytes] if a
// pushed-back tag or any further input byte remains.
func (d *Decoder) End() error {
	if d.hasTag {
		return ErrTrailingBytes
	}
	_, ok, err := d.src.Next()
	if err != nil {
		return err
	}
	if ok {
		return ErrTrailingBytes
	}
	return nil
}
