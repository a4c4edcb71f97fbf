package wire

import (
	"errors"
	"io"
	"strconv"
)

var (
	// ErrTrailingBytes is returned by [Decoder.End] if input remains after a
	// complete top-level value has been decoded.
	ErrTrailingBytes = errors.New("bser: trailing bytes after value")

	// ErrIntegerOverflow indicates an integer outside the representable range:
	// a length that does not fit the int type, a negative length, or an
	// unsigned value too large for the signed wire encoding.
	ErrIntegerOverflow = errors.New("bser: integer overflow")

	// ErrLengthRequired is returned by [Encoder.BeginArray] and
	// [Encoder.BeginObject] when the number of elements is not known.
	ErrLengthRequired = errors.New("bser: length required")
)

// TagError indicates a byte in tag position outside the defined tag range.
type TagError struct {
	Byte byte
}

func (e *TagError) Error() string {
	return "bser: malformed tag byte 0x" + strconv.FormatUint(uint64(e.Byte), 16)
}

// ioError represents an error that occurred when reading from or writing to
// an underlying data stream.
type ioError struct {
	action string // either "read" or "write"
	err    error
}

func (e *ioError) Unwrap() error { return e.err }
func (e *ioError) Error() string { return "bser: " + e.action + " error: " + e.err.Error() }

// noEOF returns err, unless err == io.EOF, in which case it returns io.ErrUnexpectedEOF.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
