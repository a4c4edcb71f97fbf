package wire

import (
	"io"
)

//region Ref

// Ref is a contiguous view of bytes obtained from a [Source]. The view is
// either borrowed or copied, distinguished by [Ref.Borrowed]:
//
//   - A borrowed Ref aliases the backing storage of a [SliceSource] and stays
//     valid for the lifetime of the input slice.
//   - A copied Ref points into the scratch buffer of a [StreamSource] and is
//     invalidated by the next read that fills the scratch.
//
// Callers that need the bytes past the validity window must copy them
// immediately.
type Ref struct {
	b        []byte
	borrowed bool
}

// Bytes returns the byte view. The returned slice must not be modified.
func (r Ref) Bytes() []byte { return r.b }

// Borrowed reports whether the view aliases the source's backing storage
// rather than a reusable scratch buffer.
func (r Ref) Borrowed() bool { return r.borrowed }

//endregion

// Source supplies bytes to a [Decoder]. It has two concrete implementations:
// [StreamSource] for pull-based readers and [SliceSource] for
// pre-materialized byte slices. The interface is closed; the borrowing
// specialization of SliceSource depends on knowing every implementation.
type Source interface {
	// Next consumes a single byte. The second return value is false at the
	// end of input; that is not an error.
	Next() (byte, bool, error)

	// ReadRef consumes the next n bytes and returns a contiguous view of
	// them. Short input is reported as io.ErrUnexpectedEOF.
	ReadRef(n int) (Ref, error)

	source()
}

//region StreamSource

// StreamSource is a [Source] reading from an [io.Reader]. Views returned by
// ReadRef are always copied into an internal scratch buffer whose contents
// stay valid only until the next ReadRef call.
//
// If the reader implements [io.ByteReader] it is used for single-byte reads;
// otherwise each byte is fetched with a one-byte Read call and callers should
// wrap the reader in a [bufio.Reader] themselves.
type StreamSource struct {
	r       io.Reader
	br      io.ByteReader // non-nil iff r implements io.ByteReader
	scratch []byte
}

// NewStreamSource creates a [Source] reading from r.
func NewStreamSource(r io.Reader) *StreamSource {
	s := &StreamSource{r: r}
	if br, ok := r.(io.ByteReader); ok {
		s.br = br
	}
	return s
}

func (s *StreamSource) source() {}

// Next implements [Source].
func (s *StreamSource) Next() (byte, bool, error) {
	if s.br != nil {
		b, err := s.br.ReadByte()
		if err == io.EOF {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, &ioError{"read", err}
		}
		return b, true, nil
	}
	var buf [1]byte
	_, err := io.ReadFull(s.r, buf[:])
	if err == io.EOF {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &ioError{"read", err}
	}
	return buf[0], true, nil
}

// ReadRef implements [Source]. The returned view is copied and valid until
// the next call to ReadRef.
func (s *StreamSource) ReadRef(n int) (Ref, error) {
	if cap(s.scratch) < n {
		s.scratch = make([]byte, n)
	}
	s.scratch = s.scratch[:n]
	if _, err := io.ReadFull(s.r, s.scratch); err != nil {
		return Ref{}, &ioError{"read", noEOF(err)}
	}
	return Ref{b: s.scratch}, nil
}

//endregion

//region SliceSource

// SliceSource is a [Source] reading from a byte slice. Views returned by
// ReadRef are borrowed directly from the slice and stay valid as long as the
// slice does.
type SliceSource struct {
	b   []byte
	off int
}

// NewSliceSource creates a [Source] reading from b. The source borrows b; the
// caller must not modify it while the source is in use.
func NewSliceSource(b []byte) *SliceSource {
	return &SliceSource{b: b}
}

func (s *SliceSource) source() {}

// Next implements [Source].
func (s *SliceSource) Next() (byte, bool, error) {
	if s.off >= len(s.b) {
		return 0, false, nil
	}
	b := s.b[s.off]
	s.off++
	return b, true, nil
}

// ReadRef implements [Source]. The returned view aliases the input slice.
func (s *SliceSource) ReadRef(n int) (Ref, error) {
	if n > len(s.b)-s.off {
		return Ref{}, io.ErrUnexpectedEOF
	}
	b := s.b[s.off : s.off+n]
	s.off += n
	return Ref{b: b, borrowed: true}, nil
}

//endregion
