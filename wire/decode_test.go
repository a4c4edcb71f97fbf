package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func TestDecoder_ReadTag(t *testing.T) {
	d := NewDecoder(NewSliceSource([]byte{0x08, 0x0a}))

	for range 3 {
		if tag, err := d.PeekTag(); tag != TagTrue || err != nil {
			t.Fatalf("PeekTag(): got %v, %q, want %v, nil", tag, err, TagTrue)
		}
	}
	if tag, err := d.ReadTag(); tag != TagTrue || err != nil {
		t.Fatalf("ReadTag(): got %v, %q, want %v, nil", tag, err, TagTrue)
	}
	if tag, err := d.ReadTag(); tag != TagNull || err != nil {
		t.Fatalf("ReadTag(): got %v, %q, want %v, nil", tag, err, TagNull)
	}
	if _, err := d.ReadTag(); err != io.ErrUnexpectedEOF {
		t.Errorf("ReadTag() at EOF: got %q, want %q", err, io.ErrUnexpectedEOF)
	}
}

func TestDecoder_MalformedTag(t *testing.T) {
	d := NewDecoder(NewSliceSource([]byte{0x0d}))
	_, err := d.ReadTag()
	var tagErr *TagError
	if !errors.As(err, &tagErr) {
		t.Fatalf("ReadTag(): got %q, want a *TagError", err)
	}
	if tagErr.Byte != 0x0d {
		t.Errorf("TagError.Byte: got %#x, want 0x0d", tagErr.Byte)
	}
}

func TestDecoder_ReadInt(t *testing.T) {
	tests := map[string]struct {
		input []byte
		want  int64
	}{
		"Int8":     {[]byte{0x03, 0x2b}, 43},
		"Int8Neg":  {[]byte{0x03, 0xd6}, -42},
		"Int16":    {[]byte{0x04, 0xb8, 0x07}, 1976},
		"Int16Neg": {[]byte{0x04, 0xd4, 0xfe}, -300},
		"Int32":    {[]byte{0x05, 0x00, 0x00, 0x00, 0x80}, -1 << 31},
		"Int64":    {[]byte{0x06, 0xef, 0xbe, 0xad, 0xde, 0x00, 0x00, 0x00, 0x00}, 0xdeadbeef},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			d := NewDecoder(NewSliceSource(tc.input))
			d.SetByteOrder(binary.LittleEndian)
			tag, err := d.ReadTag()
			if err != nil {
				t.Fatalf("ReadTag() returned an unexpected error: %q", err)
			}
			got, err := d.ReadInt(tag)
			if err != nil {
				t.Fatalf("ReadInt() returned an unexpected error: %q", err)
			}
			if got != tc.want {
				t.Errorf("ReadInt(): got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestDecoder_ReadLength(t *testing.T) {
	tests := map[string]struct {
		input   []byte
		want    int
		wantErr error
	}{
		"Int8":       {[]byte{0x03, 0x05}, 5, nil},
		"Int16":      {[]byte{0x04, 0x00, 0x01}, 256, nil},
		"Negative":   {[]byte{0x03, 0xff}, 0, ErrIntegerOverflow},
		"NonInteger": {[]byte{0x02, 0x03, 0x01, 'x'}, 0, errAny},
		"Truncated":  {[]byte{0x04, 0x01}, 0, io.ErrUnexpectedEOF},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			d := NewDecoder(NewSliceSource(tc.input))
			d.SetByteOrder(binary.LittleEndian)
			got, err := d.ReadLength()
			if !errors.Is(err, tc.wantErr) && !(err != nil && tc.wantErr == errAny) {
				t.Fatalf("ReadLength(): got error %q, want %q", err, tc.wantErr)
			}
			if err == nil && got != tc.want {
				t.Errorf("ReadLength(): got %d, want %d", got, tc.want)
			}
		})
	}
}

var errAny = errors.New("any error")

func TestDecoder_ReadString(t *testing.T) {
	input := []byte{0x03, 0x03, 'f', 'o', 'o', 0x03, 0x03, 'b', 'a', 'r'}

	t.Run("Borrowed", func(t *testing.T) {
		d := NewDecoder(NewSliceSource(input))
		ref, err := d.ReadString()
		if err != nil {
			t.Fatalf("ReadString() returned an unexpected error: %q", err)
		}
		if !ref.Borrowed() {
			t.Errorf("Ref.Borrowed(): got false, want true")
		}
		if &ref.Bytes()[0] != &input[2] {
			t.Errorf("Ref.Bytes() does not alias the input slice")
		}
	})

	t.Run("Copied", func(t *testing.T) {
		d := NewDecoder(NewStreamSource(bytes.NewReader(input)))
		ref1, err := d.ReadString()
		if err != nil {
			t.Fatalf("ReadString() returned an unexpected error: %q", err)
		}
		if ref1.Borrowed() {
			t.Errorf("Ref.Borrowed(): got true, want false")
		}
		if string(ref1.Bytes()) != "foo" {
			t.Errorf("Ref.Bytes(): got %q, want %q", ref1.Bytes(), "foo")
		}
		ref2, err := d.ReadString()
		if err != nil {
			t.Fatalf("ReadString() returned an unexpected error: %q", err)
		}
		if string(ref2.Bytes()) != "bar" {
			t.Errorf("Ref.Bytes(): got %q, want %q", ref2.Bytes(), "bar")
		}
		// the second read invalidates the first view
		if string(ref1.Bytes()) != "bar" {
			t.Errorf("copied view was not invalidated by the next read: got %q", ref1.Bytes())
		}
	})

	t.Run("Short", func(t *testing.T) {
		d := NewDecoder(NewSliceSource([]byte{0x03, 0x05, 'x'}))
		if _, err := d.ReadString(); !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("ReadString(): got error %q, want %q", err, io.ErrUnexpectedEOF)
		}
	})
}

func TestDecoder_End(t *testing.T) {
	t.Run("Clean", func(t *testing.T) {
		d := NewDecoder(NewSliceSource([]byte{0x08}))
		if _, err := d.ReadTag(); err != nil {
			t.Fatalf("ReadTag() returned an unexpected error: %q", err)
		}
		if err := d.End(); err != nil {
			t.Errorf("End(): got %q, want nil", err)
		}
	})

	t.Run("TrailingByte", func(t *testing.T) {
		d := NewDecoder(NewSliceSource([]byte{0x08, 0x00}))
		if _, err := d.ReadTag(); err != nil {
			t.Fatalf("ReadTag() returned an unexpected error: %q", err)
		}
		if err := d.End(); err != ErrTrailingBytes {
			t.Errorf("End(): got %q, want %q", err, ErrTrailingBytes)
		}
	})

	t.Run("PeekedTag", func(t *testing.T) {
		d := NewDecoder(NewSliceSource([]byte{0x08}))
		if _, err := d.PeekTag(); err != nil {
			t.Fatalf("PeekTag() returned an unexpected error: %q", err)
		}
		if err := d.End(); err != ErrTrailingBytes {
			t.Errorf("End(): got %q, want %q", err, ErrTrailingBytes)
		}
	})
}
