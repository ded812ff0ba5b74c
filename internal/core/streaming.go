package core

// streaming.go provides the reader wrappers applied to an uploaded CSV before
// it reaches encoding/csv:
//
//   - BOMSkippingReader: Removes a UTF-8 BOM (0xEF 0xBB 0xBF) from Windows files
//   - UTF8CheckingReader: Fails on the first invalid UTF-8 sequence
//   - CountingReader: Tracks bytes read for metrics and logging
//
// Use WrapForIngest to apply all transforms in the correct order.

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// EncodingError reports the byte offset of the first invalid UTF-8 sequence.
type EncodingError struct {
	Offset int64
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding error: invalid UTF-8 at byte %d", e.Offset)
}

// BOMSkippingReader wraps an io.Reader and drops a leading UTF-8 BOM.
type BOMSkippingReader struct {
	br      *bufio.Reader
	checked bool
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{br: bufio.NewReader(r)}
}

// Read implements io.Reader. The BOM check happens on the first call only.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true
		head, err := r.br.Peek(len(utf8BOM))
		if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
			return 0, err
		}
		if bytes.Equal(head, utf8BOM) {
			_, _ = r.br.Discard(len(utf8BOM))
		}
	}
	return r.br.Read(p)
}

// UTF8CheckingReader passes bytes through unchanged but fails with an
// *EncodingError as soon as an invalid sequence is seen. A multi-byte rune
// split across two underlying reads is carried over until the rest arrives.
type UTF8CheckingReader struct {
	reader io.Reader
	raw    []byte // scratch buffer for underlying reads
	buf    []byte // validated bytes not yet returned
	carry  []byte // incomplete trailing rune from the last read
	offset int64
	err    error
}

// NewUTF8CheckingReader creates a validating reader.
func NewUTF8CheckingReader(r io.Reader) *UTF8CheckingReader {
	return &UTF8CheckingReader{
		reader: r,
		raw:    make([]byte, 4096),
		carry:  make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader.
func (c *UTF8CheckingReader) Read(p []byte) (int, error) {
	for len(c.buf) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		c.fill()
	}
	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

// fill reads one chunk from the underlying reader and validates it.
func (c *UTF8CheckingReader) fill() {
	n := copy(c.raw, c.carry)
	c.carry = c.carry[:0]

	m, err := c.reader.Read(c.raw[n:])
	n += m

	keep := n
	if err == nil {
		keep = n - incompleteTrailingBytes(c.raw[:n])
	}

	if bad := firstInvalid(c.raw[:keep]); bad >= 0 {
		c.err = &EncodingError{Offset: c.offset + int64(bad)}
		return
	}

	c.carry = append(c.carry, c.raw[keep:n]...)
	c.offset += int64(keep)
	c.buf = c.raw[:keep]
	if err != nil {
		c.err = err
	}
}

// firstInvalid returns the index of the first invalid UTF-8 byte, or -1.
func firstInvalid(data []byte) int {
	if isAllASCII(data) || utf8.Valid(data) {
		return -1
	}
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return -1
}

// isAllASCII returns true if all bytes are ASCII (< 128).
func isAllASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

// incompleteTrailingBytes returns the number of bytes at the end of data
// that could be the start of an incomplete multi-byte UTF-8 sequence.
func incompleteTrailingBytes(data []byte) int {
	for i := 1; i <= 3 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 {
			if i < runeLen(b) {
				return i
			}
			return 0
		}
		// Anything but a continuation byte ends the scan
		if b&0xC0 != 0x80 {
			return 0
		}
	}
	return 0
}

// runeLen returns the expected length of a UTF-8 sequence starting with byte b.
func runeLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader creates a counting reader.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// WrapForIngest wraps a reader with byte counting, BOM skipping and UTF-8
// validation. Counting sits closest to the source so it reports raw bytes.
func WrapForIngest(r io.Reader) (io.Reader, *CountingReader) {
	counter := NewCountingReader(r)
	return NewUTF8CheckingReader(NewBOMSkippingReader(counter)), counter
}
