package bencode

import (
	"errors"
	"io"
)

// Reader assembles complete values from a byte stream that arrives in
// arbitrary chunks. Chunks go in with Feed; Next yields each value as
// soon as the buffer holds all of its bytes, keeping any surplus for
// the value after it.
//
// Reader is not safe for concurrent use; it is meant to be driven by a
// single receive loop.
type Reader struct {
	buf    []byte
	closed bool
}

// NewReader returns an empty Reader.
func NewReader() *Reader { return &Reader{} }

// Feed appends a chunk to the accumulation buffer.
func (r *Reader) Feed(chunk []byte) {
	r.buf = append(r.buf, chunk...)
}

// Buffered reports how many unconsumed bytes are held.
func (r *Reader) Buffered() int { return len(r.buf) }

// Reset discards the accumulation buffer and returns what it held.
// After undecodable input this is the only way back to a value
// boundary: the format carries no delimiters to skip ahead to.
func (r *Reader) Reset() []byte {
	buf := r.buf
	r.buf = nil
	return buf
}

// Close marks the stream as ended. After Close, a buffer holding part
// of a value is an error rather than something to wait on.
func (r *Reader) Close() { r.closed = true }

// Next returns the next complete value. It returns ErrIncomplete when
// the buffer holds only part of a value and the stream is still open,
// io.EOF when the stream is closed and fully drained, and a
// *MalformedError when the buffered bytes cannot form a value (or the
// stream closed mid-value).
func (r *Reader) Next() (Value, error) {
	if len(r.buf) == 0 {
		if r.closed {
			return Value{}, io.EOF
		}
		return Value{}, ErrIncomplete
	}
	v, n, err := Decode(r.buf)
	if err != nil {
		if errors.Is(err, ErrIncomplete) && r.closed {
			return Value{}, malformed(r.buf, 0, "stream closed mid-value")
		}
		return Value{}, err
	}
	r.buf = r.buf[n:]
	return v, nil
}
