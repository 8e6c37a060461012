// Package bencode implements the self-describing binary encoding spoken
// by nREPL servers: delimited integers (i42e), length-prefixed byte
// strings (4:spam), and nested lists (l...e) and dictionaries (d...e).
//
// The format carries no outer frame length, so Decode is written to be
// driven incrementally: it reports exactly how many bytes one value
// consumed and distinguishes "not enough input yet" (ErrIncomplete)
// from input that can never become valid (MalformedError). Reader
// builds on that to turn an arbitrarily chunked byte stream into a
// sequence of complete values.
package bencode

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrIncomplete reports that the input ends partway through a value.
// More bytes may still complete it; callers feeding a live stream
// should treat it as "wait for more input".
var ErrIncomplete = errors.New("bencode: incomplete value")

// MalformedError reports input that no further bytes can repair. Raw
// holds a short slice of the offending bytes for diagnosis.
type MalformedError struct {
	Offset int
	Reason string
	Raw    []byte
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("bencode: malformed input at offset %d: %s (bytes %q)", e.Offset, e.Reason, e.Raw)
}

func malformed(data []byte, offset int, reason string) error {
	snip := data[offset:]
	if len(snip) > 16 {
		snip = snip[:16]
	}
	return &MalformedError{Offset: offset, Reason: reason, Raw: snip}
}

// Encode returns the encoding of v.
func Encode(v Value) []byte { return AppendEncode(nil, v) }

// AppendEncode appends the encoding of v to dst and returns the
// extended slice.
func AppendEncode(dst []byte, v Value) []byte {
	switch v.Kind {
	case KindInt:
		dst = append(dst, 'i')
		dst = strconv.AppendInt(dst, v.Int, 10)
		dst = append(dst, 'e')
	case KindString:
		dst = strconv.AppendInt(dst, int64(len(v.Str)), 10)
		dst = append(dst, ':')
		dst = append(dst, v.Str...)
	case KindList:
		dst = append(dst, 'l')
		for _, e := range v.List {
			dst = AppendEncode(dst, e)
		}
		dst = append(dst, 'e')
	case KindDict:
		dst = append(dst, 'd')
		for _, p := range v.Dict {
			dst = AppendEncode(dst, p.Key)
			dst = AppendEncode(dst, p.Val)
		}
		dst = append(dst, 'e')
	}
	return dst
}

// container is an open list or dict on the parse stack.
type container struct {
	val     Value
	pendKey *Value // dict key decoded, value not yet seen
}

// Decode parses one value from the front of data. It returns the value
// and the exact number of bytes it occupied, never consuming past the
// end of that value; surplus bytes belong to the caller's next value.
//
// A truncated but so-far-valid input (including a string body shorter
// than its declared length) fails with ErrIncomplete. Structurally
// invalid input fails with a *MalformedError.
//
// Nesting is parsed with an explicit stack of open containers, so cost
// is linear in the input and truncation at any byte boundary is
// classified without recursing over the full value.
func Decode(data []byte) (Value, int, error) {
	pos := 0
	var stack []container
	for {
		if pos >= len(data) {
			return Value{}, 0, ErrIncomplete
		}
		var v Value
		switch b := data[pos]; {
		case b == 'l':
			stack = append(stack, container{val: Value{Kind: KindList}})
			pos++
			continue
		case b == 'd':
			stack = append(stack, container{val: Value{Kind: KindDict}})
			pos++
			continue
		case b == 'e':
			if len(stack) == 0 {
				return Value{}, 0, malformed(data, pos, "end marker with no open list or dict")
			}
			top := stack[len(stack)-1]
			if top.pendKey != nil {
				return Value{}, 0, malformed(data, pos, "dict key has no value")
			}
			stack = stack[:len(stack)-1]
			v = top.val
			pos++
		case b == 'i':
			iv, n, err := decodeInt(data, pos)
			if err != nil {
				return Value{}, 0, err
			}
			v = Value{Kind: KindInt, Int: iv}
			pos += n
		case b >= '0' && b <= '9':
			sv, n, err := decodeString(data, pos)
			if err != nil {
				return Value{}, 0, err
			}
			v = Value{Kind: KindString, Str: sv}
			pos += n
		default:
			return Value{}, 0, malformed(data, pos, fmt.Sprintf("unknown type marker %q", b))
		}

		// v is complete; attach it to the enclosing container or
		// return it as the top-level value.
		if len(stack) == 0 {
			return v, pos, nil
		}
		top := &stack[len(stack)-1]
		switch top.val.Kind {
		case KindList:
			top.val.List = append(top.val.List, v)
		case KindDict:
			if top.pendKey == nil {
				k := v
				top.pendKey = &k
			} else {
				top.val.Dict = append(top.val.Dict, Pair{Key: *top.pendKey, Val: v})
				top.pendKey = nil
			}
		}
	}
}

// decodeInt parses i<digits>e starting at pos ('i' already matched).
func decodeInt(data []byte, pos int) (int64, int, error) {
	i := pos + 1
	for i < len(data) && data[i] != 'e' {
		i++
	}
	if i >= len(data) {
		return 0, 0, ErrIncomplete
	}
	num := string(data[pos+1 : i])
	iv, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return 0, 0, malformed(data, pos, fmt.Sprintf("invalid integer %q", num))
	}
	return iv, i - pos + 1, nil
}

// decodeString parses <length>:<bytes> starting at pos. The length
// prefix, not any terminator byte, gates how far the body extends, so
// bytes that look like markers inside the body are never misread as
// structure.
func decodeString(data []byte, pos int) ([]byte, int, error) {
	i := pos
	for i < len(data) && data[i] != ':' {
		if data[i] < '0' || data[i] > '9' {
			return nil, 0, malformed(data, pos, "invalid string length prefix")
		}
		i++
	}
	if i >= len(data) {
		return nil, 0, ErrIncomplete
	}
	n, err := strconv.ParseInt(string(data[pos:i]), 10, 32)
	if err != nil {
		return nil, 0, malformed(data, pos, "string length out of range")
	}
	body := i + 1
	if body+int(n) > len(data) {
		return nil, 0, ErrIncomplete
	}
	out := make([]byte, n)
	copy(out, data[body:body+int(n)])
	return out, body + int(n) - pos, nil
}

// DecodeFull parses data as exactly one complete value. Unlike Decode
// it is for inputs known to be whole: truncation is malformed, not
// incomplete, and trailing bytes are rejected.
func DecodeFull(data []byte) (Value, error) {
	v, n, err := Decode(data)
	if errors.Is(err, ErrIncomplete) {
		return Value{}, malformed(data, 0, "truncated value")
	}
	if err != nil {
		return Value{}, err
	}
	if n != len(data) {
		return Value{}, malformed(data, n, "trailing bytes after value")
	}
	return v, nil
}
