package bencode

import "bytes"

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindInt Kind = iota
	KindString
	KindList
	KindDict
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	default:
		return "invalid"
	}
}

// Value is one bencoded value: an integer, a byte string, a list, or a
// dictionary. Exactly one of the variant fields is meaningful, selected
// by Kind. The zero Value is the integer 0.
type Value struct {
	Kind Kind
	Int  int64
	Str  []byte
	List []Value
	Dict []Pair
}

// Pair is one dictionary entry. Dictionaries are kept as ordered pair
// slices rather than Go maps so a decoded message re-encodes in the
// order it arrived.
type Pair struct {
	Key Value
	Val Value
}

// Int returns an integer Value.
func Int(i int64) Value { return Value{Kind: KindInt, Int: i} }

// Str returns a byte-string Value holding the UTF-8 bytes of s.
func Str(s string) Value { return Value{Kind: KindString, Str: []byte(s)} }

// Bytes returns a byte-string Value holding b. The slice is not copied.
func Bytes(b []byte) Value { return Value{Kind: KindString, Str: b} }

// List returns a list Value of the given elements.
func List(elems ...Value) Value { return Value{Kind: KindList, List: elems} }

// Dict returns a dictionary Value of the given entries, in order.
func Dict(entries ...Pair) Value { return Value{Kind: KindDict, Dict: entries} }

// KV builds a dictionary entry with a string key.
func KV(key string, val Value) Pair { return Pair{Key: Str(key), Val: val} }

// Text returns the Value's bytes as a string. It is "" for any
// non-string Value.
func (v Value) Text() string {
	if v.Kind != KindString {
		return ""
	}
	return string(v.Str)
}

// Strings returns the list's string elements. Non-string elements are
// skipped; non-list Values yield nil.
func (v Value) Strings() []string {
	if v.Kind != KindList {
		return nil
	}
	var out []string
	for _, e := range v.List {
		if e.Kind == KindString {
			out = append(out, string(e.Str))
		}
	}
	return out
}

// Lookup finds the value for a string key in a dictionary. The first
// matching entry wins.
func (v Value) Lookup(key string) (Value, bool) {
	if v.Kind != KindDict {
		return Value{}, false
	}
	for _, p := range v.Dict {
		if p.Key.Kind == KindString && string(p.Key.Str) == key {
			return p.Val, true
		}
	}
	return Value{}, false
}

// Equal reports deep equality of two Values, including dictionary entry
// order.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindInt:
		return v.Int == o.Int
	case KindString:
		return bytes.Equal(v.Str, o.Str)
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	case KindDict:
		if len(v.Dict) != len(o.Dict) {
			return false
		}
		for i := range v.Dict {
			if !v.Dict[i].Key.Equal(o.Dict[i].Key) || !v.Dict[i].Val.Equal(o.Dict[i].Val) {
				return false
			}
		}
		return true
	}
	return false
}
