package protocol

import (
	"fmt"

	"github.com/zylisp/nrepl/bencode"
)

// Response is a read-only view over one decoded response frame. The
// underlying value must be a dictionary; field getters return zero
// values for fields the frame does not carry.
type Response struct {
	v bencode.Value
}

// ParseResponse wraps a decoded wire value. Non-dictionary values are
// rejected; servers are free to emit them but they carry no routable
// fields.
func ParseResponse(v bencode.Value) (Response, error) {
	if v.Kind != bencode.KindDict {
		return Response{}, fmt.Errorf("protocol: response frame is a %s, not a dict", v.Kind)
	}
	return Response{v: v}, nil
}

func (r Response) text(field string) (string, bool) {
	v, ok := r.v.Lookup(field)
	if !ok || v.Kind != bencode.KindString {
		return "", false
	}
	return v.Text(), true
}

// ID returns the correlation id, or "" if absent.
func (r Response) ID() string {
	id, _ := r.text(FieldID)
	return id
}

// Session returns the session id the frame belongs to.
func (r Response) Session() string {
	s, _ := r.text(FieldSession)
	return s
}

// NewSession returns the server-issued session id of a clone response.
func (r Response) NewSession() string {
	s, _ := r.text(FieldNewSession)
	return s
}

// Value returns the frame's evaluated-value field, if present.
func (r Response) Value() (string, bool) { return r.text(FieldValue) }

// Out returns the frame's captured-output field, if present.
func (r Response) Out() (string, bool) { return r.text(FieldOut) }

// Err returns the frame's short error text, if present.
func (r Response) Err() (string, bool) { return r.text(FieldErr) }

// Ex returns the frame's exception name, if present.
func (r Response) Ex() (string, bool) { return r.text(FieldEx) }

// RootEx returns the frame's root exception / trace text, if present.
func (r Response) RootEx() (string, bool) { return r.text(FieldRootEx) }

// Status returns the frame's status flags. Absent means an empty set.
func (r Response) Status() []string {
	v, ok := r.v.Lookup(FieldStatus)
	if !ok {
		return nil
	}
	return v.Strings()
}

// HasStatus reports whether flag is in the frame's status set.
func (r Response) HasStatus(flag string) bool {
	for _, f := range r.Status() {
		if f == flag {
			return true
		}
	}
	return false
}

// Raw returns the underlying wire value.
func (r Response) Raw() bencode.Value { return r.v }
