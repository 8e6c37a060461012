// Package protocol defines the nREPL message vocabulary: the request
// dictionaries the bridge sends, a typed view over decoded response
// frames, and the merged Result a full exchange reduces to.
package protocol

import "github.com/zylisp/nrepl/bencode"

// Request field names.
const (
	FieldOp      = "op"
	FieldID      = "id"
	FieldSession = "session"
	FieldCode    = "code"
)

// Response field names.
const (
	FieldNewSession = "new-session"
	FieldValue      = "value"
	FieldOut        = "out"
	FieldErr        = "err"
	FieldEx         = "ex"
	FieldRootEx     = "root-ex"
	FieldStatus     = "status"
)

// StatusDone is the status flag that completes an exchange. StatusErr
// may accompany it when the evaluation raised.
const (
	StatusDone = "done"
	StatusErr  = "error"
)

// EvalRequest builds an eval request for one code string. session may
// be empty for sessionless evaluation.
func EvalRequest(id, session, code string) bencode.Value {
	entries := []bencode.Pair{
		bencode.KV(FieldOp, bencode.Str("eval")),
		bencode.KV(FieldCode, bencode.Str(code)),
	}
	if session != "" {
		entries = append(entries, bencode.KV(FieldSession, bencode.Str(session)))
	}
	entries = append(entries, bencode.KV(FieldID, bencode.Str(id)))
	return bencode.Dict(entries...)
}

// CloneRequest builds the new-session request.
func CloneRequest(id string) bencode.Value {
	return bencode.Dict(
		bencode.KV(FieldOp, bencode.Str("clone")),
		bencode.KV("verbose", bencode.Int(1)),
		bencode.KV("prompt", bencode.Int(1)),
		bencode.KV(FieldID, bencode.Str(id)),
	)
}

// DescribeRequest builds a describe request, asking the server for its
// supported operations and versions.
func DescribeRequest(id, session string) bencode.Value {
	entries := []bencode.Pair{
		bencode.KV(FieldOp, bencode.Str("describe")),
	}
	if session != "" {
		entries = append(entries, bencode.KV(FieldSession, bencode.Str(session)))
	}
	entries = append(entries, bencode.KV(FieldID, bencode.Str(id)))
	return bencode.Dict(entries...)
}

// ListSessionsRequest builds an ls-sessions request.
func ListSessionsRequest(id string) bencode.Value {
	return bencode.Dict(
		bencode.KV(FieldOp, bencode.Str("ls-sessions")),
		bencode.KV(FieldID, bencode.Str(id)),
	)
}
