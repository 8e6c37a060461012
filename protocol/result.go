package protocol

// Status classifies how an exchange ended.
type Status int

const (
	// StatusOK: a done marker arrived and no error field was ever
	// observed.
	StatusOK Status = iota

	// StatusError: the remote side reported an error or exception,
	// whether or not values also arrived.
	StatusError

	// StatusTimeout: the deadline or read budget ran out before a
	// done marker; accumulated fields are partial.
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Result is the merge of every frame belonging to one exchange: the
// caller-facing outcome of a single request.
type Result struct {
	// ID is the correlation id of the request.
	ID string

	// Session is the session the exchange ran in.
	Session string

	// NewSession is the server-issued session id of a clone exchange.
	NewSession string

	// Values holds each value frame's payload, in arrival order.
	Values []string

	// Output is the concatenation of all captured-output frames.
	Output string

	// Err accumulates the short error text, Ex and RootEx the
	// exception name and root exception / trace text.
	Err    string
	Ex     string
	RootEx string

	// Flags are the raw status flags observed across all frames.
	Flags []string

	// Status is the terminal classification.
	Status Status
}

// Errored reports whether any error field was observed for the
// exchange.
func (r *Result) Errored() bool {
	return r.Err != "" || r.Ex != "" || r.RootEx != ""
}

// Merge folds one response frame into the result. Values append, output
// concatenates, err concatenates (servers stream it like output), and
// the exception fields keep the latest text. Terminal classification is
// not decided here; the session layer sets Status once the exchange
// ends.
func (r *Result) Merge(resp Response) {
	if s := resp.Session(); s != "" {
		r.Session = s
	}
	if s := resp.NewSession(); s != "" {
		r.NewSession = s
	}
	if v, ok := resp.Value(); ok {
		r.Values = append(r.Values, v)
	}
	if out, ok := resp.Out(); ok {
		r.Output += out
	}
	if e, ok := resp.Err(); ok {
		r.Err += e
	}
	if ex, ok := resp.Ex(); ok {
		r.Ex = ex
	}
	if rex, ok := resp.RootEx(); ok {
		r.RootEx = rex
	}
	for _, f := range resp.Status() {
		if !r.hasFlag(f) {
			r.Flags = append(r.Flags, f)
		}
	}
}

func (r *Result) hasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Done reports whether a done marker has been observed.
func (r *Result) Done() bool { return r.hasFlag(StatusDone) }

// Finalize sets the terminal Status once no more frames will arrive.
// An observed error field outranks a done marker; timedOut outranks
// nothing (an exchange that both errored and timed out still reports
// what the server said).
func (r *Result) Finalize(timedOut bool) {
	switch {
	case r.Errored():
		r.Status = StatusError
	case timedOut:
		r.Status = StatusTimeout
	default:
		r.Status = StatusOK
	}
}
