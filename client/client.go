// Package client implements the nREPL session protocol: request
// correlation by message id, assembly of multi-frame responses, and
// terminal classification of each exchange.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/zylisp/nrepl/bencode"
	"github.com/zylisp/nrepl/protocol"
	"github.com/zylisp/nrepl/transport"
)

// ErrSessionOpenFailed reports that a clone request completed without
// the server issuing a session id.
var ErrSessionOpenFailed = errors.New("client: session open failed")

const (
	// DefaultEvalTimeout bounds one whole exchange.
	DefaultEvalTimeout = 30 * time.Second

	// tombstoneCap bounds how many timed-out exchange ids are
	// remembered for late-frame discarding.
	tombstoneCap = 64
)

// exchange tracks one outstanding request until its done marker, its
// deadline, or a transport failure, whichever comes first. Terminal
// states are final; a done exchange never reopens.
type exchange struct {
	id      string
	res     protocol.Result
	done    bool
	started time.Time
}

// Client drives one connection's request/response traffic. All sends
// and all dispatch of received frames go through one receive loop under
// one mutex; the socket is never touched from two goroutines at once.
type Client struct {
	mu   sync.Mutex
	conn *transport.Conn
	fr   *bencode.Reader

	pending    map[string]*exchange
	tombstones map[string]struct{}
	tombOrder  []string

	session string
	msgID   uint64

	log         zerolog.Logger
	evalTimeout time.Duration
	readTimeout time.Duration
	maxReads    int
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client's logger. Default is a no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithEvalTimeout bounds one whole exchange.
func WithEvalTimeout(d time.Duration) Option {
	return func(c *Client) { c.evalTimeout = d }
}

// WithReadTimeout bounds each individual chunk read.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) { c.readTimeout = d }
}

// WithMaxReads caps chunk reads per exchange.
func WithMaxReads(n int) Option {
	return func(c *Client) { c.maxReads = n }
}

// New wraps an established connection. The Client takes ownership of
// conn; Close releases it.
func New(conn *transport.Conn, opts ...Option) *Client {
	c := &Client{
		conn:        conn,
		fr:          bencode.NewReader(),
		pending:     make(map[string]*exchange),
		tombstones:  make(map[string]struct{}),
		log:         zerolog.Nop(),
		evalTimeout: DefaultEvalTimeout,
		readTimeout: transport.DefaultReadTimeout,
		maxReads:    transport.DefaultMaxReads,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the session id obtained by Clone, or "" before one
// is open.
func (c *Client) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// nextID returns a fresh correlation id, unique per outstanding
// request for the life of the client.
func (c *Client) nextID() string {
	return fmt.Sprintf("%d", atomic.AddUint64(&c.msgID, 1))
}

// Clone opens a server-side session and remembers its id for later
// Eval calls.
func (c *Client) Clone(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID()
	res, err := c.exchange(ctx, id, protocol.CloneRequest(id))
	if err != nil {
		return "", err
	}
	// The identifier is what matters; a server that issues one but
	// never attaches a done marker still opened the session.
	if res.NewSession == "" {
		return "", fmt.Errorf("%w: no session id before deadline", ErrSessionOpenFailed)
	}
	c.session = res.NewSession
	c.log.Debug().Str("session", c.session).Msg("session opened")
	return c.session, nil
}

// Eval sends code for evaluation in the open session and collects the
// full multi-frame response into one Result. The returned error is for
// transport and codec failures only; evaluation errors and timeouts
// are reported in the Result's Status.
func (c *Client) Eval(ctx context.Context, code string) (*protocol.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID()
	return c.exchange(ctx, id, protocol.EvalRequest(id, c.session, code))
}

// Do sends an arbitrary request dictionary and collects its response.
// The client appends its own correlation id; req must not carry one.
func (c *Client) Do(ctx context.Context, req bencode.Value) (*protocol.Result, error) {
	if req.Kind != bencode.KindDict {
		return nil, fmt.Errorf("client: request must be a dict, got %s", req.Kind)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID()
	// Copy the entries: appending in place could write into the
	// caller's backing array.
	entries := make([]bencode.Pair, 0, len(req.Dict)+1)
	entries = append(entries, req.Dict...)
	entries = append(entries, bencode.KV(protocol.FieldID, bencode.Str(id)))
	req.Dict = entries
	return c.exchange(ctx, id, req)
}

// Describe asks the server for its supported operations and versions.
func (c *Client) Describe(ctx context.Context) (*protocol.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID()
	return c.exchange(ctx, id, protocol.DescribeRequest(id, c.session))
}

// ListSessions asks the server for the ids of its open sessions.
func (c *Client) ListSessions(ctx context.Context) (*protocol.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID()
	return c.exchange(ctx, id, protocol.ListSessionsRequest(id))
}

// exchange runs one full request/response cycle: track, send, collect.
// Callers hold c.mu.
func (c *Client) exchange(ctx context.Context, id string, req bencode.Value) (*protocol.Result, error) {
	ex := c.track(id)
	if err := c.conn.Send(bencode.Encode(req)); err != nil {
		c.untrack(id)
		return nil, fmt.Errorf("client: send request %s: %w", id, err)
	}
	c.log.Debug().Str("id", id).Msg("request sent")
	return c.collect(ctx, ex)
}

// track registers a pending exchange.
func (c *Client) track(id string) *exchange {
	ex := &exchange{id: id, res: protocol.Result{ID: id}, started: time.Now()}
	c.pending[id] = ex
	return ex
}

func (c *Client) untrack(id string) {
	delete(c.pending, id)
}

// tombstone remembers a timed-out id so its late frames are dropped
// silently instead of logged as unknown. Oldest entries fall off past
// the cap.
func (c *Client) tombstone(id string) {
	if _, ok := c.tombstones[id]; ok {
		return
	}
	c.tombstones[id] = struct{}{}
	c.tombOrder = append(c.tombOrder, id)
	if len(c.tombOrder) > tombstoneCap {
		delete(c.tombstones, c.tombOrder[0])
		c.tombOrder = c.tombOrder[1:]
	}
}

// collect pulls frames off the connection until ex sees its done
// marker or a bound trips. Frames for other pending exchanges are
// accumulated into their records; frames for unknown or tombstoned ids
// are dropped. Callers hold c.mu, so this loop is the sole reader.
func (c *Client) collect(ctx context.Context, ex *exchange) (*protocol.Result, error) {
	deadline := ex.started.Add(c.evalTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	op := c.conn.Operation(c.readTimeout, c.maxReads)

	for !ex.done {
		// Drain frames already buffered before blocking again.
		for !ex.done {
			v, err := c.fr.Next()
			if errors.Is(err, bencode.ErrIncomplete) {
				break
			}
			if err != nil {
				// Undecodable bytes abort this exchange only.
				// They are dropped from the buffer so the next
				// exchange starts clean; the error carries the
				// raw bytes for diagnosis.
				discarded := c.fr.Reset()
				c.log.Warn().Str("id", ex.id).
					Int("discarded", len(discarded)).
					Msg("dropping undecodable input")
				c.untrack(ex.id)
				ex.res.Finalize(false)
				return &ex.res, fmt.Errorf("client: exchange %s: %w", ex.id, err)
			}
			c.route(v)
		}
		if ex.done {
			break
		}

		if ctx.Err() != nil {
			return c.timedOut(ex), nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return c.timedOut(ex), nil
		}

		chunk, err := op.ReadChunk(remaining)
		if err != nil {
			switch {
			case errors.Is(err, transport.ErrReadTimeout),
				errors.Is(err, transport.ErrTooManyReads):
				c.log.Debug().Str("id", ex.id).Err(err).Msg("exchange timed out")
				return c.timedOut(ex), nil
			default:
				c.untrack(ex.id)
				ex.res.Finalize(false)
				return &ex.res, fmt.Errorf("client: exchange %s: %w", ex.id, err)
			}
		}
		c.fr.Feed(chunk)
	}

	c.untrack(ex.id)
	ex.res.Finalize(false)
	return &ex.res, nil
}

// timedOut finalizes an exchange whose deadline or read budget ran
// out. Partial output stays in the Result; the id is tombstoned so
// frames that straggle in later disappear quietly.
func (c *Client) timedOut(ex *exchange) *protocol.Result {
	c.untrack(ex.id)
	c.tombstone(ex.id)
	ex.res.Finalize(true)
	return &ex.res
}

// route dispatches one decoded frame to the pending exchange its id
// names. Unroutable frames are not an error: servers interleave
// session notifications and late frames freely.
func (c *Client) route(v bencode.Value) {
	resp, err := protocol.ParseResponse(v)
	if err != nil {
		c.log.Debug().Err(err).Msg("discarding non-dict frame")
		return
	}
	id := resp.ID()
	ex, ok := c.pending[id]
	if !ok {
		if _, dead := c.tombstones[id]; !dead {
			c.log.Debug().Str("id", id).Msg("discarding frame for unknown exchange")
		}
		return
	}
	if ex.done {
		return
	}
	ex.res.Merge(resp)
	if resp.HasStatus(protocol.StatusDone) {
		ex.done = true
	}
}
