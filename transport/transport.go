// Package transport owns the TCP connection to an nREPL server: dialing
// with failure classification, full-buffer sends, and deadline-bounded
// chunk reads with a per-operation read budget.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"
)

const (
	// DefaultReadTimeout bounds one blocking read for a chunk.
	DefaultReadTimeout = 30 * time.Second

	// DefaultDialTimeout bounds connection establishment.
	DefaultDialTimeout = 30 * time.Second

	// DefaultMaxReads caps chunk reads per logical operation, so a
	// peer trickling single bytes cannot stall a caller past the cap
	// even though each individual read beats its deadline.
	DefaultMaxReads = 100

	// chunkSize is the receive buffer size for one read.
	chunkSize = 4096
)

var (
	ErrConnectionRefused = errors.New("transport: connection refused")
	ErrConnectTimeout    = errors.New("transport: connect timed out")
	ErrConnectionClosed  = errors.New("transport: connection closed by peer")
	ErrReadTimeout       = errors.New("transport: read timed out")
	ErrWriteFailed       = errors.New("transport: write failed")
	ErrTooManyReads      = errors.New("transport: too many read attempts")
)

// Options configures Dial.
type Options struct {
	// DialTimeout bounds connection establishment. Zero means
	// DefaultDialTimeout.
	DialTimeout time.Duration

	// ReadTimeout is the default deadline for each ReadChunk. Zero
	// means DefaultReadTimeout.
	ReadTimeout time.Duration
}

// Conn is one TCP connection to an nREPL server. It has a single owner;
// send and receive access must be serialized by the caller (the session
// layer's one-reader-loop discipline). Close may be called from any
// path and is idempotent.
type Conn struct {
	mu     sync.Mutex
	c      net.Conn
	closed bool
	dead   bool

	readTimeout time.Duration
}

// Dial connects to addr (host:port). Refusal and timeout are reported
// as distinct errors so callers can tell "server not running" from
// "server unreachable".
func Dial(ctx context.Context, addr string, opts Options) (*Conn, error) {
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	d := net.Dialer{Timeout: dialTimeout}
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		switch {
		case errors.Is(err, syscall.ECONNREFUSED):
			return nil, fmt.Errorf("%w: %s", ErrConnectionRefused, addr)
		case isTimeout(err):
			return nil, fmt.Errorf("%w: %s", ErrConnectTimeout, addr)
		default:
			return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
		}
	}
	return &Conn{c: c, readTimeout: readTimeout}, nil
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.c.RemoteAddr().String()
}

// Dead reports whether the peer has closed the stream. A dead Conn
// fails all further sends and reads; the owner must reconnect.
func (c *Conn) Dead() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dead
}

// Close releases the socket. Safe to call more than once and after
// failures on any path.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.c.Close()
}

// Send writes all of p to the socket.
func (c *Conn) Send(p []byte) error {
	if err := c.usable(); err != nil {
		return err
	}
	if _, err := c.c.Write(p); err != nil {
		if isClosed(err) {
			c.markDead()
			return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
		}
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

// ReadChunk blocks up to timeout for at least one byte, filling buf.
// A zero timeout uses the Conn's default. Expiry reports ErrReadTimeout;
// a peer close reports ErrConnectionClosed and marks the Conn dead.
func (c *Conn) ReadChunk(buf []byte, timeout time.Duration) (int, error) {
	if err := c.usable(); err != nil {
		return 0, err
	}
	if timeout <= 0 {
		timeout = c.readTimeout
	}
	if err := c.c.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, fmt.Errorf("transport: set read deadline: %w", err)
	}
	n, err := c.c.Read(buf)
	if n > 0 {
		// Deliver the bytes; a companion error resurfaces on the
		// next read.
		return n, nil
	}
	if err == nil {
		return 0, nil
	}
	switch {
	case isClosed(err):
		c.markDead()
		return 0, ErrConnectionClosed
	case isTimeout(err):
		return 0, ErrReadTimeout
	default:
		return 0, fmt.Errorf("transport: read: %w", err)
	}
}

func (c *Conn) usable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead {
		return ErrConnectionClosed
	}
	if c.closed {
		return net.ErrClosed
	}
	return nil
}

func (c *Conn) markDead() {
	c.mu.Lock()
	c.dead = true
	c.mu.Unlock()
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

// OpReader scopes chunk reads to one logical operation, enforcing the
// read-attempt cap independently of the per-read timeout. Both bounds
// stand on their own: the timeout catches a silent peer, the cap
// catches a peer that keeps the stream alive one byte at a time.
type OpReader struct {
	conn    *Conn
	timeout time.Duration
	max     int
	reads   int
	buf     []byte
}

// Operation starts a read budget for one request/response exchange.
// Zero timeout and maxReads fall back to the defaults.
func (c *Conn) Operation(timeout time.Duration, maxReads int) *OpReader {
	if maxReads <= 0 {
		maxReads = DefaultMaxReads
	}
	return &OpReader{
		conn:    c,
		timeout: timeout,
		max:     maxReads,
		buf:     make([]byte, chunkSize),
	}
}

// ReadChunk reads the next chunk within the remaining budget. The
// returned slice is valid until the next call. If maxBy is positive and
// shorter than the configured timeout, it bounds this read instead, so
// a caller can stop at an overall deadline mid-operation.
func (r *OpReader) ReadChunk(maxBy time.Duration) ([]byte, error) {
	if r.reads >= r.max {
		return nil, fmt.Errorf("%w: %d reads", ErrTooManyReads, r.reads)
	}
	r.reads++
	timeout := r.timeout
	if timeout <= 0 {
		timeout = r.conn.readTimeout
	}
	if maxBy > 0 && maxBy < timeout {
		timeout = maxBy
	}
	n, err := r.conn.ReadChunk(r.buf, timeout)
	if err != nil {
		return nil, err
	}
	return r.buf[:n], nil
}

// Reads reports how many chunk reads the operation has used.
func (r *OpReader) Reads() int { return r.reads }
