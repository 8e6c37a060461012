// Package nrepl is a client-side bridge to a running nREPL server.
// It speaks the server's native bencode wire format over TCP, keeps
// request/response exchanges correlated by message id across the
// server's multi-frame, interleaved replies, and merges each exchange
// into a single result carrying values, captured output, and error or
// trace text distinctly.
//
// The packages underneath split along protocol layers: bencode holds
// the wire codec and incremental frame reader, transport owns the
// socket, client runs the session protocol, and operations maps
// caller-facing tools (eval, doc lookup, namespace listing) onto eval
// exchanges.
package nrepl

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/zylisp/nrepl/client"
	"github.com/zylisp/nrepl/transport"
)

// Config wires up one bridge connection.
type Config struct {
	// Host and Port locate the nREPL server.
	Host string
	Port int

	// EvalTimeout bounds one whole exchange; ReadTimeout bounds each
	// socket read within it. MaxReads caps reads per exchange
	// independently of either timeout.
	EvalTimeout time.Duration
	ReadTimeout time.Duration
	MaxReads    int

	// Logger receives protocol-level debug events. Zero value is a
	// no-op logger.
	Logger zerolog.Logger
}

// DefaultConfig returns the stock settings: a local server on the
// conventional port, 30 second timeouts, 100 reads per exchange.
func DefaultConfig() Config {
	return Config{
		Host:        "127.0.0.1",
		Port:        36915,
		EvalTimeout: client.DefaultEvalTimeout,
		ReadTimeout: transport.DefaultReadTimeout,
		MaxReads:    transport.DefaultMaxReads,
	}
}

// Addr returns the host:port dial target.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Dial connects to the configured server and returns a client ready
// for Clone and Eval. The caller owns the client and must Close it.
func Dial(ctx context.Context, cfg Config) (*client.Client, error) {
	if cfg.EvalTimeout <= 0 {
		cfg.EvalTimeout = client.DefaultEvalTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = transport.DefaultReadTimeout
	}
	if cfg.MaxReads <= 0 {
		cfg.MaxReads = transport.DefaultMaxReads
	}
	conn, err := transport.Dial(ctx, cfg.Addr(), transport.Options{
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, err
	}
	return client.New(conn,
		client.WithLogger(cfg.Logger),
		client.WithEvalTimeout(cfg.EvalTimeout),
		client.WithReadTimeout(cfg.ReadTimeout),
		client.WithMaxReads(cfg.MaxReads),
	), nil
}

// Connect dials and opens a session in one step: the shape almost
// every embedder wants. On session failure the connection is released
// before returning.
func Connect(ctx context.Context, cfg Config) (*client.Client, error) {
	c, err := Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := c.Clone(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}
