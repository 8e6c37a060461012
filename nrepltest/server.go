// Package nrepltest provides a scripted nREPL server for tests: a real
// TCP listener that decodes bencode requests and answers each one with
// whatever frames its handler scripts, optionally dribbled out in
// small chunks to exercise incremental framing.
package nrepltest

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zylisp/nrepl/bencode"
	"github.com/zylisp/nrepl/protocol"
)

// HandlerFunc scripts the response to one request: it returns the
// frames to send back, in order. Returning nil sends nothing, which is
// how timeout behavior is provoked.
type HandlerFunc func(req bencode.Value) []bencode.Value

// Server is a scripted nREPL endpoint.
type Server struct {
	handler HandlerFunc

	// ChunkSize, when positive, splits the outgoing byte stream into
	// writes of at most that many bytes with a short pause between
	// them, so responses arrive across multiple client reads.
	ChunkSize int

	listener net.Listener
	conns    map[net.Conn]bool
	mu       sync.Mutex
	wg       sync.WaitGroup
	stopped  bool
}

// NewServer creates a server that answers with handler's script.
func NewServer(handler HandlerFunc) *Server {
	return &Server{
		handler: handler,
		conns:   make(map[net.Conn]bool),
	}
}

// Start binds a loopback port and begins serving in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("nrepltest: listen: %w", err)
	}
	s.listener = listener
	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the host:port the server is listening on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Stop closes the listener and all live connections and waits for the
// serving goroutines to finish.
func (s *Server) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.listener.Close()

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = make(map[net.Conn]bool)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = true
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	fr := bencode.NewReader()
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			fr.Feed(buf[:n])
		}
		for {
			req, derr := fr.Next()
			if derr != nil {
				break
			}
			for _, frame := range s.handler(req) {
				if werr := s.write(conn, bencode.Encode(frame)); werr != nil {
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) write(conn net.Conn, p []byte) error {
	if s.ChunkSize <= 0 {
		_, err := conn.Write(p)
		return err
	}
	for len(p) > 0 {
		n := s.ChunkSize
		if n > len(p) {
			n = len(p)
		}
		if _, err := conn.Write(p[:n]); err != nil {
			return err
		}
		p = p[n:]
		time.Sleep(time.Millisecond)
	}
	return nil
}

var sessionSeq uint64

// CloneAware wraps a handler so op=clone requests are answered with a
// fresh session id and a done marker, leaving all other ops to next.
func CloneAware(next HandlerFunc) HandlerFunc {
	return func(req bencode.Value) []bencode.Value {
		op, _ := req.Lookup(protocol.FieldOp)
		if op.Text() != "clone" {
			return next(req)
		}
		id, _ := req.Lookup(protocol.FieldID)
		session := fmt.Sprintf("session-%d", atomic.AddUint64(&sessionSeq, 1))
		return []bencode.Value{
			bencode.Dict(
				bencode.KV(protocol.FieldID, bencode.Bytes(id.Str)),
				bencode.KV(protocol.FieldNewSession, bencode.Str(session)),
				bencode.KV(protocol.FieldStatus, bencode.List(bencode.Str(protocol.StatusDone))),
			),
		}
	}
}

// ValueFrame builds a response frame carrying one evaluated value.
func ValueFrame(id, session, value string) bencode.Value {
	return bencode.Dict(
		bencode.KV(protocol.FieldID, bencode.Str(id)),
		bencode.KV(protocol.FieldSession, bencode.Str(session)),
		bencode.KV(protocol.FieldValue, bencode.Str(value)),
	)
}

// OutFrame builds a response frame carrying captured output.
func OutFrame(id, out string) bencode.Value {
	return bencode.Dict(
		bencode.KV(protocol.FieldID, bencode.Str(id)),
		bencode.KV(protocol.FieldOut, bencode.Str(out)),
	)
}

// ErrFrame builds a response frame carrying error text.
func ErrFrame(id, errText string) bencode.Value {
	return bencode.Dict(
		bencode.KV(protocol.FieldID, bencode.Str(id)),
		bencode.KV(protocol.FieldErr, bencode.Str(errText)),
		bencode.KV(protocol.FieldStatus, bencode.List()),
	)
}

// DoneFrame builds the completion frame, optionally with extra status
// flags alongside done.
func DoneFrame(id string, extra ...string) bencode.Value {
	flags := []bencode.Value{bencode.Str(protocol.StatusDone)}
	for _, f := range extra {
		flags = append(flags, bencode.Str(f))
	}
	return bencode.Dict(
		bencode.KV(protocol.FieldID, bencode.Str(id)),
		bencode.KV(protocol.FieldStatus, bencode.List(flags...)),
	)
}

// RequestID extracts the correlation id of a scripted request.
func RequestID(req bencode.Value) string {
	id, _ := req.Lookup(protocol.FieldID)
	return id.Text()
}

// RequestCode extracts the code payload of a scripted eval request.
func RequestCode(req bencode.Value) string {
	code, _ := req.Lookup(protocol.FieldCode)
	return code.Text()
}
