package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"go-cvseq/debug"
	"go-cvseq/sequencer"
)

const (
	// MaxRequestSize bounds a single request body
	MaxRequestSize = 1024

	DefaultReadTimeout   = 2 * time.Second
	DefaultSubmitTimeout = 5 * time.Second

	maxAcceptBackoff = time.Second
	lingerTimeout    = 50 * time.Millisecond
)

// Submitter accepts commands for serialised processing
type Submitter interface {
	Submit(ctx context.Context, cmd sequencer.Command) (sequencer.Response, error)
}

// Server answers one JSON request per TCP connection. Connections are served
// one at a time: a slow client delays the next one.
type Server struct {
	processor     Submitter
	readTimeout   time.Duration
	submitTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

// NewServer creates a server forwarding to processor
func NewServer(processor Submitter) *Server {
	return &Server{
		processor:     processor,
		readTimeout:   DefaultReadTimeout,
		submitTimeout: DefaultSubmitTimeout,
	}
}

// SetReadTimeout changes how long a client has to send its request
func (s *Server) SetReadTimeout(d time.Duration) {
	if d > 0 {
		s.readTimeout = d
	}
}

// Listen binds addr. Call Serve afterwards.
func (s *Server) Listen(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	debug.Info("server", "listening", "addr", ln.Addr().String())
	return ln.Addr(), nil
}

// Serve accepts connections on the bound listener until Close is called.
// Accept failures are logged and retried with backoff.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("server is not listening")
	}

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			backoff = nextBackoff(backoff)
			debug.Error("server", "accept failed", "err", err, "retry_in", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		s.handle(ctx, conn)
	}
}

// Close stops accepting connections
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.listener == nil {
		s.closed = true
		return nil
	}
	s.closed = true
	return s.listener.Close()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer closeConn(conn)
	remote := conn.RemoteAddr().String()
	debug.Log("server", "connection from %s", remote)

	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))

	var raw json.RawMessage
	dec := json.NewDecoder(io.LimitReader(conn, MaxRequestSize))
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			// client hung up without sending anything
			return
		}
		debug.Warn("server", "unreadable request", "remote", remote, "err", err)
		s.reply(conn, EncodeError(ErrInvalidFormat))
		return
	}

	s.reply(conn, s.Respond(ctx, raw))
}

// Respond decodes one request, runs it and returns the encoded reply
func (s *Server) Respond(ctx context.Context, data []byte) []byte {
	cmd, err := Decode(data)
	if err != nil {
		return EncodeError(err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()

	resp, err := s.processor.Submit(ctx, cmd)
	if err != nil {
		debug.Error("server", "command not processed", "type", cmd.Type, "err", err)
		return EncodeError(err)
	}

	out, err := Encode(resp)
	if err != nil {
		return EncodeError(err)
	}
	return out
}

func (s *Server) reply(conn net.Conn, data []byte) {
	_ = conn.SetWriteDeadline(time.Now().Add(s.readTimeout))
	if _, err := conn.Write(data); err != nil {
		debug.Warn("server", "write failed", "remote", conn.RemoteAddr().String(), "err", err)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > maxAcceptBackoff {
		return maxAcceptBackoff
	}
	return d
}

// closeConn half-closes after the reply and drains unread input briefly, so
// the client sees the response instead of a reset.
func closeConn(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
		_ = tc.SetReadDeadline(time.Now().Add(lingerTimeout))
		_, _ = io.Copy(io.Discard, io.LimitReader(tc, 64*MaxRequestSize))
	}
	conn.Close()
}
