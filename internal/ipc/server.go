package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"syscall"
	"time"
)

// backlog is the listen queue length: one pending client while another
// is being served.
const backlog = 1

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Options tune a Server.
type Options struct {
	// ReadSize bounds a single request read. Each request must fit in one read.
	ReadSize int

	// ShutdownOnDisconnect makes a peer disconnect stop the whole server
	// instead of only ending that connection.
	ShutdownOnDisconnect bool

	// Logger receives structured log output. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Server owns the bridge socket and serves one connection at a time.
type Server struct {
	socketPath string
	handler    Handler
	opts       Options
	listener   net.Listener

	mu     sync.Mutex
	active net.Conn
	closed bool
}

// Listen removes any stale entry at socketPath, binds a Unix stream socket
// there, and returns a Server ready to Serve. Any failure here is fatal to
// startup.
func Listen(socketPath string, handler Handler, opts Options) (*Server, error) {
	if opts.ReadSize <= 0 {
		return nil, fmt.Errorf("ipc: read size must be positive, got %d", opts.ReadSize)
	}

	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale socket %s: %w", socketPath, err)
	}

	ln, err := listenUnix(socketPath, backlog)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", socketPath, err)
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		ln.Close()
		os.Remove(socketPath)
		return nil, fmt.Errorf("setting socket permissions: %w", err)
	}

	return &Server{
		socketPath: socketPath,
		handler:    handler,
		opts:       opts,
		listener:   ln,
	}, nil
}

// SocketPath returns the path the server is bound to.
func (s *Server) SocketPath() string {
	return s.socketPath
}

func (s *Server) logger() *slog.Logger {
	if s.opts.Logger != nil {
		return s.opts.Logger
	}
	return slog.Default()
}

// Serve runs the accept loop until ctx is cancelled, the server is closed,
// or a peer disconnect triggers shutdown under ShutdownOnDisconnect. Those
// all return nil. Transient accept errors are logged and retried.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.listener.Close()
		s.closeActive()
	})
	defer stop()

	var delay time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || s.isClosed() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("accept: %w", err)
			}

			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay = min(delay*2, maxAcceptDelay)
			}
			s.logger().Warn("accept failed, retrying", "error", err, "delay", delay)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		delay = 0

		if s.serveConn(ctx, conn) {
			s.logger().Info("peer disconnected, shutting down")
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// serveConn runs the request/response loop on one connection. It reports
// whether the server should shut down.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) bool {
	if !s.setActive(conn) {
		conn.Close()
		return false
	}
	defer s.clearActive(conn)
	defer conn.Close()
	if ctx.Err() != nil {
		return false
	}

	logger := s.logger()
	logger.Info("connection accepted")

	buf := make([]byte, s.opts.ReadSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			logger.Debug("request", "bytes", n)
			for _, msg := range splitMessages(buf[:n]) {
				resp := s.handler(ctx, msg)
				if _, werr := conn.Write(resp); werr != nil {
					if !isExpectedCloseError(werr) && ctx.Err() == nil {
						logger.Warn("writing response", "error", werr)
					}
					return false
				}
				logger.Debug("response", "bytes", len(resp))
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info("connection terminated")
				return s.opts.ShutdownOnDisconnect
			}
			if ctx.Err() == nil && !isExpectedCloseError(err) {
				logger.Warn("reading request", "error", err)
			}
			return false
		}
	}
}

// splitMessages separates requests a client wrote back-to-back. Each
// complete top-level JSON value becomes one message. Bytes that do not
// decode are returned as a final message so the handler can reject them.
// A chunk holding no value at all is passed through whole.
func splitMessages(chunk []byte) [][]byte {
	dec := json.NewDecoder(bytes.NewReader(chunk))
	var msgs [][]byte
	for {
		start := dec.InputOffset()
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if !errors.Is(err, io.EOF) {
				if rest := bytes.TrimSpace(chunk[start:]); len(rest) > 0 {
					msgs = append(msgs, bytes.Clone(rest))
				}
			}
			if len(msgs) == 0 {
				return [][]byte{bytes.Clone(chunk)}
			}
			return msgs
		}
		msgs = append(msgs, []byte(raw))
	}
}

// Close stops accepting, closes any active connection, and removes the
// socket file. It is safe to call more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.active
	s.mu.Unlock()

	err := s.listener.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	if conn != nil {
		conn.Close()
	}
	if rmErr := os.Remove(s.socketPath); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	return err
}

func (s *Server) setActive(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.active = conn
	return true
}

func (s *Server) clearActive(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == conn {
		s.active = nil
	}
}

func (s *Server) closeActive() {
	s.mu.Lock()
	conn := s.active
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// isExpectedCloseError reports whether err is a normal connection
// termination: EOF, closed connection, broken pipe, or connection reset.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
