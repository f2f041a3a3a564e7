// Package debugserver implements spec.md §6's debug-connection wire protocol:
// a 16-byte header — {token, reserved, length, reserved}, all little-endian
// uint32 — followed by a length-byte request payload, answered with the same
// header reused for the response (length slot overwritten with the response
// length) followed by the response bytes.
//
// Out of scope per spec.md §1 as a *feature*, but §6 names its framing
// explicitly, so it is carried here as the optional external introspection
// observer graph.Graph is allowed to expose. Grounded on
// `_examples/original_source/Sources/ComputeCxx/Debug/Connection.cpp`:
// every connection is driven by a blocking read/dispatch/write cycle (one
// goroutine per connection stands in for the C++ dispatch-source handler),
// and — the one deliberately non-obvious behavior carried over verbatim —
// a token mismatch closes the connection immediately with no response
// written at all, rather than replying with an error. A successful
// round-trip keeps the connection open for a subsequent request instead of
// closing it.
package debugserver

import (
	"encoding/binary"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"
)

const headerWords = 4
const headerSize = headerWords * 4

// Handler answers a single request payload with a response payload. A false
// second return means "no response" — Connection.cpp's request_data == NULL
// / CFDataGetLength overflow short-circuit — and closes the connection
// exactly as a protocol failure would.
type Handler interface {
	Receive(request []byte) (response []byte, ok bool)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(request []byte) ([]byte, bool)

func (f HandlerFunc) Receive(request []byte) ([]byte, bool) { return f(request) }

// Server listens for token-framed debug connections and dispatches each
// request to Handler. The zero Logger is replaced with zap.NewNop() the way
// the rest of this module treats a nil trace.Trace as a no-op sink.
type Server struct {
	Token   uint32
	Handler Handler
	Logger  *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	closed   bool
}

// ListenAndServe opens addr and accepts connections until Close is called.
// It returns nil on a clean shutdown (Close called) and the listener's error
// otherwise.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Close is called. It takes ownership
// of ln and closes it on return.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	defer ln.Close()

	logger := s.logger()
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn, logger)
		}()
	}
}

// Close stops accepting new connections and waits for in-flight connections
// to finish their current request/response cycle.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	ln := s.listener
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Server) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// handleConnection drives one connection's request/response cycles. It
// mirrors Connection::handler: on ANY protocol or I/O failure the connection
// is closed without writing a reply; on success it loops to read the next
// request instead of returning, keeping the connection open.
func (s *Server) handleConnection(conn net.Conn, logger *zap.Logger) {
	defer conn.Close()

	for {
		var header [headerWords]uint32
		if !readHeader(conn, &header) {
			return
		}

		if header[0] != s.Token {
			logger.Warn("debugserver: token mismatch, closing connection",
				zap.Uint32("got", header[0]))
			return
		}

		length := header[2]
		request := make([]byte, length)
		if _, err := io.ReadFull(conn, request); err != nil {
			logger.Debug("debugserver: short read on request body", zap.Error(err))
			return
		}

		response, ok := s.Handler.Receive(request)
		if !ok {
			return
		}
		if len(response) > 0xffffffff {
			return
		}

		header[2] = uint32(len(response))
		if !writeHeader(conn, &header) {
			return
		}
		if _, err := conn.Write(response); err != nil {
			logger.Debug("debugserver: short write on response body", zap.Error(err))
			return
		}
	}
}

func readHeader(conn net.Conn, header *[headerWords]uint32) bool {
	var buf [headerSize]byte
	if _, err := io.ReadFull(conn, buf[:]); err != nil {
		return false
	}
	for i := range header {
		header[i] = binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
	}
	return true
}

func writeHeader(conn net.Conn, header *[headerWords]uint32) bool {
	var buf [headerSize]byte
	for i, w := range header {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], w)
	}
	_, err := conn.Write(buf[:])
	return err == nil
}
