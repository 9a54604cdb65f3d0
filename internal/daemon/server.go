package daemon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/midoBB/qs-daemon/internal/index"
	"github.com/midoBB/qs-daemon/internal/logging"
	"github.com/midoBB/qs-daemon/internal/protocol"
)

var srvLog = logging.ForComponent(logging.CompServer)

// maxFrameBytes bounds a single request frame.
const maxFrameBytes = 1024 * 1024

// Server accepts client connections on the request socket and services one
// newline-delimited JSON request at a time per connection.
type Server struct {
	socketPath string
	index      *index.Index
	responder  *Responder
	settings   *settings
	clients    *atomic.Int64

	listener net.Listener
}

func newServer(socketPath string, ix *index.Index, r *Responder, s *settings, clients *atomic.Int64) *Server {
	return &Server{
		socketPath: socketPath,
		index:      ix,
		responder:  r,
		settings:   s,
		clients:    clients,
	}
}

// Listen binds the request socket. A leftover socket file from a previous
// run is removed first; if something is still accepting on it, another
// daemon owns the address and startup fails.
func (s *Server) Listen() error {
	if _, err := os.Stat(s.socketPath); err == nil {
		if socketAlive(s.socketPath) {
			return fmt.Errorf("socket %s is in use by another daemon", s.socketPath)
		}
		if err := os.Remove(s.socketPath); err != nil {
			return fmt.Errorf("remove stale socket: %w", err)
		}
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("bind request socket: %w", err)
	}
	s.listener = ln
	srvLog.Info("request_server_listening", slog.String("path", s.socketPath))
	return nil
}

// socketAlive reports whether something is accepting on the socket path.
func socketAlive(path string) bool {
	conn, err := net.DialTimeout("unix", path, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Serve runs the accept loop until ctx is cancelled. Individual accept and
// handler failures never take down the listener.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.listener.Close() })
	defer stop()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			srvLog.Error("accept_failed", slog.String("error", err.Error()))
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

// handleConn services one client: frames are read, serviced and answered
// strictly in order, no pipelining. The connection holds its slot in the
// active-client count until it closes.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	n := s.clients.Add(1)
	srvLog.Debug("client_connected", slog.Int64("active_clients", n))
	defer func() {
		srvLog.Debug("client_disconnected", slog.Int64("active_clients", s.clients.Add(-1)))
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxFrameBytes)
	for scanner.Scan() {
		logging.Aggregate(logging.CompServer, "request_frame")

		resp := s.serviceFrame(ctx, scanner.Bytes())
		frame, err := protocol.EncodeResponse(resp)
		if err != nil {
			srvLog.Error("encode_response_failed", slog.String("error", err.Error()))
			return
		}

		if s.responder.Deliver(frame) {
			continue
		}
		// No out-of-band connection, or it just died: answer in-band. A
		// failure here is fatal to this connection only.
		if err := writeFrame(conn, frame); err != nil {
			srvLog.Warn("fallback_write_failed", slog.String("error", err.Error()))
			return
		}
	}
	if err := scanner.Err(); err != nil {
		srvLog.Warn("client_read_error", slog.String("error", err.Error()))
	}
}

// serviceFrame parses and dispatches one request. Every failure becomes an
// Error response; nothing escapes as a raw fault. The index lock is released
// before the response is delivered.
func (s *Server) serviceFrame(ctx context.Context, line []byte) protocol.Response {
	req, err := protocol.DecodeRequest(line)
	if err != nil {
		logging.Aggregate(logging.CompServer, "protocol_error")
		return protocol.ErrorResponse{Message: err.Error()}
	}

	switch r := req.(type) {
	case protocol.SearchRequest:
		limit := int(s.settings.defaultLimit.Load())
		if r.Limit != nil {
			limit = *r.Limit
		}
		results, total := s.index.Search(r.Query, limit)
		return protocol.SearchResults{
			Results:      results,
			ResultsCount: len(results),
			TotalFiles:   total,
		}
	case protocol.RefreshRequest:
		count, err := s.index.Update(ctx)
		if err != nil {
			return protocol.ErrorResponse{Message: err.Error()}
		}
		return protocol.RefreshComplete{FilesCount: count}
	case protocol.StatusRequest:
		return protocol.StatusResponse{
			FilesCount:  s.index.Len(),
			LastUpdated: s.index.LastUpdated(),
		}
	default:
		return protocol.ErrorResponse{Message: fmt.Sprintf("unsupported request %T", req)}
	}
}

// writeFrame writes one frame plus the terminating newline.
func writeFrame(conn net.Conn, frame []byte) error {
	if _, err := conn.Write(frame); err != nil {
		return err
	}
	_, err := conn.Write([]byte("\n"))
	return err
}
