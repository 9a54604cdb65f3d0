package daemon

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/midoBB/qs-daemon/internal/logging"
)

var resLog = logging.ForComponent(logging.CompResponder)

const (
	// idleInterval paces the manager while no clients are connected.
	idleInterval = time.Second

	// holdInterval is how long an established connection is left alone
	// before the manager re-checks it.
	holdInterval = 5 * time.Second

	// redialBackoff spaces out connection attempts while the response
	// endpoint is unreachable.
	redialBackoff = 2 * time.Second

	dialTimeout = time.Second
)

// Responder maintains the optional outbound connection to the response
// socket and delivers response frames through it when available. The
// connection is shared, not per-client: it exists only while request-side
// clients are active.
type Responder struct {
	socketPath string
	clients    *atomic.Int64
	dialer     *rate.Limiter

	mu   sync.Mutex
	conn net.Conn
}

func newResponder(socketPath string, clients *atomic.Int64) *Responder {
	return &Responder{
		socketPath: socketPath,
		clients:    clients,
		dialer:     rate.NewLimiter(rate.Every(redialBackoff), 1),
	}
}

// Run re-evaluates the connection state until ctx is cancelled: tear down
// when no clients are active, hold an established connection, otherwise
// attempt to connect at a paced rate.
func (r *Responder) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			r.dropConn()
			return nil
		}

		if r.clients.Load() == 0 {
			if r.dropConn() {
				resLog.Debug("response_socket_released", slog.String("reason", "no active clients"))
			}
			if !sleepCtx(ctx, idleInterval) {
				return nil
			}
			continue
		}

		if r.hasConn() {
			if !sleepCtx(ctx, holdInterval) {
				r.dropConn()
				return nil
			}
			continue
		}

		if err := r.dialer.Wait(ctx); err != nil {
			return nil
		}
		conn, err := net.DialTimeout("unix", r.socketPath, dialTimeout)
		if err != nil {
			// Launcher not running; the limiter paces the next attempt.
			resLog.Debug("response_socket_unavailable", slog.String("error", err.Error()))
			continue
		}
		resLog.Info("response_socket_connected", slog.String("path", r.socketPath))
		r.adopt(conn)
	}
}

// Deliver attempts to push one response frame through the out-of-band
// connection and reports whether it was sent. The connection is taken out
// of shared state for the write so no two writers interleave and a slow
// write never blocks the manager; it goes back only after a clean write. On
// failure the connection is presumed dead and discarded, and the caller
// falls back to the request socket.
func (r *Responder) Deliver(frame []byte) bool {
	conn := r.take()
	if conn == nil {
		return false
	}

	if err := writeFrame(conn, frame); err != nil {
		resLog.Warn("response_socket_write_failed", slog.String("error", err.Error()))
		conn.Close()
		return false
	}

	r.adopt(conn)
	return true
}

func (r *Responder) take() net.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn := r.conn
	r.conn = nil
	return conn
}

// adopt stores a usable connection back into shared state. If the manager
// raced us and dialed a fresh one in the meantime, keep the newer one.
func (r *Responder) adopt(conn net.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		conn.Close()
		return
	}
	r.conn = conn
}

func (r *Responder) hasConn() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn != nil
}

// dropConn closes and clears any stored connection, reporting whether one
// existed.
func (r *Responder) dropConn() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return false
	}
	r.conn.Close()
	r.conn = nil
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
