package httpd

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"
)

// ErrRegistryClosed is returned by Track once the registry has been drained.
var ErrRegistryClosed = errors.New("connection registry is closed")

// WorkerHandle identifies the goroutine serving one connection.
type WorkerHandle struct {
	done chan struct{}
}

func newWorkerHandle() *WorkerHandle {
	return &WorkerHandle{done: make(chan struct{})}
}

// finish marks the worker as returned. It must be called exactly once,
// by the worker itself.
func (h *WorkerHandle) finish() { close(h.done) }

// Done is closed when the worker has returned.
func (h *WorkerHandle) Done() <-chan struct{} { return h.done }

// Join waits for the worker to return or ctx to end. Joining a finished
// worker returns immediately, any number of times.
func (h *WorkerHandle) Join(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Registry tracks every live connection and worker so shutdown can reach
// them. Workers never remove themselves; entries for workers that already
// returned stay until the drain.
type Registry struct {
	mu      sync.Mutex
	conns   []net.Conn
	workers []*WorkerHandle
	closed  bool
}

// NewRegistry creates an empty, open registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Track registers conn together with a fresh worker handle in one step.
// After DrainConnections has run it refuses with ErrRegistryClosed and the
// caller keeps ownership of conn.
func (r *Registry) Track(conn net.Conn) (*WorkerHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}
	h := newWorkerHandle()
	r.conns = append(r.conns, conn)
	r.workers = append(r.workers, h)
	return h, nil
}

// DrainConnections closes the registry to new entries, then forcibly
// shuts down every tracked connection in both directions and forgets it.
// Any read or write blocked on those connections returns with an error.
// It returns the number of connections drained.
func (r *Registry) DrainConnections() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	n := len(r.conns)
	for i, c := range r.conns {
		forceClose(c)
		r.conns[i] = nil
	}
	r.conns = nil
	return n
}

// DrainWorkers joins every tracked worker and forgets it. The lock is not
// held while waiting. On ctx expiry the workers not yet joined stay
// registered and ctx's error is returned.
func (r *Registry) DrainWorkers(ctx context.Context) (int, error) {
	r.mu.Lock()
	workers := r.workers
	r.workers = nil
	r.mu.Unlock()

	for i, h := range workers {
		if err := h.Join(ctx); err != nil {
			r.mu.Lock()
			r.workers = append(workers[i:], r.workers...)
			r.mu.Unlock()
			return i, err
		}
	}
	return len(workers), nil
}

// Len reports how many connections and workers are currently tracked,
// finished ones included.
func (r *Registry) Len() (conns, workers int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns), len(r.workers)
}

// Active reports how many tracked workers have not yet returned.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, h := range r.workers {
		select {
		case <-h.done:
		default:
			n++
		}
	}
	return n
}

// Closed reports whether the connection drain has started.
func (r *Registry) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

type halfCloser interface {
	CloseRead() error
	CloseWrite() error
}

// forceClose wakes anything blocked on c and shuts the socket down in both
// directions. The descriptor itself is left for the owning worker to close;
// connections without half-close support are closed outright.
func forceClose(c net.Conn) {
	_ = c.SetDeadline(time.Now())
	if hc, ok := c.(halfCloser); ok {
		_ = hc.CloseRead()
		_ = hc.CloseWrite()
		return
	}
	_ = c.Close()
}
