package httpd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrServerClosed is returned by Serve once Shutdown has completed.
var ErrServerClosed = errors.New("httpd: server closed")

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second

	instrumentationName = "github.com/BaSui01/staticd/internal/httpd"
)

// Config configures a Server.
type Config struct {
	// Addr is the TCP address to listen on, e.g. ":8080".
	Addr string
	// DefaultDocument is served for "/" and for an empty path.
	DefaultDocument string
	// MaxHeaderBytes caps the size of a single request head.
	MaxHeaderBytes int
}

// DefaultConfig returns the settings used when fields are left empty.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		DefaultDocument: "index.html",
		MaxHeaderBytes:  8 << 10,
	}
}

// Metrics receives connection and request events. Implementations must be
// safe for concurrent use.
type Metrics interface {
	RecordConnAccepted()
	RecordConnRejected()
	RecordConnClosed()
	RecordRequest(status int, duration time.Duration, responseSize int)
	RecordShutdown(conns, workers int, duration time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordConnAccepted() {}
func (nopMetrics) RecordConnRejected() {}
func (nopMetrics) RecordConnClosed() {}
func (nopMetrics) RecordRequest(int, time.Duration, int) {}
func (nopMetrics) RecordShutdown(int, int, time.Duration) {}

// Option customises a Server.
type Option func(*Server)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger.With(zap.String("component", "httpd")) }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithAcceptLimiter makes the listener loop take a token before each accept.
func WithAcceptLimiter(l *rate.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) { s.tracer = tp.Tracer(instrumentationName) }
}

// Server accepts connections and runs one worker goroutine per connection.
type Server struct {
	cfg      Config
	store    FileStore
	registry *Registry
	logger   *zap.Logger
	metrics  Metrics
	limiter  *rate.Limiter
	tracer   trace.Tracer

	mu       sync.Mutex
	listener net.Listener

	// baseCtx is the parent of every worker context; Shutdown cancels it.
	baseCtx context.Context
	cancel  context.CancelFunc

	closed       atomic.Bool
	shutdownOnce sync.Once
	shutdownDone chan struct{}
	shutdownErr  error
}

// NewServer creates a server that answers from store. Zero-valued config
// fields fall back to DefaultConfig.
func NewServer(cfg Config, store FileStore, opts ...Option) *Server {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.DefaultDocument == "" {
		cfg.DefaultDocument = def.DefaultDocument
	}
	if cfg.MaxHeaderBytes <= 0 {
		cfg.MaxHeaderBytes = def.MaxHeaderBytes
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:          cfg,
		store:        store,
		registry:     NewRegistry(),
		logger:       zap.NewNop(),
		metrics:      nopMetrics{},
		tracer:       otel.Tracer(instrumentationName),
		baseCtx:      baseCtx,
		cancel:       cancel,
		shutdownDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen binds the listening socket. It is separate from Serve so that
// bind failures surface before anything else starts.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrServerClosed
	}
	if s.listener != nil {
		return errors.New("httpd: already listening")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Registry exposes the connection registry for health reporting.
func (s *Server) Registry() *Registry { return s.registry }

// ListenAndServe is Listen followed by Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve runs the listener loop. Each accepted connection is registered
// and handed to its own worker goroutine; the loop never waits on a worker.
//
// Cancelling ctx triggers Shutdown on a separate goroutine. Serve returns
// ErrServerClosed only after the shutdown has drained every connection and
// worker.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("httpd: Serve called before Listen")
	}

	stop := context.AfterFunc(ctx, func() {
		s.logger.Info("shutdown requested")
		if err := s.Shutdown(context.Background()); err != nil {
			s.logger.Error("shutdown failed", zap.Error(err))
		}
	})
	defer stop()

	var backoff time.Duration
	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(s.baseCtx); err != nil {
				return s.serveExit(err)
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return s.serveExit(err)
			}
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(2*backoff, maxAcceptBackoff)
			}
			s.logger.Warn("accept failed, retrying",
				zap.Error(err),
				zap.Duration("backoff", backoff),
			)
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		s.metrics.RecordConnAccepted()

		handle, err := s.registry.Track(conn)
		if err != nil {
			// Shutdown already drained the registry; nobody would close this one.
			s.metrics.RecordConnRejected()
			_ = conn.Close()
			continue
		}

		w := newConnWorker(s, conn, handle)
		go w.run(s.baseCtx)
	}
}

// serveExit maps the loop's terminating error. While shutting down it
// waits for the drain to finish so that a returned Serve means every
// worker is gone.
func (s *Server) serveExit(err error) error {
	if !s.closed.Load() {
		return fmt.Errorf("httpd: accept loop stopped: %w", err)
	}
	<-s.shutdownDone
	return ErrServerClosed
}

// Shutdown is the one-shot coordinator. It force-closes every tracked
// connection, joins every tracked worker and then closes the listener, in
// that order: a worker blocked on a read only wakes once its connection is
// gone. Later calls return the first call's result without doing anything.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdown(ctx)
		close(s.shutdownDone)
	})
	return s.shutdownErr
}

func (s *Server) shutdown(ctx context.Context) error {
	start := time.Now()
	s.closed.Store(true)
	s.cancel()

	var errs []error

	conns := s.registry.DrainConnections()
	s.logger.Info("connections closed", zap.Int("count", conns))

	workers, err := s.registry.DrainWorkers(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("join workers: %w", err))
	}
	s.logger.Info("workers joined", zap.Int("count", workers))

	s.mu.Lock()
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("close listener: %w", err))
		}
	}
	s.mu.Unlock()

	elapsed := time.Since(start)
	s.metrics.RecordShutdown(conns, workers, elapsed)
	s.logger.Info("server stopped", zap.Duration("elapsed", elapsed))

	return errors.Join(errs...)
}
