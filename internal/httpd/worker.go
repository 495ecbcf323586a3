package httpd

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/staticd/internal/ctxkeys"
)

// connWorker owns one accepted connection for its whole life. It loops
// AWAIT_REQUEST → RESOLVE → RESPOND and either continues (keep-alive) or
// terminates, closing the connection.
type connWorker struct {
	srv    *Server
	conn   net.Conn
	handle *WorkerHandle
	id     string
	logger *zap.Logger
}

func newConnWorker(s *Server, conn net.Conn, handle *WorkerHandle) *connWorker {
	id := uuid.NewString()
	return &connWorker{
		srv:    s,
		conn:   conn,
		handle: handle,
		id:     id,
		logger: s.logger.With(
			zap.String("conn_id", id),
			zap.String("remote", remoteAddr(conn)),
		),
	}
}

// remoteAddr is conn's peer address, or "" when the conn has none.
func remoteAddr(conn net.Conn) string {
	if ra := conn.RemoteAddr(); ra != nil {
		return ra.String()
	}
	return ""
}

func (w *connWorker) run(ctx context.Context) {
	defer w.handle.finish()
	defer w.srv.metrics.RecordConnClosed()
	defer w.conn.Close()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("connection worker panicked",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()

	ctx = ctxkeys.WithConnID(ctx, w.id)
	ctx = ctxkeys.WithRemoteAddr(ctx, remoteAddr(w.conn))

	w.logger.Debug("connection opened")
	hr := newHeadReader(w.conn, w.srv.cfg.MaxHeaderBytes)

	served := 0
	for {
		if ctx.Err() != nil {
			w.logger.Debug("connection cancelled", zap.Int("requests", served))
			return
		}

		// AWAIT_REQUEST
		req, err := hr.next()
		if err != nil {
			w.logReadFailure(err, served)
			return
		}

		// RESOLVE, RESPOND
		resp, err := w.serve(ctx, req)
		served++
		if err != nil {
			w.logger.Debug("send failed", zap.Error(err), zap.Int("requests", served))
			return
		}
		if !resp.KeepAlive {
			w.logger.Debug("connection closing", zap.Int("requests", served))
			return
		}
	}
}

// serve resolves one request and writes the response.
func (w *connWorker) serve(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	method, original := requestMethod(req.Line)

	attrs := []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(method),
		attribute.String("staticd.conn_id", w.id),
	}
	spanName := method
	if method == methodOther {
		spanName = "HTTP"
		attrs = append(attrs, attribute.String("http.request.method_original", original))
	}

	ctx, span := w.srv.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	resp := w.srv.resolve(ctx, req)
	n, err := resp.WriteTo(w.conn)
	elapsed := time.Since(start)

	span.SetAttributes(
		attribute.Int("http.response.status_code", int(resp.Status)),
		attribute.Int64("http.response.size", n),
		attribute.Bool("staticd.keep_alive", resp.KeepAlive),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
	}

	w.srv.metrics.RecordRequest(int(resp.Status), elapsed, int(n))
	w.logger.Debug("request served",
		zap.String("request_line", req.Line),
		zap.Int("status", int(resp.Status)),
		zap.Int("body_bytes", len(resp.Body)),
		zap.Bool("keep_alive", resp.KeepAlive),
		zap.Duration("duration", elapsed),
	)
	return resp, err
}

func (w *connWorker) logReadFailure(err error, served int) {
	switch {
	case errors.Is(err, io.EOF):
		w.logger.Debug("connection closed by peer", zap.Int("requests", served))
	case errors.Is(err, ErrHeaderTooLarge):
		w.logger.Warn("request header too large", zap.Int("requests", served))
	case errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrUnexpectedEOF), isTimeout(err):
		w.logger.Debug("connection read aborted", zap.Error(err), zap.Int("requests", served))
	default:
		w.logger.Info("read failed", zap.Error(err), zap.Int("requests", served))
	}
}

// resolve maps a request to its response. It never fails: rejected
// request lines become 501 and unreadable files become 404.
func (s *Server) resolve(ctx context.Context, req *Request) *Response {
	if req.Malformed {
		s.logger.Debug("malformed request header", zap.String("request_line", req.Line))
		return NotImplemented(false)
	}
	keepAlive := req.KeepAlive()

	p, err := ParseRequestLine(req.Line)
	if err != nil {
		return NotImplemented(keepAlive)
	}
	if p == "" || p == "/" {
		p = "/" + strings.TrimLeft(s.cfg.DefaultDocument, "/")
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("url.path", p))

	body, err := s.store.ReadFile(p)
	if err != nil {
		if id, ok := ctxkeys.ConnID(ctx); ok {
			s.logger.Debug("resource not found",
				zap.String("conn_id", id),
				zap.String("path", p),
				zap.Error(err),
			)
		}
		return NotFound(keepAlive)
	}

	return &Response{
		Status:      StatusOK,
		ContentType: ContentTypeFor(p),
		Body:        body,
		KeepAlive:   keepAlive,
	}
}

// methodOther stands in for every method the server does not serve, so
// span names and method attributes stay a closed set.
const methodOther = "_OTHER"

// requestMethod returns the label for a request line's method, plus the
// raw first token it was derived from.
func requestMethod(line string) (method, original string) {
	original, _, _ = strings.Cut(line, " ")
	if original == "GET" {
		return original, original
	}
	return methodOther, original
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
