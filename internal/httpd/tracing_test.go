package httpd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestServer_RequestSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	store, _ := openStore(t, map[string][]byte{"index.html": []byte("hi")})
	ts := startServer(t, store, Config{}, WithTracerProvider(tp))

	conn, br := dial(t, ts.addr)
	send(t, conn, "GET / HTTP/1.1\r\nConnection: Keep-Alive\r\n\r\n")
	readResponse(t, br)
	send(t, conn, "PUT /x HTTP/1.1\r\n\r\n")
	readResponse(t, br)
	requireClosed(t, br)

	// Spans end before the worker exits; the drain waits for it.
	require.ErrorIs(t, ts.stop(t), ErrServerClosed)

	spans := rec.Ended()
	require.Len(t, spans, 2)

	get, put := spans[0], spans[1]
	assert.Equal(t, "GET", get.Name())
	assert.Equal(t, trace.SpanKindServer, get.SpanKind())
	attrs := spanAttrs(get)
	assert.Equal(t, "GET", attrs["http.request.method"].AsString())
	assert.NotContains(t, attrs, attribute.Key("http.request.method_original"))
	assert.Equal(t, int64(200), attrs["http.response.status_code"].AsInt64())
	assert.Equal(t, "/index.html", attrs["url.path"].AsString())
	assert.True(t, attrs["staticd.keep_alive"].AsBool())
	assert.NotEmpty(t, attrs["staticd.conn_id"].AsString())
	assert.Equal(t, codes.Unset, get.Status().Code)

	assert.Equal(t, "HTTP", put.Name())
	attrs = spanAttrs(put)
	assert.Equal(t, "_OTHER", attrs["http.request.method"].AsString())
	assert.Equal(t, "PUT", attrs["http.request.method_original"].AsString())
	assert.Equal(t, int64(501), attrs["http.response.status_code"].AsInt64())
	assert.False(t, attrs["staticd.keep_alive"].AsBool())
	assert.Equal(t, spanAttrs(get)["staticd.conn_id"], attrs["staticd.conn_id"])
}

func TestRequestMethod(t *testing.T) {
	tests := []struct {
		line, method, original string
	}{
		{"GET / HTTP/1.1", "GET", "GET"},
		{"PUT /x HTTP/1.1", "_OTHER", "PUT"},
		{"get / HTTP/1.1", "_OTHER", "get"},
		{"garbage", "_OTHER", "garbage"},
		{"", "_OTHER", ""},
	}
	for _, tt := range tests {
		method, original := requestMethod(tt.line)
		assert.Equal(t, tt.method, method, tt.line)
		assert.Equal(t, tt.original, original, tt.line)
	}
}
