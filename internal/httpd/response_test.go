package httpd

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestResponse_Bytes(t *testing.T) {
	resp := &Response{
		Status:      StatusOK,
		ContentType: "text/html",
		Body:        []byte("<p>hi</p>"),
		KeepAlive:   true,
	}

	want := "HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/html\r\n" +
		"Content-Length: 9\r\n" +
		"Connection: Keep-Alive\r\n" +
		"\r\n" +
		"<p>hi</p>"
	assert.Equal(t, want, string(resp.Bytes()))
}

func TestErrorDocuments_Fixed(t *testing.T) {
	assert.Len(t, NotFoundBody, 324)
	assert.True(t, strings.HasPrefix(NotFoundBody, "<html><head><title>404 Not Found</title>"))
	assert.True(t, strings.HasSuffix(NotFoundBody, ":(</div></html>"))

	assert.Len(t, NotImplementedBody, 205)
	assert.Contains(t, NotImplementedBody, "does not recognise the request method")
}

func TestResponse_ErrorDocuments(t *testing.T) {
	tests := []struct {
		name       string
		resp       *Response
		statusLine string
		body       string
		connection string
	}{
		{
			name:       "not found close",
			resp:       NotFound(false),
			statusLine: "HTTP/1.1 404 Not Found",
			body:       NotFoundBody,
			connection: "close",
		},
		{
			name:       "not implemented keep-alive",
			resp:       NotImplemented(true),
			statusLine: "HTTP/1.1 501 Not Implemented",
			body:       NotImplementedBody,
			connection: "Keep-Alive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := string(tt.resp.Bytes())
			head, body, ok := strings.Cut(out, "\r\n\r\n")
			require.True(t, ok)

			lines := strings.Split(head, "\r\n")
			require.Len(t, lines, 4)
			assert.Equal(t, tt.statusLine, lines[0])
			assert.Equal(t, "Content-Type: text/html", lines[1])
			assert.Equal(t, "Content-Length: "+strconv.Itoa(len(tt.body)), lines[2])
			assert.Equal(t, "Connection: "+tt.connection, lines[3])
			assert.Equal(t, tt.body, body)
		})
	}
}

func TestStatus_Text(t *testing.T) {
	assert.Equal(t, "OK", StatusOK.Text())
	assert.Equal(t, "Not Found", StatusNotFound.Text())
	assert.Equal(t, "Not Implemented", StatusNotImplemented.Text())
	assert.Equal(t, "", Status(418).Text())
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"/index.html":      "text/html",
		"/INDEX.HTML":      "text/html",
		"/old.htm":         "text/html",
		"/site.css":        "text/css",
		"/photo.jpg":       "image/jpeg",
		"/photo.jpeg":      "image/jpeg",
		"/logo.png":        "image/png",
		"/anim.gif":        "image/gif",
		"/app.js":          "application/javascript",
		"/data.json":       "application/json",
		"/icon.svg":        "image/svg+xml",
		"/favicon.ico":     "image/x-icon",
		"/readme.txt":      "text/plain",
		"/Makefile":        "text/plain",
		"/archive.tar.gz":  "text/plain",
		"/dir.html/report": "text/plain",
		"/":                "text/plain",
	}

	for p, want := range tests {
		t.Run(p, func(t *testing.T) {
			assert.Equal(t, want, ContentTypeFor(p))
		})
	}
}

func TestResponse_Property_BodyVerbatim(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		body := rapid.SliceOf(rapid.Byte()).Draw(rt, "body")
		keepAlive := rapid.Bool().Draw(rt, "keepAlive")
		resp := &Response{Status: StatusOK, ContentType: "application/octet-stream", Body: body, KeepAlive: keepAlive}

		out := resp.Bytes()
		idx := bytes.Index(out, []byte("\r\n\r\n"))
		if idx < 0 {
			rt.Fatalf("no header terminator")
		}
		head, got := string(out[:idx]), out[idx+4:]

		if !bytes.Equal(body, got) {
			rt.Fatalf("body changed: want %d bytes, got %d", len(body), len(got))
		}
		wantLen := "Content-Length: " + strconv.Itoa(len(body))
		if !strings.Contains(head, wantLen) {
			rt.Fatalf("header %q lacks %q", head, wantLen)
		}
	})
}

type shortWriter struct{ buf bytes.Buffer }

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return w.buf.Write(p[:len(p)-1])
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestResponse_WriteTo(t *testing.T) {
	resp := NotFound(false)

	var buf bytes.Buffer
	n, err := resp.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, resp.Bytes(), buf.Bytes())

	_, err = resp.WriteTo(&shortWriter{})
	assert.ErrorIs(t, err, io.ErrShortWrite)

	_, err = resp.WriteTo(failingWriter{})
	assert.EqualError(t, err, "broken pipe")
}
