package httpd

import (
	"bytes"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/BaSui01/staticd/internal/pool"
)

// Status is one of the response codes the server emits.
type Status int

const (
	StatusOK             Status = 200
	StatusNotFound       Status = 404
	StatusNotImplemented Status = 501
)

// Text returns the reason phrase for s.
func (s Status) Text() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNotFound:
		return "Not Found"
	case StatusNotImplemented:
		return "Not Implemented"
	default:
		return ""
	}
}

const (
	contentTypeHTML  = "text/html"
	contentTypePlain = "text/plain"

	connKeepAlive = "Keep-Alive"
	connClose     = "close"
)

// Diagnostic documents sent with 404 and 501 responses.
const (
	NotFoundBody       = `<html><head><title>404 Not Found</title></head><body><h1>404 Not Found</h1>The requested resource could not be found but may be available again in the future.<div style="color: #eeeeee; font-size: 8pt;">Actually, it probably won't ever be available unless this is showing up because of a bug in your program. :(</div></html>`
	NotImplementedBody = `<html><head><title>501 Not Implemented</title></head><body><h1>501 Not Implemented</h1>The server either does not recognise the request method, or it lacks the ability to fulfill the request.</body></html>`
)

var contentTypes = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".txt":  "text/plain",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
}

// ContentTypeFor maps a resource path to a content type by its final
// extension. Unknown or missing extensions are served as text/plain.
func ContentTypeFor(p string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(p))]; ok {
		return ct
	}
	return contentTypePlain
}

// Response is a fully resolved reply to one request.
type Response struct {
	Status      Status
	ContentType string
	Body        []byte
	KeepAlive   bool
}

// NotFound returns the 404 response.
func NotFound(keepAlive bool) *Response {
	return &Response{
		Status:      StatusNotFound,
		ContentType: contentTypeHTML,
		Body:        []byte(NotFoundBody),
		KeepAlive:   keepAlive,
	}
}

// NotImplemented returns the 501 response.
func NotImplemented(keepAlive bool) *Response {
	return &Response{
		Status:      StatusNotImplemented,
		ContentType: contentTypeHTML,
		Body:        []byte(NotImplementedBody),
		KeepAlive:   keepAlive,
	}
}

// Bytes renders the status line, the four headers, the blank line and
// the body into a single buffer.
func (r *Response) Bytes() []byte {
	var buf bytes.Buffer
	r.render(&buf)
	return buf.Bytes()
}

func (r *Response) render(buf *bytes.Buffer) {
	buf.Grow(128 + len(r.Body))

	buf.WriteString("HTTP/1.1 ")
	buf.WriteString(strconv.Itoa(int(r.Status)))
	buf.WriteByte(' ')
	buf.WriteString(r.Status.Text())
	buf.WriteString("\r\nContent-Type: ")
	buf.WriteString(r.ContentType)
	buf.WriteString("\r\nContent-Length: ")
	buf.WriteString(strconv.Itoa(len(r.Body)))
	buf.WriteString("\r\nConnection: ")
	buf.WriteString(r.connection())
	buf.WriteString("\r\n\r\n")
	buf.Write(r.Body)
}

// WriteTo sends the whole response with one Write call. A short write is
// reported as io.ErrShortWrite.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	buf := pool.Buffers.Get()
	defer pool.Buffers.Put(buf)

	r.render(buf)
	b := buf.Bytes()
	n, err := w.Write(b)
	if err == nil && n != len(b) {
		err = io.ErrShortWrite
	}
	return int64(n), err
}

func (r *Response) connection() string {
	if r.KeepAlive {
		return connKeepAlive
	}
	return connClose
}
