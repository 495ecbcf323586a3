package httpd

import (
	"errors"
	"net/textproto"
	"strings"
)

// ErrNotImplemented marks a request line the server refuses to serve:
// a method other than GET, a malformed line, or a path that tries to
// leave the document root.
var ErrNotImplemented = errors.New("request not implemented")

const (
	methodGet       = "GET "
	protocolPrefix  = "HTTP/"
	traversalMarker = ".."
)

// Request is the parsed head of one request on a connection.
type Request struct {
	// Line is the request line without its CRLF terminator.
	Line string
	// Header holds the request headers keyed in canonical form.
	Header textproto.MIMEHeader
	// Malformed is set when the header block after a readable request
	// line could not be parsed. Such a request is answered 501 and the
	// connection closed.
	Malformed bool
}

// KeepAlive reports whether the client asked for the connection to stay
// open. Only an exact, case-insensitive "Keep-Alive" counts.
func (r *Request) KeepAlive() bool {
	if r == nil || r.Malformed || r.Header == nil {
		return false
	}
	return strings.EqualFold(r.Header.Get("Connection"), "Keep-Alive")
}

// ParseRequestLine returns the resource path named by a GET request line.
//
// The path is everything between "GET " and the trailing protocol token.
// Any line that is not a well-formed GET, or whose path contains "..",
// yields ErrNotImplemented and an empty path.
func ParseRequestLine(line string) (string, error) {
	if strings.ContainsAny(line, "\r\n") {
		return "", ErrNotImplemented
	}
	if !strings.HasPrefix(line, methodGet) {
		return "", ErrNotImplemented
	}

	rest := line[len(methodGet):]
	// The traversal check runs on the raw text, before any splitting.
	if strings.Contains(rest, traversalMarker) {
		return "", ErrNotImplemented
	}

	sp := strings.LastIndexByte(rest, ' ')
	if sp < 0 {
		return "", ErrNotImplemented
	}
	path, proto := rest[:sp], rest[sp+1:]
	if !strings.HasPrefix(proto, protocolPrefix) || len(proto) == len(protocolPrefix) {
		return "", ErrNotImplemented
	}
	if path != "" && path[0] != '/' {
		return "", ErrNotImplemented
	}
	return path, nil
}
