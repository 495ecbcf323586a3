package httpd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/textproto"
)

// ErrHeaderTooLarge is returned when a request head exceeds the configured
// byte budget before its terminating blank line.
var ErrHeaderTooLarge = errors.New("request header too large")

// ReadRequest reads one request line and its header block from tp.
// Empty lines before the request line are skipped. A stream that ends
// before any request byte arrives returns io.EOF unchanged. A header
// block that is syntactically broken yields a Malformed request rather
// than an error; only I/O failures are returned as errors.
func ReadRequest(tp *textproto.Reader) (*Request, error) {
	var line string
	for {
		l, err := tp.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read request line: %w", err)
		}
		if l != "" {
			line = l
			break
		}
	}

	header, err := tp.ReadMIMEHeader()
	if err != nil {
		var perr textproto.ProtocolError
		if errors.As(err, &perr) {
			return &Request{Line: line, Malformed: true}, nil
		}
		return nil, fmt.Errorf("read request header: %w", err)
	}
	return &Request{Line: line, Header: header}, nil
}

// headReader feeds ReadRequest from a connection while capping how many
// bytes a single request head may pull off the wire.
type headReader struct {
	limit *io.LimitedReader
	tp    *textproto.Reader
	max   int64
}

func newHeadReader(r io.Reader, maxHeaderBytes int) *headReader {
	lr := &io.LimitedReader{R: r, N: int64(maxHeaderBytes)}
	return &headReader{
		limit: lr,
		tp:    textproto.NewReader(bufio.NewReader(lr)),
		max:   int64(maxHeaderBytes),
	}
}

// next reads the next request head. The byte budget is renewed per
// request; bytes already buffered from an earlier read are not counted.
func (h *headReader) next() (*Request, error) {
	h.limit.N = h.max
	req, err := ReadRequest(h.tp)
	if err != nil && h.limit.N <= 0 {
		return nil, ErrHeaderTooLarge
	}
	return req, err
}
