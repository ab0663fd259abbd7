// Package http1 frames a single HTTP/1.1 GET transaction on a kept-alive
// connection. Only the subset of the protocol a plain text client needs is
// understood: responses must be delimited by Content-Length, and chunked or
// encoded bodies are rejected before any body byte is read.
package http1

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/always-cache/textfetch/fetcherr"
	"github.com/always-cache/textfetch/pkg/locator"
)

// WriteRequest writes the GET request for u in a single write.
func WriteRequest(w io.Writer, u locator.URL, userAgent string) error {
	var b strings.Builder
	b.WriteString("GET ")
	b.WriteString(u.Path)
	b.WriteString(" HTTP/1.1\r\n")
	b.WriteString("Host: ")
	b.WriteString(u.Host)
	b.WriteString("\r\n")
	b.WriteString("Connection: Keep-Alive\r\n")
	b.WriteString("User-Agent: ")
	b.WriteString(userAgent)
	b.WriteString("\r\n\r\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return &fetcherr.ConnectionError{Origin: u.Origin(), Op: "write request", Err: err}
	}
	return nil
}

// Send performs one transaction: the request for u is written to w and the
// response is read from r. r must be the connection's persistent reader.
func Send(w io.Writer, r *bufio.Reader, u locator.URL, userAgent string) (*Response, error) {
	if err := WriteRequest(w, u, userAgent); err != nil {
		return nil, err
	}
	res, err := ReadResponse(r)
	if err != nil {
		var cerr *fetcherr.ConnectionError
		if errors.As(err, &cerr) && cerr.Origin == "" {
			cerr.Origin = u.Origin()
		}
		return nil, err
	}
	return res, nil
}
