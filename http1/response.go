package http1

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/always-cache/textfetch/fetcherr"
	"github.com/always-cache/textfetch/pkg/locator"
)

// Response headers that select a body framing this client does not decode.
var unsupportedHeaders = []string{"transfer-encoding", "content-encoding"}

type Response struct {
	Proto      string
	StatusCode int
	Reason     string
	// Header keys are lower-cased. When a header repeats, the last value wins.
	Header map[string]string
	Body   []byte
	// Framed is false when the body length was not given, so the end of the
	// response is only known when the origin closes the connection.
	Framed bool
}

// Get returns the value of the named header, matched case-insensitively.
func (r *Response) Get(name string) (string, bool) {
	v, ok := r.Header[strings.ToLower(name)]
	return v, ok
}

// IsRedirect reports whether the status code is in the 3xx class.
func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

// Location resolves the Location header against the origin of u, the URL the
// response was fetched from. A network URL may only redirect to another
// network URL.
func (r *Response) Location(u locator.URL) (locator.URL, error) {
	loc, ok := r.Get("location")
	if !ok {
		return locator.URL{}, &fetcherr.ProtocolError{Reason: "redirect without location"}
	}
	target, err := u.ResolveLocation(loc)
	if err != nil {
		return locator.URL{}, err
	}
	if u.IsNetwork() && !target.IsNetwork() {
		return locator.URL{}, &fetcherr.ProtocolError{Reason: "redirect to non-network url " + strconv.Quote(loc)}
	}
	return target, nil
}

// ReadResponse reads one response from r. Exactly the response bytes are
// consumed, so the next response on the same connection can be read from r.
func ReadResponse(r *bufio.Reader) (*Response, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}
	res, err := parseStatusLine(line)
	if err != nil {
		return nil, err
	}

	res.Header = make(map[string]string)
	for {
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, &fetcherr.ProtocolError{Reason: "malformed header line " + strconv.Quote(line)}
		}
		res.Header[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}

	for _, name := range unsupportedHeaders {
		if v, ok := res.Header[name]; ok {
			return nil, &fetcherr.UnsupportedFeatureError{Header: name, Value: v}
		}
	}

	length, hasLength, err := contentLength(res)
	if err != nil {
		return nil, err
	}
	if res.IsRedirect() {
		if _, ok := res.Header["location"]; !ok {
			return nil, &fetcherr.ProtocolError{Reason: "redirect without location"}
		}
		// a redirect body is only consumed when it is framed
		if !hasLength {
			return res, nil
		}
	} else if !hasLength {
		return nil, &fetcherr.ProtocolError{Reason: "missing content-length"}
	}

	res.Framed = true

	// the buffer grows with the bytes that arrive, not with the claimed length
	var body bytes.Buffer
	if _, err := io.CopyN(&body, r, int64(length)); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, &fetcherr.ConnectionError{Op: "read body", Err: err}
	}
	res.Body = body.Bytes()
	return res, nil
}

// readLine reads up to and including the next LF and returns the line
// without its CRLF terminator.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line == "" {
			err = io.ErrUnexpectedEOF
		}
		return "", &fetcherr.ConnectionError{Op: "read response", Err: err}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// parseStatusLine splits "HTTP/1.1 200 OK" into version, code and reason.
// The reason phrase may itself contain spaces.
func parseStatusLine(line string) (*Response, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return nil, &fetcherr.ParseError{Input: line, Reason: "malformed status line"}
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil || code < 100 || code > 999 {
		return nil, &fetcherr.ParseError{Input: line, Reason: "invalid status code", Err: err}
	}
	return &Response{
		Proto:      parts[0],
		StatusCode: code,
		Reason:     parts[2],
	}, nil
}

func contentLength(res *Response) (int, bool, error) {
	v, ok := res.Header["content-length"]
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false, &fetcherr.ProtocolError{Reason: "invalid content-length " + strconv.Quote(v), Err: err}
	}
	return n, true, nil
}
