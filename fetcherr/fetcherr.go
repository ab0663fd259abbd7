// Package fetcherr holds the error types surfaced by a fetch.
// Every error wraps its cause, so callers match them with errors.As
// and still reach the underlying net or os error with errors.Is.
package fetcherr

import "fmt"

// ParseError reports a malformed URL or status line.
type ParseError struct {
	Input  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %q: %s: %v", e.Input, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %q: %s", e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UnsupportedFeatureError reports a response framed in a way this client
// refuses to decode, e.g. chunked or compressed bodies.
type UnsupportedFeatureError struct {
	Header string
	Value  string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("unsupported response feature %s: %s", e.Header, e.Value)
}

// ProtocolError reports a response that violates the framing rules,
// such as a missing Content-Length or a header line without a colon.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}
	return "protocol error: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ConnectionError reports a socket or TLS failure.
type ConnectionError struct {
	Origin string
	Op     string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Origin, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IOError reports a failure to read a local resource.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// RedirectLoopError is returned when a redirect chain exceeds the hop limit.
type RedirectLoopError struct {
	URL  string
	Hops int
}

func (e *RedirectLoopError) Error() string {
	return fmt.Sprintf("stopped after %d redirects at %s", e.Hops, e.URL)
}
