package locator

import (
	"strconv"
	"strings"

	"github.com/always-cache/textfetch/fetcherr"
)

const (
	viewSourcePrefix = "view-source:"
	schemeSeparator  = "://"
)

// Scheme selects how a URL is fetched.
type Scheme int

const (
	HTTP Scheme = iota + 1
	HTTPS
	File
	Data
)

func (s Scheme) String() string {
	switch s {
	case HTTP:
		return "http"
	case HTTPS:
		return "https"
	case File:
		return "file"
	case Data:
		return "data"
	}
	return "unknown"
}

// DefaultPort returns the port used when a network URL does not name one.
func (s Scheme) DefaultPort() int {
	switch s {
	case HTTP:
		return 80
	case HTTPS:
		return 443
	}
	return 0
}

// IsNetwork reports whether resources of this scheme are fetched from an origin server.
func (s Scheme) IsNetwork() bool {
	return s == HTTP || s == HTTPS
}

func schemeFromString(s string) (Scheme, bool) {
	switch s {
	case "http":
		return HTTP, true
	case "https":
		return HTTPS, true
	case "file":
		return File, true
	case "data":
		return Data, true
	}
	return 0, false
}

// URL is an absolute resource locator. It is never mutated after Parse,
// following a redirect produces a new URL.
//
// Host and Port are set only for network schemes, in which case Path always
// starts with a slash. For file URLs Path is the local path, for data URLs it
// is everything after "data:".
type URL struct {
	Scheme     Scheme
	Host       string
	Port       int
	Path       string
	ViewSource bool
}

// Parse parses raw into a URL.
func Parse(raw string) (URL, error) {
	var u URL
	rest := raw
	if strings.HasPrefix(rest, viewSourcePrefix) {
		rest = strings.TrimPrefix(rest, viewSourcePrefix)
		u.ViewSource = true
	}

	var schemeStr string
	var found bool
	if strings.HasPrefix(rest, "data:") {
		schemeStr, rest, found = strings.Cut(rest, ":")
	} else {
		schemeStr, rest, found = strings.Cut(rest, schemeSeparator)
	}
	if !found {
		return URL{}, &fetcherr.ParseError{Input: raw, Reason: "missing scheme separator"}
	}
	scheme, ok := schemeFromString(schemeStr)
	if !ok {
		return URL{}, &fetcherr.ParseError{Input: raw, Reason: "unsupported scheme " + strconv.Quote(schemeStr)}
	}
	u.Scheme = scheme

	if !scheme.IsNetwork() {
		u.Path = rest
		return u, nil
	}

	hostport, path, hasPath := strings.Cut(rest, "/")
	u.Path = "/" + path
	if !hasPath {
		u.Path = "/"
	}
	u.Port = scheme.DefaultPort()
	host, portStr, hasPort := strings.Cut(hostport, ":")
	if hasPort {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return URL{}, &fetcherr.ParseError{Input: raw, Reason: "invalid port", Err: err}
		}
		if port < 1 || port > 65535 {
			return URL{}, &fetcherr.ParseError{Input: raw, Reason: "port out of range"}
		}
		u.Port = port
	}
	if host == "" {
		return URL{}, &fetcherr.ParseError{Input: raw, Reason: "missing host"}
	}
	u.Host = host
	return u, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(raw string) URL {
	u, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// IsNetwork reports whether the URL is fetched over the network.
func (u URL) IsNetwork() bool {
	return u.Scheme.IsNetwork()
}

// Origin returns scheme://host:port, the partition key for connections and cache entries.
// It is empty for file and data URLs.
func (u URL) Origin() string {
	if !u.IsNetwork() {
		return ""
	}
	return u.Scheme.String() + schemeSeparator + u.Address()
}

// Address returns host:port for dialing.
func (u URL) Address() string {
	return u.Host + ":" + strconv.Itoa(u.Port)
}

// String renders the URL in a form Parse accepts.
func (u URL) String() string {
	var b strings.Builder
	if u.ViewSource {
		b.WriteString(viewSourcePrefix)
	}
	switch {
	case u.IsNetwork():
		b.WriteString(u.Origin())
		b.WriteString(u.Path)
	case u.Scheme == Data:
		b.WriteString("data:")
		b.WriteString(u.Path)
	default:
		b.WriteString(u.Scheme.String())
		b.WriteString(schemeSeparator)
		b.WriteString(u.Path)
	}
	return b.String()
}

// ResolveLocation turns a Location header value into an absolute URL.
// Values starting with a slash are relative to u's origin, anything else must be absolute.
// The view-source flag carries over to the target.
func (u URL) ResolveLocation(location string) (URL, error) {
	if strings.HasPrefix(location, "/") {
		location = u.Origin() + location
	}
	target, err := Parse(location)
	if err != nil {
		return URL{}, err
	}
	target.ViewSource = target.ViewSource || u.ViewSource
	return target, nil
}
