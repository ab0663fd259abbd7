package rfc9111

import (
	"strings"
	"time"
)

// CacheControl implements parsing of the "Cache-Control" header (/field).
//
// §  5.2. Cache-Control
// §
// §  The "Cache-Control" header field is used to list directives for caches along
// §  the request/response chain. Cache directives are unidirectional, in that the
// §  presence of a directive in a request does not imply that the same directive is
// §  present or copied in the response.
// §
// §  [...] Cache directives are identified by a token, to
// §  be compared case-insensitively, and have an optional argument that can use both
// §  token and quoted-string syntax. For the directives defined below that define
// §  arguments, recipients ought to accept both forms, even if a specific form is
// §  required for generation.
// §
// §    Cache-Control   = #cache-directive
// §
// §    cache-directive = token [ "=" ( token / quoted-string ) ]
type CacheControl struct {
	directives map[string]string
}

// Get returns the value (/argument) of the specified directive,
// along with a boolean indicating whether this directive is present
func (c CacheControl) Get(directive string) (string, bool) {
	val, ok := c.directives[directive]
	return val, ok
}

// HasDirective returns whether the specified directive is present
func (c CacheControl) HasDirective(directive string) bool {
	_, ok := c.Get(directive)
	return ok
}

// Directives returns the names of all directives present, in no particular order.
func (c CacheControl) Directives() []string {
	names := make([]string, 0, len(c.directives))
	for name := range c.directives {
		names = append(names, name)
	}
	return names
}

// ParseCacheControl takes Cache-Control headers as a slice of strings
// and returns an instance of `CacheControl`.
func ParseCacheControl(headers []string) CacheControl {
	m := make(map[string]string)
	// process all headers
	// note setting map values like this means last defined directive wins
	for _, header := range headers {
		// process directives "#" means comma-separated list
		for _, directive := range strings.Split(header, ",") {
			directive = strings.TrimSpace(directive)
			if directive == "" {
				continue
			}
			parts := strings.SplitN(directive, "=", 2)
			name := getCacheControlDirectiveName(parts[0])
			var arg string
			if len(parts) > 1 {
				arg = getCacheControlDirectiveArgument(parts[1])
			}
			m[name] = arg
		}
	}
	return CacheControl{m}
}

// getCacheControlDirectiveName returns a normalized name for the given directive.
func getCacheControlDirectiveName(token string) string {
	// §  [...] to be compared case-insensitively [...]
	return strings.ToLower(strings.TrimSpace(token))
}

// getCacheControlDirectiveArgument returns the directive argument in token form,
// i.e. it converts the argument from "quoted-string" to "token" form if needed.
func getCacheControlDirectiveArgument(arg string) string {
	// §  [...] argument that can use both token and quoted-string syntax. [...]
	return strings.Trim(strings.TrimSpace(arg), "\"")
}

// §  5.2.2. Response Directives
// §
// §  This section defines cache response directives. A cache MUST obey the Cache-
// §  Control directives defined in this section.

// MaxAge returns "max-age" as a duration, along with a boolean indicating
// whether the "max-age" directive was present.
// An error is returned if the argument is not valid delta-seconds.
//
// §  5.2.2.1. max-age
// §
// §  Argument syntax:
// §
// §      delta-seconds (see Section 1.2.2)
// §
// §  The max-age response directive indicates that the response is to be considered
// §  stale after its age is greater than the specified number of seconds.
func (c CacheControl) MaxAge() (time.Duration, bool, error) {
	return c.getDeltaSeconds("max-age")
}

// NoStore returns whether the "no-store" directive is present.
//
// §  5.2.2.5.  no-store
// §
// §     The no-store response directive indicates that a cache MUST NOT store
// §     any part of either the immediate request or the response and MUST NOT
// §     use the response to satisfy any other request.
func (c CacheControl) NoStore() bool {
	return c.HasDirective("no-store")
}

// getDeltaSeconds returns the "delta-seconds" as `time.Duration`,
// as well as a boolean indicating whether the directive was set.
//
// Examples:
// directive    -> 0,  true, error
// directive=0  -> 0,  true, nil
// directive=60 -> 60, true, nil
func (c CacheControl) getDeltaSeconds(directive string) (time.Duration, bool, error) {
	secondsStr, ok := c.Get(directive)
	if !ok {
		return 0, false, nil
	}
	d, err := deltaSeconds(secondsStr)
	return d, true, err
}

// §  5.2.3.  Extension Directives
// §
// §     The Cache-Control header field can be extended through the use of one
// §     or more extension cache directives.  A cache MUST ignore unrecognized
// §     cache directives.
//
// NOTE this cache does the opposite: a directive it does not understand
// disables storing altogether, see Storable.
