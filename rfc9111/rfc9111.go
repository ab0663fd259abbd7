package rfc9111

import "time"

// Storable interprets the Cache-Control header values of an origin response and
// reports whether the response may be stored, along with its max-age if one was given.
//
// The rules are deliberately narrower than the standard:
//
// - no Cache-Control header at all means the response may be stored without expiry
// - "no-store" anywhere means it must not be stored
// - "max-age=N" sets the freshness lifetime (the last occurrence wins)
// - a malformed max-age or any other directive means it must not be stored
func Storable(headers []string) (cacheable bool, maxAge time.Duration, hasMaxAge bool) {
	if len(headers) == 0 {
		return true, 0, false
	}
	cc := ParseCacheControl(headers)
	if cc.NoStore() {
		return false, 0, false
	}
	for _, name := range cc.Directives() {
		if name != "max-age" {
			return false, 0, false
		}
	}
	age, ok, err := cc.MaxAge()
	if err != nil {
		return false, 0, false
	}
	if !ok {
		return true, 0, false
	}
	return true, age, true
}
