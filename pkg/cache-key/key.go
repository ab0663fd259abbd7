package cachekey

import (
	"fmt"
	"strings"

	"github.com/always-cache/textfetch/pkg/locator"
)

// Get returns the cache key for a network URL: its origin followed by its path.
// The same key is used in the response and the redirect mappings.
func Get(u locator.URL) string {
	return u.Origin() + u.Path
}

// OriginPrefix returns the prefix shared by all keys of the given origin.
// E.g. for listing everything stored for one server.
func OriginPrefix(origin string) string {
	return origin + "/"
}

// URL recovers the URL that resulted in the given key.
func URL(key string) (locator.URL, error) {
	u, err := locator.Parse(key)
	if err != nil {
		return u, err
	}
	if !u.IsNetwork() {
		return u, fmt.Errorf("Key is not a network URL: %s", key)
	}
	if !strings.HasPrefix(key, u.Origin()) {
		return u, fmt.Errorf("Malformed key: %s", key)
	}
	return u, nil
}
