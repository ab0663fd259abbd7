package rfc9111

import "time"

// GetExpiration returns the time a response received at `now` stops being fresh.
// The zero time means the response never expires.
//
// §  4.2.1.  Calculating Freshness Lifetime
// §
// §     A cache can calculate the freshness lifetime (denoted as
// §     freshness_lifetime) of a response by evaluating the following rules
// §     and using the first match:
// §
// §     [...]
// §
// §     *  If the max-age response directive (Section 5.2.2.1) is present,
// §        use its value, or
// §
// §     [...]
// §
// §     *  Otherwise, no explicit expiration time is present in the response.
//
// WARNING there is no heuristic freshness here: a storable response without
// max-age is kept until it is replaced.
func GetExpiration(now time.Time, maxAge time.Duration, hasMaxAge bool) time.Time {
	if !hasMaxAge {
		return time.Time{}
	}
	return now.Add(maxAge)
}

// IsFresh reports whether an entry expiring at `expires` may still be used at `now`.
// An entry is fresh up to and including its expiration instant.
func IsFresh(now, expires time.Time) bool {
	return expires.IsZero() || !now.After(expires)
}

// TimeToLive returns the whole seconds left before `expires`, or -1 if the entry never expires.
func TimeToLive(now, expires time.Time) int {
	if expires.IsZero() {
		return -1
	}
	if ttl := expires.Sub(now); ttl > 0 {
		return int(ttl / time.Second)
	}
	return 0
}
