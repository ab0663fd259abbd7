package rfc9211

import (
	"fmt"
	"strings"
)

// §  2.  The Cache-Status HTTP Response Header Field
// §
// §     The Cache-Status HTTP response header field indicates caches'
// §     handling of the request corresponding to the response it occurs
// §     within.
//
// This client has no downstream to send the field to, the value is
// recorded in logs and on the fetch result instead.

type Status string

const (
	StatusHit Status = "hit"
	StatusFwd Status = "fwd"
)

type FwdReason string

const (
	// The cache was configured to not handle this request.
	FwdReasonBypass FwdReason = "bypass"

	// The cache did not contain any responses that matched the
	// request URI.
	FwdReasonUriMiss FwdReason = "uri-miss"

	// The cache was able to select a response for the request, but
	// it was stale.
	FwdReasonStale FwdReason = "stale"

	// The cache did not contain any responses that could be used to
	// satisfy this request.
	FwdReasonMiss FwdReason = "miss"
)

// CacheStatus is a single Cache-Status list member.
type CacheStatus struct {
	Cache     string
	Status    Status
	FwdReason FwdReason
	// §  2.3.  The fwd-status Parameter
	FwdStatus int
	// §  2.4.  The ttl Parameter
	// Negative values are omitted from the field.
	TimeToLive int
	// §  2.5.  The stored Parameter
	Stored bool
	// §  2.7.  The detail Parameter
	Detail string
}

// §  2.1.  The hit Parameter
func (cs *CacheStatus) Hit() {
	cs.Status = StatusHit
	cs.FwdReason = ""
}

// §  2.2.  The fwd Parameter
func (cs *CacheStatus) Forward(reason FwdReason) {
	cs.Status = StatusFwd
	cs.FwdReason = reason
}

// §     Cache-Status: ExampleCache; hit; ttl=376
// §     Cache-Status: ExampleCache; fwd=stale; fwd-status=304
// §     Cache-Status: ForwardProxyCache; fwd=uri-miss; collapsed; stored
func (cs CacheStatus) String() string {
	parts := []string{cs.Cache}
	switch cs.Status {
	case StatusHit:
		parts = append(parts, string(StatusHit))
	case StatusFwd:
		parts = append(parts, fmt.Sprintf("fwd=%s", cs.FwdReason))
	}
	if cs.FwdStatus != 0 {
		parts = append(parts, fmt.Sprintf("fwd-status=%d", cs.FwdStatus))
	}
	if cs.TimeToLive >= 0 && cs.Status == StatusHit {
		parts = append(parts, fmt.Sprintf("ttl=%d", cs.TimeToLive))
	}
	if cs.Stored {
		parts = append(parts, "stored")
	}
	if cs.Detail != "" {
		parts = append(parts, fmt.Sprintf("detail=%s", cs.Detail))
	}
	return strings.Join(parts, "; ")
}
