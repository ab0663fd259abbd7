package textfetch

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/always-cache/textfetch/cache"
	"github.com/always-cache/textfetch/fetcherr"
	"github.com/always-cache/textfetch/http1"
	cachekey "github.com/always-cache/textfetch/pkg/cache-key"
	"github.com/always-cache/textfetch/pkg/local"
	"github.com/always-cache/textfetch/pkg/locator"
	"github.com/always-cache/textfetch/pkg/render"
	"github.com/always-cache/textfetch/rfc9111"
	"github.com/always-cache/textfetch/rfc9211"
)

// Result is the outcome of a fetch.
type Result struct {
	// URL the body was read from, after following redirects.
	URL  locator.URL
	Body []byte
	// Status of the origin response. Zero when the body did not come from
	// the network, i.e. for cache hits and local URLs.
	StatusCode int
	// How the last hop was served. Local URLs bypass the cache.
	CacheStatus rfc9211.CacheStatus
	// Number of redirects followed, cached ones included.
	Redirects int
}

// Fetch parses raw and fetches it.
func (s *Session) Fetch(ctx context.Context, raw string) (Result, error) {
	u, err := locator.Parse(raw)
	if err != nil {
		return Result{}, err
	}
	return s.FetchURL(ctx, u)
}

// FetchURL returns the body of u.
//
// File and data URLs are read directly. For network URLs a fresh cached
// permanent redirect is followed first, then a fresh cached response is
// returned if there is one. Otherwise the resource is requested from its
// origin on the pooled connection. Redirects are followed up to the
// configured limit; 301 targets and 200 or 404 bodies are cached when the
// response's Cache-Control allows it. Other responses are returned as is.
func (s *Session) FetchURL(ctx context.Context, u locator.URL) (Result, error) {
	start := time.Now()
	res, err := s.fetch(ctx, u)
	if err != nil {
		s.log.Debug().Err(err).Str("url", u.String()).Msg("Fetch failed")
		return Result{}, err
	}
	s.metrics.fetched(res)
	s.logFetch(u, res, time.Since(start))
	return res, nil
}

// Load fetches raw and renders the text of its body to w.
func (s *Session) Load(ctx context.Context, raw string, w io.Writer) error {
	res, err := s.Fetch(ctx, raw)
	if err != nil {
		return err
	}
	return render.Render(w, string(res.Body), res.URL.ViewSource)
}

func (s *Session) fetch(ctx context.Context, u locator.URL) (Result, error) {
	redirects := 0
	follow := func(target locator.URL) error {
		redirects++
		if redirects > s.maxRedirects {
			return &fetcherr.RedirectLoopError{URL: target.String(), Hops: s.maxRedirects}
		}
		s.log.Trace().Str("from", u.String()).Str("to", target.String()).Msg("Following redirect")
		u = target
		return nil
	}

	for {
		cs := rfc9211.CacheStatus{Cache: CacheName, TimeToLive: -1}
		if !u.IsNetwork() {
			body, err := readLocal(u)
			if err != nil {
				return Result{}, err
			}
			cs.Forward(rfc9211.FwdReasonBypass)
			return Result{URL: u, Body: body, CacheStatus: cs, Redirects: redirects}, nil
		}

		key := cachekey.Get(u)
		now := s.now()

		if target, ok := s.cachedRedirect(key, u, now); ok {
			if err := follow(target); err != nil {
				return Result{}, err
			}
			continue
		}

		lookup, readErr := s.lookup(cache.Response, key, now)
		switch {
		case lookup.Fresh:
			cs.Hit()
			cs.TimeToLive = rfc9111.TimeToLive(now, lookup.Entry.Expires)
			return Result{URL: u, Body: lookup.Entry.Payload, CacheStatus: cs, Redirects: redirects}, nil
		case readErr != nil:
			// the cache could not answer, which is not the same as not having the url
			cs.Forward(rfc9211.FwdReasonMiss)
			cs.Detail = cacheReadDetail(readErr)
		case lookup.Found:
			cs.Forward(rfc9211.FwdReasonStale)
		default:
			cs.Forward(rfc9211.FwdReasonUriMiss)
		}

		res, err := s.transact(ctx, u)
		if err != nil {
			return Result{}, err
		}
		cs.FwdStatus = res.StatusCode

		if res.IsRedirect() {
			target, err := res.Location(u)
			if err != nil {
				return Result{}, err
			}
			// only permanent redirects are remembered
			if res.StatusCode == 301 {
				stored := target
				stored.ViewSource = false
				s.storeIfAllowed(cache.Redirect, key, u, res, []byte(stored.String()))
			}
			if err := follow(target); err != nil {
				return Result{}, err
			}
			continue
		}

		if res.StatusCode == 200 || res.StatusCode == 404 {
			cs.Stored = s.storeIfAllowed(cache.Response, key, u, res, res.Body)
		}
		return Result{
			URL:         u,
			Body:        res.Body,
			StatusCode:  res.StatusCode,
			CacheStatus: cs,
			Redirects:   redirects,
		}, nil
	}
}

func readLocal(u locator.URL) ([]byte, error) {
	switch u.Scheme {
	case locator.File:
		return local.ReadFile(u.Path)
	case locator.Data:
		text, err := local.DecodeData(u.Path)
		return []byte(text), err
	}
	return nil, &fetcherr.ParseError{Input: u.String(), Reason: "not a local url"}
}

// transact performs one request on the origin's pooled connection.
// After a failed transaction the position in the stream is unknown, so the
// connection is discarded and the next request to the origin dials anew.
func (s *Session) transact(ctx context.Context, u locator.URL) (*http1.Response, error) {
	conn, err := s.pool.Acquire(ctx, u)
	if err != nil {
		return nil, err
	}
	res, err := http1.Send(conn, conn.Reader, u, s.userAgent)
	if err != nil {
		s.log.Debug().Err(err).Str("origin", conn.Origin()).Msg("Discarding connection after failed transaction")
		s.metrics.evictions.WithLabelValues(u.Scheme.String()).Inc()
		conn.Discard()
		return nil, err
	}
	if v, _ := res.Get("connection"); strings.EqualFold(v, "close") {
		s.log.Trace().Str("origin", conn.Origin()).Msg("Origin closed the connection")
		conn.Discard()
	} else if !res.Framed {
		// an unframed body runs until the origin closes, so the stream can't be reused
		s.log.Trace().Str("origin", conn.Origin()).Msg("Discarding connection after unframed response")
		s.metrics.evictions.WithLabelValues(u.Scheme.String()).Inc()
		conn.Discard()
	} else {
		conn.Release()
	}
	return res, nil
}

// lookup reads a cache entry. Read failures are logged and count as misses;
// the error is returned only so it can be reported.
func (s *Session) lookup(kind cache.Kind, key string, now time.Time) (cache.Lookup, error) {
	l, err := s.store.Lookup(kind, key, now)
	if err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Str("key", key).Msg("Could not read from cache")
		return cache.Lookup{}, err
	}
	s.log.Trace().
		Str("kind", string(kind)).
		Str("key", key).
		Bool("found", l.Found).
		Bool("fresh", l.Fresh).
		Msg("Cache lookup")
	return l, nil
}

func cacheReadDetail(err error) string {
	if errors.Is(err, cache.ErrCorruptEntry) {
		return "corrupt-entry"
	}
	return "read-error"
}

// cachedRedirect returns the target of a fresh permanent redirect stored for key.
func (s *Session) cachedRedirect(key string, u locator.URL, now time.Time) (locator.URL, bool) {
	l, _ := s.lookup(cache.Redirect, key, now)
	if !l.Fresh {
		return locator.URL{}, false
	}
	target, err := locator.Parse(string(l.Entry.Payload))
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Ignoring unparseable redirect target")
		return locator.URL{}, false
	}
	target.ViewSource = u.ViewSource
	return target, true
}

// storeIfAllowed stores payload under key when the Cache-Control of res,
// after the origin's rules are applied, allows it.
func (s *Session) storeIfAllowed(kind cache.Kind, key string, u locator.URL, res *http1.Response, payload []byte) bool {
	if rules, ok := s.rules[u.Origin()]; ok {
		rules.Apply(u, res)
	}
	var headers []string
	if v, ok := res.Get("cache-control"); ok {
		headers = []string{v}
	}
	cacheable, maxAge, hasMaxAge := rfc9111.Storable(headers)
	if !cacheable {
		s.log.Trace().Str("key", key).Strs("cache-control", headers).Msg("Response not storable")
		return false
	}
	expires := rfc9111.GetExpiration(s.now(), maxAge, hasMaxAge)
	if err := s.store.Put(kind, cache.CacheEntry{Key: key, Expires: expires, Payload: payload}); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Could not write to cache")
		return false
	}
	s.log.Trace().Str("kind", string(kind)).Str("key", key).Time("expires", expires).Msg("Wrote to cache")
	return true
}

func (s *Session) logFetch(requested locator.URL, r Result, took time.Duration) {
	isHit := 0
	if r.CacheStatus.Status == rfc9211.StatusHit {
		isHit = 1
	}
	s.log.Debug().
		Str("url", requested.String()).
		Str("final", r.URL.String()).
		Int("code", r.StatusCode).
		Int("redirects", r.Redirects).
		Str("status", string(r.CacheStatus.Status)).
		Str("fwd", string(r.CacheStatus.FwdReason)).
		Str("detail", r.CacheStatus.Detail).
		Bool("stored", r.CacheStatus.Stored).
		Int("ttl", r.CacheStatus.TimeToLive).
		Int("hit", isHit).
		Int("bytes", len(r.Body)).
		Dur("took", took).
		Msg("Fetched")
}
