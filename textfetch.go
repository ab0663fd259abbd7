// Package textfetch fetches documents over HTTP/1.1 and prints their text.
//
// A Session owns everything that outlives a single fetch: one kept-alive
// connection per origin, the response cache and the permanent redirect cache.
// Sessions are safe for concurrent use.
package textfetch

import (
	"crypto/tls"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/always-cache/textfetch/cache"
	cachekey "github.com/always-cache/textfetch/pkg/cache-key"
	"github.com/always-cache/textfetch/pkg/locator"
	responsetransformer "github.com/always-cache/textfetch/pkg/response-transformer"
	"github.com/always-cache/textfetch/pool"
)

const (
	// Name used in the Cache-Status of every result.
	CacheName = "textfetch"
	// DefaultMaxRedirects bounds a redirect chain unless configured otherwise.
	DefaultMaxRedirects = 20
)

// Version is reported in the default User-Agent.
var Version = "DEV"

// DefaultUserAgent returns the User-Agent sent when none is configured.
func DefaultUserAgent() string {
	return "textfetch/" + Version
}

type Config struct {
	// Storage for cached responses and redirects.
	// An in-memory store is used if nil.
	Store *cache.Store
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
	// Sent with every request. DefaultUserAgent() is used if empty.
	UserAgent string
	// Longest redirect chain that is followed. DefaultMaxRedirects if zero.
	MaxRedirects int
	// Limit for connecting to an origin. Zero means no limit.
	DialTimeout time.Duration
	// Dialer for new connections. A zero net.Dialer is used if nil.
	Dialer pool.Dialer
	// TLS settings for https origins. The system roots are used if nil.
	TLSConfig *tls.Config
	// Cache-Control rules per origin, keyed by "scheme://host:port".
	Rules map[string]responsetransformer.Rules
	// Clock used for freshness decisions. time.Now if nil.
	Now func() time.Time
}

type Session struct {
	pool         *pool.Pool
	store        *cache.Store
	log          zerolog.Logger
	userAgent    string
	maxRedirects int
	rules        map[string]responsetransformer.Rules
	now          func() time.Time
	metrics      *metrics
}

// NewSession creates a session with an empty connection pool.
func NewSession(config Config) *Session {
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = log.Logger
	} else {
		logger = *config.Logger
	}
	logger = logger.With().Str("component", "session").Logger()

	s := &Session{
		store:        config.Store,
		log:          logger,
		userAgent:    config.UserAgent,
		maxRedirects: config.MaxRedirects,
		rules:        config.Rules,
		now:          config.Now,
		metrics:      defaultMetrics,
	}
	if s.store == nil {
		s.store = cache.NewMemoryStore()
	}
	if s.userAgent == "" {
		s.userAgent = DefaultUserAgent()
	}
	if s.maxRedirects <= 0 {
		s.maxRedirects = DefaultMaxRedirects
	}
	if s.now == nil {
		s.now = time.Now
	}

	poolLogger := logger.With().Str("component", "pool").Logger()
	s.pool = pool.New(pool.Config{
		Dialer:      config.Dialer,
		TLSConfig:   config.TLSConfig,
		DialTimeout: config.DialTimeout,
		Logger:      &poolLogger,
		OnDial: func(u locator.URL) {
			s.metrics.dials.WithLabelValues(u.Scheme.String()).Inc()
		},
	})
	return s
}

// Dials returns the number of connections the session has opened.
func (s *Session) Dials() int {
	return s.pool.Dials()
}

// CachedURLs lists the URLs with a stored response, fresh or not.
// With a non-empty origin only that origin's URLs are listed.
func (s *Session) CachedURLs(origin string) []locator.URL {
	prefix := ""
	if origin != "" {
		prefix = cachekey.OriginPrefix(origin)
	}
	var urls []locator.URL
	s.store.Keys(cache.Response, prefix, func(key string) {
		u, err := cachekey.URL(key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Skipping unrecognized cache key")
			return
		}
		urls = append(urls, u)
	})
	return urls
}

// Sweep removes cache entries that are no longer fresh.
func (s *Session) Sweep() (int, error) {
	removed, err := s.store.Sweep(s.now())
	s.log.Debug().Int("removed", removed).Msg("Swept cache")
	return removed, err
}

// Close closes all pooled connections and the cache store.
func (s *Session) Close() error {
	poolErr := s.pool.Close()
	if err := s.store.Close(); err != nil {
		return err
	}
	return poolErr
}
