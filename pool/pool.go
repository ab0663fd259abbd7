// Package pool keeps one live connection per origin.
//
// A connection is created on first use and handed out again, without any
// liveness check, to every later request for the same origin. It only leaves
// the pool when a caller discards it, e.g. after an I/O error.
package pool

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/always-cache/textfetch/fetcherr"
	"github.com/always-cache/textfetch/pkg/locator"
)

// Dialer opens stream connections. *net.Dialer implements it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type Config struct {
	// Dialer used for new connections. A zero net.Dialer is used if nil.
	Dialer Dialer
	// TLS settings for https origins. ServerName is always set to the origin host.
	// The system roots are used if nil.
	TLSConfig *tls.Config
	// Limit for connecting and the TLS handshake. Zero means no limit.
	DialTimeout time.Duration
	// Logger to use. Logging is disabled if nil.
	Logger *zerolog.Logger
	// Optional function called after every successful dial.
	OnDial func(u locator.URL)
}

type Pool struct {
	dialer      Dialer
	tlsConfig   *tls.Config
	dialTimeout time.Duration
	log         zerolog.Logger
	onDial      func(u locator.URL)

	mu    sync.Mutex
	conns map[string]*Conn
	group singleflight.Group
	dials int64
}

func New(config Config) *Pool {
	p := &Pool{
		dialer:      config.Dialer,
		tlsConfig:   config.TLSConfig,
		dialTimeout: config.DialTimeout,
		log:         zerolog.Nop(),
		onDial:      config.OnDial,
		conns:       make(map[string]*Conn),
	}
	if p.dialer == nil {
		p.dialer = &net.Dialer{}
	}
	if config.Logger != nil {
		p.log = *config.Logger
	}
	return p
}

// Conn is a pooled connection. Its Reader must be used for all reads so that
// bytes buffered after one response are available to the next.
// A Conn returned by Acquire is held exclusively until Release or Discard.
type Conn struct {
	net.Conn
	Reader *bufio.Reader

	origin string
	pool   *Pool
	mu     sync.Mutex
	// set once the conn left the pool, guarded by mu
	discarded bool
}

// Origin returns the origin this connection belongs to.
func (c *Conn) Origin() string {
	return c.origin
}

// Release hands the connection back for reuse.
func (c *Conn) Release() {
	c.mu.Unlock()
}

// Discard removes the connection from the pool, closes it and releases it.
// The next Acquire for the origin dials a fresh connection.
func (c *Conn) Discard() error {
	c.pool.remove(c)
	c.discarded = true
	err := c.Conn.Close()
	c.mu.Unlock()
	return err
}

// Acquire returns the pooled connection for the origin of u, dialing one if
// there is none yet. Concurrent first dials to an origin share one attempt.
func (p *Pool) Acquire(ctx context.Context, u locator.URL) (*Conn, error) {
	origin := u.Origin()
	for {
		c, err := p.get(ctx, u, origin)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if !c.discarded {
			return c, nil
		}
		// discarded while we waited for it
		c.mu.Unlock()
	}
}

func (p *Pool) get(ctx context.Context, u locator.URL, origin string) (*Conn, error) {
	p.mu.Lock()
	c, ok := p.conns[origin]
	p.mu.Unlock()
	if ok {
		p.log.Trace().Str("origin", origin).Msg("Reusing connection")
		return c, nil
	}

	// The shared dial must not fail because one of its waiters gave up, so it
	// only observes the dial timeout. Each caller stops waiting on its own ctx.
	ch := p.group.DoChan(origin, func() (interface{}, error) {
		p.mu.Lock()
		c, ok := p.conns[origin]
		p.mu.Unlock()
		if ok {
			return c, nil
		}
		conn, err := p.dial(context.Background(), u)
		if err != nil {
			return nil, err
		}
		c = &Conn{
			Conn:   conn,
			Reader: bufio.NewReader(conn),
			origin: origin,
			pool:   p,
		}
		p.mu.Lock()
		p.conns[origin] = c
		p.mu.Unlock()
		return c, nil
	})
	select {
	case <-ctx.Done():
		return nil, &fetcherr.ConnectionError{Origin: origin, Op: "dial", Err: ctx.Err()}
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Conn), nil
	}
}

func (p *Pool) dial(ctx context.Context, u locator.URL) (net.Conn, error) {
	origin := u.Origin()
	if p.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.dialTimeout)
		defer cancel()
	}
	start := time.Now()
	conn, err := p.dialer.DialContext(ctx, "tcp", u.Address())
	if err != nil {
		return nil, &fetcherr.ConnectionError{Origin: origin, Op: "dial", Err: err}
	}
	if u.Scheme == locator.HTTPS {
		var config *tls.Config
		if p.tlsConfig != nil {
			config = p.tlsConfig.Clone()
		} else {
			config = &tls.Config{}
		}
		config.ServerName = u.Host
		tlsConn := tls.Client(conn, config)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, &fetcherr.ConnectionError{Origin: origin, Op: "tls handshake", Err: err}
		}
		conn = tlsConn
	}
	atomic.AddInt64(&p.dials, 1)
	if p.onDial != nil {
		p.onDial(u)
	}
	p.log.Debug().
		Str("origin", origin).
		Str("remote", conn.RemoteAddr().String()).
		Dur("took", time.Since(start)).
		Msg("Opened connection")
	return conn, nil
}

func (p *Pool) remove(c *Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conns[c.origin] == c {
		delete(p.conns, c.origin)
		p.log.Debug().Str("origin", c.origin).Msg("Discarded connection")
	}
}

// Evict closes and forgets the connection of an origin, if there is one.
// It waits for a current holder to release the connection first.
func (p *Pool) Evict(origin string) error {
	p.mu.Lock()
	c, ok := p.conns[origin]
	p.mu.Unlock()
	if !ok {
		return nil
	}
	c.mu.Lock()
	if c.discarded {
		c.mu.Unlock()
		return nil
	}
	return c.Discard()
}

// Dials returns the number of connections opened so far.
func (p *Pool) Dials() int {
	return int(atomic.LoadInt64(&p.dials))
}

// Len returns the number of pooled connections.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Close closes all pooled connections.
func (p *Pool) Close() error {
	p.mu.Lock()
	origins := make([]string, 0, len(p.conns))
	for origin := range p.conns {
		origins = append(origins, origin)
	}
	p.mu.Unlock()
	var firstErr error
	for _, origin := range origins {
		if err := p.Evict(origin); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
