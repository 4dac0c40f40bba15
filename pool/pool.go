// Package pool shares multiplexed H2 Connections across calls to the
// same destination, coalesces compatible routes, and evicts idle
// connections in the background, keyed by destination address rather
// than a single fixed connection.
package pool

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/domsolutions/httpclient/internal/h2"
	"github.com/domsolutions/httpclient/internal/taskrunner"
)

// Address identifies a destination: host, port, and whether the
// connection must be negotiated over TLS.
type Address struct {
	Host string
	Port int
	TLS  bool
}

func (a Address) String() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// Route is the resolved path to an Address: the socket address a dial
// actually used. It records no certificate information.
type Route struct {
	Address Address
	Socket  net.Addr
}

// Dialer is the socket-factory/TLS collaborator: one-shot, may fail with
// an I/O error. TLS handshake/ALPN negotiation happen inside DialTLS,
// behind an interface so tests can
// substitute net.Pipe-backed dialers.
type Dialer interface {
	Dial(ctx context.Context, network, addr string) (net.Conn, error)
	DialTLS(ctx context.Context, network, addr string, cfg *tls.Config) (*tls.Conn, error)
}

type netDialer struct {
	d net.Dialer
}

// NewDefaultDialer returns a Dialer backed by net.Dialer/tls.Dialer with
// the given connect timeout.
func NewDefaultDialer(connectTimeout time.Duration) Dialer {
	return &netDialer{d: net.Dialer{Timeout: connectTimeout}}
}

func (nd *netDialer) Dial(ctx context.Context, network, addr string) (net.Conn, error) {
	return nd.d.DialContext(ctx, network, addr)
}

func (nd *netDialer) DialTLS(ctx context.Context, network, addr string, cfg *tls.Config) (*tls.Conn, error) {
	td := tls.Dialer{NetDialer: &nd.d, Config: cfg}
	c, err := td.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	return c.(*tls.Conn), nil
}

// ErrPoolClosed is returned by Acquire after Pool.Close.
var ErrPoolClosed = errors.New("pool: closed")

// Connection wraps one pooled *h2.Conn with the bookkeeping the pool and
// eviction task need: idle-since timestamp, reference count, and the
// address and route it was dialed for.
type Connection struct {
	Conn *h2.Conn

	address Address
	route   Route

	mu            sync.Mutex
	refCount      int
	idleSince     time.Time
	noNewExchanges bool
	refusedCount  int
}

// Address reports the destination this connection was dialed for.
func (c *Connection) Address() Address { return c.address }

// Acquire marks the connection in-use; an acquired connection is never a
// candidate for idle eviction.
func (c *Connection) acquire() {
	c.mu.Lock()
	c.refCount++
	c.mu.Unlock()
}

// Release returns the connection to the idle set once the caller is done
// with its exchange.
func (c *Connection) Release() {
	c.mu.Lock()
	c.refCount--
	if c.refCount <= 0 {
		c.refCount = 0
		c.idleSince = time.Now()
	}
	c.mu.Unlock()
}

// MarkRefused records a REFUSED_STREAM against this connection. The second
// one within the connection's lifetime marks it unhealthy for new streams.
func (c *Connection) MarkRefused() (unhealthy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refusedCount++
	if c.refusedCount >= 2 {
		c.noNewExchanges = true
	}
	return c.noNewExchanges
}

func (c *Connection) isUsable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.noNewExchanges && !c.Conn.Closed()
}

func (c *Connection) markNoNewExchanges() {
	c.mu.Lock()
	c.noNewExchanges = true
	c.mu.Unlock()
}

func (c *Connection) isIdle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refCount == 0
}

func (c *Connection) idleDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refCount != 0 {
		return 0
	}
	return time.Since(c.idleSince)
}

// Options configures eviction policy and connection limits.
type Options struct {
	MaxIdleConnections int
	KeepAlive          time.Duration
	Dialer             Dialer
	ConnOpts           h2.ConnOpts
}

func (o *Options) setDefaults() {
	if o.MaxIdleConnections <= 0 {
		o.MaxIdleConnections = 5
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = 5 * time.Minute
	}
	if o.Dialer == nil {
		o.Dialer = NewDefaultDialer(10 * time.Second)
	}
}

// Pool shares H2 Connections across calls to the same destination,
// grouped by address.
type Pool struct {
	opts Options

	mu      sync.Mutex
	byAddr  map[Address][]*Connection
	closed  bool
	runner  *taskrunner.Runner
}

// New returns a Pool ready to Acquire connections.
func New(opts Options) *Pool {
	opts.setDefaults()
	p := &Pool{
		opts:   opts,
		byAddr: make(map[Address][]*Connection),
		runner: taskrunner.New(),
	}
	p.runner.Schedule("evict", p.evictOnce, opts.KeepAlive)
	return p
}

// Acquire resolves a connection for addr,: (a) reuse an
// existing connection to the exact address; (b) reuse a connection to
// another address with the same host and TLS requirement (certificates
// are not compared); (c) dial a new one. A connection marked
// noNewExchanges is skipped.
func (p *Pool) Acquire(ctx context.Context, addr Address) (*Connection, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	if conn := p.pickLocked(addr); conn != nil {
		p.mu.Unlock()
		conn.acquire()
		return conn, nil
	}
	p.mu.Unlock()

	conn, err := p.dial(ctx, addr)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		conn.Conn.Close(h2.NoError)
		return nil, ErrPoolClosed
	}
	p.byAddr[addr] = append(p.byAddr[addr], conn)
	wasEmpty := p.totalLocked() == 1
	p.mu.Unlock()

	if wasEmpty {
		p.runner.Kick("evict")
	}

	conn.acquire()
	return conn, nil
}

// pickLocked must be called with p.mu held. It implements the (a)/(b)
// search order of Acquire without dialing.
func (p *Pool) pickLocked(addr Address) *Connection {
	for _, c := range p.byAddr[addr] {
		if c.isUsable() {
			return c
		}
	}
	// Coalescing: any connection for an address sharing the same host+TLS
	// requirement is treated as route-compatible here; certificate
	// compatibility itself is a TLS-layer concern handled by the dialer.
	for other, conns := range p.byAddr {
		if other.Host != addr.Host || other.TLS != addr.TLS {
			continue
		}
		for _, c := range conns {
			if c.isUsable() {
				return c
			}
		}
	}
	return nil
}

func (p *Pool) totalLocked() int {
	n := 0
	for _, conns := range p.byAddr {
		n += len(conns)
	}
	return n
}

func (p *Pool) dial(ctx context.Context, addr Address) (*Connection, error) {
	network := "tcp"
	hostport := fmt.Sprintf("%s:%d", addr.Host, addr.Port)

	var nc net.Conn
	var err error
	if addr.TLS {
		nc, err = p.opts.Dialer.DialTLS(ctx, network, hostport, &tls.Config{NextProtos: []string{"h2"}})
	} else {
		nc, err = p.opts.Dialer.Dial(ctx, network, hostport)
	}
	if err != nil {
		return nil, fmt.Errorf("pool: dial %s: %w", hostport, err)
	}

	hc := h2.NewConn(nc, p.opts.ConnOpts)
	if err := hc.Handshake(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("pool: handshake %s: %w", hostport, err)
	}

	return &Connection{
		Conn:      hc,
		address:   addr,
		route:     Route{Address: addr, Socket: nc.RemoteAddr()},
		idleSince: time.Now(),
	}, nil
}

// evictOnce runs one eviction pass: evicts the oldest
// idle connection beyond MaxIdleConnections, and any idle connection that
// has been idle ≥ KeepAlive. Returns the sleep duration until the next
// candidate becomes evictable, or -1 when the pool is empty.
func (p *Pool) evictOnce() time.Duration {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return -1
	}

	type idleEntry struct {
		addr Address
		conn *Connection
		idle time.Duration
	}
	var idles []idleEntry
	total := 0
	for addr, conns := range p.byAddr {
		for _, c := range conns {
			total++
			if c.isIdle() {
				idles = append(idles, idleEntry{addr: addr, conn: c, idle: c.idleDuration()})
			}
		}
	}
	p.mu.Unlock()

	if total == 0 {
		return -1
	}

	sort.Slice(idles, func(i, j int) bool { return idles[i].idle > idles[j].idle })

	var toEvict []idleEntry
	for i, e := range idles {
		if i < len(idles)-p.opts.MaxIdleConnections || e.idle >= p.opts.KeepAlive {
			toEvict = append(toEvict, e)
		}
	}

	for _, e := range toEvict {
		p.remove(e.addr, e.conn)
		e.conn.Conn.Close(h2.NoError)
	}

	next := p.opts.KeepAlive
	p.mu.Lock()
	for addr, conns := range p.byAddr {
		for _, c := range conns {
			if !c.isIdle() {
				continue
			}
			remaining := p.opts.KeepAlive - c.idleDuration()
			if remaining < next {
				next = remaining
			}
			_ = addr
		}
	}
	empty := p.totalLocked() == 0
	p.mu.Unlock()

	if empty {
		return -1
	}
	if next <= 0 {
		next = time.Millisecond
	}
	return next
}

func (p *Pool) remove(addr Address, target *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	conns := p.byAddr[addr]
	for i, c := range conns {
		if c == target {
			p.byAddr[addr] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(p.byAddr[addr]) == 0 {
		delete(p.byAddr, addr)
	}
}

// Evict marks a specific connection unhealthy and removes it from the
// pool immediately, without closing it. ConnectInterceptor calls it when
// NewStream reports that the peer sent GOAWAY. A connection that
// MarkRefused reports unhealthy is not evicted here: Acquire skips it and
// the eviction task closes it once idle.
func (p *Pool) Evict(addr Address, conn *Connection) {
	conn.markNoNewExchanges()
	p.remove(addr, conn)
}

// Len returns the number of tracked connections, for tests.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalLocked()
}

// Close stops the eviction task and closes every tracked connection.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	all := p.byAddr
	p.byAddr = make(map[Address][]*Connection)
	p.mu.Unlock()

	p.runner.StopAll()
	for _, conns := range all {
		for _, c := range conns {
			c.Conn.Close(h2.NoError)
		}
	}
	return nil
}
