package httpclient

import (
	"time"

	"github.com/domsolutions/httpclient/dispatcher"
	"github.com/domsolutions/httpclient/interceptor"
	"github.com/domsolutions/httpclient/internal/h2"
	"github.com/domsolutions/httpclient/pool"
)

// DefaultConnectTimeout is used for a Call that does not override it via
// ClientOpts.ConnectTimeout.
const DefaultConnectTimeout = 10 * time.Second

// ClientOpts configures a Client with a plain struct literal rather than
// a builder or functional-options framework.
type ClientOpts struct {
	// Dialer opens the TCP/TLS connections the pool hands to the H2 layer.
	// A net.Dialer-backed default is used when nil.
	Dialer pool.Dialer
	// MaxIdleConnections caps idle pooled connections.
	MaxIdleConnections int
	// KeepAlive is how long an idle pooled connection survives before
	// eviction.
	KeepAlive time.Duration

	// MaxRequests caps total concurrently running async calls. Zero means
	// unlimited.
	MaxRequests int
	// MaxRequestsPerHost caps concurrently running async calls to the
	// same host. Zero means unlimited.
	MaxRequestsPerHost int
	// OnIdle, if set, fires once per transition to an empty running set.
	OnIdle func()

	// ConnectTimeout/WriteTimeout/ReadTimeout are per-Call defaults
	// ; zero uses DefaultConnectTimeout for connect and no
	// deadline for write/read.
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration

	// UserAgent overrides BridgeInterceptor's default User-Agent.
	UserAgent string
	// CompressionAlgorithms configures CompressionInterceptor's weighted
	// Accept-Encoding list; nil disables request-side compression
	// negotiation (responses already carrying a matching Content-Encoding
	// are still decoded only for algorithms listed here).
	CompressionAlgorithms []interceptor.Weighted
	// RetryMaxAttempts bounds RetryInterceptor; zero means 2.
	RetryMaxAttempts int

	// Interceptors are inserted ahead of the five built-ins, in order, so
	// a caller can observe or rewrite every request/response pair,
	// including ones the built-ins would otherwise retry or decode.
	Interceptors []interceptor.Interceptor

	// EventListeners are attached to every Call this Client creates.
	EventListeners []EventListener

	// PadFrames adds random PADDED framing to every outgoing HEADERS and
	// DATA frame on every connection the pool opens.
	PadFrames bool
}

// Client builds Calls against a shared connection Pool and Dispatcher. The
// zero value is not ready to use; construct with NewClient.
type Client struct {
	pool       *pool.Pool
	dispatcher *dispatcher.Dispatcher

	userInterceptors []interceptor.Interceptor
	userAgent        string
	compression      []interceptor.Weighted
	retryMaxAttempts int

	eventListeners []EventListener

	connectTimeout time.Duration
	writeTimeout   time.Duration
	readTimeout    time.Duration
}

// NewClient builds a Client from opts.
func NewClient(opts ClientOpts) *Client {
	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}

	p := pool.New(pool.Options{
		Dialer:             opts.Dialer,
		MaxIdleConnections: opts.MaxIdleConnections,
		KeepAlive:          opts.KeepAlive,
		ConnOpts:           h2.ConnOpts{PadFrames: opts.PadFrames},
	})

	d := dispatcher.New(dispatcher.Options{
		MaxRequests:        opts.MaxRequests,
		MaxRequestsPerHost: opts.MaxRequestsPerHost,
		OnIdle:             opts.OnIdle,
	})

	return &Client{
		pool:             p,
		dispatcher:       d,
		userInterceptors: opts.Interceptors,
		userAgent:        opts.UserAgent,
		compression:      opts.CompressionAlgorithms,
		retryMaxAttempts: opts.RetryMaxAttempts,
		eventListeners:   opts.EventListeners,
		connectTimeout:   connectTimeout,
		writeTimeout:     opts.WriteTimeout,
		readTimeout:      opts.ReadTimeout,
	}
}

// NewCall builds a Call for req, ready for Execute or Enqueue.
func (c *Client) NewCall(req *Request) *Call {
	return newCall(c, req)
}

// interceptors returns the Client's full chain: user-supplied interceptors
// first, then the five built-ins in a fixed order (retry, bridge,
// compression, connect, call-server).
func (c *Client) interceptors() []interceptor.Interceptor {
	chain := make([]interceptor.Interceptor, 0, len(c.userInterceptors)+5)
	chain = append(chain, c.userInterceptors...)
	chain = append(chain,
		interceptor.RetryInterceptor{MaxAttempts: c.retryMaxAttempts},
		interceptor.BridgeInterceptor{UserAgent: c.userAgent},
		interceptor.CompressionInterceptor{Algorithms: c.compression},
		interceptor.ConnectInterceptor{Pool: c.pool},
		interceptor.CallServerInterceptor{},
	)
	return chain
}

// CancelAll cancels every queued and running call.
func (c *Client) CancelAll() { c.dispatcher.CancelAll() }

// QueuedCalls returns a snapshot of calls waiting for admission.
func (c *Client) QueuedCalls() []dispatcher.Runnable { return c.dispatcher.QueuedCalls() }

// RunningCalls returns a snapshot of calls currently executing.
func (c *Client) RunningCalls() []dispatcher.Runnable { return c.dispatcher.RunningCalls() }

// Shutdown stops admitting new async calls and closes the connection pool.
func (c *Client) Shutdown() error {
	c.dispatcher.Shutdown()
	return c.pool.Close()
}
