// Package interceptor implements the Interceptor Chain: an ordered
// sequence of request/response transformers, plus the five interceptors
// a default Client installs (retry, bridge, compression, connect,
// call-server).
package interceptor

import (
	"time"

	"github.com/domsolutions/httpclient/internal/h2"
	"github.com/domsolutions/httpclient/internal/model"
	"github.com/domsolutions/httpclient/pool"
)

// CallInfo is the minimal slice of Call state an interceptor needs:
// whether the call has been canceled. Declared here (rather than
// importing the root package's Call type directly) to keep interceptor
// free of the root package, which itself must import interceptor to
// build its default chain.
type CallInfo interface {
	IsCanceled() bool
}

// Interceptor transforms a request into a response, either by calling
// Chain.Proceed to delegate to the rest of the chain, or by synthesizing
// a response itself.
type Interceptor interface {
	Intercept(c Chain) (*model.Response, error)
}

// InterceptorFunc adapts a plain func to Interceptor.
type InterceptorFunc func(c Chain) (*model.Response, error)

func (f InterceptorFunc) Intercept(c Chain) (*model.Response, error) { return f(c) }

// Chain is passed to each Interceptor. Proceed advances to the next
// interceptor; With* methods return a new Chain with a per-chain timeout
// override.
type Chain interface {
	Request() *model.Request
	Call() CallInfo
	Connection() *pool.Connection
	Stream() *h2.Stream

	ConnectTimeout() time.Duration
	WriteTimeout() time.Duration
	ReadTimeout() time.Duration

	WithConnectTimeout(d time.Duration) Chain
	WithWriteTimeout(d time.Duration) Chain
	WithReadTimeout(d time.Duration) Chain

	Proceed(req *model.Request) (*model.Response, error)
}

// MaxChainLength caps the number of interceptors one chainRunner will
// drive, built-ins included. NewChain panics past this so a Proceed call
// never recurses deeper than a fixed, known bound no matter how many
// interceptors a caller installs ahead of the five built-ins.
const MaxChainLength = 64

// chainRunner is the interceptor slice and per-call fixed state shared by
// every realChain produced while running one Call: built once in
// NewChain rather than copied into each Proceed step, so advancing the
// chain costs one small realChain value, not a reallocation of the
// interceptor slice itself.
type chainRunner struct {
	interceptors []Interceptor
	call         CallInfo
}

// realChain is the only Chain implementation; each Proceed/With* call
// returns a fresh immutable value rather than mutating this one, so a
// misbehaving interceptor holding a stale Chain can't affect a sibling.
type realChain struct {
	runner *chainRunner
	index  int

	req    *model.Request
	conn   *pool.Connection
	stream *h2.Stream

	connectTimeout time.Duration
	writeTimeout   time.Duration
	readTimeout    time.Duration
}

// NewChain builds the initial Chain for req, with interceptors run in
// order starting from index 0.
func NewChain(interceptors []Interceptor, req *model.Request, call CallInfo, defaultTimeout time.Duration) Chain {
	if len(interceptors) > MaxChainLength {
		panic("interceptor: chain exceeds MaxChainLength")
	}
	return &realChain{
		runner:         &chainRunner{interceptors: interceptors, call: call},
		req:            req,
		connectTimeout: defaultTimeout,
		writeTimeout:   defaultTimeout,
		readTimeout:    defaultTimeout,
	}
}

func (c *realChain) Request() *model.Request      { return c.req }
func (c *realChain) Call() CallInfo               { return c.runner.call }
func (c *realChain) Connection() *pool.Connection { return c.conn }
func (c *realChain) Stream() *h2.Stream           { return c.stream }
func (c *realChain) ConnectTimeout() time.Duration { return c.connectTimeout }
func (c *realChain) WriteTimeout() time.Duration   { return c.writeTimeout }
func (c *realChain) ReadTimeout() time.Duration    { return c.readTimeout }

func (c *realChain) copy() *realChain {
	cp := *c
	return &cp
}

func (c *realChain) WithConnectTimeout(d time.Duration) Chain {
	cp := c.copy()
	cp.connectTimeout = d
	return cp
}

func (c *realChain) WithWriteTimeout(d time.Duration) Chain {
	cp := c.copy()
	cp.writeTimeout = d
	return cp
}

func (c *realChain) WithReadTimeout(d time.Duration) Chain {
	cp := c.copy()
	cp.readTimeout = d
	return cp
}

// withConnection returns a chain carrying conn, used by ConnectInterceptor
// to make the acquired pool.Connection visible to every interceptor after
// it in the chain.
func (c *realChain) withConnection(conn *pool.Connection, stream *h2.Stream) *realChain {
	cp := c.copy()
	cp.conn = conn
	cp.stream = stream
	return cp
}

// Proceed runs the next interceptor in the chain. Ordinary interceptors
// call this at most once; RetryInterceptor is the documented exception
// and calls it repeatedly across attempts, so this does not enforce a
// call count.
//
// A Go call into Intercept that later inspects or transforms the
// returned response cannot be flattened into a loop without changing the
// Interceptor interface to pass an explicit continuation instead of
// returning a value: every interceptor here does real work after Proceed
// returns (retrying, decoding, releasing a connection). Instead of that
// rewrite, NewChain bounds len(interceptors) at MaxChainLength, so this
// recursion's depth is capped at construction time rather than left to
// grow with however many interceptors a caller installs.
func (c *realChain) Proceed(req *model.Request) (*model.Response, error) {
	interceptors := c.runner.interceptors
	if c.index >= len(interceptors) {
		panic("interceptor: chain exhausted without a terminal interceptor producing a response")
	}

	next := c.copy()
	next.req = req
	next.index = c.index + 1
	next.conn = c.conn
	next.stream = c.stream

	return interceptors[c.index].Intercept(next)
}
