package httpclient

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/domsolutions/httpclient/internal/model"
	"github.com/domsolutions/httpclient/interceptor"
)

// Callback receives the outcome of an asynchronously executed Call.
type Callback func(res *Response, err error)

// Call drives a single Request through a Client's interceptor chain and
// delivers a Response or failure exactly once.
type Call struct {
	client *Client
	req    *Request

	executed atomic.Bool
	canceled atomic.Bool

	tagMu sync.Mutex
	tags  Tags

	listeners []EventListener

	connectTimeout time.Duration
	writeTimeout   time.Duration
	readTimeout    time.Duration
}

// newCall builds a Call bound to client for req.
func newCall(client *Client, req *Request) *Call {
	return &Call{
		client:         client,
		req:            req,
		tags:           req.Tags.Clone(),
		listeners:      append([]EventListener(nil), client.eventListeners...),
		connectTimeout: client.connectTimeout,
		writeTimeout:   client.writeTimeout,
		readTimeout:    client.readTimeout,
	}
}

// Request returns the Call's bound request.
func (c *Call) Request() *Request { return c.req }

// IsCanceled reports whether Cancel has been called, satisfying
// interceptor.CallInfo.
func (c *Call) IsCanceled() bool { return c.canceled.Load() }

// Host is the Call's target host, used by the Dispatcher's per-host cap.
func (c *Call) Host() string { return c.req.URL.Hostname() }

// IsWebSocket reports whether this call is exempt from the Dispatcher's
// per-host cap. Never true today; the interceptor chain does not implement
// the WebSocket upgrade, but the hook is here for a future interceptor to
// flip via a Request tag.
func (c *Call) IsWebSocket() bool { return false }

// Execute runs the call synchronously and blocks until it completes.
// Calling Execute or Enqueue a second time on the same Call returns
// ErrExecutedTwice.
func (c *Call) Execute() (*Response, error) {
	if !c.executed.CompareAndSwap(false, true) {
		return nil, ErrExecutedTwice
	}

	var res *Response
	var err error
	c.client.dispatcher.ExecuteSync(&callRunnable{call: c, out: func(r *Response, e error) {
		res, err = r, e
	}})
	return res, err
}

// Enqueue hands the call off to the Client's Dispatcher; cb is invoked
// exactly once when the call finishes, on a goroutine the Dispatcher owns.
// Calling Execute or Enqueue a second time on the same Call returns
// ErrExecutedTwice to cb immediately.
func (c *Call) Enqueue(cb Callback) {
	if !c.executed.CompareAndSwap(false, true) {
		if cb != nil {
			cb(nil, ErrExecutedTwice)
		}
		return
	}
	c.client.dispatcher.EnqueueAsync(&callRunnable{call: c, out: cb})
}

// Cancel is idempotent: it marks the call canceled so the next chain
// checkpoint (RetryInterceptor's per-attempt check, and run's entry check)
// observes IsCanceled and stops rather than starting new work. Already-
// completed calls are unaffected. See DESIGN.md for why resetting an
// in-flight stream mid-read is not wired: the active connection/stream
// live only inside the chain's call stack once ConnectInterceptor opens
// them, with no cancellation channel threaded back to Call today.
func (c *Call) Cancel() {
	if !c.canceled.CompareAndSwap(false, true) {
		return
	}
	model.Dispatch(c.listeners, model.Event{Kind: model.EventCallEnd, Request: c.req, Err: ErrCanceled, At: time.Now()})
}

// ErrCanceled is the Cause wrapped in the Canceled Error delivered when a
// canceled call reaches a chain checkpoint; Cancel does not interrupt an
// exchange already in progress.
var ErrCanceled = fmt.Errorf("httpclient: call canceled")

// Clone returns a fresh Call for the same request: no inherited per-call
// event listeners, no inherited computed tags (the request's own tags are
// still visible, since Clone shares the immutable Request).
func (c *Call) Clone() *Call {
	return newCall(c.client, c.req)
}

// Tags returns a snapshot of the call's per-call tag table, seeded from the
// request's tags at construction.
func (c *Call) Tags() Tags {
	c.tagMu.Lock()
	defer c.tagMu.Unlock()
	return c.tags
}

// CallTagOrCompute returns the existing value of type T on call's per-call
// tag table if present, otherwise computes one via fn and installs it;
// concurrent callers racing to populate the same tag observe a single
// winning value.
func CallTagOrCompute[T any](c *Call, fn func() T) T {
	return TagOrCompute(&c.tagMu, &c.tags, fn)
}

func (c *Call) run() (*Response, error) {
	if c.canceled.Load() {
		return nil, &Error{Kind: Canceled, Cause: ErrCanceled}
	}

	model.Dispatch(c.listeners, model.Event{Kind: model.EventCallStart, Request: c.req, At: time.Now()})

	chain := interceptor.NewChain(c.client.interceptors(), c.req, c, c.connectTimeout)
	chain = chain.WithWriteTimeout(c.writeTimeout)
	chain = chain.WithReadTimeout(c.readTimeout)

	res, err := chain.Proceed(c.req)

	model.Dispatch(c.listeners, model.Event{Kind: model.EventCallEnd, Request: c.req, Response: res, Err: err, At: time.Now()})

	return res, err
}

// callRunnable adapts a Call to dispatcher.Runnable.
type callRunnable struct {
	call *Call
	out  Callback
}

func (r callRunnable) Host() string      { return r.call.Host() }
func (r callRunnable) IsWebSocket() bool { return r.call.IsWebSocket() }
func (r callRunnable) Cancel()           { r.call.Cancel() }

// Reject delivers err to the call's callback directly, for a call the
// Dispatcher drains before it ever reaches Run.
func (r callRunnable) Reject(err error) {
	r.call.Cancel()
	if r.out != nil {
		r.out(nil, &Error{Kind: ConnectionShutdown, Cause: err})
	}
}

func (r callRunnable) Run() {
	res, err := r.call.run()
	if r.out != nil {
		r.out(res, err)
	}
}
