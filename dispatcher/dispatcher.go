// Package dispatcher implements admission control across queued and
// running calls, with a per-host concurrency cap and an idle callback
// fired on the running-to-empty transition.
package dispatcher

import (
	"errors"
	"sync"
)

// ErrShutdown is passed to Runnable.Reject for calls that never get to run
// because the Dispatcher has been shut down.
var ErrShutdown = errors.New("dispatcher: shut down")

// Runnable is the minimal slice of Call state the Dispatcher needs: which
// host it targets (for the per-host cap), whether it is exempt from that
// cap (WebSocket), and how to run, cancel, or reject it.
// Declared here rather than depending on the root package's Call type,
// mirroring interceptor.CallInfo's cycle-avoidance.
type Runnable interface {
	Host() string
	IsWebSocket() bool
	// Run executes the call and delivers its outcome; called at most once.
	Run()
	// Cancel marks an already-admitted (queued or running) call canceled;
	// it does not itself deliver an outcome — Run, already in flight or
	// about to run, is still responsible for that.
	Cancel()
	// Reject delivers a terminal outcome for a call that will never Run,
	// e.g. because the Dispatcher shut down before admitting it.
	Reject(err error)
}

// Options configures a Dispatcher's admission limits.
type Options struct {
	// MaxRequests caps total concurrently running async calls. Zero means
	// unlimited (bounded only by MaxRequestsPerHost, if set).
	MaxRequests int
	// MaxRequestsPerHost caps concurrently running async calls to the same
	// host. Zero means unlimited.
	MaxRequestsPerHost int
	// OnIdle, if set, is invoked once per transition from a non-empty to
	// an empty running set (no running async or sync calls).
	OnIdle func()
}

// Dispatcher admits Runnables: a FIFO ready queue, an
// unordered running-async set, and a running-sync set, all guarded by a
// single mutex; submission to goroutines and the idle callback happen
// outside the lock.
type Dispatcher struct {
	opts Options

	mu          sync.Mutex
	ready       []Runnable
	runningAsync map[Runnable]struct{}
	runningSync  map[Runnable]struct{}
	perHost      map[string]int
	shutdown     bool
}

// New builds a Dispatcher with the given admission limits.
func New(opts Options) *Dispatcher {
	return &Dispatcher{
		opts:         opts,
		runningAsync: make(map[Runnable]struct{}),
		runningSync:  make(map[Runnable]struct{}),
		perHost:      make(map[string]int),
	}
}

// EnqueueAsync appends r to the ready FIFO and attempts promotion.
func (d *Dispatcher) EnqueueAsync(r Runnable) {
	d.mu.Lock()
	if d.shutdown {
		d.mu.Unlock()
		r.Reject(ErrShutdown)
		return
	}
	d.ready = append(d.ready, r)
	d.mu.Unlock()

	d.promoteAndExecute()
}

// ExecuteSync runs r on the caller's goroutine, tracked in runningSync so
// the idle callback and introspection see it.
func (d *Dispatcher) ExecuteSync(r Runnable) {
	d.mu.Lock()
	d.runningSync[r] = struct{}{}
	d.mu.Unlock()

	r.Run()

	d.mu.Lock()
	delete(d.runningSync, r)
	idle := d.isIdleLocked()
	d.mu.Unlock()

	if idle {
		d.fireIdle()
	}
}

// promoteAndExecute implementsalgorithm: under the lock,
// walk the ready FIFO promoting calls that fit within MaxRequests and the
// per-host cap (WebSocket calls are exempt from the per-host cap); launch
// each promoted call's goroutine outside the lock.
func (d *Dispatcher) promoteAndExecute() {
	d.mu.Lock()
	if d.shutdown {
		drained := d.ready
		d.ready = nil
		d.mu.Unlock()
		for _, r := range drained {
			r.Reject(ErrShutdown)
		}
		return
	}

	var promoted []Runnable
	remaining := d.ready[:0]
	for _, r := range d.ready {
		if d.opts.MaxRequests > 0 && len(d.runningAsync) >= d.opts.MaxRequests {
			remaining = append(remaining, r)
			continue
		}
		host := r.Host()
		if !r.IsWebSocket() && d.opts.MaxRequestsPerHost > 0 && d.perHost[host] >= d.opts.MaxRequestsPerHost {
			remaining = append(remaining, r)
			continue
		}

		d.runningAsync[r] = struct{}{}
		if !r.IsWebSocket() {
			d.perHost[host]++
		}
		promoted = append(promoted, r)
	}
	d.ready = append([]Runnable(nil), remaining...)
	d.mu.Unlock()

	for _, r := range promoted {
		go d.runAsync(r)
	}
}

func (d *Dispatcher) runAsync(r Runnable) {
	r.Run()

	d.mu.Lock()
	delete(d.runningAsync, r)
	if !r.IsWebSocket() {
		host := r.Host()
		d.perHost[host]--
		if d.perHost[host] <= 0 {
			delete(d.perHost, host)
		}
	}
	idle := d.isIdleLocked()
	d.mu.Unlock()

	d.promoteAndExecute()

	if idle {
		d.fireIdle()
	}
}

func (d *Dispatcher) isIdleLocked() bool {
	return len(d.ready) == 0 && len(d.runningAsync) == 0 && len(d.runningSync) == 0
}

func (d *Dispatcher) fireIdle() {
	if d.opts.OnIdle != nil {
		d.opts.OnIdle()
	}
}

// CancelAll cancels every queued and running call.
func (d *Dispatcher) CancelAll() {
	d.mu.Lock()
	all := make([]Runnable, 0, len(d.ready)+len(d.runningAsync)+len(d.runningSync))
	all = append(all, d.ready...)
	for r := range d.runningAsync {
		all = append(all, r)
	}
	for r := range d.runningSync {
		all = append(all, r)
	}
	d.mu.Unlock()

	for _, r := range all {
		r.Cancel()
	}
}

// Shutdown marks the Dispatcher closed: further EnqueueAsync calls are
// rejected immediately with ErrShutdown, and any already-ready calls are
// drained and rejected with ErrShutdown by the promotion pass Shutdown
// runs before returning.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	d.shutdown = true
	d.mu.Unlock()
	d.promoteAndExecute()
}

// QueuedCalls returns a snapshot of the ready FIFO.
func (d *Dispatcher) QueuedCalls() []Runnable {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Runnable(nil), d.ready...)
}

// RunningCalls returns a snapshot of the running async and sync sets.
func (d *Dispatcher) RunningCalls() []Runnable {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Runnable, 0, len(d.runningAsync)+len(d.runningSync))
	for r := range d.runningAsync {
		out = append(out, r)
	}
	for r := range d.runningSync {
		out = append(out, r)
	}
	return out
}
