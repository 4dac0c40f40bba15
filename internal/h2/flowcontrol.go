package h2

import "sync"

// Strategy decides when a flow-control window, having been drained by
// incoming DATA, should be topped back up with a WINDOW_UPDATE. An
// implementation that instead tops up unconditionally on every read is
// EagerStrategy below.
type Strategy interface {
	// ShouldUpdate reports whether, given `consumed` bytes taken from a
	// window of `initial` bytes since the last update, a WINDOW_UPDATE
	// should now be sent.
	ShouldUpdate(consumed, initial uint32) bool
}

// halfWindowStrategy replenishes once at least half of the initial window
// has been consumed since the last update. This is the package default.
type halfWindowStrategy struct{}

func (halfWindowStrategy) ShouldUpdate(consumed, initial uint32) bool {
	return consumed*2 >= initial
}

// DefaultStrategy tops up a window once half of it has been consumed.
var DefaultStrategy Strategy = halfWindowStrategy{}

// EagerStrategy replenishes on every single byte consumed, issuing a
// WINDOW_UPDATE per DATA frame read. Useful for small, latency-sensitive
// bodies where keeping the sender's window always full outweighs the
// extra frames.
type eagerStrategy struct{}

func (eagerStrategy) ShouldUpdate(consumed, initial uint32) bool { return consumed > 0 }

var EagerStrategy Strategy = eagerStrategy{}

// FlowWindow tracks one side (send or receive) of one flow-control window,
// scoped to either a Stream or a whole Conn (RFC 7540 §6.9). size can
// legally go negative transiently: a SETTINGS_INITIAL_WINDOW_SIZE change
// shrinks every open stream's send window immediately, even below zero
// (RFC 7540 §6.9.2), and the sender must simply wait for it to recover
// before writing again.
type FlowWindow struct {
	mu       sync.Mutex
	cond     *sync.Cond
	size     int64
	initial  uint32
	consumed uint32
	strategy Strategy
	closed   bool
}

// NewFlowWindow returns a window initialized to initial bytes.
func NewFlowWindow(initial uint32) *FlowWindow {
	fw := &FlowWindow{size: int64(initial), initial: initial, strategy: DefaultStrategy}
	fw.cond = sync.NewCond(&fw.mu)
	return fw
}

// SetStrategy overrides the replenishment strategy for a receive-side
// window; has no effect on send-side usage (Consume only).
func (fw *FlowWindow) SetStrategy(s Strategy) {
	fw.mu.Lock()
	fw.strategy = s
	fw.mu.Unlock()
}

// Size returns the current window size, which may be negative.
func (fw *FlowWindow) Size() int64 {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.size
}

// Reserve blocks until at least one byte of send-window is available (or
// the window is closed), then deducts and returns however much of n it
// actually granted: min(n, the window size at that moment). A caller
// that needs the full n reserved must check the returned amount and loop
// until it has reserved enough — Reserve never grants more than the
// window currently holds, even when asked for more.
func (fw *FlowWindow) Reserve(n uint32) (uint32, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if n == 0 {
		if fw.closed {
			return 0, ErrWindowOverflow
		}
		return 0, nil
	}
	for fw.size <= 0 && !fw.closed {
		fw.cond.Wait()
	}
	if fw.closed {
		return 0, ErrWindowOverflow
	}
	granted := n
	if fw.size < int64(n) {
		granted = uint32(fw.size)
	}
	fw.size -= int64(granted)
	return granted, nil
}

// Avail reports how many bytes of send-window could be reserved right now
// without blocking, used by writers that want to chunk a DATA frame to
// whatever credit currently exists instead of blocking for the full size.
func (fw *FlowWindow) Avail() uint32 {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.size <= 0 {
		return 0
	}
	return uint32(fw.size)
}

// Credit applies a WINDOW_UPDATE increment (send-side top-up).
func (fw *FlowWindow) Credit(n uint32) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	next := fw.size + int64(n)
	if next > int64(MaxWindowSize) {
		return ErrWindowOverflow
	}
	fw.size = next
	fw.cond.Broadcast()
	return nil
}

// Shrink reduces the window by delta (may be negative to grow), applied
// when SETTINGS_INITIAL_WINDOW_SIZE changes the baseline for every open
// stream (RFC 7540 §6.9.2).
func (fw *FlowWindow) Shrink(delta int64) {
	fw.mu.Lock()
	fw.size -= delta
	fw.mu.Unlock()
}

// Consume deducts n bytes from a receive-side window as DATA arrives, and
// reports how much WINDOW_UPDATE credit to send back to the peer right
// now (zero if the strategy says not yet).
func (fw *FlowWindow) Consume(n uint32) uint32 {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.size -= int64(n)
	fw.consumed += n
	if fw.strategy.ShouldUpdate(fw.consumed, fw.initial) {
		credit := fw.consumed
		fw.consumed = 0
		fw.size += int64(credit)
		return credit
	}
	return 0
}

// Close unblocks any Reserve waiters, used when the owning stream or
// connection is torn down.
func (fw *FlowWindow) Close() {
	fw.mu.Lock()
	fw.closed = true
	fw.mu.Unlock()
	fw.cond.Broadcast()
}
