package h2

import (
	"sort"
	"sync"
)

// StreamState is one node of the RFC 7540 §5.1 stream state machine,
// telling local- from remote-initiated half-close apart since each
// drives a different direction of EOF.
type StreamState int8

const (
	StreamIdle StreamState = iota
	StreamReservedLocal
	StreamReservedRemote
	StreamOpen
	StreamHalfClosedLocal
	StreamHalfClosedRemote
	StreamClosed
)

func (ss StreamState) String() string {
	switch ss {
	case StreamIdle:
		return "idle"
	case StreamReservedLocal:
		return "reserved_local"
	case StreamReservedRemote:
		return "reserved_remote"
	case StreamOpen:
		return "open"
	case StreamHalfClosedLocal:
		return "half_closed_local"
	case StreamHalfClosedRemote:
		return "half_closed_remote"
	case StreamClosed:
		return "closed"
	}
	return "unknown"
}

// Stream is one HTTP/2 stream multiplexed over a Conn: a bidirectional
// sequence of HEADERS/DATA frames with its own flow-control windows and
// state, 
type Stream struct {
	mu    sync.Mutex
	cond  *sync.Cond
	id    uint32
	state StreamState

	sendWindow *FlowWindow
	recvWindow *FlowWindow

	recvQueue [][]byte
	recvErr   error
	recvEOF   bool

	// headerBlocks buffers every raw (not yet decoded) header block
	// received on this stream, in arrival order: informational 1xx
	// responses, the final response, then trailers, drained in order by
	// the reader (RFC 7540 §8.1 allows multiple HEADERS blocks).
	headerBlocks [][]byte

	weight     uint8
	exclusive  bool
	parentDep  uint32
}

// NewStream creates an idle stream with the given initial send/recv
// window sizes (typically the peer's and our own SETTINGS_INITIAL_WINDOW_SIZE).
func NewStream(id uint32, sendInitial, recvInitial uint32) *Stream {
	s := &Stream{
		id:         id,
		state:      StreamIdle,
		sendWindow: NewFlowWindow(sendInitial),
		recvWindow: NewFlowWindow(recvInitial),
		weight:     16,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *Stream) ID() uint32 { return s.id }

func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Stream) SetState(state StreamState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	if state == StreamClosed {
		s.cond.Broadcast()
	}
}

// Open transitions an Idle stream, opened either by sending (local) or
// receiving (remote) a HEADERS frame without END_STREAM.
func (s *Stream) Open() { s.SetState(StreamOpen) }

// HalfCloseLocal records that we've sent END_STREAM.
func (s *Stream) HalfCloseLocal() {
	s.mu.Lock()
	switch s.state {
	case StreamOpen:
		s.state = StreamHalfClosedLocal
	case StreamHalfClosedRemote:
		s.state = StreamClosed
	}
	s.mu.Unlock()
	s.cond.Broadcast()
}

// HalfCloseRemote records that the peer sent END_STREAM.
func (s *Stream) HalfCloseRemote() {
	s.mu.Lock()
	switch s.state {
	case StreamOpen:
		s.state = StreamHalfClosedRemote
	case StreamHalfClosedLocal:
		s.state = StreamClosed
	}
	s.recvEOF = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

// SendWindow returns the stream-scoped send flow-control window.
func (s *Stream) SendWindow() *FlowWindow { return s.sendWindow }

// RecvWindow returns the stream-scoped receive flow-control window.
func (s *Stream) RecvWindow() *FlowWindow { return s.recvWindow }

// SetPriority records the RFC 7540 §5.3 priority fields carried by a
// HEADERS or PRIORITY frame. Priority itself does not change scheduling
// in this implementation, but the values are retained for diagnostics
// and for re-emission if this stream's priority is queried.
func (s *Stream) SetPriority(dep uint32, weight uint8, exclusive bool) {
	s.mu.Lock()
	s.parentDep, s.weight, s.exclusive = dep, weight, exclusive
	s.mu.Unlock()
}

// PushData appends a DATA frame payload to the stream's recv queue,
// waking any blocked reader. Called from the connection's read loop.
func (s *Stream) PushData(b []byte) {
	s.mu.Lock()
	cp := append([]byte(nil), b...)
	s.recvQueue = append(s.recvQueue, cp)
	s.mu.Unlock()
	s.cond.Broadcast()
}

// PushHeaderBlock appends a raw, not yet decoded header block to the
// stream's queue, for every HEADERS frame the peer sends on the stream.
func (s *Stream) PushHeaderBlock(b []byte) {
	s.mu.Lock()
	s.headerBlocks = append(s.headerBlocks, append([]byte(nil), b...))
	s.mu.Unlock()
	s.cond.Broadcast()
}

// NextHeaderBlock pops the oldest buffered header block, blocking until
// one is available or the stream reaches a terminal/EOF condition.
func (s *Stream) NextHeaderBlock() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.headerBlocks) == 0 && s.recvErr == nil && s.state != StreamClosed {
		s.cond.Wait()
	}
	if len(s.headerBlocks) > 0 {
		b := s.headerBlocks[0]
		s.headerBlocks = s.headerBlocks[1:]
		return b, nil
	}
	if s.recvErr != nil {
		return nil, s.recvErr
	}
	return nil, ErrNotFound
}

// Read pulls the next buffered DATA chunk, blocking until data arrives,
// EOF is reached, or the stream errors (e.g. RST_STREAM received).
func (s *Stream) Read() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.recvQueue) == 0 && !s.recvEOF && s.recvErr == nil {
		s.cond.Wait()
	}
	if len(s.recvQueue) > 0 {
		b := s.recvQueue[0]
		s.recvQueue = s.recvQueue[1:]
		return b, nil
	}
	if s.recvErr != nil {
		return nil, s.recvErr
	}
	return nil, nil // EOF
}

// Fail aborts the stream with err, unblocking any Read/NextHeaderBlock
// waiter (e.g. on RST_STREAM receipt or connection teardown).
func (s *Stream) Fail(err error) {
	s.mu.Lock()
	s.recvErr = err
	s.state = StreamClosed
	s.mu.Unlock()
	s.sendWindow.Close()
	s.recvWindow.Close()
	s.cond.Broadcast()
}

// Streams is an id-ordered collection of live streams, kept sorted so
// lookup is a binary search.
type Streams struct {
	mu   sync.RWMutex
	list []*Stream
}

func (strms *Streams) Insert(s *Stream) {
	strms.mu.Lock()
	defer strms.mu.Unlock()
	i := sort.Search(len(strms.list), func(i int) bool {
		return strms.list[i].id >= s.id
	})
	if i == len(strms.list) {
		strms.list = append(strms.list, s)
		return
	}
	strms.list = append(strms.list, nil)
	copy(strms.list[i+1:], strms.list[i:])
	strms.list[i] = s
}

func (strms *Streams) Del(id uint32) *Stream {
	strms.mu.Lock()
	defer strms.mu.Unlock()
	i := sort.Search(len(strms.list), func(i int) bool {
		return strms.list[i].id >= id
	})
	if i < len(strms.list) && strms.list[i].id == id {
		s := strms.list[i]
		strms.list = append(strms.list[:i], strms.list[i+1:]...)
		return s
	}
	return nil
}

func (strms *Streams) Get(id uint32) *Stream {
	strms.mu.RLock()
	defer strms.mu.RUnlock()
	i := sort.Search(len(strms.list), func(i int) bool {
		return strms.list[i].id >= id
	})
	if i < len(strms.list) && strms.list[i].id == id {
		return strms.list[i]
	}
	return nil
}

// Len reports the number of currently tracked streams, used by Conn to
// enforce MAX_CONCURRENT_STREAMS.
func (strms *Streams) Len() int {
	strms.mu.RLock()
	defer strms.mu.RUnlock()
	return len(strms.list)
}

// Each calls fn for every tracked stream; used when tearing down a
// connection so every open stream can be failed with the same error.
func (strms *Streams) Each(fn func(*Stream)) {
	strms.mu.RLock()
	list := make([]*Stream, len(strms.list))
	copy(list, strms.list)
	strms.mu.RUnlock()
	for _, s := range list {
		fn(s)
	}
}
