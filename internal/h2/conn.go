package h2

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultPingInterval is the default keepalive cadence.
const DefaultPingInterval = 15 * time.Second

// maxUnackedPings is how many PINGs may go unanswered before the
// connection is declared dead.
const maxUnackedPings = 3

var (
	// ErrConnClosed is returned by any operation attempted on a Conn that
	// has already finished its teardown.
	ErrConnClosed = errors.New("h2: connection closed")
	// ErrNoStreams is returned by NewStream when the peer's
	// MAX_CONCURRENT_STREAMS limit is currently exhausted.
	ErrNoStreams = errors.New("h2: no available stream ids under peer's concurrency limit")
	// ErrPingTimeout: the peer stopped acknowledging PING frames.
	ErrPingTimeout = errors.New("h2: peer is not replying to pings")
	// ErrGoAway is returned by NewStream once the peer has sent a GOAWAY:
	// no new stream would ever be processed, since any id assigned now is
	// necessarily above the peer's advertised LastStreamID.
	ErrGoAway = errors.New("h2: connection is going away, no new streams")
)

// ConnOpts configures a Conn.
type ConnOpts struct {
	// PingInterval is the keepalive cadence; zero uses DefaultPingInterval.
	PingInterval time.Duration
	// DisablePingChecking disables the unanswered-ping death check,
	// useful against peers that never ack PING but are otherwise healthy.
	DisablePingChecking bool
	// OnGoAway fires once when a GOAWAY is received, before streams
	// above LastStreamID are failed.
	OnGoAway func(last uint32, code ErrorCode, debug []byte)
	// OnClose fires exactly once when the connection finishes teardown.
	OnClose func(c *Conn)
	// OnNewStream fires when a remotely-initiated stream's first HEADERS
	// frame arrives, letting a server-side consumer pick it up without
	// polling the Conn.
	OnNewStream func(s *Stream)
	// Server indicates this Conn is the server side of the handshake
	// (reads the preface, allocates even-numbered push stream ids). The
	// client role is primary; the server side is retained so the same
	// codec/Conn machinery can host the in-process test server.
	Server bool
	// PadFrames adds random PADDED framing to every outgoing HEADERS and
	// DATA frame, obscuring their true length from a passive observer on
	// the wire.
	PadFrames bool
}

// Conn is one multiplexed HTTP/2 connection: a single TCP/TLS socket
// carrying many concurrent Streams, generalized from a single
// request/response pairing to arbitrary Stream consumers (the
// Call/Dispatcher layer above it neither knows nor cares about frames).
type Conn struct {
	nc net.Conn
	br *bufio.Reader
	bw *bufio.Writer
	// writeMu serializes every write to bw: WriteHeaders/WriteData/Ping are
	// called directly from arbitrary caller goroutines, while writeLoop
	// drains outFrames (SETTINGS acks, WINDOW_UPDATEs, keepalive PINGs) on
	// its own goroutine. bufio.Writer is not safe for concurrent use, and
	// a frame write is never itself atomic across the 9-byte header plus
	// payload, so every writer must hold this for the whole WriteTo call.
	writeMu sync.Mutex

	opts ConnOpts

	codec *HeaderCodec

	nextStreamID uint32 // atomic, odd for client-initiated

	local  Settings
	remote Settings

	connSendWindow *FlowWindow
	connRecvWindow *FlowWindow

	streams Streams

	outFrames chan *FrameHeader

	unacks  int32
	pingRTT int64 // atomic, nanoseconds of last measured RTT

	pingMu     sync.Mutex
	pingWaiter chan time.Duration

	handshakeOnce sync.Once
	handshakeErr  error

	closeOnce sync.Once
	closed    uint32
	closeErr  error

	lastPeerStreamID uint32

	goAway       uint32 // atomic: 1 once a GOAWAY has been received
	goAwayLastID uint32 // atomic: LastStreamID from that GOAWAY

	settingsCh   chan struct{}
	settingsOnce sync.Once
}

// NewConn wraps an established net.Conn (already past TLS+ALPN
// negotiation) in HTTP/2 framing. Call Handshake before any stream use.
func NewConn(nc net.Conn, opts ConnOpts) *Conn {
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	local := Settings{}
	local.setDefaults()

	c := &Conn{
		nc:             nc,
		br:             bufio.NewReaderSize(nc, 1<<16),
		bw:             bufio.NewWriterSize(nc, 1<<16),
		opts:           opts,
		codec:          NewHeaderCodec(),
		nextStreamID:   1,
		local:          local,
		connSendWindow: NewFlowWindow(DefaultWindowSize),
		connRecvWindow: NewFlowWindow(DefaultWindowSize),
		outFrames:      make(chan *FrameHeader, 128),
		settingsCh:     make(chan struct{}),
	}
	if opts.Server {
		c.nextStreamID = 2
	}
	return c
}

// Handshake performs the client or server side of the HTTP/2 preface
// exchange (RFC 7540 §3.5): send our own preface (client only) and initial
// SETTINGS, then start the read/write loops. It does NOT block for the
// peer's SETTINGS in reply — those arrive through the same readLoop
// dispatch path used for every later SETTINGS frame, and AwaitSettings
// is provided for callers (e.g. the connection pool) that want to wait
// for them before issuing requests. Waiting for the peer here as a
// fourth synchronous round-trip has no reader on either end until the
// loops start, so it is handled asynchronously instead. Safe to call
// once; subsequent calls return the first result.
func (c *Conn) Handshake() error {
	c.handshakeOnce.Do(func() {
		c.handshakeErr = c.doHandshake()
		if c.handshakeErr == nil {
			go c.writeLoop()
			go c.readLoop()
		}
	})
	return c.handshakeErr
}

func (c *Conn) doHandshake() error {
	if !c.opts.Server {
		if _, err := c.bw.Write(Preface); err != nil {
			return err
		}
	} else {
		buf := make([]byte, len(Preface))
		if _, err := io.ReadFull(c.br, buf); err != nil {
			return err
		}
		if string(buf) != string(Preface) {
			return ErrBadPreface
		}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	frh := AcquireFrameHeader()
	st := AcquireSettings()
	c.local.CopyTo(st)
	frh.SetBody(st)
	if _, err := frh.WriteTo(c.bw); err != nil {
		ReleaseFrameHeader(frh)
		return err
	}
	ReleaseFrameHeader(frh)

	return c.bw.Flush()
}

// AwaitSettings blocks until the peer's initial SETTINGS frame has been
// applied, or ctx is done.
func (c *Conn) AwaitSettings(ctx context.Context) error {
	select {
	case <-c.settingsCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conn) applyPeerSettings(st *Settings) {
	old := c.remote.InitialWindowSize
	if old == 0 {
		old = DefaultWindowSize
	}
	st.CopyTo(&c.remote)
	if delta := int64(st.InitialWindowSize) - int64(old); delta != 0 {
		c.streams.Each(func(s *Stream) {
			if delta > 0 {
				_ = s.SendWindow().Credit(uint32(delta))
			} else {
				s.SendWindow().Shrink(-delta)
			}
		})
	}
	c.codec.SetMaxTableSize(st.HeaderTableSize)
	c.settingsOnce.Do(func() { close(c.settingsCh) })
}

// CanOpenStream reports whether the peer's MAX_CONCURRENT_STREAMS budget
// currently allows one more stream.
func (c *Conn) CanOpenStream() bool {
	limit := c.remote.MaxConcurrentStreams
	if limit == 0 {
		limit = DefaultConcurrentStreams
	}
	return uint32(c.streams.Len()) < limit
}

// NewStream allocates the next local stream id and registers it,
// returning ErrNoStreams if the peer's concurrency limit is exhausted, or
// ErrGoAway once the peer has sent a GOAWAY.
func (c *Conn) NewStream() (*Stream, error) {
	if c.Closed() {
		return nil, ErrConnClosed
	}
	if atomic.LoadUint32(&c.goAway) == 1 {
		return nil, ErrGoAway
	}
	if !c.CanOpenStream() {
		return nil, ErrNoStreams
	}
	id := atomic.AddUint32(&c.nextStreamID, 2) - 2

	sendInitial := c.remote.InitialWindowSize
	if sendInitial == 0 {
		sendInitial = DefaultWindowSize
	}
	s := NewStream(id, sendInitial, c.local.InitialWindowSize)
	c.streams.Insert(s)
	return s, nil
}

// WriteHeaders encodes fields with the connection's HeaderCodec and sends
// one or more HEADERS/CONTINUATION frames, splitting on MaxFrameSize.
func (c *Conn) WriteHeaders(s *Stream, fields []*HeaderField, endStream bool) error {
	var block []byte
	for _, hf := range fields {
		block = c.codec.AppendField(block, hf, hf.IsSensitive())
	}

	maxLen := c.remote.MaxFrameSize
	if maxLen == 0 || maxLen > MaxFrameSizeLimit {
		maxLen = DefaultMaxLen()
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	frh := AcquireFrameHeader()
	defer ReleaseFrameHeader(frh)
	frh.SetStream(s.ID())

	first := block
	rest := []byte(nil)
	if uint32(len(first)) > maxLen {
		first, rest = block[:maxLen], block[maxLen:]
	}

	h := AcquireHeaders()
	h.SetEndStream(endStream)
	h.SetEndHeaders(len(rest) == 0)
	h.SetHeaderBlock(first)
	h.SetPadded(c.opts.PadFrames)
	frh.SetBody(h)
	if _, err := frh.WriteTo(c.bw); err != nil {
		return err
	}

	for len(rest) > 0 {
		chunk := rest
		end := false
		if uint32(len(chunk)) > maxLen {
			chunk = rest[:maxLen]
			rest = rest[maxLen:]
		} else {
			rest = nil
			end = true
		}
		cont := AcquireContinuation()
		cont.SetEndHeaders(end)
		cont.SetHeaderBlock(chunk)
		frh2 := AcquireFrameHeader()
		frh2.SetStream(s.ID())
		frh2.SetBody(cont)
		if _, err := frh2.WriteTo(c.bw); err != nil {
			ReleaseFrameHeader(frh2)
			return err
		}
		ReleaseFrameHeader(frh2)
	}

	if endStream {
		s.HalfCloseLocal()
	} else {
		s.Open()
	}

	return c.bw.Flush()
}

// DefaultMaxLen is the frame payload size used when a peer hasn't
// negotiated a smaller MAX_FRAME_SIZE.
func DefaultMaxLen() uint32 { return defaultMaxLen }

// WriteData sends body as one or more DATA frames, chunked to the
// negotiated MAX_FRAME_SIZE and gated by the stream + connection send
// windows (RFC 7540 §6.9).
func (c *Conn) WriteData(s *Stream, body []byte, endStream bool) error {
	maxLen := c.remote.MaxFrameSize
	if maxLen == 0 || maxLen > MaxFrameSizeLimit {
		maxLen = DefaultMaxLen()
	}

	for len(body) > 0 || (endStream && len(body) == 0) {
		want := body
		if uint32(len(want)) > maxLen {
			want = body[:maxLen]
		}

		// Reserve (flow-control wait) happens OUTSIDE writeMu: it can
		// block arbitrarily long on a WINDOW_UPDATE that the read loop
		// delivers, and must never hold the writer hostage while it does.
		// Either window may grant less than requested, so the frame
		// actually sent is clamped to the smaller of the two grants; any
		// excess reserved from the stream window is credited straight back.
		streamReserved, err := s.SendWindow().Reserve(uint32(len(want)))
		if err != nil {
			return err
		}
		connReserved, err := c.connSendWindow.Reserve(streamReserved)
		if err != nil {
			_ = s.SendWindow().Credit(streamReserved)
			return err
		}
		if connReserved < streamReserved {
			_ = s.SendWindow().Credit(streamReserved - connReserved)
		}

		chunk := want[:connReserved]
		body = body[len(chunk):]
		last := len(body) == 0

		d := AcquireData()
		d.SetData(chunk)
		d.SetEndStream(endStream && last)
		d.SetPadded(c.opts.PadFrames)

		frh := AcquireFrameHeader()
		frh.SetStream(s.ID())
		frh.SetBody(d)

		c.writeMu.Lock()
		_, err = frh.WriteTo(c.bw)
		ReleaseFrameHeader(frh)
		if err == nil {
			err = c.bw.Flush()
		}
		c.writeMu.Unlock()

		if err != nil {
			return err
		}
		if last {
			break
		}
	}

	if endStream {
		s.HalfCloseLocal()
	}
	return nil
}

// Ping sends a PING and blocks until it is acknowledged or twice
// PingInterval elapses (ErrPingTimeout), returning the measured round-trip
// time. Only one caller's Ping
// is tracked precisely at a time; overlapping calls still get a
// plausible RTT (the most recent ack) rather than an error, using a
// tolerant unacks-counter model for the keepalive ping.
func (c *Conn) Ping() (time.Duration, error) {
	if c.Closed() {
		return 0, ErrConnClosed
	}

	wait := make(chan time.Duration, 1)
	c.pingMu.Lock()
	c.pingWaiter = wait
	c.pingMu.Unlock()

	if err := c.writePing(false); err != nil {
		return 0, err
	}

	select {
	case rtt := <-wait:
		return rtt, nil
	case <-time.After(2 * c.opts.PingInterval):
		return 0, ErrPingTimeout
	}
}

// LastPingRTT returns the most recently measured PING round-trip time.
func (c *Conn) LastPingRTT() time.Duration {
	return time.Duration(atomic.LoadInt64(&c.pingRTT))
}

func (c *Conn) writePing(ack bool) error {
	frh := AcquireFrameHeader()
	defer ReleaseFrameHeader(frh)
	p := AcquirePing()
	p.SetAck(ack)
	if !ack {
		p.SetCurrentTime()
	}
	frh.SetBody(p)

	c.writeMu.Lock()
	_, err := frh.WriteTo(c.bw)
	if err == nil {
		err = c.bw.Flush()
	}
	c.writeMu.Unlock()
	if err != nil {
		return err
	}
	if !ack {
		atomic.AddInt32(&c.unacks, 1)
	}
	return nil
}

// Closed reports whether the connection has finished teardown.
func (c *Conn) Closed() bool { return atomic.LoadUint32(&c.closed) == 1 }

// Err returns the error that caused the connection to close, or nil if
// it is still open or closed cleanly.
func (c *Conn) Err() error { return c.closeErr }

// Close sends a GOAWAY with the given code and tears down the connection.
func (c *Conn) Close(code ErrorCode) error {
	var err error
	c.closeOnce.Do(func() {
		frh := AcquireFrameHeader()
		ga := AcquireGoAway()
		ga.SetLastStreamID(c.lastPeerStreamID)
		ga.SetCode(code)
		frh.SetBody(ga)

		c.writeMu.Lock()
		_, werr := frh.WriteTo(c.bw)
		if werr == nil {
			werr = c.bw.Flush()
		}
		c.writeMu.Unlock()
		ReleaseFrameHeader(frh)

		err = c.nc.Close()
		if err == nil {
			err = werr
		}

		atomic.StoreUint32(&c.closed, 1)
		if c.closeErr == nil {
			c.closeErr = io.EOF
		}

		c.streams.Each(func(s *Stream) { s.Fail(ErrConnClosed) })
		c.connSendWindow.Close()
		c.connRecvWindow.Close()

		if c.opts.OnClose != nil {
			c.opts.OnClose(c)
		}
	})
	return err
}

func (c *Conn) fail(err error) {
	c.closeErr = err
	_ = c.Close(codeForErr(err))
}

func codeForErr(err error) ErrorCode {
	var se *StreamError
	if errors.As(err, &se) {
		return se.Code
	}
	var ce *ConnError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return InternalError
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	defer func() { _ = c.Close(NoError) }()

	for {
		select {
		case frh, ok := <-c.outFrames:
			if !ok {
				return
			}
			c.writeMu.Lock()
			_, err := frh.WriteTo(c.bw)
			if err == nil {
				err = c.bw.Flush()
			}
			c.writeMu.Unlock()
			ReleaseFrameHeader(frh)
			if err != nil {
				c.fail(err)
				return
			}
		case <-ticker.C:
			if !c.opts.DisablePingChecking && atomic.LoadInt32(&c.unacks) >= maxUnackedPings {
				c.fail(ErrPingTimeout)
				return
			}
			if err := c.writePing(false); err != nil {
				c.fail(err)
				return
			}
		}
	}
}

func (c *Conn) queueOut(frh *FrameHeader) {
	select {
	case c.outFrames <- frh:
	default:
		// writer is behind; hand the frame to a goroutine that blocks
		// until the writer accepts it rather than drop a control frame
		// (SETTINGS ack, WINDOW_UPDATE, PING ack).
		go func() { c.outFrames <- frh }()
	}
}

func (c *Conn) readLoop() {
	defer func() { _ = c.Close(NoError) }()

	for {
		frh, err := ReadFrameFrom(c.br)
		if err != nil {
			c.closeErr = err
			return
		}

		if err := c.dispatch(frh); err != nil {
			ReleaseFrameHeader(frh)
			c.closeErr = err
			return
		}
		ReleaseFrameHeader(frh)
	}
}

func (c *Conn) dispatch(frh *FrameHeader) error {
	if frh.Stream() != 0 {
		c.lastPeerStreamID = frh.Stream()
		return c.dispatchStream(frh)
	}

	switch body := frh.Body().(type) {
	case *Settings:
		if body.IsAck() {
			return nil
		}
		c.applyPeerSettings(body)
		return c.ackSettingsAsync()
	case *WindowUpdate:
		return c.connSendWindow.Credit(body.Increment())
	case *Ping:
		if body.IsAck() {
			atomic.AddInt32(&c.unacks, -1)
			rtt := time.Since(body.SentAt())
			atomic.StoreInt64(&c.pingRTT, int64(rtt))

			c.pingMu.Lock()
			waiter := c.pingWaiter
			c.pingWaiter = nil
			c.pingMu.Unlock()
			if waiter != nil {
				waiter <- rtt
			}
			return nil
		}
		return c.replyPing(body)
	case *GoAway:
		last := body.LastStreamID()
		atomic.StoreUint32(&c.goAwayLastID, last)
		atomic.StoreUint32(&c.goAway, 1)
		if c.opts.OnGoAway != nil {
			c.opts.OnGoAway(last, body.Code(), body.Debug())
		}
		// Only streams above LastStreamID are the peer's doing; everything
		// at or below it is still expected to complete normally, so the
		// connection itself stays open for them rather than tearing down.
		c.failStreamsAbove(last, &GoAwayError{LastStreamID: last, Code: body.Code(), Debug: body.Debug()})
		return nil
	}
	return nil
}

// failStreamsAbove fails every tracked stream whose id exceeds last with
// err, leaving streams at or below last untouched so they can complete
// normally per the peer's GOAWAY.
func (c *Conn) failStreamsAbove(last uint32, err error) {
	var toFail []*Stream
	c.streams.Each(func(s *Stream) {
		if s.ID() > last {
			toFail = append(toFail, s)
		}
	})
	for _, s := range toFail {
		s.Fail(err)
		c.streams.Del(s.ID())
	}
}

func (c *Conn) ackSettingsAsync() error {
	frh := AcquireFrameHeader()
	ack := AcquireSettings()
	ack.SetAck(true)
	frh.SetBody(ack)
	c.queueOut(frh)
	return nil
}

func (c *Conn) replyPing(p *Ping) error {
	frh := AcquireFrameHeader()
	reply := AcquirePing()
	reply.SetData(p.Data())
	reply.SetAck(true)
	frh.SetBody(reply)
	c.queueOut(frh)
	return nil
}

func (c *Conn) dispatchStream(frh *FrameHeader) error {
	s := c.streams.Get(frh.Stream())
	if s == nil {
		if _, ok := frh.Body().(FrameWithHeaders); !ok {
			return nil // stream already closed locally; peer frames may race
		}
		// First frame seen for this id is a HEADERS: the peer is opening a
		// new, remotely-initiated stream.
		recvInitial := c.local.InitialWindowSize
		if recvInitial == 0 {
			recvInitial = DefaultWindowSize
		}
		sendInitial := c.remote.InitialWindowSize
		if sendInitial == 0 {
			sendInitial = DefaultWindowSize
		}
		s = NewStream(frh.Stream(), sendInitial, recvInitial)
		c.streams.Insert(s)
		s.Open()
		if c.opts.OnNewStream != nil {
			c.opts.OnNewStream(s)
		}
	}

	switch body := frh.Body().(type) {
	case FrameWithHeaders:
		s.PushHeaderBlock(body.Headers())
		if frh.Flags().Has(FlagEndStream) {
			s.HalfCloseRemote()
		}
	case *Data:
		n := uint32(body.Len())
		if credit := s.RecvWindow().Consume(n); credit > 0 {
			c.sendWindowUpdate(s.ID(), credit)
		}
		if credit := c.connRecvWindow.Consume(n); credit > 0 {
			c.sendWindowUpdate(0, credit)
		}
		if n > 0 {
			s.PushData(body.Bytes())
		}
		if frh.Flags().Has(FlagEndStream) {
			s.HalfCloseRemote()
		}
	case *WindowUpdate:
		if err := s.SendWindow().Credit(body.Increment()); err != nil {
			return err
		}
	case *RstStream:
		s.Fail(&StreamError{StreamID: s.ID(), Code: body.code})
		c.streams.Del(s.ID())
	}
	if s.State() == StreamClosed {
		c.streams.Del(s.ID())
	}
	return nil
}

func (c *Conn) sendWindowUpdate(streamID uint32, n uint32) {
	frh := AcquireFrameHeader()
	frh.SetStream(streamID)
	wu := AcquireWindowUpdate()
	wu.SetIncrement(n)
	frh.SetBody(wu)
	c.queueOut(frh)
}

// ResetStream sends RST_STREAM for s with the given error code, for a
// caller abandoning a stream before it completes.
func (c *Conn) ResetStream(s *Stream, code ErrorCode) error {
	frh := AcquireFrameHeader()
	frh.SetStream(s.ID())
	rst := AcquireRstStream()
	rst.SetCode(code)
	frh.SetBody(rst)
	c.queueOut(frh)
	s.Fail(&StreamError{StreamID: s.ID(), Code: code})
	c.streams.Del(s.ID())
	return nil
}
