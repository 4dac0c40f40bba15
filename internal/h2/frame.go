// Package h2 implements the HTTP/2 frame codec, stream state machine,
// flow controller and connection multiplexer.
//
// It uses a FrameHeader/Frame split: FrameHeader owns the 9-byte wire
// header plus raw payload bytes, and each concrete Frame type (Data,
// Headers, Settings, ...) knows how to Serialize/Deserialize itself
// against that payload.
package h2

import (
	"bufio"
	"fmt"
	"io"
	"sync"
)

// FrameType identifies an HTTP/2 frame type.
//
// https://httpwg.org/specs/rfc7540.html#FrameTypes
type FrameType uint8

const (
	FrameData         FrameType = 0x0
	FrameHeaders      FrameType = 0x1
	FramePriority     FrameType = 0x2
	FrameResetStream  FrameType = 0x3
	FrameSettings     FrameType = 0x4
	FramePushPromise  FrameType = 0x5
	FramePing         FrameType = 0x6
	FrameGoAway       FrameType = 0x7
	FrameWindowUpdate FrameType = 0x8
	FrameContinuation FrameType = 0x9

	minFrameType = FrameData
	maxFrameType = FrameContinuation
)

func (t FrameType) String() string {
	names := [...]string{
		FrameData: "DATA", FrameHeaders: "HEADERS", FramePriority: "PRIORITY",
		FrameResetStream: "RST_STREAM", FrameSettings: "SETTINGS",
		FramePushPromise: "PUSH_PROMISE", FramePing: "PING", FrameGoAway: "GOAWAY",
		FrameWindowUpdate: "WINDOW_UPDATE", FrameContinuation: "CONTINUATION",
	}
	if int(t) < len(names) && names[t] != "" {
		return names[t]
	}
	return fmt.Sprintf("UNKNOWN(0x%x)", uint8(t))
}

// FrameFlags are the 8 per-frame flag bits. Meaning is frame-type specific;
// only the flags actually used by this codec are named.
type FrameFlags uint8

const (
	FlagAck        FrameFlags = 0x1
	FlagEndStream  FrameFlags = 0x1
	FlagEndHeaders FrameFlags = 0x4
	FlagPadded     FrameFlags = 0x8
	FlagPriority   FrameFlags = 0x20
)

func (f FrameFlags) Has(flag FrameFlags) bool { return f&flag == flag }
func (f FrameFlags) Add(flag FrameFlags) FrameFlags { return f | flag }
func (f FrameFlags) Del(flag FrameFlags) FrameFlags { return f &^ flag }

// DefaultFrameSize is the size of the fixed 9-byte frame header.
const DefaultFrameSize = 9

// defaultMaxLen is the default SETTINGS_MAX_FRAME_SIZE, used until the peer
// negotiates a different value.
const defaultMaxLen = 1 << 14

// Preface is the client connection preface (RFC 7540 §3.5).
var Preface = []byte("PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n")

// Frame is the per-type payload codec. A Frame instance is reused across
// reads via FrameHeader's pool and MUST NOT be shared across goroutines.
type Frame interface {
	Type() FrameType
	Reset()
	// Deserialize populates the frame from frh's decoded header and raw
	// payload bytes.
	Deserialize(frh *FrameHeader) error
	// Serialize writes the frame's fields into frh's payload and flags,
	// ready for FrameHeader.WriteTo.
	Serialize(frh *FrameHeader)
}

// FrameWithHeaders is implemented by frame types that carry a header block
// fragment subject to CONTINUATION assembly (HEADERS and PUSH_PROMISE).
type FrameWithHeaders interface {
	Headers() []byte
}

var frameHeaderPool = sync.Pool{
	New: func() interface{} { return &FrameHeader{} },
}

// FrameHeader is a decoded HTTP/2 frame: the 9-byte header plus whichever
// concrete Frame owns the payload. Frames with stream id 0 are
// connection-scoped ; all others are stream-scoped.
type FrameHeader struct {
	length int
	kind   FrameType
	flags  FrameFlags
	stream uint32

	maxLen uint32

	rawHeader [DefaultFrameSize]byte
	payload   []byte

	fr Frame
}

// AcquireFrameHeader returns a reset FrameHeader from the pool.
func AcquireFrameHeader() *FrameHeader {
	frh := frameHeaderPool.Get().(*FrameHeader)
	frh.Reset()
	return frh
}

// ReleaseFrameHeader releases frh's body frame (if any) and returns frh to
// the pool. Do not use frh after calling this.
func ReleaseFrameHeader(frh *FrameHeader) {
	if frh.fr != nil {
		ReleaseFrame(frh.fr)
	}
	frameHeaderPool.Put(frh)
}

// Reset clears frh for reuse.
func (frh *FrameHeader) Reset() {
	frh.kind = 0
	frh.flags = 0
	frh.stream = 0
	frh.length = 0
	frh.maxLen = defaultMaxLen
	frh.fr = nil
	frh.payload = frh.payload[:0]
}

func (frh *FrameHeader) Type() FrameType     { return frh.kind }
func (frh *FrameHeader) Flags() FrameFlags   { return frh.flags }
func (frh *FrameHeader) SetFlags(f FrameFlags) { frh.flags = f }
func (frh *FrameHeader) Stream() uint32      { return frh.stream }

// SetStream sets the stream id. The reserved high bit is preserved as-is so
// a caller that intentionally sets it (e.g. test fixtures) is not silently
// corrected.
func (frh *FrameHeader) SetStream(stream uint32) { frh.stream = stream }

// Len returns the payload length as read from the wire.
func (frh *FrameHeader) Len() int { return frh.length }

// MaxLen returns the negotiated SETTINGS_MAX_FRAME_SIZE ceiling for reads.
func (frh *FrameHeader) MaxLen() uint32 { return frh.maxLen }

// SetMaxLen sets the ceiling used by checkLen on the next Deserialize.
func (frh *FrameHeader) SetMaxLen(n uint32) { frh.maxLen = n }

// Body returns the concrete frame payload decoder/encoder.
func (frh *FrameHeader) Body() Frame { return frh.fr }

// SetBody attaches fr as frh's payload handler and sets the frame type from
// it.
func (frh *FrameHeader) SetBody(fr Frame) {
	if fr == nil {
		panic("h2: FrameHeader.SetBody called with nil Frame")
	}
	frh.kind = fr.Type()
	frh.fr = fr
}

func (frh *FrameHeader) setPayload(b []byte) {
	frh.payload = append(frh.payload[:0], b...)
}

func (frh *FrameHeader) checkLen() error {
	if frh.maxLen != 0 && frh.length > int(frh.maxLen) {
		return ErrPayloadExceeds
	}
	return nil
}

func (frh *FrameHeader) parseValues(header []byte) {
	frh.length = int(bytesToUint24(header[:3]))
	frh.kind = FrameType(header[3])
	frh.flags = FrameFlags(header[4])
	frh.stream = bytesToUint32(header[5:]) & (1<<31 - 1)
}

func (frh *FrameHeader) parseHeader(header []byte) {
	uint24ToBytes(header[:3], uint32(frh.length))
	header[3] = byte(frh.kind)
	header[4] = byte(frh.flags)
	uint32ToBytes(header[5:], frh.stream)
}

// ReadFrameFrom reads one frame (header + payload) from br using the
// default max frame size.
func ReadFrameFrom(br *bufio.Reader) (*FrameHeader, error) {
	return ReadFrameFromWithSize(br, defaultMaxLen)
}

// ReadFrameFromWithSize reads one frame from br, rejecting any frame whose
// declared length exceeds max, validating frame length against the
// peer's advertised MAX_FRAME_SIZE.
func ReadFrameFromWithSize(br *bufio.Reader, max uint32) (*FrameHeader, error) {
	frh := AcquireFrameHeader()
	frh.maxLen = max

	_, err := frh.readFrom(br)
	if err != nil {
		ReleaseFrameHeader(frh)
		return nil, err
	}

	return frh, nil
}

func (frh *FrameHeader) readFrom(br *bufio.Reader) (int64, error) {
	header, err := br.Peek(DefaultFrameSize)
	if err != nil {
		return 0, err
	}
	if _, err := br.Discard(DefaultFrameSize); err != nil {
		return 0, err
	}

	rn := int64(DefaultFrameSize)

	frh.parseValues(header)
	if err := frh.checkLen(); err != nil {
		// drain the oversized payload so the stream stays byte-aligned for
		// the GOAWAY the caller will send.
		io.CopyN(io.Discard, br, int64(frh.length))
		return rn, err
	}

	// Unknown frame types are forward-compat no-ops :
	// drain the payload and hand back a frame with a nil body.
	if frh.kind > maxFrameType {
		if _, err := io.CopyN(io.Discard, br, int64(frh.length)); err != nil {
			return rn, err
		}
		return rn + int64(frh.length), nil
	}

	frh.fr = AcquireFrame(frh.kind)

	if frh.length > 0 {
		frh.payload = resize(frh.payload, frh.length)
		n, err := io.ReadFull(br, frh.payload)
		rn += int64(n)
		if err != nil {
			return rn, err
		}
	} else {
		frh.payload = frh.payload[:0]
	}

	return rn, frh.fr.Deserialize(frh)
}

// WriteTo serializes frh's body (if any) and writes the header+payload to
// w. Each call is a single, atomic frame write from the caller's point of
// view: it is the caller's job to serialize calls to a shared writer.
func (frh *FrameHeader) WriteTo(w *bufio.Writer) (int64, error) {
	if frh.fr != nil {
		frh.fr.Serialize(frh)
	}

	frh.length = len(frh.payload)
	frh.parseHeader(frh.rawHeader[:])

	n, err := w.Write(frh.rawHeader[:])
	wb := int64(n)
	if err != nil {
		return wb, err
	}

	n, err = w.Write(frh.payload)
	wb += int64(n)
	return wb, err
}

// AcquireFrame returns a reset concrete Frame implementation for t from its
// type-specific pool.
func AcquireFrame(t FrameType) Frame {
	ctor, ok := frameCtors[t]
	if !ok {
		panic(fmt.Sprintf("h2: no constructor registered for frame type %s", t))
	}
	return ctor()
}

// ReleaseFrame returns fr to its type-specific pool.
func ReleaseFrame(fr Frame) {
	fr.Reset()
	releaseFrame(fr)
}
