package h2

import "sync"

var goAwayPool = sync.Pool{New: func() interface{} { return &GoAway{} }}

func init() {
	frameCtors[FrameGoAway] = func() Frame { return AcquireGoAway() }
}

// GoAway carries a GOAWAY frame (RFC 7540 §6.8): the sender will accept
// no new streams beyond LastStreamID. How Conn reacts is handled
// elsewhere; this type is pure wire codec.
type GoAway struct {
	lastStreamID uint32
	code         ErrorCode
	debug        []byte
}

func AcquireGoAway() *GoAway {
	g := goAwayPool.Get().(*GoAway)
	g.Reset()
	return g
}

func ReleaseGoAway(g *GoAway) { goAwayPool.Put(g) }

func (g *GoAway) Type() FrameType { return FrameGoAway }

func (g *GoAway) Reset() {
	g.lastStreamID = 0
	g.code = 0
	g.debug = g.debug[:0]
}

func (g *GoAway) CopyTo(other *GoAway) {
	other.lastStreamID = g.lastStreamID
	other.code = g.code
	other.debug = append(other.debug[:0], g.debug...)
}

func (g *GoAway) LastStreamID() uint32       { return g.lastStreamID }
func (g *GoAway) SetLastStreamID(id uint32)  { g.lastStreamID = id & (1<<31 - 1) }
func (g *GoAway) Code() ErrorCode            { return g.code }
func (g *GoAway) SetCode(c ErrorCode)        { g.code = c }
func (g *GoAway) Debug() []byte              { return g.debug }
func (g *GoAway) SetDebug(b []byte)          { g.debug = append(g.debug[:0], b...) }

func (g *GoAway) Deserialize(frh *FrameHeader) error {
	if len(frh.payload) < 8 {
		return ErrMissingBytes
	}
	g.lastStreamID = bytesToUint32(frh.payload) & (1<<31 - 1)
	g.code = ErrorCode(bytesToUint32(frh.payload[4:]))
	if len(frh.payload) > 8 {
		g.debug = append(g.debug[:0], frh.payload[8:]...)
	}
	return nil
}

func (g *GoAway) Serialize(frh *FrameHeader) {
	payload := appendUint32Bytes(frh.payload[:0], g.lastStreamID)
	payload = appendUint32Bytes(payload, uint32(g.code))
	payload = append(payload, g.debug...)
	frh.setPayload(payload)
}
