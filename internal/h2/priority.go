package h2

import "sync"

var priorityPool = sync.Pool{New: func() interface{} { return &Priority{} }}

func init() {
	frameCtors[FramePriority] = func() Frame { return AcquirePriority() }
}

// Priority carries a PRIORITY frame (RFC 7540 §6.3). This codec decodes
// and re-encodes it faithfully but the connection does not act on
// priority hints; stream scheduling is FIFO.
type Priority struct {
	streamDep uint32
	exclusive bool
	weight    uint8
}

func AcquirePriority() *Priority {
	p := priorityPool.Get().(*Priority)
	p.Reset()
	return p
}

func ReleasePriority(p *Priority) { priorityPool.Put(p) }

func (p *Priority) Type() FrameType { return FramePriority }

func (p *Priority) Reset() {
	p.streamDep = 0
	p.exclusive = false
	p.weight = 0
}

func (p *Priority) CopyTo(other *Priority) {
	other.streamDep = p.streamDep
	other.exclusive = p.exclusive
	other.weight = p.weight
}

func (p *Priority) StreamDep() uint32   { return p.streamDep }
func (p *Priority) SetStreamDep(s uint32) { p.streamDep = s & (1<<31 - 1) }
func (p *Priority) Exclusive() bool     { return p.exclusive }
func (p *Priority) SetExclusive(v bool) { p.exclusive = v }
func (p *Priority) Weight() uint8       { return p.weight }
func (p *Priority) SetWeight(w uint8)   { p.weight = w }

func (p *Priority) Deserialize(frh *FrameHeader) error {
	if len(frh.payload) < 5 {
		return ErrMissingBytes
	}
	raw := bytesToUint32(frh.payload)
	p.exclusive = raw&(1<<31) != 0
	p.streamDep = raw & (1<<31 - 1)
	p.weight = frh.payload[4]
	return nil
}

func (p *Priority) Serialize(frh *FrameHeader) {
	raw := p.streamDep
	if p.exclusive {
		raw |= 1 << 31
	}
	payload := appendUint32Bytes(frh.payload[:0], raw)
	payload = append(payload, p.weight)
	frh.setPayload(payload)
}
