package h2

import (
	"encoding/binary"
	"sync"
	"time"
)

var pingPool = sync.Pool{New: func() interface{} { return &Ping{} }}

func init() {
	frameCtors[FramePing] = func() Frame { return AcquirePing() }
}

// Ping carries a PING frame (RFC 7540 §6.7): 8 opaque bytes, echoed back
// with FlagAck set by the receiver. Conn uses the opaque payload to carry
// a send timestamp so it can report RTT.
type Ping struct {
	ack  bool
	data [8]byte
}

func AcquirePing() *Ping {
	p := pingPool.Get().(*Ping)
	p.Reset()
	return p
}

func ReleasePing(p *Ping) { pingPool.Put(p) }

func (p *Ping) Type() FrameType { return FramePing }

func (p *Ping) Reset() {
	p.ack = false
	p.data = [8]byte{}
}

func (p *Ping) CopyTo(other *Ping) {
	other.ack = p.ack
	other.data = p.data
}

func (p *Ping) IsAck() bool   { return p.ack }
func (p *Ping) SetAck(v bool) { p.ack = v }
func (p *Ping) Data() []byte  { return p.data[:] }
func (p *Ping) SetData(b []byte) { copy(p.data[:], b) }

// SetCurrentTime stamps the payload with time.Now for an RTT measurement.
func (p *Ping) SetCurrentTime() {
	binary.BigEndian.PutUint64(p.data[:], uint64(time.Now().UnixNano()))
}

// SentAt decodes a timestamp written by SetCurrentTime.
func (p *Ping) SentAt() time.Time {
	return time.Unix(0, int64(binary.BigEndian.Uint64(p.data[:])))
}

func (p *Ping) Deserialize(frh *FrameHeader) error {
	if len(frh.payload) < 8 {
		return ErrMissingBytes
	}
	p.ack = frh.Flags().Has(FlagAck)
	copy(p.data[:], frh.payload)
	return nil
}

func (p *Ping) Serialize(frh *FrameHeader) {
	if p.ack {
		frh.SetFlags(frh.Flags().Add(FlagAck))
	}
	frh.setPayload(p.data[:])
}
