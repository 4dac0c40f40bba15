package h2

import "sync"

var continuationPool = sync.Pool{New: func() interface{} { return &Continuation{} }}

func init() {
	frameCtors[FrameContinuation] = func() Frame { return AcquireContinuation() }
}

// Continuation carries a CONTINUATION frame (RFC 7540 §6.10): the overflow
// of a HEADERS or PUSH_PROMISE header block fragment too large for one
// frame, or too large for the negotiated MAX_FRAME_SIZE on write.
type Continuation struct {
	endHeaders bool
	rawHeaders []byte
}

func AcquireContinuation() *Continuation {
	c := continuationPool.Get().(*Continuation)
	c.Reset()
	return c
}

func ReleaseContinuation(c *Continuation) { continuationPool.Put(c) }

func (c *Continuation) Type() FrameType { return FrameContinuation }

func (c *Continuation) Reset() {
	c.endHeaders = false
	c.rawHeaders = c.rawHeaders[:0]
}

func (c *Continuation) CopyTo(other *Continuation) {
	other.endHeaders = c.endHeaders
	other.rawHeaders = append(other.rawHeaders[:0], c.rawHeaders...)
}

func (c *Continuation) Headers() []byte      { return c.rawHeaders }
func (c *Continuation) SetHeaderBlock(b []byte) { c.rawHeaders = append(c.rawHeaders[:0], b...) }
func (c *Continuation) EndHeaders() bool     { return c.endHeaders }
func (c *Continuation) SetEndHeaders(v bool) { c.endHeaders = v }

func (c *Continuation) Deserialize(frh *FrameHeader) error {
	c.endHeaders = frh.Flags().Has(FlagEndHeaders)
	c.rawHeaders = append(c.rawHeaders[:0], frh.payload...)
	return nil
}

func (c *Continuation) Serialize(frh *FrameHeader) {
	if c.endHeaders {
		frh.SetFlags(frh.Flags().Add(FlagEndHeaders))
	}
	frh.setPayload(c.rawHeaders)
}
