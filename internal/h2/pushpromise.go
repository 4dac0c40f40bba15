package h2

import "sync"

var pushPromisePool = sync.Pool{New: func() interface{} { return &PushPromise{} }}

func init() {
	frameCtors[FramePushPromise] = func() Frame { return AcquirePushPromise() }
}

// PushPromise carries a PUSH_PROMISE frame (RFC 7540 §6.6). Push support
// is intake-only: the Conn decodes it into a reserved stream with
// ReservedRemote state and hands it to the caller via the push-promise
// callback; it is never the active party that pushes.
type PushPromise struct {
	padded       bool
	endHeaders   bool
	promisedID   uint32
	rawHeaders   []byte
}

func AcquirePushPromise() *PushPromise {
	p := pushPromisePool.Get().(*PushPromise)
	p.Reset()
	return p
}

func ReleasePushPromise(p *PushPromise) { pushPromisePool.Put(p) }

func (p *PushPromise) Type() FrameType { return FramePushPromise }

func (p *PushPromise) Reset() {
	p.padded = false
	p.endHeaders = false
	p.promisedID = 0
	p.rawHeaders = p.rawHeaders[:0]
}

func (p *PushPromise) CopyTo(other *PushPromise) {
	other.padded = p.padded
	other.endHeaders = p.endHeaders
	other.promisedID = p.promisedID
	other.rawHeaders = append(other.rawHeaders[:0], p.rawHeaders...)
}

func (p *PushPromise) Headers() []byte       { return p.rawHeaders }
func (p *PushPromise) PromisedID() uint32    { return p.promisedID }
func (p *PushPromise) SetPromisedID(id uint32) { p.promisedID = id & (1<<31 - 1) }
func (p *PushPromise) EndHeaders() bool      { return p.endHeaders }
func (p *PushPromise) SetEndHeaders(v bool)  { p.endHeaders = v }

func (p *PushPromise) Deserialize(frh *FrameHeader) error {
	payload := frh.payload
	if frh.Flags().Has(FlagPadded) {
		var err error
		payload, err = cutPadding(payload)
		if err != nil {
			return err
		}
	}
	if len(payload) < 4 {
		return ErrMissingBytes
	}

	p.promisedID = bytesToUint32(payload) & (1<<31 - 1)
	p.rawHeaders = append(p.rawHeaders[:0], payload[4:]...)
	p.endHeaders = frh.Flags().Has(FlagEndHeaders)

	return nil
}

func (p *PushPromise) Serialize(frh *FrameHeader) {
	if p.endHeaders {
		frh.SetFlags(frh.Flags().Add(FlagEndHeaders))
	}
	payload := appendUint32Bytes(frh.payload[:0], p.promisedID)
	payload = append(payload, p.rawHeaders...)
	frh.setPayload(payload)
}
