package h2

import "sync"

var rstStreamPool = sync.Pool{New: func() interface{} { return &RstStream{} }}

func init() {
	frameCtors[FrameResetStream] = func() Frame { return AcquireRstStream() }
}

// RstStream carries an RST_STREAM frame (RFC 7540 §6.4): immediate
// termination of a stream, in either direction, with an error code
// retained on the Stream.
type RstStream struct {
	code ErrorCode
}

func AcquireRstStream() *RstStream {
	r := rstStreamPool.Get().(*RstStream)
	r.Reset()
	return r
}

func ReleaseRstStream(r *RstStream) { rstStreamPool.Put(r) }

func (r *RstStream) Type() FrameType { return FrameResetStream }

func (r *RstStream) Reset() { r.code = 0 }

func (r *RstStream) CopyTo(other *RstStream) { other.code = r.code }

func (r *RstStream) Code() ErrorCode     { return r.code }
func (r *RstStream) SetCode(c ErrorCode) { r.code = c }

func (r *RstStream) Deserialize(frh *FrameHeader) error {
	if len(frh.payload) < 4 {
		return ErrMissingBytes
	}
	r.code = ErrorCode(bytesToUint32(frh.payload))
	return nil
}

func (r *RstStream) Serialize(frh *FrameHeader) {
	frh.setPayload(appendUint32Bytes(frh.payload[:0], uint32(r.code)))
}
