package h2

import "sync"

var headersPool = sync.Pool{New: func() interface{} { return &Headers{} }}

func init() {
	frameCtors[FrameHeaders] = func() Frame { return AcquireHeaders() }
}

// Headers carries a HEADERS frame: the header block fragment for a
// request, response, informational (1xx), or trailer block, depending on
// stream state. CONTINUATION frames extend rawHeaders when END_HEADERS
// is not set on this frame.
type Headers struct {
	padded     bool
	stream     uint32
	weight     uint8
	endStream  bool
	endHeaders bool
	rawHeaders []byte
}

// AcquireHeaders returns a reset Headers from the pool.
func AcquireHeaders() *Headers {
	h := headersPool.Get().(*Headers)
	h.Reset()
	return h
}

// ReleaseHeaders returns h to the pool.
func ReleaseHeaders(h *Headers) { headersPool.Put(h) }

func (h *Headers) Type() FrameType { return FrameHeaders }

func (h *Headers) Reset() {
	h.padded = false
	h.stream = 0
	h.weight = 0
	h.endStream = false
	h.endHeaders = false
	h.rawHeaders = h.rawHeaders[:0]
}

func (h *Headers) CopyTo(other *Headers) {
	other.padded = h.padded
	other.stream = h.stream
	other.weight = h.weight
	other.endStream = h.endStream
	other.endHeaders = h.endHeaders
	other.rawHeaders = append(other.rawHeaders[:0], h.rawHeaders...)
}

// Headers returns the (possibly incomplete, pending CONTINUATION) header
// block fragment bytes.
func (h *Headers) Headers() []byte { return h.rawHeaders }

// SetHeaderBlock replaces the raw header block fragment.
func (h *Headers) SetHeaderBlock(b []byte) { h.rawHeaders = append(h.rawHeaders[:0], b...) }

// AppendHeaderBlock appends b to the raw header block fragment, used both
// when encoding (headerlist.Encoder.AppendField) and when assembling
// CONTINUATION frames on read.
func (h *Headers) AppendHeaderBlock(b []byte) { h.rawHeaders = append(h.rawHeaders, b...) }

func (h *Headers) EndStream() bool     { return h.endStream }
func (h *Headers) SetEndStream(v bool) { h.endStream = v }
func (h *Headers) EndHeaders() bool    { return h.endHeaders }
func (h *Headers) SetEndHeaders(v bool) { h.endHeaders = v }
func (h *Headers) Stream() uint32      { return h.stream }
func (h *Headers) SetStream(s uint32)  { h.stream = s }
func (h *Headers) Weight() uint8       { return h.weight }
func (h *Headers) SetWeight(w uint8)   { h.weight = w }
func (h *Headers) Padded() bool        { return h.padded }
func (h *Headers) SetPadded(v bool)    { h.padded = v }

func (h *Headers) Deserialize(frh *FrameHeader) error {
	flags := frh.Flags()
	payload := frh.payload

	if flags.Has(FlagPadded) {
		var err error
		payload, err = cutPadding(payload)
		if err != nil {
			return err
		}
	}

	if flags.Has(FlagPriority) {
		if len(payload) < 5 {
			return ErrMissingBytes
		}
		h.stream = bytesToUint32(payload) & (1<<31 - 1)
		h.weight = payload[4]
		payload = payload[5:]
	}

	h.endStream = flags.Has(FlagEndStream)
	h.endHeaders = flags.Has(FlagEndHeaders)
	h.rawHeaders = append(h.rawHeaders[:0], payload...)

	return nil
}

func (h *Headers) Serialize(frh *FrameHeader) {
	if h.endStream {
		frh.SetFlags(frh.Flags().Add(FlagEndStream))
	}
	if h.endHeaders {
		frh.SetFlags(frh.Flags().Add(FlagEndHeaders))
	}

	payload := h.rawHeaders
	if h.stream > 0 && h.weight > 0 {
		frh.SetFlags(frh.Flags().Add(FlagPriority))
		prefix := make([]byte, 5)
		uint32ToBytes(prefix, h.stream)
		prefix[4] = h.weight
		payload = append(prefix, payload...)
	}
	if h.padded {
		frh.SetFlags(frh.Flags().Add(FlagPadded))
		payload = addPadding(payload)
	}

	frh.setPayload(payload)
}
