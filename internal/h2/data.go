package h2

import "sync"

var dataPool = sync.Pool{New: func() interface{} { return &Data{} }}

func init() {
	frameCtors[FrameData] = func() Frame { return AcquireData() }
}

// Data carries a DATA frame payload (RFC 7540 §6.1). DATA frames may carry
// END_STREAM and PADDED flags; an empty DATA frame with END_STREAM set is
// valid and,, must not trigger a WINDOW_UPDATE.
type Data struct {
	endStream bool
	padded    bool
	b         []byte
}

// AcquireData returns a reset Data from the pool.
func AcquireData() *Data {
	d := dataPool.Get().(*Data)
	d.Reset()
	return d
}

// ReleaseData returns d to the pool.
func ReleaseData(d *Data) { dataPool.Put(d) }

func (d *Data) Type() FrameType { return FrameData }

func (d *Data) Reset() {
	d.endStream = false
	d.padded = false
	d.b = d.b[:0]
}

func (d *Data) CopyTo(other *Data) {
	other.endStream = d.endStream
	other.padded = d.padded
	other.b = append(other.b[:0], d.b...)
}

func (d *Data) EndStream() bool          { return d.endStream }
func (d *Data) SetEndStream(v bool)      { d.endStream = v }
func (d *Data) Padded() bool             { return d.padded }
func (d *Data) SetPadded(v bool)         { d.padded = v }
func (d *Data) Bytes() []byte            { return d.b }
func (d *Data) Len() int                 { return len(d.b) }
func (d *Data) SetData(b []byte)         { d.b = append(d.b[:0], b...) }
func (d *Data) Append(b []byte)          { d.b = append(d.b, b...) }

func (d *Data) Deserialize(frh *FrameHeader) error {
	payload := frh.payload
	if frh.Flags().Has(FlagPadded) {
		var err error
		payload, err = cutPadding(payload)
		if err != nil {
			return err
		}
	}
	d.endStream = frh.Flags().Has(FlagEndStream)
	d.b = append(d.b[:0], payload...)
	return nil
}

func (d *Data) Serialize(frh *FrameHeader) {
	if d.endStream {
		frh.SetFlags(frh.Flags().Add(FlagEndStream))
	}
	payload := d.b
	if d.padded {
		frh.SetFlags(frh.Flags().Add(FlagPadded))
		payload = addPadding(payload)
	}
	frh.setPayload(payload)
}
