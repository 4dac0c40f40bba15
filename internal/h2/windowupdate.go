package h2

import "sync"

var windowUpdatePool = sync.Pool{New: func() interface{} { return &WindowUpdate{} }}

func init() {
	frameCtors[FrameWindowUpdate] = func() Frame { return AcquireWindowUpdate() }
}

// WindowUpdate carries a WINDOW_UPDATE frame (RFC 7540 §6.9): flow-control
// credit for either a stream (Stream() != 0, set by the caller on the
// FrameHeader) or the whole connection (Stream() == 0). An increment of
// zero is rejected by Deserialize with ErrZeroIncrement, whatever the
// scope.
type WindowUpdate struct {
	increment uint32
}

func AcquireWindowUpdate() *WindowUpdate {
	w := windowUpdatePool.Get().(*WindowUpdate)
	w.Reset()
	return w
}

func ReleaseWindowUpdate(w *WindowUpdate) { windowUpdatePool.Put(w) }

func (w *WindowUpdate) Type() FrameType { return FrameWindowUpdate }

func (w *WindowUpdate) Reset() { w.increment = 0 }

func (w *WindowUpdate) CopyTo(other *WindowUpdate) { other.increment = w.increment }

func (w *WindowUpdate) Increment() uint32      { return w.increment }
func (w *WindowUpdate) SetIncrement(n uint32)  { w.increment = n }

func (w *WindowUpdate) Deserialize(frh *FrameHeader) error {
	if len(frh.payload) < 4 {
		return ErrMissingBytes
	}
	w.increment = bytesToUint32(frh.payload) & (1<<31 - 1)
	if w.increment == 0 {
		return ErrZeroIncrement
	}
	return nil
}

func (w *WindowUpdate) Serialize(frh *FrameHeader) {
	frh.setPayload(appendUint32Bytes(frh.payload[:0], w.increment))
}
