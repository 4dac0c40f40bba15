package h2

// frameCtors maps a wire frame type to a constructor returning a pooled,
// reset Frame. Each concrete frame type registers itself from an init() in
// its own file.
var frameCtors = map[FrameType]func() Frame{}

// releaseFrame returns fr to its type-specific pool. Centralized here so
// FrameHeader.Reset/ReleaseFrameHeader don't need a type switch per call
// site.
func releaseFrame(fr Frame) {
	switch f := fr.(type) {
	case *Data:
		ReleaseData(f)
	case *Headers:
		ReleaseHeaders(f)
	case *Priority:
		ReleasePriority(f)
	case *RstStream:
		ReleaseRstStream(f)
	case *Settings:
		ReleaseSettings(f)
	case *PushPromise:
		ReleasePushPromise(f)
	case *Ping:
		ReleasePing(f)
	case *GoAway:
		ReleaseGoAway(f)
	case *WindowUpdate:
		ReleaseWindowUpdate(f)
	case *Continuation:
		ReleaseContinuation(f)
	}
}
