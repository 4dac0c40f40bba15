package h2

import "sync"

// Default/limit values from RFC 7540 §6.5.2 and §11.3.
const (
	DefaultHeaderTableSize   uint32 = 4096
	DefaultConcurrentStreams uint32 = 100
	DefaultWindowSize        uint32 = 1<<16 - 1
	DefaultMaxFrameSize      uint32 = 1 << 14

	MaxWindowSize uint32 = 1<<31 - 1
	MaxFrameSizeLimit uint32 = 1<<24 - 1
)

// Setting identifiers (RFC 7540 §6.5.2).
const (
	SettingHeaderTableSize      uint16 = 0x1
	SettingEnablePush           uint16 = 0x2
	SettingMaxConcurrentStreams uint16 = 0x3
	SettingInitialWindowSize    uint16 = 0x4
	SettingMaxFrameSize         uint16 = 0x5
	SettingMaxHeaderListSize    uint16 = 0x6
)

var settingsPool = sync.Pool{
	New: func() interface{} {
		s := &Settings{}
		s.setDefaults()
		return s
	},
}

func init() {
	frameCtors[FrameSettings] = func() Frame { return AcquireSettings() }
}

// Settings is a humanized view of a SETTINGS frame (RFC 7540 §6.5): the
// connection-scoped parameters each endpoint advertises to the other.
// Applying each field has side effects on the owning Conn (HPACK table
// size, flow-control windows, writer segmentation, concurrent-stream
// ceiling) handled by Conn.applyPeerSettings and the Conn methods that
// read the peer's settings, not by this type.
type Settings struct {
	ack bool

	HeaderTableSize      uint32
	DisablePush          bool
	MaxConcurrentStreams uint32
	InitialWindowSize    uint32
	MaxFrameSize         uint32
	MaxHeaderListSize    uint32
}

// AcquireSettings returns a Settings with RFC defaults from the pool.
func AcquireSettings() *Settings {
	s := settingsPool.Get().(*Settings)
	s.Reset()
	return s
}

// ReleaseSettings returns s to the pool.
func ReleaseSettings(s *Settings) { settingsPool.Put(s) }

func (s *Settings) Type() FrameType { return FrameSettings }

func (s *Settings) setDefaults() {
	s.HeaderTableSize = DefaultHeaderTableSize
	s.MaxConcurrentStreams = DefaultConcurrentStreams
	s.InitialWindowSize = DefaultWindowSize
	s.MaxFrameSize = DefaultMaxFrameSize
	s.DisablePush = false
	s.MaxHeaderListSize = 0
	s.ack = false
}

func (s *Settings) Reset() { s.setDefaults() }

func (s *Settings) CopyTo(other *Settings) {
	other.ack = s.ack
	other.HeaderTableSize = s.HeaderTableSize
	other.DisablePush = s.DisablePush
	other.MaxConcurrentStreams = s.MaxConcurrentStreams
	other.InitialWindowSize = s.InitialWindowSize
	other.MaxFrameSize = s.MaxFrameSize
	other.MaxHeaderListSize = s.MaxHeaderListSize
}

func (s *Settings) IsAck() bool   { return s.ack }
func (s *Settings) SetAck(v bool) { s.ack = v }

func (s *Settings) Deserialize(frh *FrameHeader) error {
	s.ack = frh.Flags().Has(FlagAck)
	if s.ack {
		return nil
	}
	if len(frh.payload)%6 != 0 {
		return ErrMissingBytes
	}
	for i := 0; i+6 <= len(frh.payload); i += 6 {
		b := frh.payload[i : i+6]
		key := uint16(b[0])<<8 | uint16(b[1])
		value := bytesToUint32(b[2:])
		switch key {
		case SettingHeaderTableSize:
			s.HeaderTableSize = value
		case SettingEnablePush:
			s.DisablePush = value == 0
		case SettingMaxConcurrentStreams:
			s.MaxConcurrentStreams = value
		case SettingInitialWindowSize:
			s.InitialWindowSize = value
		case SettingMaxFrameSize:
			s.MaxFrameSize = value
		case SettingMaxHeaderListSize:
			s.MaxHeaderListSize = value
		}
	}
	return nil
}

func (s *Settings) Serialize(frh *FrameHeader) {
	if s.ack {
		frh.SetFlags(frh.Flags().Add(FlagAck))
		frh.setPayload(nil)
		return
	}

	payload := frh.payload[:0]
	payload = appendSetting(payload, SettingHeaderTableSize, s.HeaderTableSize)
	push := uint32(1)
	if s.DisablePush {
		push = 0
	}
	payload = appendSetting(payload, SettingEnablePush, push)
	payload = appendSetting(payload, SettingMaxConcurrentStreams, s.MaxConcurrentStreams)
	payload = appendSetting(payload, SettingInitialWindowSize, s.InitialWindowSize)
	payload = appendSetting(payload, SettingMaxFrameSize, s.MaxFrameSize)
	if s.MaxHeaderListSize != 0 {
		payload = appendSetting(payload, SettingMaxHeaderListSize, s.MaxHeaderListSize)
	}

	frh.setPayload(payload)
}

func appendSetting(dst []byte, key uint16, value uint32) []byte {
	dst = append(dst, byte(key>>8), byte(key))
	return appendUint32Bytes(dst, value)
}
