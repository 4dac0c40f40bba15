package h2

import (
	"crypto/rand"

	"github.com/valyala/fastrand"
)

func uint24ToBytes(b []byte, n uint32) {
	_ = b[2]
	b[0] = byte(n >> 16)
	b[1] = byte(n >> 8)
	b[2] = byte(n)
}

func bytesToUint24(b []byte) uint32 {
	_ = b[2]
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func uint32ToBytes(b []byte, n uint32) {
	_ = b[3]
	b[0] = byte(n >> 24)
	b[1] = byte(n >> 16)
	b[2] = byte(n >> 8)
	b[3] = byte(n)
}

func bytesToUint32(b []byte) uint32 {
	_ = b[3]
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func appendUint32Bytes(dst []byte, n uint32) []byte {
	return append(dst, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
}

func resize(b []byte, neededLen int) []byte {
	b = b[:cap(b)]
	if n := neededLen - len(b); n > 0 {
		b = append(b, make([]byte, n)...)
	}
	return b[:neededLen]
}

// cutPadding strips the PADDED flag's leading pad-length byte and trailing
// padding bytes from payload, returning the remaining content.
func cutPadding(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrMissingBytes
	}
	pad := int(payload[0])
	if pad >= len(payload) {
		return nil, ErrBadPadding
	}
	return payload[1 : len(payload)-pad], nil
}

// addPadding prefixes b with a random-length pad-length byte and trailing
// random padding, grounded on http2utils.AddPadding.
func addPadding(b []byte) []byte {
	n := int(fastrand.Uint32n(256-9)) + 9
	out := make([]byte, 0, len(b)+n+1)
	out = append(out, byte(n))
	out = append(out, b...)
	padStart := len(out)
	out = resize(out, len(out)+n)
	rand.Read(out[padStart:])
	return out
}
