package h2

// Well-known pseudo/regular header name byte slices.
var (
	StringAuthority     = []byte(":authority")
	StringMethod        = []byte(":method")
	StringPath          = []byte(":path")
	StringScheme        = []byte(":scheme")
	StringStatus        = []byte(":status")
	StringContentLength = []byte("content-length")
	StringContentType   = []byte("content-type")
	StringUserAgent     = []byte("user-agent")
)

// staticEntry is a (name, value) pair addressable by a fixed HPACK static
// table index (RFC 7541 Appendix A). Only the entries this codec actually
// emits or needs to recognize are populated; Non-goals this
// is a "known pseudo-headers" contract, not a full compression table.
type staticEntry struct {
	index uint64
	name  string
	value string
}

var staticTable = []staticEntry{
	{1, ":authority", ""},
	{2, ":method", "GET"},
	{3, ":method", "POST"},
	{4, ":path", "/"},
	{5, ":path", "/index.html"},
	{6, ":scheme", "http"},
	{7, ":scheme", "https"},
	{8, ":status", "200"},
	{9, ":status", "204"},
	{10, ":status", "206"},
	{11, ":status", "304"},
	{12, ":status", "400"},
	{13, ":status", "404"},
	{14, ":status", "500"},
	{15, "accept-charset", ""},
	{16, "accept-encoding", "gzip, deflate"},
	{28, "content-length", ""},
	{31, "content-type", ""},
	{60, "via", ""},
}

func staticNameIndex(name []byte) uint64 {
	for _, e := range staticTable {
		if e.name == string(name) {
			return e.index
		}
	}
	return 0
}

func staticLookup(index uint64) (staticEntry, bool) {
	for _, e := range staticTable {
		if e.index == index {
			return e, true
		}
	}
	return staticEntry{}, false
}

// ToLower lower-cases b in place and returns it (RFC 7540 §8.1.2).
func ToLower(b []byte) []byte {
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return b
}

// HeaderCodec is the connection-scoped header list codec: it turns an
// ordered list of HeaderField into wire bytes and back. No Huffman coding
// and no dynamic table are implemented; the HPACK context is reduced to
// the literal-representation subset of RFC 7541 plus the static table,
// which is enough to produce and consume a valid ordered (name, value)
// list with known pseudo-headers recognized.
//
// A HeaderCodec instance is owned by one Conn and shared by its encode and
// decode sides,  ("a stateful HPACK context shared
// across the connection").
type HeaderCodec struct {
	maxTableSize uint32
}

// NewHeaderCodec returns a codec with the RFC default header table size.
func NewHeaderCodec() *HeaderCodec {
	return &HeaderCodec{maxTableSize: DefaultHeaderTableSize}
}

// SetMaxTableSize applies a peer's HEADER_TABLE_SIZE setting. Since no
// dynamic table is kept, this is bookkeeping only (so callers reading it
// back, e.g. diagnostics, see the negotiated value).
func (c *HeaderCodec) SetMaxTableSize(n uint32) { c.maxTableSize = n }

// AppendField encodes hf onto dst using a literal representation: an
// indexed name from the static table when known, else a literal name; the
// value is always literal. "neverIndexed" marks header fields that must
// never be stored in an intermediary's dynamic table (RFC 7541 §6.2.3) —
// used for sensitive fields such as cookies/authorization.
func (c *HeaderCodec) AppendField(dst []byte, hf *HeaderField, neverIndexed bool) []byte {
	name := hf.NameBytes()
	if idx := staticNameIndex(name); idx != 0 {
		dst = appendLiteralIndexedName(dst, idx, hf.ValueBytes(), neverIndexed)
	} else {
		dst = appendLiteralNewName(dst, name, hf.ValueBytes(), neverIndexed)
	}
	return dst
}

// Next decodes one header field representation from b into hf, returning
// the remaining bytes.
func (c *HeaderCodec) Next(hf *HeaderField, b []byte) ([]byte, error) {
	if len(b) == 0 {
		return b, ErrMissingBytes
	}

	first := b[0]
	switch {
	case first&0xc0 == 0x40: // literal with incremental indexing, 6-bit prefix
		return decodeLiteral(hf, b, 6)
	case first&0xf0 == 0x00: // literal without indexing, 4-bit prefix
		return decodeLiteral(hf, b, 4)
	case first&0xf0 == 0x10: // literal never indexed, 4-bit prefix
		rest, err := decodeLiteral(hf, b, 4)
		hf.SetSensitive(true)
		return rest, err
	default:
		return decodeLiteral(hf, b, 4)
	}
}

func appendLiteralIndexedName(dst []byte, idx uint64, value []byte, neverIndexed bool) []byte {
	prefix := byte(0x40)
	if neverIndexed {
		prefix = 0x10
	}
	dst = appendInt(dst, prefix, idx, prefixBitsFor(prefix))
	dst = appendString(dst, value)
	return dst
}

func appendLiteralNewName(dst []byte, name, value []byte, neverIndexed bool) []byte {
	prefix := byte(0x40)
	if neverIndexed {
		prefix = 0x10
	}
	dst = appendInt(dst, prefix, 0, prefixBitsFor(prefix))
	dst = appendString(dst, ToLower(append([]byte(nil), name...)))
	dst = appendString(dst, value)
	return dst
}

func prefixBitsFor(prefix byte) int {
	if prefix == 0x40 {
		return 6
	}
	return 4
}

// appendInt encodes n using HPACK's prefix-coded integer representation
// (RFC 7541 §5.1), OR'd onto the given prefix byte's upper bits.
func appendInt(dst []byte, prefixByte byte, n uint64, bits int) []byte {
	max := uint64(1<<bits) - 1
	if n < max {
		return append(dst, prefixByte|byte(n))
	}
	dst = append(dst, prefixByte|byte(max))
	n -= max
	for n >= 128 {
		dst = append(dst, byte(n%128+128))
		n /= 128
	}
	return append(dst, byte(n))
}

func decodeInt(b []byte, bits int) (uint64, []byte, error) {
	if len(b) == 0 {
		return 0, b, ErrMissingBytes
	}
	mask := uint64(1<<bits) - 1
	n := uint64(b[0]) & mask
	b = b[1:]
	if n < mask {
		return n, b, nil
	}
	m := uint64(0)
	for i := 0; ; i++ {
		if len(b) == 0 {
			return 0, b, ErrMissingBytes
		}
		c := b[0]
		b = b[1:]
		n += uint64(c&0x7f) << (7 * i)
		if c&0x80 == 0 {
			break
		}
	}
	_ = m
	return n, b, nil
}

// appendString writes a literal string without Huffman coding: a 7-bit
// length prefix (high bit 0 = not Huffman-encoded) followed by raw bytes.
func appendString(dst []byte, s []byte) []byte {
	dst = appendInt(dst, 0x00, uint64(len(s)), 7)
	return append(dst, s...)
}

func decodeString(b []byte) ([]byte, []byte, error) {
	if len(b) == 0 {
		return nil, b, ErrMissingBytes
	}
	huff := b[0]&0x80 != 0
	n, rest, err := decodeInt(b, 7)
	if err != nil {
		return nil, rest, err
	}
	if uint64(len(rest)) < n {
		return nil, rest, ErrMissingBytes
	}
	s := rest[:n]
	rest = rest[n:]
	if huff {
		// Huffman decoding is out of scope ; this
		// codec never emits Huffman-coded strings, so receiving one here
		// means a peer we don't interoperate with at the byte level.
		return nil, rest, ErrFrameMismatch
	}
	return s, rest, nil
}

func decodeLiteral(hf *HeaderField, b []byte, prefixBits int) ([]byte, error) {
	idx, rest, err := decodeInt(b, prefixBits)
	if err != nil {
		return rest, err
	}

	if idx > 0 {
		entry, ok := staticLookup(idx)
		if !ok {
			return rest, ErrMissingBytes
		}
		hf.SetBytes([]byte(entry.name), nil)
	} else {
		name, after, err := decodeString(rest)
		if err != nil {
			return after, err
		}
		hf.SetBytes(name, nil)
		rest = after
	}

	value, after, err := decodeString(rest)
	if err != nil {
		return after, err
	}
	hf.value = append(hf.value[:0], value...)

	return after, nil
}
