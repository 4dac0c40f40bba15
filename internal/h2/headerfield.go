package h2

import "sync"

var headerFieldPool = sync.Pool{New: func() interface{} { return &HeaderField{} }}

// HeaderField is one (name, value) pair of a header block, case-preserved
// at the Request/Response layer but lower-cased on the wire per RFC 7540
// §8.1.2 ("field names MUST be converted to lowercase").
type HeaderField struct {
	name, value []byte
	sensitive   bool
}

// AcquireHeaderField returns a reset HeaderField from the pool.
func AcquireHeaderField() *HeaderField {
	hf := headerFieldPool.Get().(*HeaderField)
	hf.Reset()
	return hf
}

// ReleaseHeaderField returns hf to the pool.
func ReleaseHeaderField(hf *HeaderField) { headerFieldPool.Put(hf) }

func (hf *HeaderField) Reset() {
	hf.name = hf.name[:0]
	hf.value = hf.value[:0]
	hf.sensitive = false
}

func (hf *HeaderField) Name() string      { return string(hf.name) }
func (hf *HeaderField) Value() string     { return string(hf.value) }
func (hf *HeaderField) NameBytes() []byte  { return hf.name }
func (hf *HeaderField) ValueBytes() []byte { return hf.value }

func (hf *HeaderField) Set(name, value string) {
	hf.name = append(hf.name[:0], name...)
	hf.value = append(hf.value[:0], value...)
}

func (hf *HeaderField) SetBytes(name, value []byte) {
	hf.name = append(hf.name[:0], name...)
	hf.value = append(hf.value[:0], value...)
}

// IsPseudo reports whether the field name starts with ':' (RFC 7540 §8.1.2.1).
func (hf *HeaderField) IsPseudo() bool { return len(hf.name) > 0 && hf.name[0] == ':' }

func (hf *HeaderField) IsSensitive() bool    { return hf.sensitive }
func (hf *HeaderField) SetSensitive(v bool)  { hf.sensitive = v }

func (hf *HeaderField) CopyTo(other *HeaderField) {
	other.name = append(other.name[:0], hf.name...)
	other.value = append(other.value[:0], hf.value...)
	other.sensitive = hf.sensitive
}
