// Package model holds the Request/Response/Tags/error/event shapes shared
// by the root package and the interceptor package. It exists to break the
// import cycle that would otherwise result from the root package driving
// interceptor.Chain while interceptor implementations operate on
// Request/Response: both sides import model, neither imports the other.
package model

import (
	"io"
	"strings"
)

// HeaderField is one (name, value) pair in an ordered, multi-valued,
// case-preserving header list, rather than http.Header's canonicalized
// map, lifting the []*HeaderField slice used in internal/h2 up to this
// front door.
type HeaderField struct {
	Name  string
	Value string
}

// Header is an ordered, multi-valued header list.
type Header []HeaderField

// Get returns the first value for name (case-insensitive), or "".
func (h Header) Get(name string) string {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Values returns every value for name (case-insensitive), in order.
func (h Header) Values(name string) []string {
	var out []string
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			out = append(out, f.Value)
		}
	}
	return out
}

// Add appends a header field, preserving any existing value(s) under the
// same name.
func (h *Header) Add(name, value string) {
	*h = append(*h, HeaderField{Name: name, Value: value})
}

// Set removes every existing field named name and appends a single new
// one.
func (h *Header) Set(name, value string) {
	h.Del(name)
	h.Add(name, value)
}

// Del removes every field named name (case-insensitive).
func (h *Header) Del(name string) {
	out := (*h)[:0]
	for _, f := range *h {
		if !strings.EqualFold(f.Name, name) {
			out = append(out, f)
		}
	}
	*h = out
}

// Clone returns an independent copy of h.
func (h Header) Clone() Header {
	out := make(Header, len(h))
	copy(out, h)
	return out
}

// RequestBody is a body producer covering both a materialized in-memory
// body and streaming producers. The retry interceptor does not retry a
// request whose body reports IsRepeatable false; it does not track how
// many body bytes were written.
type RequestBody interface {
	// ContentLength returns the body size if known ahead of time, or -1.
	ContentLength() int64
	// WriteTo writes the full body to w.
	WriteTo(w io.Writer) (int64, error)
	// IsRepeatable reports whether WriteTo can be called more than once
	// with identical output — required for a body-bearing request to be
	// retried.
	IsRepeatable() bool
}

// bytesBody is the common RequestBody: an in-memory, always-repeatable
// byte slice.
type bytesBody struct{ b []byte }

// NewBytesBody wraps b as a repeatable RequestBody.
func NewBytesBody(b []byte) RequestBody { return bytesBody{b: b} }

func (b bytesBody) ContentLength() int64 { return int64(len(b.b)) }
func (b bytesBody) IsRepeatable() bool   { return true }
func (b bytesBody) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.b)
	return int64(n), err
}
