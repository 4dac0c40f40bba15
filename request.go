package httpclient

import (
	"sync"

	"github.com/domsolutions/httpclient/internal/model"
)

// HeaderField is one (name, value) pair in an ordered, multi-valued,
// case-preserving header list.
type HeaderField = model.HeaderField

// Header is an ordered, multi-valued header list.
type Header = model.Header

// RequestBody is a body producer for a Request; NewBytesBody wraps a plain
// byte slice (the common case) as a RequestBody.
type RequestBody = model.RequestBody

// NewBytesBody wraps b as an in-memory, repeatable RequestBody.
func NewBytesBody(b []byte) RequestBody { return model.NewBytesBody(b) }

// Request is the immutable description of one HTTP/2 exchange a Call
// executes.
type Request = model.Request

// NewRequest builds a Request, enforcing method/body compatibility: GET/HEAD
// forbid a body, POST/PUT require one.
func NewRequest(method, rawURL string, body RequestBody) (*Request, error) {
	return model.NewRequest(method, rawURL, body)
}

// Tags is a per-request/per-call typed value table.
type Tags = model.Tags

// Tag returns the value stored for type T in t, or the zero value if none
// was set.
func Tag[T any](t Tags) (T, bool) { return model.Tag[T](t) }

// WithTag returns a copy of t with value stored under its own type.
func WithTag[T any](t Tags, value T) Tags { return model.WithTag(t, value) }

// TagOrCompute returns the existing value of type T in *t if present,
// otherwise computes one via fn and stores it under mu, so concurrent
// callers racing to populate the same tag observe a single winning value.
func TagOrCompute[T any](mu *sync.Mutex, t *Tags, fn func() T) T {
	return model.TagOrCompute(mu, t, fn)
}
