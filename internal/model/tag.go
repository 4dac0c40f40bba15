package model

import (
	"reflect"
	"sync"
)

// tagKey identifies a tag slot by concrete type, giving a stable token
// per type; the generic helpers below compute it with reflect.TypeOf on
// each call.
type tagKey = reflect.Type

// Tags is a per-request/per-call typed value table. The zero value is an
// empty table ready to use.
type Tags struct {
	m map[tagKey]any
}

// NewTags returns an empty, ready-to-use Tags table.
func NewTags() Tags {
	return Tags{m: make(map[tagKey]any)}
}

// Clone returns a shallow copy of t, used by Request.WithTag (copy-on-write)
// and Call.Clone (fresh call shares the request's tags but no computed
// per-call tags).
func (t Tags) Clone() Tags {
	out := NewTags()
	for k, v := range t.m {
		out.m[k] = v
	}
	return out
}

// Tag returns the value stored for type T, or the zero value of T if none
// was set.
func Tag[T any](t Tags) (T, bool) {
	var zero T
	v, ok := t.m[reflect.TypeOf(zero)]
	if !ok {
		return zero, false
	}
	return v.(T), true
}

// WithTag returns a copy of t with value stored under its own type.
func WithTag[T any](t Tags, value T) Tags {
	out := t.Clone()
	out.m[reflect.TypeOf(value)] = value
	return out
}

// TagOrCompute returns the existing value of type T if present, otherwise
// computes one via fn and stores it into *t under mu. Computation runs
// without holding any lock: concurrent computes may both
// run, but the map write below is the single linearization point, so
// exactly one computed value is retained and returned to every caller that
// raced in (each caller re-reads after taking the lock rather than
// trusting its own locally computed value, giving last-writer-wins with
// at-most-one insertion visible afterward).
func TagOrCompute[T any](mu *sync.Mutex, t *Tags, fn func() T) T {
	if v, ok := Tag[T](*t); ok {
		return v
	}
	computed := fn()

	mu.Lock()
	defer mu.Unlock()
	if v, ok := Tag[T](*t); ok {
		return v
	}
	*t = WithTag(*t, computed)
	return computed
}
