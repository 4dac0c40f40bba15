package httpclient

import "github.com/domsolutions/httpclient/internal/model"

// Kind classifies a Call failure.
type Kind = model.Kind

const (
	Canceled           = model.Canceled
	Timeout            = model.Timeout
	Connection         = model.Connection
	ProtocolError      = model.ProtocolError
	StreamReset        = model.StreamReset
	ConnectionShutdown = model.ConnectionShutdown
	FlowControl        = model.FlowControl
)

// Error is the error type every public Call failure is wrapped in.
type Error = model.Error

// NewError wraps cause under kind.
func NewError(kind Kind, cause error) *Error { return model.NewError(kind, cause) }

// ErrExecutedTwice is returned by Execute/Enqueue when a Call has already
// run once; a Call executes exactly once.
var ErrExecutedTwice = model.ErrExecutedTwice

// ErrTrailersNotReady is returned by a Response's Trailers function when
// called before the body has been fully consumed.
var ErrTrailersNotReady = model.ErrTrailersNotReady
