package model

import (
	"errors"
	"fmt"

	"github.com/domsolutions/httpclient/internal/h2"
)

// Kind classifies a Call failure so callers and the retry interceptor can
// make a local recovery decision without parsing error strings, mapping
// raw HTTP/2 error codes to a call-level taxonomy.
type Kind uint8

const (
	// Canceled is user-initiated or timeout-driven; never retryable
	// (Retryable reports false for it).
	Canceled Kind = iota
	// Timeout is a call-level or per-step deadline expiry.
	Timeout
	// Connection is a TCP/TLS failure before the H2 handshake completed;
	// always retryable on a different route.
	Connection
	// ProtocolError is an HTTP/2 framing/header contract violation from the
	// peer; the connection is destroyed and the stream is not retryable.
	ProtocolError
	// StreamReset is a peer-initiated RST_STREAM; retryability depends on
	// the carried h2.ErrorCode (see Error.Retryable).
	StreamReset
	// ConnectionShutdown is a received GOAWAY; retry on a different
	// connection.
	ConnectionShutdown
	// FlowControl is a flow-control window invariant violation; fatal to
	// the connection.
	FlowControl
)

func (k Kind) String() string {
	switch k {
	case Canceled:
		return "canceled"
	case Timeout:
		return "timeout"
	case Connection:
		return "connection"
	case ProtocolError:
		return "protocol_error"
	case StreamReset:
		return "stream_reset"
	case ConnectionShutdown:
		return "connection_shutdown"
	case FlowControl:
		return "flow_control"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Error is the error type every public Call failure is wrapped in.
type Error struct {
	Kind  Kind
	Code  h2.ErrorCode // populated when Kind == StreamReset
	Cause error
}

func (e *Error) Error() string {
	if e.Kind == StreamReset {
		return fmt.Sprintf("httpclient: %s (%s): %s", e.Kind, e.Code, e.Cause)
	}
	return fmt.Sprintf("httpclient: %s: %s", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether this specific failure may be retried:
// REFUSED_STREAM once per connection lifetime, Connection and
// ConnectionShutdown always, everything else (Canceled included) fatal.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case Connection, ConnectionShutdown:
		return true
	case StreamReset:
		return e.Code == h2.RefusedStreamError
	default:
		return false
	}
}

// NewError wraps cause under kind.
func NewError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// NewStreamResetError wraps cause as a StreamReset carrying code.
func NewStreamResetError(code h2.ErrorCode, cause error) *Error {
	return &Error{Kind: StreamReset, Code: code, Cause: cause}
}

// NewErrorFromH2 classifies an internal/h2 error and builds the public
// Error CallServerInterceptor (interceptor package) returns to a caller,
// populating Code from the underlying h2.StreamError when the failure
// was a stream reset.
func NewErrorFromH2(err error) *Error {
	var se *h2.StreamError
	if errors.As(err, &se) {
		return &Error{Kind: StreamReset, Code: se.Code, Cause: err}
	}
	var ce *h2.ConnError
	if errors.As(err, &ce) {
		return &Error{Kind: ProtocolError, Cause: err}
	}
	var ge *h2.GoAwayError
	if errors.As(err, &ge) {
		return &Error{Kind: ConnectionShutdown, Cause: err}
	}
	return &Error{Kind: Connection, Cause: err}
}

// ErrExecutedTwice is returned by Execute/Enqueue when a Call has already
// been executed once; a Call runs exactly once.
var ErrExecutedTwice = errors.New("httpclient: call already executed")

// ErrTrailersNotReady is returned by a Response's Trailers function when
// called before the body has been fully consumed.
var ErrTrailersNotReady = errors.New("httpclient: trailers not available until body is fully read")
