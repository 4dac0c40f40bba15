package httpclient

import "github.com/domsolutions/httpclient/internal/model"

// EventKind enumerates EventListener callback points.
type EventKind = model.EventKind

const (
	EventCallStart          = model.EventCallStart
	EventCallEnd            = model.EventCallEnd
	EventConnectStart       = model.EventConnectStart
	EventConnectEnd         = model.EventConnectEnd
	EventConnectFailed      = model.EventConnectFailed
	EventRequestHeadersEnd  = model.EventRequestHeadersEnd
	EventRequestBodyEnd     = model.EventRequestBodyEnd
	EventResponseHeadersEnd = model.EventResponseHeadersEnd
	EventResponseBodyEnd    = model.EventResponseBodyEnd
	EventRetry              = model.EventRetry
)

// Event is an immutable snapshot delivered to an EventListener.
type Event = model.Event

// EventListener receives immutable snapshots of a call's lifecycle.
// A panic or error from a listener must not affect call progress.
type EventListener = model.EventListener

// EventListenerFunc adapts a plain func to EventListener.
type EventListenerFunc = model.EventListenerFunc
