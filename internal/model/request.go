package model

import (
	"fmt"
	"net/url"
	"strings"
)

// Request is immutable once built: Method/Body compatibility is enforced
// by NewRequest, not by a mutable setter surface.
type Request struct {
	Method string
	URL    *url.URL
	Header Header
	Body   RequestBody
	Tags   Tags
}

// NewRequest builds a Request, enforcingmethod/body
// compatibility invariant: GET/HEAD forbid a body, POST/PUT require one.
func NewRequest(method, rawURL string, body RequestBody) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("httpclient: parse request URL: %w", err)
	}
	method = strings.ToUpper(method)

	switch method {
	case "GET", "HEAD":
		if body != nil {
			return nil, fmt.Errorf("httpclient: %s request must not carry a body", method)
		}
	case "POST", "PUT":
		if body == nil {
			return nil, fmt.Errorf("httpclient: %s request requires a body", method)
		}
	}

	return &Request{
		Method: method,
		URL:    u,
		Header: Header{},
		Body:   body,
		Tags:   NewTags(),
	}, nil
}

// WithTag returns a shallow copy of r with value stored under its own
// type in the tag table.
func (r *Request) WithTag(value any) *Request {
	clone := *r
	clone.Header = r.Header.Clone()
	clone.Tags = WithTag(r.Tags, value)
	return &clone
}
