package httpclient

import (
	"context"
	"io"

	"github.com/domsolutions/httpclient/pool"
)

// Dialer opens the transport connection a Pool hands to the H2 layer.
// Re-exported from pool so callers configuring a Client never need to
// import the pool package directly.
type Dialer = pool.Dialer

// Resolver looks up the addresses for a host. Client takes no Resolver:
// name resolution happens inside the configured Dialer (Go's net.Dialer
// resolves as part of Dial).
type Resolver interface {
	Lookup(ctx context.Context, host string) ([]string, error)
}

// Authenticator produces a follow-up Request in response to a 401/407
// challenge, or nil to give up. Authenticate must be pure: no side
// effects beyond building the returned Request.
type Authenticator interface {
	Authenticate(route pool.Route, challenge *Response) (*Request, error)
}

// CookieJar persists cookies across redirect hops. LoadForRequest
// augments a request's Header with stored cookies;
// SaveFromResponse extracts Set-Cookie values from a response into storage.
type CookieJar interface {
	LoadForRequest(req *Request)
	SaveFromResponse(res *Response)
}

// NoCookieJar is a CookieJar that stores nothing. Client has no CookieJar
// option; calls never load or save cookies.
type NoCookieJar struct{}

func (NoCookieJar) LoadForRequest(*Request)   {}
func (NoCookieJar) SaveFromResponse(*Response) {}

// Cache is a best-effort response cache: Get may return nil, nil on a
// miss, and Put may return a nil writer to decline caching a
// particular response. Neither method's failure is ever fatal to a call.
type Cache interface {
	Get(req *Request) (*Response, error)
	Put(res *Response) (io.WriteCloser, error)
}

// NoCache is a Cache that never stores or serves anything. Client has no
// Cache option; calls never consult a cache.
type NoCache struct{}

func (NoCache) Get(*Request) (*Response, error)      { return nil, nil }
func (NoCache) Put(*Response) (io.WriteCloser, error) { return nil, nil }
