package interceptor

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/domsolutions/httpclient/internal/h2"
	"github.com/domsolutions/httpclient/internal/model"
	"github.com/domsolutions/httpclient/pool"
)

// ConnectInterceptor acquires a connection from the pool and opens the H2
// stream for this exchange, making both visible to CallServerInterceptor
// via Chain.Connection/Chain.Stream —"network interceptors
// ... see a non-null connection".
type ConnectInterceptor struct {
	Pool *pool.Pool
}

func (ci ConnectInterceptor) Intercept(c Chain) (*model.Response, error) {
	req := c.Request()

	addr, err := addressOf(req)
	if err != nil {
		return nil, &model.Error{Kind: model.Connection, Cause: err}
	}

	ctx := context.Background()
	if ci.Pool == nil {
		return nil, &model.Error{Kind: model.Connection, Cause: fmt.Errorf("interceptor: no pool configured")}
	}

	conn, err := ci.Pool.Acquire(ctx, addr)
	if err != nil {
		return nil, &model.Error{Kind: model.Connection, Cause: err}
	}

	stream, err := conn.Conn.NewStream()
	if err != nil {
		conn.Release()
		if errors.Is(err, h2.ErrGoAway) {
			ci.Pool.Evict(addr, conn)
		}
		return nil, &model.Error{Kind: model.ConnectionShutdown, Cause: err}
	}

	rc, ok := c.(*realChain)
	if !ok {
		conn.Release()
		return nil, fmt.Errorf("interceptor: unexpected Chain implementation")
	}

	res, err := rc.withConnection(conn, stream).Proceed(req)
	conn.Release()
	return res, err
}

// addressOf derives a pool.Address from a request URL's scheme/host/port.
func addressOf(req *model.Request) (pool.Address, error) {
	host := req.URL.Hostname()
	if host == "" {
		return pool.Address{}, fmt.Errorf("request URL has no host: %s", req.URL)
	}

	isTLS := req.URL.Scheme == "https"
	portStr := req.URL.Port()
	var port int
	if portStr == "" {
		if isTLS {
			port = 443
		} else {
			port = 80
		}
	} else {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return pool.Address{}, fmt.Errorf("invalid port in request URL %s: %w", req.URL, err)
		}
		port = p
	}

	// Resolution itself  is an out-of-scope
	// collaborator; the pool's Dialer performs the actual name resolution
	// when it dials, matching net.Dialer's built-in behavior.
	return pool.Address{Host: host, Port: port, TLS: isTLS}, nil
}
