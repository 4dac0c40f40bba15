package interceptor

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/domsolutions/httpclient/internal/h2"
	"github.com/domsolutions/httpclient/internal/model"
	"github.com/domsolutions/httpclient/pool"
)

// echoDialer dials an in-memory listener backed by a server that answers
// every stream with a canned 200 response, grounded on pool_test.go's
// listenerDialer/newTestServer helpers generalized to also write a response.
type echoDialer struct {
	ln *fasthttputil.InmemoryListener
}

func (d *echoDialer) Dial(ctx context.Context, network, addr string) (net.Conn, error) {
	return d.ln.Dial()
}

func (d *echoDialer) DialTLS(ctx context.Context, network, addr string, cfg *tls.Config) (*tls.Conn, error) {
	panic("not used in these tests")
}

func newEchoServer(t *testing.T, body string) *fasthttputil.InmemoryListener {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				sc := h2.NewConn(c, h2.ConnOpts{
					Server:              true,
					DisablePingChecking: true,
					OnNewStream: func(s *h2.Stream) {
						go respond(sc, s, body)
					},
				})
				_ = sc.Handshake()
			}(c)
		}
	}()
	return ln
}

func respond(sc *h2.Conn, s *h2.Stream, body string) {
	if _, err := s.NextHeaderBlock(); err != nil {
		return
	}

	status := h2.AcquireHeaderField()
	status.SetBytes(h2.StringStatus, []byte("200"))
	defer h2.ReleaseHeaderField(status)

	if err := sc.WriteHeaders(s, []*h2.HeaderField{status}, false); err != nil {
		return
	}
	_ = sc.WriteData(s, []byte(body), true)
}

func TestConnectAndCallServerInterceptorsRoundTrip(t *testing.T) {
	ln := newEchoServer(t, "hello from server")
	defer ln.Close()

	p := pool.New(pool.Options{Dialer: &echoDialer{ln: ln}, ConnOpts: h2.ConnOpts{DisablePingChecking: true}})
	defer p.Close()

	req, err := model.NewRequest("GET", "https://example.com/path", nil)
	require.NoError(t, err)

	chain := NewChain([]Interceptor{
		ConnectInterceptor{Pool: p},
		CallServerInterceptor{},
	}, req, nil, 0)

	res, err := chain.Proceed(req)
	require.NoError(t, err)
	require.Equal(t, 200, res.StatusCode)

	out, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, "hello from server", string(out))
}

func TestWrapStreamErrMarksConnectionUnhealthyOnSecondRefusal(t *testing.T) {
	conn := &pool.Connection{}
	resetErr := &h2.StreamError{StreamID: 7, Code: h2.RefusedStreamError}

	merr := wrapStreamErr(conn, resetErr)
	require.Equal(t, model.StreamReset, merr.Kind)
	require.Equal(t, h2.RefusedStreamError, merr.Code)
	require.True(t, merr.Retryable())

	wrapStreamErr(conn, resetErr)
	require.True(t, conn.MarkRefused(), "connection must be unhealthy after two REFUSED_STREAM resets")
}

func TestWrapStreamErrLeavesConnectionHealthyOnOtherErrors(t *testing.T) {
	conn := &pool.Connection{}
	protoErr := &h2.ConnError{Code: h2.ProtocolError}

	merr := wrapStreamErr(conn, protoErr)
	require.Equal(t, model.ProtocolError, merr.Kind)
	require.False(t, conn.MarkRefused())
}

func newInformationalThenFinalServer(t *testing.T, body string) *fasthttputil.InmemoryListener {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				sc := h2.NewConn(c, h2.ConnOpts{
					Server:              true,
					DisablePingChecking: true,
					OnNewStream: func(s *h2.Stream) {
						go func() {
							if _, err := s.NextHeaderBlock(); err != nil {
								return
							}

							early := h2.AcquireHeaderField()
							early.SetBytes(h2.StringStatus, []byte("103"))
							_ = sc.WriteHeaders(s, []*h2.HeaderField{early}, false)
							h2.ReleaseHeaderField(early)

							status := h2.AcquireHeaderField()
							status.SetBytes(h2.StringStatus, []byte("200"))
							_ = sc.WriteHeaders(s, []*h2.HeaderField{status}, false)
							h2.ReleaseHeaderField(status)

							_ = sc.WriteData(s, []byte(body), true)
						}()
					},
				})
				_ = sc.Handshake()
			}(c)
		}
	}()
	return ln
}

func TestCallServerInterceptorSkipsInformationalHeaders(t *testing.T) {
	ln := newInformationalThenFinalServer(t, "final body")
	defer ln.Close()

	p := pool.New(pool.Options{Dialer: &echoDialer{ln: ln}, ConnOpts: h2.ConnOpts{DisablePingChecking: true}})
	defer p.Close()

	req, err := model.NewRequest("GET", "https://example.com/path", nil)
	require.NoError(t, err)

	chain := NewChain([]Interceptor{
		ConnectInterceptor{Pool: p},
		CallServerInterceptor{},
	}, req, nil, 0)

	res, err := chain.Proceed(req)
	require.NoError(t, err)
	require.Equal(t, 200, res.StatusCode)

	out, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, "final body", string(out))
}

func newTrailerServer(t *testing.T, body string) *fasthttputil.InmemoryListener {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				sc := h2.NewConn(c, h2.ConnOpts{
					Server:              true,
					DisablePingChecking: true,
					OnNewStream: func(s *h2.Stream) {
						go func() {
							if _, err := s.NextHeaderBlock(); err != nil {
								return
							}
							status := h2.AcquireHeaderField()
							status.SetBytes(h2.StringStatus, []byte("200"))
							_ = sc.WriteHeaders(s, []*h2.HeaderField{status}, false)
							h2.ReleaseHeaderField(status)

							_ = sc.WriteData(s, []byte(body), false)

							trailer := h2.AcquireHeaderField()
							trailer.Set("grpc-status", "0")
							_ = sc.WriteHeaders(s, []*h2.HeaderField{trailer}, true)
							h2.ReleaseHeaderField(trailer)
						}()
					},
				})
				_ = sc.Handshake()
			}(c)
		}
	}()
	return ln
}

func TestCallServerInterceptorReadsTrailersAfterBody(t *testing.T) {
	ln := newTrailerServer(t, "body")
	defer ln.Close()

	p := pool.New(pool.Options{Dialer: &echoDialer{ln: ln}, ConnOpts: h2.ConnOpts{DisablePingChecking: true}})
	defer p.Close()

	req, err := model.NewRequest("GET", "https://example.com/path", nil)
	require.NoError(t, err)

	chain := NewChain([]Interceptor{
		ConnectInterceptor{Pool: p},
		CallServerInterceptor{},
	}, req, nil, 0)

	res, err := chain.Proceed(req)
	require.NoError(t, err)

	_, err = res.Trailers()
	require.ErrorIs(t, err, model.ErrTrailersNotReady)

	out, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, "body", string(out))

	trailers, err := res.Trailers()
	require.NoError(t, err)
	require.Len(t, trailers, 1)
	require.Equal(t, "grpc-status", trailers[0].Name)
	require.Equal(t, "0", trailers[0].Value)
}

func TestCallServerInterceptorErrorsWithoutConnection(t *testing.T) {
	req, err := model.NewRequest("GET", "https://example.com", nil)
	require.NoError(t, err)

	chain := NewChain([]Interceptor{CallServerInterceptor{}}, req, nil, 0)
	_, err = chain.Proceed(req)
	require.Error(t, err)
}
