package interceptor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/domsolutions/httpclient/internal/model"
)

func TestBridgeInterceptorFillsDefaultHeaders(t *testing.T) {
	req, err := model.NewRequest("GET", "https://example.com/foo", nil)
	require.NoError(t, err)

	var seen *model.Request
	terminal := InterceptorFunc(func(c Chain) (*model.Response, error) {
		seen = c.Request()
		return &model.Response{StatusCode: 200}, nil
	})

	chain := NewChain([]Interceptor{BridgeInterceptor{}, terminal}, req, nil, 0)
	_, err = chain.Proceed(req)
	require.NoError(t, err)

	require.Equal(t, defaultUserAgent, seen.Header.Get("User-Agent"))
	require.Equal(t, "example.com", seen.Header.Get("Host"))
	require.Empty(t, req.Header.Get("User-Agent"), "original request must not be mutated")
}

func TestBridgeInterceptorRespectsCustomUserAgent(t *testing.T) {
	req, err := model.NewRequest("GET", "https://example.com", nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "custom/1.0")

	var seen *model.Request
	terminal := InterceptorFunc(func(c Chain) (*model.Response, error) {
		seen = c.Request()
		return &model.Response{StatusCode: 200}, nil
	})

	chain := NewChain([]Interceptor{BridgeInterceptor{UserAgent: "other/2.0"}, terminal}, req, nil, 0)
	_, err = chain.Proceed(req)
	require.NoError(t, err)
	require.Equal(t, "custom/1.0", seen.Header.Get("User-Agent"))
}

func TestBridgeInterceptorSetsContentLengthFromBody(t *testing.T) {
	req, err := model.NewRequest("POST", "https://example.com", model.NewBytesBody([]byte("hello")))
	require.NoError(t, err)

	var seen *model.Request
	terminal := InterceptorFunc(func(c Chain) (*model.Response, error) {
		seen = c.Request()
		return &model.Response{StatusCode: 200}, nil
	})

	chain := NewChain([]Interceptor{BridgeInterceptor{}, terminal}, req, nil, 0)
	_, err = chain.Proceed(req)
	require.NoError(t, err)
	require.Equal(t, "5", seen.Header.Get("Content-Length"))
}
