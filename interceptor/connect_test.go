package interceptor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/domsolutions/httpclient/internal/model"
	"github.com/domsolutions/httpclient/pool"
)

func TestAddressOfDefaultsPortFromScheme(t *testing.T) {
	req, err := model.NewRequest("GET", "https://example.com/path", nil)
	require.NoError(t, err)

	addr, err := addressOf(req)
	require.NoError(t, err)
	require.Equal(t, pool.Address{Host: "example.com", Port: 443, TLS: true}, addr)
}

func TestAddressOfHonorsExplicitPort(t *testing.T) {
	req, err := model.NewRequest("GET", "http://example.com:8080/path", nil)
	require.NoError(t, err)

	addr, err := addressOf(req)
	require.NoError(t, err)
	require.Equal(t, pool.Address{Host: "example.com", Port: 8080, TLS: false}, addr)
}

func TestConnectInterceptorErrorsWithoutPool(t *testing.T) {
	req, err := model.NewRequest("GET", "https://example.com", nil)
	require.NoError(t, err)

	terminal := InterceptorFunc(func(c Chain) (*model.Response, error) {
		t.Fatal("terminal must not run without a connection")
		return nil, nil
	})

	chain := NewChain([]Interceptor{ConnectInterceptor{}, terminal}, req, nil, 0)
	_, err = chain.Proceed(req)
	require.Error(t, err)
}
