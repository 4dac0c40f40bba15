package httpclient

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/domsolutions/httpclient/interceptor"
)

func TestClientInterceptorsOrdersBuiltinsAfterUserStages(t *testing.T) {
	userStage := interceptor.InterceptorFunc(func(c interceptor.Chain) (*Response, error) {
		return nil, nil
	})
	client := NewClient(ClientOpts{Interceptors: []interceptor.Interceptor{userStage}})

	chain := client.interceptors()
	require.Len(t, chain, 6)

	_, isRetry := chain[1].(interceptor.RetryInterceptor)
	require.True(t, isRetry)
	_, isBridge := chain[2].(interceptor.BridgeInterceptor)
	require.True(t, isBridge)
	_, isCompression := chain[3].(interceptor.CompressionInterceptor)
	require.True(t, isCompression)
	_, isConnect := chain[4].(interceptor.ConnectInterceptor)
	require.True(t, isConnect)
	_, isCallServer := chain[5].(interceptor.CallServerInterceptor)
	require.True(t, isCallServer)
}

func TestClientShutdownStopsDispatcherAndPool(t *testing.T) {
	client := NewClient(ClientOpts{})
	require.NoError(t, client.Shutdown())

	req, err := NewRequest("GET", "https://example.com", nil)
	require.NoError(t, err)

	call := client.NewCall(req)
	done := make(chan struct{})
	call.Enqueue(func(res *Response, err error) { close(done) })
	<-done
}
