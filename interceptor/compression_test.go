package interceptor

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/domsolutions/httpclient/internal/model"
)

func TestAcceptEncodingHeaderOrdersByWeight(t *testing.T) {
	got := acceptEncodingHeader([]Weighted{
		{Algorithm: Gzip, Q: 0.5},
		{Algorithm: Brotli, Q: 1},
		{Algorithm: Deflate, Q: 0.8},
	})
	require.Equal(t, "br, deflate;q=0.8, gzip;q=0.5", got)
}

func TestAcceptEncodingHeaderEmptyIsIdentity(t *testing.T) {
	require.Equal(t, "identity", acceptEncodingHeader(nil))
}

func TestCompressionInterceptorDecodesGzipResponse(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	req, err := model.NewRequest("GET", "https://example.com", nil)
	require.NoError(t, err)

	ci := CompressionInterceptor{Algorithms: []Weighted{{Algorithm: Gzip, Q: 1}}}

	terminal := InterceptorFunc(func(c Chain) (*model.Response, error) {
		h := model.Header{}
		h.Set("Content-Encoding", "gzip")
		h.Set("Content-Length", "999")
		return &model.Response{
			Header: h,
			Body:   io.NopCloser(bytes.NewReader(buf.Bytes())),
		}, nil
	})

	chain := NewChain([]Interceptor{ci, terminal}, req, nil, 0)
	res, err := chain.Proceed(req)
	require.NoError(t, err)

	out, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(out))
	require.Empty(t, res.Header.Get("Content-Encoding"))
	require.Empty(t, res.Header.Get("Content-Length"))
}

func TestCompressionInterceptorLeavesIdentityResponseAlone(t *testing.T) {
	req, err := model.NewRequest("GET", "https://example.com", nil)
	require.NoError(t, err)

	ci := CompressionInterceptor{Algorithms: []Weighted{{Algorithm: Gzip, Q: 1}}}
	terminal := InterceptorFunc(func(c Chain) (*model.Response, error) {
		return &model.Response{Body: io.NopCloser(bytes.NewReader([]byte("plain")))}, nil
	})

	chain := NewChain([]Interceptor{ci, terminal}, req, nil, 0)
	res, err := chain.Proceed(req)
	require.NoError(t, err)

	out, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, "plain", string(out))
}
