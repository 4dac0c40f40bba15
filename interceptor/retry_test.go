package interceptor

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/domsolutions/httpclient/internal/model"
)

type fakeCall struct {
	canceled bool
}

func (f *fakeCall) IsCanceled() bool { return f.canceled }

func TestRetryInterceptorRetriesRetryableError(t *testing.T) {
	req, err := model.NewRequest("GET", "https://example.com", nil)
	require.NoError(t, err)

	attempts := 0
	terminal := InterceptorFunc(func(c Chain) (*model.Response, error) {
		attempts++
		if attempts == 1 {
			return nil, &model.Error{Kind: model.Connection, Cause: io.ErrClosedPipe}
		}
		return &model.Response{StatusCode: 200}, nil
	})

	chain := NewChain([]Interceptor{RetryInterceptor{}, terminal}, req, nil, 0)
	res, err := chain.Proceed(req)
	require.NoError(t, err)
	require.Equal(t, 200, res.StatusCode)
	require.Equal(t, 2, attempts)
}

func TestRetryInterceptorStopsAtMaxAttempts(t *testing.T) {
	req, err := model.NewRequest("GET", "https://example.com", nil)
	require.NoError(t, err)

	attempts := 0
	terminal := InterceptorFunc(func(c Chain) (*model.Response, error) {
		attempts++
		return nil, &model.Error{Kind: model.Connection, Cause: io.ErrClosedPipe}
	})

	chain := NewChain([]Interceptor{RetryInterceptor{MaxAttempts: 3}, terminal}, req, nil, 0)
	_, err = chain.Proceed(req)
	require.Error(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetryInterceptorDoesNotRetryNonRetryableError(t *testing.T) {
	req, err := model.NewRequest("GET", "https://example.com", nil)
	require.NoError(t, err)

	attempts := 0
	terminal := InterceptorFunc(func(c Chain) (*model.Response, error) {
		attempts++
		return nil, &model.Error{Kind: model.ProtocolError, Cause: io.ErrUnexpectedEOF}
	})

	chain := NewChain([]Interceptor{RetryInterceptor{}, terminal}, req, nil, 0)
	_, err = chain.Proceed(req)
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestRetryInterceptorStopsWhenCallCanceled(t *testing.T) {
	req, err := model.NewRequest("GET", "https://example.com", nil)
	require.NoError(t, err)

	call := &fakeCall{canceled: true}
	terminal := InterceptorFunc(func(c Chain) (*model.Response, error) {
		t.Fatal("terminal should not be reached once canceled")
		return nil, nil
	})

	chain := NewChain([]Interceptor{RetryInterceptor{}, terminal}, req, call, 0)
	_, err = chain.Proceed(req)
	require.Error(t, err)

	var herr *model.Error
	require.ErrorAs(t, err, &herr)
	require.Equal(t, model.Canceled, herr.Kind)
}

func TestRetryInterceptorDoesNotRetryNonRepeatableBody(t *testing.T) {
	req, err := model.NewRequest("POST", "https://example.com", nonRepeatableBody{})
	require.NoError(t, err)

	attempts := 0
	terminal := InterceptorFunc(func(c Chain) (*model.Response, error) {
		attempts++
		return nil, &model.Error{Kind: model.Connection, Cause: io.ErrClosedPipe}
	})

	chain := NewChain([]Interceptor{RetryInterceptor{}, terminal}, req, nil, 0)
	_, err = chain.Proceed(req)
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

type nonRepeatableBody struct{}

func (nonRepeatableBody) ContentLength() int64               { return 0 }
func (nonRepeatableBody) IsRepeatable() bool                 { return false }
func (nonRepeatableBody) WriteTo(w io.Writer) (int64, error) { return 0, nil }
