package interceptor

import (
	"errors"

	"github.com/domsolutions/httpclient/internal/model"
)

// RetryInterceptor retries Connection/ConnectionShutdown failures and a
// single REFUSED_STREAM as an explicit, bounded policy: a fresh stream id
// is implicit in simply proceeding the chain again on a (possibly new)
// connection.
type RetryInterceptor struct {
	// MaxAttempts bounds total attempts (including the first); 0 means 2
	// (one retry).
	MaxAttempts int
}

func (ri RetryInterceptor) Intercept(c Chain) (*model.Response, error) {
	max := ri.MaxAttempts
	if max <= 0 {
		max = 2
	}

	req := c.Request()
	var lastErr error

	for attempt := 1; attempt <= max; attempt++ {
		if c.Call() != nil && c.Call().IsCanceled() {
			return nil, &model.Error{Kind: model.Canceled, Cause: errCanceledMidRetry}
		}

		res, err := c.Proceed(req)
		if err == nil {
			return res, nil
		}

		var herr *model.Error
		if !errors.As(err, &herr) || !herr.Retryable() || attempt == max {
			return nil, err
		}
		if req.Body != nil && !req.Body.IsRepeatable() {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

var errCanceledMidRetry = errors.New("interceptor: call canceled during retry wait")
