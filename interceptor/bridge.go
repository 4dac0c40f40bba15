package interceptor

import (
	"strconv"

	"github.com/domsolutions/httpclient/internal/model"
)

// BridgeInterceptor fills in User-Agent, Host and (for a body of known
// length) Content-Length defaults where the caller did not set them.
// Accept-Encoding is left to CompressionInterceptor.
type BridgeInterceptor struct {
	UserAgent string
}

const defaultUserAgent = "httpclient/1.0"

func (b BridgeInterceptor) Intercept(c Chain) (*model.Response, error) {
	req := c.Request()
	bridged := *req
	bridged.Header = req.Header.Clone()

	ua := b.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	if bridged.Header.Get("user-agent") == "" {
		bridged.Header.Set("User-Agent", ua)
	}
	if bridged.Header.Get("host") == "" {
		bridged.Header.Set("Host", req.URL.Host)
	}
	if req.Body != nil {
		if cl := req.Body.ContentLength(); cl >= 0 {
			bridged.Header.Set("Content-Length", strconv.FormatInt(cl, 10))
		}
	}

	res, err := c.Proceed(&bridged)
	if err != nil {
		return nil, err
	}

	// Responses never carry Transfer-Encoding at the H2 layer; nothing to
	// strip here unlike an HTTP/1.1 bridge, but the stage exists so future
	// response-side defaults (e.g. charset normalization) have a home.
	return res, nil
}
