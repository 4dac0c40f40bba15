package interceptor

import (
	"compress/flate"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"

	"github.com/domsolutions/httpclient/internal/model"
)

// Algorithm names a supported content-coding.
type Algorithm string

const (
	Gzip     Algorithm = "gzip"
	Deflate  Algorithm = "deflate"
	Brotli   Algorithm = "br"
	Identity Algorithm = "identity"
)

// Weighted pairs an Algorithm with an Accept-Encoding q= preference, so a
// caller can express a priority order rather than an unweighted set.
type Weighted struct {
	Algorithm Algorithm
	Q         float64 // 0 < Q <= 1; 0 means "omit q="
}

// CompressionInterceptor builds Accept-Encoding from a weighted algorithm
// list and transparently decodes a matching Content-Encoding response.
type CompressionInterceptor struct {
	Algorithms []Weighted
}

func (ci CompressionInterceptor) Intercept(c Chain) (*model.Response, error) {
	req := c.Request()
	bridged := *req
	bridged.Header = req.Header.Clone()

	if bridged.Header.Get("accept-encoding") == "" {
		bridged.Header.Set("Accept-Encoding", acceptEncodingHeader(ci.Algorithms))
	}

	res, err := c.Proceed(&bridged)
	if err != nil {
		return nil, err
	}

	enc := strings.ToLower(res.Header.Get("content-encoding"))
	if enc == "" || enc == "identity" || enc == "*" || !ci.supports(Algorithm(enc)) {
		return res, nil
	}

	decoded, err := decodeBody(Algorithm(enc), res.Body)
	if err != nil {
		return nil, &model.Error{Kind: model.ProtocolError, Cause: fmt.Errorf("decode %s response body: %w", enc, err)}
	}

	res.Body = decoded
	res.Header = stripEncodingHeaders(res.Header)
	return res, nil
}

func (ci CompressionInterceptor) supports(a Algorithm) bool {
	for _, w := range ci.Algorithms {
		if w.Algorithm == a {
			return true
		}
	}
	return false
}

// acceptEncodingHeader renders a comma-separated, q=-weighted
// Accept-Encoding value, highest priority first; an empty list sends
// "identity".
func acceptEncodingHeader(algos []Weighted) string {
	if len(algos) == 0 {
		return string(Identity)
	}

	sorted := make([]Weighted, len(algos))
	copy(sorted, algos)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Q > sorted[j].Q })

	parts := make([]string, 0, len(sorted))
	for _, w := range sorted {
		if w.Q <= 0 || w.Q >= 1 {
			parts = append(parts, string(w.Algorithm))
			continue
		}
		parts = append(parts, string(w.Algorithm)+";q="+strconv.FormatFloat(w.Q, 'g', 3, 64))
	}
	return strings.Join(parts, ", ")
}

// stripEncodingHeaders removes Content-Encoding/Content-Length after
// decoding, since the decoded body no longer matches either.
func stripEncodingHeaders(h model.Header) model.Header {
	out := h.Clone()
	out.Del("Content-Encoding")
	out.Del("Content-Length")
	return out
}

func decodeBody(a Algorithm, r io.ReadCloser) (io.ReadCloser, error) {
	switch a {
	case Gzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return &decodingReadCloser{Reader: gz, underlying: r}, nil
	case Deflate:
		fl := flate.NewReader(r)
		return &decodingReadCloser{Reader: fl, underlying: r}, nil
	case Brotli:
		br := brotli.NewReader(r)
		return &decodingReadCloser{Reader: br, underlying: r}, nil
	default:
		return nil, fmt.Errorf("unsupported content-encoding %q", a)
	}
}

// decodingReadCloser lazily decodes from the underlying network body and
// closes both the decoder (where applicable) and the network body on
// Close.
type decodingReadCloser struct {
	io.Reader
	underlying io.ReadCloser
}

func (d *decodingReadCloser) Close() error {
	if c, ok := d.Reader.(io.Closer); ok {
		_ = c.Close()
	}
	return d.underlying.Close()
}

// GzipBody wraps a RequestBody in a gzip encoder, used when a caller opts
// into request-body compression. The resulting length is unknown, so
// ContentLength reports -1 and the bridge interceptor omits Content-Length
// for it.
type GzipBody struct {
	inner model.RequestBody
}

// NewGzipBody adapts inner so its bytes are gzip-compressed on WriteTo.
func NewGzipBody(inner model.RequestBody) model.RequestBody {
	return GzipBody{inner: inner}
}

func (g GzipBody) ContentLength() int64 { return -1 }
func (g GzipBody) IsRepeatable() bool   { return g.inner.IsRepeatable() }

func (g GzipBody) WriteTo(w io.Writer) (int64, error) {
	gz := gzip.NewWriter(w)
	n, err := g.inner.WriteTo(gz)
	if cerr := gz.Close(); err == nil {
		err = cerr
	}
	return n, err
}
