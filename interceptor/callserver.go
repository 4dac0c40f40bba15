package interceptor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/domsolutions/httpclient/internal/h2"
	"github.com/domsolutions/httpclient/internal/model"
	"github.com/domsolutions/httpclient/pool"
)

// CallServerInterceptor is the terminal interceptor: it writes the
// request over Chain.Stream and reads the response back.
type CallServerInterceptor struct{}

func (CallServerInterceptor) Intercept(c Chain) (*model.Response, error) {
	conn := c.Connection()
	stream := c.Stream()
	if conn == nil || stream == nil {
		return nil, fmt.Errorf("interceptor: CallServerInterceptor requires a connection and stream (install ConnectInterceptor first)")
	}

	req := c.Request()
	sentAt := time.Now()

	if err := writeRequestHeaders(conn, stream, req); err != nil {
		return nil, wrapStreamErr(conn, err)
	}

	if req.Body != nil {
		buf := bytebufferpool.Get()
		defer bytebufferpool.Put(buf)

		if _, err := req.Body.WriteTo(buf); err != nil {
			return nil, &model.Error{Kind: model.Connection, Cause: fmt.Errorf("write request body: %w", err)}
		}
		if err := conn.Conn.WriteData(stream, buf.B, true); err != nil {
			return nil, wrapStreamErr(conn, err)
		}
	}

	status, headers, err := readResponseHeaders(stream)
	if err != nil {
		return nil, wrapStreamErr(conn, err)
	}

	body := model.NewBodyReader(stream.Read, func() error { return nil })

	res := &model.Response{
		Request:    req,
		Proto:      "HTTP/2.0",
		StatusCode: status,
		Header:     headers,
		Body:       body,
		SentAt:     sentAt,
		ReceivedAt: time.Now(),
		Trailers:   trailersFunc(stream, body),
	}
	return res, nil
}

// wrapStreamErr classifies a low-level h2 failure into the public Error
// type, marking conn's REFUSED_STREAM count so a connection refused twice
// is taken out of the pool's usable set (see pool.Connection.MarkRefused).
func wrapStreamErr(conn *pool.Connection, err error) *model.Error {
	merr := model.NewErrorFromH2(err)
	if merr.Kind == model.StreamReset && merr.Code == h2.RefusedStreamError {
		conn.MarkRefused()
	}
	return merr
}

// trailersFunc returns the Response.Trailers accessor: it reads the
// stream's next (and final) header block once the body has been fully
// consumed, returning ErrTrailersNotReady if called earlier and an empty,
// nil-error Header when the stream carried no trailers at all.
func trailersFunc(stream *h2.Stream, body *model.BodyReader) func() (model.Header, error) {
	var once sync.Once
	var trailers model.Header
	var trailersErr error

	return func() (model.Header, error) {
		if !body.Done() {
			return nil, model.ErrTrailersNotReady
		}
		once.Do(func() {
			block, err := stream.NextHeaderBlock()
			if err != nil {
				if errors.Is(err, h2.ErrNotFound) {
					return
				}
				trailersErr = err
				return
			}
			_, trailers, trailersErr = decodeHeaderBlock(block)
		})
		return trailers, trailersErr
	}
}

// writeRequestHeaders encodes the pseudo-headers and the request's own
// header list and writes them as a HEADERS(+CONTINUATION) frame sequence.
func writeRequestHeaders(conn *pool.Connection, stream *h2.Stream, req *model.Request) error {
	fields := make([]*h2.HeaderField, 0, 4+len(req.Header))

	method := h2.AcquireHeaderField()
	method.SetBytes(h2.StringMethod, []byte(req.Method))
	fields = append(fields, method)

	scheme := h2.AcquireHeaderField()
	schemeVal := req.URL.Scheme
	if schemeVal == "" {
		schemeVal = "https"
	}
	scheme.SetBytes(h2.StringScheme, []byte(schemeVal))
	fields = append(fields, scheme)

	authority := h2.AcquireHeaderField()
	authority.SetBytes(h2.StringAuthority, []byte(req.URL.Host))
	fields = append(fields, authority)

	path := h2.AcquireHeaderField()
	p := req.URL.RequestURI()
	if p == "" {
		p = "/"
	}
	path.SetBytes(h2.StringPath, []byte(p))
	fields = append(fields, path)

	for _, hf := range req.Header {
		if strings.EqualFold(hf.Name, "host") {
			continue // carried as :authority above
		}
		f := h2.AcquireHeaderField()
		f.Set(strings.ToLower(hf.Name), hf.Value)
		fields = append(fields, f)
	}

	defer func() {
		for _, f := range fields {
			h2.ReleaseHeaderField(f)
		}
	}()

	endStream := req.Body == nil
	return conn.Conn.WriteHeaders(stream, fields, endStream)
}

// readResponseHeaders decodes HEADERS blocks off the stream until a
// non-informational (>= 200) status arrives, discarding any 1xx blocks
// along the way (RFC 7540 §8.1 permits zero or more of these ahead of the
// final response).
func readResponseHeaders(stream *h2.Stream) (int, model.Header, error) {
	for {
		block, err := stream.NextHeaderBlock()
		if err != nil {
			return 0, nil, err
		}

		status, header, err := decodeHeaderBlock(block)
		if err != nil {
			return 0, nil, err
		}
		if status >= 100 && status <= 199 {
			continue
		}
		return status, header, nil
	}
}

// decodeHeaderBlock decodes one HEADERS block via the literal-subset
// HeaderCodec into a status code (0 if no :status pseudo-header was
// present, as for a trailer block) and an ordered regular-header list.
func decodeHeaderBlock(block []byte) (int, model.Header, error) {
	codec := h2.NewHeaderCodec()
	status := 0
	var header model.Header

	hf := h2.AcquireHeaderField()
	defer h2.ReleaseHeaderField(hf)

	for len(block) > 0 {
		rest, err := codec.Next(hf, block)
		if err != nil {
			return 0, nil, err
		}
		block = rest

		if hf.Name() == ":status" {
			status, err = strconv.Atoi(hf.Value())
			if err != nil {
				return 0, nil, fmt.Errorf("interceptor: malformed :status %q: %w", hf.Value(), err)
			}
			continue
		}
		if hf.IsPseudo() {
			continue
		}
		header = append(header, model.HeaderField{Name: hf.Name(), Value: hf.Value()})
	}

	return status, header, nil
}
