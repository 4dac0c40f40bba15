package h2

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameDataRoundTrip(t *testing.T) {
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	fr.SetStream(3)

	d := AcquireData()
	d.SetData([]byte("hello world"))
	d.SetEndStream(true)
	fr.SetBody(d)

	buf := &bytes.Buffer{}
	bw := bufio.NewWriter(buf)
	_, err := fr.WriteTo(bw)
	require.NoError(t, err)
	require.NoError(t, bw.Flush())

	br := bufio.NewReader(buf)
	out, err := ReadFrameFrom(br)
	require.NoError(t, err)
	defer ReleaseFrameHeader(out)

	require.Equal(t, FrameData, out.Type())
	require.Equal(t, uint32(3), out.Stream())
	require.True(t, out.Flags().Has(FlagEndStream))

	data, ok := out.Body().(*Data)
	require.True(t, ok)
	require.Equal(t, "hello world", string(data.Bytes()))
}

func TestFrameHeadersRoundTrip(t *testing.T) {
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	fr.SetStream(1)

	h := AcquireHeaders()
	h.SetHeaderBlock([]byte("encoded-header-block"))
	h.SetEndHeaders(true)
	fr.SetBody(h)

	buf := &bytes.Buffer{}
	bw := bufio.NewWriter(buf)
	_, err := fr.WriteTo(bw)
	require.NoError(t, err)
	require.NoError(t, bw.Flush())

	br := bufio.NewReader(buf)
	out, err := ReadFrameFrom(br)
	require.NoError(t, err)
	defer ReleaseFrameHeader(out)

	headers, ok := out.Body().(*Headers)
	require.True(t, ok)
	require.Equal(t, "encoded-header-block", string(headers.Headers()))
	require.True(t, headers.EndHeaders())
}

func TestFrameDataPaddedRoundTrip(t *testing.T) {
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	fr.SetStream(3)

	d := AcquireData()
	d.SetData([]byte("hello world"))
	d.SetPadded(true)
	fr.SetBody(d)

	buf := &bytes.Buffer{}
	bw := bufio.NewWriter(buf)
	_, err := fr.WriteTo(bw)
	require.NoError(t, err)
	require.NoError(t, bw.Flush())

	br := bufio.NewReader(buf)
	out, err := ReadFrameFrom(br)
	require.NoError(t, err)
	defer ReleaseFrameHeader(out)

	require.True(t, out.Flags().Has(FlagPadded))
	data, ok := out.Body().(*Data)
	require.True(t, ok)
	require.Equal(t, "hello world", string(data.Bytes()))
}

func TestFramePayloadExceedsMaxLen(t *testing.T) {
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)

	d := AcquireData()
	d.SetData(bytes.Repeat([]byte("x"), 100))
	fr.SetBody(d)

	buf := &bytes.Buffer{}
	bw := bufio.NewWriter(buf)
	_, err := fr.WriteTo(bw)
	require.NoError(t, err)
	require.NoError(t, bw.Flush())

	br := bufio.NewReader(buf)
	_, err = ReadFrameFromWithSize(br, 10)
	require.ErrorIs(t, err, ErrPayloadExceeds)
}

func TestWindowUpdateZeroIncrementRejected(t *testing.T) {
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	fr.SetStream(5)

	wu := AcquireWindowUpdate()
	wu.SetIncrement(0)
	fr.SetBody(wu)

	buf := &bytes.Buffer{}
	bw := bufio.NewWriter(buf)
	_, err := fr.WriteTo(bw)
	require.NoError(t, err)
	require.NoError(t, bw.Flush())

	br := bufio.NewReader(buf)
	_, err = ReadFrameFrom(br)
	require.ErrorIs(t, err, ErrZeroIncrement)
}

func TestSettingsAckHasNoPayload(t *testing.T) {
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)

	st := AcquireSettings()
	st.SetAck(true)
	fr.SetBody(st)

	buf := &bytes.Buffer{}
	bw := bufio.NewWriter(buf)
	_, err := fr.WriteTo(bw)
	require.NoError(t, err)
	require.NoError(t, bw.Flush())
	require.Equal(t, 9, buf.Len())
}

func TestHeaderCodecLiteralRoundTrip(t *testing.T) {
	codec := NewHeaderCodec()

	method := AcquireHeaderField()
	method.SetBytes(StringMethod, []byte("GET"))
	defer ReleaseHeaderField(method)

	custom := AcquireHeaderField()
	custom.SetBytes([]byte("x-request-id"), []byte("abc-123"))
	defer ReleaseHeaderField(custom)

	var block []byte
	block = codec.AppendField(block, method, false)
	block = codec.AppendField(block, custom, false)

	got := AcquireHeaderField()
	defer ReleaseHeaderField(got)

	rest, err := codec.Next(got, block)
	require.NoError(t, err)
	require.Equal(t, ":method", got.Name())
	require.Equal(t, "GET", got.Value())

	_, err = codec.Next(got, rest)
	require.NoError(t, err)
	require.Equal(t, "x-request-id", got.Name())
	require.Equal(t, "abc-123", got.Value())
}
