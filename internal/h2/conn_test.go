package h2

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newConnPair returns a handshaked client/server Conn pair wired over an
// in-process net.Pipe, which suffices since both ends are driven
// in-process.
func newConnPair(t *testing.T) (client, server *Conn) {
	t.Helper()
	cpipe, spipe := net.Pipe()

	client = NewConn(cpipe, ConnOpts{DisablePingChecking: true})
	server = NewConn(spipe, ConnOpts{Server: true, DisablePingChecking: true})

	errCh := make(chan error, 2)
	go func() { errCh <- server.Handshake() }()
	go func() { errCh <- client.Handshake() }()

	require.NoError(t, <-errCh)
	require.NoError(t, <-errCh)

	return client, server
}

func TestConnHandshake(t *testing.T) {
	client, server := newConnPair(t)
	defer client.Close(NoError)
	defer server.Close(NoError)
}

func TestConnNewStreamRoundTripsHeaders(t *testing.T) {
	client, server := newConnPair(t)
	defer client.Close(NoError)
	defer server.Close(NoError)

	cStream, err := client.NewStream()
	require.NoError(t, err)

	method := AcquireHeaderField()
	method.SetBytes(StringMethod, []byte("GET"))
	path := AcquireHeaderField()
	path.SetBytes(StringPath, []byte("/"))
	defer ReleaseHeaderField(method)
	defer ReleaseHeaderField(path)

	require.NoError(t, client.WriteHeaders(cStream, []*HeaderField{method, path}, true))

	deadline := time.After(2 * time.Second)
	var sStream *Stream
	for sStream == nil {
		select {
		case <-deadline:
			t.Fatal("server never observed the new stream")
		default:
		}
		sStream = server.streams.Get(cStream.ID())
		if sStream == nil {
			time.Sleep(time.Millisecond)
		}
	}

	block, err := sStream.NextHeaderBlock()
	require.NoError(t, err)

	codec := NewHeaderCodec()
	hf := AcquireHeaderField()
	defer ReleaseHeaderField(hf)

	rest, err := codec.Next(hf, block)
	require.NoError(t, err)
	require.Equal(t, ":method", hf.Name())
	require.Equal(t, "GET", hf.Value())

	_, err = codec.Next(hf, rest)
	require.NoError(t, err)
	require.Equal(t, ":path", hf.Name())
	require.Equal(t, "/", hf.Value())
}

func TestConnCanOpenStreamRespectsPeerLimit(t *testing.T) {
	client, server := newConnPair(t)
	defer client.Close(NoError)
	defer server.Close(NoError)

	client.remote.MaxConcurrentStreams = 1
	_, err := client.NewStream()
	require.NoError(t, err)

	require.False(t, client.CanOpenStream())
	_, err = client.NewStream()
	require.ErrorIs(t, err, ErrNoStreams)
}

func TestConnCloseIsIdempotent(t *testing.T) {
	client, _ := newConnPair(t)
	require.NoError(t, client.Close(NoError))
	require.NoError(t, client.Close(NoError))
	require.True(t, client.Closed())
}

// TestConnGoAwayFailsOnlyStreamsAboveLastStreamID checks that a received
// GOAWAY fails streams with an id above LastStreamID while leaving
// streams at or below it able to complete normally, and rejects any
// further NewStream call.
func TestConnGoAwayFailsOnlyStreamsAboveLastStreamID(t *testing.T) {
	client, server := newConnPair(t)
	defer client.Close(NoError)
	defer server.Close(NoError)

	keep, err := client.NewStream()
	require.NoError(t, err)
	doomed, err := client.NewStream()
	require.NoError(t, err)
	require.Greater(t, doomed.ID(), keep.ID())

	frh := AcquireFrameHeader()
	ga := AcquireGoAway()
	ga.SetLastStreamID(keep.ID())
	ga.SetCode(NoError)
	frh.SetBody(ga)

	server.writeMu.Lock()
	_, err = frh.WriteTo(server.bw)
	require.NoError(t, err)
	require.NoError(t, server.bw.Flush())
	server.writeMu.Unlock()
	ReleaseFrameHeader(frh)

	require.Eventually(t, func() bool {
		return doomed.State() == StreamClosed
	}, time.Second, time.Millisecond)

	require.Equal(t, StreamIdle, keep.State())
	require.False(t, client.Closed())

	_, err = client.NewStream()
	require.ErrorIs(t, err, ErrGoAway)
}

// TestConnPadFramesPadsHeadersAndData checks that enabling PadFrames adds
// PADDED framing to outgoing HEADERS and DATA without corrupting what the
// peer decodes back out of them.
func TestConnPadFramesPadsHeadersAndData(t *testing.T) {
	cpipe, spipe := net.Pipe()

	client := NewConn(cpipe, ConnOpts{DisablePingChecking: true, PadFrames: true})
	server := NewConn(spipe, ConnOpts{Server: true, DisablePingChecking: true})

	errCh := make(chan error, 2)
	go func() { errCh <- server.Handshake() }()
	go func() { errCh <- client.Handshake() }()
	require.NoError(t, <-errCh)
	require.NoError(t, <-errCh)
	defer client.Close(NoError)
	defer server.Close(NoError)

	cStream, err := client.NewStream()
	require.NoError(t, err)

	method := AcquireHeaderField()
	method.SetBytes(StringMethod, []byte("GET"))
	defer ReleaseHeaderField(method)

	require.NoError(t, client.WriteHeaders(cStream, []*HeaderField{method}, false))
	require.NoError(t, client.WriteData(cStream, []byte("padded body"), true))

	deadline := time.After(2 * time.Second)
	var sStream *Stream
	for sStream == nil {
		select {
		case <-deadline:
			t.Fatal("server never observed the new stream")
		default:
		}
		sStream = server.streams.Get(cStream.ID())
		if sStream == nil {
			time.Sleep(time.Millisecond)
		}
	}

	block, err := sStream.NextHeaderBlock()
	require.NoError(t, err)

	codec := NewHeaderCodec()
	hf := AcquireHeaderField()
	defer ReleaseHeaderField(hf)
	_, err = codec.Next(hf, block)
	require.NoError(t, err)
	require.Equal(t, "GET", hf.Value())

	body, err := sStream.Read()
	require.NoError(t, err)
	require.Equal(t, "padded body", string(body))
}

func TestConnWriteDataChunksToAvailableWindow(t *testing.T) {
	client, server := newConnPair(t)
	defer client.Close(NoError)
	defer server.Close(NoError)

	cStream, err := client.NewStream()
	require.NoError(t, err)
	require.NoError(t, client.WriteHeaders(cStream, []*HeaderField{}, false))

	cStream.SendWindow().Shrink(int64(DefaultWindowSize) - 5)
	require.Equal(t, int64(5), cStream.SendWindow().Size())

	done := make(chan error, 1)
	go func() { done <- client.WriteData(cStream, []byte("123456789"), true) }()

	deadline := time.After(2 * time.Second)
	var sStream *Stream
	for sStream == nil {
		select {
		case <-deadline:
			t.Fatal("server never observed the new stream")
		default:
		}
		sStream = server.streams.Get(cStream.ID())
		if sStream == nil {
			time.Sleep(time.Millisecond)
		}
	}

	first, err := sStream.Read()
	require.NoError(t, err)
	require.Len(t, first, 5, "first DATA frame must not exceed the 5-byte peer window")

	server.sendWindowUpdate(cStream.ID(), 4)

	require.NoError(t, <-done)
}
