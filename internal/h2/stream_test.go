package h2

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStreamHalfCloseBothSidesCloses(t *testing.T) {
	s := NewStream(1, DefaultWindowSize, DefaultWindowSize)
	s.Open()
	require.Equal(t, StreamOpen, s.State())

	s.HalfCloseLocal()
	require.Equal(t, StreamHalfClosedLocal, s.State())

	s.HalfCloseRemote()
	require.Equal(t, StreamClosed, s.State())
}

func TestStreamReadBlocksUntilPush(t *testing.T) {
	s := NewStream(1, DefaultWindowSize, DefaultWindowSize)

	done := make(chan []byte, 1)
	go func() {
		b, err := s.Read()
		require.NoError(t, err)
		done <- b
	}()

	time.Sleep(10 * time.Millisecond)
	s.PushData([]byte("chunk"))

	select {
	case b := <-done:
		require.Equal(t, "chunk", string(b))
	case <-time.After(time.Second):
		t.Fatal("Read never unblocked after PushData")
	}
}

func TestStreamFailUnblocksRead(t *testing.T) {
	s := NewStream(1, DefaultWindowSize, DefaultWindowSize)
	errCh := make(chan error, 1)
	go func() {
		_, err := s.Read()
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	s.Fail(ErrConnClosed)

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrConnClosed)
	case <-time.After(time.Second):
		t.Fatal("Read never unblocked after Fail")
	}
	require.Equal(t, StreamClosed, s.State())
}

func TestStreamsInsertGetDelOrdered(t *testing.T) {
	var strms Streams
	strms.Insert(NewStream(5, DefaultWindowSize, DefaultWindowSize))
	strms.Insert(NewStream(1, DefaultWindowSize, DefaultWindowSize))
	strms.Insert(NewStream(3, DefaultWindowSize, DefaultWindowSize))

	require.Equal(t, 3, strms.Len())
	require.NotNil(t, strms.Get(3))
	require.Nil(t, strms.Get(7))

	got := strms.Del(3)
	require.NotNil(t, got)
	require.Equal(t, uint32(3), got.ID())
	require.Equal(t, 2, strms.Len())
	require.Nil(t, strms.Get(3))
}
