package h2

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFlowWindowReserveBlocksUntilCredit(t *testing.T) {
	fw := NewFlowWindow(10)

	granted, err := fw.Reserve(10)
	require.NoError(t, err)
	require.Equal(t, uint32(10), granted)
	require.Equal(t, int64(0), fw.Size())

	done := make(chan struct{})
	go func() {
		granted, err := fw.Reserve(5)
		require.NoError(t, err)
		require.Equal(t, uint32(5), granted)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Reserve returned before credit was available")
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, fw.Credit(5))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Reserve never unblocked after Credit")
	}
}

// TestFlowWindowReservePartialGrant checks that Reserve clamps to the
// window's current size rather than silently granting the full request.
func TestFlowWindowReservePartialGrant(t *testing.T) {
	fw := NewFlowWindow(5)

	granted, err := fw.Reserve(9)
	require.NoError(t, err)
	require.Equal(t, uint32(5), granted)
	require.Equal(t, int64(0), fw.Size())
}

func TestFlowWindowCreditOverflow(t *testing.T) {
	fw := NewFlowWindow(MaxWindowSize - 1)
	err := fw.Credit(10)
	require.ErrorIs(t, err, ErrWindowOverflow)
}

func TestFlowWindowCloseUnblocksReserve(t *testing.T) {
	fw := NewFlowWindow(0)
	errCh := make(chan error, 1)
	go func() { _, err := fw.Reserve(1); errCh <- err }()

	time.Sleep(10 * time.Millisecond)
	fw.Close()

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Reserve never unblocked after Close")
	}
}

func TestHalfWindowStrategyReplenishesAtHalf(t *testing.T) {
	fw := NewFlowWindow(100)
	fw.SetStrategy(DefaultStrategy)

	require.Equal(t, uint32(0), fw.Consume(40))
	require.Equal(t, uint32(60), fw.Consume(20))
}

func TestEagerStrategyReplenishesImmediately(t *testing.T) {
	fw := NewFlowWindow(100)
	fw.SetStrategy(EagerStrategy)

	require.Equal(t, uint32(1), fw.Consume(1))
}
