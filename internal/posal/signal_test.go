package posal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignalSetClearGet(t *testing.T) {
	s := NewSignal()
	s.Set(0x5)
	require.Equal(t, uint32(0x5), s.Get())
	s.Clear(0x1)
	require.Equal(t, uint32(0x4), s.Get())
}

func TestSignalSetClearRoundTrip(t *testing.T) {
	s := NewSignal()
	s.Set(0xF0)
	s.Clear(0xF0)
	require.Zero(t, s.Get())
}

func TestSignalWaitBlocksUntilMask(t *testing.T) {
	s := NewSignal()
	done := make(chan uint32, 1)
	go func() {
		done <- s.Wait(0x2)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before the mask fired")
	case <-time.After(20 * time.Millisecond):
	}

	s.Set(0x2)
	select {
	case got := <-done:
		require.Equal(t, uint32(0x2), got)
	case <-time.After(time.Second):
		t.Fatal("Wait never woke up after Set")
	}
}
