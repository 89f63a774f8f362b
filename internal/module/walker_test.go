package module

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWalkerProcessAllInOrder(t *testing.T) {
	var order []uint32
	a := NewStub(1)
	a.OnProcess = func() (Events, error) {
		order = append(order, 1)
		return Events{}, nil
	}
	b := NewStub(2)
	b.OnProcess = func() (Events, error) {
		order = append(order, 2)
		return Events{}, nil
	}
	w := NewWalker([]Module{a, b})
	w.ProcessAll()
	require.Equal(t, []uint32{1, 2}, order)
}

func TestWalkerSkipsDisabledModules(t *testing.T) {
	a := NewStub(1)
	a.SetEnabled(false)
	b := NewStub(2)
	w := NewWalker([]Module{a, b})
	results := w.ProcessAll()
	require.Len(t, results, 1)
	require.Equal(t, uint32(2), results[0].Module.InstanceID())
	require.Zero(t, a.ProcessCount)
}

func TestWalkerContinuesPastModuleError(t *testing.T) {
	a := NewStub(1)
	a.OnProcess = func() (Events, error) { return Events{}, errors.New("boom") }
	b := NewStub(2)
	w := NewWalker([]Module{a, b})
	results := w.ProcessAll()
	require.Len(t, results, 2)
	require.Error(t, results[0].Err)
	require.NoError(t, results[1].Err)
	require.Equal(t, 1, b.ProcessCount)
}

func TestWalkerProcessFromSkipsPrefix(t *testing.T) {
	a := NewStub(1)
	b := NewStub(2)
	w := NewWalker([]Module{a, b})
	// ProcessFrom the index after the module that raised media_fmt_event,
	// matching spec §4.5's "propagate... starting from the module after
	// the one that raised it".
	results := w.ProcessFrom(w.IndexOf(a) + 1)
	require.Len(t, results, 1)
	require.Equal(t, uint32(2), results[0].Module.InstanceID())
}

func TestEventsAny(t *testing.T) {
	require.False(t, Events{}.Any())
	require.True(t, Events{MediaFormatChanged: true}.Any())
	require.True(t, Events{KPPS: 5}.Any())
}
