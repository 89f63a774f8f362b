package evt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	evMediaFormat ID = 1
	evEOS         ID = 2
)

type recordingClient struct {
	id      string
	seen    []any
	onEvent func(id ID, payload any)
}

func (c *recordingClient) HandleEvent(id ID, payload any) {
	c.seen = append(c.seen, payload)
	if c.onEvent != nil {
		c.onEvent(id, payload)
	}
}

func TestRegistryRaiseFansOutToAllRegistered(t *testing.T) {
	r := NewRegistry()
	a := &recordingClient{id: "a"}
	b := &recordingClient{id: "b"}
	r.Register(evMediaFormat, a)
	r.Register(evMediaFormat, b)

	r.Raise(evMediaFormat, "pcm16k")

	require.Equal(t, []any{"pcm16k"}, a.seen)
	require.Equal(t, []any{"pcm16k"}, b.seen)
}

func TestRegistryRaiseOnlyReachesRegisteredID(t *testing.T) {
	r := NewRegistry()
	a := &recordingClient{id: "a"}
	r.Register(evMediaFormat, a)

	r.Raise(evEOS, struct{}{})

	require.Empty(t, a.seen)
}

func TestRegistryDeregisterStopsFurtherDelivery(t *testing.T) {
	r := NewRegistry()
	a := &recordingClient{id: "a"}
	r.Register(evMediaFormat, a)
	r.Deregister(evMediaFormat, a)

	r.Raise(evMediaFormat, "x")

	require.Empty(t, a.seen)
	require.Equal(t, 0, r.Count(evMediaFormat))
}

func TestRegistryRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	a := &recordingClient{id: "a"}
	r.Register(evMediaFormat, a)
	r.Register(evMediaFormat, a)
	require.Equal(t, 1, r.Count(evMediaFormat))
}

func TestRegistryDeregisterAllRemovesFromEveryEvent(t *testing.T) {
	r := NewRegistry()
	a := &recordingClient{id: "a"}
	r.Register(evMediaFormat, a)
	r.Register(evEOS, a)
	r.DeregisterAll(a)
	require.Equal(t, 0, r.Count(evMediaFormat))
	require.Equal(t, 0, r.Count(evEOS))
}

// TestRegistryRaiseToleratesReentrantDeregister has a client deregister
// itself from within HandleEvent and checks that the in-flight fan-out
// still reaches every client and that the registration is gone after.
func TestRegistryRaiseToleratesReentrantDeregister(t *testing.T) {
	r := NewRegistry()
	var a *recordingClient
	a = &recordingClient{id: "a", onEvent: func(id ID, payload any) {
		r.Deregister(evMediaFormat, a)
	}}
	b := &recordingClient{id: "b"}
	r.Register(evMediaFormat, a)
	r.Register(evMediaFormat, b)

	require.NotPanics(t, func() {
		r.Raise(evMediaFormat, "fmt")
	})
	require.Equal(t, []any{"fmt"}, a.seen)
	require.Equal(t, []any{"fmt"}, b.seen)
	require.Equal(t, 1, r.Count(evMediaFormat))
}

func TestRegistryIsRegistered(t *testing.T) {
	r := NewRegistry()
	a := &recordingClient{id: "a"}
	require.False(t, r.IsRegistered(evMediaFormat, a))
	r.Register(evMediaFormat, a)
	require.True(t, r.IsRegistered(evMediaFormat, a))
}
