package shmem

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spf-audio/gencntr/internal/evt"
)

type capturingClient struct {
	events []any
}

func (c *capturingClient) HandleEvent(id evt.ID, payload any) {
	c.events = append(c.events, payload)
}

func TestEmitterRaisesMediaFormat(t *testing.T) {
	reg := evt.NewRegistry()
	c := &capturingClient{}
	reg.Register(EventMediaFormat, c)

	NewEmitter(reg).RaiseMediaFormat(MediaFormatPayload{SampleRate: 48000})

	require.Len(t, c.events, 1)
	require.Equal(t, 48000, c.events[0].(MediaFormatPayload).SampleRate)
}

func TestEmitterRaisesEOSOnlyToEOSClients(t *testing.T) {
	reg := evt.NewRegistry()
	mfClient := &capturingClient{}
	eosClient := &capturingClient{}
	reg.Register(EventMediaFormat, mfClient)
	reg.Register(EventEOS, eosClient)

	NewEmitter(reg).RaiseEOS(EOSPayload{Token: 7})

	require.Empty(t, mfClient.events)
	require.Len(t, eosClient.events, 1)
}
