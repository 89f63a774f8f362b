package extio

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spf-audio/gencntr/internal/port"
	"github.com/spf-audio/gencntr/internal/posal"
)

func newTestInput(t *testing.T, internalCap int) (*Input, *port.TopologyPort) {
	t.Helper()
	internal := port.NewTopologyPort()
	internal.State = port.StateStarted
	internal.Bufs = port.NewBufferSet(1, internalCap, port.OriginInternal)
	heap := posal.NewHeapTable()
	in := NewInput(heap, 16, internal)
	return in, internal
}

func dataMsg(bytes int, ts int64, tsValid bool) *Message {
	d := port.NewBufferSet(1, bytes, port.OriginExternal)
	d.SetActualDataLen(bytes)
	return &Message{Kind: MsgDataV1, Data: d, Timestamp: ts, TSValid: tsValid}
}

func TestInputTwoFramePeerRelay(t *testing.T) {
	in, internal := newTestInput(t, 2000)
	require.NoError(t, in.Enqueue(dataMsg(960, 1000, true)))

	did, err := in.OnTrigger()
	require.NoError(t, err)
	require.True(t, did)
	require.Equal(t, 960, internal.Bufs.ActualDataLen())
	require.False(t, in.Discontinuity())

	internal.Bufs.SetActualDataLen(0) // simulate the topology having consumed frame 1
	require.NoError(t, in.Enqueue(dataMsg(960, 21000, true)))
	_, err = in.OnTrigger()
	require.NoError(t, err)
	require.False(t, in.Discontinuity(), "delta within tolerance must not raise a discontinuity")
}

func TestInputDiscontinuityDetected(t *testing.T) {
	in, _ := newTestInput(t, 2000)
	require.NoError(t, in.Enqueue(dataMsg(480, 1000, true)))
	_, err := in.OnTrigger()
	require.NoError(t, err)

	require.NoError(t, in.Enqueue(dataMsg(480, 5_000_000_000, true)))
	_, err = in.OnTrigger()
	require.NoError(t, err)
	require.True(t, in.Discontinuity())
}

// TestInputFlushingEOSFusedPop pins spec §9 Open Question 3: when a data
// message drains to empty and a flushing EOS is next in the ingress
// queue, the EOS is popped and applied within the same OnTrigger call.
func TestInputFlushingEOSFusedPop(t *testing.T) {
	in, internal := newTestInput(t, 480)
	require.NoError(t, in.Enqueue(dataMsg(480, 0, false)))
	require.NoError(t, in.Enqueue(&Message{Kind: MsgEOS, Flushing: true}))

	_, err := in.OnTrigger()
	require.NoError(t, err)

	require.Equal(t, 480, internal.Bufs.ActualDataLen())
	eos := internal.Metadata.FindFlushingEOS()
	require.NotNil(t, eos, "EOS must be fused-popped in the same call the data message drained")
}

func TestInputUnderrunZeroFillsAndSetsErasure(t *testing.T) {
	in, internal := newTestInput(t, 480)
	in.Underrun(480)
	require.Equal(t, 480, internal.Bufs.ActualDataLen())
	require.True(t, internal.SData.Erasure)
	for _, b := range internal.Bufs.Bufs[0].Data {
		require.Zero(t, b)
	}
}

func TestInputMediaFormatDeferredUntilReady(t *testing.T) {
	in, internal := newTestInput(t, 480)
	internal.State = port.StateStopped

	mf := &port.MediaFormat{SampleRate: 48000}
	require.NoError(t, in.Enqueue(&Message{Kind: MsgMediaFormat, MediaFormat: mf}))
	_, err := in.OnTrigger()
	require.NoError(t, err)
	require.False(t, internal.Flags.IsMFValid, "media format must not apply while sub-graph is stopped")

	internal.State = port.StatePrepared
	require.NoError(t, in.Enqueue(&Message{Kind: MsgMediaFormat, MediaFormat: mf}))
	_, err = in.OnTrigger()
	require.NoError(t, err)
	require.True(t, internal.Flags.IsMFValid)
	require.Same(t, mf, internal.MediaFormat)
}

func TestInputOnTriggerEmptyQueueReturnsFalse(t *testing.T) {
	in, _ := newTestInput(t, 480)
	did, err := in.OnTrigger()
	require.NoError(t, err)
	require.False(t, did)
}
