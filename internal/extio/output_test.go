package extio

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spf-audio/gencntr/internal/port"
)

func frameBuf(bytes int) *port.BufferSet {
	b := port.NewBufferSet(1, bytes, port.OriginInternal)
	b.SetActualDataLen(bytes)
	return b
}

func TestOutputMarksReadyOnExactlyOneFrame(t *testing.T) {
	var delivered *port.BufferSet
	o := NewOutput(FlavourPeer, FramesPerBuffer{Fixed: 1}, func(d *port.BufferSet, md *port.MetadataList, sd port.SData) {
		delivered = d
	})
	o.SetupBufs(port.NewBufferSet(1, 960, port.OriginExternal), port.ICBParams{}, port.ICBResult{})

	mf := &port.MediaFormat{SampleRate: 48000, NumChannels: 1, BytesPerSample: 2}
	err := o.WriteData(frameBuf(960), mf, port.SData{}, &port.MetadataList{})
	require.NoError(t, err)
	require.NotNil(t, delivered, "one full frame against Fixed:1 must deliver immediately")
}

func TestOutputUndersizeBufferReturnsNeedMore(t *testing.T) {
	o := NewOutput(FlavourSharedMemClient, FramesPerBuffer{}, nil)
	o.SetupBufs(port.NewBufferSet(1, 100, port.OriginExternal), port.ICBParams{}, port.ICBResult{})

	mf := &port.MediaFormat{SampleRate: 48000, NumChannels: 1, BytesPerSample: 2}
	err := o.WriteData(frameBuf(480), mf, port.SData{}, &port.MetadataList{})
	require.Error(t, err)
}

func TestOutputMetadataOnlyDeliveryWithZeroFrames(t *testing.T) {
	var sawMetadataOnDelivery bool
	o := NewOutput(FlavourPeer, FramesPerBuffer{Fixed: 4}, func(d *port.BufferSet, md *port.MetadataList, sd port.SData) {
		// send callbacks run synchronously inside deliverLocked and must
		// observe the held list before it's reset for the next buffer.
		sawMetadataOnDelivery = !md.IsEmpty()
	})
	o.SetupBufs(port.NewBufferSet(1, 960, port.OriginExternal), port.ICBParams{}, port.ICBResult{})
	o.heldMetadata.PushBack(&port.Metadata{ID: port.MetadataEOS, Flushing: true})

	require.True(t, o.Ready(), "metadata present with zero frames produced must still be ready")
	o.Flush()
	require.True(t, sawMetadataOnDelivery)
}

func TestClientOutputRejectsUndersizedMDRegionForPendingMF(t *testing.T) {
	c := NewClientOutput(FramesPerBuffer{Fixed: 1}, nil)
	c.SetMDMFEnable(true)
	c.NotePendingMediaFormat(&port.MediaFormat{SampleRate: 48000}, 64)

	err := c.SetupBufsClient(port.NewBufferSet(1, 960, port.OriginExternal), 16, port.ICBParams{}, port.ICBResult{})
	require.Error(t, err)
	require.Equal(t, 64, c.PendingMediaFormatSize())
}

func TestClientOutputAcceptsLargeEnoughMDRegion(t *testing.T) {
	c := NewClientOutput(FramesPerBuffer{Fixed: 1}, nil)
	c.SetMDMFEnable(true)
	c.NotePendingMediaFormat(&port.MediaFormat{SampleRate: 48000}, 64)

	err := c.SetupBufsClient(port.NewBufferSet(1, 960, port.OriginExternal), 128, port.ICBParams{}, port.ICBResult{})
	require.NoError(t, err)
	require.Zero(t, c.PendingMediaFormatSize())
}

func TestOutputFillAsMuchAsPossibleLocksInFromFirstFrame(t *testing.T) {
	var deliverCount int
	o := NewOutput(FlavourSharedMemClient, FramesPerBuffer{}, func(d *port.BufferSet, md *port.MetadataList, sd port.SData) {
		deliverCount++
	})
	o.SetupBufs(port.NewBufferSet(1, 480, port.OriginExternal), port.ICBParams{}, port.ICBResult{})
	mf := &port.MediaFormat{SampleRate: 48000, NumChannels: 1, BytesPerSample: 2}

	require.NoError(t, o.WriteData(frameBuf(160), mf, port.SData{}, &port.MetadataList{}))
	require.Equal(t, 0, deliverCount, "480/160 = 3 frame cap, first frame alone must not deliver")
}
