package port

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBufferSetActualDataLenSharedOnChannelZero(t *testing.T) {
	s := NewBufferSet(2, 960, OriginInternal)
	s.SetActualDataLen(480)
	require.Equal(t, 480, s.ActualDataLen())
	require.Equal(t, 480, s.Bufs[0].ActualDataLen)
	require.Zero(t, s.Bufs[1].ActualDataLen, "actual length lives only on channel 0 for unpacked PCM")
	require.Equal(t, 960, s.MaxDataLen())
}

func TestBufferFreeSpace(t *testing.T) {
	b := &Buffer{MaxDataLen: 100, ActualDataLen: 40}
	require.Equal(t, 60, b.FreeSpace())
}

func TestMetadataListFIFOOrder(t *testing.T) {
	var l MetadataList
	l.PushBack(&Metadata{ID: MetadataGeneric, ActualSize: 1})
	l.PushBack(&Metadata{ID: MetadataGeneric, ActualSize: 2})
	first := l.PopFront()
	second := l.PopFront()
	require.Equal(t, 1, first.ActualSize)
	require.Equal(t, 2, second.ActualSize)
	require.True(t, l.IsEmpty())
}

func TestMetadataListAdjustOffsetsClampsAtZero(t *testing.T) {
	var l MetadataList
	l.PushBack(&Metadata{Offset: 100})
	l.PushBack(&Metadata{Offset: 10})
	l.AdjustOffsets(50)
	require.Equal(t, 50, l.head.Offset)
	require.Equal(t, 0, l.head.next.Offset)
}

func TestMetadataListFindFlushingEOS(t *testing.T) {
	var l MetadataList
	l.PushBack(&Metadata{ID: MetadataGeneric})
	eos := &Metadata{ID: MetadataEOS, Flushing: true}
	l.PushBack(eos)
	require.Same(t, eos, l.FindFlushingEOS())
}

func TestMetadataListDemoteFlushingEOSOnNewData(t *testing.T) {
	var l MetadataList
	eos := &Metadata{ID: MetadataEOS, Flushing: true, Offset: 0}
	l.PushBack(eos)
	l.DemoteFlushingEOS(480)
	require.False(t, eos.Flushing)
	require.Equal(t, 480, eos.Offset)
	require.Nil(t, l.FindFlushingEOS())
}

func TestMetadataListDestroyReportsRenderedOrDropped(t *testing.T) {
	var l MetadataList
	l.PushBack(&Metadata{Tracking: &Tracking{Policy: TrackingPolicyRender}})
	l.PushBack(&Metadata{Tracking: &Tracking{Policy: TrackingPolicyDrop}})
	l.PushBack(&Metadata{}) // untracked

	var rendered []bool
	l.Destroy(true, func(m *Metadata, r bool) {
		rendered = append(rendered, r)
	})
	require.Equal(t, []bool{true, false, true}, rendered)
	require.True(t, l.IsEmpty())
}

func TestMediaFormatBytesToDuration(t *testing.T) {
	mf := &MediaFormat{SampleRate: 48000, NumChannels: 2, BytesPerSample: 2}
	// 960 bytes / (2ch * 2B) = 240 frames @ 48kHz = 5ms.
	require.Equal(t, 5*time.Millisecond, BytesToDuration(960, mf))
}

func TestMediaFormatBytesToDurationCompressedIsZero(t *testing.T) {
	mf := &MediaFormat{SampleRate: 48000, Compressed: true}
	require.Zero(t, BytesToDuration(1000, mf))
}

func TestMediaFormatEqual(t *testing.T) {
	a := &MediaFormat{SampleRate: 48000, NumChannels: 2, BytesPerSample: 2}
	b := &MediaFormat{SampleRate: 48000, NumChannels: 2, BytesPerSample: 2}
	c := &MediaFormat{SampleRate: 16000, NumChannels: 2, BytesPerSample: 2}
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}
