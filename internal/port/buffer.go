package port

// Origin distinguishes internally-owned buffers, freeable by the
// container, from externally-attached peer/client buffers which the
// container must never free on return.
type Origin int

const (
	OriginInternal Origin = iota
	OriginExternal
)

// Buffer is a single data-carrying byte region plus its bookkeeping.
// For PCM unpacked ports a BufferSet holds one Buffer per channel, all
// sharing MaxDataLen, with ActualDataLen meaningful only on channel 0
// (see BufferSet).
type Buffer struct {
	Data          []byte
	ActualDataLen int
	MaxDataLen    int
	MemMapHandle  uint32
	Origin        Origin
}

// FreeSpace returns how many more bytes can be written before MaxDataLen
// is reached.
func (b *Buffer) FreeSpace() int {
	if b == nil {
		return 0
	}
	return b.MaxDataLen - b.ActualDataLen
}

// BufferSet holds one or more channel buffers produced/consumed as a
// unit: length 1 for a single contiguous buffer (raw compressed, PCM
// packed-deinterleaved), length N for PCM unpacked or deinterleaved raw
// compressed V2.
type BufferSet struct {
	Bufs []*Buffer
}

// NewBufferSet allocates numChannels buffers of maxDataLen capacity
// each, tagged with origin.
func NewBufferSet(numChannels, maxDataLen int, origin Origin) *BufferSet {
	bufs := make([]*Buffer, numChannels)
	for i := range bufs {
		bufs[i] = &Buffer{
			Data:       make([]byte, maxDataLen),
			MaxDataLen: maxDataLen,
			Origin:     origin,
		}
	}
	return &BufferSet{Bufs: bufs}
}

// ActualDataLen returns the set's data length. Per spec §3, for PCM
// unpacked buffers this is stored only on channel 0; for single-buffer
// sets it is simply that buffer's length.
func (s *BufferSet) ActualDataLen() int {
	if s == nil || len(s.Bufs) == 0 {
		return 0
	}
	return s.Bufs[0].ActualDataLen
}

// SetActualDataLen stamps the set's data length on channel 0, per the
// PCM-unpacked sharing convention.
func (s *BufferSet) SetActualDataLen(n int) {
	if s == nil || len(s.Bufs) == 0 {
		return
	}
	s.Bufs[0].ActualDataLen = n
}

// MaxDataLen returns the capacity shared by every buffer in the set.
func (s *BufferSet) MaxDataLen() int {
	if s == nil || len(s.Bufs) == 0 {
		return 0
	}
	return s.Bufs[0].MaxDataLen
}

// NumChannels reports how many per-channel buffers the set holds.
func (s *BufferSet) NumChannels() int {
	if s == nil {
		return 0
	}
	return len(s.Bufs)
}

// FreeSpace returns the shared remaining capacity, based on channel 0's
// actual length.
func (s *BufferSet) FreeSpace() int {
	if s == nil || len(s.Bufs) == 0 {
		return 0
	}
	return s.Bufs[0].MaxDataLen - s.Bufs[0].ActualDataLen
}
