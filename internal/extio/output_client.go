package extio

import (
	"strconv"

	"github.com/spf-audio/gencntr/internal/port"
	"github.com/spf-audio/gencntr/internal/spferr"
)

// ClientOutput is the shared-memory read-endpoint flavour of Output,
// adding the metadata-region-size gate from spec §4.4/§8 scenario 4:
// when a previously-raised media-format event needs to be stored as
// metadata in the client buffer and the metadata region is too small,
// the engine must ack NEED_MORE immediately and remember the size the
// *next* buffer needs, rather than silently dropping the event.
type ClientOutput struct {
	*Output

	mdMFEnable            bool
	minMDSizeInNextBuffer int
	pendingMFAsMetadata   *port.MediaFormat
}

// NewClientOutput constructs a shared-memory client output port.
func NewClientOutput(fpb FramesPerBuffer, send SendFunc) *ClientOutput {
	return &ClientOutput{Output: NewOutput(FlavourSharedMemClient, fpb, send)}
}

// SetMDMFEnable toggles whether output media-format changes must also
// be rendered as metadata in the client buffer (RD_SH_MEM_CFG's
// md_mf_enable bit, spec §4.8).
func (c *ClientOutput) SetMDMFEnable(enable bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mdMFEnable = enable
}

// NotePendingMediaFormat records that mf must be rendered as metadata
// in the next (or current) client buffer, with requiredSize bytes of
// metadata-region room.
func (c *ClientOutput) NotePendingMediaFormat(mf *port.MediaFormat, requiredSize int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.mdMFEnable {
		return
	}
	c.pendingMFAsMetadata = mf
	c.minMDSizeInNextBuffer = requiredSize
}

// SetupBufsClient pops a client-supplied V2 data buffer. If a pending
// media-format-as-metadata write doesn't fit mdRegionSize, the buffer is
// rejected with NEED_MORE and min_md_size_in_next_buffer is remembered
// so only a buffer with enough room is accepted next time.
func (c *ClientOutput) SetupBufsClient(bufs *port.BufferSet, mdRegionSize int, icb port.ICBParams, icbResult port.ICBResult) error {
	c.mu.Lock()
	if c.pendingMFAsMetadata != nil && mdRegionSize < c.minMDSizeInNextBuffer {
		needed := c.minMDSizeInNextBuffer
		c.mu.Unlock()
		return spferr.New(spferr.NeedMore, "metadata region too small for pending media-format metadata, need "+strconv.Itoa(needed))
	}
	c.mu.Unlock()

	c.SetupBufs(bufs, icb, icbResult)

	c.mu.Lock()
	if c.pendingMFAsMetadata != nil && mdRegionSize >= c.minMDSizeInNextBuffer {
		mf := c.pendingMFAsMetadata
		c.pendingMFAsMetadata = nil
		c.minMDSizeInNextBuffer = 0
		c.mu.Unlock()
		c.heldMetadata.PushBack(&port.Metadata{ID: port.MetadataMediaFormat, Payload: mediaFormatPayload(mf)})
		return nil
	}
	c.mu.Unlock()
	return nil
}

// PendingMediaFormatSize reports the metadata-region size currently
// required before a buffer will be accepted, or 0 if none is pending.
func (c *ClientOutput) PendingMediaFormatSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pendingMFAsMetadata == nil {
		return 0
	}
	return c.minMDSizeInNextBuffer
}

func mediaFormatPayload(mf *port.MediaFormat) []byte {
	if mf == nil {
		return nil
	}
	return []byte{byte(mf.NumChannels), byte(mf.BitsPerSample / 8)}
}

