package posal

import (
	"math/bits"
	"sync"

	"github.com/spf-audio/gencntr/internal/spferr"
)

// Bindable is implemented by anything a Channel can multiplex a bit for
// (currently only Queue[T], for any T). It is unexported-method so only
// posal types can satisfy it.
type Bindable interface {
	setState() bool
	bindTo(ch *Channel, bit uint32)
}

// Channel owns exactly one Signal plus the set of bit positions claimed
// by queues/signals/timers bound to it. At most 32 sources may share a
// channel.
type Channel struct {
	mu       sync.Mutex
	signal   *Signal
	bitsUsed uint32
}

// NewChannel returns an empty channel (no bits claimed).
func NewChannel() *Channel {
	return &Channel{signal: NewSignal()}
}

// Wait blocks until any bit in enable fires and returns the fired subset.
func (c *Channel) Wait(enable uint32) uint32 { return c.signal.Wait(enable) }

// Poll is the non-blocking form of Wait.
func (c *Channel) Poll(enable uint32) uint32 { return c.signal.Get() & enable }

// BitsUsed returns the current used-bit mask, for tests asserting the
// "exactly as many 1-bits as live owners" invariant.
func (c *Channel) BitsUsed() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bitsUsed
}

// BitsUsedCount is bits.OnesCount32(BitsUsed()).
func (c *Channel) BitsUsedCount() int { return bits.OnesCount32(c.BitsUsed()) }

// Destroy tears down the underlying signal.
func (c *Channel) Destroy() { c.signal.Destroy() }

// AddQueue binds a source to this channel. requestedBit == 0 asks the
// channel to pick the highest unused bit (via leading-zeros over the
// free mask); otherwise requestedBit must be a single power-of-two not
// already claimed. If the source was previously bound elsewhere, its
// current "is this bit set" state is copied onto the new bit and the old
// binding's bit is cleared — a rebind is never observably different from
// a fresh add followed immediately by the first push, per the queue
// rebind invariant.
func (c *Channel) AddQueue(q Bindable, requestedBit uint32) (uint32, error) {
	c.mu.Lock()
	bit, err := c.allocateBitLocked(requestedBit)
	if err != nil {
		c.mu.Unlock()
		return 0, err
	}
	c.bitsUsed |= bit
	c.mu.Unlock()

	wasSet := q.setState()
	q.bindTo(c, bit)
	if wasSet {
		c.signal.Set(bit)
	}
	return bit, nil
}

// RemoveBit releases a previously claimed bit: it is cleared from both
// bitsUsed and the underlying signal word.
func (c *Channel) RemoveBit(bit uint32) {
	c.mu.Lock()
	c.bitsUsed &^= bit
	c.mu.Unlock()
	c.signal.Clear(bit)
}

func (c *Channel) allocateBitLocked(requested uint32) (uint32, error) {
	if requested == 0 {
		free := ^c.bitsUsed
		if free == 0 {
			return 0, spferr.New(spferr.NeedMore, "channel has no free bits (32 already in use)")
		}
		lead := bits.LeadingZeros32(free)
		return uint32(1) << (31 - lead), nil
	}
	if requested&(requested-1) != 0 {
		return 0, spferr.New(spferr.BadParam, "requested channel bit is not a single power of two")
	}
	if c.bitsUsed&requested != 0 {
		return 0, spferr.New(spferr.BadParam, "requested channel bit is already in use")
	}
	return requested, nil
}
