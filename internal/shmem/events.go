package shmem

import "github.com/spf-audio/gencntr/internal/evt"

// Event IDs the read shared-memory endpoint raises to its client (spec
// §6's "Events raised to clients" table).
const (
	EventMediaFormat evt.ID = iota + 1
	EventEOS
	EventTimestampDiscontinuity
	EventOperatingFrameSize
)

// MediaFormatPayload accompanies EventMediaFormat; MDMFEnable mirrors
// whether the client asked for the new format inlined as metadata too
// (RD_SH_MEM_CFG's md_mf_enable), per spec §4.8.
type MediaFormatPayload struct {
	SampleRate    int
	NumChannels   int
	BitsPerSample int
	MDMFEnable    bool
}

// EOSPayload accompanies EventEOS: a flushing EOS was rendered to the
// client buffer.
type EOSPayload struct {
	Token uint64
}

// TimestampDiscontinuityPayload accompanies EventTimestampDiscontinuity.
type TimestampDiscontinuityPayload struct {
	ExpectedTimestamp int64
	ActualTimestamp   int64
}

// OperatingFrameSizePayload accompanies EventOperatingFrameSize.
type OperatingFrameSizePayload struct {
	FrameSizeBytes int
}

// Emitter raises the read endpoint's client-visible events through a
// shared evt.Registry.
type Emitter struct {
	registry *evt.Registry
}

// NewEmitter wraps registry for read-endpoint event emission.
func NewEmitter(registry *evt.Registry) *Emitter {
	return &Emitter{registry: registry}
}

func (e *Emitter) RaiseMediaFormat(p MediaFormatPayload) {
	e.registry.Raise(EventMediaFormat, p)
}

func (e *Emitter) RaiseEOS(p EOSPayload) {
	e.registry.Raise(EventEOS, p)
}

func (e *Emitter) RaiseTimestampDiscontinuity(p TimestampDiscontinuityPayload) {
	e.registry.Raise(EventTimestampDiscontinuity, p)
}

func (e *Emitter) RaiseOperatingFrameSize(p OperatingFrameSizePayload) {
	e.registry.Raise(EventOperatingFrameSize, p)
}
