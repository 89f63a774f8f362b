// Package extio implements the external input and output port pipelines
// (spec §4.3, §4.4): dequeue/classify/ingest/preprocess on ingress, and
// setup/write/flush on egress, for both the peer-container and
// shared-memory-client flavours.
package extio

import "github.com/spf-audio/gencntr/internal/port"

// MessageKind classifies one message dequeued from an external input
// port's ingress queue (spec §4.3 step 2).
type MessageKind int

const (
	MsgDataV1 MessageKind = iota
	MsgDataV2
	MsgMediaFormat
	MsgEOS
	MsgDFG
	MsgPeerPortProperty
)

// PeerProperty carries a peer-port-property update: state, real-time, or
// frame-length (spec §4.3's "Peer-port-property" classification). Only
// the field(s) relevant to a given update are non-nil.
type PeerProperty struct {
	State    *port.State
	RealTime *bool
	FrameLen *int
}

// Message is one ingress item, already tagged with its kind by the
// producer (peer container relay or shared-memory write endpoint).
// Consumed tracks how many bytes of Data have already been copied into
// the internal input port by Input.preprocess, so a message can be
// drained across more than one OnTrigger call.
type Message struct {
	Kind MessageKind

	Data     *port.BufferSet
	Metadata *port.MetadataList
	Consumed int

	MediaFormat      *port.MediaFormat
	UpstreamFrameLen int

	// IsPCMPacked is true when Data is a single packed-deinterleaved PCM
	// buffer (one buffer, channels byte-interleaved); false for a raw
	// compressed single buffer or a V2 deinterleaved multi-buffer set.
	IsPCMPacked bool

	EOF        bool
	Timestamp  int64
	TSValid    bool
	TSContinue bool
	Flushing   bool // EOS only

	Property PeerProperty
}

// Remaining reports how many bytes of Data have not yet been consumed.
func (m *Message) Remaining() int {
	if m.Data == nil {
		return 0
	}
	return m.Data.ActualDataLen() - m.Consumed
}

// Drained reports whether every byte of a data message has been copied
// out (spec §4.3's "Release: when all bytes of a data message are
// drained...").
func (m *Message) Drained() bool {
	return m.Remaining() <= 0
}
