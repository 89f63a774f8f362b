package extio

import (
	"sync"

	"github.com/spf-audio/gencntr/internal/dwlog"
	"github.com/spf-audio/gencntr/internal/posal"
	"github.com/spf-audio/gencntr/internal/port"
	"github.com/spf-audio/gencntr/internal/shmem"
	"github.com/spf-audio/gencntr/internal/spferr"
)

// tsTolerance is the discontinuity-detection window from spec §4.3 step
// 4: a newly adopted timestamp within this many nanoseconds of the
// extrapolated value is not treated as a discontinuity.
const tsTolerance = int64(1_000_000) // 1ms, well inside one audio frame

// Input is an external input port shared by the peer-container and
// shared-memory-client ingress flavours: both push classified Messages
// onto the same ingress queue and Input.OnTrigger runs the common
// pipeline from spec §4.3.
type Input struct {
	mu sync.Mutex

	ingress *posal.Queue[*Message]
	channel *posal.Channel
	bit     uint32

	prebuffer *posal.Queue[*Message]

	internal *port.TopologyPort

	currentMF        *port.MediaFormat
	upstreamFrameLen int
	pendingMF        bool
	eof              bool
	flushingEOS      bool
	discontinuity    bool

	nextTSValue int64
	nextTSValid bool
	nextTSCont  bool

	extrapolatedTS int64
	current        *Message // message currently being drained

	emitter *shmem.Emitter
}

// NewInput constructs an input port backed by a FIFO ingress queue of
// maxNodes capacity over internal's eventual staging buffer.
func NewInput(heap *posal.HeapTable, maxNodes int, internal *port.TopologyPort) *Input {
	return &Input{
		ingress:  posal.NewQueue[*Message](heap, posal.DefaultHeap, maxNodes, false, false),
		internal: internal,
	}
}

// SetEmitter wires the client-event emitter used to raise a timestamp-
// discontinuity notification when adoptTimestamp detects one.
func (in *Input) SetEmitter(e *shmem.Emitter) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.emitter = e
}

// Bind attaches the ingress queue to a channel bit.
func (in *Input) Bind(ch *posal.Channel, requestedBit uint32) (uint32, error) {
	bit, err := in.ingress.Bind(ch, requestedBit)
	if err != nil {
		return 0, err
	}
	in.mu.Lock()
	in.channel, in.bit = ch, bit
	in.mu.Unlock()
	return bit, nil
}

// Enqueue pushes a classified message onto the ingress queue, raising
// the channel bit (the "wake" signal the scheduler waits on).
func (in *Input) Enqueue(m *Message) error {
	return in.ingress.PushBack(m, 0)
}

// OnTrigger runs the full ingress pipeline for one wake: dequeue,
// classify (already tagged), cache coherence is the shmem layer's job
// upstream of here, timestamp adoption, metadata ingest, discontinuity
// handling and preprocess. Underrun zero-fill is not part of this call;
// the scheduler calls Underrun separately. It returns false if there
// was nothing to dequeue.
func (in *Input) OnTrigger() (bool, error) {
	in.mu.Lock()
	if in.current == nil || in.current.Drained() {
		msg, err := in.ingress.PopFront()
		if err != nil {
			in.mu.Unlock()
			return false, nil // nothing to do this wake
		}
		in.current = msg
	}
	msg := in.current
	in.mu.Unlock()

	switch msg.Kind {
	case MsgMediaFormat:
		in.applyOrDeferMediaFormat(msg)
		in.current = nil
		return true, nil
	case MsgEOS, MsgDFG:
		in.ingestBoundaryMetadata(msg)
		in.current = nil
		return true, nil
	case MsgPeerPortProperty:
		in.applyPeerProperty(msg)
		in.current = nil
		return true, nil
	}

	in.adoptTimestamp(msg)
	in.ingestMetadata(msg)
	in.handleDiscontinuity(msg)
	if err := in.preprocess(msg); err != nil {
		return true, err
	}
	if msg.Drained() {
		in.onDrain()
	}
	return true, nil
}

// applyOrDeferMediaFormat applies a media-format message immediately if
// the sub-graph is in a state where that is safe, otherwise defers it
// (spec §4.3 step 2's "apply only if... prepared or started-in-gap").
func (in *Input) applyOrDeferMediaFormat(msg *Message) {
	in.mu.Lock()
	defer in.mu.Unlock()
	ready := in.internal.State == port.StatePrepared ||
		(in.internal.State == port.StateStarted && in.internal.DataFlowState == port.DataFlowAtGap)
	if ready {
		in.currentMF = msg.MediaFormat
		in.upstreamFrameLen = msg.UpstreamFrameLen
		in.internal.MediaFormat = msg.MediaFormat
		in.internal.Flags.IsMFValid = true
		in.internal.Flags.MediaFmtEvent = true
		in.pendingMF = false
	} else {
		in.pendingMF = true
	}
}

// ingestBoundaryMetadata converts an EOS/DFG message into a metadata
// object bound to the internal input port (spec §4.3 step 2).
func (in *Input) ingestBoundaryMetadata(msg *Message) {
	in.mu.Lock()
	defer in.mu.Unlock()
	id := port.MetadataDFG
	if msg.Kind == MsgEOS {
		id = port.MetadataEOS
		in.flushingEOS = msg.Flushing
	}
	in.internal.Metadata.PushBack(&port.Metadata{ID: id, Flushing: msg.Flushing})
}

func (in *Input) applyPeerProperty(msg *Message) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if msg.Property.State != nil {
		in.internal.State = *msg.Property.State
	}
	if msg.Property.FrameLen != nil {
		in.upstreamFrameLen = *msg.Property.FrameLen
	}
}

// adoptTimestamp records the message's timestamp tuple on the internal
// input port and detects a discontinuity against the extrapolated value
// (spec §4.3 step 4).
func (in *Input) adoptTimestamp(msg *Message) {
	if !msg.TSValid {
		return
	}
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.nextTSValid {
		delta := msg.Timestamp - in.extrapolatedTS
		if delta < 0 {
			delta = -delta
		}
		if delta > tsTolerance {
			in.discontinuity = true
			dwlog.Printf(dwlog.Protocol, -1, "input port: timestamp discontinuity, expected=%d got=%d", in.extrapolatedTS, msg.Timestamp)
			if in.emitter != nil {
				in.emitter.RaiseTimestampDiscontinuity(shmem.TimestampDiscontinuityPayload{
					ExpectedTimestamp: in.extrapolatedTS,
					ActualTimestamp:   msg.Timestamp,
				})
			}
		}
	}
	in.nextTSValue = msg.Timestamp
	in.nextTSValid = true
	in.nextTSCont = msg.TSContinue
	in.extrapolatedTS = msg.Timestamp + port.BytesToDuration(msg.Data.ActualDataLen(), in.currentMF).Nanoseconds()
	in.internal.SData.Timestamp = msg.Timestamp
	in.internal.SData.TSValid = true
	in.internal.SData.TSContinue = msg.TSContinue
}

// ingestMetadata parses msg's inline metadata list into the internal
// port's list, demoting any pending flushing EOS that a new data
// message has arrived ahead of (spec §4.3 step 5).
func (in *Input) ingestMetadata(msg *Message) {
	if msg.Metadata == nil {
		return
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.internal.Metadata.DemoteFlushingEOS(msg.Data.ActualDataLen())
	for m := msg.Metadata.PopFront(); m != nil; m = msg.Metadata.PopFront() {
		in.internal.Metadata.PushBack(m)
	}
}

// handleDiscontinuity sets the internal input port's EOF so the next
// topology call flushes pending module state before the new format (or
// EOF) is adopted, per spec §4.3 step 6.
func (in *Input) handleDiscontinuity(msg *Message) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if msg.EOF || in.pendingMF {
		in.eof = true
		in.internal.SData.EOF = true
	}
}

// preprocess copies as many bytes as the internal port, the remaining
// external bytes, and the NBLC end's free space allow, performing
// layout conversion (spec §4.3 step 7).
func (in *Input) preprocess(msg *Message) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.internal.Bufs == nil {
		return spferr.New(spferr.NotReady, "internal input port has no buffer attached")
	}
	free := in.internal.FreeSpace()
	nblcFree := free
	if in.internal.NBLCEnd != nil {
		if nf := in.internal.NBLCEnd.FreeSpace(); nf < nblcFree {
			nblcFree = nf
		}
	}
	want := msg.Remaining()
	if nblcFree < want {
		want = nblcFree
	}
	CopyLayout(in.internal.Bufs, in.internal.Flags.IsPCMUnpacked, msg, in.currentMF, want)
	return nil
}

// onDrain runs the release step: ack/free the drained message, then, if
// a flushing EOS is next in the queue, pop and apply it immediately
// within this same call so gapless modules see the boundary inside the
// same frame (the peek_and_pop_eos fused-pop behaviour, spec §9 Open
// Question 3).
func (in *Input) onDrain() {
	in.mu.Lock()
	in.current = nil
	in.mu.Unlock()

	for {
		next, ok := in.ingress.Peek()
		if !ok || next.Kind != MsgEOS || !next.Flushing {
			return
		}
		msg, err := in.ingress.PopFront()
		if err != nil {
			return
		}
		in.ingestBoundaryMetadata(msg)
	}
}

// Discontinuity reports whether a timestamp discontinuity was detected
// on the most recently adopted message.
func (in *Input) Discontinuity() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.discontinuity
}

// ClearDiscontinuity resets the discontinuity flag once the scheduler
// has acted on it.
func (in *Input) ClearDiscontinuity() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.discontinuity = false
}

// Underrun zero-fills the internal port up to thresholdBytes and sets
// the erasure flag, per spec §4.3 step 8 / §4.5 "Underrun".
func (in *Input) Underrun(thresholdBytes int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.internal.Bufs == nil {
		return
	}
	have := in.internal.Bufs.ActualDataLen()
	if have >= thresholdBytes {
		return
	}
	for _, b := range in.internal.Bufs.Bufs {
		for i := b.ActualDataLen; i < thresholdBytes && i < len(b.Data); i++ {
			b.Data[i] = 0
		}
	}
	in.internal.Bufs.SetActualDataLen(thresholdBytes)
	in.internal.SData.Erasure = true
}
