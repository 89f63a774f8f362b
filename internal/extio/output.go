package extio

import (
	"sync"
	"time"

	"github.com/spf-audio/gencntr/internal/dwlog"
	"github.com/spf-audio/gencntr/internal/port"
	"github.com/spf-audio/gencntr/internal/shmem"
	"github.com/spf-audio/gencntr/internal/spferr"
)

// Flavour distinguishes the two behaviours behind the shared Output
// interface (spec §4.4): a directly-attached peer container, or a
// shared-memory read-endpoint client.
type Flavour int

const (
	FlavourPeer Flavour = iota
	FlavourSharedMemClient
)

// FramesPerBuffer selects a fixed frame count or the read endpoint's
// "fill as much as possible" mode (spec §4.4).
type FramesPerBuffer struct {
	Fixed int // 0 means "fill as much as possible"
}

// SendFunc delivers a finished output buffer downstream: a peer-relay
// message for FlavourPeer, or a wire response for FlavourSharedMemClient
// (internal/shmem composes the latter). The scheduler supplies this so
// extio stays decoupled from the transport.
type SendFunc func(data *port.BufferSet, metadata *port.MetadataList, sdata port.SData)

// Output is an external output port shared by the peer and
// shared-memory-client flavours.
type Output struct {
	mu sync.Mutex

	flavour Flavour
	send    SendFunc

	bufs            *port.BufferSet
	maxDataLen      int
	numFramesInBuf  int
	configuredFPB   FramesPerBuffer
	fixedFPBDecided bool // "fill as much as possible": locked in after frame 1
	decidedFPB      int
	mediaFormat     *port.MediaFormat
	isPrebufferSent bool
	icb             port.ICBParams
	icbResult       port.ICBResult
	nextOutBufTS    int64
	tsCarryNs       int64
	heldMetadata    port.MetadataList
	started         bool
	emitter         *shmem.Emitter
}

// NewOutput constructs an output port of the given flavour, delivering
// finished buffers through send.
func NewOutput(flavour Flavour, fpb FramesPerBuffer, send SendFunc) *Output {
	return &Output{flavour: flavour, configuredFPB: fpb, send: send}
}

// SetEmitter wires the client-event emitter used to raise the EOS
// notification for a rendered flushing EOS; Output raises no other
// client event. Left nil (the
// zero value), the port just doesn't raise anything — the tests that
// construct an Output directly never bind one.
func (o *Output) SetEmitter(e *shmem.Emitter) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.emitter = e
}

// emitTrackedMetadata reports one destroyed metadata node's render/drop
// outcome. Only a rendered flushing EOS is client-visible; the fate of
// any other tracked node is not reported to the client.
func (o *Output) emitTrackedMetadata(m *port.Metadata, rendered bool) {
	if o.emitter == nil || m == nil {
		return
	}
	if m.ID == port.MetadataEOS && m.Flushing && rendered {
		var token uint64
		if m.Tracking != nil {
			token = m.Tracking.Token
		}
		o.emitter.RaiseEOS(shmem.EOSPayload{Token: token})
	}
}

// SetupBufs attaches bufs as the port's current output buffer, deriving
// maxDataLen/icbResult, per spec §4.4. Peer callers may reuse bufs
// directly as the topology's last-module output (buf_origin=EXT_BUF);
// shared-memory-client callers pass the client-supplied V2 buffer.
func (o *Output) SetupBufs(bufs *port.BufferSet, icb port.ICBParams, icbResult port.ICBResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bufs = bufs
	o.maxDataLen = bufs.MaxDataLen()
	o.numFramesInBuf = 0
	o.fixedFPBDecided = false
	o.icb = icb
	o.icbResult = icbResult
}

// RecreateOutBuf discards the current buffer (it was stale: wrong size
// or count) and clears readiness state; the caller must SetupBufs again
// with a freshly-sized buffer.
func (o *Output) RecreateOutBuf() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bufs = nil
	o.numFramesInBuf = 0
	o.fixedFPBDecided = false
}

// maxFramesPerBuffer returns the frame-count cap currently in force. In
// "fill as much as possible" mode the cap is fixed at the first frame's
// size and not revised afterward, per spec §9's explicit "this is the
// specified behaviour" open-question answer.
func (o *Output) maxFramesPerBuffer(firstFrameBytes int) int {
	if o.configuredFPB.Fixed > 0 {
		return o.configuredFPB.Fixed
	}
	if !o.fixedFPBDecided && firstFrameBytes > 0 {
		o.fixedFPBDecided = true
		o.decidedFPB = o.maxDataLen / firstFrameBytes
	}
	if o.fixedFPBDecided && o.decidedFPB > 0 {
		return o.decidedFPB
	}
	return 1
}

// WriteData marshals produced frame bytes into the current output
// buffer, advances the output timestamp and stages metadataOut for
// delivery. A media-format change is recorded and logged; no
// media-format message is sent downstream. The first write after Start
// sets the prebuffer-sent flag; no prebuffer data is inserted.
func (o *Output) WriteData(produced *port.BufferSet, mf *port.MediaFormat, sdata port.SData, metadataOut *port.MetadataList) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.bufs == nil {
		return spferr.New(spferr.NotReady, "output port has no buffer attached")
	}

	if !o.mediaFormat.Equal(mf) {
		o.mediaFormat = mf
		o.tsCarryNs = 0
		o.propMediaFormatLocked()
	}

	if !o.isPrebufferSent && o.started {
		o.isPrebufferSent = true
	}

	frameBytes := produced.ActualDataLen()

	if frameBytes > o.bufs.FreeSpace() {
		if o.numFramesInBuf > 0 {
			if o.deliverLocked() {
				o.resetLocked()
			}
		}
		if frameBytes > o.bufs.FreeSpace() {
			return spferr.New(spferr.NeedMore, "output buffer smaller than one frame with zero frames already in it")
		}
	}

	frameCap := o.maxFramesPerBuffer(frameBytes)

	copy(o.bufs.Bufs[0].Data[o.bufs.ActualDataLen():], produced.Bufs[0].Data[:frameBytes])
	o.bufs.SetActualDataLen(o.bufs.ActualDataLen() + frameBytes)
	o.numFramesInBuf++

	o.advanceTimestamp(frameBytes, mf)

	for m := metadataOut.PopFront(); m != nil; m = metadataOut.PopFront() {
		o.heldMetadata.PushBack(m)
	}

	if o.numFramesInBuf >= frameCap {
		if o.deliverLocked() {
			o.resetLocked()
		}
	}
	return nil
}

// AttachMetadata stages metadataOut's nodes for delivery without counting a
// frame — the path a relaying module uses when it has a port boundary
// (EOS/DFG) to forward but zero bytes of data alongside it, so Ready's
// metadata-only branch (and not the frame cap) is what makes the port
// deliverable.
func (o *Output) AttachMetadata(metadataOut *port.MetadataList) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for m := metadataOut.PopFront(); m != nil; m = metadataOut.PopFront() {
		o.heldMetadata.PushBack(m)
	}
}

// propMediaFormatLocked logs a media-format change on the output port.
// It sends no message downstream.
func (o *Output) propMediaFormatLocked() {
	dwlog.Printf(dwlog.Protocol, -1, "output port: propagating media-format change")
}

// advanceTimestamp extrapolates the output timestamp forward by the
// duration of frameBytes, carrying fractional nanoseconds so repeated
// small frames don't drift (spec §4.9). The carry resets whenever mf
// changes (WriteData clears it when it replaces o.mediaFormat).
func (o *Output) advanceTimestamp(frameBytes int, mf *port.MediaFormat) {
	d := port.BytesToDuration(frameBytes, mf)
	total := d.Nanoseconds() + o.tsCarryNs
	o.nextOutBufTS += total / int64(time.Millisecond)
	o.tsCarryNs = total % int64(time.Millisecond)
}

// FillFrameMD appends one encoder-per-frame-info node to the held
// metadata when encoderFrameInfoEnabled is set, for either flavour. It
// does not deliver or flush the held metadata.
func (o *Output) FillFrameMD(encoderFrameInfoEnabled bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if encoderFrameInfoEnabled {
		o.heldMetadata.PushBack(&port.Metadata{ID: port.MetadataEncoderFrameInfo})
	}
}

// GetFilledSize returns the current output buffer's accumulated data
// length and frame count.
func (o *Output) GetFilledSize() (dataLen, numFrames int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.bufs == nil {
		return 0, 0
	}
	return o.bufs.ActualDataLen(), o.numFramesInBuf
}

// Flush forces delivery of whatever has accumulated so far, even if the
// frame cap has not been reached — used for flushing-EOS delivery. It
// resets the port immediately afterward when the delivered metadata
// carried a flushing EOS, and reports that fact so a caller (the
// scheduler) can react too, e.g. by queuing a data-flow-state vote.
func (o *Output) Flush() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	hadFlushingEOS := o.deliverLocked()
	if hadFlushingEOS {
		o.resetLocked()
	}
	return hadFlushingEOS
}

// deliverLocked sends the accumulated buffer+metadata and frees the
// metadata list through Destroy so every node's tracking-policy
// destructor fires exactly once, reporting rendered=true (this is an
// ordinary delivery, not a drop). It returns whether the delivered
// metadata included a flushing EOS, so the caller can reset the port.
func (o *Output) deliverLocked() bool {
	hadFlushingEOS := o.heldMetadata.FindFlushingEOS() != nil
	if o.send != nil {
		o.send(o.bufs, &o.heldMetadata, port.SData{Timestamp: o.nextOutBufTS})
	}
	o.bufs.SetActualDataLen(0)
	o.numFramesInBuf = 0
	o.heldMetadata.Destroy(true, o.emitTrackedMetadata)
	return hadFlushingEOS
}

// Reset clears the port back to its pre-data-flow state after a
// flushing EOS has been delivered (the "post-send" step).
func (o *Output) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resetLocked()
}

func (o *Output) resetLocked() {
	o.isPrebufferSent = false
	o.numFramesInBuf = 0
	o.fixedFPBDecided = false
	if o.bufs != nil {
		o.bufs.SetActualDataLen(0)
	}
}

// Start marks the port as started; the next WriteData then sets the
// prebuffer-sent flag (no prebuffer data is inserted).
func (o *Output) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = true
}

// Ready reports whether the port has accumulated enough to be marked
// ready for delivery: either the frame cap was reached, or metadata
// exists with zero frames produced (metadata-only delivery, spec §4.5).
func (o *Output) Ready() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.bufs == nil {
		return false
	}
	frameCap := o.maxFramesPerBuffer(0)
	if o.numFramesInBuf >= frameCap && frameCap > 0 {
		return true
	}
	return o.numFramesInBuf == 0 && !o.heldMetadata.IsEmpty()
}

// DropForOverrun discards the currently staged output + metadata
// (spec §4.5 "Overrun"), counted by the caller.
func (o *Output) DropForOverrun() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.bufs != nil {
		o.bufs.SetActualDataLen(0)
	}
	o.numFramesInBuf = 0
	o.heldMetadata.Destroy(false, o.emitTrackedMetadata)
	dwlog.Printf(dwlog.Overrun, -1, "output port: dropped data+metadata, no output buffer available")
}
