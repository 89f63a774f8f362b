package port

// State is a topology port's lifecycle stage.
type State int

const (
	StateStopped State = iota
	StatePrepared
	StateStarted
	StateSuspended
)

// DataFlowState tracks whether a started port is actually carrying
// data, per spec §3.
type DataFlowState int

const (
	DataFlowAtGap DataFlowState = iota
	DataFlowPreFlow
	DataFlowFlowing
)

// Flags are the per-port bits from spec §3's topology port description.
type Flags struct {
	IsMFValid        bool
	MediaFmtEvent    bool
	PortHasThreshold bool
	ForceReturnBuf   bool
	BufOrigin        Origin
	IsPCMUnpacked    bool
}

// SData is the per-process-call stream metadata a module reads off its
// input port and stamps on its output port.
type SData struct {
	Timestamp  int64
	TSValid    bool
	TSContinue bool
	EOS        bool
	EOF        bool
	Erasure    bool
}

// ICBParams are the inter-container-buffering negotiation inputs an
// external output port receives from its downstream peer: frame length,
// period, flags and stream id.
type ICBParams struct {
	DownstreamFrameLen int
	DownstreamPeriodUs int
	DownstreamFlags    uint32
	DownstreamSID      uint32
}

// ICBResult is what the negotiation decides: how many regular buffers
// and prebuffers the external output pool must grow to.
type ICBResult struct {
	NumRegBufs    int
	NumRegPrebufs int
}

// TopologyPort is the internal per-module port state shared by every
// component that walks the module topology (spec §3's "Topology port
// (internal)").
type TopologyPort struct {
	State         State
	DataFlowState DataFlowState
	MediaFormat   *MediaFormat
	Flags         Flags
	Bufs          *BufferSet
	SData         SData
	Metadata      MetadataList
	MaxBufLen     int

	// NBLCEnd is the non-blocking-chain end: the downstream module that
	// actually buffers data, used to bound how much may be accumulated
	// upstream before copying in (spec §4.3 step 7, glossary "NBLC end").
	NBLCEnd *TopologyPort
}

// NewTopologyPort returns a stopped, at-gap port ready to be configured
// during graph open.
func NewTopologyPort() *TopologyPort {
	return &TopologyPort{State: StateStopped, DataFlowState: DataFlowAtGap}
}

// FreeSpace reports how much room the port's buffer set has left, or
// zero if no buffer is attached yet.
func (p *TopologyPort) FreeSpace() int {
	return p.Bufs.FreeSpace()
}

// RecomputeMaxBufLen derives the port's maximum buffer length from the
// configured operating frame duration per spec §4.6: max_buf_len =
// bytes_per_ms * operating_frame_ms. The module threshold must be an
// integer divisor of the endpoint threshold; callers enforce that before
// calling this (see internal/gcfg.Validate and internal/gencntr/events.go).
func (p *TopologyPort) RecomputeMaxBufLen(bytesPerMs, operatingFrameMs int) {
	p.MaxBufLen = bytesPerMs * operatingFrameMs
}
