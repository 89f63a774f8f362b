package port

// MetadataID names a metadata object's kind. The special IDs below get
// first-class handling elsewhere (EOS gates flush behaviour, DFG marks a
// gap, media-format carries a format change); anything else is an
// opaque module-defined payload the container moves but does not
// interpret.
type MetadataID uint32

const (
	MetadataGeneric MetadataID = iota
	MetadataEOS
	MetadataDFG
	MetadataBufferEnd
	MetadataEncoderFrameInfo
	MetadataMediaFormat
)

// TrackingPolicy decides what a metadata object's destruction reports
// to whoever asked to be told: rendered (successfully delivered) or
// dropped.
type TrackingPolicy int

const (
	TrackingPolicyRender TrackingPolicy = iota
	TrackingPolicyDrop
)

// Tracking carries the optional source/destination routing payload
// attached to a metadata object for client-visible delivery reporting.
type Tracking struct {
	SrcDomain, DstDomain int
	SrcPort, DstPort     int
	Token                uint64
	Flags                uint32
	Policy               TrackingPolicy
}

// Flags are the per-metadata-object bits from spec §3.
type Flags struct {
	OutOfBand                     bool
	SampleAssociated              bool
	TrackingMode                  bool
	ClientMetadata                bool
	NeedsPropagationToClientBuffer bool
}

// Metadata is one node of a port's metadata list. Offset is a byte
// position within the owning buffer, valid only while the metadata
// object sits ahead of or alongside live buffer data; the engine must
// keep it in step as bytes are consumed (see MetadataList.AdjustOffsets).
type Metadata struct {
	ID         MetadataID
	Flags      Flags
	Offset     int
	ActualSize int
	Payload    []byte // inline payload, when OutOfBand is false
	OOBPtr     any     // out-of-band payload pointer, when OutOfBand is true
	Tracking   *Tracking

	// Flushing is only meaningful when ID == MetadataEOS: it marks that
	// every byte preceding this node in the owning buffer belongs to the
	// stream being closed, and no further pre-EOS data should be mixed
	// in ahead of it once it is delivered.
	Flushing bool

	next *Metadata
}

// MetadataList is a singly-linked FIFO of metadata objects attached to
// a buffer or a port.
type MetadataList struct {
	head, tail *Metadata
	count      int
}

// PushBack appends m to the list.
func (l *MetadataList) PushBack(m *Metadata) {
	m.next = nil
	if l.tail == nil {
		l.head, l.tail = m, m
	} else {
		l.tail.next = m
		l.tail = m
	}
	l.count++
}

// PopFront detaches and returns the first node, or nil if empty.
func (l *MetadataList) PopFront() *Metadata {
	if l.head == nil {
		return nil
	}
	m := l.head
	l.head = m.next
	if l.head == nil {
		l.tail = nil
	}
	m.next = nil
	l.count--
	return m
}

// Peek returns the first node without removing it.
func (l *MetadataList) Peek() *Metadata {
	return l.head
}

// IsEmpty reports whether the list holds no metadata.
func (l *MetadataList) IsEmpty() bool {
	return l.head == nil
}

// Count returns the number of metadata objects currently in the list.
func (l *MetadataList) Count() int {
	return l.count
}

// AdjustOffsets shifts every node's Offset by -delta, clamping at zero,
// to track bytes consumed from the front of the owning buffer. Nodes
// whose offset would go negative are pinned to 0 (they refer to data at
// or before the current read position).
func (l *MetadataList) AdjustOffsets(delta int) {
	for m := l.head; m != nil; m = m.next {
		m.Offset -= delta
		if m.Offset < 0 {
			m.Offset = 0
		}
	}
}

// FindFlushingEOS returns the first flushing EOS node in the list, or
// nil if none is present.
func (l *MetadataList) FindFlushingEOS() *Metadata {
	for m := l.head; m != nil; m = m.next {
		if m.ID == MetadataEOS && m.Flushing {
			return m
		}
	}
	return nil
}

// DemoteFlushingEOS converts a flushing EOS already in the list to
// non-flushing and recomputes its offset relative to newDataBytes
// arriving ahead of it, per spec §4.3 step 5: when new data arrives
// while a flushing EOS sits in the pending list, the stale EOS must not
// be left ahead of the fresh data.
func (l *MetadataList) DemoteFlushingEOS(newDataBytes int) {
	if e := l.FindFlushingEOS(); e != nil {
		e.Flushing = false
		e.Offset += newDataBytes
	}
}

// Destroy pops every node and invokes onDestroy(node, rendered) for
// each. rendered follows the node's own tracking policy when it carries
// one; otherwise it falls back to defaultRendered, the caller's context
// for untracked metadata (true for an ordinary delivery, false for an
// overrun drop). The destructor is never skipped.
func (l *MetadataList) Destroy(defaultRendered bool, onDestroy func(m *Metadata, rendered bool)) {
	for m := l.PopFront(); m != nil; m = l.PopFront() {
		rendered := defaultRendered
		if m.Tracking != nil {
			rendered = m.Tracking.Policy == TrackingPolicyRender
		}
		if onDestroy != nil {
			onDestroy(m, rendered)
		}
	}
}
