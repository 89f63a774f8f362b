package posal

import "sync"

// HeapID names one of the process's accounting heaps (default, low-power
// island, etc). It has no behavioural effect on its own; it is only a key
// the HeapTable and per-heap node pools use to keep allocation stats
// separate per caller-declared heap, mirroring posal_memory.c's per-heap
// malloc accounting.
type HeapID uint32

const DefaultHeap HeapID = 0

// HeapStats is a point-in-time snapshot of one heap's tracked usage.
type HeapStats struct {
	ArraysAllocated int64
	NodesAllocated  int64
	NodesFreed      int64
}

// HeapTable is the process-wide accounting service constructed once in
// container init and passed by reference to every pool — per the spec's
// design notes, there is no hidden package-level singleton.
type HeapTable struct {
	mu    sync.Mutex
	heaps map[HeapID]*HeapStats
}

// NewHeapTable returns an empty accounting table.
func NewHeapTable() *HeapTable {
	return &HeapTable{heaps: make(map[HeapID]*HeapStats)}
}

func (t *HeapTable) entry(id HeapID) *HeapStats {
	s, ok := t.heaps[id]
	if !ok {
		s = &HeapStats{}
		t.heaps[id] = s
	}
	return s
}

func (t *HeapTable) recordGrowth(id HeapID, nodes int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entry(id)
	e.ArraysAllocated++
	e.NodesAllocated += int64(nodes)
}

func (t *HeapTable) recordFree(id HeapID, nodes int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entry(id)
	e.NodesFreed += int64(nodes)
}

// Snapshot returns a copy of the current stats for id.
func (t *HeapTable) Snapshot(id HeapID) HeapStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.entry(id)
}
