// Package shmem implements the shared-memory endpoint wire protocol
// (write-EP v2 / read-EP v2): the fixed-layout request/response structs,
// a memory-map handle table backed by real mmap/munmap/msync, and the
// small set of events the read endpoint raises to its client.
package shmem

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/spf-audio/gencntr/internal/spferr"
)

// Handle identifies one mapped shared-memory segment. It is opaque to
// callers, per spec §4.8 ("handles are opaque to the container").
type Handle uint64

type mapping struct {
	data     []byte
	refcount int
}

// HandleTable is the process-wide memory-map registry from spec §5: the
// command thread opens/closes maps, the worker only increments and
// decrements refcounts via Acquire/Release.
type HandleTable struct {
	mu       sync.Mutex
	mappings map[Handle]*mapping
	next     Handle
}

// NewHandleTable returns an empty handle table.
func NewHandleTable() *HandleTable {
	return &HandleTable{mappings: make(map[Handle]*mapping)}
}

// Create mmaps a new anonymous shared region of size bytes and returns
// its handle. Command-thread only (graph open/prepare), per spec §5.
func (t *HandleTable) Create(size int) (Handle, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
	if err != nil {
		return 0, spferr.Wrap(spferr.Failed, "mmap shared segment", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	h := t.next
	t.mappings[h] = &mapping{data: data, refcount: 1}
	return h, nil
}

// Acquire increments h's refcount and returns its backing slice. Called
// by the worker when a wire request references the handle.
func (t *HandleTable) Acquire(h Handle) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.mappings[h]
	if !ok {
		return nil, spferr.New(spferr.BadParam, "unknown mem_map_handle")
	}
	m.refcount++
	return m.data, nil
}

// Release decrements h's refcount, called on ack. When the refcount
// drops to zero the mapping is munmapped and forgotten — command-thread
// only, per spec §5.
func (t *HandleTable) Release(h Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.mappings[h]
	if !ok {
		return spferr.New(spferr.BadParam, "unknown mem_map_handle")
	}
	m.refcount--
	if m.refcount <= 0 {
		delete(t.mappings, h)
		return unix.Munmap(m.data)
	}
	return nil
}

// Flush issues an msync over h's full mapping, used before handing
// written data to the client (cache coherence, spec §4.8/§9).
func (t *HandleTable) Flush(h Handle) error {
	return t.sync(h, unix.MS_SYNC)
}

// Invalidate issues an msync(MS_INVALIDATE) over h's full mapping,
// used before reading client-written data.
func (t *HandleTable) Invalidate(h Handle) error {
	return t.sync(h, unix.MS_INVALIDATE)
}

func (t *HandleTable) sync(h Handle, flags int) error {
	t.mu.Lock()
	m, ok := t.mappings[h]
	t.mu.Unlock()
	if !ok {
		return spferr.New(spferr.BadParam, "unknown mem_map_handle")
	}
	if len(m.data) == 0 {
		return nil
	}
	return unix.Msync(m.data, flags)
}

// Addr64 combines a (lsw, msw) 32-bit split pair into one 64-bit
// address, per spec §6's "all multi-word addresses are (lsw, msw)".
func Addr64(lsw, msw uint32) uint64 {
	return uint64(msw)<<32 | uint64(lsw)
}

// SplitAddr splits a 64-bit address back into its (lsw, msw) wire pair.
func SplitAddr(addr uint64) (lsw, msw uint32) {
	return uint32(addr), uint32(addr >> 32)
}

// Resolve validates and returns the byte slice addr:addr+size within the
// segment mapped to h, treating addr as a byte offset into that mapping
// (the container has no visibility into the client's real virtual
// address space, only the handle + offset it was given). The address
// must be 8-byte aligned; misalignment fails immediately.
func (t *HandleTable) Resolve(h Handle, lsw, msw uint32, size uint32) ([]byte, error) {
	addr := Addr64(lsw, msw)
	if addr%8 != 0 {
		return nil, spferr.New(spferr.BadParam, "misaligned shared-memory address")
	}
	t.mu.Lock()
	m, ok := t.mappings[h]
	t.mu.Unlock()
	if !ok {
		return nil, spferr.New(spferr.BadParam, "unknown mem_map_handle")
	}
	end := addr + uint64(size)
	if end > uint64(len(m.data)) {
		return nil, spferr.New(spferr.BadParam, "shared-memory range exceeds mapped size")
	}
	return m.data[addr:end], nil
}
