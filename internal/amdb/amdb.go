// Package amdb models the audio-module-database external collaborator
// at the narrow surface the container core actually depends on: binding
// a module id to a loadable descriptor. Everything else AMDB does in the
// real framework (discovery, versioning, capability query) is out of
// scope per spec §1 — the core only ever needs "load me this module id".
package amdb

import (
	"fmt"
	"sync"
)

// Descriptor is what the database hands back for a module id: enough
// for the placeholder module (spec §4.7) to decide whether a thread
// relaunch is needed before binding.
type Descriptor struct {
	ModuleID       uint32
	StackSizeBytes int
}

// DB is the collaborator interface the placeholder module depends on.
type DB interface {
	Load(moduleID uint32) (Descriptor, error)
}

// InMemory is a DB backed by a static registration table, sufficient for
// tests and for cmd/gencntrsim's scripted scenarios.
type InMemory struct {
	mu      sync.Mutex
	entries map[uint32]Descriptor
}

// NewInMemory returns an empty in-memory module database.
func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[uint32]Descriptor)}
}

// Register adds or replaces a module id's descriptor.
func (db *InMemory) Register(d Descriptor) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.entries[d.ModuleID] = d
}

// Load returns the registered descriptor for moduleID, or an error if
// it was never registered.
func (db *InMemory) Load(moduleID uint32) (Descriptor, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	d, ok := db.entries[moduleID]
	if !ok {
		return Descriptor{}, fmt.Errorf("amdb: module id %#x not registered", moduleID)
	}
	return d, nil
}
