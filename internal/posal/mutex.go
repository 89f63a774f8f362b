package posal

import (
	"sync"
	"sync/atomic"
)

// Token identifies the current holder of a RecursiveMutex across nested
// Lock calls. The zero Token never matches a live holder.
type Token uint64

// RecursiveMutex lets the same logical owner lock it more than once
// without deadlocking — required because event propagation can re-enter
// queue operations from inside a module's event callback (concurrency
// model). Go's sync.Mutex deliberately has no notion of ownership, so
// re-entrancy here is modeled with an explicit token the caller threads
// through its call stack instead of inspecting goroutine identity.
type RecursiveMutex struct {
	mu    sync.Mutex
	owner atomic.Uint64
	depth int
	next  uint64
}

// Lock acquires the mutex. Pass the Token returned by an outer Lock call
// on the same logical call stack to re-enter without blocking; pass 0 to
// start a fresh acquisition. The returned Token must be passed to the
// matching Unlock. owner is read atomically since two goroutines may
// call Lock concurrently before either holds mu.
func (m *RecursiveMutex) Lock(held Token) Token {
	if held != 0 && Token(m.owner.Load()) == held {
		m.depth++
		return held
	}
	m.mu.Lock()
	m.next++
	m.owner.Store(m.next)
	m.depth = 1
	return Token(m.next)
}

// Unlock releases one level of nesting; the mutex is only actually
// unlocked when depth returns to zero.
func (m *RecursiveMutex) Unlock(held Token) {
	if Token(m.owner.Load()) != held {
		panic("posal: RecursiveMutex.Unlock called with a token that does not hold the lock")
	}
	m.depth--
	if m.depth == 0 {
		m.owner.Store(0)
		m.mu.Unlock()
	}
}
