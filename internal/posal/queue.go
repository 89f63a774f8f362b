package posal

import (
	"github.com/spf-audio/gencntr/internal/spferr"
)

// nodeArraySize is the fixed count of nodes allocated per pool-growth
// array, matching the "grows in arrays of a fixed node count" behaviour
// of the per-heap buffer pool.
const nodeArraySize = 64

type qnode[T any] struct {
	elem T
	prio int
	next *qnode[T]
	prev *qnode[T]
}

// Queue is a circular doubly-linked list of fixed-capacity elements drawn
// from a per-heap growing node pool, bound to at most one Channel bit at
// a time. T is the element payload type (a buffer descriptor, a control
// message, whatever the caller needs queued). Locking goes through a
// RecursiveMutex rather than a plain sync.Mutex: a module's event
// callback invoked while a queue op is in progress may need to push or
// pop on that same queue, and WithLock/*WithToken let it do so by
// threading the held Token through instead of re-acquiring.
type Queue[T any] struct {
	mu RecursiveMutex

	heap   *HeapTable
	heapID HeapID

	maxNodes     int
	numAllocated int
	activeNodes  int
	isPriority   bool
	disableSig   bool

	head, tail *qnode[T]
	free       *qnode[T]

	channel *Channel
	bit     uint32
}

// NewQueue constructs a queue backed by heap's accounting for heapID,
// capped at maxNodes live elements.
func NewQueue[T any](heap *HeapTable, heapID HeapID, maxNodes int, isPriority, disableSignaling bool) *Queue[T] {
	return &Queue[T]{
		heap:       heap,
		heapID:     heapID,
		maxNodes:   maxNodes,
		isPriority: isPriority,
		disableSig: disableSignaling,
	}
}

// WithLock runs fn while holding the queue's lock, passing the Token fn
// can thread into *WithToken methods to re-enter the queue from inside a
// callback invoked mid-operation — the path a module's event callback
// needs when it pushes or pops on the same queue it was invoked from.
// held is 0 to take a fresh lock, or a Token already returned by an
// outer WithLock/*WithToken call on the same goroutine's call stack.
func (q *Queue[T]) WithLock(held Token, fn func(held Token) error) error {
	t := q.mu.Lock(held)
	defer q.mu.Unlock(t)
	return fn(t)
}

// SetDisableSignaling toggles whether pushes raise the bound channel bit.
// Per the queue state machine, transitioning to enabled while already
// non-empty must set the bit immediately.
func (q *Queue[T]) SetDisableSignaling(disable bool) {
	t := q.mu.Lock(0)
	defer q.mu.Unlock(t)
	q.disableSig = disable
	if !disable && q.head != nil && q.channel != nil {
		q.channel.signal.Set(q.bit)
	}
}

// MaxNodes, ActiveNodes, NumAllocated expose the §3 invariant quantities
// for tests.
func (q *Queue[T]) MaxNodes() int { return q.maxNodes }
func (q *Queue[T]) ActiveNodes() int {
	t := q.mu.Lock(0)
	defer q.mu.Unlock(t)
	return q.activeNodes
}
func (q *Queue[T]) NumAllocated() int {
	t := q.mu.Lock(0)
	defer q.mu.Unlock(t)
	return q.numAllocated
}

// Bind claims a bit on ch for this queue, via ch.AddQueue. requestedBit ==
// 0 lets the channel pick the highest free bit.
func (q *Queue[T]) Bind(ch *Channel, requestedBit uint32) (uint32, error) {
	return ch.AddQueue(q, requestedBit)
}

// Unbind releases the queue's current channel bit, if any.
func (q *Queue[T]) Unbind() {
	t := q.mu.Lock(0)
	ch, bit := q.channel, q.bit
	q.channel = nil
	q.bit = 0
	q.mu.Unlock(t)
	if ch != nil {
		ch.RemoveBit(bit)
	}
}

// setState/bindTo implement Bindable; see channel.go.
func (q *Queue[T]) setState() bool {
	t := q.mu.Lock(0)
	defer q.mu.Unlock(t)
	return q.head != nil && !q.disableSig
}

func (q *Queue[T]) bindTo(ch *Channel, bit uint32) {
	t := q.mu.Lock(0)
	oldCh, oldBit := q.channel, q.bit
	q.channel = ch
	q.bit = bit
	q.mu.Unlock(t)
	if oldCh != nil && oldCh != ch {
		oldCh.RemoveBit(oldBit)
	}
}

func (q *Queue[T]) grow() bool {
	if q.numAllocated >= q.maxNodes {
		return false
	}
	n := nodeArraySize
	if q.numAllocated+n > q.maxNodes {
		n = q.maxNodes - q.numAllocated
	}
	if n <= 0 {
		return false
	}
	arr := make([]qnode[T], n)
	for i := range arr {
		arr[i].next = q.free
		q.free = &arr[i]
	}
	q.numAllocated += n
	if q.heap != nil {
		q.heap.recordGrowth(q.heapID, n)
	}
	return true
}

func (q *Queue[T]) spliceTail(n *qnode[T]) {
	if q.head == nil {
		q.head, q.tail = n, n
		n.next, n.prev = n, n
		return
	}
	n.prev = q.tail
	n.next = q.head
	q.tail.next = n
	q.head.prev = n
	q.tail = n
}

func (q *Queue[T]) detach(n *qnode[T]) {
	if n.next == n {
		q.head, q.tail = nil, nil
	} else {
		n.prev.next = n.next
		n.next.prev = n.prev
		if n == q.head {
			q.head = n.next
		}
		if n == q.tail {
			q.tail = n.prev
		}
	}
	n.next, n.prev = nil, nil
}

func (q *Queue[T]) release(n *qnode[T]) {
	var zero T
	n.elem = zero
	n.next = q.free
	q.free = n
}

// PushBack appends elem with the given priority (ignored unless the
// queue was created with isPriority). Fails with NeedMore if the queue
// is already at maxNodes, or NoMemory if the pool cannot grow further
// (a soft failure: the list is left intact).
func (q *Queue[T]) PushBack(elem T, prio int) error {
	t := q.mu.Lock(0)
	defer q.mu.Unlock(t)
	return q.pushBackLocked(elem, prio)
}

// PushBackWithToken is PushBack re-entered while already holding held (a
// Token from an enclosing WithLock), instead of acquiring the lock
// fresh — the call a module's event callback makes when it needs to
// queue more work on the same queue it was invoked from.
func (q *Queue[T]) PushBackWithToken(held Token, elem T, prio int) error {
	t := q.mu.Lock(held)
	defer q.mu.Unlock(t)
	return q.pushBackLocked(elem, prio)
}

func (q *Queue[T]) pushBackLocked(elem T, prio int) error {
	if q.activeNodes == q.maxNodes {
		return spferr.New(spferr.NeedMore, "queue at max_nodes capacity")
	}
	if q.free == nil && !q.grow() {
		return spferr.New(spferr.NoMemory, "node pool exhausted")
	}

	n := q.free
	q.free = n.next
	n.elem, n.prio = elem, prio
	n.next, n.prev = nil, nil

	q.spliceTail(n)
	q.activeNodes++

	if q.isPriority {
		q.bubble(n)
	}

	if !q.disableSig && q.channel != nil {
		q.channel.signal.Set(q.bit)
	}
	return nil
}

// bubble moves n toward the head while its priority strictly exceeds its
// predecessor's. Priority 0 never bubbles (stays at the tail); equal
// priorities never swap, preserving FIFO order within a priority class.
// This is the literal "bubble while >" rule from spec §4.2/§9; see
// DESIGN.md Open Question 1.
func (q *Queue[T]) bubble(n *qnode[T]) {
	if n.prio <= 0 {
		return
	}
	cur := n
	for cur != q.head {
		prev := cur.prev
		if cur.prio > prev.prio {
			cur.elem, prev.elem = prev.elem, cur.elem
			cur.prio, prev.prio = prev.prio, cur.prio
			cur = prev
		} else {
			break
		}
	}
}

// PopFront detaches and returns the head element.
func (q *Queue[T]) PopFront() (T, error) {
	t := q.mu.Lock(0)
	defer q.mu.Unlock(t)
	return q.popFrontLocked()
}

// PopFrontWithToken is PopFront re-entered while already holding held (a
// Token from an enclosing WithLock).
func (q *Queue[T]) PopFrontWithToken(held Token) (T, error) {
	t := q.mu.Lock(held)
	defer q.mu.Unlock(t)
	return q.popFrontLocked()
}

func (q *Queue[T]) popFrontLocked() (T, error) {
	var zero T
	if q.head == nil {
		return zero, spferr.New(spferr.NotReady, "queue empty")
	}
	n := q.head
	elem := n.elem
	q.detach(n)
	q.activeNodes--
	q.release(n)
	if q.head == nil && q.channel != nil {
		q.channel.signal.Clear(q.bit)
	}
	return elem, nil
}

// PopBack detaches and returns the tail element.
func (q *Queue[T]) PopBack() (T, error) {
	t := q.mu.Lock(0)
	defer q.mu.Unlock(t)
	var zero T
	if q.tail == nil {
		return zero, spferr.New(spferr.NotReady, "queue empty")
	}
	n := q.tail
	elem := n.elem
	q.detach(n)
	q.activeNodes--
	q.release(n)
	if q.head == nil && q.channel != nil {
		q.channel.signal.Clear(q.bit)
	}
	return elem, nil
}

// Peek returns the head element without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	t := q.mu.Lock(0)
	defer q.mu.Unlock(t)
	var zero T
	if q.head == nil {
		return zero, false
	}
	return q.head.elem, true
}

// IsEmpty reports whether the queue currently holds no elements.
func (q *Queue[T]) IsEmpty() bool {
	t := q.mu.Lock(0)
	defer q.mu.Unlock(t)
	return q.head == nil
}

// Count returns the number of active elements, optionally restricted by
// a predicate (pass nil to count everything).
func (q *Queue[T]) Count(match func(T) bool) int {
	t := q.mu.Lock(0)
	defer q.mu.Unlock(t)
	if q.head == nil {
		return 0
	}
	n := 0
	cur := q.head
	for {
		if match == nil || match(cur.elem) {
			n++
		}
		cur = cur.next
		if cur == q.head {
			break
		}
	}
	return n
}

// Reset frees every unused (not currently holding an active element)
// node back to nothing, matching pool_reset: a command-thread-only
// operation per the concurrency model.
func (q *Queue[T]) Reset() {
	t := q.mu.Lock(0)
	defer q.mu.Unlock(t)
	freed := 0
	for n := q.free; n != nil; {
		next := n.next
		n.next = nil
		freed++
		n = next
	}
	q.free = nil
	q.numAllocated = q.activeNodes
	if q.heap != nil && freed > 0 {
		q.heap.recordFree(q.heapID, freed)
	}
}

// Destroy tears the queue down: clears the channel binding and drops all
// nodes, active and free alike.
func (q *Queue[T]) Destroy() {
	q.Unbind()
	t := q.mu.Lock(0)
	defer q.mu.Unlock(t)
	freed := q.numAllocated
	q.head, q.tail, q.free = nil, nil, nil
	q.activeNodes, q.numAllocated = 0, 0
	if q.heap != nil && freed > 0 {
		q.heap.recordFree(q.heapID, freed)
	}
}
