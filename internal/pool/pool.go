// Package pool amortizes allocation of list.Node-backed objects by
// maintaining a thread-safe FIFO free list, grounded on the ring-buffer
// shape of the teacher's internal/fifo package but generalized from bytes
// to list nodes.
package pool

import (
	"sync"

	"github.com/coverclock/com-diag-diminuto-sub002/internal/list"
)

// Pool is a FIFO of reusable list.Node objects. The pool does not own the
// memory backing nodes placed into it with Populate; those were supplied by
// the caller and are abandoned, not freed, by Fini. Nodes obtained via Get
// when the pool is empty are newly allocated here and are owned by the
// pool; Fini drops references to them (Go's collector reclaims them).
type Pool struct {
	mutex    sync.Mutex
	anchor   *list.Node
	size     int
	heapOwns map[*list.Node]bool
}

// New returns an empty pool whose Get will allocate nodes sized for size
// bytes of intended payload (informational only; this package does not
// allocate payloads itself, only list.Node shells — size is carried for
// callers, such as pkg/record, that want a per-pool default allocation
// size).
func New(size int) *Pool {
	p := &Pool{
		anchor:   list.New(),
		size:     size,
		heapOwns: make(map[*list.Node]bool),
	}
	return p
}

// Size returns the per-node size hint this pool was created with.
func (p *Pool) Size() int {
	return p.size
}

// Populate pre-loads the pool from an externally supplied slice of nodes.
// The pool does not take ownership of their backing memory.
func (p *Pool) Populate(nodes []*list.Node) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	for _, n := range nodes {
		list.Init(n)
		list.InsertAfter(p.anchor.Previous, n)
	}
}

// Get returns a node from the pool's free list, or allocates a new one if
// the pool is empty. The returned node is always a singleton (not attached
// to this pool's anchor nor to any other list). The error return is Go's
// substitute for the original's NULL-on-malloc-failure convention
// (diminuto_pool_alloc); Go's allocator has no comparable recoverable
// failure mode, so it is always nil today, but the signature keeps callers
// honest about the original contract rather than hiding it.
func (p *Pool) Get() (*list.Node, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	n := list.First(p.anchor)
	if n == nil {
		n = list.New()
		p.heapOwns[n] = true
		return n, nil
	}
	list.Remove(n)
	return n, nil
}

// Put removes node from whatever list it is on, clears its payload, and
// enqueues it at the tail of the pool's free list.
func (p *Pool) Put(node *list.Node) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	list.Remove(node)
	node.Payload = nil
	list.InsertAfter(p.anchor.Previous, node)
}

// Fini removes every node from the pool. Nodes that the pool itself
// allocated (via Get on an empty pool) are released for garbage collection;
// nodes supplied via Populate are simply detached and abandoned to the
// caller that owns them.
func (p *Pool) Fini() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for {
		n := list.First(p.anchor)
		if n == nil {
			break
		}
		list.Remove(n)
		delete(p.heapOwns, n)
	}
}

// Len reports how many nodes currently sit in the free list. It is a
// diagnostic aid, not part of the minimal spec surface.
func (p *Pool) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	n := 0
	for node := list.First(p.anchor); node != nil; node = list.Next(node) {
		n++
	}
	return n
}
