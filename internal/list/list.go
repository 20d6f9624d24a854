// Package list implements an intrusive circular doubly-linked list with a
// root back-reference on every node, the substrate used by the pool and
// record packages. A node's identity is its pointer; nodes are never
// relocated or copied by any operation here.
package list

// Node is a member of a circular doubly-linked list. An unattached node is
// a singleton list rooted at itself: Next and Previous point to the node
// itself, and Root points to the node itself. Payload is never inspected by
// any operation in this package.
type Node struct {
	Next     *Node
	Previous *Node
	Root     *Node
	Payload  any
}

// New returns a freshly initialized singleton node.
func New() *Node {
	n := &Node{}
	Init(n)
	return n
}

// Init makes node into a singleton list rooted at itself, with a nil
// payload. Any prior list membership is discarded (the caller is
// responsible for having removed it first if that matters).
func Init(node *Node) *Node {
	node.Next = node
	node.Previous = node
	node.Root = node
	node.Payload = nil
	return node
}

// InsertAfter first removes node from whatever list it currently belongs
// to (a no-op if it is already a singleton), then splices it in
// immediately after anchor, inheriting anchor's root.
func InsertAfter(anchor, node *Node) *Node {
	Remove(node)
	node.Root = anchor.Root
	node.Previous = anchor
	node.Next = anchor.Next
	anchor.Next.Previous = node
	anchor.Next = node
	return node
}

// Remove restores node to the singleton-rooted-at-self state. It reports
// whether anything was actually removed: removing an already-singleton
// node is a no-op that reports false.
func Remove(node *Node) bool {
	if node.Next == node && node.Previous == node {
		return false
	}
	node.Previous.Next = node.Next
	node.Next.Previous = node.Previous
	node.Next = node
	node.Previous = node
	node.Root = node
	return true
}

// First returns the head of the list rooted at root, or nil if the list
// (root included) is empty, i.e. root has no other members.
func First(root *Node) *Node {
	if root.Next == root {
		return nil
	}
	return root.Next
}

// Last returns the tail of the list rooted at root, or nil if empty.
func Last(root *Node) *Node {
	if root.Previous == root {
		return nil
	}
	return root.Previous
}

// Next returns the node following node in traversal order, or nil if node
// is the tail (the node just before its root).
func Next(node *Node) *Node {
	if node.Next == node.Root {
		return nil
	}
	return node.Next
}

// Previous returns the node preceding node in traversal order, or nil if
// node is the head.
func Previous(node *Node) *Node {
	if node.Previous == node.Root {
		return nil
	}
	return node.Previous
}

// Apply iterates from start forward (start is typically the root's First),
// calling fn(node, context) at each node, stopping and returning the first
// node for which fn returns non-zero. Returns nil if iteration completes
// without fn ever returning non-zero.
func Apply(fn func(node *Node, context any) int, start *Node, context any) *Node {
	for node := start; node != nil; node = Next(node) {
		if fn(node, context) != 0 {
			return node
		}
	}
	return nil
}
