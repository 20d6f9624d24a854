// Package record implements the scatter/gather Segment, Buffer, and Record
// abstractions: a Segment binds a pool-managed list node to exactly one
// heap Buffer, and a Record is an ordered sequence of Segments whose
// concatenated payloads form one logical packet. Grounded on
// diminuto_scattergather.c/.h; the pooled-node shape is grounded on the
// teacher's pkg/sdo segmented/block transfer buffering style.
package record

import (
	"errors"

	"github.com/coverclock/com-diag-diminuto-sub002/internal/list"
	"github.com/coverclock/com-diag-diminuto-sub002/internal/pool"
)

// ErrVectorTooShort is returned by Vectorize when the caller-supplied
// vector cannot hold every Segment of the record. Per spec, this is not
// treated as an error condition by callers that expect it (it may be
// intentional), merely a signal.
var ErrVectorTooShort = errors.New("record: vector too short for segment count")

// MaxVectorSegments bounds how many Segments a Record I/O call can
// transmit atomically (nominally 1024, matching UIO_MAXIOV).
const MaxVectorSegments = 1024

// Segment is a list node whose payload is exactly one Buffer.
type Segment struct {
	node *list.Node
	buf  *buffer
}

// Record is the root of an ordered list of Segments.
type Record struct {
	anchor *list.Node
}

// AllocateSegment draws a node from pool, allocates a Buffer whose payload
// region is at least size bytes and 8-byte aligned, sets the Buffer's
// length to size (the caller may overwrite it), and associates the two.
func AllocateSegment(p *pool.Pool, size int) *Segment {
	node, _ := p.Get()
	buf := newBuffer(size)
	node.Payload = buf
	return &Segment{node: node, buf: buf}
}

// FreeSegment frees the Buffer, clears the node's payload, and returns the
// node to pool.
func FreeSegment(p *pool.Pool, s *Segment) {
	s.buf = nil
	p.Put(s.node)
}

// Payload returns the Segment's meaningful bytes: payload[0:length].
func (s *Segment) Payload() []byte {
	return s.buf.payload[:s.buf.length]
}

// Capacity returns the full backing allocation available to the Segment,
// independent of its current meaningful length.
func (s *Segment) Capacity() []byte {
	return s.buf.payload
}

// Length returns the Segment's meaningful length.
func (s *Segment) Length() int {
	return s.buf.length
}

// SetLength sets the Segment's meaningful length. n must not exceed the
// Buffer's backing capacity.
func (s *Segment) SetLength(n int) {
	if n < 0 || n > cap(s.buf.payload) {
		panic("record: segment length out of range of backing buffer")
	}
	s.buf.length = n
}

// AllocateRecord draws an anchor node from pool to root a new, empty
// Record.
func AllocateRecord(p *pool.Pool) *Record {
	node, _ := p.Get()
	return &Record{anchor: node}
}

// FreeRecord frees every child Segment (returning their Buffers and nodes
// to pool) and then returns the Record's own anchor node to pool.
func FreeRecord(p *pool.Pool, r *Record) {
	FreeRecordSegments(p, r)
	p.Put(r.anchor)
}

// FreeRecordSegments frees every child Segment but keeps the Record itself
// usable (now empty).
func FreeRecordSegments(p *pool.Pool, r *Record) {
	for {
		h := Head(r)
		if h == nil {
			break
		}
		RemoveSegment(h)
		FreeSegment(p, h)
	}
}

// Append adds s as the new tail Segment of r.
func Append(r *Record, s *Segment) {
	list.InsertAfter(r.anchor.Previous, s.node)
}

// Prepend adds s as the new head Segment of r.
func Prepend(r *Record, s *Segment) {
	list.InsertAfter(r.anchor, s.node)
}

// InsertAfter splices newSegment into r immediately after existing.
func InsertAfter(existing, newSegment *Segment) {
	list.InsertAfter(existing.node, newSegment.node)
}

// Replace removes old from its Record and splices replacement into the
// same position.
func Replace(old, replacement *Segment) {
	anchor := old.node.Previous
	list.Remove(old.node)
	list.InsertAfter(anchor, replacement.node)
}

// RemoveSegment detaches s from whatever Record it belongs to.
func RemoveSegment(s *Segment) {
	list.Remove(s.node)
}

// Head returns the first Segment of r, or nil if r is empty.
func Head(r *Record) *Segment {
	return segmentOf(list.First(r.anchor))
}

// Tail returns the last Segment of r, or nil if r is empty.
func Tail(r *Record) *Segment {
	return segmentOf(list.Last(r.anchor))
}

// NextSegment returns the Segment following s in its Record, or nil at the
// tail.
func NextSegment(s *Segment) *Segment {
	return segmentOf(list.Next(s.node))
}

// PreviousSegment returns the Segment preceding s in its Record, or nil at
// the head.
func PreviousSegment(s *Segment) *Segment {
	return segmentOf(list.Previous(s.node))
}

func segmentOf(n *list.Node) *Segment {
	if n == nil {
		return nil
	}
	buf, _ := n.Payload.(*buffer)
	return &Segment{node: n, buf: buf}
}

// Enumerate counts the Segments in r.
func Enumerate(r *Record) int {
	n := 0
	for s := Head(r); s != nil; s = NextSegment(s) {
		n++
	}
	return n
}

// Measure sums the meaningful lengths of every Segment in r.
func Measure(r *Record) int {
	total := 0
	for s := Head(r); s != nil; s = NextSegment(s) {
		if s.buf != nil {
			total += s.buf.length
		}
	}
	return total
}

// Iovec mirrors the {payload, length} pair Vectorize populates; it is kept
// distinct from unix.Iovec so Vectorize itself has no platform dependency
// (io.go converts to unix.Iovec for the system calls).
type Iovec struct {
	Payload []byte
	Length  int
}

// Vectorize populates out with {payload, length} pairs for each Segment of
// r in list order, returning the populated prefix. If out is too short to
// hold every Segment, it returns ErrVectorTooShort (not a fatal condition —
// per spec this may be intentional on the caller's part).
func Vectorize(r *Record, out []Iovec) ([]Iovec, error) {
	i := 0
	for s := Head(r); s != nil; s = NextSegment(s) {
		if i >= len(out) {
			return nil, ErrVectorTooShort
		}
		out[i] = Iovec{Payload: s.Payload(), Length: s.Length()}
		i++
	}
	return out[:i], nil
}

// Dump returns a diagnostic, multi-line description of r suitable for
// logging.
func Dump(r *Record) string {
	out := ""
	i := 0
	total := 0
	for s := Head(r); s != nil; s = NextSegment(s) {
		out += dumpLine(i, s)
		total += s.Length()
		i++
	}
	out += dumpTotal(i, total)
	return out
}
