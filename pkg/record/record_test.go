package record

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coverclock/com-diag-diminuto-sub002/internal/pool"
)

func TestAllocateSegmentPayloadLength(t *testing.T) {
	p := pool.New(0)
	s := AllocateSegment(p, 16)
	assert.Equal(t, 16, s.Length())
	assert.Len(t, s.Payload(), 16)
	FreeSegment(p, s)
}

func TestSetLengthWithinCapacity(t *testing.T) {
	p := pool.New(0)
	s := AllocateSegment(p, 16)
	s.SetLength(4)
	assert.Equal(t, 4, s.Length())
	assert.Len(t, s.Payload(), 4)
	FreeSegment(p, s)
}

func TestSetLengthOutOfRangePanics(t *testing.T) {
	p := pool.New(0)
	s := AllocateSegment(p, 16)
	assert.Panics(t, func() { s.SetLength(17) })
}

func TestRecordAppendOrderAndEnumerate(t *testing.T) {
	p := pool.New(0)
	r := AllocateRecord(p)

	a := AllocateSegment(p, 4)
	b := AllocateSegment(p, 8)
	c := AllocateSegment(p, 16)
	Append(r, a)
	Append(r, b)
	Append(r, c)

	assert.Equal(t, 3, Enumerate(r))
	assert.Equal(t, 28, Measure(r))

	assert.Same(t, a.node, Head(r).node)
	assert.Same(t, c.node, Tail(r).node)
	assert.Same(t, b.node, NextSegment(a).node)
	assert.Same(t, a.node, PreviousSegment(b).node)

	FreeRecord(p, r)
}

func TestRecordPrepend(t *testing.T) {
	p := pool.New(0)
	r := AllocateRecord(p)

	a := AllocateSegment(p, 1)
	b := AllocateSegment(p, 2)
	Append(r, a)
	Prepend(r, b)

	assert.Same(t, b.node, Head(r).node)
	assert.Same(t, a.node, Tail(r).node)

	FreeRecord(p, r)
}

func TestRecordRemoveSegment(t *testing.T) {
	p := pool.New(0)
	r := AllocateRecord(p)

	a := AllocateSegment(p, 1)
	b := AllocateSegment(p, 2)
	Append(r, a)
	Append(r, b)

	RemoveSegment(a)
	assert.Equal(t, 1, Enumerate(r))
	assert.Same(t, b.node, Head(r).node)

	FreeSegment(p, a)
	FreeRecord(p, r)
}

func TestRecordReplace(t *testing.T) {
	p := pool.New(0)
	r := AllocateRecord(p)

	a := AllocateSegment(p, 1)
	b := AllocateSegment(p, 2)
	Append(r, a)

	Replace(a, b)
	assert.Equal(t, 1, Enumerate(r))
	assert.Same(t, b.node, Head(r).node)

	FreeSegment(p, a)
	FreeRecord(p, r)
}

func TestFreeRecordSegmentsKeepsRecordUsable(t *testing.T) {
	p := pool.New(0)
	r := AllocateRecord(p)

	Append(r, AllocateSegment(p, 4))
	Append(r, AllocateSegment(p, 4))
	FreeRecordSegments(p, r)

	assert.Equal(t, 0, Enumerate(r))
	assert.Nil(t, Head(r))

	Append(r, AllocateSegment(p, 2))
	assert.Equal(t, 1, Enumerate(r))

	FreeRecord(p, r)
}

// TestVectorizeThreeSegments exercises the spec's worked scatter/gather
// example: three segments of sizes 4, 8, and 16, enumerated and measured,
// then vectorized into a four-slot vector with one slot left unused.
func TestVectorizeThreeSegments(t *testing.T) {
	p := pool.New(0)
	r := AllocateRecord(p)

	Append(r, AllocateSegment(p, 4))
	Append(r, AllocateSegment(p, 8))
	Append(r, AllocateSegment(p, 16))

	assert.Equal(t, 3, Enumerate(r))
	assert.Equal(t, 28, Measure(r))

	slots := make([]Iovec, 4)
	filled, err := Vectorize(r, slots)
	assert.NoError(t, err)
	assert.Len(t, filled, 3)
	assert.Equal(t, 4, filled[0].Length)
	assert.Equal(t, 8, filled[1].Length)
	assert.Equal(t, 16, filled[2].Length)

	FreeRecord(p, r)
}

func TestVectorizeTooShort(t *testing.T) {
	p := pool.New(0)
	r := AllocateRecord(p)

	Append(r, AllocateSegment(p, 4))
	Append(r, AllocateSegment(p, 8))

	slots := make([]Iovec, 1)
	_, err := Vectorize(r, slots)
	assert.ErrorIs(t, err, ErrVectorTooShort)

	FreeRecord(p, r)
}

func TestDumpIncludesSegmentCount(t *testing.T) {
	p := pool.New(0)
	r := AllocateRecord(p)
	Append(r, AllocateSegment(p, 4))
	Append(r, AllocateSegment(p, 8))

	out := Dump(r)
	assert.Contains(t, out, "segments=2")
	assert.Contains(t, out, "total=12")

	FreeRecord(p, r)
}
