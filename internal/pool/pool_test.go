package pool

import (
	"sync"
	"testing"

	"github.com/coverclock/com-diag-diminuto-sub002/internal/list"
	"github.com/stretchr/testify/assert"
)

func TestPopulateGetPut(t *testing.T) {
	p := New(64)
	nodes := make([]*list.Node, 10)
	for i := range nodes {
		nodes[i] = &list.Node{}
	}
	p.Populate(nodes)
	assert.Equal(t, 10, p.Len())

	got := make([]*list.Node, 0, 3)
	for i := 0; i < 3; i++ {
		n, err := p.Get()
		assert.NoError(t, err)
		assert.NotNil(t, n)
		got = append(got, n)
	}
	assert.Equal(t, 7, p.Len())
	assert.NotEqual(t, got[0], got[1])
	assert.NotEqual(t, got[1], got[2])

	p.Put(got[0])
	p.Put(got[1])
	assert.Equal(t, 9, p.Len())

	n, err := p.Get()
	assert.NoError(t, err)
	assert.NotNil(t, n)
	assert.Equal(t, 8, p.Len())
}

func TestGetAllocatesWhenEmpty(t *testing.T) {
	p := New(8)
	n, err := p.Get()
	assert.NoError(t, err)
	assert.NotNil(t, n)
	assert.Equal(t, n, n.Next)
}

func TestPutClearsPayload(t *testing.T) {
	p := New(8)
	n, err := p.Get()
	assert.NoError(t, err)
	n.Payload = "something"
	p.Put(n)
	n2, err := p.Get()
	assert.NoError(t, err)
	assert.Nil(t, n2.Payload)
}

func TestFiniEmptiesPool(t *testing.T) {
	p := New(8)
	nodes := make([]*list.Node, 5)
	for i := range nodes {
		nodes[i] = &list.Node{}
	}
	p.Populate(nodes)
	p.Fini()
	assert.Equal(t, 0, p.Len())
}

func TestConcurrentGetPut(t *testing.T) {
	p := New(8)
	nodes := make([]*list.Node, 100)
	for i := range nodes {
		nodes[i] = &list.Node{}
	}
	p.Populate(nodes)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				n, _ := p.Get()
				p.Put(n)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, p.Len())
}
