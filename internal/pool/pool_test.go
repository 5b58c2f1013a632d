package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type scratch struct {
	buf []int
}

func TestPool(t *testing.T) {
	p := New(func() *scratch {
		return &scratch{buf: make([]int, 0, 8)}
	}, func(s *scratch) {
		s.buf = s.buf[:0]
	})

	s := p.Get()
	assert.Empty(t, s.buf)
	s.buf = append(s.buf, 1, 2, 3)
	p.Put(s)

	// pooled values may be dropped at any time, but never come back dirty
	s = p.Get()
	assert.Empty(t, s.buf)
	p.Put(s)
}

func TestPool_NilReset(t *testing.T) {
	p := New(func() []int { return make([]int, 4) }, nil)
	v := p.Get()
	assert.Len(t, v, 4)
	p.Put(v)
}

func TestPool_Concurrent(t *testing.T) {
	p := New(func() *scratch { return &scratch{} }, func(s *scratch) { s.buf = s.buf[:0] })

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				s := p.Get()
				if len(s.buf) != 0 {
					t.Errorf("worker %d got dirty scratch", i)
				}
				s.buf = append(s.buf, i)
				p.Put(s)
			}
		}()
	}
	wg.Wait()
}
