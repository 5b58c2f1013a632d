package hnsw

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockStripeIndex(t *testing.T) {
	seen := make(map[int]struct{})
	for level := 0; level < 4; level++ {
		for node := 0; node < 5000; node++ {
			idx := stripeIndex(level, node)
			assert.GreaterOrEqual(t, idx, 0)
			assert.Less(t, idx, lockStripes)
			seen[idx] = struct{}{}
		}
	}
	assert.Equal(t, stripeIndex(3, 1234), stripeIndex(3, 1234))
	assert.Greater(t, len(seen), lockStripes*9/10, "slots should spread over the stripes")
}

func TestLockStripesDoNotShareCacheLines(t *testing.T) {
	l := NewLock()
	a := uintptr(unsafe.Pointer(&l.stripes[0].RWMutex))
	b := uintptr(unsafe.Pointer(&l.stripes[1].RWMutex))
	assert.GreaterOrEqual(t, b-a, unsafe.Sizeof(sync.RWMutex{})+uintptr(64))
}

func TestLockConcurrentStripes(t *testing.T) {
	l := NewLock()
	counters := make([]int, 64)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 2000 {
				node := (i + w) % len(counters)
				if i%4 == 0 {
					lk := l.Write(0, node)
					counters[node]++
					lk.Unlock()
					continue
				}
				lk := l.Read(0, node)
				_ = counters[node]
				lk.Unlock()
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, c := range counters {
		total += c
	}
	require.Equal(t, 8*500, total)
}

func TestLockReadWrite(t *testing.T) {
	l := NewLock()

	r1 := l.Read(0, 7)
	r2 := l.Read(0, 7)
	r1.Unlock()
	r2.Unlock()

	var (
		wg      sync.WaitGroup
		counter int
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				w := l.Write(1, 42)
				counter++
				w.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 16000, counter)
}
