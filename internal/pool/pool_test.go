package pool_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ldevaal/wiredns/internal/pool"
)

func TestPoolGetAndPut(t *testing.T) {
	bufPool := pool.New(func() []byte {
		return make([]byte, 1024)
	})

	buf := bufPool.Get()
	assert.Len(t, buf, 1024)

	bufPool.Put(buf)

	buf2 := bufPool.Get()
	assert.Len(t, buf2, 1024)
}

func TestPoolConstructorProvidesNewItems(t *testing.T) {
	calls := 0
	p := pool.New(func() int {
		calls++
		return calls
	})

	first := p.Get()
	second := p.Get()
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestPoolConcurrentUse(t *testing.T) {
	bufPool := pool.New(func() []byte {
		return make([]byte, 64)
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				buf := bufPool.Get()
				assert.Len(t, buf, 64)
				bufPool.Put(buf)
			}
		}()
	}
	wg.Wait()
}
