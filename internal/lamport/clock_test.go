package lamport

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTickIncrements(t *testing.T) {
	c := New()
	assert.EqualValues(t, 0, c.Now())
	assert.EqualValues(t, 1, c.Tick())
	assert.EqualValues(t, 2, c.Tick())
}

func TestWitnessTakesMax(t *testing.T) {
	c := New()
	c.Tick() // 1
	assert.EqualValues(t, 11, c.Witness(10))
	assert.EqualValues(t, 12, c.Witness(3))
}

func TestNeverDecreases(t *testing.T) {
	c := New()
	var last Time
	var wg sync.WaitGroup
	var mu sync.Mutex
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := c.Tick()
			mu.Lock()
			if v > last {
				last = v
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 50, c.Now())
}
