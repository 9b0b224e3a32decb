package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock_StartsAtGivenInstant(t *testing.T) {
	clock := NewManualClock(1000)
	assert.Equal(t, int64(1000), clock.Now().UnixMilli())
}

func TestManualClock_SetAndAdvance(t *testing.T) {
	clock := NewManualClock(0)

	clock.Set(5000)
	assert.Equal(t, int64(5000), clock.Now().UnixMilli())

	clock.Advance(2 * time.Second)
	assert.Equal(t, int64(7000), clock.Now().UnixMilli())
}

func TestManualClock_ConcurrentAccess(t *testing.T) {
	clock := NewManualClock(0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Advance(time.Millisecond)
			_ = clock.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), clock.Now().UnixMilli())
}
