package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock_DefaultStart(t *testing.T) {
	c := NewManualClock(time.Time{})
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), c.Now())
}

func TestManualClock_Advance(t *testing.T) {
	start := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewManualClock(start)

	assert.Equal(t, start, c.Now(), "clock should not move on its own")

	c.Advance(time.Minute)
	assert.Equal(t, start.Add(time.Minute), c.Now())

	c.Advance(-time.Hour)
	assert.Equal(t, start.Add(time.Minute), c.Now(), "negative advance is ignored")
}

func TestManualClock_ThreadSafe(t *testing.T) {
	c := NewManualClock(time.Time{})
	start := c.Now()
	const goroutines = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Second)
			_ = c.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, start.Add(goroutines*time.Second), c.Now())
}
