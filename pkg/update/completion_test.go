package update

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletion(t *testing.T) {
	c := newCompletion()

	_, ok := c.observe()
	assert.False(t, ok)

	assert.True(t, c.notify(-3))
	assert.False(t, c.notify(0), "second result is rejected")

	result, ok := c.observe()
	require.True(t, ok)
	assert.Equal(t, int32(-3), result)

	result, ok = c.observe()
	require.True(t, ok, "observing does not clear the result")
	assert.Equal(t, int32(-3), result)
}

func TestCompletionDetached(t *testing.T) {
	c := newCompletion()
	c.detach()

	assert.False(t, c.notify(0))
	_, ok := c.observe()
	assert.False(t, ok)
}

func TestCompletionDetachAfterResultKeepsIt(t *testing.T) {
	c := newCompletion()
	require.True(t, c.notify(0))
	c.detach()

	result, ok := c.observe()
	require.True(t, ok)
	assert.Equal(t, int32(0), result)
}

func TestCompletionConcurrentNotify(t *testing.T) {
	c := newCompletion()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted []int32
	)
	for i := int32(0); i < 32; i++ {
		wg.Add(1)
		go func(result int32) {
			defer wg.Done()
			if c.notify(result) {
				mu.Lock()
				accepted = append(accepted, result)
				mu.Unlock()
			}
		}(i)
	}

	observed := make(chan int32, 1)
	go func() {
		for {
			if r, ok := c.observe(); ok {
				observed <- r
				return
			}
		}
	}()

	wg.Wait()
	require.Len(t, accepted, 1)
	assert.Equal(t, accepted[0], <-observed)
}
