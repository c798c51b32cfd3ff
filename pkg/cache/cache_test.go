package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrPopulateStoresAndReturns(t *testing.T) {
	c := New[string, int]()

	value, err := c.GetOrPopulate("answer", time.Minute, false, func() (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, value)

	value, err = c.GetOrPopulate("answer", time.Minute, false, func() (int, error) {
		t.Fatal("populate should not run for a fresh entry")
		return 0, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestExpiryBoundary(t *testing.T) {
	now := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	c := New[string, string]()
	c.Now = func() time.Time { return now }

	populations := 0
	populate := func() (string, error) {
		populations++
		return "value", nil
	}

	_, err := c.GetOrPopulate("key", time.Minute, false, populate)
	require.NoError(t, err)
	assert.Equal(t, 1, populations)

	now = now.Add(time.Minute - time.Millisecond)
	_, err = c.GetOrPopulate("key", time.Minute, false, populate)
	require.NoError(t, err)
	assert.Equal(t, 1, populations, "entry just inside the TTL should be served from cache")

	now = now.Add(2 * time.Millisecond)
	_, err = c.GetOrPopulate("key", time.Minute, false, populate)
	require.NoError(t, err)
	assert.Equal(t, 2, populations, "entry just past the TTL should be repopulated")
}

func TestFailedPopulateKeepsStaleEntry(t *testing.T) {
	now := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	c := New[string, string]()
	c.Now = func() time.Time { return now }

	_, err := c.GetOrPopulate("key", time.Minute, false, func() (string, error) {
		return "original", nil
	})
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)

	upstreamDown := errors.New("upstream down")
	_, err = c.GetOrPopulate("key", time.Minute, false, func() (string, error) {
		return "", upstreamDown
	})
	assert.ErrorIs(t, err, upstreamDown)

	stale, ok := c.Stale("key")
	require.True(t, ok, "stale entry must survive a failed population")
	assert.Equal(t, "original", stale)
}

func TestForceRefreshBypassesReadPath(t *testing.T) {
	c := New[string, int]()

	_, err := c.GetOrPopulate("key", time.Hour, false, func() (int, error) {
		return 1, nil
	})
	require.NoError(t, err)

	value, err := c.GetOrPopulate("key", time.Hour, true, func() (int, error) {
		return 2, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, value)

	value, err = c.GetOrPopulate("key", time.Hour, false, func() (int, error) {
		return 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, value, "forced refresh must write through the cache")
}

func TestConcurrentCallersShareOnePopulation(t *testing.T) {
	c := New[string, int]()

	var populations atomic.Int32
	release := make(chan struct{})

	var waitGroup sync.WaitGroup
	for i := 0; i < 8; i++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()

			value, err := c.GetOrPopulate("key", time.Minute, false, func() (int, error) {
				populations.Add(1)
				<-release
				return 7, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 7, value)
		}()
	}

	// Give the racing goroutines a moment to pile onto the same key
	time.Sleep(50 * time.Millisecond)
	close(release)
	waitGroup.Wait()

	assert.Equal(t, int32(1), populations.Load())
}

func TestStaleOnMissingKey(t *testing.T) {
	c := New[string, int]()

	_, ok := c.Stale("never-populated")
	assert.False(t, ok)
}
