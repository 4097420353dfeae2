package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
)

func TestCounterStore(t *testing.T) {
	now := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

	t.Run("zero counter for unknown campaign", func(t *testing.T) {
		s := NewCounterStore(NewMemoryKV())

		counter, err := s.Get("c1", geo.EventEntry)
		require.NoError(t, err)
		assert.Equal(t, geo.ThrottleCounter{}, counter)
	})

	t.Run("update saves when accepted", func(t *testing.T) {
		s := NewCounterStore(NewMemoryKV())

		saved, err := s.Update("c1", geo.EventEntry, func(c geo.ThrottleCounter) (geo.ThrottleCounter, bool) {
			return c.Surfaced(now), true
		})
		require.NoError(t, err)
		assert.True(t, saved)

		counter, err := s.Get("c1", geo.EventEntry)
		require.NoError(t, err)
		assert.Equal(t, 1, counter.Displayed)
		assert.True(t, now.Equal(counter.LastNotifiedAt))
	})

	t.Run("update skips when rejected", func(t *testing.T) {
		kv := NewMemoryKV()
		s := NewCounterStore(kv)

		saved, err := s.Update("c1", geo.EventEntry, func(c geo.ThrottleCounter) (geo.ThrottleCounter, bool) {
			return c, false
		})
		require.NoError(t, err)
		assert.False(t, saved)
		assert.Equal(t, 0, kv.Keys())
	})

	t.Run("concurrent updates respect the limit", func(t *testing.T) {
		s := NewCounterStore(NewMemoryKV())

		var wg sync.WaitGroup
		var mu sync.Mutex
		accepted := 0
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				saved, err := s.Update("c1", geo.EventEntry, func(c geo.ThrottleCounter) (geo.ThrottleCounter, bool) {
					if c.Displayed >= 3 {
						return c, false
					}
					return c.Surfaced(now), true
				})
				assert.NoError(t, err)
				if saved {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 3, accepted)
	})

	t.Run("reset", func(t *testing.T) {
		kv := NewMemoryKV()
		s := NewCounterStore(kv)

		_, err := s.Update("c1", geo.EventEntry, func(c geo.ThrottleCounter) (geo.ThrottleCounter, bool) {
			return c.Surfaced(now), true
		})
		require.NoError(t, err)
		require.Equal(t, 1, kv.Keys())

		require.NoError(t, s.Reset("c1"))
		assert.Equal(t, 0, kv.Keys())
	})

	t.Run("store failure", func(t *testing.T) {
		kv := NewMemoryKV()
		kv.FailKey = "geo_throttle_c1_entry"
		s := NewCounterStore(kv)

		_, err := s.Update("c1", geo.EventEntry, func(c geo.ThrottleCounter) (geo.ThrottleCounter, bool) {
			return c.Surfaced(now), true
		})
		require.Error(t, err)
	})
}

func TestWakeupStore(t *testing.T) {
	at := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)
	kv := NewMemoryKV()
	s := NewWakeupStore(kv)

	got, err := s.Get(geo.WakeupRefresh)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Save(geo.WakeupRefresh, &at))
	require.NoError(t, s.Save(geo.WakeupExpire, &at))

	got, err = s.Get(geo.WakeupRefresh)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, at.Equal(*got))

	require.NoError(t, s.Save(geo.WakeupRefresh, nil))
	got, err = s.Get(geo.WakeupRefresh)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, kv.Keys())
}
