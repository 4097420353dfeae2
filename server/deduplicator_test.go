package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mattermost/mattermost/server/public/plugin/plugintest"
	"github.com/mattermost/mattermost/server/public/pluginapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
)

func testTransition(at time.Time, areaIDs ...string) geo.Transition {
	return geo.Transition{
		EventType:  geo.EventEntry,
		AreaIDs:    areaIDs,
		Location:   geo.Location{Latitude: 52.52, Longitude: 13.40},
		OccurredAt: at,
	}
}

func TestDeduplicator(t *testing.T) {
	at := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

	t.Run("new transition is recorded successfully", func(t *testing.T) {
		api := plugintest.NewAPI(t)
		client := pluginapi.NewClient(api, &plugintest.Driver{})

		dedup := NewDeduplicator(client)
		defer dedup.Stop()

		isNew := dedup.RecordTransition(testTransition(at, "a1"))
		assert.True(t, isNew, "First occurrence should be recorded as new")
	})

	t.Run("duplicate transition is rejected", func(t *testing.T) {
		api := plugintest.NewAPI(t)
		client := pluginapi.NewClient(api, &plugintest.Driver{})

		dedup := NewDeduplicator(client)
		defer dedup.Stop()

		assert.True(t, dedup.RecordTransition(testTransition(at, "a1", "a2")))

		// Area order does not matter
		isNew := dedup.RecordTransition(testTransition(at, "a2", "a1"))
		assert.False(t, isNew, "Second occurrence should be rejected as duplicate")
	})

	t.Run("different instants and areas are distinct", func(t *testing.T) {
		api := plugintest.NewAPI(t)
		client := pluginapi.NewClient(api, &plugintest.Driver{})

		dedup := NewDeduplicator(client)
		defer dedup.Stop()

		assert.True(t, dedup.RecordTransition(testTransition(at, "a1")))
		assert.True(t, dedup.RecordTransition(testTransition(at.Add(time.Second), "a1")))
		assert.True(t, dedup.RecordTransition(testTransition(at, "a2")))

		assert.False(t, dedup.RecordTransition(testTransition(at, "a1")))
		assert.False(t, dedup.RecordTransition(testTransition(at.Add(time.Second), "a1")))
		assert.False(t, dedup.RecordTransition(testTransition(at, "a2")))
	})

	t.Run("same instant in another zone is a duplicate", func(t *testing.T) {
		api := plugintest.NewAPI(t)
		client := pluginapi.NewClient(api, &plugintest.Driver{})

		dedup := NewDeduplicator(client)
		defer dedup.Stop()

		assert.True(t, dedup.RecordTransition(testTransition(at, "a1")))
		assert.False(t, dedup.RecordTransition(testTransition(at.In(time.FixedZone("CET", 3600)), "a1")))
	})

	t.Run("transitions without timestamp are always new", func(t *testing.T) {
		api := plugintest.NewAPI(t)
		client := pluginapi.NewClient(api, &plugintest.Driver{})

		dedup := NewDeduplicator(client)
		defer dedup.Stop()

		assert.True(t, dedup.RecordTransition(testTransition(time.Time{}, "a1")))
		assert.True(t, dedup.RecordTransition(testTransition(time.Time{}, "a1")))
	})

	t.Run("cleanup removes expired entries", func(t *testing.T) {
		api := plugintest.NewAPI(t)
		api.On("LogDebug", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Maybe()
		client := pluginapi.NewClient(api, &plugintest.Driver{})

		dedup := NewDeduplicator(client)
		defer dedup.Stop()

		tr := testTransition(at, "a1")
		assert.True(t, dedup.RecordTransition(tr))

		// Manually set the seen time to be older than TTL
		dedup.mu.Lock()
		dedup.seenTransitions[transitionKey(tr)] = time.Now().Add(-2 * time.Hour)
		dedup.mu.Unlock()

		dedup.cleanup()

		isNew := dedup.RecordTransition(tr)
		assert.True(t, isNew, "Transition should be new again after expiration")
	})

	t.Run("cleanup keeps recent entries", func(t *testing.T) {
		api := plugintest.NewAPI(t)
		client := pluginapi.NewClient(api, &plugintest.Driver{})

		dedup := NewDeduplicator(client)
		defer dedup.Stop()

		tr := testTransition(at, "a1")
		assert.True(t, dedup.RecordTransition(tr))

		dedup.cleanup()

		isNew := dedup.RecordTransition(tr)
		assert.False(t, isNew, "Recent transition should still be duplicate")
	})

	t.Run("stop waits for cleanup goroutine", func(t *testing.T) {
		api := plugintest.NewAPI(t)
		client := pluginapi.NewClient(api, &plugintest.Driver{})

		dedup := NewDeduplicator(client)

		done := make(chan struct{})
		go func() {
			dedup.Stop()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(1 * time.Second):
			t.Fatal("Stop() did not complete within timeout")
		}
	})

	t.Run("concurrent access is safe", func(t *testing.T) {
		api := plugintest.NewAPI(t)
		client := pluginapi.NewClient(api, &plugintest.Driver{})

		dedup := NewDeduplicator(client)
		defer dedup.Stop()

		done := make(chan struct{})

		for w := 0; w < 2; w++ {
			go func() {
				for i := 0; i < 100; i++ {
					dedup.RecordTransition(testTransition(at, fmt.Sprintf("a%d", i)))
				}
				done <- struct{}{}
			}()
		}

		<-done
		<-done

		dedup.mu.RLock()
		defer dedup.mu.RUnlock()
		assert.Len(t, dedup.seenTransitions, 100)
	})
}

type recordingGeofence struct {
	geofence
	transitions []geo.Transition
}

func (r *recordingGeofence) HandleTransition(_ context.Context, t geo.Transition) error {
	r.transitions = append(r.transitions, t)
	return nil
}

func TestDedupingGeofence(t *testing.T) {
	api := plugintest.NewAPI(t)
	api.On("LogDebug", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Maybe()
	client := pluginapi.NewClient(api, &plugintest.Driver{})

	dedup := NewDeduplicator(client)
	defer dedup.Stop()

	inner := &recordingGeofence{}
	g := &dedupingGeofence{geofence: inner, dedup: dedup, log: &client.Log}

	tr := testTransition(time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC), "a1")
	require.NoError(t, g.HandleTransition(context.Background(), tr))
	require.NoError(t, g.HandleTransition(context.Background(), tr))

	assert.Len(t, inner.transitions, 1)
}
