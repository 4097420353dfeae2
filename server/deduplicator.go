package main

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mattermost/mattermost/server/public/pluginapi"

	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
)

const (
	// DeduplicationCacheTTL is how long to remember a transition. Brokers
	// redeliver unacknowledged QoS 1 messages well within this window.
	DeduplicationCacheTTL = time.Hour

	// DeduplicationCleanupInterval is how often to clean up expired entries
	DeduplicationCleanupInterval = 10 * time.Minute
)

// Deduplicator tracks seen transitions so that a redelivered transition is
// not surfaced and reported twice.
type Deduplicator struct {
	api             *pluginapi.Client
	seenTransitions map[string]time.Time
	mu              sync.RWMutex
	stopCleanup     chan struct{}
	cleanupDone     chan struct{}
}

// NewDeduplicator creates a new deduplicator and starts the cleanup loop
func NewDeduplicator(api *pluginapi.Client) *Deduplicator {
	d := &Deduplicator{
		api:             api,
		seenTransitions: make(map[string]time.Time),
		stopCleanup:     make(chan struct{}),
		cleanupDone:     make(chan struct{}),
	}

	go d.cleanupLoop()

	return d
}

// RecordTransition atomically checks if a transition is new and marks it as seen if so.
// Returns true if this is a new transition, false if it's a duplicate.
// Transitions without a timestamp cannot be told apart and are always new.
func (d *Deduplicator) RecordTransition(t geo.Transition) bool {
	if t.OccurredAt.IsZero() {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key := transitionKey(t)

	if _, exists := d.seenTransitions[key]; exists {
		return false
	}

	d.seenTransitions[key] = time.Now()
	return true
}

// transitionKey identifies a transition by event, instant and area set.
func transitionKey(t geo.Transition) string {
	areaIDs := append([]string(nil), t.AreaIDs...)
	sort.Strings(areaIDs)
	return string(t.EventType) + "|" + t.OccurredAt.UTC().Format(time.RFC3339Nano) + "|" + strings.Join(areaIDs, ",")
}

// cleanupLoop periodically removes expired entries from the cache
func (d *Deduplicator) cleanupLoop() {
	ticker := time.NewTicker(DeduplicationCleanupInterval)
	defer ticker.Stop()
	defer close(d.cleanupDone)

	for {
		select {
		case <-ticker.C:
			d.cleanup()
		case <-d.stopCleanup:
			return
		}
	}
}

// cleanup removes entries older than DeduplicationCacheTTL
func (d *Deduplicator) cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	expired := 0

	for key, seenTime := range d.seenTransitions {
		if now.Sub(seenTime) > DeduplicationCacheTTL {
			delete(d.seenTransitions, key)
			expired++
		}
	}

	if expired > 0 {
		d.api.Log.Debug("Cleaned up expired deduplication cache entries",
			"expired", expired,
			"remaining", len(d.seenTransitions))
	}
}

// Stop stops the cleanup goroutine and waits for it to finish
func (d *Deduplicator) Stop() {
	close(d.stopCleanup)
	<-d.cleanupDone
}

// dedupingGeofence drops transitions that were already handled.
type dedupingGeofence struct {
	geofence
	dedup *Deduplicator
	log   *pluginapi.LogService
}

func (g *dedupingGeofence) HandleTransition(ctx context.Context, t geo.Transition) error {
	if !g.dedup.RecordTransition(t) {
		g.log.Debug("Ignoring duplicate transition", "event", string(t.EventType), "areaIds", t.AreaIDs)
		return nil
	}
	return g.geofence.HandleTransition(ctx, t)
}
