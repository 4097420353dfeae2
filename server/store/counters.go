package store

import (
	"fmt"
	"sync"

	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
)

// CounterStore persists one throttle counter per campaign and event type.
// Update serializes read-modify-write cycles so that two transitions racing
// for the same campaign cannot both pass the limit.
type CounterStore struct {
	kv KVStore
	mu sync.Mutex
}

// NewCounterStore creates a throttle counter store on top of kv.
func NewCounterStore(kv KVStore) *CounterStore {
	return &CounterStore{kv: kv}
}

func counterKey(campaignID string, et geo.EventType) string {
	return fmt.Sprintf("geo_throttle_%s_%s", campaignID, et)
}

// Get returns the counter for the campaign and event type.
// A campaign that was never surfaced has a zero counter.
func (s *CounterStore) Get(campaignID string, et geo.EventType) (geo.ThrottleCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counter geo.ThrottleCounter
	if _, err := getJSON(s.kv, counterKey(campaignID, et), &counter); err != nil {
		return geo.ThrottleCounter{}, err
	}
	return counter, nil
}

// Update loads the counter, passes it to fn and saves the result when fn
// returns true. It returns what fn returned.
func (s *CounterStore) Update(campaignID string, et geo.EventType, fn func(geo.ThrottleCounter) (geo.ThrottleCounter, bool)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := counterKey(campaignID, et)

	var counter geo.ThrottleCounter
	if _, err := getJSON(s.kv, key, &counter); err != nil {
		return false, err
	}

	updated, save := fn(counter)
	if !save {
		return false, nil
	}

	if err := setJSON(s.kv, key, updated); err != nil {
		return false, err
	}
	return true, nil
}

// Reset removes every counter of the campaign.
func (s *CounterStore) Reset(campaignID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, et := range geo.EventTypes {
		if err := deleteKey(s.kv, counterKey(campaignID, et)); err != nil {
			return err
		}
	}
	return nil
}
