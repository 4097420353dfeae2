package store

import (
	"fmt"
	"time"

	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
)

// WakeupStore remembers the instants the planner asked to be woken at,
// so that a restarted plugin can reschedule them.
type WakeupStore struct {
	kv KVStore
}

// NewWakeupStore creates a wake-up store on top of kv.
func NewWakeupStore(kv KVStore) *WakeupStore {
	return &WakeupStore{kv: kv}
}

func wakeupKey(reason geo.WakeupReason) string {
	return fmt.Sprintf("geo_wakeup_%s", reason)
}

// Save stores the wake-up instant for reason. A nil instant clears it.
func (s *WakeupStore) Save(reason geo.WakeupReason, at *time.Time) error {
	if at == nil {
		return deleteKey(s.kv, wakeupKey(reason))
	}
	return setJSON(s.kv, wakeupKey(reason), at.UTC())
}

// Get returns the stored wake-up instant for reason, or nil if none is stored.
func (s *WakeupStore) Get(reason geo.WakeupReason) (*time.Time, error) {
	var at time.Time
	found, err := getJSON(s.kv, wakeupKey(reason), &at)
	if err != nil || !found {
		return nil, err
	}
	return &at, nil
}
