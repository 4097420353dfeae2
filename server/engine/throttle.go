package engine

import (
	"time"

	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
	"github.com/mattermost/mattermost-plugin-geofence/server/store"
)

// Throttle decides whether events are surfaced and records the accepted ones.
type Throttle struct {
	counters *store.CounterStore
	location *time.Location
}

// NewThrottle creates a throttle that evaluates delivery windows in location.
func NewThrottle(counters *store.CounterStore, location *time.Location) *Throttle {
	if location == nil {
		location = time.UTC
	}
	return &Throttle{
		counters: counters,
		location: location,
	}
}

// Surface decides whether an event of type et for g is surfaced at now, the
// engine's clock. An accepted event is counted with now as its notification
// time before Surface returns, so a second call for the same campaign sees
// the updated counter.
func (t *Throttle) Surface(g *geo.Geo, et geo.EventType, now time.Time) (geo.Decision, error) {
	local := now.In(t.location)
	decision := geo.Surface

	_, err := t.counters.Update(g.CampaignID, et, func(counter geo.ThrottleCounter) (geo.ThrottleCounter, bool) {
		decision = geo.Decide(g, et, local, counter)
		if decision != geo.Surface {
			return counter, false
		}
		return counter.Surfaced(now), true
	})
	if err != nil {
		return "", err
	}
	return decision, nil
}

// Reset forgets every counter of the campaign.
func (t *Throttle) Reset(campaignID string) error {
	return t.counters.Reset(campaignID)
}
