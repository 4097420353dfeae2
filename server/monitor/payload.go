package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
)

// regionSet is published retained on the regions topic. An empty set
// unregisters every region.
type regionSet struct {
	Regions     []geo.Region `json:"regions"`
	PublishedAt time.Time    `json:"publishedAt"`
}

// transitionPayload is what devices publish on the transitions topic.
type transitionPayload struct {
	Event     string       `json:"event"`
	AreaIDs   []string     `json:"areaIds"`
	Location  geo.Location `json:"location"`
	Timestamp string       `json:"timestamp,omitempty"`
}

func encodeRegions(regions []geo.Region, now time.Time) ([]byte, error) {
	if regions == nil {
		regions = []geo.Region{}
	}
	return json.Marshal(regionSet{Regions: regions, PublishedAt: now.UTC()})
}

// DecodeRegions parses a region set published by RegisterRegions.
func DecodeRegions(data []byte) ([]geo.Region, error) {
	var set regionSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("invalid region set: %w", err)
	}
	return set.Regions, nil
}

// DecodeTransition parses a transition published by a device.
// A missing timestamp leaves OccurredAt zero.
func DecodeTransition(data []byte) (geo.Transition, error) {
	var p transitionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return geo.Transition{}, fmt.Errorf("invalid transition: %w", err)
	}

	et, err := geo.ParseEventType(p.Event)
	if err != nil {
		return geo.Transition{}, err
	}

	if len(p.AreaIDs) == 0 {
		return geo.Transition{}, errors.New("transition has no area ids")
	}

	t := geo.Transition{
		EventType: et,
		AreaIDs:   p.AreaIDs,
		Location:  p.Location,
	}

	if p.Timestamp != "" {
		occurredAt, err := time.Parse(time.RFC3339Nano, p.Timestamp)
		if err != nil {
			return geo.Transition{}, fmt.Errorf("invalid transition timestamp %q: %w", p.Timestamp, err)
		}
		t.OccurredAt = occurredAt
	}

	return t, nil
}

// EncodeTransition is the inverse of DecodeTransition.
func EncodeTransition(t geo.Transition) ([]byte, error) {
	p := transitionPayload{
		Event:    string(t.EventType),
		AreaIDs:  t.AreaIDs,
		Location: t.Location,
	}
	if !t.OccurredAt.IsZero() {
		p.Timestamp = t.OccurredAt.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(p)
}
