package geo

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// EventType identifies the kind of region crossing raised by the location monitor.
type EventType string

const (
	// EventEntry is raised when a device enters a monitored area.
	EventEntry EventType = "entry"
)

// EventTypes lists every supported event type.
var EventTypes = []EventType{EventEntry}

// ParseEventType converts a raw event type into a supported EventType.
func ParseEventType(raw string) (EventType, error) {
	switch EventType(raw) {
	case EventEntry:
		return EventEntry, nil
	default:
		return "", fmt.Errorf("unsupported event type %q", raw)
	}
}

// WakeupReason names why the planner must run again at a given instant.
type WakeupReason string

const (
	// WakeupRefresh fires when a pending campaign becomes eligible.
	WakeupRefresh WakeupReason = "refresh"

	// WakeupExpire fires when a stored campaign expires and must be swept.
	WakeupExpire WakeupReason = "expire"
)

// Unlimited is the EventSetting limit value that disables the display cap.
const Unlimited = 0

// Area is a circular geofence a campaign wants monitored.
type Area struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters int     `json:"radiusInMeters"`
}

// Valid reports whether the area can be handed to the location monitor.
func (a Area) Valid() bool {
	return a.ID != "" &&
		a.RadiusMeters > 0 &&
		a.Latitude >= -90 && a.Latitude <= 90 &&
		a.Longitude >= -180 && a.Longitude <= 180
}

// DeliveryTimeWindow restricts when surfaced events may be shown.
// Days holds comma separated ISO-8601 weekdays (1=Monday..7=Sunday) and
// Interval holds "HHMM/HHMM". Both are parsed lazily so that a malformed
// window never blocks a notification.
type DeliveryTimeWindow struct {
	Days     string `json:"days"`
	Interval string `json:"timeInterval"`
}

// EventSetting limits how often an event type is surfaced for a campaign.
type EventSetting struct {
	Type EventType `json:"type"`

	// Limit is the maximum number of surfaced events, Unlimited for no cap.
	Limit int `json:"limit"`

	// Timeout is the cooldown between surfaced events in minutes.
	Timeout int `json:"timeoutInMinutes"`
}

// DefaultEventSetting applies to campaigns that carry no event settings.
var DefaultEventSetting = EventSetting{Type: EventEntry, Limit: 1, Timeout: 0}

// Geo is the geofencing payload carried by one signaling entry.
type Geo struct {
	CampaignID     string
	Areas          []Area
	StartDate      *time.Time
	ExpiryDate     *time.Time
	Events         []EventSetting
	DeliveryWindow *DeliveryTimeWindow
}

// Setting returns the event setting that governs the given event type.
func (g *Geo) Setting(et EventType) (EventSetting, bool) {
	if len(g.Events) == 0 {
		if et == DefaultEventSetting.Type {
			return DefaultEventSetting, true
		}
		return EventSetting{}, false
	}

	for _, setting := range g.Events {
		if setting.Type == et {
			return setting, true
		}
	}
	return EventSetting{}, false
}

// Started reports whether the campaign's start date has been reached.
func (g *Geo) Started(now time.Time) bool {
	return g.StartDate == nil || !g.StartDate.After(now)
}

// Expired reports whether the campaign's expiry date has been reached.
func (g *Geo) Expired(now time.Time) bool {
	return g.ExpiryDate != nil && !g.ExpiryDate.After(now)
}

// Active reports whether the campaign is neither finished nor suspended
// and lies within its validity window.
func (g *Geo) Active(status CampaignStatus, now time.Time) bool {
	return !status.Finished.Has(g.CampaignID) &&
		!status.Suspended.Has(g.CampaignID) &&
		g.Started(now) &&
		!g.Expired(now)
}

// ValidAreas returns the areas that pass Area.Valid.
func (g *Geo) ValidAreas() []Area {
	var areas []Area
	for _, area := range g.Areas {
		if area.Valid() {
			areas = append(areas, area)
		}
	}
	return areas
}

// Area returns the area with the given id.
func (g *Geo) Area(id string) (Area, bool) {
	for _, area := range g.Areas {
		if area.ID == id {
			return area, true
		}
	}
	return Area{}, false
}

// Entry is a stored signaling message carrying a Geo payload.
type Entry struct {
	ID         string
	Geo        *Geo
	ReceivedAt time.Time
}

// Message is the notification generated when an entry's event is surfaced.
type Message struct {
	ID         string    `json:"id"`
	SourceID   string    `json:"sourceId"`
	CampaignID string    `json:"campaignId"`
	AreaID     string    `json:"areaId"`
	EventType  EventType `json:"eventType"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Location is a latitude/longitude pair.
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Transition is a region crossing raised by the location monitor.
type Transition struct {
	EventType  EventType
	AreaIDs    []string
	Location   Location
	OccurredAt time.Time
}

// Report is a geo event waiting to be acknowledged by the backend.
// Reports compare by value; Key gives the canonical identity used for set semantics.
type Report struct {
	CampaignID      string    `json:"campaignId"`
	AreaID          string    `json:"geofenceAreaId"`
	EventType       EventType `json:"event"`
	OccurredAt      time.Time `json:"timestamp"`
	Location        Location  `json:"location"`
	SourceMessageID string    `json:"sdkMessageId"`
	MessageID       string    `json:"messageId"`
}

// Key returns a string that is equal for two reports iff all of their fields are equal.
func (r Report) Key() string {
	return r.CampaignID + "|" + r.AreaID + "|" + string(r.EventType) + "|" +
		r.OccurredAt.UTC().Format(time.RFC3339Nano) + "|" +
		strconv.FormatFloat(r.Location.Latitude, 'g', -1, 64) + "|" +
		strconv.FormatFloat(r.Location.Longitude, 'g', -1, 64) + "|" +
		r.SourceMessageID + "|" + r.MessageID
}

// ReportResult is the backend's answer to a batch of reports.
type ReportResult struct {
	MessageIDs           map[string]string `json:"messageIds"`
	InactiveCampaignIDs  []string          `json:"inactiveCampaignIds"`
	FinishedCampaignIDs  []string          `json:"finishedCampaignIds"`
	SuspendedCampaignIDs []string          `json:"suspendedCampaignIds"`
}

// IDSet is a set of campaign identifiers.
type IDSet map[string]struct{}

// NewIDSet builds a set from the given ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Has reports whether id is in the set. A nil set is empty.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id into the set.
func (s IDSet) Add(id string) {
	s[id] = struct{}{}
}

// Sorted returns the ids in lexical order.
func (s IDSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CampaignStatus holds the campaigns the backend reported as finished or suspended.
type CampaignStatus struct {
	Finished  IDSet
	Suspended IDSet
}

// ThrottleCounter tracks surfaced events for one campaign and event type.
type ThrottleCounter struct {
	Displayed      int       `json:"displayed"`
	LastNotifiedAt time.Time `json:"lastNotifiedAt"`
}
