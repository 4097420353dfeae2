package geo

import (
	"encoding/json"
	"fmt"
	"time"
)

// geoPayload is the wire shape of a Geo as it arrives in a push message.
type geoPayload struct {
	CampaignID     string              `json:"campaignId"`
	Areas          []Area              `json:"geo"`
	StartTime      string              `json:"startTime,omitempty"`
	ExpiryTime     string              `json:"expiryTime,omitempty"`
	Events         []EventSetting      `json:"event,omitempty"`
	DeliveryWindow *DeliveryTimeWindow `json:"deliveryTime,omitempty"`
}

// ParseGeo decodes a Geo payload. A payload without a campaign id,
// with unparseable dates or with unsupported event types is rejected.
func ParseGeo(data []byte) (*Geo, error) {
	var g Geo
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for Geo.
// Dates are RFC 3339 strings; empty strings mean "not set".
func (g *Geo) UnmarshalJSON(data []byte) error {
	var p geoPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to decode geo payload: %w", err)
	}

	if p.CampaignID == "" {
		return fmt.Errorf("geo payload missing campaignId")
	}

	start, err := parseOptionalTime(p.StartTime)
	if err != nil {
		return fmt.Errorf("invalid startTime: %w", err)
	}
	expiry, err := parseOptionalTime(p.ExpiryTime)
	if err != nil {
		return fmt.Errorf("invalid expiryTime: %w", err)
	}

	for i, setting := range p.Events {
		if _, err := ParseEventType(string(setting.Type)); err != nil {
			return fmt.Errorf("event setting %d: %w", i, err)
		}
	}

	*g = Geo{
		CampaignID:     p.CampaignID,
		Areas:          p.Areas,
		StartDate:      start,
		ExpiryDate:     expiry,
		Events:         p.Events,
		DeliveryWindow: p.DeliveryWindow,
	}
	return nil
}

// MarshalJSON encodes the Geo in the same shape UnmarshalJSON accepts.
func (g Geo) MarshalJSON() ([]byte, error) {
	p := geoPayload{
		CampaignID:     g.CampaignID,
		Areas:          g.Areas,
		Events:         g.Events,
		DeliveryWindow: g.DeliveryWindow,
	}
	if g.StartDate != nil {
		p.StartTime = g.StartDate.UTC().Format(time.RFC3339)
	}
	if g.ExpiryDate != nil {
		p.ExpiryTime = g.ExpiryDate.UTC().Format(time.RFC3339)
	}
	return json.Marshal(p)
}

func parseOptionalTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
