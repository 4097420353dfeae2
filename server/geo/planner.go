package geo

import "time"

// Region is an area handed to the location monitor together with the
// expiry of the campaign that contributed it. A nil Expiry never expires.
type Region struct {
	Area
	Expiry *time.Time `json:"expiry,omitempty"`
}

// MonitoringPlan is the outcome of a planning pass.
type MonitoringPlan struct {
	// Regions holds one region per area id, in first-seen order.
	Regions []Region

	// NextRefresh is when the earliest pending campaign starts.
	NextRefresh *time.Time

	// NextExpire is when the earliest stored campaign expires and must be swept.
	NextExpire *time.Time
}

// Plan computes the regions to monitor and the next refresh and expiry
// wake-ups from every stored entry. It never fails: entries without a
// payload or without areas simply contribute nothing.
func Plan(entries []Entry, status CampaignStatus, now time.Time) MonitoringPlan {
	var plan MonitoringPlan
	index := make(map[string]int)

	for _, entry := range entries {
		g := entry.Geo
		if g == nil {
			continue
		}
		valid := g.ValidAreas()

		if len(valid) > 0 && g.ExpiryDate != nil && !g.ExpiryDate.Before(now) {
			plan.NextExpire = earliest(plan.NextExpire, *g.ExpiryDate)
		}

		if status.Finished.Has(g.CampaignID) {
			continue
		}

		if g.Active(status, now) {
			for _, area := range valid {
				region := Region{Area: area, Expiry: g.ExpiryDate}
				i, seen := index[area.ID]
				if !seen {
					index[area.ID] = len(plan.Regions)
					plan.Regions = append(plan.Regions, region)
					continue
				}
				if expiresLater(region.Expiry, plan.Regions[i].Expiry) {
					plan.Regions[i] = region
				}
			}
		}

		if !g.Started(now) && !g.Expired(now) {
			plan.NextRefresh = earliest(plan.NextRefresh, *g.StartDate)
		}
	}

	plan.NextRefresh = ClampToNow(plan.NextRefresh, now)
	plan.NextExpire = ClampToNow(plan.NextExpire, now)
	return plan
}

// ClampToNow returns nil for nil, now for an instant already in the past,
// and a copy of t otherwise. A wake-up that was missed fires immediately.
func ClampToNow(t *time.Time, now time.Time) *time.Time {
	if t == nil {
		return nil
	}
	if t.Before(now) {
		return &now
	}
	clamped := *t
	return &clamped
}

// expiresLater reports whether candidate strictly outlives current.
// A missing expiry sorts before every date.
func expiresLater(candidate, current *time.Time) bool {
	if candidate == nil {
		return false
	}
	if current == nil {
		return true
	}
	return candidate.After(*current)
}

func earliest(current *time.Time, candidate time.Time) *time.Time {
	if current == nil || candidate.Before(*current) {
		return &candidate
	}
	return current
}
