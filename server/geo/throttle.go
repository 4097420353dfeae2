package geo

import "time"

// Decision explains the outcome of a throttle check.
type Decision string

const (
	Surface         Decision = "surface"
	NoEventSetting  Decision = "no_event_setting"
	OutsideWindow   Decision = "outside_delivery_window"
	LimitReached    Decision = "limit_reached"
	CoolingDown     Decision = "cooling_down"
	CampaignExpired Decision = "campaign_expired"
)

// Decide evaluates whether an event of the given type for g may be surfaced
// at now, given the counter for the campaign and event type.
// The delivery window is evaluated in now's location.
func Decide(g *Geo, et EventType, now time.Time, counter ThrottleCounter) Decision {
	setting, ok := g.Setting(et)
	if !ok {
		return NoEventSetting
	}

	if !g.DeliveryWindow.Contains(now) {
		return OutsideWindow
	}

	if setting.Limit > Unlimited && counter.Displayed >= setting.Limit {
		return LimitReached
	}

	if setting.Timeout > 0 && !counter.LastNotifiedAt.IsZero() {
		cooldown := time.Duration(setting.Timeout) * time.Minute
		// now before the last notification counts as no time elapsed
		elapsed := max(now.Sub(counter.LastNotifiedAt), 0)
		if elapsed < cooldown {
			return CoolingDown
		}
	}

	if g.Expired(now) {
		return CampaignExpired
	}

	return Surface
}

// ShouldSurface reports whether Decide accepts the event.
func ShouldSurface(g *Geo, et EventType, now time.Time, counter ThrottleCounter) bool {
	return Decide(g, et, now, counter) == Surface
}

// Surfaced returns the counter after an accepted event at now.
func (c ThrottleCounter) Surfaced(now time.Time) ThrottleCounter {
	return ThrottleCounter{
		Displayed:      c.Displayed + 1,
		LastNotifiedAt: now,
	}
}
