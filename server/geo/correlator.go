package geo

import "time"

// Correlation groups the triggered areas of one signaling entry.
type Correlation struct {
	Entry Entry
	Areas []Area
}

// Correlate maps a transition back to the entries whose areas it triggered.
// Only entries that are reportable at now take part: the campaign is neither
// finished nor suspended, has started and has not expired. now is the
// engine's clock, never the transition's own timestamp. A transition handled
// after its campaign expired is dropped here even if the expiry sweep has not
// deleted the entry yet.
//
// The result is grouped per entry in entry order. Triggered area ids that
// matched no reportable entry are returned separately.
func Correlate(t Transition, entries []Entry, status CampaignStatus, now time.Time) ([]Correlation, []string) {
	var (
		correlations []Correlation
		unmatched    []string
	)
	index := make(map[string]int)
	seen := make(map[string]bool)

	for _, areaID := range t.AreaIDs {
		if seen[areaID] {
			continue
		}
		seen[areaID] = true

		matched := false
		for _, entry := range entries {
			if entry.Geo == nil || !entry.Geo.Active(status, now) {
				continue
			}

			area, ok := entry.Geo.Area(areaID)
			if !ok || !area.Valid() {
				continue
			}
			matched = true

			i, grouped := index[entry.ID]
			if !grouped {
				i = len(correlations)
				index[entry.ID] = i
				correlations = append(correlations, Correlation{Entry: entry})
			}
			correlations[i].Areas = append(correlations[i].Areas, area)
		}

		if !matched {
			unmatched = append(unmatched, areaID)
		}
	}

	return correlations, unmatched
}
