package geo

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Contains reports whether t falls inside the delivery window. A nil window
// always contains t, and so does a window whose days or interval cannot be
// parsed. An interval that starts and ends at the same minute is malformed.
func (w *DeliveryTimeWindow) Contains(t time.Time) bool {
	if w == nil {
		return true
	}

	days, err := parseWeekdays(w.Days)
	if err != nil {
		return true
	}
	start, end, err := parseInterval(w.Interval)
	if err != nil {
		return true
	}

	if days != nil && !days[isoWeekday(t)] {
		return false
	}
	if start < 0 {
		return true
	}

	minute := t.Hour()*60 + t.Minute()
	if start <= end {
		return minute >= start && minute < end
	}
	// interval spans midnight
	return minute >= start || minute < end
}

// isoWeekday maps time.Weekday onto ISO-8601 numbering.
func isoWeekday(t time.Time) int {
	if t.Weekday() == time.Sunday {
		return 7
	}
	return int(t.Weekday())
}

// parseWeekdays returns nil for an empty list, meaning every day.
func parseWeekdays(raw string) (map[int]bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	days := make(map[int]bool)
	for _, part := range strings.Split(raw, ",") {
		day, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid weekday %q: %w", part, err)
		}
		if day < 1 || day > 7 {
			return nil, fmt.Errorf("weekday %d out of range", day)
		}
		days[day] = true
	}
	return days, nil
}

// parseInterval returns minutes since midnight for both bounds, or -1, -1
// for an empty interval, meaning the whole day.
func parseInterval(raw string) (int, int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return -1, -1, nil
	}

	bounds := strings.Split(raw, "/")
	if len(bounds) != 2 {
		return 0, 0, fmt.Errorf("invalid time interval %q", raw)
	}

	start, err := parseTimeOfDay(bounds[0])
	if err != nil {
		return 0, 0, err
	}
	end, err := parseTimeOfDay(bounds[1])
	if err != nil {
		return 0, 0, err
	}
	if start == end {
		return 0, 0, fmt.Errorf("time interval %q is empty", raw)
	}
	return start, end, nil
}

func parseTimeOfDay(raw string) (int, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ":", "")
	if len(raw) != 4 {
		return 0, fmt.Errorf("invalid time of day %q", raw)
	}

	hours, err := strconv.Atoi(raw[:2])
	if err != nil || hours > 23 || hours < 0 {
		return 0, fmt.Errorf("invalid hours in %q", raw)
	}
	minutes, err := strconv.Atoi(raw[2:])
	if err != nil || minutes > 59 || minutes < 0 {
		return 0, fmt.Errorf("invalid minutes in %q", raw)
	}
	return hours*60 + minutes, nil
}
