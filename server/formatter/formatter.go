package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattermost/mattermost/server/public/model"

	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
)

// Event type colors
const (
	ColorEntry   = "#2E86DE" // Blue 🔵
	ColorUnknown = "#808080" // Gray ⚪
)

// Event type emojis
const (
	EmojiEntry   = "📍"
	EmojiUnknown = "⚪"
)

var weekdayNames = map[string]string{
	"1": "Mon",
	"2": "Tue",
	"3": "Wed",
	"4": "Thu",
	"5": "Fri",
	"6": "Sat",
	"7": "Sun",
}

// FormatEvent converts a surfaced geo event into a Mattermost SlackAttachment.
// Times are rendered in loc, which defaults to UTC.
func FormatEvent(entry geo.Entry, msg geo.Message, loc *time.Location) *model.SlackAttachment {
	if loc == nil {
		loc = time.UTC
	}

	attachment := &model.SlackAttachment{}

	// Markdown H4 header, same as the body the device shows
	attachment.Text = fmt.Sprintf("#### %s %s", getEventEmoji(msg.EventType), msg.Body)
	attachment.Color = getEventColor(msg.EventType)

	var fields []*model.SlackAttachmentField

	// 1. Event Time + Campaign (side by side)
	fields = append(fields,
		&model.SlackAttachmentField{
			Title: "Event Time",
			Value: formatTime(msg.CreatedAt.In(loc)),
			Short: true,
		},
		&model.SlackAttachmentField{
			Title: "Campaign",
			Value: msg.CampaignID,
			Short: true,
		},
	)

	var area geo.Area
	var found bool
	if entry.Geo != nil {
		area, found = entry.Geo.Area(msg.AreaID)
	}

	// 2. Area with its center and radius
	if found {
		fields = append(fields, &model.SlackAttachmentField{
			Title: "Area",
			Value: formatArea(area),
			Short: false,
		})
	} else if msg.AreaID != "" {
		fields = append(fields, &model.SlackAttachmentField{
			Title: "Area",
			Value: msg.AreaID,
			Short: false,
		})
	}

	// 3. Campaign validity and delivery window
	if entry.Geo != nil && entry.Geo.ExpiryDate != nil {
		fields = append(fields, &model.SlackAttachmentField{
			Title: "Expires",
			Value: formatTime(entry.Geo.ExpiryDate.In(loc)),
			Short: true,
		})
	}
	if entry.Geo != nil && entry.Geo.DeliveryWindow != nil {
		fields = append(fields, &model.SlackAttachmentField{
			Title: "Delivery Window",
			Value: formatWindow(entry.Geo.DeliveryWindow),
			Short: true,
		})
	}

	attachment.Fields = fields

	attachment.Footer = fmt.Sprintf("Geofence | %s", msg.EventType)

	return attachment
}

// getEventColor returns the color code for an event type
func getEventColor(et geo.EventType) string {
	switch et {
	case geo.EventEntry:
		return ColorEntry
	default:
		return ColorUnknown
	}
}

// getEventEmoji returns the emoji for an event type
func getEventEmoji(et geo.EventType) string {
	switch et {
	case geo.EventEntry:
		return EmojiEntry
	default:
		return EmojiUnknown
	}
}

// formatTime formats a time.Time to a readable string
func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05 MST")
}

// formatArea renders an area as "Title (lat, lng) ±radius"
func formatArea(area geo.Area) string {
	parts := []string{}

	if area.Title != "" {
		parts = append(parts, area.Title)
	} else {
		parts = append(parts, area.ID)
	}

	parts = append(parts, fmt.Sprintf("(%.6f, %.6f)", area.Latitude, area.Longitude))

	if area.RadiusMeters > 0 {
		parts = append(parts, fmt.Sprintf("±%dm", area.RadiusMeters))
	}

	return strings.Join(parts, " ")
}

// formatWindow renders a delivery window the way it was configured. Unknown
// day numbers are shown verbatim.
func formatWindow(w *geo.DeliveryTimeWindow) string {
	var days []string
	for _, d := range strings.Split(w.Days, ",") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if name, ok := weekdayNames[d]; ok {
			days = append(days, name)
		} else {
			days = append(days, d)
		}
	}

	interval := strings.ReplaceAll(w.Interval, "/", "-")
	if len(days) == 0 {
		return interval
	}
	return strings.Join(days, ", ") + " " + interval
}
