package hashtag

import (
	"strings"

	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
)

// Generate creates hashtag text for a surfaced event so that posts can be
// searched by event type and place.
//
// Order of hashtags:
// 1. Event type (#Entry)
// 2. Place tags parsed from the area title (see placeTags)
//
// Returns formatted string (e.g., "🏷️ #Entry, #Kreuzberg, #Berlin, #Germany")
func Generate(area geo.Area, et geo.EventType) string {
	tags := []string{eventTag(et)}
	tags = append(tags, placeTags(area.Title)...)

	return formatHashtagText(deduplicateTags(tags))
}

// eventTag turns an event type into a hashtag.
func eventTag(et geo.EventType) string {
	name := strings.TrimSpace(string(et))
	if name == "" {
		return "#Geofence"
	}
	return "#" + strings.ToUpper(name[:1]) + strings.ToLower(name[1:])
}

// deduplicateTags removes duplicate tags (case-insensitive) while preserving order.
func deduplicateTags(tags []string) []string {
	seen := make(map[string]bool)
	var uniqueTags []string

	for _, tag := range tags {
		tagLower := strings.ToLower(tag)
		if !seen[tagLower] {
			uniqueTags = append(uniqueTags, tag)
			seen[tagLower] = true
		}
	}

	return uniqueTags
}

// formatHashtagText formats hashtags as comma-separated text with emoji prefix.
func formatHashtagText(tags []string) string {
	if len(tags) == 0 {
		return ""
	}

	return "🏷️ " + strings.Join(tags, ", ")
}

// camelCase converts text to CamelCase by capitalizing first letter of each word
// and removing spaces and punctuation that hashtags cannot carry.
func camelCase(text string) string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '.' || r == '\'' || r == '/'
	})
	var result strings.Builder

	for _, word := range words {
		result.WriteString(strings.ToUpper(word[:1]))
		if len(word) > 1 {
			result.WriteString(word[1:])
		}
	}

	return result.String()
}
