package hashtag

import (
	"strings"
	"unicode"

	"github.com/biter777/countries"
)

// US state codes, expanded only when the title names the United States.
var usStates = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"FL": "Florida", "GA": "Georgia", "HI": "Hawaii", "ID": "Idaho",
	"IL": "Illinois", "IN": "Indiana", "IA": "Iowa", "KS": "Kansas",
	"KY": "Kentucky", "LA": "Louisiana", "ME": "Maine", "MD": "Maryland",
	"MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota", "MS": "Mississippi",
	"MO": "Missouri", "MT": "Montana", "NE": "Nebraska", "NV": "Nevada",
	"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico", "NY": "New York",
	"NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma",
	"OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina",
	"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah",
	"VT": "Vermont", "VA": "Virginia", "WA": "Washington", "WV": "West Virginia",
	"WI": "Wisconsin", "WY": "Wyoming", "DC": "District of Columbia",
}

// Canadian province codes, expanded only when the title names Canada.
var canadianProvinces = map[string]string{
	"AB": "Alberta", "BC": "British Columbia", "MB": "Manitoba", "NB": "New Brunswick",
	"NL": "Newfoundland and Labrador", "NS": "Nova Scotia", "NT": "Northwest Territories",
	"NU": "Nunavut", "ON": "Ontario", "PE": "Prince Edward Island", "QC": "Quebec",
	"SK": "Saskatchewan", "YT": "Yukon",
}

// maxPlaceTags bounds the tags taken from one title.
const maxPlaceTags = 3

// placeTags turns an area title such as "Main Station, Berlin, DE" into
// hashtags. Comma separated parts that contain digits (street numbers,
// postcodes) are dropped. Only the last three parts are used. The last part
// is expanded to a full country name when it is one; a preceding two-letter
// code is expanded to a state or province for the US and Canada and dropped
// otherwise. A trailing US or Canadian code after a single place is dropped.
// Titles without commas become a single tag.
func placeTags(title string) []string {
	var parts []string
	for _, part := range strings.Split(title, ",") {
		part = strings.TrimSpace(part)
		if part == "" || hasDigit(part) {
			continue
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return nil
	}
	if len(parts) > maxPlaceTags {
		parts = parts[len(parts)-maxPlaceTags:]
	}

	last := len(parts) - 1
	country := countries.Unknown
	switch {
	case len(parts) == 2 && isStateOrProvince(parts[last]):
		// "Springfield, IL" names a state, not Israel.
		return []string{"#" + camelCase(parts[0])}
	case len(parts) > 1:
		country = countries.ByName(parts[last])
	}

	tags := make([]string, 0, len(parts))
	for i, part := range parts {
		switch {
		case i == last && country != countries.Unknown:
			tags = append(tags, "#"+camelCase(country.String()))
		case len(part) == 2 && i > 0 && i < last:
			if name, ok := regionName(part, country); ok {
				tags = append(tags, "#"+camelCase(name))
			}
		default:
			tags = append(tags, "#"+camelCase(part))
		}
	}
	return tags
}

// regionName expands a two-letter state or province code for its country.
func regionName(code string, country countries.CountryCode) (string, bool) {
	code = strings.ToUpper(code)
	switch country {
	case countries.US:
		name, ok := usStates[code]
		return name, ok
	case countries.CA:
		name, ok := canadianProvinces[code]
		return name, ok
	default:
		return "", false
	}
}

func isStateOrProvince(part string) bool {
	if len(part) != 2 {
		return false
	}
	code := strings.ToUpper(part)
	_, isState := usStates[code]
	_, isProvince := canadianProvinces[code]
	return isState || isProvince
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
