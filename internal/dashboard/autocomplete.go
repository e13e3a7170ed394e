package dashboard

import "strings"

// DefaultCities is the fixed suggestion list for job posting locations.
var DefaultCities = []string{
	"Bangalore",
	"Hyderabad",
	"Mumbai",
	"Pune",
	"Delhi NCR",
	"Chennai",
	"Gurgaon",
	"Noida",
	"Remote",
}

// SuggestLocations filters cities whose name contains the typed fragment,
// case-insensitively, preserving source order. An empty fragment yields no
// suggestions.
func SuggestLocations(fragment string, cities []string) []string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil
	}
	needle := strings.ToLower(fragment)
	var matches []string
	for _, city := range cities {
		if strings.Contains(strings.ToLower(city), needle) {
			matches = append(matches, city)
		}
	}
	return matches
}
