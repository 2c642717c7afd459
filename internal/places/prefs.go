package places

import "strings"

// validTypes are provider place categories we are willing to pass as a type
// filter. Anything else is searched by free text only.
var validTypes = []string{
	"restaurant", "cafe", "bar", "food", "bowling_alley", "amusement_park",
	"night_club", "park", "beach", "natural_feature", "stadium", "gym",
	"museum", "art_gallery", "library", "book_store", "university", "school",
	"shopping_mall", "supermarket", "spa", "zoo", "aquarium",
}

// canonical maps common plural/synonym spellings onto provider categories.
var canonical = map[string]string{
	"restaurants": "restaurant",
	"cafes":       "cafe",
	"coffee":      "cafe",
	"bars":        "bar",
	"pubs":        "bar",
	"pub":         "bar",
	"parks":       "park",
	"museums":     "museum",
	"libraries":   "library",
	"gyms":        "gym",
	"malls":       "shopping_mall",
	"mall":        "shopping_mall",
	"spas":        "spa",
	"zoos":        "zoo",
	"aquariums":   "aquarium",
}

// SearchTerm is the normalized free-text term plus an optional canonical
// category used only as a secondary filter hint.
type SearchTerm struct {
	Term         string
	FallbackType string
}

// TermFor normalizes a preference. The exact user term always stays the
// primary query; the fallback type is best-effort.
func TermFor(preference string) SearchTerm {
	term := strings.ToLower(strings.TrimSpace(preference))
	if mapped, ok := canonical[term]; ok {
		return SearchTerm{Term: term, FallbackType: mapped}
	}
	for _, t := range validTypes {
		if strings.Contains(term, t) {
			return SearchTerm{Term: term, FallbackType: t}
		}
	}
	return SearchTerm{Term: term}
}
