package domain

import "strings"

// FilterListings returns the listings whose title or author contains query
// (case-insensitive) and whose category equals category, or any category when
// category is CategoryAll or empty. Input order is preserved.
func FilterListings(listings []Listing, query, category string) []Listing {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Listing, 0, len(listings))
	for _, l := range listings {
		if matchesQuery(l, q) && matchesCategory(l, category) {
			out = append(out, l)
		}
	}
	return out
}

func matchesQuery(l Listing, q string) bool {
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(l.Title), q) ||
		strings.Contains(strings.ToLower(l.Author), q)
}

func matchesCategory(l Listing, category string) bool {
	if category == "" || strings.EqualFold(category, CategoryAll) {
		return true
	}
	return l.Category == category
}
