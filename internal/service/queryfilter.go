package service

import (
	"strings"
	"unicode"

	"github.com/leyan/cinevec/internal/domain"
)

const (
	minPlausibleYear = 1900
	maxPlausibleYear = 2099
)

// SearchFilters is the structured predicate applied to similarity
// candidates. The zero value means "no filter".
type SearchFilters struct {
	YearMin  *int   `json:"year_min,omitempty"`
	YearMax  *int   `json:"year_max,omitempty"`
	Country  string `json:"country,omitempty"`
	Genre    string `json:"genre,omitempty"`
	Director string `json:"director,omitempty"`
	Actor    string `json:"actor,omitempty"`
}

// IsZero reports whether no constraint is set.
func (f *SearchFilters) IsZero() bool {
	return f.YearMin == nil && f.YearMax == nil &&
		f.Country == "" && f.Genre == "" && f.Director == "" && f.Actor == ""
}

// Matches applies the filter to a candidate's metadata. The check is total:
// missing or odd metadata makes a constraint fail or pass, it never errors.
// String constraints are case-insensitive substring matches, following the
// fuzzy matching the search layer has always used.
func (f *SearchFilters) Matches(meta *domain.MovieMeta) bool {
	if f.YearMin != nil && meta.Year < *f.YearMin {
		return false
	}
	if f.YearMax != nil && meta.Year > *f.YearMax {
		return false
	}
	if f.Country != "" && !containsFold(meta.Country, f.Country) {
		return false
	}
	if f.Genre != "" && !anyContainsFold(meta.Genres, f.Genre) {
		return false
	}
	if f.Director != "" && !anyContainsFold(meta.Directors, f.Director) {
		return false
	}
	if f.Actor != "" && !anyContainsFold(meta.Actors, f.Actor) {
		return false
	}
	return true
}

// Merge overlays explicit request filters on top of extracted ones; the
// request value wins wherever both are set.
func (f SearchFilters) Merge(request SearchFilters) SearchFilters {
	out := f
	if request.YearMin != nil {
		out.YearMin = request.YearMin
	}
	if request.YearMax != nil {
		out.YearMax = request.YearMax
	}
	if request.Country != "" {
		out.Country = request.Country
	}
	if request.Genre != "" {
		out.Genre = request.Genre
	}
	if request.Director != "" {
		out.Director = request.Director
	}
	if request.Actor != "" {
		out.Actor = request.Actor
	}
	return out
}

// ExtractFilters scans free text for a structured year hint and returns it
// as a filter. It is total: absent or malformed hints yield the zero filter,
// never an error.
//
// Recognized forms:
//   - a standalone 4-digit year in [1900, 2099]: equality constraint
//   - "<year>年代" or "<year>s" on a decade boundary: ten-year range
func ExtractFilters(query string) SearchFilters {
	var filters SearchFilters

	runes := []rune(query)
	for i := 0; i < len(runes); i++ {
		if !unicode.IsDigit(runes[i]) {
			continue
		}

		// Measure the digit run; only exactly four digits form a year.
		j := i
		for j < len(runes) && unicode.IsDigit(runes[j]) {
			j++
		}
		if j-i != 4 {
			i = j
			continue
		}

		year := 0
		for _, r := range runes[i:j] {
			year = year*10 + int(r-'0')
		}
		if year < minPlausibleYear || year > maxPlausibleYear {
			i = j
			continue
		}

		if isDecadeSuffix(runes[j:]) && year%10 == 0 {
			lo, hi := year, year+9
			filters.YearMin, filters.YearMax = &lo, &hi
		} else {
			y := year
			filters.YearMin, filters.YearMax = &y, &y
		}
		return filters
	}

	return filters
}

// isDecadeSuffix reports whether text begins with a decade marker.
func isDecadeSuffix(rest []rune) bool {
	if len(rest) >= 2 && rest[0] == '年' && rest[1] == '代' {
		return true
	}
	// "1990s" but not "1990st" or a following digit
	if len(rest) >= 1 && (rest[0] == 's' || rest[0] == 'S') {
		return len(rest) == 1 || !unicode.IsLetter(rest[1])
	}
	return false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func anyContainsFold(values []string, needle string) bool {
	for _, v := range values {
		if containsFold(v, needle) {
			return true
		}
	}
	return false
}
