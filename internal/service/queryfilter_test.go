package service

import (
	"testing"

	"github.com/leyan/cinevec/internal/domain"
)

func intPtr(v int) *int { return &v }

func TestExtractFilters_Year(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantMin  *int
		wantMax  *int
	}{
		{
			name:    "plain year",
			query:   "find the one from 2012",
			wantMin: intPtr(2012),
			wantMax: intPtr(2012),
		},
		{
			name:    "chinese year phrase",
			query:   "2008年上映的科幻片",
			wantMin: intPtr(2008),
			wantMax: intPtr(2008),
		},
		{
			name:    "decade with 年代",
			query:   "1990年代的香港电影",
			wantMin: intPtr(1990),
			wantMax: intPtr(1999),
		},
		{
			name:    "decade with s suffix",
			query:   "best thrillers of the 1980s",
			wantMin: intPtr(1980),
			wantMax: intPtr(1989),
		},
		{
			name:  "no hint",
			query: "a heartwarming story about family",
		},
		{
			name:  "empty query",
			query: "",
		},
		{
			name:  "too few digits",
			query: "top 250 movies",
		},
		{
			name:  "too many digits",
			query: "id 20125 is not a year",
		},
		{
			name:  "implausible year",
			query: "the 9999 problem",
		},
		{
			name:  "year below range",
			query: "movies about the year 1234",
		},
		{
			name:    "first plausible year wins",
			query:   "from 12345 or 2010 or 2020",
			wantMin: intPtr(2010),
			wantMax: intPtr(2010),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractFilters(tt.query)

			if (got.YearMin == nil) != (tt.wantMin == nil) {
				t.Fatalf("YearMin presence: got %v, want %v", got.YearMin, tt.wantMin)
			}
			if got.YearMin != nil && *got.YearMin != *tt.wantMin {
				t.Errorf("YearMin: got %d, want %d", *got.YearMin, *tt.wantMin)
			}
			if (got.YearMax == nil) != (tt.wantMax == nil) {
				t.Fatalf("YearMax presence: got %v, want %v", got.YearMax, tt.wantMax)
			}
			if got.YearMax != nil && *got.YearMax != *tt.wantMax {
				t.Errorf("YearMax: got %d, want %d", *got.YearMax, *tt.wantMax)
			}
		})
	}
}

func TestSearchFilters_Matches(t *testing.T) {
	meta := domain.MovieMeta{
		ID:        "m1",
		Title:     "测试电影",
		Year:      2012,
		Country:   "中国大陆",
		Genres:    domain.StringArray{"剧情", "科幻"},
		Directors: domain.StringArray{"张三"},
		Actors:    domain.StringArray{"李四", "王五"},
	}

	tests := []struct {
		name    string
		filters SearchFilters
		want    bool
	}{
		{name: "zero filter matches", filters: SearchFilters{}, want: true},
		{name: "year equal", filters: SearchFilters{YearMin: intPtr(2012), YearMax: intPtr(2012)}, want: true},
		{name: "year below min", filters: SearchFilters{YearMin: intPtr(2013)}, want: false},
		{name: "year above max", filters: SearchFilters{YearMax: intPtr(2011)}, want: false},
		{name: "country substring", filters: SearchFilters{Country: "中国"}, want: true},
		{name: "country mismatch", filters: SearchFilters{Country: "美国"}, want: false},
		{name: "genre substring", filters: SearchFilters{Genre: "科幻"}, want: true},
		{name: "director match", filters: SearchFilters{Director: "张三"}, want: true},
		{name: "actor match", filters: SearchFilters{Actor: "王五"}, want: true},
		{name: "actor mismatch", filters: SearchFilters{Actor: "赵六"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filters.Matches(&meta); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSearchFilters_MatchesMissingMetadata(t *testing.T) {
	// Records with absent metadata must not crash the check; they simply
	// fail constraints they cannot satisfy.
	empty := domain.MovieMeta{ID: "bare"}

	if (&SearchFilters{}).Matches(&empty) != true {
		t.Error("zero filter should match a bare record")
	}
	if (&SearchFilters{YearMin: intPtr(2000)}).Matches(&empty) {
		t.Error("missing year cannot satisfy a minimum-year constraint")
	}
	if (&SearchFilters{Genre: "剧情"}).Matches(&empty) {
		t.Error("missing genres cannot satisfy a genre constraint")
	}
}

func TestSearchFilters_Merge(t *testing.T) {
	extracted := SearchFilters{YearMin: intPtr(2010), YearMax: intPtr(2010), Genre: "剧情"}
	request := SearchFilters{YearMin: intPtr(2015), Country: "日本"}

	merged := extracted.Merge(request)

	if *merged.YearMin != 2015 {
		t.Errorf("request YearMin should win: got %d", *merged.YearMin)
	}
	if *merged.YearMax != 2010 {
		t.Errorf("extracted YearMax should survive: got %d", *merged.YearMax)
	}
	if merged.Country != "日本" || merged.Genre != "剧情" {
		t.Errorf("unexpected merge result: %+v", merged)
	}
}
