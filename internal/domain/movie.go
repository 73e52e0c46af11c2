package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the slice.
//   - error: non-nil if marshaling fails.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// Movie represents a movie record in the system.
// Fields include identifiers, free-text content, and structured metadata
// used for filtering search results.
type Movie struct {
	ID          string      `gorm:"type:text;primaryKey" json:"id"`
	Title       string      `gorm:"type:text;not null;index:idx_movies_title" json:"title"`
	Summary     string      `gorm:"type:text" json:"summary"`
	Year        int         `gorm:"index:idx_movies_year" json:"year"`
	Country     string      `gorm:"type:text" json:"country"`
	Genres      StringArray `gorm:"type:text" json:"genres"`
	Directors   StringArray `gorm:"type:text" json:"directors"`
	Actors      StringArray `gorm:"type:text" json:"actors"`
	Rating      float64     `json:"rating"`
	RatingCount int         `json:"rating_count"`
	PosterURL   string      `gorm:"type:text" json:"poster_url,omitempty"`
	SourceURL   string      `gorm:"type:text;uniqueIndex:idx_movies_source_url" json:"source_url,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Movie.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Movie) TableName() string {
	return "movies"
}

// MovieMeta is the metadata side-mapping carried by the vector index.
// It holds the fields needed for filter application and result payloads
// without keeping full records resident next to the vectors.
type MovieMeta struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Year      int         `json:"year"`
	Country   string      `json:"country"`
	Genres    StringArray `json:"genres"`
	Directors StringArray `json:"directors"`
	Actors    StringArray `json:"actors"`
	Rating    float64     `json:"rating"`
	PosterURL string      `json:"poster_url,omitempty"`
	SourceURL string      `json:"source_url,omitempty"`
}

// Meta extracts the index-side metadata view of a movie.
func (m *Movie) Meta() MovieMeta {
	return MovieMeta{
		ID:        m.ID,
		Title:     m.Title,
		Year:      m.Year,
		Country:   m.Country,
		Genres:    m.Genres,
		Directors: m.Directors,
		Actors:    m.Actors,
		Rating:    m.Rating,
		PosterURL: m.PosterURL,
		SourceURL: m.SourceURL,
	}
}

// MovieSearchResult represents a search result with a similarity score.
type MovieSearchResult struct {
	MovieMeta
	Score float32 `json:"score"`
}
