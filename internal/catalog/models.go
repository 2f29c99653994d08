// internal/catalog/models.go

package catalog

import (
	"errors"
	"time"
)

var (
	// ErrProviderUnavailable covers network failures, non-2xx answers and an open circuit
	ErrProviderUnavailable = errors.New("content provider unavailable")
	ErrMovieNotFound       = errors.New("movie not found")
)

// MovieSummary is the slice of catalog data the matching engine needs
type MovieSummary struct {
	ID         int    `json:"id" db:"id"`
	Title      string `json:"title" db:"title"`
	PosterPath string `json:"poster_path,omitempty" db:"poster_path"`
	GenreIDs   []int  `json:"genre_ids,omitempty" db:"-"`
}

// Movie is a row of the local movie cache
type Movie struct {
	ID         int       `json:"id" db:"id"`
	Title      string    `json:"title" db:"title"`
	PosterPath *string   `json:"poster_path,omitempty" db:"poster_path"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Summary converts a cached row to the provider shape
func (m *Movie) Summary() MovieSummary {
	s := MovieSummary{ID: m.ID, Title: m.Title}
	if m.PosterPath != nil {
		s.PosterPath = *m.PosterPath
	}
	return s
}

type tmdbListResponse struct {
	Results []tmdbMovie `json:"results"`
}

type tmdbMovie struct {
	ID         int     `json:"id"`
	Title      string  `json:"title"`
	PosterPath *string `json:"poster_path"`
	GenreIDs   []int   `json:"genre_ids"`
}

func (m tmdbMovie) summary() MovieSummary {
	s := MovieSummary{ID: m.ID, Title: m.Title, GenreIDs: m.GenreIDs}
	if m.PosterPath != nil {
		s.PosterPath = *m.PosterPath
	}
	return s
}
