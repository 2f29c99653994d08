package matching

import (
	"time"

	"github.com/google/uuid"

	"github.com/imadgeboyega/movienight-backend/internal/catalog"
)

// RatingMap maps a movie id to a 1-10 rating
type RatingMap map[int]int

// Participant is one member of the matching pool with a snapshot of their ratings
type Participant struct {
	UserID  int64     `json:"user_id"`
	Ratings RatingMap `json:"-"`
}

type Event struct {
	ID                   int64      `json:"id" db:"id"`
	Title                string     `json:"title" db:"title"`
	StartsAt             time.Time  `json:"starts_at" db:"starts_at"`
	RegistrationDeadline time.Time  `json:"registration_deadline" db:"registration_deadline"`
	GroupSize            *int       `json:"group_size,omitempty" db:"group_size"`
	MatchedAt            *time.Time `json:"matched_at,omitempty" db:"matched_at"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
}

// Group is a set of participants formed in one partitioning run plus
// up to three suggested movie ids. Immutable once persisted.
type Group struct {
	ID          int64     `json:"-" db:"id"`
	PublicID    uuid.UUID `json:"id" db:"public_id"`
	EventID     int64     `json:"event_id" db:"event_id"`
	Members     []int64   `json:"members" db:"-"`
	Suggestions []int     `json:"suggestions" db:"-"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// MovieCount is a movie id with the number of users that rated it highly
type MovieCount struct {
	MovieID int `json:"movie_id" db:"movie_id"`
	Count   int `json:"count" db:"count"`
}

// MatchResult is the outcome of one group-formation run
type MatchResult struct {
	RunID     uuid.UUID `json:"run_id"`
	EventID   int64     `json:"event_id"`
	GroupSize int       `json:"group_size"`
	Groups    []*Group  `json:"groups"`
	Leftover  []int64   `json:"leftover"`
}

// GroupView is a group with its suggestions resolved to display metadata
type GroupView struct {
	ID          uuid.UUID              `json:"id"`
	EventID     int64                  `json:"event_id"`
	Members     []int64                `json:"members"`
	Suggestions []catalog.MovieSummary `json:"suggestions"`
	CreatedAt   time.Time              `json:"created_at"`
}
