// internal/matching/repository.go

package matching

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Repository interface {
	RatingStore

	// Ratings snapshot for a whole pool, keyed by user. Users without
	// ratings map to an empty RatingMap.
	GetRatingsForUsers(ctx context.Context, userIDs []int64) (map[int64]RatingMap, error)

	// Events
	GetEvent(ctx context.Context, eventID int64) (*Event, error)
	GetParticipantIDs(ctx context.Context, eventID int64) ([]int64, error)
	FindDueEvents(ctx context.Context, now time.Time) ([]*Event, error)

	// Groups
	SaveGroups(ctx context.Context, eventID int64, groups []*Group) error
	GetEventGroups(ctx context.Context, eventID int64) ([]*Group, error)
	GetUserGroup(ctx context.Context, eventID, userID int64) (*Group, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// Ratings

func (r *postgresRepository) GetRatings(ctx context.Context, userID int64) (RatingMap, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, userID)
	}

	rows, err := r.db.QueryxContext(ctx, `SELECT movie_id, rating FROM ratings WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ratings := make(RatingMap)
	for rows.Next() {
		var movieID, rating int
		if err := rows.Scan(&movieID, &rating); err != nil {
			return nil, err
		}
		ratings[movieID] = rating
	}
	return ratings, rows.Err()
}

func (r *postgresRepository) GetWatchlist(ctx context.Context, userID int64) ([]int, error) {
	var movieIDs []int
	err := r.db.SelectContext(ctx, &movieIDs,
		`SELECT movie_id FROM watchlist WHERE user_id = $1 ORDER BY created_at, movie_id`, userID)
	return movieIDs, err
}

func (r *postgresRepository) GetRatingsForUsers(ctx context.Context, userIDs []int64) (map[int64]RatingMap, error) {
	result := make(map[int64]RatingMap, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}
	for _, id := range userIDs {
		result[id] = make(RatingMap)
	}

	rows, err := r.db.QueryxContext(ctx,
		`SELECT user_id, movie_id, rating FROM ratings WHERE user_id = ANY($1)`,
		pq.Array(userIDs),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var userID int64
		var movieID, rating int
		if err := rows.Scan(&userID, &movieID, &rating); err != nil {
			return nil, err
		}
		result[userID][movieID] = rating
	}
	return result, rows.Err()
}

// FindUsersRatingAbove orders neighbors by their earliest qualifying rating
func (r *postgresRepository) FindUsersRatingAbove(ctx context.Context, movieIDs []int, minRating int, excluding []int64, limit int) ([]int64, error) {
	if len(movieIDs) == 0 || limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT user_id
		FROM ratings
		WHERE movie_id = ANY($1)
		  AND rating >= $2
		  AND NOT (user_id = ANY($3))
		GROUP BY user_id
		ORDER BY MIN(id)
		LIMIT $4
	`
	var userIDs []int64
	err := r.db.SelectContext(ctx, &userIDs, query,
		pq.Array(int64s(movieIDs)), minRating, pq.Array(nonNil(excluding)), limit)
	return userIDs, err
}

func (r *postgresRepository) FindMoviesRatedAbove(ctx context.Context, byUsers []int64, minRating int, excluding []int) ([]MovieCount, error) {
	if len(byUsers) == 0 {
		return nil, nil
	}

	query := `
		SELECT movie_id, COUNT(DISTINCT user_id) AS count
		FROM ratings
		WHERE user_id = ANY($1)
		  AND rating >= $2
		  AND NOT (movie_id = ANY($3))
		GROUP BY movie_id
		ORDER BY MIN(id)
	`
	var counts []MovieCount
	err := r.db.SelectContext(ctx, &counts, query,
		pq.Array(byUsers), minRating, pq.Array(int64s(excluding)))
	return counts, err
}

// Events

func (r *postgresRepository) GetEvent(ctx context.Context, eventID int64) (*Event, error) {
	var event Event
	query := `
		SELECT id, title, starts_at, registration_deadline, group_size, matched_at, created_at
		FROM events
		WHERE id = $1
	`
	err := r.db.GetContext(ctx, &event, query, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *postgresRepository) GetParticipantIDs(ctx context.Context, eventID int64) ([]int64, error) {
	var userIDs []int64
	err := r.db.SelectContext(ctx, &userIDs,
		`SELECT user_id FROM event_participants WHERE event_id = $1 ORDER BY joined_at, user_id`, eventID)
	return userIDs, err
}

func (r *postgresRepository) FindDueEvents(ctx context.Context, now time.Time) ([]*Event, error) {
	query := `
		SELECT id, title, starts_at, registration_deadline, group_size, matched_at, created_at
		FROM events
		WHERE matched_at IS NULL AND registration_deadline <= $1
		ORDER BY registration_deadline, id
	`
	var events []*Event
	err := r.db.SelectContext(ctx, &events, query, now)
	return events, err
}

// Groups

// SaveGroups claims the event and writes every group in one transaction.
// If another run already claimed the event nothing is written and
// ErrAlreadyMatched is returned. An empty groups slice only closes the event.
func (r *postgresRepository) SaveGroups(ctx context.Context, eventID int64, groups []*Group) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE events SET matched_at = NOW() WHERE id = $1 AND matched_at IS NULL`, eventID)
	if err != nil {
		return err
	}
	claimed, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if claimed == 0 {
		return ErrAlreadyMatched
	}

	for _, group := range groups {
		group.EventID = eventID
		err := tx.QueryRowxContext(ctx,
			`INSERT INTO event_groups (public_id, event_id) VALUES ($1, $2) RETURNING id, created_at`,
			group.PublicID, eventID,
		).Scan(&group.ID, &group.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert group: %w", err)
		}

		for _, userID := range group.Members {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO event_group_members (group_id, event_id, user_id) VALUES ($1, $2, $3)`,
				group.ID, eventID, userID,
			)
			if err != nil {
				return fmt.Errorf("insert member %d: %w", userID, err)
			}
		}

		for position, movieID := range group.Suggestions {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO event_group_suggestions (group_id, movie_id, position) VALUES ($1, $2, $3)`,
				group.ID, movieID, position,
			)
			if err != nil {
				return fmt.Errorf("insert suggestion %d: %w", movieID, err)
			}
		}
	}

	return tx.Commit()
}

func (r *postgresRepository) GetEventGroups(ctx context.Context, eventID int64) ([]*Group, error) {
	var groups []*Group
	err := r.db.SelectContext(ctx, &groups,
		`SELECT id, public_id, event_id, created_at FROM event_groups WHERE event_id = $1 ORDER BY id`, eventID)
	if err != nil {
		return nil, err
	}
	if err := r.loadGroupDetails(ctx, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *postgresRepository) GetUserGroup(ctx context.Context, eventID, userID int64) (*Group, error) {
	var group Group
	query := `
		SELECT g.id, g.public_id, g.event_id, g.created_at
		FROM event_groups g
		JOIN event_group_members m ON m.group_id = g.id
		WHERE m.event_id = $1 AND m.user_id = $2
	`
	err := r.db.GetContext(ctx, &group, query, eventID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadGroupDetails(ctx, []*Group{&group}); err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *postgresRepository) loadGroupDetails(ctx context.Context, groups []*Group) error {
	if len(groups) == 0 {
		return nil
	}

	byID := make(map[int64]*Group, len(groups))
	ids := make([]int64, len(groups))
	for i, g := range groups {
		byID[g.ID] = g
		ids[i] = g.ID
		g.Members = []int64{}
		g.Suggestions = []int{}
	}

	members, err := r.db.QueryxContext(ctx,
		`SELECT group_id, user_id FROM event_group_members WHERE group_id = ANY($1) ORDER BY group_id, user_id`,
		pq.Array(ids))
	if err != nil {
		return err
	}
	defer members.Close()
	for members.Next() {
		var groupID, userID int64
		if err := members.Scan(&groupID, &userID); err != nil {
			return err
		}
		byID[groupID].Members = append(byID[groupID].Members, userID)
	}
	if err := members.Err(); err != nil {
		return err
	}

	suggestions, err := r.db.QueryxContext(ctx,
		`SELECT group_id, movie_id FROM event_group_suggestions WHERE group_id = ANY($1) ORDER BY group_id, position`,
		pq.Array(ids))
	if err != nil {
		return err
	}
	defer suggestions.Close()
	for suggestions.Next() {
		var groupID int64
		var movieID int
		if err := suggestions.Scan(&groupID, &movieID); err != nil {
			return err
		}
		byID[groupID].Suggestions = append(byID[groupID].Suggestions, movieID)
	}
	return suggestions.Err()
}

func int64s(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
