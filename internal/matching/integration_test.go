//go:build integration

package matching

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/movienight-backend/internal/testinfra"
)

func seed(t *testing.T, db *sqlx.DB) {
	t.Helper()
	statements := []string{
		`INSERT INTO users (id, username) VALUES (1, 'ana'), (2, 'ben'), (3, 'cy'), (4, 'dee'), (10, 'nora'), (11, 'omar')`,
		`INSERT INTO ratings (user_id, movie_id, rating) VALUES
			(1, 100, 9), (2, 100, 8), (3, 200, 4),
			(10, 100, 9), (10, 500, 9), (10, 600, 10),
			(11, 100, 8), (11, 500, 10), (11, 700, 6)`,
		`INSERT INTO watchlist (user_id, movie_id) VALUES (1, 800)`,
		`INSERT INTO events (id, title, starts_at, registration_deadline, group_size)
			VALUES (1, 'Noir night', NOW() + INTERVAL '1 day', NOW() - INTERVAL '1 hour', 2),
			       (2, 'Later', NOW() + INTERVAL '9 day', NOW() + INTERVAL '8 day', NULL)`,
		`INSERT INTO event_participants (event_id, user_id) VALUES (1, 1), (1, 2), (1, 3), (1, 4)`,
	}
	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
}

func TestPostgresRepository(t *testing.T) {
	db := testinfra.StartPostgres(t)
	seed(t, db)
	repo := NewPostgresRepository(db)
	ctx := context.Background()

	t.Run("ratings", func(t *testing.T) {
		ratings, err := repo.GetRatings(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, RatingMap{100: 9, 500: 9, 600: 10}, ratings)

		ratings, err = repo.GetRatings(ctx, 4)
		require.NoError(t, err)
		assert.Empty(t, ratings)

		_, err = repo.GetRatings(ctx, 99)
		assert.ErrorIs(t, err, ErrUserNotFound)

		watchlist, err := repo.GetWatchlist(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []int{800}, watchlist)

		snapshot, err := repo.GetRatingsForUsers(ctx, []int64{1, 4})
		require.NoError(t, err)
		assert.Equal(t, RatingMap{100: 9}, snapshot[1])
		assert.NotNil(t, snapshot[4])
	})

	t.Run("neighbors", func(t *testing.T) {
		users, err := repo.FindUsersRatingAbove(ctx, []int{100}, 8, []int64{1, 2, 3, 4}, 50)
		require.NoError(t, err)
		assert.Equal(t, []int64{10, 11}, users)

		users, err = repo.FindUsersRatingAbove(ctx, []int{100}, 8, nil, 1)
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, users)

		counts, err := repo.FindMoviesRatedAbove(ctx, []int64{10, 11}, 9, []int{100})
		require.NoError(t, err)
		assert.Equal(t, []MovieCount{{MovieID: 500, Count: 2}, {MovieID: 600, Count: 1}}, counts)
	})

	t.Run("events", func(t *testing.T) {
		event, err := repo.GetEvent(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, event.GroupSize)
		assert.Equal(t, 2, *event.GroupSize)

		_, err = repo.GetEvent(ctx, 99)
		assert.ErrorIs(t, err, ErrEventNotFound)

		ids, err := repo.GetParticipantIDs(ctx, 1)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{1, 2, 3, 4}, ids)

		due, err := repo.FindDueEvents(ctx, time.Now())
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, int64(1), due[0].ID)
	})

	t.Run("groups", func(t *testing.T) {
		groups := []*Group{
			{PublicID: uuid.New(), Members: []int64{1, 2}, Suggestions: []int{500, 600}},
			{PublicID: uuid.New(), Members: []int64{3, 4}, Suggestions: []int{700}},
		}
		require.NoError(t, repo.SaveGroups(ctx, 1, groups))
		assert.NotZero(t, groups[0].ID)

		again := []*Group{{PublicID: uuid.New(), Members: []int64{1, 3}}}
		assert.ErrorIs(t, repo.SaveGroups(ctx, 1, again), ErrAlreadyMatched)

		stored, err := repo.GetEventGroups(ctx, 1)
		require.NoError(t, err)
		require.Len(t, stored, 2)
		assert.Equal(t, groups[0].PublicID, stored[0].PublicID)
		assert.Equal(t, []int64{1, 2}, stored[0].Members)
		assert.Equal(t, []int{500, 600}, stored[0].Suggestions)

		mine, err := repo.GetUserGroup(ctx, 1, 4)
		require.NoError(t, err)
		assert.Equal(t, groups[1].PublicID, mine.PublicID)
		assert.Equal(t, []int{700}, mine.Suggestions)

		_, err = repo.GetUserGroup(ctx, 1, 10)
		assert.ErrorIs(t, err, ErrGroupNotFound)

		due, err := repo.FindDueEvents(ctx, time.Now())
		require.NoError(t, err)
		assert.Empty(t, due)
	})
}
