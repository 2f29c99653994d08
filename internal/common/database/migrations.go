// internal/common/database/migrations.go
// Schema for users, ratings, catalog cache and event groups

package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/imadgeboyega/movienight-backend/internal/common/logging"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username VARCHAR(100) UNIQUE NOT NULL,
		display_name VARCHAR(255),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,

	// Local movie cache; rows are upserted from the content provider
	`CREATE TABLE IF NOT EXISTS movies (
		id INTEGER PRIMARY KEY,
		title VARCHAR(500) NOT NULL,
		poster_path VARCHAR(500),
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS movie_genres (
		movie_id INTEGER NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
		genre_id INTEGER NOT NULL,
		PRIMARY KEY (movie_id, genre_id)
	)`,

	`CREATE TABLE IF NOT EXISTS ratings (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		movie_id INTEGER NOT NULL,
		rating SMALLINT NOT NULL CHECK (rating BETWEEN 1 AND 10),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (user_id, movie_id)
	)`,

	`CREATE TABLE IF NOT EXISTS watchlist (
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		movie_id INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, movie_id)
	)`,

	`CREATE TABLE IF NOT EXISTS events (
		id BIGSERIAL PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		starts_at TIMESTAMP NOT NULL,
		registration_deadline TIMESTAMP NOT NULL,
		group_size INTEGER CHECK (group_size >= 2),
		matched_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS event_participants (
		event_id BIGINT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		joined_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (event_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS event_groups (
		id BIGSERIAL PRIMARY KEY,
		public_id UUID NOT NULL UNIQUE,
		event_id BIGINT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS event_group_members (
		group_id BIGINT NOT NULL REFERENCES event_groups(id) ON DELETE CASCADE,
		event_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		PRIMARY KEY (group_id, user_id),
		UNIQUE (event_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS event_group_suggestions (
		group_id BIGINT NOT NULL REFERENCES event_groups(id) ON DELETE CASCADE,
		movie_id INTEGER NOT NULL,
		position SMALLINT NOT NULL,
		PRIMARY KEY (group_id, position)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_ratings_user_id ON ratings(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_ratings_movie_rating ON ratings(movie_id, rating)`,
	`CREATE INDEX IF NOT EXISTS idx_movie_genres_movie_id ON movie_genres(movie_id)`,
	`CREATE INDEX IF NOT EXISTS idx_events_deadline ON events(registration_deadline) WHERE matched_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_event_groups_event_id ON event_groups(event_id)`,
}

// Migrate creates the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			if !strings.Contains(err.Error(), "already exists") {
				return fmt.Errorf("migration %d failed: %w", i+1, err)
			}
			logging.Debug().Int("migration", i+1).Msg("migration skipped (already exists)")
		}
	}

	logging.Info().Int("count", len(migrations)).Msg("database migrations applied")
	return nil
}
