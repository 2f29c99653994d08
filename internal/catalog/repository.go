// internal/catalog/repository.go

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Store is the local movie cache plus the genre membership table
type Store interface {
	Exists(ctx context.Context, movieID int) (bool, error)
	Upsert(ctx context.Context, movie MovieSummary) error
	GetMovie(ctx context.Context, movieID int) (*Movie, error)
	GetMovies(ctx context.Context, movieIDs []int) (map[int]MovieSummary, error)
	GenresOf(ctx context.Context, movieIDs []int) (map[int][]int, error)
}

type postgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

func (r *postgresStore) Exists(ctx context.Context, movieID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM movies WHERE id = $1)`, movieID)
	return exists, err
}

// Upsert stores id, title and poster, plus any genre ids the provider sent
func (r *postgresStore) Upsert(ctx context.Context, movie MovieSummary) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var poster *string
	if movie.PosterPath != "" {
		poster = &movie.PosterPath
	}

	query := `
		INSERT INTO movies (id, title, poster_path, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id)
		DO UPDATE SET title = EXCLUDED.title, poster_path = EXCLUDED.poster_path, updated_at = NOW()
	`
	if _, err := tx.ExecContext(ctx, query, movie.ID, movie.Title, poster); err != nil {
		return fmt.Errorf("upsert movie %d: %w", movie.ID, err)
	}

	for _, genreID := range movie.GenreIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO movie_genres (movie_id, genre_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			movie.ID, genreID,
		)
		if err != nil {
			return fmt.Errorf("upsert movie %d genre %d: %w", movie.ID, genreID, err)
		}
	}

	return tx.Commit()
}

func (r *postgresStore) GetMovie(ctx context.Context, movieID int) (*Movie, error) {
	var movie Movie
	err := r.db.GetContext(ctx, &movie, `SELECT id, title, poster_path, updated_at FROM movies WHERE id = $1`, movieID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMovieNotFound
	}
	if err != nil {
		return nil, err
	}
	return &movie, nil
}

func (r *postgresStore) GetMovies(ctx context.Context, movieIDs []int) (map[int]MovieSummary, error) {
	result := make(map[int]MovieSummary, len(movieIDs))
	if len(movieIDs) == 0 {
		return result, nil
	}

	var rows []Movie
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, title, poster_path, updated_at FROM movies WHERE id = ANY($1)`,
		pq.Array(toInt64s(movieIDs)),
	)
	if err != nil {
		return nil, err
	}

	for i := range rows {
		result[rows[i].ID] = rows[i].Summary()
	}
	return result, nil
}

// GenresOf looks up genre membership for a batch of movies in one query
func (r *postgresStore) GenresOf(ctx context.Context, movieIDs []int) (map[int][]int, error) {
	result := make(map[int][]int, len(movieIDs))
	if len(movieIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryxContext(ctx,
		`SELECT movie_id, genre_id FROM movie_genres WHERE movie_id = ANY($1) ORDER BY movie_id, genre_id`,
		pq.Array(toInt64s(movieIDs)),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var movieID, genreID int
		if err := rows.Scan(&movieID, &genreID); err != nil {
			return nil, err
		}
		result[movieID] = append(result[movieID], genreID)
	}
	return result, rows.Err()
}

func toInt64s(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
