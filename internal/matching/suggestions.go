// internal/matching/suggestions.go

package matching

import (
	"context"
	"fmt"
	"sort"

	"github.com/imadgeboyega/movienight-backend/internal/catalog"
	"github.com/imadgeboyega/movienight-backend/internal/common/logging"
)

const (
	favoriteRating     = 8
	neighborRating     = 8
	strongRating       = 9
	maxSimilarUsers    = 50
	maxGroupSuggestion = 3
)

// RatingStore is the read side of the ratings table the engine depends on
type RatingStore interface {
	GetRatings(ctx context.Context, userID int64) (RatingMap, error)
	GetWatchlist(ctx context.Context, userID int64) ([]int, error)
	// FindUsersRatingAbove returns up to limit distinct users outside
	// excluding who rated any of movieIDs at or above minRating.
	FindUsersRatingAbove(ctx context.Context, movieIDs []int, minRating int, excluding []int64, limit int) ([]int64, error)
	// FindMoviesRatedAbove counts, per movie, how many of byUsers rated it at
	// or above minRating. Results are in first-seen order.
	FindMoviesRatedAbove(ctx context.Context, byUsers []int64, minRating int, excluding []int) ([]MovieCount, error)
}

// ContentProvider is satisfied by catalog.Provider
type ContentProvider interface {
	GetPopular(ctx context.Context) ([]catalog.MovieSummary, error)
	DiscoverByGenres(ctx context.Context, genreIDs []int) ([]catalog.MovieSummary, error)
}

type MovieCache interface {
	Exists(ctx context.Context, movieID int) (bool, error)
	Upsert(ctx context.Context, movie catalog.MovieSummary) error
}

type GenreLookup interface {
	GenresOf(ctx context.Context, movieIDs []int) (map[int][]int, error)
}

// SuggestionEngine builds a group's movie slate: collective favorites feed
// a neighborhood collaborative filter, with the provider's popular list as
// the last resort.
type SuggestionEngine struct {
	ratings  RatingStore
	provider ContentProvider
	movies   MovieCache
}

func NewSuggestionEngine(ratings RatingStore, provider ContentProvider, movies MovieCache) *SuggestionEngine {
	return &SuggestionEngine{
		ratings:  ratings,
		provider: provider,
		movies:   movies,
	}
}

func (e *SuggestionEngine) Suggest(ctx context.Context, memberIDs []int64, ratingsByMember map[int64]RatingMap) ([]int, error) {
	seen, favorites, order := collectFavorites(memberIDs, ratingsByMember)
	keyMovies := selectKeyMovies(favorites, order, len(memberIDs))

	if len(keyMovies) > 0 {
		suggestions, err := e.collaborative(ctx, keyMovies, memberIDs, seen)
		if err != nil {
			return nil, err
		}
		if len(suggestions) > 0 {
			RecordSuggestionSource("collaborative")
			return suggestions, nil
		}
	}

	suggestions, err := e.popularFallback(ctx, seen)
	if err != nil {
		return nil, err
	}
	RecordSuggestionSource("popular")
	return suggestions, nil
}

// collectFavorites returns every movie any member rated and, for ratings of
// 8 or more, how many members liked each movie. order records first-seen
// order with members visited as given and movies in ascending id.
func collectFavorites(memberIDs []int64, ratingsByMember map[int64]RatingMap) (map[int]bool, map[int]int, []int) {
	seen := make(map[int]bool)
	favorites := make(map[int]int)
	var order []int

	for _, memberID := range memberIDs {
		ratings := ratingsByMember[memberID]
		movieIDs := make([]int, 0, len(ratings))
		for movieID := range ratings {
			movieIDs = append(movieIDs, movieID)
		}
		sort.Ints(movieIDs)

		for _, movieID := range movieIDs {
			seen[movieID] = true
			if ratings[movieID] < favoriteRating {
				continue
			}
			if favorites[movieID] == 0 {
				order = append(order, movieID)
			}
			favorites[movieID]++
		}
	}
	return seen, favorites, order
}

// selectKeyMovies keeps movies liked by at least half the group (threshold
// rounded down). With none qualifying, the single most liked movie is used.
func selectKeyMovies(favorites map[int]int, order []int, groupLen int) []int {
	threshold := groupLen / 2

	var keyMovies []int
	for _, movieID := range order {
		if favorites[movieID] >= threshold {
			keyMovies = append(keyMovies, movieID)
		}
	}
	if len(keyMovies) > 0 || len(order) == 0 {
		return keyMovies
	}

	best := order[0]
	for _, movieID := range order[1:] {
		if favorites[movieID] > favorites[best] {
			best = movieID
		}
	}
	return []int{best}
}

func (e *SuggestionEngine) collaborative(ctx context.Context, keyMovies []int, memberIDs []int64, seen map[int]bool) ([]int, error) {
	similar, err := e.ratings.FindUsersRatingAbove(ctx, keyMovies, neighborRating, memberIDs, maxSimilarUsers)
	if err != nil {
		return nil, fmt.Errorf("find similar users: %w", err)
	}
	if len(similar) == 0 {
		return nil, nil
	}

	counts, err := e.ratings.FindMoviesRatedAbove(ctx, similar, strongRating, sortedKeys(seen))
	if err != nil {
		return nil, fmt.Errorf("find neighbor favorites: %w", err)
	}

	candidates := make([]MovieCount, 0, len(counts))
	for _, c := range counts {
		if !seen[c.MovieID] {
			candidates = append(candidates, c)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Count > candidates[j].Count
	})

	if len(candidates) > maxGroupSuggestion {
		candidates = candidates[:maxGroupSuggestion]
	}
	out := make([]int, len(candidates))
	for i, c := range candidates {
		out[i] = c.MovieID
	}
	return out, nil
}

func (e *SuggestionEngine) popularFallback(ctx context.Context, seen map[int]bool) ([]int, error) {
	popular, err := e.provider.GetPopular(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecommendationUnavailable, err)
	}

	slate := make([]catalog.MovieSummary, 0, maxGroupSuggestion)
	for _, movie := range popular {
		if len(slate) == maxGroupSuggestion {
			break
		}
		if !seen[movie.ID] {
			slate = append(slate, movie)
		}
	}
	if len(slate) == 0 {
		slate = append(slate, popular[:min(len(popular), maxGroupSuggestion)]...)
	}

	ids := make([]int, 0, len(slate))
	for _, movie := range slate {
		if err := e.ensureCached(ctx, movie); err != nil {
			return nil, err
		}
		ids = append(ids, movie.ID)
	}
	return ids, nil
}

func (e *SuggestionEngine) ensureCached(ctx context.Context, movie catalog.MovieSummary) error {
	exists, err := e.movies.Exists(ctx, movie.ID)
	if err != nil {
		return fmt.Errorf("check movie %d: %w", movie.ID, err)
	}
	if exists {
		return nil
	}
	if err := e.movies.Upsert(ctx, movie); err != nil {
		return fmt.Errorf("cache movie %d: %w", movie.ID, err)
	}
	logging.Debug().Int("movie_id", movie.ID).Msg("cached fallback movie")
	return nil
}

func sortedKeys(set map[int]bool) []int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
