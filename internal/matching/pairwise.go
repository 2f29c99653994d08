// internal/matching/pairwise.go

package matching

import (
	"context"
	"fmt"
	"sort"

	"github.com/imadgeboyega/movienight-backend/internal/catalog"
)

const (
	likedRating        = 6
	topGenreCount      = 3
	maxPairSuggestions = 12
)

// PairwiseRecommender suggests movies for two people from the genres they
// both like. It does not use collaborative filtering.
type PairwiseRecommender struct {
	ratings  RatingStore
	genres   GenreLookup
	provider ContentProvider
}

func NewPairwiseRecommender(ratings RatingStore, genres GenreLookup, provider ContentProvider) *PairwiseRecommender {
	return &PairwiseRecommender{
		ratings:  ratings,
		genres:   genres,
		provider: provider,
	}
}

func (r *PairwiseRecommender) Recommend(ctx context.Context, userA, userB int64) ([]int, error) {
	ratingsA, err := r.ratings.GetRatings(ctx, userA)
	if err != nil {
		return nil, err
	}
	ratingsB, err := r.ratings.GetRatings(ctx, userB)
	if err != nil {
		return nil, err
	}

	favoritesA, err := r.topGenres(ctx, ratingsA)
	if err != nil {
		return nil, err
	}
	favoritesB, err := r.topGenres(ctx, ratingsB)
	if err != nil {
		return nil, err
	}

	excluded, err := r.excludedMovies(ctx, userA, userB, ratingsA, ratingsB)
	if err != nil {
		return nil, err
	}

	joint := jointGenres(favoritesA, favoritesB)

	var listing []catalog.MovieSummary
	if len(joint) == 0 {
		listing, err = r.provider.GetPopular(ctx)
	} else {
		listing, err = r.provider.DiscoverByGenres(ctx, joint)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecommendationUnavailable, err)
	}

	out := make([]int, 0, maxPairSuggestions)
	for _, movie := range listing {
		if len(out) == maxPairSuggestions {
			break
		}
		if !excluded[movie.ID] {
			out = append(out, movie.ID)
		}
	}
	return out, nil
}

// topGenres counts genres over movies rated 6 or higher and returns the
// three most frequent. Ties keep first-seen order, movies visited by id.
func (r *PairwiseRecommender) topGenres(ctx context.Context, ratings RatingMap) ([]int, error) {
	liked := make([]int, 0, len(ratings))
	for movieID, rating := range ratings {
		if rating >= likedRating {
			liked = append(liked, movieID)
		}
	}
	if len(liked) == 0 {
		return nil, nil
	}
	sort.Ints(liked)

	genresByMovie, err := r.genres.GenresOf(ctx, liked)
	if err != nil {
		return nil, fmt.Errorf("lookup genres: %w", err)
	}

	counts := make(map[int]int)
	var order []int
	for _, movieID := range liked {
		for _, genreID := range genresByMovie[movieID] {
			if counts[genreID] == 0 {
				order = append(order, genreID)
			}
			counts[genreID]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > topGenreCount {
		order = order[:topGenreCount]
	}
	return order, nil
}

func (r *PairwiseRecommender) excludedMovies(ctx context.Context, userA, userB int64, ratingsA, ratingsB RatingMap) (map[int]bool, error) {
	excluded := make(map[int]bool, len(ratingsA)+len(ratingsB))
	for movieID := range ratingsA {
		excluded[movieID] = true
	}
	for movieID := range ratingsB {
		excluded[movieID] = true
	}

	for _, userID := range []int64{userA, userB} {
		watchlist, err := r.ratings.GetWatchlist(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("watchlist for user %d: %w", userID, err)
		}
		for _, movieID := range watchlist {
			excluded[movieID] = true
		}
	}
	return excluded, nil
}

// jointGenres is the intersection of both favorite lists in a's order, or
// failing that their deduplicated union cut to three.
func jointGenres(a, b []int) []int {
	inB := make(map[int]bool, len(b))
	for _, g := range b {
		inB[g] = true
	}

	var joint []int
	for _, g := range a {
		if inB[g] {
			joint = append(joint, g)
		}
	}
	if len(joint) > 0 {
		return joint
	}

	seen := make(map[int]bool, len(a)+len(b))
	for _, g := range append(append([]int{}, a...), b...) {
		if seen[g] {
			continue
		}
		seen[g] = true
		joint = append(joint, g)
		if len(joint) == topGenreCount {
			break
		}
	}
	return joint
}
