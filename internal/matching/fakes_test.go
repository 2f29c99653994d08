package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/imadgeboyega/movienight-backend/internal/catalog"
)

// memoryStore is an in-memory Repository. Similarity queries walk users and
// movies in ascending id order so "first seen" is stable.
type memoryStore struct {
	mu sync.Mutex

	ratings      map[int64]RatingMap
	watchlists   map[int64][]int
	events       map[int64]*Event
	participants map[int64][]int64
	groups       map[int64][]*Group
	nextGroupID  int64

	saveErr         error
	saveCalls       int
	similarCalls    [][]int
	similarExcluded [][]int64
	similarLimits   []int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		ratings:      make(map[int64]RatingMap),
		watchlists:   make(map[int64][]int),
		events:       make(map[int64]*Event),
		participants: make(map[int64][]int64),
		groups:       make(map[int64][]*Group),
	}
}

func (s *memoryStore) GetRatings(ctx context.Context, userID int64) (RatingMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ratings, ok := s.ratings[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, userID)
	}
	return ratings, nil
}

func (s *memoryStore) GetWatchlist(ctx context.Context, userID int64) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watchlists[userID], nil
}

func (s *memoryStore) GetRatingsForUsers(ctx context.Context, userIDs []int64) (map[int64]RatingMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]RatingMap, len(userIDs))
	for _, id := range userIDs {
		ratings := s.ratings[id]
		if ratings == nil {
			ratings = RatingMap{}
		}
		out[id] = ratings
	}
	return out, nil
}

func (s *memoryStore) FindUsersRatingAbove(ctx context.Context, movieIDs []int, minRating int, excluding []int64, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.similarCalls = append(s.similarCalls, append([]int(nil), movieIDs...))
	s.similarExcluded = append(s.similarExcluded, append([]int64(nil), excluding...))
	s.similarLimits = append(s.similarLimits, limit)

	skip := make(map[int64]bool, len(excluding))
	for _, id := range excluding {
		skip[id] = true
	}

	var out []int64
	for _, userID := range s.sortedUsers() {
		if skip[userID] || len(out) == limit {
			continue
		}
		for _, movieID := range movieIDs {
			if s.ratings[userID][movieID] >= minRating {
				out = append(out, userID)
				break
			}
		}
	}
	return out, nil
}

func (s *memoryStore) FindMoviesRatedAbove(ctx context.Context, byUsers []int64, minRating int, excluding []int) ([]MovieCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	skip := make(map[int]bool, len(excluding))
	for _, id := range excluding {
		skip[id] = true
	}

	index := make(map[int]int)
	var out []MovieCount
	for _, userID := range byUsers {
		ratings := s.ratings[userID]
		movieIDs := make([]int, 0, len(ratings))
		for id := range ratings {
			movieIDs = append(movieIDs, id)
		}
		sort.Ints(movieIDs)

		for _, movieID := range movieIDs {
			if skip[movieID] || ratings[movieID] < minRating {
				continue
			}
			i, ok := index[movieID]
			if !ok {
				index[movieID] = len(out)
				out = append(out, MovieCount{MovieID: movieID, Count: 1})
				continue
			}
			out[i].Count++
		}
	}
	return out, nil
}

func (s *memoryStore) GetEvent(ctx context.Context, eventID int64) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	copied := *event
	return &copied, nil
}

func (s *memoryStore) GetParticipantIDs(ctx context.Context, eventID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participants[eventID], nil
}

func (s *memoryStore) FindDueEvents(ctx context.Context, now time.Time) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Event
	for _, event := range s.events {
		if event.MatchedAt == nil && !event.RegistrationDeadline.After(now) {
			copied := *event
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) SaveGroups(ctx context.Context, eventID int64, groups []*Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	if s.saveErr != nil {
		return s.saveErr
	}

	event, ok := s.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	if event.MatchedAt != nil {
		return ErrAlreadyMatched
	}
	now := time.Now()
	event.MatchedAt = &now

	for _, g := range groups {
		s.nextGroupID++
		g.ID = s.nextGroupID
		g.EventID = eventID
		g.CreatedAt = now
	}
	s.groups[eventID] = append(s.groups[eventID], groups...)
	return nil
}

func (s *memoryStore) GetEventGroups(ctx context.Context, eventID int64) ([]*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groups[eventID], nil
}

func (s *memoryStore) GetUserGroup(ctx context.Context, eventID, userID int64) (*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups[eventID] {
		for _, m := range g.Members {
			if m == userID {
				return g, nil
			}
		}
	}
	return nil, ErrGroupNotFound
}

func (s *memoryStore) sortedUsers() []int64 {
	ids := make([]int64, 0, len(s.ratings))
	for id := range s.ratings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type fakeProvider struct {
	popular      []catalog.MovieSummary
	discover     []catalog.MovieSummary
	err          error
	popularCalls int
	discoverArgs [][]int
}

func (p *fakeProvider) GetPopular(ctx context.Context) ([]catalog.MovieSummary, error) {
	p.popularCalls++
	return p.popular, p.err
}

func (p *fakeProvider) DiscoverByGenres(ctx context.Context, genreIDs []int) ([]catalog.MovieSummary, error) {
	p.discoverArgs = append(p.discoverArgs, genreIDs)
	return p.discover, p.err
}

// memoryCatalog stands in for catalog.Store
type memoryCatalog struct {
	movies  map[int]catalog.MovieSummary
	genres  map[int][]int
	upserts []int
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{
		movies: make(map[int]catalog.MovieSummary),
		genres: make(map[int][]int),
	}
}

func (c *memoryCatalog) Exists(ctx context.Context, movieID int) (bool, error) {
	_, ok := c.movies[movieID]
	return ok, nil
}

func (c *memoryCatalog) Upsert(ctx context.Context, movie catalog.MovieSummary) error {
	c.upserts = append(c.upserts, movie.ID)
	c.movies[movie.ID] = movie
	return nil
}

func (c *memoryCatalog) GetMovies(ctx context.Context, movieIDs []int) (map[int]catalog.MovieSummary, error) {
	out := make(map[int]catalog.MovieSummary)
	for _, id := range movieIDs {
		if m, ok := c.movies[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (c *memoryCatalog) GenresOf(ctx context.Context, movieIDs []int) (map[int][]int, error) {
	out := make(map[int][]int)
	for _, id := range movieIDs {
		if g, ok := c.genres[id]; ok {
			out[id] = g
		}
	}
	return out, nil
}

// sequenceSource replays picks, clamped to the pool size
type sequenceSource struct {
	picks []int
	next  int
}

func (s *sequenceSource) Intn(n int) int {
	if len(s.picks) == 0 {
		return 0
	}
	pick := s.picks[s.next%len(s.picks)]
	s.next++
	if pick >= n {
		return n - 1
	}
	return pick
}

type recordingSuggester struct {
	calls  [][]int64
	slate  []int
	failOn int
	err    error
}

func (s *recordingSuggester) Suggest(ctx context.Context, memberIDs []int64, ratingsByMember map[int64]RatingMap) ([]int, error) {
	s.calls = append(s.calls, memberIDs)
	if s.failOn > 0 && len(s.calls) == s.failOn {
		return nil, s.err
	}
	return s.slate, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	groups []*Group
}

func (n *recordingNotifier) NotifyGroupFormed(eventID int64, group *Group) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.groups = append(n.groups, group)
}

func summaries(ids ...int) []catalog.MovieSummary {
	out := make([]catalog.MovieSummary, len(ids))
	for i, id := range ids {
		out[i] = catalog.MovieSummary{ID: id, Title: fmt.Sprintf("Movie %d", id)}
	}
	return out
}

var errBoom = errors.New("boom")
