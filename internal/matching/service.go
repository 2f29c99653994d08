// internal/matching/service.go

package matching

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/imadgeboyega/movienight-backend/internal/catalog"
	"github.com/imadgeboyega/movienight-backend/internal/common/logging"
)

var (
	ErrInvalidGroupSize          = errors.New("group size must be at least 2")
	ErrInsufficientParticipants  = errors.New("not enough participants to form a group")
	ErrAlreadyMatched            = errors.New("event has already been matched")
	ErrRecommendationUnavailable = errors.New("recommendations temporarily unavailable")
	ErrEventNotFound             = errors.New("event not found")
	ErrUserNotFound              = errors.New("user not found")
	ErrGroupNotFound             = errors.New("group not found")
	ErrDuplicateParticipant      = errors.New("participant listed more than once")
)

type Service interface {
	// Group formation
	FormGroups(ctx context.Context, eventID int64, groupSize int) (*MatchResult, error)
	GetEventGroups(ctx context.Context, eventID int64) ([]*GroupView, error)
	GetUserGroup(ctx context.Context, eventID, userID int64) (*GroupView, error)

	// Pairs
	Compatibility(ctx context.Context, userA, userB int64) (float64, error)
	RecommendForPair(ctx context.Context, userA, userB int64) ([]int, error)

	// Scheduled Jobs
	MatchDueEvents(ctx context.Context) error
}

// Notifier is told about every persisted group
type Notifier interface {
	NotifyGroupFormed(eventID int64, group *Group)
}

// MovieResolver turns suggestion ids into display metadata
type MovieResolver interface {
	GetMovies(ctx context.Context, movieIDs []int) (map[int]catalog.MovieSummary, error)
}

type Config struct {
	DefaultGroupSize int
}

type service struct {
	repo        Repository
	partitioner *Partitioner
	pairwise    *PairwiseRecommender
	movies      MovieResolver
	notifier    Notifier
	config      Config
	now         func() time.Time
}

func NewService(repo Repository, partitioner *Partitioner, pairwise *PairwiseRecommender, movies MovieResolver, notifier Notifier, cfg Config) Service {
	if cfg.DefaultGroupSize == 0 {
		cfg.DefaultGroupSize = 4
	}
	return &service{
		repo:        repo,
		partitioner: partitioner,
		pairwise:    pairwise,
		movies:      movies,
		notifier:    notifier,
		config:      cfg,
		now:         time.Now,
	}
}

// FormGroups partitions the event's participants and persists the result.
// groupSize 0 means the event's own size, falling back to the default.
func (s *service) FormGroups(ctx context.Context, eventID int64, groupSize int) (*MatchResult, error) {
	defer RecordDuration("form_groups", time.Now())

	runID := uuid.New()
	log := logging.With().
		Str("run_id", runID.String()).
		Int64("event_id", eventID).
		Logger()

	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.MatchedAt != nil {
		RecordRun("already_matched")
		return nil, ErrAlreadyMatched
	}

	size := s.resolveGroupSize(event, groupSize)
	participants, err := s.loadParticipants(ctx, eventID)
	if err != nil {
		return nil, err
	}

	log.Info().Int("participants", len(participants)).Int("group_size", size).Msg("forming groups")

	groups, leftover, err := s.partitioner.Partition(ctx, participants, size)
	if err != nil {
		RecordRun(runOutcome(err))
		log.Warn().Err(err).Msg("group formation failed")
		return nil, err
	}
	for _, group := range groups {
		group.EventID = eventID
	}

	if err := s.repo.SaveGroups(ctx, eventID, groups); err != nil {
		RecordRun(runOutcome(err))
		log.Error().Err(err).Msg("failed to persist groups")
		return nil, err
	}

	RecordRun("success")
	RecordGroupsFormed(len(groups), len(leftover))
	log.Info().Int("groups", len(groups)).Int("leftover", len(leftover)).Msg("groups formed")

	if s.notifier != nil {
		for _, group := range groups {
			s.notifier.NotifyGroupFormed(eventID, group)
		}
	}

	leftoverIDs := make([]int64, len(leftover))
	for i, p := range leftover {
		leftoverIDs[i] = p.UserID
	}

	return &MatchResult{
		RunID:     runID,
		EventID:   eventID,
		GroupSize: size,
		Groups:    groups,
		Leftover:  leftoverIDs,
	}, nil
}

func (s *service) resolveGroupSize(event *Event, requested int) int {
	if requested != 0 {
		return requested
	}
	if event.GroupSize != nil {
		return *event.GroupSize
	}
	return s.config.DefaultGroupSize
}

func (s *service) loadParticipants(ctx context.Context, eventID int64) ([]Participant, error) {
	userIDs, err := s.repo.GetParticipantIDs(ctx, eventID)
	if err != nil {
		return nil, err
	}

	ratings, err := s.repo.GetRatingsForUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	participants := make([]Participant, len(userIDs))
	for i, id := range userIDs {
		participants[i] = Participant{UserID: id, Ratings: ratings[id]}
	}
	return participants, nil
}

func (s *service) GetEventGroups(ctx context.Context, eventID int64) ([]*GroupView, error) {
	if _, err := s.repo.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	groups, err := s.repo.GetEventGroups(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, groups)
}

func (s *service) GetUserGroup(ctx context.Context, eventID, userID int64) (*GroupView, error) {
	group, err := s.repo.GetUserGroup(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	views, err := s.views(ctx, []*Group{group})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// views resolves suggestion ids with one catalog lookup. Ids missing from
// the cache keep an id-only summary.
func (s *service) views(ctx context.Context, groups []*Group) ([]*GroupView, error) {
	var movieIDs []int
	for _, g := range groups {
		movieIDs = append(movieIDs, g.Suggestions...)
	}

	movies, err := s.movies.GetMovies(ctx, movieIDs)
	if err != nil {
		return nil, err
	}

	views := make([]*GroupView, len(groups))
	for i, g := range groups {
		suggestions := make([]catalog.MovieSummary, len(g.Suggestions))
		for j, id := range g.Suggestions {
			movie, ok := movies[id]
			if !ok {
				movie = catalog.MovieSummary{ID: id}
			}
			suggestions[j] = movie
		}
		views[i] = &GroupView{
			ID:          g.PublicID,
			EventID:     g.EventID,
			Members:     g.Members,
			Suggestions: suggestions,
			CreatedAt:   g.CreatedAt,
		}
	}
	return views, nil
}

func (s *service) Compatibility(ctx context.Context, userA, userB int64) (float64, error) {
	ratingsA, err := s.repo.GetRatings(ctx, userA)
	if err != nil {
		return 0, err
	}
	ratingsB, err := s.repo.GetRatings(ctx, userB)
	if err != nil {
		return 0, err
	}

	score := Score(ratingsA, ratingsB)
	RecordCompatibilityScore(score)
	return score, nil
}

func (s *service) RecommendForPair(ctx context.Context, userA, userB int64) ([]int, error) {
	defer RecordDuration("recommend_pair", time.Now())
	return s.pairwise.Recommend(ctx, userA, userB)
}

// MatchDueEvents forms groups for every unmatched event past its
// registration deadline. Events that cannot fill a single group are closed
// without groups. A failing event does not stop the others.
func (s *service) MatchDueEvents(ctx context.Context) error {
	events, err := s.repo.FindDueEvents(ctx, s.now())
	if err != nil {
		return err
	}

	var failed int
	for _, event := range events {
		_, err := s.FormGroups(ctx, event.ID, 0)
		switch {
		case err == nil:
		case errors.Is(err, ErrInsufficientParticipants):
			if err := s.repo.SaveGroups(ctx, event.ID, nil); err != nil && !errors.Is(err, ErrAlreadyMatched) {
				failed++
				logging.Error().Err(err).Int64("event_id", event.ID).Msg("failed to close event")
				continue
			}
			logging.Info().Int64("event_id", event.ID).Msg("closed event without groups")
		case errors.Is(err, ErrAlreadyMatched):
		default:
			failed++
			logging.Error().Err(err).Int64("event_id", event.ID).Msg("scheduled matching failed")
		}
	}

	logging.Info().Int("due", len(events)).Int("failed", failed).Msg("due events processed")
	return nil
}

func runOutcome(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientParticipants):
		return "insufficient_participants"
	case errors.Is(err, ErrAlreadyMatched):
		return "already_matched"
	case errors.Is(err, ErrRecommendationUnavailable):
		return "recommendation_unavailable"
	case errors.Is(err, ErrInvalidGroupSize):
		return "invalid_group_size"
	default:
		return "error"
	}
}
