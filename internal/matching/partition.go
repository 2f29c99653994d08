package matching

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// RandomSource picks the starter of each group. Tests inject a fixed sequence.
type RandomSource interface {
	Intn(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandomSource returns a goroutine-safe source seeded with seed
func NewRandomSource(seed int64) RandomSource {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// Suggester produces a movie slate for a freshly formed group
type Suggester interface {
	Suggest(ctx context.Context, memberIDs []int64, ratingsByMember map[int64]RatingMap) ([]int, error)
}

// InsufficientParticipantsError reports how many participants a group needed
type InsufficientParticipantsError struct {
	Required  int `json:"required"`
	Available int `json:"available"`
}

func (e *InsufficientParticipantsError) Error() string {
	return fmt.Sprintf("%s: need %d, have %d", ErrInsufficientParticipants, e.Required, e.Available)
}

func (e *InsufficientParticipantsError) Is(target error) bool {
	return target == ErrInsufficientParticipants
}

// Partitioner greedily splits a pool into fixed-size groups. Each round a
// random starter is drawn and joined by the groupSize-1 most compatible
// remaining participants. This is a heuristic, not an optimal assignment.
type Partitioner struct {
	rng       RandomSource
	suggester Suggester
	score     func(a, b Participant) float64
}

func NewPartitioner(rng RandomSource, suggester Suggester) *Partitioner {
	return &Partitioner{
		rng:       rng,
		suggester: suggester,
		score:     ScoreParticipants,
	}
}

type rankedCandidate struct {
	index int
	score float64
}

// Partition returns the formed groups (with suggestions) and the leftover
// participants. Any suggestion failure aborts the whole run.
func (p *Partitioner) Partition(ctx context.Context, participants []Participant, groupSize int) ([]*Group, []Participant, error) {
	if groupSize < 2 {
		return nil, nil, ErrInvalidGroupSize
	}
	if len(participants) < groupSize {
		return nil, nil, &InsufficientParticipantsError{Required: groupSize, Available: len(participants)}
	}
	if err := checkUnique(participants); err != nil {
		return nil, nil, err
	}

	pool := make([]Participant, len(participants))
	copy(pool, participants)

	groups := make([]*Group, 0, len(participants)/groupSize)
	for len(pool) >= groupSize {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		starterIdx := p.rng.Intn(len(pool))
		starter := pool[starterIdx]
		pool = removeAt(pool, starterIdx)

		candidates := make([]rankedCandidate, len(pool))
		for i, other := range pool {
			score := p.score(starter, other)
			RecordCompatibilityScore(score)
			candidates[i] = rankedCandidate{index: i, score: score}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].score > candidates[j].score
		})

		members := make([]Participant, 0, groupSize)
		members = append(members, starter)
		selected := make(map[int]bool, groupSize-1)
		for _, c := range candidates[:groupSize-1] {
			members = append(members, pool[c.index])
			selected[c.index] = true
		}

		remaining := make([]Participant, 0, len(pool)-len(selected))
		for i, participant := range pool {
			if !selected[i] {
				remaining = append(remaining, participant)
			}
		}
		pool = remaining

		group, err := p.formGroup(ctx, members)
		if err != nil {
			return nil, nil, fmt.Errorf("group %d: %w", len(groups)+1, err)
		}
		groups = append(groups, group)
	}

	return groups, pool, nil
}

func (p *Partitioner) formGroup(ctx context.Context, members []Participant) (*Group, error) {
	memberIDs := make([]int64, len(members))
	ratingsByMember := make(map[int64]RatingMap, len(members))
	for i, m := range members {
		memberIDs[i] = m.UserID
		ratingsByMember[m.UserID] = m.Ratings
	}

	suggestions, err := p.suggester.Suggest(ctx, memberIDs, ratingsByMember)
	if err != nil {
		return nil, err
	}

	return &Group{
		PublicID:    uuid.New(),
		Members:     memberIDs,
		Suggestions: suggestions,
	}, nil
}

func checkUnique(participants []Participant) error {
	seen := make(map[int64]bool, len(participants))
	for _, p := range participants {
		if seen[p.UserID] {
			return fmt.Errorf("%w: user %d", ErrDuplicateParticipant, p.UserID)
		}
		seen[p.UserID] = true
	}
	return nil
}

func removeAt(pool []Participant, idx int) []Participant {
	out := make([]Participant, 0, len(pool)-1)
	out = append(out, pool[:idx]...)
	return append(out, pool[idx+1:]...)
}
