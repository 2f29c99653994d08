package matching

import "math"

const (
	maxRating = 10

	// rating bands
	dislikeCeiling = 3
	loveFloor      = 8

	sharedOpinionWeight = 1.5
	polarizedWeight     = 2.0
	neutralWeight       = 1.0
)

// Score computes a 0-100 taste-compatibility score over the movies both
// users rated. Each shared movie contributes (10 - |diff|) times a weight;
// the ceiling always uses the shared-opinion weight, so polarized pairs
// (one hates, one loves) drag the score down.
func Score(a, b RatingMap) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}

	common := 0
	totalWeighted := 0.0
	for movieID, ra := range a {
		rb, ok := b[movieID]
		if !ok {
			continue
		}
		common++

		diff := ra - rb
		if diff < 0 {
			diff = -diff
		}
		base := float64(maxRating - diff)
		totalWeighted += base * ratingWeight(ra, rb)
	}

	if common == 0 {
		return 0
	}

	maxPossible := float64(common) * maxRating * sharedOpinionWeight
	score := math.Round(totalWeighted/maxPossible*100*100) / 100

	return math.Max(0, math.Min(100, score))
}

func ratingWeight(ra, rb int) float64 {
	aDislikes, aLoves := ra <= dislikeCeiling, ra >= loveFloor
	bDislikes, bLoves := rb <= dislikeCeiling, rb >= loveFloor

	switch {
	case (aDislikes && bDislikes) || (aLoves && bLoves):
		return sharedOpinionWeight
	case (aDislikes && bLoves) || (aLoves && bDislikes):
		return polarizedWeight
	default:
		return neutralWeight
	}
}

// ScoreParticipants scores two participants' rating snapshots
func ScoreParticipants(a, b Participant) float64 {
	return Score(a.Ratings, b.Ratings)
}
