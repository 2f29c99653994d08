package matching

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	groupsFormedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_groups_formed_total",
			Help: "Total number of groups persisted",
		},
	)

	matchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_runs_total",
			Help: "Group formation runs by outcome",
		},
		[]string{"outcome"},
	)

	leftoverParticipants = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_leftover_participants_total",
			Help: "Participants left unassigned after partitioning",
		},
	)

	compatibilityScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_compatibility_scores",
			Help:    "Distribution of pairwise compatibility scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	suggestionSources = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_suggestion_source_total",
			Help: "Which stage of the suggestion pipeline produced a slate",
		},
		[]string{"source"},
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "matching_run_duration_seconds",
			Help: "Duration of matching operations",
		},
		[]string{"action"},
	)
)

func RecordCompatibilityScore(score float64) {
	compatibilityScores.Observe(score)
}

func RecordRun(outcome string) {
	matchRunsTotal.WithLabelValues(outcome).Inc()
}

func RecordGroupsFormed(groups, leftover int) {
	groupsFormedTotal.Add(float64(groups))
	leftoverParticipants.Add(float64(leftover))
}

func RecordSuggestionSource(source string) {
	suggestionSources.WithLabelValues(source).Inc()
}

func RecordDuration(action string, start time.Time) {
	runDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
}
