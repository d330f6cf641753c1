package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// status: recorded/pending/rejected/failed
	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "performance_submissions_total",
			Help: "Total number of quiz result submissions",
		},
		[]string{"status"},
	)

	SubmitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "performance_submit_duration_seconds",
			Help:    "Time spent processing a quiz result submission",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	AchievementsUnlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "performance_achievements_unlocked_total",
			Help: "Total number of achievements unlocked",
		},
		[]string{"title"},
	)

	AchievementErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "performance_achievement_evaluation_errors_total",
			Help: "Achievement evaluations that failed and were skipped",
		},
	)

	VersionConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "performance_student_version_conflicts_total",
			Help: "Optimistic concurrency conflicts on student records",
		},
	)

	ReconciledResults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "performance_reconciled_results_total",
			Help: "Quiz results applied by reconciliation",
		},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "performance_cache_lookups_total",
			Help: "Read-side cache lookups",
		},
		[]string{"view", "outcome"},
	)
)
