package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "openlearn"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	SchemaMigrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "schema_migrations_total", Help: "Schema migration steps applied, by entity and source version."},
		[]string{"entity", "from"},
	)
	FeatureFlagEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "feature_flag_evaluations_total", Help: "Feature flag evaluations by flag and result."},
		[]string{"flag", "result"},
	)
	StoryProgressEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "story_progress_events_total", Help: "Story progress events (node_completed, story_completed, redirect)."},
		[]string{"event"},
	)
	VoiceArtistRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "voice_artist_rejections_total", Help: "Change lists rejected because they touched non-voiceover fields."},
		[]string{"endpoint"},
	)
	DraftSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "draft_saves_total", Help: "Autosaved drafts by result."},
		[]string{"result"},
	)
	CronRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cron_runs_total", Help: "Cron and one-off job runs by job type and final status."},
		[]string{"job", "status"},
	)
	CronDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: "cron_duration_seconds", Help: "Duration of job runs.", Buckets: prometheus.DefBuckets},
		[]string{"job"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(SchemaMigrations)
	reg.MustRegister(FeatureFlagEvaluations)
	reg.MustRegister(StoryProgressEvents)
	reg.MustRegister(VoiceArtistRejections)
	reg.MustRegister(DraftSaves)
	reg.MustRegister(CronRuns)
	reg.MustRegister(CronDuration)
}
