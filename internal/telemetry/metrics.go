package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quizd",
		Name:      "sessions_started_total",
		Help:      "Number of quiz sessions started.",
	})

	SessionsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quizd",
		Name:      "sessions_submitted_total",
		Help:      "Number of quiz sessions submitted.",
	})

	SubmissionScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "quizd",
		Name:      "submission_score",
		Help:      "Distribution of submitted scores.",
		Buckets:   prometheus.LinearBuckets(0, 1, 16),
	})
)
