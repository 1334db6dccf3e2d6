// Package metrics provides Prometheus instrumentation for the SpeakFree
// reporting backend. It exposes counters for intake traffic and scoring
// outcomes, plus histograms for latency tracking.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DialogueTurns counts processed conversation turns, labeled by the
	// slot the machine was filling.
	DialogueTurns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "speakfree_dialogue_turns_total",
		Help: "Total number of intake conversation turns processed",
	}, []string{"slot"})

	// ReportsCreated counts finalized reports, labeled by category.
	ReportsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "speakfree_reports_created_total",
		Help: "Total number of reports created through the intake flow",
	}, []string{"category"})

	// ModerationChecks counts moderation verdicts, labeled by outcome:
	// "allowed", "warned" or "blocked".
	ModerationChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "speakfree_moderation_checks_total",
		Help: "Total number of moderation checks performed",
	}, []string{"outcome"})

	// Assessments counts trust assessments, labeled by severity.
	Assessments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "speakfree_trust_assessments_total",
		Help: "Total number of trust assessments performed",
	}, []string{"severity"})

	// TrustScore observes the distribution of assessed trust scores.
	TrustScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "speakfree_trust_score",
		Help:    "Distribution of assessed trust scores",
		Buckets: []float64{0, 10, 25, 50, 75, 90, 100},
	})

	// TurnLatency records conversation turn processing latency in seconds.
	TurnLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "speakfree_turn_latency_seconds",
		Help:    "Conversation turn processing latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// RateLimited counts requests rejected by the rate limiter, labeled
	// by rule.
	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "speakfree_rate_limited_total",
		Help: "Total number of requests rejected by the rate limiter",
	}, []string{"rule"})
)

func init() {
	prometheus.MustRegister(
		DialogueTurns,
		ReportsCreated,
		ModerationChecks,
		Assessments,
		TrustScore,
		TurnLatency,
		RateLimited,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
