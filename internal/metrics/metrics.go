// Package metrics exposes the aggregated counters spec.md section 7
// requires ("aggregated counters (allowed, skipped-excluded,
// skipped-robots, frontier-exhausted) are exposed to the metrics
// exporter"). Adapted from the teacher's
// internal/scheduler/v2/observability.Metrics: a promauto-registered
// struct grouped by concern, built with prometheus/client_golang.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "frontier"
	subsystem = "scheduler"
)

// Metrics holds every Prometheus metric the crawler emits.
type Metrics struct {
	URLsAllowedTotal           prometheus.Counter
	URLsSkippedExcludedTotal   prometheus.Counter
	URLsSkippedRobotsTotal     prometheus.Counter
	FrontierExhaustedTotal     prometheus.Counter
	DomainsClaimedTotal        prometheus.Counter
	ClaimBackoffTotal          prometheus.Counter
	FrontierURLsAddedTotal     prometheus.Counter
	FrontierURLsDuplicateTotal prometheus.Counter
	RobotsFetchTotal           *prometheus.CounterVec
	VisitedTotal               *prometheus.CounterVec
}

// New creates and registers every metric against reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		URLsAllowedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "urls_allowed_total",
			Help: "URLs returned by get_next_url that passed politeness checks.",
		}),
		URLsSkippedExcludedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "urls_skipped_excluded_total",
			Help: "URLs skipped because their domain is excluded.",
		}),
		URLsSkippedRobotsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "urls_skipped_robots_total",
			Help: "URLs skipped because robots.txt disallowed them.",
		}),
		FrontierExhaustedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "frontier_exhausted_total",
			Help: "Domain claims that found an exhausted frontier file.",
		}),
		DomainsClaimedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "domains_claimed_total",
			Help: "Successful claim_eligible_domain calls.",
		}),
		ClaimBackoffTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "claim_backoff_total",
			Help: "Times get_next_url backed off with no eligible domain.",
		}),
		FrontierURLsAddedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "writer",
			Name: "frontier_urls_added_total",
			Help: "URLs newly enqueued by add_urls.",
		}),
		FrontierURLsDuplicateTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "writer",
			Name: "frontier_urls_seen_duplicate_total",
			Help: "URLs dropped by add_urls because already seen.",
		}),
		RobotsFetchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "politeness",
			Name: "robots_fetch_total",
			Help: "robots.txt fetch attempts by result.",
		}, []string{"result"}),
		VisitedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker",
			Name: "urls_visited_total",
			Help: "URLs fetched, labeled by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler returns the HTTP handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
