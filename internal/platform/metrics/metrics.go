// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DosesLogged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "protocol",
		Name:      "doses_logged_total",
		Help:      "Dose log entries appended.",
	})

	LabResultsAdded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "protocol",
		Name:      "lab_results_added_total",
		Help:      "Lab results recorded.",
	})

	BillingEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "protocol",
		Name:      "billing_events_total",
		Help:      "Stripe webhook events processed, by type and outcome.",
	}, []string{"event_type", "outcome"})

	StatePersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "protocol",
		Name:      "state_persist_failures_total",
		Help:      "State writes to the KV store that failed.",
	})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
