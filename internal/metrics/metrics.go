// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchTotal counts terminal dispatch outcomes per channel.
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_dispatch_total",
			Help: "Terminal dispatch outcomes by channel and outcome",
		},
		[]string{"channel", "outcome"}, // outcome: sent, failed, opted_out
	)

	// RuleFiringsTotal counts automation rule firings by outcome.
	RuleFiringsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_rule_firings_total",
			Help: "Automation rule firings by outcome",
		},
		[]string{"outcome"}, // sent, failed, skipped
	)

	// SweepDuration tracks drip sweep latency.
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "drip_sweep_duration_seconds",
			Help:    "Duration of drip scheduler sweeps in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
	)

	// RecipientsEnrolled counts recipients enrolled at campaign activation.
	RecipientsEnrolled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_recipients_enrolled_total",
			Help: "Recipients enrolled into campaigns",
		},
	)
)
