// Package metrics provides Prometheus observability for the
// verification pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts verification outcomes and measures pipeline latency.
// All methods are nil-safe so callers can run without metrics wired.
type Metrics struct {
	// Verification outcomes by verdict ("verified", "rejected")
	VerificationOutcome *prometheus.CounterVec

	// Reason codes attached to verification results
	ReasonCodes *prometheus.CounterVec

	// Verifications that finished in degraded (high-risk) mode
	HighRiskTotal prometheus.Counter

	// End-to-end verification latency including provider calls
	VerifyLatency prometheus.Histogram

	// Avatar extraction outcomes ("extracted", "no_face", "error")
	AvatarOutcome *prometheus.CounterVec
}

// New creates a Metrics instance with all pipeline metrics registered
// on the default registry.
func New() *Metrics {
	return &Metrics{
		VerificationOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_verifications_total",
			Help: "Total verification attempts by verdict",
		}, []string{"verdict"}),

		ReasonCodes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_verification_reason_codes_total",
			Help: "Total reason codes attached to verification results",
		}, []string{"code"}),

		HighRiskTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kyc_verifications_high_risk_total",
			Help: "Total verifications that finished in degraded mode",
		}),

		VerifyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "kyc_verification_duration_seconds",
			Help:    "Duration of full verification including provider calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		AvatarOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_avatar_extractions_total",
			Help: "Total avatar extraction attempts by outcome",
		}, []string{"outcome"}),
	}
}

// RecordVerification records a finished verification.
func (m *Metrics) RecordVerification(verified bool, highRisk bool, reasonCodes []string, d time.Duration) {
	if m == nil {
		return
	}
	verdict := "rejected"
	if verified {
		verdict = "verified"
	}
	m.VerificationOutcome.WithLabelValues(verdict).Inc()
	for _, code := range reasonCodes {
		m.ReasonCodes.WithLabelValues(code).Inc()
	}
	if highRisk {
		m.HighRiskTotal.Inc()
	}
	m.VerifyLatency.Observe(d.Seconds())
}

// RecordAvatar records an avatar extraction attempt.
func (m *Metrics) RecordAvatar(outcome string) {
	if m != nil {
		m.AvatarOutcome.WithLabelValues(outcome).Inc()
	}
}
