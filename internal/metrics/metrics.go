// Package metrics registers the prometheus collectors shared by the
// issuer-side components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// VerificationsTotal counts token verifications by result code
	// ("ok" or an error code such as CREDENTIAL_EXPIRED).
	VerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satgate_verifications_total",
			Help: "Total number of token verifications handled, by result.",
		},
		[]string{"result"},
	)

	// ChallengesTotal counts priced challenges issued, by the cause
	// that triggered them ("no_token" or the verification failure
	// code).
	ChallengesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satgate_challenges_total",
			Help: "Total number of priced challenges issued, by cause.",
		},
		[]string{"cause"},
	)
)

func init() {
	prometheus.MustRegister(VerificationsTotal, ChallengesTotal)
}
