// Package metrics holds the gateway's prometheus collectors.
//
// A nil *Metrics is a valid receiver: every method no-ops, so components can
// run uninstrumented in tests and tools without guarding call sites.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mintgate"

// Label values reported by the components.
const (
	OutcomeGranted = "granted"
	OutcomeDenied  = "denied"
	OutcomeError   = "error"

	EndpointPrimary = "primary"
	EndpointBackup  = "backup"

	AttemptOK        = "ok"
	AttemptRetryable = "retryable"
	AttemptTransport = "transport_error"

	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupError = "error"

	RelaySubmitted = "submitted"
	RelayRejected  = "rejected"
	RelayFailed    = "failed"
)

// Metrics bundles the counters for claims, upstream forwarding, the
// blockhash cache and the transaction relay.
type Metrics struct {
	claimRequests     *prometheus.CounterVec
	upstreamAttempts  *prometheus.CounterVec
	upstreamExhausted prometheus.Counter
	blockhashLookups  *prometheus.CounterVec
	relayRequests     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		claimRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claim_requests_total",
			Help:      "Claim acquisition attempts by outcome.",
		}, []string{"outcome"}),
		upstreamAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_attempts_total",
			Help:      "Upstream RPC forward attempts by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		upstreamExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_exhausted_total",
			Help:      "Requests for which every configured upstream failed.",
		}),
		blockhashLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blockhash_lookups_total",
			Help:      "Blockhash cache lookups by result.",
		}, []string{"result"}),
		relayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_requests_total",
			Help:      "Transaction relay requests by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.claimRequests,
		m.upstreamAttempts,
		m.upstreamExhausted,
		m.blockhashLookups,
		m.relayRequests,
	)
	return m
}

// ClaimRequest counts one claim attempt.
func (m *Metrics) ClaimRequest(outcome string) {
	if m == nil {
		return
	}
	m.claimRequests.WithLabelValues(outcome).Inc()
}

// UpstreamAttempt counts one forward attempt against an endpoint.
func (m *Metrics) UpstreamAttempt(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.upstreamAttempts.WithLabelValues(endpoint, outcome).Inc()
}

// UpstreamExhausted counts a request that failed on every endpoint.
func (m *Metrics) UpstreamExhausted() {
	if m == nil {
		return
	}
	m.upstreamExhausted.Inc()
}

// BlockhashLookup counts one cache lookup.
func (m *Metrics) BlockhashLookup(result string) {
	if m == nil {
		return
	}
	m.blockhashLookups.WithLabelValues(result).Inc()
}

// RelayRequest counts one relay request.
func (m *Metrics) RelayRequest(outcome string) {
	if m == nil {
		return
	}
	m.relayRequests.WithLabelValues(outcome).Inc()
}
