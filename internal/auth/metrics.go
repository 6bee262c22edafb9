// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Operation labels for metrics.
const (
	OpSendCode      = "send_code"
	OpCodeLogin     = "code_login"
	OpPasswordLogin = "password_login"
	OpRegister      = "register"
)

// Outcomes counts orchestrator results by operation and outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var Outcomes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "phonepass_auth_outcomes_total",
		Help: "Total number of auth operations by operation and outcome",
	},
	[]string{"operation", "outcome"},
)

// CodesIssued counts verification codes stored and handed to the notifier.
var CodesIssued = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "phonepass_codes_issued_total",
		Help: "Total number of verification codes issued",
	},
)

// NotifyFailures counts notifier errors. Issuance is not rolled back for these.
var NotifyFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "phonepass_code_notify_failures_total",
		Help: "Total number of verification code delivery failures",
	},
)

// Lockouts counts failures that put an account into the locked state.
var Lockouts = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "phonepass_account_lockouts_total",
		Help: "Total number of account lockouts",
	},
)

// SessionsIssued counts sessions minted by the issuer.
var SessionsIssued = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "phonepass_sessions_issued_total",
		Help: "Total number of sessions issued",
	},
)

// RegisterMetrics registers auth metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Outcomes)
	reg.MustRegister(CodesIssued)
	reg.MustRegister(NotifyFailures)
	reg.MustRegister(Lockouts)
	reg.MustRegister(SessionsIssued)
}

// RecordOutcome increments the outcome counter.
func RecordOutcome(operation string, outcome Outcome) {
	Outcomes.WithLabelValues(operation, outcome.String()).Inc()
}
