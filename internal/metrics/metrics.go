// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Authentication metrics
	IncSignup()
	IncLogin(status string) // status: "success" or "failure"

	// Billing initiation metrics
	IncCheckoutSession()
	IncPortalSession()

	// Webhook reconciliation metrics
	IncWebhookEvent(eventType, status string) // status: "applied", "failed", "skipped"
	ObserveReconcileDuration(duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
