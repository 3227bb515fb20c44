package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncSignup is a no-op.
func (n *NoopRecorder) IncSignup() {}

// IncLogin is a no-op.
func (n *NoopRecorder) IncLogin(status string) {}

// IncCheckoutSession is a no-op.
func (n *NoopRecorder) IncCheckoutSession() {}

// IncPortalSession is a no-op.
func (n *NoopRecorder) IncPortalSession() {}

// IncWebhookEvent is a no-op.
func (n *NoopRecorder) IncWebhookEvent(eventType, status string) {}

// ObserveReconcileDuration is a no-op.
func (n *NoopRecorder) ObserveReconcileDuration(duration time.Duration) {}
