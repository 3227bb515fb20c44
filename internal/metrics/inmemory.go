package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Signups                  uint64
	Logins                   map[string]uint64
	CheckoutSessions         uint64
	PortalSessions           uint64
	WebhookEvents            map[string]uint64 // keyed "type/status"
	ReconcileDurationCount   uint64
	ReconcileDurationTotalNs int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	signups          uint64
	checkoutSessions uint64
	portalSessions   uint64

	reconcileDurationCount   uint64
	reconcileDurationTotalNs int64

	mu            sync.Mutex
	logins        map[string]uint64
	webhookEvents map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		logins:        make(map[string]uint64),
		webhookEvents: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	logins := make(map[string]uint64, len(m.logins))
	for k, v := range m.logins {
		logins[k] = v
	}
	events := make(map[string]uint64, len(m.webhookEvents))
	for k, v := range m.webhookEvents {
		events[k] = v
	}

	return Snapshot{
		Signups:                  atomic.LoadUint64(&m.signups),
		Logins:                   logins,
		CheckoutSessions:         atomic.LoadUint64(&m.checkoutSessions),
		PortalSessions:           atomic.LoadUint64(&m.portalSessions),
		WebhookEvents:            events,
		ReconcileDurationCount:   atomic.LoadUint64(&m.reconcileDurationCount),
		ReconcileDurationTotalNs: atomic.LoadInt64(&m.reconcileDurationTotalNs),
	}
}

// IncSignup increments the signup counter.
func (m *InMemoryRecorder) IncSignup() {
	atomic.AddUint64(&m.signups, 1)
}

// IncLogin increments the login counter for a status.
func (m *InMemoryRecorder) IncLogin(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins[status]++
}

// IncCheckoutSession increments the checkout session counter.
func (m *InMemoryRecorder) IncCheckoutSession() {
	atomic.AddUint64(&m.checkoutSessions, 1)
}

// IncPortalSession increments the portal session counter.
func (m *InMemoryRecorder) IncPortalSession() {
	atomic.AddUint64(&m.portalSessions, 1)
}

// IncWebhookEvent increments the webhook event counter for a type/status pair.
func (m *InMemoryRecorder) IncWebhookEvent(eventType, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhookEvents[eventType+"/"+status]++
}

// ObserveReconcileDuration records a reconciliation duration.
func (m *InMemoryRecorder) ObserveReconcileDuration(duration time.Duration) {
	atomic.AddUint64(&m.reconcileDurationCount, 1)
	atomic.AddInt64(&m.reconcileDurationTotalNs, duration.Nanoseconds())
}
