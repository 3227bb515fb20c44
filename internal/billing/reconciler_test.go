package billing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/servicenegotiator/api/internal/metrics"
	"github.com/servicenegotiator/api/internal/model"
	"github.com/servicenegotiator/api/internal/repository"
)

type fakePlanStore struct {
	mu    sync.Mutex
	plans map[string]model.Plan
	err   error
}

func (f *fakePlanStore) UpdatePlanByEmail(_ context.Context, email string, plan model.Plan) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.plans[email]; !ok {
		return repository.ErrUserNotFound
	}
	f.plans[email] = plan
	return nil
}

func (f *fakePlanStore) plan(email string) model.Plan {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plans[email]
}

type fakeResolver struct {
	emails map[string]string
	err    error
}

func (f *fakeResolver) CustomerEmail(_ context.Context, customerID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.emails[customerID], nil
}

type fakeDeadLetters struct {
	mu      sync.Mutex
	records []string
}

func (f *fakeDeadLetters) RecordFailedBillingEvent(_ context.Context, eventID, eventType, subject, reason string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, eventType+": "+reason)
	return nil
}

func (f *fakeDeadLetters) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func testEvent(t *testing.T, id, eventType string, object any) *Event {
	t.Helper()

	raw, err := json.Marshal(object)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	ev := &Event{ID: id, Type: eventType}
	ev.Data.Object = raw
	return ev
}

func newTestReconciler(plans *fakePlanStore, resolver *fakeResolver, dlq *fakeDeadLetters) (*Reconciler, *metrics.InMemoryRecorder) {
	rec := metrics.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewReconciler(plans, resolver, dlq, logger, rec), rec
}

func TestReconciler_CheckoutCompleted(t *testing.T) {
	plans := &fakePlanStore{plans: map[string]model.Plan{"a@x.com": model.PlanFree}}
	r, rec := newTestReconciler(plans, &fakeResolver{}, &fakeDeadLetters{})

	ev := testEvent(t, "evt_1", EventCheckoutCompleted, map[string]any{
		"customer_details": map[string]any{"email": "a@x.com"},
		"metadata":         map[string]string{"plan": "family"},
	})
	r.HandleEvent(context.Background(), ev)

	if got := plans.plan("a@x.com"); got != model.PlanFamily {
		t.Errorf("expected plan family, got %s", got)
	}
	if rec.Snapshot().WebhookEvents[EventCheckoutCompleted+"/applied"] != 1 {
		t.Error("expected applied counter to increment")
	}
}

func TestReconciler_CheckoutCompleted_EmailFallback(t *testing.T) {
	plans := &fakePlanStore{plans: map[string]model.Plan{"b@x.com": model.PlanFree}}
	r, _ := newTestReconciler(plans, &fakeResolver{}, &fakeDeadLetters{})

	// No customer_details.email; falls back to customer_email.
	ev := testEvent(t, "evt_2", EventCheckoutCompleted, map[string]any{
		"customer_email": "b@x.com",
		"metadata":       map[string]string{"plan": "pro"},
	})
	r.HandleEvent(context.Background(), ev)

	if got := plans.plan("b@x.com"); got != model.PlanPro {
		t.Errorf("expected plan pro, got %s", got)
	}
}

func TestReconciler_CheckoutCompleted_DefaultPlan(t *testing.T) {
	plans := &fakePlanStore{plans: map[string]model.Plan{"a@x.com": model.PlanFree}}
	r, _ := newTestReconciler(plans, &fakeResolver{}, &fakeDeadLetters{})

	// Missing plan metadata defaults to homeowner.
	ev := testEvent(t, "evt_3", EventCheckoutCompleted, map[string]any{
		"customer_details": map[string]any{"email": "a@x.com"},
	})
	r.HandleEvent(context.Background(), ev)

	if got := plans.plan("a@x.com"); got != model.PlanHomeowner {
		t.Errorf("expected default plan homeowner, got %s", got)
	}
}

func TestReconciler_SubscriptionUpdated(t *testing.T) {
	plans := &fakePlanStore{plans: map[string]model.Plan{"c@x.com": model.PlanHomeowner}}
	resolver := &fakeResolver{emails: map[string]string{"cus_1": "c@x.com"}}
	r, _ := newTestReconciler(plans, resolver, &fakeDeadLetters{})

	ev := testEvent(t, "evt_4", EventSubscriptionUpdated, map[string]any{
		"customer": "cus_1",
		"metadata": map[string]string{"plan": "enterprise"},
	})
	r.HandleEvent(context.Background(), ev)

	if got := plans.plan("c@x.com"); got != model.PlanEnterprise {
		t.Errorf("expected plan enterprise, got %s", got)
	}
}

func TestReconciler_SubscriptionDeleted(t *testing.T) {
	plans := &fakePlanStore{plans: map[string]model.Plan{"c@x.com": model.PlanPro}}
	resolver := &fakeResolver{emails: map[string]string{"cus_1": "c@x.com"}}
	r, _ := newTestReconciler(plans, resolver, &fakeDeadLetters{})

	// Cancellation downgrades to free even if metadata names a paid plan.
	ev := testEvent(t, "evt_5", EventSubscriptionDeleted, map[string]any{
		"customer": "cus_1",
		"metadata": map[string]string{"plan": "pro"},
	})
	r.HandleEvent(context.Background(), ev)

	if got := plans.plan("c@x.com"); got != model.PlanFree {
		t.Errorf("expected plan free after cancellation, got %s", got)
	}
}

func TestReconciler_SubscriptionCustomerObject(t *testing.T) {
	plans := &fakePlanStore{plans: map[string]model.Plan{"c@x.com": model.PlanFree}}
	resolver := &fakeResolver{emails: map[string]string{"cus_9": "c@x.com"}}
	r, _ := newTestReconciler(plans, resolver, &fakeDeadLetters{})

	// Expanded customer objects carry the reference under "id".
	ev := testEvent(t, "evt_6", EventSubscriptionCreated, map[string]any{
		"customer": map[string]any{"id": "cus_9"},
		"metadata": map[string]string{"plan": "family"},
	})
	r.HandleEvent(context.Background(), ev)

	if got := plans.plan("c@x.com"); got != model.PlanFamily {
		t.Errorf("expected plan family, got %s", got)
	}
}

func TestReconciler_UnknownEventSkipped(t *testing.T) {
	plans := &fakePlanStore{plans: map[string]model.Plan{"a@x.com": model.PlanFree}}
	dlq := &fakeDeadLetters{}
	r, rec := newTestReconciler(plans, &fakeResolver{}, dlq)

	ev := testEvent(t, "evt_7", "invoice.paid", map[string]any{"customer": "cus_1"})
	r.HandleEvent(context.Background(), ev)

	if got := plans.plan("a@x.com"); got != model.PlanFree {
		t.Errorf("unknown event must not mutate plan, got %s", got)
	}
	if dlq.count() != 0 {
		t.Error("skipped events must not be dead-lettered")
	}
	if rec.Snapshot().WebhookEvents["invoice.paid/skipped"] != 1 {
		t.Error("expected skipped counter to increment")
	}
}

func TestReconciler_FailuresAreSwallowedAndDeadLettered(t *testing.T) {
	tests := []struct {
		name     string
		plans    *fakePlanStore
		resolver *fakeResolver
		event    func(t *testing.T) *Event
	}{
		{
			name:     "unknown email",
			plans:    &fakePlanStore{plans: map[string]model.Plan{}},
			resolver: &fakeResolver{},
			event: func(t *testing.T) *Event {
				return testEvent(t, "evt_a", EventCheckoutCompleted, map[string]any{
					"customer_details": map[string]any{"email": "typo@x.com"},
				})
			},
		},
		{
			name:     "missing email",
			plans:    &fakePlanStore{plans: map[string]model.Plan{}},
			resolver: &fakeResolver{},
			event: func(t *testing.T) *Event {
				return testEvent(t, "evt_b", EventCheckoutCompleted, map[string]any{})
			},
		},
		{
			name:     "customer lookup failure",
			plans:    &fakePlanStore{plans: map[string]model.Plan{"c@x.com": model.PlanPro}},
			resolver: &fakeResolver{err: errors.New("provider unavailable")},
			event: func(t *testing.T) *Event {
				return testEvent(t, "evt_c", EventSubscriptionDeleted, map[string]any{"customer": "cus_1"})
			},
		},
		{
			name:     "store failure",
			plans:    &fakePlanStore{plans: map[string]model.Plan{}, err: errors.New("db down")},
			resolver: &fakeResolver{},
			event: func(t *testing.T) *Event {
				return testEvent(t, "evt_d", EventCheckoutCompleted, map[string]any{
					"customer_details": map[string]any{"email": "a@x.com"},
				})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dlq := &fakeDeadLetters{}
			r, rec := newTestReconciler(tt.plans, tt.resolver, dlq)

			// Must not panic or propagate the failure.
			r.HandleEvent(context.Background(), tt.event(t))

			if dlq.count() != 1 {
				t.Errorf("expected 1 dead-letter record, got %d", dlq.count())
			}

			failed := false
			for key, n := range rec.Snapshot().WebhookEvents {
				if n > 0 && len(key) > 7 && key[len(key)-7:] == "/failed" {
					failed = true
				}
			}
			if !failed {
				t.Error("expected failed counter to increment")
			}
		})
	}
}

func TestReconciler_DuplicateDeliveryIsIdempotent(t *testing.T) {
	plans := &fakePlanStore{plans: map[string]model.Plan{"a@x.com": model.PlanFree}}
	r, _ := newTestReconciler(plans, &fakeResolver{}, &fakeDeadLetters{})

	ev := testEvent(t, "evt_dup", EventCheckoutCompleted, map[string]any{
		"customer_details": map[string]any{"email": "a@x.com"},
		"metadata":         map[string]string{"plan": "family"},
	})

	r.HandleEvent(context.Background(), ev)
	r.HandleEvent(context.Background(), ev)

	if got := plans.plan("a@x.com"); got != model.PlanFamily {
		t.Errorf("expected plan family after duplicate delivery, got %s", got)
	}
}
