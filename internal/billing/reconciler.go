package billing

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/servicenegotiator/api/internal/metrics"
	"github.com/servicenegotiator/api/internal/model"
)

// PlanStore is the reconciler's write surface into the account record.
type PlanStore interface {
	UpdatePlanByEmail(ctx context.Context, email string, plan model.Plan) error
}

// CustomerResolver maps a customer reference to its billing email.
type CustomerResolver interface {
	CustomerEmail(ctx context.Context, customerID string) (string, error)
}

// DeadLetters records events whose effect was lost after acknowledgment.
type DeadLetters interface {
	RecordFailedBillingEvent(ctx context.Context, eventID, eventType, subject, reason string, payload []byte) error
}

// Reconciler folds asynchronous billing events into the durable plan state.
//
// Deliveries are at-least-once and unordered. Every event fully re-derives
// the plan instead of patching it, so duplicates are harmless; the last
// write observed at the storage layer wins. Failures after the signature
// check are swallowed: a 200 acknowledgment stops the provider's redelivery
// loop, so a failed event is logged, counted, and dead-lettered instead of
// surfaced.
type Reconciler struct {
	plans       PlanStore
	customers   CustomerResolver
	deadLetters DeadLetters
	logger      *slog.Logger
	metrics     metrics.Recorder
}

// NewReconciler creates a billing event reconciler.
func NewReconciler(plans PlanStore, customers CustomerResolver, deadLetters DeadLetters, logger *slog.Logger, recorder metrics.Recorder) *Reconciler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Reconciler{
		plans:       plans,
		customers:   customers,
		deadLetters: deadLetters,
		logger:      logger.With("component", "billing_reconciler"),
		metrics:     recorder,
	}
}

// HandleEvent applies one verified event. It never returns an error; the
// delivery is acknowledged regardless of the outcome.
func (r *Reconciler) HandleEvent(ctx context.Context, event *Event) {
	start := time.Now()
	defer func() {
		r.metrics.ObserveReconcileDuration(time.Since(start))
	}()

	switch event.Type {
	case EventCheckoutCompleted:
		r.applyCheckoutCompleted(ctx, event)
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		r.applySubscriptionChange(ctx, event, "")
	case EventSubscriptionDeleted:
		r.applySubscriptionChange(ctx, event, model.PlanFree)
	default:
		r.logger.Debug("skipping webhook event", "event_id", event.ID, "event_type", event.Type)
		r.metrics.IncWebhookEvent(event.Type, "skipped")
	}
}

// applyCheckoutCompleted resolves the subject by email directly from the
// checkout payload; guest checkouts have no customer reference yet.
func (r *Reconciler) applyCheckoutCompleted(ctx context.Context, event *Event) {
	var payload checkoutSessionPayload
	if err := json.Unmarshal(event.Data.Object, &payload); err != nil {
		r.fail(ctx, event, "", "decode checkout payload: "+err.Error())
		return
	}

	email := payload.email()
	if email == "" {
		r.fail(ctx, event, string(payload.Customer), "checkout session has no email")
		return
	}

	r.setPlan(ctx, event, email, planFromMetadata(payload.Metadata))
}

// applySubscriptionChange resolves the subject through the provider's
// customer record. A non-empty override forces the target plan.
func (r *Reconciler) applySubscriptionChange(ctx context.Context, event *Event, override model.Plan) {
	var payload subscriptionPayload
	if err := json.Unmarshal(event.Data.Object, &payload); err != nil {
		r.fail(ctx, event, "", "decode subscription payload: "+err.Error())
		return
	}

	customerID := string(payload.Customer)
	if customerID == "" {
		r.fail(ctx, event, "", "subscription has no customer reference")
		return
	}

	email, err := r.customers.CustomerEmail(ctx, customerID)
	if err != nil {
		r.fail(ctx, event, customerID, "resolve customer email: "+err.Error())
		return
	}
	if email == "" {
		r.fail(ctx, event, customerID, "customer record has no email")
		return
	}

	plan := override
	if plan == "" {
		plan = planFromMetadata(payload.Metadata)
	}

	r.setPlan(ctx, event, email, plan)
}

func (r *Reconciler) setPlan(ctx context.Context, event *Event, email string, plan model.Plan) {
	if err := r.plans.UpdatePlanByEmail(ctx, email, plan); err != nil {
		r.fail(ctx, event, email, "update plan: "+err.Error())
		return
	}

	r.logger.Info("plan reconciled",
		"event_id", event.ID,
		"event_type", event.Type,
		"plan", plan,
	)
	r.metrics.IncWebhookEvent(event.Type, "applied")
}

// fail logs, counts, and dead-letters a lost event effect.
func (r *Reconciler) fail(ctx context.Context, event *Event, subject, reason string) {
	r.logger.Error("billing event reconciliation failed",
		"event_id", event.ID,
		"event_type", event.Type,
		"reason", reason,
	)
	r.metrics.IncWebhookEvent(event.Type, "failed")

	if r.deadLetters == nil {
		return
	}
	if err := r.deadLetters.RecordFailedBillingEvent(ctx, event.ID, event.Type, subject, reason, event.Data.Object); err != nil {
		r.logger.Error("failed to dead-letter billing event", "event_id", event.ID, "error", err)
	}
}
