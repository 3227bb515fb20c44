package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/servicenegotiator/api/internal/auth"
	"github.com/servicenegotiator/api/internal/billing"
	"github.com/servicenegotiator/api/internal/handler/dto"
	"github.com/servicenegotiator/api/internal/service"
)

// maxWebhookPayload bounds the raw webhook body. The route is mounted
// outside the JSON body-limit middleware because the signature covers the
// exact bytes received.
const maxWebhookPayload = 1 << 20

// BillingHandler handles checkout, portal, and webhook endpoints.
type BillingHandler struct {
	service       *service.BillingService
	reconciler    *billing.Reconciler
	webhookSecret string
	logger        *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(svc *service.BillingService, reconciler *billing.Reconciler, webhookSecret string, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		service:       svc,
		reconciler:    reconciler,
		webhookSecret: webhookSecret,
		logger:        logger.With("handler", "billing"),
	}
}

// CreateCheckoutSession handles POST /api/stripe/create-checkout-session.
// Works for both logged-in and anonymous callers; a guest checkout is
// matched to its account by email when the completion event arrives.
func (h *BillingHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req dto.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error: "Invalid plan",
			Code:  "INVALID_PLAN",
		})
		return
	}

	user := auth.UserFromContext(r.Context())

	session, err := h.service.CreateCheckout(r.Context(), user, req.Plan)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPlan) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
				Error: "Invalid plan",
				Code:  "INVALID_PLAN",
			})
			return
		}
		h.logger.Error("failed to create checkout session", "error", err, "plan", req.Plan)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{
			Error: "Failed to start checkout",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	writeJSON(w, http.StatusOK, dto.CheckoutResponse{ID: session.ID})
}

// CreatePortalSession handles POST /api/stripe/create-portal-session.
func (h *BillingHandler) CreatePortalSession(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{
			Error: "Unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}

	url, err := h.service.CreatePortal(r.Context(), user)
	if err != nil {
		h.logger.Error("failed to create portal session", "error", err, "user_id", user.ID)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{
			Error: "Failed to open billing portal",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	writeJSON(w, http.StatusOK, dto.RedirectResponse{URL: url})
}

// Webhook handles POST /api/stripe/webhook.
// The body is consumed raw: the signature is computed over the exact bytes,
// so any re-encoding would break verification. Errors before verification
// are plain text per the provider's delivery convention; once the event is
// verified the delivery is acknowledged no matter what reconciliation does.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookPayload))
	if err != nil {
		http.Error(w, "Webhook Error: could not read body", http.StatusBadRequest)
		return
	}

	sig := r.Header.Get(billing.SignatureHeader)
	if sig == "" {
		http.Error(w, "Missing signature", http.StatusBadRequest)
		return
	}

	event, err := billing.ConstructEvent(payload, sig, h.webhookSecret)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		http.Error(w, "Webhook Error: "+err.Error(), http.StatusBadRequest)
		return
	}

	h.reconciler.HandleEvent(r.Context(), event)

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
