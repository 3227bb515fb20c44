package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/servicenegotiator/api/internal/billing"
	"github.com/servicenegotiator/api/internal/metrics"
	"github.com/servicenegotiator/api/internal/model"
)

// Post-checkout redirect targets, relative to the app URL.
const (
	checkoutSuccessPath = "/?checkout=success"
	checkoutCancelPath  = "/?checkout=cancelled"
	portalReturnPath    = "/?portal=done"
)

// BillingUserStore is the billing service's account surface.
type BillingUserStore interface {
	ClaimBillingCustomer(ctx context.Context, email, customerID string) (string, error)
}

// BillingService starts hosted checkout and portal sessions.
type BillingService struct {
	users    BillingUserStore
	provider billing.Provider
	appURL   string
	prices   map[model.Plan]string
	metrics  metrics.Recorder
}

// NewBillingService creates a new BillingService. The prices map binds each
// purchasable plan to its provider price id; plans absent from the map cannot
// be checked out.
func NewBillingService(users BillingUserStore, provider billing.Provider, appURL string, prices map[model.Plan]string, recorder metrics.Recorder) *BillingService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &BillingService{
		users:    users,
		provider: provider,
		appURL:   strings.TrimSuffix(appURL, "/"),
		prices:   prices,
		metrics:  recorder,
	}
}

// CreateCheckout starts a hosted checkout session for the given plan.
// A nil user starts a guest checkout; the account is matched by email when
// the completion event arrives.
func (s *BillingService) CreateCheckout(ctx context.Context, user *model.User, plan string) (*billing.CheckoutSession, error) {
	p := model.Plan(plan)
	priceID, ok := s.prices[p]
	if !ok || priceID == "" {
		return nil, ErrInvalidPlan
	}

	params := billing.CheckoutParams{
		PriceID:    priceID,
		Plan:       string(p),
		SuccessURL: s.appURL + checkoutSuccessPath,
		CancelURL:  s.appURL + checkoutCancelPath,
	}

	if user != nil {
		customerID, err := s.ensureCustomer(ctx, user)
		if err != nil {
			return nil, err
		}
		params.CustomerID = customerID
	}

	session, err := s.provider.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	s.metrics.IncCheckoutSession()

	return session, nil
}

// CreatePortal starts a hosted billing portal session for the user.
func (s *BillingService) CreatePortal(ctx context.Context, user *model.User) (string, error) {
	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return "", err
	}

	url, err := s.provider.CreatePortalSession(ctx, customerID, s.appURL+portalReturnPath)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}

	s.metrics.IncPortalSession()

	return url, nil
}

// ensureCustomer returns the user's billing customer reference, creating and
// claiming one if none exists yet. The claim is first-writer-wins: when two
// requests race, both end up using the reference that landed on the record,
// and the loser's freshly created customer is simply never referenced again.
func (s *BillingService) ensureCustomer(ctx context.Context, user *model.User) (string, error) {
	if user.BillingCustomerID != nil && *user.BillingCustomerID != "" {
		return *user.BillingCustomerID, nil
	}

	customerID, err := s.provider.CreateCustomer(ctx, user.Email)
	if err != nil {
		return "", fmt.Errorf("create billing customer: %w", err)
	}

	claimed, err := s.users.ClaimBillingCustomer(ctx, user.Email, customerID)
	if err != nil {
		return "", fmt.Errorf("claim billing customer: %w", err)
	}

	return claimed, nil
}
