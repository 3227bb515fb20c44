// Package billing integrates with the external billing provider: hosted
// checkout and portal initiation, webhook verification, and reconciliation
// of subscription events into the account plan record.
package billing

import "context"

// CheckoutParams describes a hosted checkout session to create.
// Exactly one of CustomerID or CustomerEmail should be set; a checkout with
// neither is the anonymous guest path.
type CheckoutParams struct {
	PriceID       string
	CustomerID    string
	CustomerEmail string
	Plan          string // carried in metadata, read back by the reconciler
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession is a hosted checkout created by the provider.
type CheckoutSession struct {
	ID  string
	URL string
}

// Provider is the external billing provider surface this application needs.
// Keeping it narrow lets tests substitute a double and keeps the rest of the
// codebase vendor-agnostic.
type Provider interface {
	// CreateCustomer registers a payer and returns its opaque reference.
	CreateCustomer(ctx context.Context, email string) (string, error)

	// CustomerEmail resolves a customer reference to its billing email.
	CustomerEmail(ctx context.Context, customerID string) (string, error)

	// CreateCheckoutSession starts a hosted subscription checkout.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)

	// CreatePortalSession opens a hosted self-service billing portal and
	// returns its URL.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}
