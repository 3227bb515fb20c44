// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import "github.com/servicenegotiator/api/internal/model"

// SignupRequest represents the request body for account registration.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse wraps the account in session and identity responses.
// User is a pointer so an anonymous caller serializes as {"user":null}.
type UserResponse struct {
	User *model.User `json:"user"`
}

// OKResponse acknowledges an operation with no other payload.
type OKResponse struct {
	OK bool `json:"ok"`
}

// CheckoutRequest represents the request body for starting a checkout.
type CheckoutRequest struct {
	Plan string `json:"plan"`
}

// CheckoutResponse carries the hosted checkout session id. The client hands
// it to the provider's JS library, which performs the redirect itself.
type CheckoutResponse struct {
	ID string `json:"id"`
}

// RedirectResponse carries a hosted page URL the client must navigate to.
type RedirectResponse struct {
	URL string `json:"url"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
