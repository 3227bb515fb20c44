// Package model defines domain entities for the application.
package model

import (
	"strings"
	"time"
)

// Plan is a subscription tier controlling feature access.
type Plan string

// Known plan tiers, ordered from free upward.
const (
	PlanFree       Plan = "free"
	PlanHomeowner  Plan = "homeowner"
	PlanFamily     Plan = "family"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// IsValid reports whether p is a known plan tier.
func (p Plan) IsValid() bool {
	switch p {
	case PlanFree, PlanHomeowner, PlanFamily, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// IsPaid reports whether p is a paid tier.
func (p Plan) IsPaid() bool {
	return p.IsValid() && p != PlanFree
}

// User represents an account holder.
// Plan and BillingCustomerID are mutated only by the billing reconciler
// and the lazy customer backfill during checkout/portal initiation.
type User struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Plan              Plan      `json:"plan"`
	BillingCustomerID *string   `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NormalizeEmail lowercases and trims an email for use as an identity key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
