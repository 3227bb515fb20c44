package model

import (
	"testing"
	"time"
)

func TestPlan_IsValid(t *testing.T) {
	valid := []Plan{PlanFree, PlanHomeowner, PlanFamily, PlanPro, PlanEnterprise}
	for _, p := range valid {
		if !p.IsValid() {
			t.Errorf("expected plan %q to be valid", p)
		}
	}

	invalid := []Plan{"", "premium", "FREE", "home owner"}
	for _, p := range invalid {
		if p.IsValid() {
			t.Errorf("expected plan %q to be invalid", p)
		}
	}
}

func TestPlan_IsPaid(t *testing.T) {
	if PlanFree.IsPaid() {
		t.Error("free plan must not be paid")
	}
	if Plan("premium").IsPaid() {
		t.Error("unknown plan must not be paid")
	}
	for _, p := range []Plan{PlanHomeowner, PlanFamily, PlanPro, PlanEnterprise} {
		if !p.IsPaid() {
			t.Errorf("expected plan %q to be paid", p)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"A@X.com", "a@x.com"},
		{"  user@example.com ", "user@example.com"},
		{"already@lower.io", "already@lower.io"},
	}

	for _, tt := range tests {
		if got := NormalizeEmail(tt.input); got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	s := &Session{ExpiresAt: now.Add(time.Hour)}

	if s.Expired(now) {
		t.Error("session expiring in an hour should not be expired")
	}
	if !s.Expired(now.Add(time.Hour)) {
		t.Error("session at its exact expiry should be expired")
	}
	if !s.Expired(now.Add(2 * time.Hour)) {
		t.Error("session past expiry should be expired")
	}
}
