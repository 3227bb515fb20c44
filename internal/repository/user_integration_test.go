//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/servicenegotiator/api/internal/model"
	"github.com/servicenegotiator/api/internal/testutil"
)

// ============================================================================
// User Repository Integration Tests
// ============================================================================

func TestIntegrationUserRepository_CreateUser(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	email := testutil.UniqueEmail("create")
	user := testutil.NewTestUser(t, email)

	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	retrieved, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}

	if retrieved.Email != email {
		t.Errorf("Email mismatch: got %q, want %q", retrieved.Email, email)
	}
	if retrieved.Plan != model.PlanFree {
		t.Errorf("Plan mismatch: got %q, want %q", retrieved.Plan, model.PlanFree)
	}
	if retrieved.BillingCustomerID != nil {
		t.Errorf("BillingCustomerID should be nil for a new user, got %q", *retrieved.BillingCustomerID)
	}
	if retrieved.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestIntegrationUserRepository_CreateUser_DuplicateEmail(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	email := testutil.UniqueEmail("dup")
	user1 := testutil.NewTestUser(t, email)
	user2 := testutil.NewTestUser(t, email)

	if err := repo.CreateUser(ctx, user1); err != nil {
		t.Fatalf("CreateUser (first) failed: %v", err)
	}

	err := repo.CreateUser(ctx, user2)
	if !errors.Is(err, ErrEmailExists) {
		t.Errorf("Expected ErrEmailExists, got: %v", err)
	}
}

func TestIntegrationUserRepository_GetUserByEmail(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	email := testutil.UniqueEmail("byemail")
	user := testutil.NewTestUser(t, email)

	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	retrieved, err := repo.GetUserByEmail(ctx, email)
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if retrieved.ID != user.ID {
		t.Errorf("ID mismatch: got %q, want %q", retrieved.ID, user.ID)
	}
}

func TestIntegrationUserRepository_GetUserByEmail_NotFound(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	_, err := repo.GetUserByEmail(ctx, "nobody@example.com")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got: %v", err)
	}
}

func TestIntegrationUserRepository_UpdatePlanByEmail(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	email := testutil.UniqueEmail("plan")
	user := testutil.NewTestUser(t, email)
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if err := repo.UpdatePlanByEmail(ctx, email, model.PlanFamily); err != nil {
		t.Fatalf("UpdatePlanByEmail failed: %v", err)
	}

	retrieved, err := repo.GetUserByEmail(ctx, email)
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if retrieved.Plan != model.PlanFamily {
		t.Errorf("Plan mismatch: got %q, want %q", retrieved.Plan, model.PlanFamily)
	}
	if !retrieved.UpdatedAt.After(user.UpdatedAt) {
		t.Error("UpdatedAt should advance on plan change")
	}
}

func TestIntegrationUserRepository_UpdatePlanByEmail_UnknownEmail(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	err := repo.UpdatePlanByEmail(ctx, "nobody@example.com", model.PlanPro)
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got: %v", err)
	}
}

func TestIntegrationUserRepository_ClaimBillingCustomer(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	email := testutil.UniqueEmail("claim")
	user := testutil.NewTestUser(t, email)
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	claimed, err := repo.ClaimBillingCustomer(ctx, email, "cus_first")
	if err != nil {
		t.Fatalf("ClaimBillingCustomer failed: %v", err)
	}
	if claimed != "cus_first" {
		t.Errorf("first claim should win: got %q", claimed)
	}

	// A second claim must return the already-stored ID, not overwrite it.
	claimed, err = repo.ClaimBillingCustomer(ctx, email, "cus_second")
	if err != nil {
		t.Fatalf("ClaimBillingCustomer (second) failed: %v", err)
	}
	if claimed != "cus_first" {
		t.Errorf("second claim must lose to the first: got %q", claimed)
	}

	retrieved, err := repo.GetUserByEmail(ctx, email)
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if retrieved.BillingCustomerID == nil || *retrieved.BillingCustomerID != "cus_first" {
		t.Errorf("stored customer ID mismatch: got %v", retrieved.BillingCustomerID)
	}
}

func TestIntegrationUserRepository_ClaimBillingCustomer_UnknownEmail(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	_, err := repo.ClaimBillingCustomer(ctx, "nobody@example.com", "cus_x")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got: %v", err)
	}
}

// ============================================================================
// Credential Repository Integration Tests
// ============================================================================

func TestIntegrationCredentialRepository_Roundtrip(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	user := testutil.NewTestUser(t, testutil.UniqueEmail("cred"))
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	cred := testutil.NewTestCredential(t, user.ID)
	if err := repo.CreateCredential(ctx, cred); err != nil {
		t.Fatalf("CreateCredential failed: %v", err)
	}

	retrieved, err := repo.GetCredentialByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetCredentialByUserID failed: %v", err)
	}
	if retrieved.PasswordHash != cred.PasswordHash {
		t.Errorf("PasswordHash mismatch: got %q, want %q", retrieved.PasswordHash, cred.PasswordHash)
	}
}

func TestIntegrationCredentialRepository_NotFound(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	_, err := repo.GetCredentialByUserID(ctx, testutil.UniqueID("missing"))
	if !errors.Is(err, ErrCredentialNotFound) {
		t.Errorf("Expected ErrCredentialNotFound, got: %v", err)
	}
}

// ============================================================================
// Dead-Letter Repository Integration Tests
// ============================================================================

func TestIntegrationDeadLetterRepository_InsertAndList(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	if err := repo.RecordFailedBillingEvent(ctx,
		"evt_1", "checkout.session.completed", "nobody@example.com",
		"no account matches checkout email", []byte(`{"id":"evt_1"}`),
	); err != nil {
		t.Fatalf("RecordFailedBillingEvent failed: %v", err)
	}
	if err := repo.RecordFailedBillingEvent(ctx,
		"evt_2", "customer.subscription.updated", "cus_x",
		"no account claims billing customer", []byte(`{"id":"evt_2"}`),
	); err != nil {
		t.Fatalf("RecordFailedBillingEvent failed: %v", err)
	}

	events, err := repo.ListFailedEvents(ctx, 10)
	if err != nil {
		t.Fatalf("ListFailedEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 dead-letter events, got %d", len(events))
	}

	// Newest first.
	if events[0].EventID != "evt_2" {
		t.Errorf("expected evt_2 first, got %q", events[0].EventID)
	}
	if events[0].ID == "" {
		t.Error("record ID should be generated on insert")
	}
	if events[0].ReceivedAt.IsZero() {
		t.Error("ReceivedAt should be set on insert")
	}
}

// ============================================================================
// Test Environment
// ============================================================================

func newRepoTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	t.Cleanup(cancel)

	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		if err := unlock(); err != nil {
			t.Errorf("release db lock: %v", err)
		}
	})

	if err := testutil.ResetSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, repo
}
