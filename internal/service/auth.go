// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/servicenegotiator/api/internal/auth"
	"github.com/servicenegotiator/api/internal/metrics"
	"github.com/servicenegotiator/api/internal/model"
	"github.com/servicenegotiator/api/internal/repository"
)

// Service errors.
var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidPassword    = errors.New("password must be between 8 and 128 characters")
	ErrEmailTaken         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidPlan        = errors.New("invalid plan")
)

// Password length bounds enforced at signup.
const (
	minPasswordLength = 8
	maxPasswordLength = 128
)

// UserStore is the auth service's account surface.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// CredentialStore is the auth service's password credential surface.
type CredentialStore interface {
	CreateCredential(ctx context.Context, cred *model.Credential) error
	GetCredentialByUserID(ctx context.Context, userID string) (*model.Credential, error)
}

// AuthService handles account registration and credential verification.
type AuthService struct {
	users       UserStore
	credentials CredentialStore
	metrics     metrics.Recorder
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserStore, credentials CredentialStore, recorder metrics.Recorder) *AuthService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &AuthService{
		users:       users,
		credentials: credentials,
		metrics:     recorder,
	}
}

// Signup registers a new account on the free tier.
func (s *AuthService) Signup(ctx context.Context, email, password string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return nil, ErrInvalidPassword
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:        ulid.Make().String(),
		Email:     email,
		Plan:      model.PlanFree,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	cred := &model.Credential{
		UserID:       user.ID,
		PasswordHash: hash,
		CreatedAt:    now,
	}
	if err := s.credentials.CreateCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("create credential: %w", err)
	}

	s.metrics.IncSignup()

	return user, nil
}

// Login verifies an email and password pair and returns the account.
// Every failure mode returns ErrInvalidCredentials so the response does not
// reveal which accounts exist; unknown emails still burn a hash verification
// to keep the latency indistinguishable.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, error) {
	email = model.NormalizeEmail(email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			auth.DummyVerify(password)
			s.metrics.IncLogin("failure")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	cred, err := s.credentials.GetCredentialByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			auth.DummyVerify(password)
			s.metrics.IncLogin("failure")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}

	match, err := auth.VerifyPassword(password, cred.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !match {
		s.metrics.IncLogin("failure")
		return nil, ErrInvalidCredentials
	}

	s.metrics.IncLogin("success")

	return user, nil
}

// validateEmail rejects addresses the mail grammar does not accept, plus the
// display-name and whitespace forms it does.
func validateEmail(email string) error {
	if email == "" || len(email) > 254 {
		return ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}

	// Require a dot in the domain; "a@b" parses but is never deliverable here.
	at := strings.LastIndex(email, "@")
	if at < 0 || !strings.Contains(email[at+1:], ".") {
		return ErrInvalidEmail
	}

	return nil
}
