package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/servicenegotiator/api/internal/auth"
	"github.com/servicenegotiator/api/internal/handler/dto"
	"github.com/servicenegotiator/api/internal/service"
	"github.com/servicenegotiator/api/internal/session"
)

// AuthHandler handles registration, login, logout, and identity endpoints.
type AuthHandler struct {
	service  *service.AuthService
	sessions *session.Manager
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *service.AuthService, sessions *session.Manager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:  svc,
		sessions: sessions,
		logger:   logger.With("handler", "auth"),
	}
}

// Signup handles POST /api/auth/signup.
// A successful registration also logs the account in.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error: "Invalid input",
			Code:  "INVALID_INPUT",
		})
		return
	}

	user, err := h.service.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrInvalidPassword):
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
				Error: "Invalid input",
				Code:  "INVALID_INPUT",
			})
		case errors.Is(err, service.ErrEmailTaken):
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{
				Error: "Email already in use",
				Code:  "EMAIL_TAKEN",
			})
		default:
			h.logger.Error("signup failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{
				Error: "Signup failed",
				Code:  "INTERNAL_ERROR",
			})
		}
		return
	}

	sess, err := h.sessions.Create(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to create session after signup", "error", err, "user_id", user.ID)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{
			Error: "Signup failed",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	h.logger.Info("account created", "user_id", user.ID)

	http.SetCookie(w, h.sessions.Cookie(sess.Token))
	writeJSON(w, http.StatusCreated, dto.UserResponse{User: user})
}

// Login handles POST /api/auth/login.
// All credential failures share one response so the endpoint cannot be used
// to probe which emails have accounts.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error: "Invalid input",
			Code:  "INVALID_INPUT",
		})
		return
	}

	user, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{
				Error: "Invalid credentials",
				Code:  "INVALID_CREDENTIALS",
			})
			return
		}
		h.logger.Error("login failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{
			Error: "Login failed",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	sess, err := h.sessions.Create(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to create session after login", "error", err, "user_id", user.ID)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{
			Error: "Login failed",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	http.SetCookie(w, h.sessions.Cookie(sess.Token))
	writeJSON(w, http.StatusOK, dto.UserResponse{User: user})
}

// Logout handles POST /api/auth/logout.
// Always succeeds: the session is deleted if present and the cookie is
// cleared either way.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.sessions.ReadCookie(r)
	if token != "" {
		if err := h.sessions.Invalidate(r.Context(), token); err != nil {
			h.logger.Error("failed to invalidate session", "error", err)
		}
	}

	http.SetCookie(w, h.sessions.BlankCookie())
	writeJSON(w, http.StatusOK, dto.OKResponse{OK: true})
}

// Me handles GET /api/auth/me.
// Anonymous and stale sessions both answer 200 with a null user; a stale
// cookie is additionally cleared so the client stops sending it.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if user := auth.UserFromContext(r.Context()); user != nil {
		writeJSON(w, http.StatusOK, dto.UserResponse{User: user})
		return
	}

	if _, err := r.Cookie(session.CookieName); err == nil {
		http.SetCookie(w, h.sessions.BlankCookie())
	}
	writeJSON(w, http.StatusOK, dto.UserResponse{User: nil})
}
