package session

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/servicenegotiator/api/internal/model"
	"github.com/servicenegotiator/api/internal/repository"
)

// CookieName is the name of the session cookie.
const CookieName = "session"

// tokenBytes is the entropy of a session token (hex-encoded to 64 chars).
const tokenBytes = 32

// UserGetter resolves a user id to its account record.
type UserGetter interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// Manager issues, validates, and invalidates session tokens.
// The cookie carries the token plus an HMAC tag so a tampered value is
// rejected before the store is consulted.
type Manager struct {
	store      Store
	users      UserGetter
	secret     []byte
	ttl        time.Duration
	production bool

	now func() time.Time
}

// NewManager creates a session manager.
// In production the cookie is Secure with SameSite=None to allow cross-site
// embedding; elsewhere it is SameSite=Lax since HTTPS is unavailable and
// SameSite=None requires Secure.
func NewManager(store Store, users UserGetter, secret string, ttl time.Duration, production bool) *Manager {
	return &Manager{
		store:      store,
		users:      users,
		secret:     []byte(secret),
		ttl:        ttl,
		production: production,
		now:        time.Now,
	}
}

// Create issues a new session for the given user id.
func (m *Manager) Create(ctx context.Context, userID string) (*model.Session, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	now := m.now()
	session := &model.Session{
		Token:     hex.EncodeToString(b),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	if err := m.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	return session, nil
}

// Validate resolves a token to its user and session.
// It fails open: missing, malformed, or expired tokens yield (nil, nil, nil).
// An error is returned only for store or lookup failures.
func (m *Manager) Validate(ctx context.Context, token string) (*model.User, *model.Session, error) {
	if token == "" {
		return nil, nil, nil
	}

	session, err := m.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("get session: %w", err)
	}

	if session.Expired(m.now()) {
		// Expired rows are removed eagerly so they can never validate again.
		_ = m.store.Delete(ctx, token)
		return nil, nil, nil
	}

	user, err := m.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			_ = m.store.Delete(ctx, token)
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("get session user: %w", err)
	}

	return user, session, nil
}

// Invalidate deletes a session. Unknown or already-deleted tokens are a no-op.
func (m *Manager) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.store.Delete(ctx, token)
}

// Cookie encodes a session token into the session cookie.
func (m *Manager) Cookie(token string) *http.Cookie {
	c := m.baseCookie()
	c.Value = m.sign(token)
	c.MaxAge = int(m.ttl.Seconds())
	return c
}

// BlankCookie returns an expired session cookie that clears client state.
func (m *Manager) BlankCookie() *http.Cookie {
	c := m.baseCookie()
	c.Value = ""
	c.MaxAge = -1
	return c
}

// ReadCookie extracts and verifies the session token from a request.
// Returns an empty string for absent, malformed, or tampered cookies.
func (m *Manager) ReadCookie(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return m.verify(cookie.Value)
}

func (m *Manager) baseCookie() *http.Cookie {
	c := &http.Cookie{
		Name:     CookieName,
		Path:     "/",
		HttpOnly: true,
	}
	if m.production {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	} else {
		c.SameSite = http.SameSiteLaxMode
	}
	return c
}

// sign appends an HMAC-SHA256 tag: "<token>.<hex mac>".
func (m *Manager) sign(token string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(token))
	return token + "." + hex.EncodeToString(mac.Sum(nil))
}

// verify checks the HMAC tag and returns the bare token, or "" on mismatch.
func (m *Manager) verify(value string) string {
	token, tag, ok := strings.Cut(value, ".")
	if !ok || token == "" {
		return ""
	}

	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(token))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(tag)) {
		return ""
	}

	return token
}
