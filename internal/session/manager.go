package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/google/uuid"
)

// ErrNoSession means the request carries no resolvable session: the cookie is
// absent, the sealed token is invalid or expired, or the server-side record is
// gone. Callers treat all of these the same.
var ErrNoSession = errors.New("no active session")

// Manager establishes, resolves and destroys cookie-backed sessions. The
// cookie value is an opaque session ID sealed into a PASETO v4.local token so
// the client can neither read nor forge it; the authoritative record lives in
// the Store and can be revoked independently of the cookie.
type Manager struct {
	store        Store
	symmetricKey paseto.V4SymmetricKey
	cookieName   string
	duration     time.Duration
	secure       bool
}

func NewManager(store Store, key []byte, cookieName string, duration time.Duration, secure bool) (*Manager, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("session cookie key must be exactly 32 bytes, got %d", len(key))
	}

	symmetricKey, err := paseto.V4SymmetricKeyFromBytes(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create symmetric key: %w", err)
	}

	return &Manager{
		store:        store,
		symmetricKey: symmetricKey,
		cookieName:   cookieName,
		duration:     duration,
		secure:       secure,
	}, nil
}

// Establish creates a session bound to the account and sets the session
// cookie on the response. It returns the new session ID.
func (m *Manager) Establish(ctx context.Context, w http.ResponseWriter, accountID string) (string, error) {
	sessionID := uuid.NewString()

	if err := m.store.Save(ctx, sessionID, accountID, m.duration); err != nil {
		return "", fmt.Errorf("failed to establish session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    m.sealSessionID(sessionID),
		Path:     "/",
		MaxAge:   int(m.duration.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	return sessionID, nil
}

// Resolve returns the account and session bound to the request's cookie.
// Returns ErrNoSession if the request has no valid session; any other error
// is a store failure.
func (m *Manager) Resolve(ctx context.Context, r *http.Request) (accountID, sessionID string, err error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return "", "", ErrNoSession
	}

	sessionID, err = m.openSessionID(cookie.Value)
	if err != nil {
		return "", "", ErrNoSession
	}

	accountID, err = m.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return "", "", ErrNoSession
		}
		return "", "", err
	}

	return accountID, sessionID, nil
}

// Destroy invalidates the request's session record and instructs the client
// to discard the cookie. An absent or already-invalid session is a no-op
// success; store failures propagate.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	// Clear the cookie regardless of the record's fate.
	defer m.clearCookie(w)

	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return nil
	}

	sessionID, err := m.openSessionID(cookie.Value)
	if err != nil {
		return nil
	}

	if err := m.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sealSessionID wraps the session ID in a PASETO v4.local token whose
// expiration mirrors the server-side TTL.
func (m *Manager) sealSessionID(sessionID string) string {
	now := time.Now()

	token := paseto.NewToken()
	token.SetIssuedAt(now)
	token.SetExpiration(now.Add(m.duration))
	token.SetString("session_id", sessionID)

	return token.V4Encrypt(m.symmetricKey, nil)
}

// openSessionID unseals a cookie value back to the session ID. Tampered or
// expired tokens fail.
func (m *Manager) openSessionID(value string) (string, error) {
	parser := paseto.NewParser()

	token, err := parser.ParseV4Local(m.symmetricKey, value, nil)
	if err != nil {
		return "", fmt.Errorf("invalid session cookie: %w", err)
	}

	sessionID, err := token.GetString("session_id")
	if err != nil {
		return "", fmt.Errorf("invalid session cookie: %w", err)
	}

	return sessionID, nil
}
