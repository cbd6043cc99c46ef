package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/liftrightai/account-api/internal/logging"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailRequired      = errors.New("email is required")
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")

	// ErrInvalidVerificationToken covers both unknown and already-consumed
	// verification tokens; the caller cannot tell them apart.
	ErrInvalidVerificationToken = errors.New("invalid verification token")

	// ErrInvalidResetToken covers unknown, consumed and expired reset tokens
	// with a single indistinguishable error.
	ErrInvalidResetToken = errors.New("invalid or expired password reset token")
)

const resetTokenTTL = 1 * time.Hour

// Notifier defines the interface for outgoing account emails. Dispatch is
// best-effort: the service never fails a request because a mail did not send.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, toEmail, token string) error
	SendPasswordResetEmail(ctx context.Context, toEmail, token string) error
}

// Service implements the account lifecycle: registration, credential
// verification, email verification and the password-reset token lifecycle.
type Service struct {
	store    Store
	notifier Notifier
	logger   *logging.Logger
	now      func() time.Time
}

func NewService(store Store, notifier Notifier, logger *logging.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Register creates a new account and dispatches the verification email.
// The email is normalized before any lookup so that duplicates are detected
// case-insensitively.
func (s *Service) Register(ctx context.Context, email, password string) (*Account, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	verificationToken, err := generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}

	// The store's unique email index is the authority on duplicates; the
	// insert either succeeds or reports ErrDuplicateEmail even under
	// concurrent registrations.
	acc, err := s.store.Create(ctx, email, passwordHash, verificationToken)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	// Send verification email in a goroutine (non-blocking). A send failure
	// does not invalidate the token; the user can request a resend later.
	go func() {
		emailCtx := context.Background()
		if err := s.notifier.SendVerificationEmail(emailCtx, email, verificationToken); err != nil {
			s.logger.Warn("failed to send verification email", "email", email, "error", err)
		}
	}()

	return acc, nil
}

// Authenticate verifies a credential pair. An unknown email and a wrong
// password return the identical error so callers cannot enumerate accounts.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	acc, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if !VerifyPassword(acc.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return acc, nil
}

// GetByID loads an account for an established session.
func (s *Service) GetByID(ctx context.Context, id string) (*Account, error) {
	return s.store.GetByID(ctx, id)
}

// VerifyEmail consumes a verification token. The token field is removed on
// success, so a replay of the same token fails with
// ErrInvalidVerificationToken (single-use guarantee).
func (s *Service) VerifyEmail(ctx context.Context, token string) (*Account, error) {
	if token == "" {
		return nil, ErrInvalidVerificationToken
	}

	acc, err := s.store.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidVerificationToken
		}
		return nil, fmt.Errorf("failed to find account by token: %w", err)
	}

	if err := s.store.MarkVerified(ctx, acc.ID.Hex()); err != nil {
		return nil, fmt.Errorf("failed to mark account verified: %w", err)
	}

	acc.Verified = true
	acc.VerificationToken = nil
	return acc, nil
}

// RequestPasswordReset issues a reset token valid for one hour and dispatches
// the reset email. The returned flag reports whether an account was found;
// re-issuing overwrites any outstanding token, so only the latest is valid.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)

	acc, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get account: %w", err)
	}

	token, err := generateRandomToken()
	if err != nil {
		return false, fmt.Errorf("failed to generate reset token: %w", err)
	}

	expiresAt := s.now().Add(resetTokenTTL)
	if err := s.store.SetResetToken(ctx, acc.ID.Hex(), token, expiresAt); err != nil {
		return false, fmt.Errorf("failed to store reset token: %w", err)
	}

	go func() {
		emailCtx := context.Background()
		if err := s.notifier.SendPasswordResetEmail(emailCtx, email, token); err != nil {
			s.logger.Warn("failed to send password reset email", "email", email, "error", err)
		}
	}()

	return true, nil
}

// ResetPassword consumes a reset token and replaces the password. Unknown,
// already-consumed and expired tokens all fail with the same error. Both
// token fields are cleared on success, so replay fails.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return ErrInvalidResetToken
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	acc, err := s.store.GetByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("failed to find account by reset token: %w", err)
	}

	// The record may still hold an expired token; it is semantically invalid
	// and must be rejected exactly like an unknown one.
	if !acc.HasPendingReset(s.now()) {
		return ErrInvalidResetToken
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.store.UpdatePassword(ctx, acc.ID.Hex(), passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

// ResendVerification issues a fresh verification token for an unverified
// account. It reveals nothing about whether the email is registered.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	acc, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		s.logger.Warn("failed to get account for resend verification", "error", err)
		return nil
	}

	if acc.Verified {
		return nil
	}

	token, err := generateRandomToken()
	if err != nil {
		s.logger.Warn("failed to generate verification token", "error", err)
		return nil
	}

	if err := s.store.SetVerificationToken(ctx, acc.ID.Hex(), token); err != nil {
		s.logger.Warn("failed to update verification token", "error", err)
		return nil
	}

	go func() {
		emailCtx := context.Background()
		if err := s.notifier.SendVerificationEmail(emailCtx, email, token); err != nil {
			s.logger.Warn("failed to resend verification email", "email", email, "error", err)
		}
	}()

	return nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func validateEmail(email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	if len(email) > 254 {
		return ErrInvalidEmailFormat
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmailFormat
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	return nil
}
