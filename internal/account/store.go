package account

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("account not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// Store is the persistence interface for accounts. The production
// implementation is the MongoDB Repository; tests use in-memory fakes.
type Store interface {
	Create(ctx context.Context, email, passwordHash, verificationToken string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByVerificationToken(ctx context.Context, token string) (*Account, error)
	GetByResetToken(ctx context.Context, token string) (*Account, error)

	// MarkVerified sets verified=true and removes the verification token.
	MarkVerified(ctx context.Context, id string) error

	// SetVerificationToken overwrites the pending verification token.
	SetVerificationToken(ctx context.Context, id string, token string) error

	// SetResetToken overwrites the reset token and its expiry together.
	SetResetToken(ctx context.Context, id string, token string, expiresAt time.Time) error

	// UpdatePassword replaces the password hash and removes both reset fields.
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
}
