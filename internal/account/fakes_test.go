package account

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeStore is an in-memory Store used by service and handler tests.
type fakeStore struct {
	mu       sync.Mutex
	accounts map[string]*Account // keyed by hex ID
}

func newFakeStore() *fakeStore {
	return &fakeStore{accounts: make(map[string]*Account)}
}

func (s *fakeStore) Create(ctx context.Context, email, passwordHash, verificationToken string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range s.accounts {
		if acc.Email == email {
			return nil, ErrDuplicateEmail
		}
	}

	now := time.Now()
	token := verificationToken
	acc := &Account{
		ID:                primitive.NewObjectID(),
		Email:             email,
		PasswordHash:      passwordHash,
		Verified:          false,
		VerificationToken: &token,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.accounts[acc.ID.Hex()] = acc
	return copyAccount(acc), nil
}

func (s *fakeStore) GetByEmail(ctx context.Context, email string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range s.accounts {
		if acc.Email == email {
			return copyAccount(acc), nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAccount(acc), nil
}

func (s *fakeStore) GetByVerificationToken(ctx context.Context, token string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range s.accounts {
		if acc.VerificationToken != nil && *acc.VerificationToken == token {
			return copyAccount(acc), nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) GetByResetToken(ctx context.Context, token string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range s.accounts {
		if acc.ResetToken != nil && *acc.ResetToken == token {
			return copyAccount(acc), nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) MarkVerified(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	acc.Verified = true
	acc.VerificationToken = nil
	acc.UpdatedAt = time.Now()
	return nil
}

func (s *fakeStore) SetVerificationToken(ctx context.Context, id string, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	t := token
	acc.VerificationToken = &t
	acc.UpdatedAt = time.Now()
	return nil
}

func (s *fakeStore) SetResetToken(ctx context.Context, id string, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	t := token
	e := expiresAt
	acc.ResetToken = &t
	acc.ResetTokenExpiresAt = &e
	acc.UpdatedAt = time.Now()
	return nil
}

func (s *fakeStore) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	acc.PasswordHash = passwordHash
	acc.ResetToken = nil
	acc.ResetTokenExpiresAt = nil
	acc.UpdatedAt = time.Now()
	return nil
}

// snapshot returns a copy of the stored account for assertions.
func (s *fakeStore) snapshot(id string) *Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil
	}
	return copyAccount(acc)
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

func copyAccount(acc *Account) *Account {
	cp := *acc
	if acc.VerificationToken != nil {
		v := *acc.VerificationToken
		cp.VerificationToken = &v
	}
	if acc.ResetToken != nil {
		v := *acc.ResetToken
		cp.ResetToken = &v
	}
	if acc.ResetTokenExpiresAt != nil {
		v := *acc.ResetTokenExpiresAt
		cp.ResetTokenExpiresAt = &v
	}
	return &cp
}

type sentMail struct {
	to    string
	token string
}

// fakeNotifier records dispatched mails. Sends are signalled on channels so
// tests can wait for the service's async dispatch goroutines.
type fakeNotifier struct {
	verifications chan sentMail
	resets        chan sentMail
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		verifications: make(chan sentMail, 16),
		resets:        make(chan sentMail, 16),
	}
}

func (n *fakeNotifier) SendVerificationEmail(ctx context.Context, toEmail, token string) error {
	n.verifications <- sentMail{to: toEmail, token: token}
	return nil
}

func (n *fakeNotifier) SendPasswordResetEmail(ctx context.Context, toEmail, token string) error {
	n.resets <- sentMail{to: toEmail, token: token}
	return nil
}
