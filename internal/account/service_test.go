package account

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftrightai/account-api/internal/logging"
)

func newTestService(t *testing.T) (*Service, *fakeStore, *fakeNotifier) {
	t.Helper()
	store := newFakeStore()
	notifier := newFakeNotifier()
	svc := NewService(store, notifier, logging.NewLogger(true))
	return svc, store, notifier
}

func waitForMail(t *testing.T, ch chan sentMail) sentMail {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for mail dispatch")
		return sentMail{}
	}
}

func TestRegister(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	acc, err := svc.Register(ctx, "A@X.com", "secret123")
	require.NoError(t, err)

	assert.Equal(t, "a@x.com", acc.Email, "email is stored lower-cased")
	assert.False(t, acc.Verified)
	require.NotNil(t, acc.VerificationToken)
	assert.NotEqual(t, "secret123", acc.PasswordHash)

	mail := waitForMail(t, notifier.verifications)
	assert.Equal(t, "a@x.com", mail.to)
	assert.Equal(t, *acc.VerificationToken, mail.token)

	stored := store.snapshot(acc.ID.Hex())
	require.NotNil(t, stored)
	assert.True(t, VerifyPassword(stored.PasswordHash, "secret123"))
}

func TestRegisterDuplicateEmailAnyCase(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@x.com", "secret123")
	require.NoError(t, err)
	waitForMail(t, notifier.verifications)

	_, err = svc.Register(ctx, "A@X.COM", "othersecret")
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"missing email", "", "secret123", ErrEmailRequired},
		{"malformed email", "not-an-email", "secret123", ErrInvalidEmailFormat},
		{"missing password", "a@x.com", "", ErrPasswordRequired},
		{"short password", "a@x.com", "short", ErrPasswordTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifyEmailSingleUse(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	acc, err := svc.Register(ctx, "a@x.com", "secret123")
	require.NoError(t, err)
	token := *acc.VerificationToken
	waitForMail(t, notifier.verifications)

	verified, err := svc.VerifyEmail(ctx, token)
	require.NoError(t, err)
	assert.True(t, verified.Verified)
	assert.Nil(t, verified.VerificationToken)

	stored := store.snapshot(acc.ID.Hex())
	assert.True(t, stored.Verified)
	assert.Nil(t, stored.VerificationToken)

	// The token was consumed; replay must fail.
	_, err = svc.VerifyEmail(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidVerificationToken)
}

func TestVerifyEmailUnknownToken(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.VerifyEmail(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrInvalidVerificationToken)

	_, err = svc.VerifyEmail(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidVerificationToken)
}

func TestAuthenticate(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@x.com", "secret123")
	require.NoError(t, err)
	waitForMail(t, notifier.verifications)

	acc, err := svc.Authenticate(ctx, "A@x.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", acc.Email)
}

func TestAuthenticateFailuresIndistinguishable(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@x.com", "secret123")
	require.NoError(t, err)
	waitForMail(t, notifier.verifications)

	_, wrongPassErr := svc.Authenticate(ctx, "a@x.com", "wrongpass")
	_, noAccountErr := svc.Authenticate(ctx, "ghost@x.com", "secret123")

	// Unknown account and wrong password must be the same error value so the
	// response carries no enumeration signal.
	assert.ErrorIs(t, wrongPassErr, ErrInvalidCredentials)
	assert.ErrorIs(t, noAccountErr, ErrInvalidCredentials)
	assert.Equal(t, wrongPassErr.Error(), noAccountErr.Error())
}

func TestRequestPasswordReset(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	acc, err := svc.Register(ctx, "a@x.com", "secret123")
	require.NoError(t, err)
	waitForMail(t, notifier.verifications)

	issuedAt := time.Now()
	svc.now = func() time.Time { return issuedAt }

	accepted, err := svc.RequestPasswordReset(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, accepted)

	mail := waitForMail(t, notifier.resets)
	assert.Equal(t, "a@x.com", mail.to)

	stored := store.snapshot(acc.ID.Hex())
	require.NotNil(t, stored.ResetToken)
	require.NotNil(t, stored.ResetTokenExpiresAt)
	assert.Equal(t, mail.token, *stored.ResetToken)
	assert.Equal(t, issuedAt.Add(time.Hour), *stored.ResetTokenExpiresAt, "expiry is exactly 1 hour ahead")
}

func TestRequestPasswordResetUnknownEmail(t *testing.T) {
	svc, store, notifier := newTestService(t)

	accepted, err := svc.RequestPasswordReset(context.Background(), "ghost@x.com")
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Zero(t, store.count(), "no record is created")
	assert.Empty(t, notifier.resets, "no mail is sent")
}

func TestResetPasswordLifecycle(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	acc, err := svc.Register(ctx, "a@x.com", "secret123")
	require.NoError(t, err)
	waitForMail(t, notifier.verifications)

	_, err = svc.RequestPasswordReset(ctx, "a@x.com")
	require.NoError(t, err)
	mail := waitForMail(t, notifier.resets)

	require.NoError(t, svc.ResetPassword(ctx, mail.token, "newsecret456"))

	stored := store.snapshot(acc.ID.Hex())
	assert.Nil(t, stored.ResetToken, "token cleared on success")
	assert.Nil(t, stored.ResetTokenExpiresAt, "expiry cleared on success")
	assert.True(t, VerifyPassword(stored.PasswordHash, "newsecret456"))
	assert.False(t, VerifyPassword(stored.PasswordHash, "secret123"))

	// Replay after successful consumption fails.
	err = svc.ResetPassword(ctx, mail.token, "anotherpass")
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	// The new password works, the old one does not.
	_, err = svc.Authenticate(ctx, "a@x.com", "newsecret456")
	assert.NoError(t, err)
	_, err = svc.Authenticate(ctx, "a@x.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@x.com", "secret123")
	require.NoError(t, err)
	waitForMail(t, notifier.verifications)

	_, err = svc.RequestPasswordReset(ctx, "a@x.com")
	require.NoError(t, err)
	mail := waitForMail(t, notifier.resets)

	// Jump past the 1-hour validity window.
	svc.now = func() time.Time { return time.Now().Add(time.Hour + time.Minute) }

	err = svc.ResetPassword(ctx, mail.token, "newsecret456")
	assert.ErrorIs(t, err, ErrInvalidResetToken, "expired token is indistinguishable from an invalid one")
}

func TestResetPasswordUnknownToken(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.ResetPassword(context.Background(), "no-such-token", "newsecret456")
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	err = svc.ResetPassword(context.Background(), "", "newsecret456")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestReissueInvalidatesPreviousResetToken(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@x.com", "secret123")
	require.NoError(t, err)
	waitForMail(t, notifier.verifications)

	_, err = svc.RequestPasswordReset(ctx, "a@x.com")
	require.NoError(t, err)
	first := waitForMail(t, notifier.resets)

	_, err = svc.RequestPasswordReset(ctx, "a@x.com")
	require.NoError(t, err)
	second := waitForMail(t, notifier.resets)

	require.NotEqual(t, first.token, second.token)

	// Only the latest issuance is redeemable.
	err = svc.ResetPassword(ctx, first.token, "newsecret456")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
	assert.NoError(t, svc.ResetPassword(ctx, second.token, "newsecret456"))
}

func TestResendVerification(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	acc, err := svc.Register(ctx, "a@x.com", "secret123")
	require.NoError(t, err)
	first := waitForMail(t, notifier.verifications)

	require.NoError(t, svc.ResendVerification(ctx, "a@x.com"))
	second := waitForMail(t, notifier.verifications)
	assert.NotEqual(t, first.token, second.token)

	// The original token was superseded.
	_, err = svc.VerifyEmail(ctx, first.token)
	assert.ErrorIs(t, err, ErrInvalidVerificationToken)

	verified, err := svc.VerifyEmail(ctx, second.token)
	require.NoError(t, err)
	assert.True(t, verified.Verified)

	// Verified accounts and unknown emails are both silent no-ops.
	require.NoError(t, svc.ResendVerification(ctx, "a@x.com"))
	require.NoError(t, svc.ResendVerification(ctx, "ghost@x.com"))
	assert.Empty(t, notifier.verifications)

	stored := store.snapshot(acc.ID.Hex())
	assert.True(t, stored.Verified)
	assert.Nil(t, stored.VerificationToken)
}

func TestRegisterVerifyLoginScenario(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	acc, err := svc.Register(ctx, "a@x.com", "secret1!")
	require.NoError(t, err)
	token := *acc.VerificationToken
	waitForMail(t, notifier.verifications)

	_, err = svc.VerifyEmail(ctx, token)
	require.NoError(t, err)

	loggedIn, err := svc.Authenticate(ctx, "a@x.com", "secret1!")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", loggedIn.Email)
	assert.True(t, loggedIn.Verified)
}
