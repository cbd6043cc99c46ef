package account

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/liftrightai/account-api/internal/httputil"
	"github.com/liftrightai/account-api/internal/logging"
	"github.com/liftrightai/account-api/internal/session"
)

// ContactSender sends contact-us submissions. Separate from Notifier because
// delivery is synchronous and the failure is reported to the client.
type ContactSender interface {
	SendContactEmail(ctx context.Context, replyTo, message string) error
}

// Handler contains the HTTP handlers for the account API.
type Handler struct {
	service  *Service
	sessions *session.Manager
	contact  ContactSender
}

func NewHandler(service *Service, sessions *session.Manager, contact ContactSender) *Handler {
	return &Handler{
		service:  service,
		sessions: sessions,
		contact:  contact,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ContactRequest represents the contact-us request body
type ContactRequest struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

// ForgotPasswordRequest represents the password reset request
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest represents the password reset confirmation
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResendVerificationRequest represents the resend verification email request
type ResendVerificationRequest struct {
	Email string `json:"email"`
}

// UserResponse is the public profile shape. Nothing beyond email and
// verification state ever leaves the API.
type UserResponse struct {
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}

// SessionResponse represents the check-session response
type SessionResponse struct {
	IsAuthenticated bool          `json:"isAuthenticated"`
	User            *UserResponse `json:"user,omitempty"`
}

// RegisterResponse is shared by register and login
type RegisterResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	User    *UserResponse `json:"user,omitempty"`
}

func publicProfile(acc *Account) *UserResponse {
	return &UserResponse{
		Email:    acc.Email,
		Verified: acc.Verified,
	}
}

// CheckSession reports whether the request carries an authenticated session
// @Summary      Check session
// @Description  Return the authenticated user's public profile, or isAuthenticated=false.
// @Tags         account
// @Produce      json
// @Success      200 {object} SessionResponse
// @Failure      404 {object} httputil.ErrorResponse "Session valid but account missing"
// @Router       /api/check-session [get]
func (h *Handler) CheckSession(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	accountID, _, err := h.sessions.Resolve(r.Context(), r)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			respondJSON(w, SessionResponse{IsAuthenticated: false}, http.StatusOK)
			return
		}
		logger.Error("failed to resolve session", "error", err.Error())
		respondError(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	acc, err := h.service.GetByID(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.Warn("session references missing account", "account_id", accountID)
			respondError(w, "account not found", httputil.CodeAccountNotFound, http.StatusNotFound)
			return
		}
		logger.Error("failed to load account", "error", err.Error())
		respondError(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	respondJSON(w, SessionResponse{
		IsAuthenticated: true,
		User:            publicProfile(acc),
	}, http.StatusOK)
}

// Register handles account registration
// @Summary      Register a new account
// @Description  Create an account, log it in and send a verification email.
// @Tags         account
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration credentials"
// @Success      200 {object} RegisterResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      500 {object} httputil.ErrorResponse "Session establishment failure"
// @Router       /api/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	acc, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			logger.Warn("registration failed: email already registered")
			// Contract quirk kept from the original frontend: duplicates are a
			// 200 with success=false, not an error status.
			respondJSON(w, RegisterResponse{
				Success: false,
				Message: "Email already registered",
			}, http.StatusOK)
			return
		}
		if code, ok := validationCode(err); ok {
			logger.Warn("registration failed: validation error", "error", err.Error())
			respondError(w, err.Error(), code, http.StatusBadRequest)
			return
		}
		logger.Error("registration failed: internal error", "error", err.Error())
		respondError(w, "failed to register", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	// Log the new account in. The account exists at this point; if the
	// session cannot be established the client must hear about it rather
	// than being told registration fully succeeded.
	if _, err := h.sessions.Establish(r.Context(), w, acc.ID.Hex()); err != nil {
		logger.Error("auto login after registration failed", "error", err.Error())
		respondError(w, "auto login error after registration", httputil.CodeSessionEstablishmentError, http.StatusInternalServerError)
		return
	}

	logger.Info("account registered", "account_id", acc.ID.Hex())

	respondJSON(w, RegisterResponse{
		Success: true,
		Message: "Registration and login successful",
		User:    publicProfile(acc),
	}, http.StatusOK)
}

// VerifyEmail handles email verification
// @Summary      Verify email address
// @Description  Consume a verification token from the emailed link.
// @Tags         account
// @Produce      json
// @Param        token query string true "Verification token"
// @Success      200 {object} map[string]any
// @Failure      400 {object} httputil.ErrorResponse "Invalid or already used token"
// @Router       /api/verify-email [get]
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	token := r.URL.Query().Get("token")
	if token == "" {
		logger.Warn("email verification failed: token missing")
		respondError(w, "verification token required", httputil.CodeVerificationTokenRequired, http.StatusBadRequest)
		return
	}

	acc, err := h.service.VerifyEmail(r.Context(), token)
	if err != nil {
		if errors.Is(err, ErrInvalidVerificationToken) {
			logger.Warn("email verification failed: invalid token")
			respondError(w, "Invalid token.", httputil.CodeInvalidToken, http.StatusBadRequest)
			return
		}
		logger.Error("email verification failed: internal error", "error", err.Error())
		respondError(w, "failed to verify email", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("email verified", "account_id", acc.ID.Hex())

	respondJSON(w, map[string]any{
		"message": "Email successfully verified.",
		"user":    publicProfile(acc),
	}, http.StatusOK)
}

// ContactUs forwards a contact form submission
// @Summary      Contact us
// @Description  Forward a message to the site operators with Reply-To set to the submitter.
// @Tags         account
// @Accept       json
// @Produce      json
// @Param        request body ContactRequest true "Submitter email and message"
// @Success      200 {object} map[string]any
// @Failure      500 {object} httputil.ErrorResponse "Mail dispatch failure"
// @Router       /api/contact-us [post]
func (h *Handler) ContactUs(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid contact request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if err := h.contact.SendContactEmail(r.Context(), req.Email, req.Message); err != nil {
		logger.Error("failed to send contact email", "error", err.Error())
		respondError(w, "error sending email", httputil.CodeMailDispatchError, http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]any{
		"success": true,
		"message": "Email sent successfully",
	}, http.StatusOK)
}

// LogIn handles credential login
// @Summary      Log in
// @Description  Authenticate an email/password pair and establish a session.
// @Tags         account
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} RegisterResponse
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      500 {object} httputil.ErrorResponse "Internal error"
// @Router       /api/log-in [post]
func (h *Handler) LogIn(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	acc, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			// One message for both unknown email and wrong password.
			logger.Warn("login failed: invalid credentials")
			respondError(w, "invalid email or password", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
			return
		}
		logger.Error("login failed: internal error", "error", err.Error())
		respondError(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	if _, err := h.sessions.Establish(r.Context(), w, acc.ID.Hex()); err != nil {
		logger.Error("login failed: session establishment", "error", err.Error())
		respondError(w, "login error", httputil.CodeSessionEstablishmentError, http.StatusInternalServerError)
		return
	}

	logger.Info("logged in", "account_id", acc.ID.Hex())

	respondJSON(w, RegisterResponse{
		Success: true,
		User:    publicProfile(acc),
	}, http.StatusOK)
}

// LogOut terminates the current session
// @Summary      Log out
// @Description  Invalidate the server-side session and clear the cookie. Succeeds if no session exists.
// @Tags         account
// @Produce      json
// @Success      200 {object} map[string]any
// @Failure      500 {object} httputil.ErrorResponse "Session teardown failure"
// @Router       /api/log-out [get]
func (h *Handler) LogOut(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if err := h.sessions.Destroy(r.Context(), w, r); err != nil {
		logger.Error("logout failed", "error", err.Error())
		respondError(w, "failed to log out", httputil.CodeSessionTeardownError, http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]any{
		"success": true,
		"message": "Log out successful",
	}, http.StatusOK)
}

// ForgotPassword issues a password reset token
// @Summary      Request password reset
// @Description  Issue a reset token valid for one hour and email the reset link. Always responds 200.
// @Tags         account
// @Accept       json
// @Produce      json
// @Param        request body ForgotPasswordRequest true "Email address"
// @Success      200 {object} map[string]bool
// @Router       /api/forgot-password [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid forgot password request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	accepted, err := h.service.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		// Internal failures are logged but reported as a plain false so the
		// response reveals nothing beyond the usual contract.
		logger.Error("password reset request failed", "error", err.Error())
		accepted = false
	}

	respondJSON(w, map[string]bool{"success": accepted}, http.StatusOK)
}

// ResetPassword redeems a reset token
// @Summary      Reset password
// @Description  Set a new password using a valid, unexpired reset token.
// @Tags         account
// @Accept       json
// @Produce      json
// @Param        request body ResetPasswordRequest true "Reset token and new password"
// @Success      200 {object} map[string]string
// @Failure      400 {object} httputil.ErrorResponse "Invalid or expired token"
// @Router       /api/reset-password [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid reset password request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	err := h.service.ResetPassword(r.Context(), req.Token, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidResetToken) {
			logger.Warn("password reset failed: invalid or expired token")
			respondError(w, "Invalid or expired password reset token.", httputil.CodeInvalidOrExpiredToken, http.StatusBadRequest)
			return
		}
		if code, ok := validationCode(err); ok {
			logger.Warn("password reset failed: validation error", "error", err.Error())
			respondError(w, err.Error(), code, http.StatusBadRequest)
			return
		}
		logger.Error("password reset failed: internal error", "error", err.Error())
		respondError(w, "failed to reset password", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("password reset")

	respondJSON(w, map[string]string{
		"message": "Password successfully reset.",
	}, http.StatusOK)
}

// ResendVerification re-issues the verification token
// @Summary      Resend verification email
// @Description  Send a fresh verification link. Always returns success to prevent email enumeration.
// @Tags         account
// @Accept       json
// @Produce      json
// @Param        request body ResendVerificationRequest true "Email address"
// @Success      200 {object} map[string]string
// @Router       /api/resend-verification [post]
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ResendVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid resend verification request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	_ = h.service.ResendVerification(r.Context(), req.Email)

	respondJSON(w, map[string]string{
		"message": "If your email is registered and not verified, a new verification link has been sent.",
	}, http.StatusOK)
}

func validationCode(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrEmailRequired):
		return httputil.CodeEmailRequired, true
	case errors.Is(err, ErrInvalidEmailFormat):
		return httputil.CodeInvalidEmailFormat, true
	case errors.Is(err, ErrPasswordRequired):
		return httputil.CodePasswordRequired, true
	case errors.Is(err, ErrPasswordTooShort):
		return httputil.CodePasswordTooShort, true
	}
	return "", false
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	httputil.RespondJSON(w, data, statusCode)
}

// respondError sends an error response with a machine-readable code
func respondError(w http.ResponseWriter, message string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, message, code, statusCode)
}
