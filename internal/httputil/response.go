package httputil

import (
	"encoding/json"
	"log"
	"net/http"
)

// Stable machine-readable error codes returned alongside human messages.
const (
	CodeInvalidRequestBody        = "INVALID_REQUEST_BODY"
	CodeDuplicateAccount          = "DUPLICATE_ACCOUNT"
	CodeInvalidCredentials        = "INVALID_CREDENTIALS"
	CodeInvalidToken              = "INVALID_TOKEN"
	CodeInvalidOrExpiredToken     = "INVALID_OR_EXPIRED_TOKEN"
	CodeSessionEstablishmentError = "SESSION_ESTABLISHMENT_FAILED"
	CodeSessionTeardownError      = "SESSION_TEARDOWN_FAILED"
	CodeMailDispatchError         = "MAIL_DISPATCH_FAILED"
	CodeAccountNotFound           = "ACCOUNT_NOT_FOUND"
	CodeEmailRequired             = "EMAIL_REQUIRED"
	CodeInvalidEmailFormat        = "INVALID_EMAIL_FORMAT"
	CodePasswordRequired          = "PASSWORD_REQUIRED"
	CodePasswordTooShort          = "PASSWORD_TOO_SHORT"
	CodeVerificationTokenRequired = "VERIFICATION_TOKEN_REQUIRED"
	CodeInternalError             = "INTERNAL_ERROR"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// RespondJSON sends a JSON response with the given status code.
// Logs encoding errors to avoid silent failures.
func RespondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// RespondError sends a JSON error response with the given message and status code.
func RespondError(w http.ResponseWriter, message string, statusCode int) {
	RespondJSON(w, ErrorResponse{Error: message}, statusCode)
}

// RespondErrorWithCode sends a JSON error response with a machine-readable error code.
func RespondErrorWithCode(w http.ResponseWriter, message string, code string, statusCode int) {
	RespondJSON(w, ErrorResponse{Error: message, Code: code}, statusCode)
}
