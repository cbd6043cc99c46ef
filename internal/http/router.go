package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/liftrightai/account-api/internal/account"
	"github.com/liftrightai/account-api/internal/config"
	"github.com/liftrightai/account-api/internal/httputil"
	"github.com/liftrightai/account-api/internal/logging"
)

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, accountHandler *account.Handler, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first. Credentials are allowed because the session
	// rides on a cookie.
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	// Global middleware
	r.Use(SecurityHeaders)               // Security headers on all responses
	r.Use(middleware.Recoverer)          // Recover from panics
	r.Use(middleware.RequestID)          // Add request ID
	r.Use(middleware.RealIP)             // Set RemoteAddr to real IP
	r.Use(logging.RequestLogger(logger)) // Structured logging with request context
	r.Use(middleware.Compress(5))        // Compress responses

	r.Get("/health", handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/check-session", accountHandler.CheckSession)
		r.Post("/register", accountHandler.Register)
		r.Get("/verify-email", accountHandler.VerifyEmail)
		r.Post("/contact-us", accountHandler.ContactUs)
		r.Post("/log-in", accountHandler.LogIn)
		r.Get("/log-out", accountHandler.LogOut)
		r.Post("/forgot-password", accountHandler.ForgotPassword)
		r.Post("/reset-password", accountHandler.ResetPassword)
		r.Post("/resend-verification", accountHandler.ResendVerification)
	})

	return r
}

// handleHealth is a simple health check endpoint
// @Summary      Health check
// @Description  Check if the API is running
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /health [get]
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, map[string]string{"status": "api is running"}, http.StatusOK)
}
