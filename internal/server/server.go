// Package server provides the HTTP API and browser client for candidate intake.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonathan/candidate-intake/internal/assessment"
	"github.com/jonathan/candidate-intake/internal/logging"
	"github.com/jonathan/candidate-intake/internal/server/middleware"
	"github.com/jonathan/candidate-intake/internal/server/ratelimit"
	"github.com/jonathan/candidate-intake/internal/web"
)

// DefaultMaxUploadBytes caps resume uploads when Config leaves it unset.
const DefaultMaxUploadBytes = 10 << 20

// Server represents the HTTP server
type Server struct {
	httpServer     *http.Server
	service        *assessment.Service
	rateLimiter    *ratelimit.Limiter
	maxUploadBytes int64
}

// Config holds server configuration
type Config struct {
	Port           int
	MaxUploadBytes int64
	RateLimit      *ratelimit.Config // nil uses ratelimit.DefaultConfig
	SecureCookies  bool
	SessionMaxAge  int // seconds
}

// New creates a new server instance
func New(cfg Config, svc *assessment.Service) (*Server, error) {
	if svc == nil {
		return nil, errors.New("assessment service is required")
	}

	s := &Server{
		service:        svc,
		maxUploadBytes: cfg.MaxUploadBytes,
	}
	if s.maxUploadBytes <= 0 {
		s.maxUploadBytes = DefaultMaxUploadBytes
	}

	limiter, err := ratelimit.NewLimiter(cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	s.rateLimiter = limiter

	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /upload/stream", s.handleUploadStream)
	mux.HandleFunc("GET /report", s.handleReport)
	mux.HandleFunc("POST /save-customized-json", s.handleSave(submitCustomized))
	mux.HandleFunc("POST /save-behavior-json", s.handleSave(submitBehavioral))
	mux.HandleFunc("POST /analyze-behavior", s.handleSave(submitBehavioral))
	mux.HandleFunc("GET /final-report", s.handleFinalReport)
	mux.HandleFunc("GET /behavior-questions", s.handleBehaviorQuestions)
	mux.HandleFunc("GET /session", s.handleSession)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Browser client
	mux.Handle("GET /", http.FileServerFS(web.Assets()))

	sessions := middleware.SessionMiddleware(middleware.SessionOptions{
		Secure: cfg.SecureCookies,
		MaxAge: cfg.SessionMaxAge,
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRateLimit(sessions(middleware.AccessLog(s.withCORS(mux)))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // Long timeout for model calls
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.httpServer.Addr).Msg("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Stop rate limiter cleanup goroutine
	s.rateLimiter.Stop()

	logging.Info().Msg("server stopped")
	return nil
}

// Close releases background resources without serving.
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+middleware.SessionHeader)
		w.Header().Set("Access-Control-Expose-Headers", middleware.SessionHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, clientID, info)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr; X-Forwarded-For is not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, clientID string, info ratelimit.Info) {
	response := map[string]any{
		"success":   false,
		"error":     "rate_limit_exceeded",
		"kind":      "rate_limit",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		response["retry_after"] = int(info.RetryAfter.Seconds())
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())))
	}

	logging.Warn().
		Str("client", clientID).
		Str("path", r.URL.Path).
		Int("limit", info.Limit).
		Time("reset_at", info.ResetTime).
		Msg("rate limit exceeded")

	s.jsonResponse(w, r, http.StatusTooManyRequests, response)
}
