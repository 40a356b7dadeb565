// Package middleware provides HTTP middleware for intake sessions and access logging.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// sessionIDKey is the context key for storing the session ID.
const sessionIDKey ContextKey = "sessionID"

const (
	// SessionCookie carries the session ID between requests.
	SessionCookie = "intake_session"
	// SessionHeader lets non-browser clients pick their session explicitly.
	SessionHeader = "X-Session-ID"
)

// SessionOptions configures the session cookie.
type SessionOptions struct {
	Secure bool // set the Secure attribute
	MaxAge int  // seconds, 0 for a browser-session cookie
}

// SessionMiddleware resolves the request's session ID from the X-Session-ID header
// or the intake_session cookie, issuing a new one when neither holds a valid UUID.
// The ID is echoed in the X-Session-ID response header.
func SessionMiddleware(opts SessionOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID, ok := sessionFromRequest(r)
			if !ok {
				sessionID = uuid.NewString()
			}

			// Refresh the cookie so its expiry slides and header-selected sessions stick
			if cookie, err := r.Cookie(SessionCookie); err != nil || cookie.Value != sessionID {
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   opts.MaxAge,
					HttpOnly: true,
					Secure:   opts.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(SessionHeader, sessionID)

			ctx := context.WithValue(r.Context(), sessionIDKey, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFromRequest(r *http.Request) (string, bool) {
	if header := strings.TrimSpace(r.Header.Get(SessionHeader)); header != "" {
		if id, err := uuid.Parse(header); err == nil {
			return id.String(), true
		}
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if id, err := uuid.Parse(cookie.Value); err == nil {
			return id.String(), true
		}
	}
	return "", false
}

// GetSessionID extracts the session ID from the request context.
func GetSessionID(r *http.Request) (string, error) {
	sessionID, ok := r.Context().Value(sessionIDKey).(string)
	if !ok || sessionID == "" {
		return "", fmt.Errorf("session ID not found in request context")
	}
	return sessionID, nil
}

// SessionIDKey returns the context key for the session ID (for testing purposes).
func SessionIDKey() ContextKey {
	return sessionIDKey
}
