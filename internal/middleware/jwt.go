package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/crucial707/logsink/internal/auth"
	"github.com/crucial707/logsink/internal/metrics"
	"github.com/crucial707/logsink/internal/models"
)

type key string

const (
	userKey     key = "user"
	userSinkKey key = "user_sink"
)

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator interface {
	Validate(tokenString string) (auth.Claims, error)
}

// UserLookup resolves a token subject to a stored account.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// Authenticate rejects the request with 401 unless it carries a valid bearer
// token whose subject names an existing user. The user is stored in the context.
func Authenticate(tokens TokenValidator, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "missing bearer token")
				return
			}

			claims, err := tokens.Validate(tokenStr)
			if err != nil {
				slog.Debug("token rejected", "path", r.URL.Path, "error", err)
				metrics.IncAuthFailure("bad_token")
				unauthorized(w, "could not validate credentials")
				return
			}

			user, err := users.GetByUsername(r.Context(), claims.Subject)
			if err != nil {
				slog.Debug("token subject not resolved", "subject", claims.Subject, "error", err)
				metrics.IncAuthFailure("unknown_subject")
				unauthorized(w, "could not validate credentials")
				return
			}

			if sink, ok := r.Context().Value(userSinkKey).(*string); ok {
				*sink = user.Username
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireAdmin answers 403 unless the authenticated user carries the administrator flag.
// It must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUser(r.Context())
		if !ok {
			unauthorized(w, "could not validate credentials")
			return
		}
		if !user.IsAdmin {
			metrics.IncAuthFailure("forbidden")
			writeJSONError(w, "permission denied", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// GetUser returns the authenticated user stored by Authenticate.
func GetUser(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok && user != nil
}

// withUserSink lets an outer middleware learn who authenticated further down the chain.
func withUserSink(ctx context.Context, sink *string) context.Context {
	return context.WithValue(ctx, userSinkKey, sink)
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeJSONError(w, message, http.StatusUnauthorized)
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
