package handlers

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/crucial707/logsink/internal/auth"
	"github.com/crucial707/logsink/internal/metrics"
	"github.com/crucial707/logsink/internal/middleware"
	"github.com/crucial707/logsink/internal/repo"
)

// ==========================
// Auth Handler
// ==========================
type AuthHandler struct {
	Users  *repo.UserRepo
	Hasher auth.PasswordHasher
	Tokens *auth.Tokens
}

// Usernames are trimmed before validation on every path, so "alice " and "alice" are one account.
type credentials struct {
	Username string `json:"username" validate:"required,max=150,nonul"`
	Password string `json:"password" validate:"required,maxbytes=72,nonul"`
}

func (c *credentials) normalize() {
	c.Username = strings.TrimSpace(c.Username)
}

// ==========================
// Register (POST /users/ and POST /register)
// ==========================
// Register creates a regular account. Only the bcrypt hash is stored.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	hash, err := h.Hasher.Hash(input.Password)
	if err != nil {
		slog.Error("register: hash password", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	user, err := h.Users.Create(r.Context(), input.Username, hash, false)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateUsername) {
			JSONError(w, "username already registered", http.StatusConflict)
			return
		}
		slog.Error("register: create user", "username", input.Username, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	slog.Info("user registered", "user_id", user.ID, "username", user.Username)
	writeJSON(w, http.StatusCreated, user)
}

// ==========================
// Token (POST /token)
// ==========================
// Token exchanges username/password for a bearer token. It accepts the OAuth2
// password form (application/x-www-form-urlencoded) as well as JSON.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	input, ok := readCredentials(w, r)
	if !ok {
		return
	}

	user, err := h.Users.GetByUsername(r.Context(), input.Username)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			slog.Error("token: lookup user", "username", input.Username, "error", err)
			JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
			return
		}
		rejectCredentials(w)
		return
	}

	if err := h.Hasher.Verify(user.PasswordHash, input.Password); err != nil {
		rejectCredentials(w)
		return
	}

	tok, err := h.Tokens.Issue(user.Username)
	if err != nil {
		slog.Error("token: issue", "username", user.Username, "error", err)
		JSONError(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, tok)
}

// ==========================
// Me (GET /users/me)
// ==========================
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		JSONError(w, "could not validate credentials", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// readCredentials accepts the urlencoded password form or a JSON body.
func readCredentials(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/x-www-form-urlencoded" {
		return decodeCredentials(w, r)
	}

	var input credentials
	if err := r.ParseForm(); err != nil {
		if isTooLarge(err) {
			JSONError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return input, false
		}
		JSONError(w, "invalid form", http.StatusBadRequest)
		return input, false
	}
	input.Username = r.PostForm.Get("username")
	input.Password = r.PostForm.Get("password")
	input.normalize()
	return input, validateBody(w, &input)
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	var input credentials
	if !decodeJSON(w, r, &input) {
		return input, false
	}
	input.normalize()
	return input, validateBody(w, &input)
}

func rejectCredentials(w http.ResponseWriter) {
	metrics.IncAuthFailure("bad_credentials")
	w.Header().Set("WWW-Authenticate", "Bearer")
	JSONError(w, "incorrect username or password", http.StatusUnauthorized)
}
