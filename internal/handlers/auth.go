package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"webping/internal/models"
	"webping/internal/store"

	"github.com/gorilla/sessions"
)

const (
	sessionName   = "webping-session"
	sessionMaxAge = 7 * 24 * 60 * 60

	minPasswordLength = 8
	maxUsernameLength = 50
)

type ctxKey struct{}

// NewSessionStore returns the cookie store used for browser logins.
func NewSessionStore(secret []byte, secure bool) *sessions.CookieStore {
	s := sessions.NewCookieStore(secret)
	s.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return s
}

// Username returns the authenticated username set by RequireAuth.
func Username(ctx context.Context) string {
	name, _ := ctx.Value(ctxKey{}).(string)
	return name
}

func withUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, ctxKey{}, username)
}

// RequireAuth accepts either HTTP basic credentials (plus X-TOTP-Code when
// the account has 2FA) or a session cookie from /auth/login.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var username string
		if r.Header.Get("Authorization") != "" {
			username = h.basicAuth(r)
		} else {
			username = h.sessionUser(r)
		}
		if username == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUsername(r.Context(), username)))
	})
}

func (h *Handler) basicAuth(r *http.Request) string {
	username, password, ok := r.BasicAuth()
	if !ok {
		return ""
	}
	user, err := h.Store.GetUser(r.Context(), username)
	if err != nil {
		return ""
	}
	if !user.CheckPassword(password) || !user.CheckSecondFactor(r.Header.Get("X-TOTP-Code")) {
		return ""
	}
	return user.Username
}

func (h *Handler) sessionUser(r *http.Request) string {
	session, err := h.Sessions.Get(r, sessionName)
	if err != nil {
		return ""
	}
	username, _ := session.Values["username"].(string)
	if username == "" {
		return ""
	}
	// the account may have been removed since login
	if _, err := h.Store.GetUser(r.Context(), username); err != nil {
		return ""
	}
	return username
}

// RegisterHandler creates an account.
func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if !validName(req.Username, maxUsernameLength) || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Username and password are required")
		return
	}
	if strings.ContainsAny(req.Username, ":/") {
		writeMessage(w, http.StatusBadRequest, "Username must not contain ':' or '/'")
		return
	}
	email, ok := normalizeEmail(req.Email)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid email address")
		return
	}

	user, err := h.Store.CreateUser(r.Context(), req.Username, req.Password, email)
	if errors.Is(err, store.ErrUserExists) {
		writeMessage(w, http.StatusBadRequest, "User already exists")
		return
	}
	if err != nil {
		h.Log.ErrorContext(r.Context(), "failed to create user", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "User registered successfully",
		"username": user.Username,
	})
}

// LoginHandler verifies credentials and starts a cookie session.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Code     string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.Store.GetUser(r.Context(), req.Username)
	if err != nil || !user.CheckPassword(req.Password) {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if user.TOTPEnabled && req.Code == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"message":     "2FA code required",
			"requires2fa": true,
		})
		return
	}
	if !user.CheckSecondFactor(req.Code) {
		writeMessage(w, http.StatusUnauthorized, "Invalid verification code")
		return
	}

	session, _ := h.Sessions.Get(r, sessionName)
	session.Values["username"] = user.Username
	if err := session.Save(r, w); err != nil {
		h.Log.ErrorContext(r.Context(), "failed to save session", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Login successful",
		"username": user.Username,
	})
}

func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	session, _ := h.Sessions.Get(r, sessionName)
	delete(session.Values, "username")
	session.Options.MaxAge = -1
	_ = session.Save(r, w)

	writeMessage(w, http.StatusOK, "Logged out")
}

// MeHandler returns the authenticated account.
func (h *Handler) MeHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.Store.GetUser(r.Context(), Username(r.Context()))
	if err != nil {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.Store.GetUser(r.Context(), Username(r.Context()))
	if err != nil {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	if !user.CheckPassword(req.OldPassword) {
		writeMessage(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		writeMessage(w, http.StatusBadRequest, "New password must be at least 8 characters")
		return
	}

	hash, err := models.HashPassword(req.NewPassword)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}
	if err := h.Store.UpdateUserPassword(r.Context(), user.Username, hash); err != nil {
		h.Log.ErrorContext(r.Context(), "failed to update password", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, "Failed to update password")
		return
	}

	writeMessage(w, http.StatusOK, "Password changed successfully")
}

// UpdateEmailHandler sets the address used by /email/{topic}. An empty
// address clears it.
func (h *Handler) UpdateEmailHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	email, ok := normalizeEmail(req.Email)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid email address")
		return
	}
	if err := h.Store.UpdateUserEmail(r.Context(), Username(r.Context()), email); err != nil {
		h.Log.ErrorContext(r.Context(), "failed to update email", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, "Failed to update email")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Email updated successfully",
		"email":   email,
	})
}

func normalizeEmail(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", true
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return "", false
	}
	return addr.Address, true
}
