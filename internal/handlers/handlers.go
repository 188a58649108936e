package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"webping/internal/metrics"
	"webping/internal/notify"
	"webping/internal/store"

	"github.com/gorilla/sessions"
)

// maxBodyBytes caps request bodies. Push payloads are truncated long before
// this; it only protects the server.
const maxBodyBytes = 64 << 10

type Handler struct {
	Store    store.Store
	Notify   *notify.Service
	VAPID    notify.VAPID
	Sessions sessions.Store

	Activity      store.ActivityStore
	Limiter       store.RateLimiter
	SendRateLimit int

	Metrics *metrics.Metrics
	Log     *slog.Logger
}

type Option func(*Handler)

// WithActivity enables /activity and /events.
func WithActivity(a store.ActivityStore) Option {
	return func(h *Handler) { h.Activity = a }
}

// WithRateLimit limits sends per topic per minute. A nil limiter or a
// non-positive limit disables it.
func WithRateLimit(l store.RateLimiter, perMinute int) Option {
	return func(h *Handler) {
		h.Limiter = l
		h.SendRateLimit = perMinute
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.Metrics = m }
}

func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) {
		if log != nil {
			h.Log = log
		}
	}
}

func NewHandler(s store.Store, svc *notify.Service, vapid notify.VAPID, sess sessions.Store, opts ...Option) *Handler {
	h := &Handler{
		Store:    s,
		Notify:   svc,
		VAPID:    vapid,
		Sessions: sess,
		Log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the database answers.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			h.Log.ErrorContext(r.Context(), "health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeProblem writes an RFC 7807 style error body.
func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":  title,
		"status": status,
		"detail": detail,
	})
}

// decodeJSON reads a JSON request body into v and writes a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request")
		return false
	}
	return true
}

// readBody returns the raw request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return nil, false
		}
		writeMessage(w, http.StatusBadRequest, "Failed to read request body")
		return nil, false
	}
	return body, true
}

func validName(s string, max int) bool {
	n := len([]rune(s))
	return n >= 1 && n <= max
}
