package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"webping/internal/notify"

	"github.com/go-chi/chi/v5"
)

const rateWindow = time.Minute

// SendHandler fans the request body out to every browser of the topic's
// owner. It answers 200 as soon as the topic exists; per-browser failures are
// reported in the results.
func (h *Handler) SendHandler(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")

	body, ok := readBody(w, r)
	if !ok {
		return
	}
	if !h.allowSend(w, r, "send", topic) {
		return
	}

	res, err := h.Notify.Send(r.Context(), topic, body)
	switch {
	case errors.Is(err, notify.ErrTopicNotFound):
		writeMessage(w, http.StatusNotFound, "Topic not found")
		return
	case errors.Is(err, context.Canceled):
		h.Log.InfoContext(r.Context(), "send cancelled by client", slog.String("topic", topic))
		return
	case err != nil:
		h.Log.ErrorContext(r.Context(), "failed to send notifications",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		writeMessage(w, http.StatusInternalServerError, "Failed to send notifications")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// EmailHandler mails the request body to the topic owner.
func (h *Handler) EmailHandler(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")

	body, ok := readBody(w, r)
	if !ok {
		return
	}
	if !h.allowSend(w, r, "email", topic) {
		return
	}

	err := h.Notify.Email(r.Context(), topic, body)
	switch {
	case errors.Is(err, notify.ErrTopicNotFound):
		writeMessage(w, http.StatusNotFound, "Topic not found")
		return
	case errors.Is(err, notify.ErrNoEmailConfigured):
		writeMessage(w, http.StatusBadRequest, "User does not have an email address configured")
		return
	case errors.Is(err, notify.ErrMailTransport):
		writeProblem(w, http.StatusInternalServerError, "Failed to send email", transportDetail(err))
		return
	case err != nil:
		h.Log.ErrorContext(r.Context(), "failed to send email",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		writeMessage(w, http.StatusInternalServerError, "Failed to send email")
		return
	}

	writeMessage(w, http.StatusOK, "Email sent successfully")
}

// allowSend applies the per-topic rate limit. Limiter errors let the request
// through.
func (h *Handler) allowSend(w http.ResponseWriter, r *http.Request, channel, topic string) bool {
	if h.Limiter == nil || h.SendRateLimit <= 0 {
		return true
	}

	ok, err := h.Limiter.Allow(r.Context(), channel+":"+topic, h.SendRateLimit, rateWindow)
	if err != nil {
		h.Log.WarnContext(r.Context(), "rate limiter unavailable",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		return true
	}
	if !ok {
		h.Metrics.ObserveRateLimited()
		w.Header().Set("Retry-After", "60")
		writeMessage(w, http.StatusTooManyRequests, "Rate limit exceeded")
		return false
	}
	return true
}

// transportDetail strips the sentinel prefix so only the provider's message
// is reported.
func transportDetail(err error) string {
	return strings.TrimPrefix(err.Error(), notify.ErrMailTransport.Error()+": ")
}
