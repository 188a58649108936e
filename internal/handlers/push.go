package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"webping/internal/models"
	"webping/internal/store"

	"github.com/go-chi/chi/v5"
)

const maxEndpointNameLength = 100

type pushEndpointResponse struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
}

// VAPIDKeyHandler returns the public key browsers need to subscribe.
func (h *Handler) VAPIDKeyHandler(w http.ResponseWriter, r *http.Request) {
	if !h.VAPID.Configured() {
		writeJSON(w, http.StatusOK, map[string]any{
			"publicKey":  nil,
			"configured": false,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"publicKey":  h.VAPID.PublicKey,
		"configured": true,
	})
}

// RegisterPushEndpointHandler saves a browser's push subscription
func (h *Handler) RegisterPushEndpointHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Endpoint string `json:"endpoint"`
		P256dh   string `json:"p256dh"`
		Auth     string `json:"auth"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	name := strings.TrimSpace(req.Name)
	if !validName(name, maxEndpointNameLength) {
		writeMessage(w, http.StatusBadRequest, "Name must be between 1 and 100 characters")
		return
	}
	if u, err := url.Parse(req.Endpoint); err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		writeMessage(w, http.StatusBadRequest, "Invalid push endpoint")
		return
	}
	if req.P256dh == "" || req.Auth == "" {
		writeMessage(w, http.StatusBadRequest, "Subscription keys are required")
		return
	}

	sub, err := h.Store.CreatePushSubscription(r.Context(), models.PushSubscription{
		Name:     name,
		Endpoint: req.Endpoint,
		P256dh:   req.P256dh,
		Auth:     req.Auth,
		Username: Username(r.Context()),
	})
	if errors.Is(err, store.ErrDuplicateEndpoint) {
		writeMessage(w, http.StatusBadRequest, "This browser is already registered")
		return
	}
	if err != nil {
		h.Log.ErrorContext(r.Context(), "failed to save subscription", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, "Failed to save subscription")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Push endpoint registered successfully",
		"id":      sub.ID,
	})
}

func (h *Handler) ListPushEndpointsHandler(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Store.GetPushSubscriptions(r.Context(), Username(r.Context()))
	if err != nil {
		h.Log.ErrorContext(r.Context(), "failed to list subscriptions", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, "Failed to list push endpoints")
		return
	}

	resp := make([]pushEndpointResponse, 0, len(subs))
	for _, s := range subs {
		resp = append(resp, pushEndpointResponse{ID: s.ID, Name: s.Name, Endpoint: s.Endpoint})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) RenamePushEndpointHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := endpointID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if !validName(name, maxEndpointNameLength) {
		writeMessage(w, http.StatusBadRequest, "Name must be between 1 and 100 characters")
		return
	}

	err := h.Store.RenamePushSubscription(r.Context(), id, Username(r.Context()), name)
	if errors.Is(err, store.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Push endpoint not found")
		return
	}
	if err != nil {
		h.Log.ErrorContext(r.Context(), "failed to rename subscription", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, "Failed to update push endpoint")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Push endpoint updated successfully",
		"id":      id,
		"name":    name,
	})
}

func (h *Handler) DeletePushEndpointHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := endpointID(w, r)
	if !ok {
		return
	}

	err := h.Store.DeletePushSubscription(r.Context(), id, Username(r.Context()))
	if errors.Is(err, store.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Push endpoint not found")
		return
	}
	if err != nil {
		h.Log.ErrorContext(r.Context(), "failed to delete subscription", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, "Failed to delete push endpoint")
		return
	}

	writeMessage(w, http.StatusOK, "Push endpoint deleted successfully")
}

func endpointID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}
