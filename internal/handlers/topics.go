package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"webping/internal/store"

	"github.com/go-chi/chi/v5"
)

const maxTopicLength = 100

type topicResponse struct {
	Name string `json:"name"`
}

func (h *Handler) CreateTopicHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	name := strings.TrimSpace(req.Name)
	if !validName(name, maxTopicLength) {
		writeMessage(w, http.StatusBadRequest, "Topic name must be between 1 and 100 characters")
		return
	}
	// topics are addressed as a single path segment
	if strings.ContainsAny(name, "/?#") {
		writeMessage(w, http.StatusBadRequest, "Topic name must not contain '/', '?' or '#'")
		return
	}

	_, err := h.Store.CreateTopic(r.Context(), name, Username(r.Context()))
	if errors.Is(err, store.ErrTopicExists) {
		writeMessage(w, http.StatusBadRequest, "Topic already exists")
		return
	}
	if err != nil {
		h.Log.ErrorContext(r.Context(), "failed to create topic", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, "Failed to create topic")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Topic created successfully",
		"topic":   name,
	})
}

func (h *Handler) ListTopicsHandler(w http.ResponseWriter, r *http.Request) {
	topics, err := h.Store.GetTopics(r.Context(), Username(r.Context()))
	if err != nil {
		h.Log.ErrorContext(r.Context(), "failed to list topics", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, "Failed to list topics")
		return
	}

	resp := make([]topicResponse, 0, len(topics))
	for _, t := range topics {
		resp = append(resp, topicResponse{Name: t.Name})
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteTopicHandler removes a topic owned by the caller. Topics of other
// accounts look the same as missing ones.
func (h *Handler) DeleteTopicHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	err := h.Store.DeleteTopic(r.Context(), name, Username(r.Context()))
	if errors.Is(err, store.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Topic not found")
		return
	}
	if err != nil {
		h.Log.ErrorContext(r.Context(), "failed to delete topic", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, "Failed to delete topic")
		return
	}

	writeMessage(w, http.StatusOK, "Topic deleted successfully")
}
