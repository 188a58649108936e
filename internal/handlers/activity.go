package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const sseHeartbeat = 30 * time.Second

// ActivityHandler lists the caller's most recent sends.
func (h *Handler) ActivityHandler(w http.ResponseWriter, r *http.Request) {
	if h.Activity == nil {
		writeMessage(w, http.StatusServiceUnavailable, "Activity feed is not enabled")
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeMessage(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	events, err := h.Activity.RecentSends(r.Context(), Username(r.Context()), limit)
	if err != nil {
		h.Log.ErrorContext(r.Context(), "failed to load activity", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, "Failed to load activity")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// EventsHandler streams the caller's send events as server-sent events.
func (h *Handler) EventsHandler(w http.ResponseWriter, r *http.Request) {
	if h.Activity == nil {
		writeMessage(w, http.StatusServiceUnavailable, "Activity feed is not enabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeMessage(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	pubsub := h.Activity.Subscribe(r.Context(), Username(r.Context()))
	defer pubsub.Close()

	ch := pubsub.Channel()
	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	fmt.Fprint(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: send\ndata: %s\n\n", msg.Payload)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
