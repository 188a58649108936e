package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes builds the HTTP API. When staticDir is set, the web UI is served
// from it for every path no route claims.
func (h *Handler) Routes(staticDir string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.HealthHandler)
	r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())

	// Publishing is open: knowing the topic name is enough.
	r.Post("/send/{topic}", h.SendHandler)
	r.Post("/email/{topic}", h.EmailHandler)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.RegisterHandler)
		r.Post("/login", h.LoginHandler)
		r.Post("/logout", h.LogoutHandler)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Get("/me", h.MeHandler)
			r.Post("/change-password", h.ChangePasswordHandler)
			r.Put("/email", h.UpdateEmailHandler)
			r.Post("/2fa/setup", h.Setup2FAHandler)
			r.Post("/2fa/enable", h.Enable2FAHandler)
			r.Post("/2fa/disable", h.Disable2FAHandler)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)

		r.Get("/vapid-public-key", h.VAPIDKeyHandler)

		r.Post("/topics", h.CreateTopicHandler)
		r.Get("/topics", h.ListTopicsHandler)
		r.Delete("/topics/{name}", h.DeleteTopicHandler)

		r.Post("/push-endpoints", h.RegisterPushEndpointHandler)
		r.Get("/push-endpoints", h.ListPushEndpointsHandler)
		r.Put("/push-endpoints/{id}", h.RenamePushEndpointHandler)
		r.Delete("/push-endpoints/{id}", h.DeletePushEndpointHandler)

		r.Get("/activity", h.ActivityHandler)
		r.Get("/events", h.EventsHandler)
	})

	if staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}

	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.Log.InfoContext(r.Context(), "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
