package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"webping/internal/models"
)

// Setup2FAHandler generates a new TOTP secret and QR code. Nothing is stored
// until the secret is confirmed through Enable2FAHandler.
func (h *Handler) Setup2FAHandler(w http.ResponseWriter, r *http.Request) {
	key, err := models.NewTOTPKey(Username(r.Context()))
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Failed to generate secret")
		return
	}

	qrCode, err := models.TOTPQRCode(key)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"secret": key.Secret(),
		"qrCode": qrCode,
		"url":    key.URL(),
	})
}

// Enable2FAHandler verifies a code against the proposed secret and enables 2FA
func (h *Handler) Enable2FAHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Secret string `json:"secret"`
		Code   string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if !models.ValidTOTP(req.Secret, req.Code, time.Now()) {
		writeMessage(w, http.StatusBadRequest, "Invalid verification code")
		return
	}

	if err := h.Store.UpdateUser2FA(r.Context(), Username(r.Context()), req.Secret, true); err != nil {
		h.Log.ErrorContext(r.Context(), "failed to enable 2fa", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, "Failed to enable 2FA")
		return
	}

	writeMessage(w, http.StatusOK, "2FA enabled successfully")
}

// Disable2FAHandler turns 2FA off. A current code is required.
func (h *Handler) Disable2FAHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.Store.GetUser(r.Context(), Username(r.Context()))
	if err != nil {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	if !user.TOTPEnabled {
		writeMessage(w, http.StatusBadRequest, "2FA is not enabled")
		return
	}
	if !models.ValidTOTP(user.TOTPSecret, req.Code, time.Now()) {
		writeMessage(w, http.StatusBadRequest, "Invalid verification code")
		return
	}

	if err := h.Store.UpdateUser2FA(r.Context(), user.Username, "", false); err != nil {
		h.Log.ErrorContext(r.Context(), "failed to disable 2fa", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, "Failed to disable 2FA")
		return
	}

	writeMessage(w, http.StatusOK, "2FA disabled successfully")
}
