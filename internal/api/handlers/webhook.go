package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ametsa/bachat-core/internal/aggregator"
	"github.com/ametsa/bachat-core/internal/api/middleware"
)

// WebhookHandler receives aggregator notifications. Delivery is
// at-least-once, so the handler must stay safe under redelivery; the sync
// service's dedupe gate takes care of that.
type WebhookHandler struct {
	svc SyncService
	log zerolog.Logger
}

func NewWebhookHandler(svc SyncService, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{svc: svc, log: log}
}

// Receive handles POST /api/webhooks/aggregator.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var payload aggregator.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid notification body")
		return
	}

	if err := h.svc.HandleNotification(r.Context(), &payload); err != nil {
		h.log.Error().
			Err(err).
			Str("type", payload.Type).
			Str("consent_id", payload.ConsentID).
			Str("session_id", payload.SessionID).
			Msg("webhook handling failed")
		// A 5xx invites redelivery, which the dedupe gate absorbs.
		middleware.WriteError(w, http.StatusInternalServerError, "notification handling failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}
