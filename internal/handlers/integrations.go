package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// WebhookTester sends a one-off message to the order channel.
type WebhookTester interface {
	SendTest(ctx context.Context, data map[string]any) error
}

// WebhookTestHandler relays the posted JSON object to the order channel so
// the webhook can be checked without placing an order.
func (h *Handler) WebhookTestHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if h.webhook != nil {
		if err := h.webhook.SendTest(r.Context(), data); err != nil {
			h.log.Warn("webhook test failed", zap.Error(err))
			writeMessage(w, http.StatusInternalServerError, "Failed to process webhook")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Webhook processed successfully",
	})
}

// MapsConfigHandler hands the address-autocomplete key to signed-in clients.
func (h *Handler) MapsConfigHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	if h.mapsAPIKey == "" {
		h.log.Error("google maps api key not configured")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Google Maps API key not configured",
			"success": false,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"apiKey":  h.mapsAPIKey,
		"success": true,
	})
}
