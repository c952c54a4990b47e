package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/petermazzocco/go-order-wizard/models"
)

const (
	defaultGreetingName = "Valued Customer"
	confirmationMessage = "Your order has been placed! You should receive a text message within the next 10 minutes with delivery info. We were happy to serve you!"
)

// ListSubmissionsHandler returns the user's order history, newest first.
func (h *Handler) ListSubmissionsHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}

	orders, err := h.submissions.ListForUser(r.Context(), u.ID)
	if err != nil {
		h.log.Error("listing submissions", zap.String("user", u.ID), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Error loading orders")
		return
	}
	if orders == nil {
		orders = []models.OrderSubmission{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Fetched orders successfully",
		"submissions": orders,
	})
}

// ConfirmationHandler renders the thank-you view for the signed-in user.
func (h *Handler) ConfirmationHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}

	name := defaultGreetingName
	profile, found, err := h.profiles.Load(r.Context(), u.ID)
	if err != nil {
		h.log.Warn("confirmation profile lookup", zap.String("user", u.ID), zap.Error(err))
	}
	if found && profile.FullName != nil && *profile.FullName != "" {
		name = *profile.FullName
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":    name,
		"title":   "Thank You!",
		"message": confirmationMessage,
		"user_id": u.ID,
	})
}
