package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/petermazzocco/go-order-wizard/internal/profiles"
)

func (h *Handler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}

	profile, found, err := h.profiles.Load(r.Context(), u.ID)
	if err != nil {
		h.log.Error("profile load failed", zap.String("user", u.ID), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Error loading profile")
		return
	}
	if !found {
		writeMessage(w, http.StatusNotFound, "Profile not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type updateProfileRequest struct {
	FullName             string `json:"full_name"`
	PhoneNumber          string `json:"phone_number"`
	Address              string `json:"address"`
	DeliveryInstructions string `json:"delivery_instructions"`
}

// UpdateProfileHandler upserts the profile. Blank fields keep their stored
// values.
func (h *Handler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	fields := profiles.FieldsFrom(req.FullName, req.PhoneNumber, req.Address, req.DeliveryInstructions)
	profile, err := h.profiles.Save(r.Context(), u.ID, fields)
	if err != nil {
		h.log.Error("profile save failed", zap.String("user", u.ID), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Error saving profile")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": profile})
}
