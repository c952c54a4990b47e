package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/petermazzocco/go-order-wizard/internal/auth"
	"github.com/petermazzocco/go-order-wizard/internal/wizard"
)

// currentWizard returns the user's wizard, starting one pre-filled from the
// stored profile if none is in progress.
func (h *Handler) currentWizard(r *http.Request, u auth.User) *wizard.Wizard {
	wiz, created := h.wizards.GetOrCreate(u.ID)
	if !created {
		return wiz
	}

	profile, found, err := h.profiles.Load(r.Context(), u.ID)
	if err != nil {
		h.log.Warn("profile prefill failed", zap.String("user", u.ID), zap.Error(err))
		return wiz
	}
	if found {
		wiz.Prefill(profile)
	}
	return wiz
}

func (h *Handler) GetWizardHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.currentWizard(r, u).Snapshot())
}

// DiscardWizardHandler throws away the order in progress.
func (h *Handler) DiscardWizardHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.wizards.Discard(u.ID); err != nil {
		h.writeWizardError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setFieldRequest struct {
	Value string `json:"value"`
}

func (h *Handler) SetFieldHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}

	step, err := wizard.ParseStep(chi.URLParam(r, "step"))
	if err != nil {
		writeMessage(w, http.StatusNotFound, err.Error())
		return
	}

	var req setFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	wiz := h.currentWizard(r, u)
	if err := wiz.Set(step, req.Value); err != nil {
		h.writeWizardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wiz.Snapshot())
}

func (h *Handler) NextStepHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}

	wiz := h.currentWizard(r, u)
	if err := wiz.Next(); err != nil {
		h.writeWizardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wiz.Snapshot())
}

func (h *Handler) PrevStepHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}

	wiz := h.currentWizard(r, u)
	wiz.Back()
	writeJSON(w, http.StatusOK, wiz.Snapshot())
}

// SubmitHandler runs the submit pipeline. The response is sent as soon as
// the order is recorded; profile save and notification continue afterwards.
// A client disconnect does not stop a submit once it has begun.
func (h *Handler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}

	wiz, finish, err := h.wizards.BeginSubmit(u.ID)
	if err != nil {
		h.writeWizardError(w, err)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	order, err := h.pipeline.Submit(ctx, wizard.Identity{ID: u.ID, Email: u.Email}, wiz)
	finish(err == nil)
	if err != nil {
		h.writeWizardError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":    "Order submitted successfully!",
		"submission": order,
		"redirect":   ConfirmationPath + "?userId=" + url.QueryEscape(u.ID),
	})
}
