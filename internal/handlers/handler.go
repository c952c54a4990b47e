package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/petermazzocco/go-order-wizard/internal/auth"
	"github.com/petermazzocco/go-order-wizard/internal/profiles"
	"github.com/petermazzocco/go-order-wizard/internal/submissions"
	"github.com/petermazzocco/go-order-wizard/internal/wizard"
)

// ConfirmationPath is where a successful submit sends the user.
const ConfirmationPath = "/thank-you"

type Handler struct {
	db          *gorm.DB
	profiles    *profiles.Store
	submissions *submissions.Recorder
	wizards     *wizard.Registry
	pipeline    *wizard.Pipeline
	webhook     WebhookTester
	log         *zap.Logger
	maxUpload   int64
	mapsAPIKey  string
}

type Options struct {
	DB             *gorm.DB
	Profiles       *profiles.Store
	Submissions    *submissions.Recorder
	Wizards        *wizard.Registry
	Pipeline       *wizard.Pipeline
	Webhook        WebhookTester
	Log            *zap.Logger
	MaxUploadBytes int64
	MapsAPIKey     string
}

func New(o Options) *Handler {
	maxUpload := o.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	return &Handler{
		db:          o.DB,
		profiles:    o.Profiles,
		submissions: o.Submissions,
		wizards:     o.Wizards,
		pipeline:    o.Pipeline,
		webhook:     o.Webhook,
		log:         o.Log,
		maxUpload:   maxUpload,
		mapsAPIKey:  o.MapsAPIKey,
	}
}

// APIRoutes registers the authenticated API. The caller applies the auth
// middleware.
func (h *Handler) APIRoutes(r chi.Router) {
	r.Get("/user", h.GetUserHandler)

	r.Get("/profile", h.GetProfileHandler)
	r.Put("/profile", h.UpdateProfileHandler)

	r.Route("/wizard", func(r chi.Router) {
		r.Get("/", h.GetWizardHandler)
		r.Delete("/", h.DiscardWizardHandler)
		r.Put("/fields/{step}", h.SetFieldHandler)
		r.Post("/next", h.NextStepHandler)
		r.Post("/back", h.PrevStepHandler)
		r.Post("/images", h.AddImagesHandler)
		r.Delete("/images/{index}", h.RemoveImageHandler)
		r.Post("/submit", h.SubmitHandler)
	})

	r.Get("/submissions", h.ListSubmissionsHandler)
	r.Get("/confirmation", h.ConfirmationHandler)

	r.Post("/notify/test", h.WebhookTestHandler)
	r.Get("/maps-config", h.MapsConfigHandler)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	key := "message"
	if status >= 400 {
		key = "error"
	}
	writeJSON(w, status, map[string]any{key: msg})
}

// writeWizardError maps pipeline and state machine errors to responses.
// Store-level detail never reaches the client.
func (h *Handler) writeWizardError(w http.ResponseWriter, err error) {
	var (
		validation *wizard.ValidationError
		imageErr   *wizard.ImageError
		uploadErr  *wizard.UploadError
		persistErr *wizard.PersistError
		limitErr   *wizard.LimitError
	)

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": validation.Message,
			"step":  validation.Step.String(),
		})
	case errors.Is(err, wizard.ErrTooFewImages),
		errors.Is(err, wizard.ErrIncompleteStep),
		errors.Is(err, wizard.ErrNotOnLastStep):
		writeMessage(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, wizard.ErrNotATextStep):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, wizard.ErrNoWizard), errors.Is(err, wizard.ErrImageIndex):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, wizard.ErrSubmitInProgress):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.As(err, &limitErr):
		writeMessage(w, http.StatusRequestEntityTooLarge, limitErr.Error())
	case errors.As(err, &imageErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": imageErr.Error(),
			"file":  imageErr.Filename,
		})
	case errors.As(err, &uploadErr):
		h.log.Warn("upload failed", zap.String("file", uploadErr.Filename), zap.Error(uploadErr.Err))
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error": "Upload failed for " + uploadErr.Filename,
			"file":  uploadErr.Filename,
		})
	case errors.As(err, &persistErr):
		writeMessage(w, http.StatusInternalServerError, persistErr.Error())
	default:
		h.log.Error("request failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "An error occurred while submitting the order")
	}
}

// requireUser writes 401 and returns false when no one is signed in.
func requireUser(w http.ResponseWriter, r *http.Request) (auth.User, bool) {
	u, ok := auth.CurrentUser(r.Context())
	if !ok {
		http.Error(w, "User ID not found in context", http.StatusUnauthorized)
		return auth.User{}, false
	}
	return u, true
}
