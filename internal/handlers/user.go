package handlers

import (
	"errors"
	"net/http"

	"github.com/markbates/goth/gothic"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/petermazzocco/go-order-wizard/internal/auth"
	"github.com/petermazzocco/go-order-wizard/internal/profiles"
	"github.com/petermazzocco/go-order-wizard/models"
)

// UserLoginHandler finishes the OAuth flow. A first sign-in creates the
// user and seeds their profile with the provider's display name.
func (h *Handler) UserLoginHandler(w http.ResponseWriter, r *http.Request) {
	gothUser, err := gothic.CompleteUserAuth(w, r)
	if err != nil {
		h.log.Warn("oauth callback failed", zap.Error(err))
		http.Error(w, "Authentication failed", http.StatusUnauthorized)
		return
	}

	dbUser, created, err := h.findOrCreateUser(r, gothUser.Email, gothUser.Name)
	if err != nil {
		h.log.Error("user lookup failed", zap.String("email", gothUser.Email), zap.Error(err))
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	if created {
		if _, err := h.profiles.Save(r.Context(), dbUser.ID, profiles.FieldsFrom(gothUser.Name, "", "", "")); err != nil {
			h.log.Warn("profile not created at sign-up", zap.String("user", dbUser.ID), zap.Error(err))
		}
	}

	if err := auth.SignIn(w, r, auth.User{ID: dbUser.ID, Email: dbUser.Email}); err != nil {
		h.log.Error("failed to save session", zap.Error(err))
		http.Error(w, "Failed to save session", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

func (h *Handler) findOrCreateUser(r *http.Request, email, name string) (*models.User, bool, error) {
	db := h.db.WithContext(r.Context())

	var dbUser models.User
	err := db.Where("email = ?", email).First(&dbUser).Error
	if err == nil {
		return &dbUser, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	dbUser = models.User{Name: name, Email: email}
	if err := db.Create(&dbUser).Error; err != nil {
		return nil, false, err
	}
	return &dbUser, true, nil
}

// BeginAuthHandler starts the OAuth flow unless the user is already signed in
// with the provider.
func (h *Handler) BeginAuthHandler(w http.ResponseWriter, r *http.Request) {
	if gothUser, err := gothic.CompleteUserAuth(w, r); err == nil {
		writeMessage(w, http.StatusOK, "User already authenticated: "+gothUser.Name)
		return
	}
	gothic.BeginAuthHandler(w, r)
}

func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r.Context()); ok {
		_ = h.wizards.Discard(u.ID)
	}
	if err := gothic.Logout(w, r); err != nil {
		h.log.Debug("gothic logout", zap.Error(err))
	}
	if err := auth.SignOut(w, r); err != nil {
		h.log.Warn("failed to clear session", zap.Error(err))
	}
	writeMessage(w, http.StatusOK, "Signed out")
}

// GetUserHandler returns the signed-in identity.
func (h *Handler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}

	var user models.User
	err := h.db.WithContext(r.Context()).Where("id = ?", u.ID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		h.log.Error("user lookup failed", zap.String("user", u.ID), zap.Error(err))
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
