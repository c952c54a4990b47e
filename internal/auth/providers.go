package auth

import (
	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
)

// Setup registers the OAuth providers and points gothic at store.
func Setup(store sessions.Store, googleKey, googleSecret, callbackURL string) {
	goth.UseProviders(google.New(googleKey, googleSecret, callbackURL, "email", "profile"))
	gothic.Store = store
}
