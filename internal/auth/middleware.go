package auth

import (
	"context"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/markbates/goth/gothic"
)

// SessionName is the app's own cookie. It must differ from
// gothic.SessionName: gothic expires its session at the end of every
// CompleteUserAuth.
const (
	SessionName     = "order_session"
	sessionUserID   = "user_id"
	sessionUserMail = "user_email"
)

// User is the signed-in identity carried on the request context.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type ctxKey struct{}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// CurrentUser returns the user placed on ctx by UserMiddleware.
func CurrentUser(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKey{}).(User)
	return u, ok && u.ID != ""
}

func UserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := gothic.Store.Get(r, SessionName)
		if err != nil {
			http.Error(w, "Not Authorized", http.StatusUnauthorized)
			return
		}

		userID, _ := session.Values[sessionUserID].(string)
		if userID == "" {
			http.Error(w, "Not Authorized", http.StatusUnauthorized)
			return
		}
		email, _ := session.Values[sessionUserMail].(string)

		ctx := WithUser(r.Context(), User{ID: userID, Email: email})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SignIn stores the user in the session cookie.
func SignIn(w http.ResponseWriter, r *http.Request, u User) error {
	session, err := gothic.Store.Get(r, SessionName)
	if err != nil && session == nil {
		return err
	}
	session.Values[sessionUserID] = u.ID
	session.Values[sessionUserMail] = u.Email
	return session.Save(r, w)
}

// SignOut expires the session cookie.
func SignOut(w http.ResponseWriter, r *http.Request) error {
	session, err := gothic.Store.Get(r, SessionName)
	if err != nil && session == nil {
		return err
	}
	delete(session.Values, sessionUserID)
	delete(session.Values, sessionUserMail)
	opts := *session.Options
	opts.MaxAge = -1
	session.Options = &opts
	return session.Save(r, w)
}

// NewCookieStore builds the session store shared by gothic and this package.
func NewCookieStore(secret string, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.MaxAge(86400 * 30)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	return store
}
