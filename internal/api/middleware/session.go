package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/promptstudio/promptstudio/internal/auth"
	"github.com/promptstudio/promptstudio/internal/session"
)

type contextKey string

// sessionKey is the context key for the request's session.
const sessionKey contextKey = "session"

// CurrentSession is the session attached to a request. ID is empty when the
// client presented no valid cookie; Record is nil when nothing is stored.
type CurrentSession struct {
	ID     string
	Record *session.Record
}

// Authorizer is the access gate consulted for protected routes.
type Authorizer interface {
	Authorize(rec *session.Record) auth.Decision
}

// LoadSession returns middleware that resolves the session cookie to its
// stored record and attaches both to the request context. A missing or
// tampered cookie is not an error; the request simply has no session.
func LoadSession(store session.Store, cookies *session.CookieCodec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cur := &CurrentSession{}

			if id, ok := cookies.Read(r); ok {
				rec, err := store.Get(r.Context(), id)
				if err != nil {
					slog.Error("load session: failed to read store", "error", err)
					writeJSONError(w, http.StatusInternalServerError, "internal server error")
					return
				}
				cur.ID = id
				cur.Record = rec
			}

			ctx := context.WithValue(r.Context(), sessionKey, cur)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession returns middleware that consults gate for every request.
// Denied API requests get a 401 JSON error; denied page requests are
// redirected to the login page.
func RequireSession(gate Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := gate.Authorize(SessionFromContext(r.Context()).Record)
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			if strings.HasPrefix(r.URL.Path, "/api/") {
				writeJSONError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}
			http.Redirect(w, r, d.RedirectTo, http.StatusFound)
		})
	}
}

// SessionFromContext returns the session attached by LoadSession. It never
// returns nil.
func SessionFromContext(ctx context.Context) *CurrentSession {
	if cur, ok := ctx.Value(sessionKey).(*CurrentSession); ok {
		return cur
	}
	return &CurrentSession{}
}
