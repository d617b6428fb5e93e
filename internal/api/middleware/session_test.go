package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/promptstudio/promptstudio/internal/auth"
	"github.com/promptstudio/promptstudio/internal/session"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// cookieFor returns the session cookie a client would present for id.
func cookieFor(t *testing.T, codec *session.CookieCodec, id string) *http.Cookie {
	t.Helper()
	rr := httptest.NewRecorder()
	if err := codec.Write(rr, id); err != nil {
		t.Fatalf("write cookie: %v", err)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	return cookies[0]
}

type failingStore struct{ session.Store }

func (failingStore) Get(context.Context, string) (*session.Record, error) {
	return nil, errors.New("store unavailable")
}

func captureSession(got **CurrentSession) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestLoadSessionNoCookie(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	codec := session.NewCookieCodec(testSecret, time.Hour, false)

	var got *CurrentSession
	handler := LoadSession(store, codec)(captureSession(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got == nil || got.ID != "" || got.Record != nil {
		t.Fatalf("expected empty session, got %+v", got)
	}
}

func TestLoadSessionWithRecord(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	codec := session.NewCookieCodec(testSecret, time.Hour, false)
	store.Put(context.Background(), "sid-1", &session.Record{AccessToken: "tok"})

	var got *CurrentSession
	handler := LoadSession(store, codec)(captureSession(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookieFor(t, codec, "sid-1"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got.ID != "sid-1" {
		t.Fatalf("ID = %q, want sid-1", got.ID)
	}
	if got.Record == nil || got.Record.AccessToken != "tok" {
		t.Fatalf("unexpected record %+v", got.Record)
	}
}

func TestLoadSessionForeignCookieIgnored(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	store.Put(context.Background(), "sid-1", &session.Record{AccessToken: "tok"})
	codec := session.NewCookieCodec(testSecret, time.Hour, false)
	forger := session.NewCookieCodec([]byte("another-secret-another-secret!!!"), time.Hour, false)

	var got *CurrentSession
	handler := LoadSession(store, codec)(captureSession(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookieFor(t, forger, "sid-1"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got.ID != "" || got.Record != nil {
		t.Fatalf("forged cookie must not resolve a session, got %+v", got)
	}
}

func TestLoadSessionStoreError(t *testing.T) {
	codec := session.NewCookieCodec(testSecret, time.Hour, false)
	called := false
	handler := LoadSession(failingStore{}, codec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookieFor(t, codec, "sid-1"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if called {
		t.Fatal("next handler must not run when the store fails")
	}
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestRequireSession(t *testing.T) {
	gate := auth.NewGate(false)

	tests := []struct {
		name       string
		path       string
		rec        *session.Record
		wantStatus int
		wantLoc    string
	}{
		{"page without session redirects", "/", nil, http.StatusFound, "/login"},
		{"staged file without session redirects", "/uploads/a.wav", nil, http.StatusFound, "/login"},
		{"api without session is 401", "/api/export", nil, http.StatusUnauthorized, ""},
		{"empty token is denied", "/api/tts", &session.Record{User: &session.Identity{ID: "u"}}, http.StatusUnauthorized, ""},
		{"token is allowed", "/api/tts", &session.Record{AccessToken: "tok"}, http.StatusOK, ""},
		{"page with token is allowed", "/", &session.Record{AccessToken: "tok"}, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireSession(gate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			ctx := context.WithValue(req.Context(), sessionKey, &CurrentSession{ID: "sid", Record: tt.rec})
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req.WithContext(ctx))

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rr.Code)
			}
			if tt.wantLoc != "" && rr.Header().Get("Location") != tt.wantLoc {
				t.Fatalf("Location = %q, want %q", rr.Header().Get("Location"), tt.wantLoc)
			}
			if rr.Code == http.StatusUnauthorized {
				var resp map[string]any
				if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to parse response: %v", err)
				}
				if resp["success"] != false || resp["error"] != "Not authenticated" {
					t.Fatalf("unexpected body %v", resp)
				}
			}
		})
	}
}

func TestSessionFromContextNeverNil(t *testing.T) {
	if SessionFromContext(context.Background()) == nil {
		t.Fatal("expected empty session, got nil")
	}
}
