package auth

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// fakePlatform serves the token and identity endpoints of the platform.
type fakePlatform struct {
	t *testing.T

	tokenStatus  int
	tokenBody    string
	meStatus     int
	validToken   string
	tokenCalls   atomic.Int32
	meCalls      atomic.Int32
	lastGrant    string
	lastCode     string
	lastRedirect string
	lastAuth     string
}

func newFakePlatform(t *testing.T) (*fakePlatform, *httptest.Server) {
	fp := &fakePlatform{
		t:           t,
		tokenStatus: http.StatusOK,
		tokenBody:   `{"access_token":"access-1","token_type":"bearer","expires_in":7200,"refresh_token":"refresh-1"}`,
		meStatus:    http.StatusOK,
		validToken:  "access-1",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		fp.tokenCalls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("token endpoint: parse form: %v", err)
		}
		fp.lastGrant = r.PostForm.Get("grant_type")
		fp.lastCode = r.PostForm.Get("code")
		fp.lastRedirect = r.PostForm.Get("redirect_uri")
		fp.lastAuth = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(fp.tokenStatus)
		w.Write([]byte(fp.tokenBody))
	})
	mux.HandleFunc("/api/v2/users/me", func(w http.ResponseWriter, r *http.Request) {
		fp.meCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+fp.validToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if fp.meStatus != http.StatusOK {
			w.WriteHeader(fp.meStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"id":       "user-1",
			"name":     "Ada Lovelace",
			"email":    "ada@example.com",
			"username": "ada",
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fp, srv
}

func testEndpoints(srv *httptest.Server) Endpoints {
	return Endpoints{
		AuthorizeURL: srv.URL + "/oauth/authorize",
		TokenURL:     srv.URL + "/oauth/token",
		APIBaseURL:   srv.URL,
	}
}

func newTestInteractive(srv *httptest.Server) *Interactive {
	httpClient := &http.Client{Timeout: 5 * time.Second}
	return NewInteractive(InteractiveConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:5001/oauth/callback",
		Scopes:       []string{"architect", "users:readonly"},
		Endpoints:    testEndpoints(srv),
	}, NewIdentityClient(httpClient, srv.URL), httpClient)
}

func basicAuth(id, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(id+":"+secret))
}
