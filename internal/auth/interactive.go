package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/promptstudio/promptstudio/internal/failure"
	"github.com/promptstudio/promptstudio/internal/session"
)

const (
	// stateBytes is the entropy of the CSRF correlation value.
	stateBytes = 32

	// defaultTokenLifetime applies when the token response has no expires_in.
	defaultTokenLifetime = time.Hour
)

// InteractiveConfig configures the authorization-code login.
type InteractiveConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Endpoints    Endpoints
}

// Interactive runs the standalone-browser authorization-code login.
type Interactive struct {
	oauth      *oauth2.Config
	identity   IdentityFetcher
	httpClient *http.Client
	now        func() time.Time
}

// NewInteractive creates the interactive mode. httpClient is used for the
// token exchange and should carry a bounded timeout.
func NewInteractive(cfg InteractiveConfig, identity IdentityFetcher, httpClient *http.Client) *Interactive {
	return &Interactive{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.Endpoints.AuthorizeURL,
				TokenURL: cfg.Endpoints.TokenURL,
				// Client id and secret go base64-encoded in the
				// Authorization header.
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		identity:   identity,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// Begin generates a fresh correlation state and returns it together with the
// provider authorize URL the client must be redirected to. The caller stores
// state as the session's pending OAuthState.
func (m *Interactive) Begin() (state, redirectURL string, err error) {
	state, err = newState()
	if err != nil {
		return "", "", failure.Wrap(err, failure.InternalError, "could not start login")
	}
	return state, m.oauth.AuthCodeURL(state), nil
}

// Callback carries the query parameters of the provider redirect.
type Callback struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// Complete validates the provider redirect against pendingState, exchanges
// the code for a token and returns the new session record. The returned
// record never carries a pending state.
//
// A missing pendingState is tolerated (some embedded and proxied flows lose
// it), but a present one that differs from the returned state is fatal.
func (m *Interactive) Complete(ctx context.Context, cb Callback, pendingState string) (*session.Record, error) {
	if cb.Error != "" {
		desc := cb.ErrorDescription
		if desc == "" {
			desc = "Unknown error"
		}
		return nil, failure.New(failure.ProviderError, "Login failed: "+desc)
	}

	if pendingState != "" && subtle.ConstantTimeCompare([]byte(cb.State), []byte(pendingState)) != 1 {
		return nil, failure.New(failure.StateMismatch, "Invalid state parameter. Please try again.")
	}

	if cb.Code == "" {
		return nil, failure.New(failure.MissingCode, "No authorization code received.")
	}

	token, err := m.oauth.Exchange(context.WithValue(ctx, oauth2.HTTPClient, m.httpClient), cb.Code)
	if err != nil {
		return nil, exchangeFailure(err)
	}

	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		expiresAt = m.now().Add(defaultTokenLifetime)
	}

	rec := &session.Record{
		AccessToken:    token.AccessToken,
		TokenExpiresAt: expiresAt,
		RefreshToken:   token.RefreshToken,
	}

	user, err := m.identity.Me(ctx, token.AccessToken)
	var rejected *RejectedError
	switch {
	case errors.As(err, &rejected):
		// The session is still usable; identity is informational.
		slog.Warn("interactive login: identity lookup rejected", "status", rejected.Status)
	case err != nil:
		return nil, failure.Wrap(err, failure.InternalError, "Authentication error: could not reach the platform")
	default:
		rec.User = user
	}

	return rec, nil
}

// exchangeFailure converts an oauth2 exchange error into TokenExchangeFailed,
// keeping the provider's response body as detail when there is one.
func exchangeFailure(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		detail := strings.TrimSpace(string(re.Body))
		if detail == "" && re.Response != nil {
			detail = re.Response.Status
		}
		return &failure.Error{
			Reason: failure.TokenExchangeFailed,
			Detail: "Token exchange failed: " + detail,
			Err:    err,
		}
	}
	return &failure.Error{
		Reason: failure.TokenExchangeFailed,
		Detail: "Token exchange failed",
		Err:    fmt.Errorf("exchanging authorization code: %w", err),
	}
}

// newState returns a URL-safe random correlation value.
func newState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
