package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/promptstudio/promptstudio/internal/failure"
	"github.com/promptstudio/promptstudio/internal/session"
)

// embeddedTokenLifetime is the fixed window granted to a handed-off token.
// The hosting frame refreshes its own token and hands it off again.
const embeddedTokenLifetime = time.Hour

// Embedded accepts a bearer token handed off by the platform frame hosting
// the studio. The identity check is its only trust anchor.
type Embedded struct {
	identity IdentityFetcher
	now      func() time.Time
}

// NewEmbedded creates the embedded hand-off mode.
func NewEmbedded(identity IdentityFetcher) *Embedded {
	return &Embedded{identity: identity, now: time.Now}
}

// Authenticate validates accessToken against the identity endpoint and
// returns a record flagged as embedded.
func (m *Embedded) Authenticate(ctx context.Context, accessToken string) (*session.Record, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, failure.New(failure.MissingToken, "No access token provided")
	}

	user, err := m.identity.Me(ctx, accessToken)
	var rejected *RejectedError
	switch {
	case errors.As(err, &rejected):
		return nil, &failure.Error{
			Reason: failure.InvalidToken,
			Detail: fmt.Sprintf("Token validation failed: %d", rejected.Status),
			Err:    err,
		}
	case err != nil:
		return nil, failure.Wrap(err, failure.InternalError, "Token validation failed: platform unreachable")
	}

	return &session.Record{
		AccessToken:    accessToken,
		TokenExpiresAt: m.now().Add(embeddedTokenLifetime),
		User:           user,
		EmbeddedMode:   true,
	}, nil
}
