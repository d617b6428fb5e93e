// Package session holds the per-client authentication record and the stores
// that keep it between requests.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

// idBytes is the entropy of a session identifier.
const idBytes = 32

// Identity is the platform user behind a session. It is informational only and
// never used for authorization decisions.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	Email       string `json:"email"`
	Username    string `json:"username"`
}

// Record is the authentication state attached to one client session.
type Record struct {
	AccessToken    string    `json:"access_token,omitempty"`
	TokenExpiresAt time.Time `json:"token_expires_at,omitempty"`
	RefreshToken   string    `json:"refresh_token,omitempty"`
	User           *Identity `json:"user,omitempty"`
	IsAdminLocal   bool      `json:"is_admin_local,omitempty"`
	EmbeddedMode   bool      `json:"embedded_mode,omitempty"`

	// OAuthState is the pending CSRF correlation value of an interactive
	// login. It is cleared once the callback consumes it.
	OAuthState string `json:"oauth_state,omitempty"`
}

// Authenticated reports whether the record carries a usable access token.
func (r *Record) Authenticated() bool {
	return r != nil && r.AccessToken != ""
}

// Expired reports whether the access token expiry has passed at now.
// A zero expiry never expires.
func (r *Record) Expired(now time.Time) bool {
	if r == nil || r.TokenExpiresAt.IsZero() {
		return false
	}
	return now.After(r.TokenExpiresAt)
}

// Clone returns a deep copy so callers never share a stored record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.User != nil {
		u := *r.User
		c.User = &u
	}
	return &c
}

// Store keeps one Record per opaque session identifier. Put replaces the
// whole record atomically; there is no field-level merging.
type Store interface {
	// Get returns the record for id, or nil if there is none.
	Get(ctx context.Context, id string) (*Record, error)
	// Put stores rec under id, replacing any previous record.
	Put(ctx context.Context, id string, rec *Record) error
	// Delete removes the record for id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
}

// NewID returns a URL-safe random session identifier.
func NewID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
