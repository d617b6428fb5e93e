package auth

import (
	"crypto/subtle"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/promptstudio/promptstudio/internal/failure"
	"github.com/promptstudio/promptstudio/internal/session"
)

const (
	// AdminSessionToken is the sentinel access token of a local admin session.
	// It is not a platform credential.
	AdminSessionToken = "admin_local_session"

	adminTokenLifetime = 24 * time.Hour
)

// adminIdentity is the synthetic user of a local admin session.
var adminIdentity = session.Identity{
	ID:          "local_admin",
	DisplayName: "Local Admin",
	Email:       "admin@local",
	Username:    "admin",
}

// Admin is the local fallback login against a configured shared secret. The
// secret may be given in plain text or as a bcrypt hash.
type Admin struct {
	secret string
	now    func() time.Time
}

// NewAdmin creates the admin mode. An empty secret disables it.
func NewAdmin(secret string) *Admin {
	return &Admin{secret: secret, now: time.Now}
}

// Configured reports whether a shared secret is set.
func (m *Admin) Configured() bool {
	return m.secret != ""
}

// Authenticate compares password with the shared secret. No network call is
// made.
func (m *Admin) Authenticate(password string) (*session.Record, error) {
	if !m.Configured() {
		return nil, failure.New(failure.NotConfigured, "Admin login not configured")
	}

	if !m.matches(password) {
		return nil, failure.New(failure.InvalidCredential, "Invalid password")
	}

	user := adminIdentity
	return &session.Record{
		AccessToken:    AdminSessionToken,
		TokenExpiresAt: m.now().Add(adminTokenLifetime),
		User:           &user,
		IsAdminLocal:   true,
	}, nil
}

func (m *Admin) matches(password string) bool {
	if isBcryptHash(m.secret) {
		return bcrypt.CompareHashAndPassword([]byte(m.secret), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(m.secret)) == 1
}

func isBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}
