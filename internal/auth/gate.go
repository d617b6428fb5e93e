package auth

import (
	"time"

	"github.com/promptstudio/promptstudio/internal/session"
)

// LoginPath is where denied requests are sent.
const LoginPath = "/login"

// Decision is the gate's verdict on a session.
type Decision struct {
	Allowed bool
	// RedirectTo is set when the request is denied.
	RedirectTo string
}

// Gate decides whether a session may use protected operations. It only reads
// the record and never mutates it.
type Gate struct {
	// EnforceExpiry additionally denies records whose token expiry has
	// passed. When false (the default) an expired token is only noticed when
	// the platform rejects it downstream.
	EnforceExpiry bool

	now func() time.Time
}

// NewGate creates a gate.
func NewGate(enforceExpiry bool) *Gate {
	return &Gate{EnforceExpiry: enforceExpiry, now: time.Now}
}

// Authorize allows rec iff it exists and carries a non-empty access token.
func (g *Gate) Authorize(rec *session.Record) Decision {
	if !rec.Authenticated() {
		return Decision{RedirectTo: LoginPath}
	}
	if g.EnforceExpiry && rec.Expired(g.clock()) {
		return Decision{RedirectTo: LoginPath}
	}
	return Decision{Allowed: true}
}

func (g *Gate) clock() time.Time {
	if g.now == nil {
		return time.Now()
	}
	return g.now()
}
