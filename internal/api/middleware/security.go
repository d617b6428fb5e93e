package middleware

import (
	"net/http"
	"strings"
)

// SecurityHeaders returns middleware that sets HTTP security headers on every
// response. frameAncestors lists the CSP sources allowed to embed the studio
// in an iframe (the hosting platform); empty means 'none'. When tlsEnabled is
// true, Strict-Transport-Security (HSTS) is included; it is omitted on plain
// HTTP to avoid browsers caching an HSTS policy for a host that does not
// support TLS.
func SecurityHeaders(tlsEnabled bool, frameAncestors string) func(http.Handler) http.Handler {
	ancestors := strings.Join(strings.Fields(frameAncestors), " ")
	if ancestors == "" {
		ancestors = "'none'"
	}

	// Content Security Policy: same-origin resources only. media-src allows
	// blob: so staged audio can be previewed before export.
	csp := "default-src 'self'; " +
		"script-src 'self'; " +
		"style-src 'self' 'unsafe-inline'; " +
		"img-src 'self' data:; " +
		"media-src 'self' blob:; " +
		"font-src 'self'; " +
		"connect-src 'self'; " +
		"frame-ancestors " + ancestors + "; " +
		"base-uri 'self'; " +
		"form-action 'self'"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()

			// No X-Frame-Options: it cannot express an allow-list, and
			// frame-ancestors supersedes it in every current browser.

			// Prevent MIME type sniffing.
			h.Set("X-Content-Type-Options", "nosniff")

			// Disable legacy XSS filter; CSP supersedes it.
			h.Set("X-XSS-Protection", "0")

			// Limit referrer information leaked to other origins.
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

			h.Set("Content-Security-Policy", csp)

			// Restrict access to powerful browser features.
			h.Set("Permissions-Policy",
				"camera=(), microphone=(), geolocation=(), payment=()")

			// HSTS, only sent when serving over TLS.
			if tlsEnabled {
				// max-age=63072000 is 2 years; includeSubDomains ensures
				// all subdomains also require HTTPS.
				h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
