package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	// CookieName is the name of the session cookie.
	CookieName = "promptstudio_session"

	cookieIssuer = "promptstudio"
)

// CookieCodec issues and verifies the session cookie. The cookie value is an
// HS256 token whose subject is the opaque session identifier, so a client can
// neither forge nor guess another client's session key.
type CookieCodec struct {
	secret     []byte
	ttl        time.Duration
	production bool
}

// NewCookieCodec creates a codec signing with secret. In production the
// cookie is SameSite=None and Secure so it survives inside a hosting
// platform's iframe; otherwise SameSite=Lax over plain HTTP.
func NewCookieCodec(secret []byte, ttl time.Duration, production bool) *CookieCodec {
	return &CookieCodec{secret: secret, ttl: ttl, production: production}
}

// Read returns the session id carried by the request cookie. A missing,
// expired or tampered cookie yields ok == false.
func (c *CookieCodec) Read(r *http.Request) (id string, ok bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	id, err = c.verify(cookie.Value)
	if err != nil {
		return "", false
	}
	return id, true
}

// Write sets the cookie for session id on the response.
func (c *CookieCodec) Write(w http.ResponseWriter, id string) error {
	value, err := c.sign(id, time.Now())
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.production,
		SameSite: c.sameSite(),
		MaxAge:   int(c.ttl.Seconds()),
	})
	return nil
}

// Clear expires the session cookie.
func (c *CookieCodec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.production,
		SameSite: c.sameSite(),
		MaxAge:   -1,
	})
}

func (c *CookieCodec) sameSite() http.SameSite {
	if c.production {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func (c *CookieCodec) sign(id string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   id,
		Issuer:    cookieIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func (c *CookieCodec) verify(value string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(value, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return c.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Subject == "" || !claims.VerifyIssuer(cookieIssuer, true) {
		return "", errors.New("invalid session cookie")
	}
	return claims.Subject, nil
}
