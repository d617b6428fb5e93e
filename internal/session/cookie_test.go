package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCookieCodecRoundTrip(t *testing.T) {
	codec := NewCookieCodec([]byte("0123456789abcdef0123456789abcdef"), time.Hour, false)

	rr := httptest.NewRecorder()
	if err := codec.Write(rr, "session-123"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != CookieName {
		t.Fatalf("cookie name = %q", c.Name)
	}
	if !c.HttpOnly {
		t.Fatal("session cookie should be HttpOnly")
	}
	if c.SameSite != http.SameSiteLaxMode || c.Secure {
		t.Fatal("development cookie should be SameSite=Lax and not Secure")
	}
	if c.Value == "session-123" {
		t.Fatal("cookie must not carry the raw session id")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	id, ok := codec.Read(req)
	if !ok || id != "session-123" {
		t.Fatalf("Read = %q, %v", id, ok)
	}
}

func TestCookieCodecProductionAttributes(t *testing.T) {
	codec := NewCookieCodec([]byte("secret"), time.Hour, true)
	rr := httptest.NewRecorder()
	codec.Write(rr, "sid")

	c := rr.Result().Cookies()[0]
	if c.SameSite != http.SameSiteNoneMode || !c.Secure {
		t.Fatal("production cookie should be SameSite=None and Secure")
	}
}

func TestCookieCodecRejectsForeignSignature(t *testing.T) {
	issuer := NewCookieCodec([]byte("attacker-secret"), time.Hour, false)
	verifier := NewCookieCodec([]byte("server-secret"), time.Hour, false)

	rr := httptest.NewRecorder()
	issuer.Write(rr, "forged")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rr.Result().Cookies()[0])
	if _, ok := verifier.Read(req); ok {
		t.Fatal("expected forged cookie to be rejected")
	}
}

func TestCookieCodecRejectsExpired(t *testing.T) {
	codec := NewCookieCodec([]byte("secret"), time.Hour, false)
	value, err := codec.sign("sid", time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: value})
	if _, ok := codec.Read(req); ok {
		t.Fatal("expected expired cookie to be rejected")
	}
}

func TestCookieCodecMissingAndGarbage(t *testing.T) {
	codec := NewCookieCodec([]byte("secret"), time.Hour, false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := codec.Read(req); ok {
		t.Fatal("expected no session without cookie")
	}

	req.AddCookie(&http.Cookie{Name: CookieName, Value: "not-a-token"})
	if _, ok := codec.Read(req); ok {
		t.Fatal("expected garbage cookie to be rejected")
	}
}

func TestCookieCodecClear(t *testing.T) {
	codec := NewCookieCodec([]byte("secret"), time.Hour, false)
	rr := httptest.NewRecorder()
	codec.Clear(rr)

	c := rr.Result().Cookies()[0]
	if c.MaxAge != -1 {
		t.Fatalf("expected MaxAge -1, got %d", c.MaxAge)
	}
}
