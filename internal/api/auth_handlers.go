package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/promptstudio/promptstudio/internal/api/middleware"
	"github.com/promptstudio/promptstudio/internal/auth"
	"github.com/promptstudio/promptstudio/internal/failure"
	"github.com/promptstudio/promptstudio/internal/metrics"
	"github.com/promptstudio/promptstudio/internal/session"
	"github.com/promptstudio/promptstudio/internal/web"
)

type embeddedLoginRequest struct {
	AccessToken string `json:"access_token"`
}

type adminLoginRequest struct {
	Password string `json:"password"`
}

type userResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type loginResponse struct {
	Success bool          `json:"success"`
	User    *userResponse `json:"user,omitempty"`
}

// outcome returns the metrics result label for err.
func outcome(err error) string {
	if err == nil {
		return metrics.ResultOK
	}
	return string(failure.ReasonOf(err))
}

// handleLogin renders the login page, or sends an authenticated client
// straight to the studio.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	cur := middleware.SessionFromContext(r.Context())
	if s.deps.Gate.Authorize(cur.Record).Allowed {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	s.renderLogin(w, "")
}

func (s *Server) renderLogin(w http.ResponseWriter, msg string) {
	page := web.LoginPage{
		Error:           msg,
		OAuthConfigured: s.cfg.OAuthClientID != "",
		AdminConfigured: s.deps.Admin.Configured(),
	}
	if err := s.deps.Pages.Render(w, http.StatusOK, "login.html", page); err != nil {
		slog.Error("login page: failed to render", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// handleAuthorize starts the interactive login. The pending state is kept in
// the client's session until the callback consumes it.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cur := middleware.SessionFromContext(ctx)

	state, redirectURL, err := s.deps.Interactive.Begin()
	if err != nil {
		slog.Error("oauth authorize: failed to begin login", "error", err)
		s.renderLogin(w, failure.Message(err))
		return
	}

	rec := cur.Record.Clone()
	if rec == nil {
		rec = &session.Record{}
	}
	rec.OAuthState = state

	id := cur.ID
	if id == "" {
		if id, err = session.NewID(); err != nil {
			slog.Error("oauth authorize: failed to create session id", "error", err)
			s.renderLogin(w, "Authentication error: could not start login")
			return
		}
	}
	if err := s.deps.Sessions.Put(ctx, id, rec); err != nil {
		slog.Error("oauth authorize: failed to store pending state", "error", err)
		s.renderLogin(w, "Authentication error: could not start login")
		return
	}
	if err := s.deps.Cookies.Write(w, id); err != nil {
		slog.Error("oauth authorize: failed to write session cookie", "error", err)
		s.renderLogin(w, "Authentication error: could not start login")
		return
	}

	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// handleCallback completes the interactive login. Failures are shown on the
// login page and leave the stored session untouched.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cur := middleware.SessionFromContext(ctx)

	var pending string
	if cur.Record != nil {
		pending = cur.Record.OAuthState
	}

	q := r.URL.Query()
	rec, err := s.deps.Interactive.Complete(ctx, auth.Callback{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}, pending)
	s.deps.Metrics.RecordAuth(metrics.ModeInteractive, outcome(err))
	if err != nil {
		if failure.ReasonOf(err) == failure.InternalError {
			slog.Error("oauth callback: login failed", "error", err)
		} else {
			slog.Warn("oauth callback: login rejected", "reason", failure.ReasonOf(err), "error", err)
		}
		s.renderLogin(w, failure.Message(err))
		return
	}

	if err := s.establish(ctx, w, cur, rec); err != nil {
		slog.Error("oauth callback: failed to save session", "error", err)
		s.renderLogin(w, "Authentication error: could not save session")
		return
	}

	slog.Info("oauth callback: user logged in", "user", userName(rec))
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleEmbeddedLogin accepts a token handed off by the hosting frame.
func (s *Server) handleEmbeddedLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req embeddedLoginRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	rec, err := s.deps.Embedded.Authenticate(ctx, req.AccessToken)
	s.deps.Metrics.RecordAuth(metrics.ModeEmbedded, outcome(err))
	if err != nil {
		writeFailure(w, r, "embedded login", err)
		return
	}

	if err := s.establish(ctx, w, middleware.SessionFromContext(ctx), rec); err != nil {
		writeFailure(w, r, "embedded login", err)
		return
	}

	slog.Info("embedded login: user logged in", "user", userName(rec))
	resp := loginResponse{Success: true}
	if rec.User != nil {
		resp.User = &userResponse{Name: rec.User.DisplayName, Email: rec.User.Email}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAdminLogin checks the local admin shared secret.
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req adminLoginRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	rec, err := s.deps.Admin.Authenticate(req.Password)
	s.deps.Metrics.RecordAuth(metrics.ModeAdmin, outcome(err))
	if err != nil {
		writeFailure(w, r, "admin login", err)
		return
	}

	if err := s.establish(ctx, w, middleware.SessionFromContext(ctx), rec); err != nil {
		writeFailure(w, r, "admin login", err)
		return
	}

	slog.Info("admin login: local admin logged in", "ip", r.RemoteAddr)
	writeJSON(w, http.StatusOK, loginResponse{Success: true})
}

// handleLogout drops the stored record and the cookie. It is safe to call
// without a session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	cur := middleware.SessionFromContext(r.Context())
	if cur.ID != "" {
		if err := s.deps.Sessions.Delete(r.Context(), cur.ID); err != nil {
			slog.Error("logout: failed to delete session", "error", err)
		}
	}
	s.deps.Cookies.Clear(w)
	http.Redirect(w, r, auth.LoginPath, http.StatusFound)
}

// establish stores rec under a fresh session id, discarding the previous one,
// and sets the cookie.
func (s *Server) establish(ctx context.Context, w http.ResponseWriter, cur *middleware.CurrentSession, rec *session.Record) error {
	id, err := session.NewID()
	if err != nil {
		return err
	}
	if err := s.deps.Sessions.Put(ctx, id, rec); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	if cur.ID != "" {
		if err := s.deps.Sessions.Delete(ctx, cur.ID); err != nil {
			slog.Warn("login: failed to drop previous session", "error", err)
		}
	}
	return s.deps.Cookies.Write(w, id)
}

func userName(rec *session.Record) string {
	if rec.User == nil {
		return ""
	}
	return strings.TrimSpace(rec.User.DisplayName)
}
