package api

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/promptstudio/promptstudio/internal/api/middleware"
	"github.com/promptstudio/promptstudio/internal/auth"
	"github.com/promptstudio/promptstudio/internal/config"
	"github.com/promptstudio/promptstudio/internal/export"
	"github.com/promptstudio/promptstudio/internal/metrics"
	"github.com/promptstudio/promptstudio/internal/session"
	"github.com/promptstudio/promptstudio/internal/staging"
	"github.com/promptstudio/promptstudio/internal/tts"
	"github.com/promptstudio/promptstudio/internal/web"
)

// InteractiveLogin is the authorization-code login.
type InteractiveLogin interface {
	Begin() (state, redirectURL string, err error)
	Complete(ctx context.Context, cb auth.Callback, pendingState string) (*session.Record, error)
}

// EmbeddedLogin is the token hand-off from a hosting frame.
type EmbeddedLogin interface {
	Authenticate(ctx context.Context, accessToken string) (*session.Record, error)
}

// AdminLogin is the local shared-secret login.
type AdminLogin interface {
	Configured() bool
	Authenticate(password string) (*session.Record, error)
}

// Exporter publishes a staged artifact to the prompt library.
type Exporter interface {
	Export(ctx context.Context, req export.Request, rec *session.Record) (string, error)
}

// Staging keeps uploaded and synthesized audio until it is exported.
type Staging interface {
	Save(prefix, ext string, data []byte) (string, error)
	Open(ref string) (*os.File, fs.FileInfo, error)
}

// Deps are the collaborators the HTTP surface delegates to.
type Deps struct {
	Sessions    session.Store
	Cookies     *session.CookieCodec
	Gate        *auth.Gate
	Interactive InteractiveLogin
	Embedded    EmbeddedLogin
	Admin       AdminLogin
	Exporter    Exporter
	Synthesizer tts.Synthesizer
	Staging     Staging
	Pages       *web.Pages

	// Metrics is optional; nil disables outcome counting.
	Metrics *metrics.Collector
	// Gatherer serves /metrics when non-nil.
	Gatherer prometheus.Gatherer
}

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router    *chi.Mux
	cfg       *config.Config
	deps      Deps
	policy    staging.Policy
	startTime time.Time

	authLimiter *middleware.IPRateLimiter
	apiLimiter  *middleware.IPRateLimiter
}

// NewServer creates the HTTP handler with all routes mounted.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		deps:   deps,
		policy: staging.Policy{
			MaxBytes:          cfg.MaxUploadBytes,
			AllowedExtensions: cfg.Extensions(),
		},
		startTime:   time.Now(),
		authLimiter: middleware.NewIPRateLimiter(middleware.AuthRateLimitConfig()),
		apiLimiter:  middleware.NewIPRateLimiter(middleware.DefaultRateLimitConfig()),
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the rate limiter cleanup goroutines.
func (s *Server) Close() {
	s.authLimiter.Stop()
	s.apiLimiter.Stop()
}

// routes configures all middleware and mounts all route groups.
func (s *Server) routes() {
	r := s.router

	// Global middleware stack.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders(s.cfg.TLSEnabled(), s.cfg.FrameAncestors))
	if origins := middleware.ParseCORSOrigins(s.cfg.CORSOrigins); len(origins) > 0 {
		r.Use(middleware.CORS(origins))
	}

	// Unauthenticated routes.
	r.Get("/health", s.handleHealth)
	if s.deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(s.deps.Gatherer))
	}
	r.Handle("/static/*", http.StripPrefix("/static/", web.Static()))

	r.Group(func(r chi.Router) {
		r.Use(middleware.LoadSession(s.deps.Sessions, s.deps.Cookies))

		// Login entry points.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(s.authLimiter))

			r.Get("/login", s.handleLogin)
			r.Get("/oauth/authorize", s.handleAuthorize)
			r.Get("/oauth/callback", s.handleCallback)
			r.Post("/auth/embedded", s.handleEmbeddedLogin)
			r.Post("/auth/admin", s.handleAdminLogin)
		})

		r.Get("/logout", s.handleLogout)

		// Protected routes.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(s.deps.Gate))

			r.Get("/", s.handleIndex)
			r.Get("/uploads/{filename}", s.handleStagedAudio)

			r.Route("/api", func(r chi.Router) {
				r.Use(middleware.RateLimit(s.apiLimiter))

				r.Get("/session", s.handleSession)
				r.Post("/tts", s.handleSynthesize)
				r.Post("/upload", s.handleUpload)
				r.Post("/export", s.handleExport)
			})
		})
	})

	slog.Info("api routes mounted")
}
