package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/promptstudio/promptstudio/internal/api"
	"github.com/promptstudio/promptstudio/internal/auth"
	"github.com/promptstudio/promptstudio/internal/config"
	"github.com/promptstudio/promptstudio/internal/export"
	"github.com/promptstudio/promptstudio/internal/genesys"
	"github.com/promptstudio/promptstudio/internal/metrics"
	"github.com/promptstudio/promptstudio/internal/session"
	"github.com/promptstudio/promptstudio/internal/staging"
	"github.com/promptstudio/promptstudio/internal/tts"
	"github.com/promptstudio/promptstudio/internal/web"
)

const (
	// sessionCleanupInterval is how often expired sessions are purged.
	sessionCleanupInterval = 15 * time.Minute
	// stagingCleanupInterval is how often old staged audio is removed.
	stagingCleanupInterval = time.Hour
)

// sessionBackend is a session store that can count and purge its entries.
type sessionBackend interface {
	session.Store
	metrics.SessionCounter
	StartCleanupTicker(ctx context.Context, interval time.Duration)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging.
	slog.SetDefault(slog.New(cfg.SlogHandler(os.Stdout)))

	slog.Info("starting promptstudio",
		"http_port", cfg.HTTPPort,
		"data_dir", cfg.DataDir,
		"platform_domain", cfg.PlatformDomain,
		"session_backend", cfg.SessionBackend,
	)

	// Application context for background goroutines.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	sessions, closeSessions, err := openSessions(cfg)
	if err != nil {
		slog.Error("failed to open session store", "error", err)
		os.Exit(1)
	}
	defer closeSessions()
	sessions.StartCleanupTicker(appCtx, sessionCleanupInterval)

	secret, err := cfg.SecretKeyBytes()
	if err != nil {
		slog.Error("failed to prepare secret key", "error", err)
		os.Exit(1)
	}

	store, err := staging.New(cfg.UploadDir)
	if err != nil {
		slog.Error("failed to open staging directory", "error", err)
		os.Exit(1)
	}

	store.StartCleanupTicker(appCtx, cfg.StagingMaxAge, stagingCleanupInterval)

	pages, err := web.ParsePages()
	if err != nil {
		slog.Error("failed to parse pages", "error", err)
		os.Exit(1)
	}

	// Every call to the platform and the speech service is bounded.
	upstream := &http.Client{Timeout: cfg.UpstreamTimeout}

	endpoints := auth.PlatformEndpoints(cfg.PlatformDomain)
	identity := auth.NewIdentityClient(upstream, endpoints.APIBaseURL)
	gate := auth.NewGate(cfg.EnforceTokenExpiry)

	if cfg.OAuthClientID == "" {
		slog.Warn("no oauth client configured, interactive login disabled")
	}
	if cfg.AdminPassword == "" {
		slog.Info("no admin password configured, local admin login disabled")
	}

	synth := tts.NewAzureClient(upstream, cfg.TTSKey, cfg.TTSRegion, "")
	if !synth.Configured() {
		slog.Warn("no speech credentials configured, text-to-speech will fail")
	}

	publisher := genesys.NewClient(genesys.Config{
		ClientID:     cfg.PublishClientID,
		ClientSecret: cfg.PublishClientSecret,
		Region:       cfg.PublishRegion,
	}, upstream)
	if !publisher.Configured() {
		slog.Warn("no publish credentials configured, exports will fail")
	}

	collector := metrics.NewCollector(sessions, time.Now())
	registry, err := metrics.NewRegistry(collector)
	if err != nil {
		slog.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	handler := api.NewServer(cfg, api.Deps{
		Sessions: sessions,
		Cookies:  session.NewCookieCodec(secret, cfg.SessionTTL, cfg.Production),
		Gate:     gate,
		Interactive: auth.NewInteractive(auth.InteractiveConfig{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			RedirectURL:  cfg.OAuthRedirectURI,
			Scopes:       cfg.Scopes(),
			Endpoints:    endpoints,
		}, identity, upstream),
		Embedded:    auth.NewEmbedded(identity),
		Admin:       auth.NewAdmin(cfg.AdminPassword),
		Exporter:    export.NewPipeline(gate, store, publisher),
		Synthesizer: synth,
		Staging:     store,
		Pages:       pages,
		Metrics:     collector,
		Gatherer:    registry,
	})
	defer handler.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr, "tls", cfg.TLSEnabled())
		var err error
		if cfg.TLSEnabled() {
			err = srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	// Graceful shutdown with timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down http server")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("promptstudio stopped")
}

// openSessions opens the configured session backend. The returned func
// releases it.
func openSessions(cfg *config.Config) (sessionBackend, func(), error) {
	switch cfg.SessionBackend {
	case "sqlite":
		s, err := session.OpenSQLite(cfg.DataDir, cfg.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		return s, closer(s), nil
	case "postgres":
		s, err := session.OpenPostgres(cfg.SessionDSN, cfg.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		return s, closer(s), nil
	default:
		return session.NewMemoryStore(cfg.SessionTTL), func() {}, nil
	}
}

func closer(s *session.SQLStore) func() {
	return func() {
		if err := s.Close(); err != nil {
			slog.Error("failed to close session store", "error", err)
		}
	}
}
