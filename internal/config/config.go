package config

import (
	"crypto/rand"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Config holds all runtime configuration for the prompt studio server.
// Precedence: CLI flags > env vars > defaults.
type Config struct {
	DataDir           string
	HTTPPort          int
	UploadDir         string // staged audio; defaults to <data-dir>/uploads
	MaxUploadBytes    int64
	StagingMaxAge     time.Duration // 0 keeps staged audio forever
	AllowedExtensions string // comma-separated, e.g. ".wav"
	SecretKey         string // signs the session cookie
	Production        bool   // SameSite=None; Secure cookies for iframe hosting
	TLSCert           string
	TLSKey            string

	OAuthClientID     string
	OAuthClientSecret string
	OAuthRedirectURI  string
	OAuthScopes       string // space-separated
	PlatformDomain    string // e.g. "mypurecloud.de"

	PublishClientID     string
	PublishClientSecret string
	PublishRegion       string // defaults to the platform domain

	TTSKey       string
	TTSRegion    string
	DefaultVoice string

	AdminPassword string // plain text or bcrypt hash; empty disables admin login

	SessionBackend     string // memory, sqlite or postgres
	SessionDSN         string
	SessionTTL         time.Duration
	EnforceTokenExpiry bool

	UpstreamTimeout time.Duration
	CORSOrigins     string
	FrameAncestors  string // CSP frame-ancestors sources
	LogLevel        string
	LogFormat       string // log output format: "text" or "json"
}

// defaults
const (
	defaultDataDir           = "./data"
	defaultHTTPPort          = 5001
	defaultMaxUploadBytes    = 16 << 20
	defaultStagingMaxAge     = 24 * time.Hour
	defaultAllowedExtensions = ".wav"
	defaultRedirectURI       = "http://localhost:5001/oauth/callback"
	defaultScopes            = "architect users:readonly"
	defaultPlatformDomain    = "mypurecloud.de"
	defaultVoice             = "en-US-JennyNeural"
	defaultSessionBackend    = "memory"
	defaultSessionTTL        = 24 * time.Hour
	defaultUpstreamTimeout   = 10 * time.Second
	defaultLogLevel          = "info"
	defaultLogFormat         = "text"
)

// envPrefix is the prefix for all prompt studio environment variables.
const envPrefix = "PROMPTSTUDIO_"

// Load parses configuration from CLI flags and environment variables.
// Precedence: CLI flags > env vars > defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("promptstudio", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "data-dir", defaultDataDir, "data directory for the session database and staged audio")
	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "HTTP server listen port")
	fs.StringVar(&cfg.UploadDir, "upload-dir", "", "directory for staged audio (default <data-dir>/uploads)")
	fs.Int64Var(&cfg.MaxUploadBytes, "max-upload-bytes", defaultMaxUploadBytes, "maximum accepted upload size in bytes")
	fs.DurationVar(&cfg.StagingMaxAge, "staging-max-age", defaultStagingMaxAge, "remove staged audio older than this (0 disables)")
	fs.StringVar(&cfg.AllowedExtensions, "allowed-extensions", defaultAllowedExtensions, "comma-separated list of accepted upload extensions")
	fs.StringVar(&cfg.SecretKey, "secret-key", "", "secret used to sign session cookies (auto-generated if empty)")
	fs.BoolVar(&cfg.Production, "production", false, "issue SameSite=None; Secure cookies so the studio works inside an iframe")
	fs.StringVar(&cfg.TLSCert, "tls-cert", "", "path to TLS certificate file")
	fs.StringVar(&cfg.TLSKey, "tls-key", "", "path to TLS private key file")
	fs.StringVar(&cfg.OAuthClientID, "oauth-client-id", "", "OAuth client id for interactive login")
	fs.StringVar(&cfg.OAuthClientSecret, "oauth-client-secret", "", "OAuth client secret for interactive login")
	fs.StringVar(&cfg.OAuthRedirectURI, "oauth-redirect-uri", defaultRedirectURI, "OAuth redirect URI registered with the platform")
	fs.StringVar(&cfg.OAuthScopes, "oauth-scopes", defaultScopes, "space-separated OAuth scopes requested at login")
	fs.StringVar(&cfg.PlatformDomain, "platform-domain", defaultPlatformDomain, "platform base domain (login.<domain>, api.<domain>)")
	fs.StringVar(&cfg.PublishClientID, "publish-client-id", "", "client-credentials id used to publish prompts")
	fs.StringVar(&cfg.PublishClientSecret, "publish-client-secret", "", "client-credentials secret used to publish prompts")
	fs.StringVar(&cfg.PublishRegion, "publish-region", "", "platform domain of the prompt library (default platform-domain)")
	fs.StringVar(&cfg.TTSKey, "tts-key", "", "Azure Speech subscription key")
	fs.StringVar(&cfg.TTSRegion, "tts-region", "", "Azure Speech region (e.g. westeurope)")
	fs.StringVar(&cfg.DefaultVoice, "default-voice", defaultVoice, "voice used when a synthesis request names none")
	fs.StringVar(&cfg.AdminPassword, "admin-password", "", "shared secret for local admin login, plain or bcrypt (disabled if empty)")
	fs.StringVar(&cfg.SessionBackend, "session-backend", defaultSessionBackend, "session store (memory, sqlite, postgres)")
	fs.StringVar(&cfg.SessionDSN, "session-dsn", "", "PostgreSQL connection string for the postgres session backend")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", defaultSessionTTL, "idle lifetime of a session")
	fs.BoolVar(&cfg.EnforceTokenExpiry, "enforce-token-expiry", false, "deny sessions whose access token has expired")
	fs.DurationVar(&cfg.UpstreamTimeout, "upstream-timeout", defaultUpstreamTimeout, "timeout for calls to the platform and speech service")
	fs.StringVar(&cfg.CORSOrigins, "cors-origins", "", "comma-separated list of allowed CORS origins (use * for all)")
	fs.StringVar(&cfg.FrameAncestors, "frame-ancestors", "", "CSP frame-ancestors sources (default https://*.<platform-domain>)")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// Apply env var overrides for any flags not explicitly set on the command line.
	// CLI flags take precedence over env vars.
	if err := applyEnvOverrides(fs); err != nil {
		return nil, err
	}

	cfg.applyDerivedDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// envName maps a flag name to its environment variable, e.g. "http-port" to
// PROMPTSTUDIO_HTTP_PORT.
func envName(flagName string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// applyEnvOverrides checks environment variables for any flag that was not
// explicitly provided on the command line. This preserves the precedence:
// CLI flags > env vars > defaults. Values are parsed by the flag itself so
// env vars accept exactly what the command line does.
func applyEnvOverrides(fs *flag.FlagSet) error {
	// Track which flags were explicitly set via CLI.
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	var err error
	fs.VisitAll(func(f *flag.Flag) {
		if err != nil || set[f.Name] {
			return
		}
		val, ok := os.LookupEnv(envName(f.Name))
		if !ok || val == "" {
			return
		}
		if setErr := fs.Set(f.Name, val); setErr != nil {
			err = fmt.Errorf("invalid value %q for %s: %w", val, envName(f.Name), setErr)
		}
	})
	return err
}

// applyDerivedDefaults fills settings whose defaults depend on other settings.
func (c *Config) applyDerivedDefaults() {
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join(c.DataDir, "uploads")
	}
	if c.PublishRegion == "" {
		c.PublishRegion = c.PlatformDomain
	}
	if c.FrameAncestors == "" {
		c.FrameAncestors = "'self' https://*." + c.PlatformDomain
	}
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http-port must be between 1 and 65535, got %d", c.HTTPPort)
	}
	if c.MaxUploadBytes < 1 {
		return fmt.Errorf("max-upload-bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.StagingMaxAge < 0 {
		return fmt.Errorf("staging-max-age must not be negative, got %s", c.StagingMaxAge)
	}
	if len(c.Extensions()) == 0 {
		return fmt.Errorf("allowed-extensions must name at least one extension")
	}
	if c.PlatformDomain == "" {
		return fmt.Errorf("platform-domain is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session-ttl must be positive, got %s", c.SessionTTL)
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream-timeout must be positive, got %s", c.UpstreamTimeout)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	validBackends := map[string]bool{"memory": true, "sqlite": true, "postgres": true}
	if !validBackends[strings.ToLower(c.SessionBackend)] {
		return fmt.Errorf("session-backend must be one of memory, sqlite, postgres; got %q", c.SessionBackend)
	}
	c.SessionBackend = strings.ToLower(c.SessionBackend)
	if c.SessionBackend == "postgres" && c.SessionDSN == "" {
		return fmt.Errorf("session-dsn is required for the postgres session backend")
	}

	// TLS cert and key must both be set or both be empty.
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("tls-cert and tls-key must both be provided or both be omitted")
	}

	if c.SecretKey != "" && len(c.SecretKey) < 16 {
		return fmt.Errorf("secret-key must be at least 16 characters")
	}

	return nil
}

// TLSEnabled returns true if a TLS certificate and key are configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != ""
}

// Scopes returns the OAuth scopes as a list.
func (c *Config) Scopes() []string {
	return strings.Fields(c.OAuthScopes)
}

// Extensions returns the accepted upload extensions, lower-cased with a
// leading dot, sorted and without duplicates.
func (c *Config) Extensions() []string {
	seen := make(map[string]bool)
	var exts []string
	for _, e := range strings.Split(c.AllowedExtensions, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if !seen[e] {
			seen[e] = true
			exts = append(exts, e)
		}
	}
	sort.Strings(exts)
	return exts
}

// SecretKeyBytes returns the session cookie signing key.
// If no key is configured, it generates a random 32-byte key for the process
// lifetime.
func (c *Config) SecretKeyBytes() ([]byte, error) {
	if c.SecretKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating secret key: %w", err)
		}
		slog.Warn("no secret-key configured, generated ephemeral key (sessions will not survive restart)")
		return key, nil
	}
	return []byte(c.SecretKey), nil
}

// SlogHandler returns a slog.Handler configured with the appropriate format
// (text or json) and log level.
func (c *Config) SlogHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
