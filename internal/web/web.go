// Package web holds the embedded HTML pages and static assets of the studio.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/promptstudio/promptstudio/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// LoginPage is the data rendered by login.html.
type LoginPage struct {
	Error           string
	OAuthConfigured bool
	AdminConfigured bool
}

// IndexPage is the data rendered by index.html.
type IndexPage struct {
	User         *session.Identity
	EmbeddedMode bool
	IsAdminLocal bool
	DefaultVoice string
	Voices       []string
}

// Pages renders the studio's HTML pages.
type Pages struct {
	tmpl *template.Template
}

// ParsePages parses the embedded templates.
func ParsePages() (*Pages, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing page templates: %w", err)
	}
	return &Pages{tmpl: tmpl}, nil
}

// Render executes the named template into w with the given status. The page
// is rendered into a buffer first so a template error never leaves a
// half-written response.
func (p *Pages) Render(w http.ResponseWriter, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("rendering %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// Static returns a handler serving the embedded assets. Mount it with the
// "/static/" prefix stripped.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// The embed pattern guarantees the directory exists.
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
